package cli

import (
	"fmt"

	"github.com/rustyeddy/gridtrader/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(rc *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file`,
		// Only logging; the file under test is loaded by the subcommand.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rc.setupLogging(cmd.ErrOrStderr())
		},
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		Long: `Create a new configuration file with default settings. The format
follows the extension: .json writes JSON, anything else YAML.

Example:
  gridtrader config init -o grid.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  gridtrader backtest --config %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "gridtrader.yaml", "output config file path")

	var path string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Check that a configuration file loads, validates and yields a buildable
grid template.

Example:
  gridtrader config validate -f grid.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			t, err := cfg.Template()
			if err != nil {
				return fmt.Errorf("invalid strategy: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration is valid: %s\n\n", path)
			fmt.Fprintf(out, "Strategy:  %s\n", t)
			fmt.Fprintf(out, "Capital:   %s %s\n", cfg.Account.InitialCapital.StringFixed(2), cfg.Account.Currency)
			fmt.Fprintf(out, "Data:      %s %s..%s (%s)\n", cfg.Data.Source, cfg.Data.From, cfg.Data.To, cfg.Data.Interval)
			fmt.Fprintf(out, "Journal:   %s\n", cfg.Journal.Type)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
