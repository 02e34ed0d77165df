package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rustyeddy/gridtrader/config"
	"github.com/rustyeddy/gridtrader/internal/logx"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=...".
var version = "dev"

// rootConfig carries the persistent flags and what PersistentPreRunE built
// from them.
type rootConfig struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	cfg *config.Config
	log *slog.Logger
}

// load reads --config (or the defaults) and sets up logging. Flags given on
// the command line win over the file.
func (rc *rootConfig) load(w io.Writer) error {
	cfg := config.Default()
	if rc.ConfigPath != "" {
		c, err := config.LoadFromFile(rc.ConfigPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	rc.cfg = cfg
	return rc.setupLogging(w)
}

func (rc *rootConfig) setupLogging(w io.Writer) error {
	level, format := rc.LogLevel, rc.LogFormat
	if rc.cfg != nil {
		if level == "" {
			level = rc.cfg.Log.Level
		}
		if format == "" {
			format = rc.cfg.Log.Format
		}
	}
	l, err := logx.Setup(level, format, w)
	if err != nil {
		return err
	}
	rc.log = l
	return nil
}

func NewRootCmd() *cobra.Command {
	rc := &rootConfig{}

	cmd := &cobra.Command{
		Use:           "gridtrader",
		Short:         "Grid ladders, backtests and paper trading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file, YAML or JSON (optional)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&rc.LogFormat, "log-format", "", "Log format: text|json")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return rc.load(cmd.ErrOrStderr())
	}

	cmd.AddCommand(
		newLadderCmd(rc),
		newBacktestCmd(rc),
		newPaperCmd(rc),
		newServeCmd(rc),
		newConfigCmd(rc),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gridtrader (%s)\n", version)
		},
	})

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
