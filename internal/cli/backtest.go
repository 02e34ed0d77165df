package cli

import (
	"fmt"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/config"
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/rustyeddy/gridtrader/sim"
	"github.com/spf13/cobra"
)

// journalFlags override the journal section.
type journalFlags struct {
	kind   string
	dir    string
	db     string
	dsn    string
	orgDir string
}

func (f *journalFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.kind, "journal", "", "journal backend: none|csv|sqlite|postgres")
	fs.StringVar(&f.dir, "journal-dir", "", "directory of the csv journal")
	fs.StringVar(&f.db, "db", "", "SQLite journal database")
	fs.StringVar(&f.dsn, "dsn", "", "PostgreSQL connection string")
	fs.StringVar(&f.orgDir, "org-dir", "", "write an Org report per run into this directory")
}

func (f *journalFlags) apply(cmd *cobra.Command, j *config.JournalConfig) {
	fs := cmd.Flags()
	if fs.Changed("journal") {
		j.Type = f.kind
	}
	if fs.Changed("journal-dir") {
		j.Dir = f.dir
	}
	if fs.Changed("db") {
		j.DBPath = f.db
		if !fs.Changed("journal") {
			j.Type = "sqlite"
		}
	}
	if fs.Changed("dsn") {
		j.DSN = f.dsn
		if !fs.Changed("journal") {
			j.Type = "postgres"
		}
	}
	if fs.Changed("org-dir") {
		j.OrgDir = f.orgDir
	}
}

func newBacktestCmd(rc *rootConfig) *cobra.Command {
	var (
		sf      strategyFlags
		df      dataFlags
		jf      journalFlags
		capital string
		seed    int64
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a grid template over a historical or synthetic price series",
		Long: `Backtest loads a price series, runs the grid over it bar by bar and
reports trades, levels and performance. Results can be journaled to CSV,
SQLite or PostgreSQL and written as an Org report.

Examples:
  gridtrader backtest --config grid.yaml
  gridtrader backtest --data ./data --symbol SPY --anchor 450 --step 1 --levels 10 --db ./runs.sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.cfg
			if err := sf.apply(cmd, &cfg.Strategy); err != nil {
				return err
			}
			df.apply(cmd, &cfg.Data)
			jf.apply(cmd, &cfg.Journal)
			if err := decimalFlag(cmd, "capital", capital, &cfg.Account.InitialCapital); err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Execution.Seed = seed
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			t, err := cfg.Template()
			if err != nil {
				return err
			}
			req, err := cfg.DataRequest()
			if err != nil {
				return err
			}
			ds, err := cfg.DataSource()
			if err != nil {
				return err
			}
			model, err := cfg.FillModel()
			if err != nil {
				return err
			}
			engine, err := sim.NewEngine(sim.Options{
				InitialCapital: cfg.Account.InitialCapital,
				Fill:           model,
				Seed:           cfg.Execution.Seed,
				MultiPosition:  cfg.Strategy.MultiPosition,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			provider, err := data.Open(ds)
			if err != nil {
				return err
			}
			defer provider.Close()

			j, err := journal.Open(ctx, cfg.JournalConfig())
			if err != nil {
				return err
			}
			defer j.Close()

			runner := &backtest.Runner{
				Provider: provider,
				Engine:   engine,
				Journal:  j,
				Logger:   rc.log,
				Dataset:  datasetLabel(ds),
				OrgDir:   cfg.Journal.OrgDir,
			}
			rep, err := runner.Run(ctx, req, t)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					RunID  string      `json:"run_id"`
					Notes  []string    `json:"notes,omitempty"`
					Result *sim.Result `json:"result"`
				}{rep.Run.RunID, rep.Run.Notes, rep.Result})
			}
			backtest.PrintResult(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	sf.register(cmd)
	df.register(cmd)
	jf.register(cmd)
	cmd.Flags().StringVarP(&capital, "capital", "c", "", "initial capital (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed of the fill model and ids")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func datasetLabel(ds data.Config) string {
	if ds.Source == data.SourceCSV {
		return ds.Path
	}
	return fmt.Sprintf("%s(seed=%d)", ds.Source, ds.Seed)
}
