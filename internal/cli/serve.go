package cli

import (
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/rustyeddy/gridtrader/server"
	"github.com/spf13/cobra"
)

func newServeCmd(rc *rootConfig) *cobra.Command {
	var (
		addr string
		jf   journalFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the websocket event stream",
		Long: `Serve exposes ladder planning and backtests over HTTP:

  GET  /health
  GET  /metrics
  POST /api/v1/ladder
  POST /api/v1/ladder/two-point
  POST /api/v1/backtest
  GET  /api/v1/ws        (level, trade and cycle events of running backtests)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.cfg
			jf.apply(cmd, &cfg.Journal)
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			ds, err := cfg.DataSource()
			if err != nil {
				return err
			}
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

			srv := server.New(server.Options{
				Provider:       provider,
				Journal:        j,
				Logger:         rc.log,
				InitialCapital: cfg.Account.InitialCapital,
				Fill:           cfg.FillConfig(),
				Seed:           cfg.Execution.Seed,
				Dataset:        datasetLabel(ds),
				OrgDir:         cfg.Journal.OrgDir,
			})
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	jf.register(cmd)
	return cmd
}
