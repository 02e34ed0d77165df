package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"cfg.yaml", "cfg.yml", "cfg.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Strategy.Side = "SHORT"
			cfg.Strategy.GuardianMode = "PERCENT"
			g := decimal.RequireFromString("0.5")
			cfg.Strategy.GuardianValue = &g
			cfg.Execution.Commission = decimal.RequireFromString("0.35")

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cfg.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, "SHORT", got.Strategy.Side)
			require.NotNil(t, got.Strategy.GuardianValue)
			assert.True(t, got.Strategy.GuardianValue.Equal(g))
			assert.True(t, got.Execution.Commission.Equal(decimal.RequireFromString("0.35")))
			assert.True(t, got.Account.InitialCapital.Equal(decimal.NewFromInt(100000)))
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	const doc = `
account:
  initial_capital: 10000
strategy:
  symbol: aapl
  side: long
  anchor_price: 150.00
  step: 1
  step_mode: PERCENT
  levels: 3
  qty_per_level: 5
  auto_start_trigger: 2.5
execution:
  commission: 1
data:
  source: synthetic
  interval: 1m
`
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	tmpl, err := cfg.Template()
	require.NoError(t, err)
	assert.Equal(t, "AAPL", tmpl.Symbol)
	assert.Equal(t, grid.Long, tmpl.Side)
	assert.Equal(t, grid.Percent, tmpl.StepMode)
	assert.Equal(t, "aapl-long", tmpl.ID)
	assert.True(t, tmpl.AutoStartTrigger.Valid)
	assert.True(t, tmpl.StepAbsolute().Equal(decimal.RequireFromString("1.5")))

	// unspecified sections keep their defaults
	assert.Equal(t, 0.95, cfg.Execution.FillProbability)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	req, err := cfg.DataRequest()
	require.NoError(t, err)
	assert.Equal(t, data.Minute, req.Interval)
	assert.Equal(t, "AAPL", req.Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), req.From)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: [unclosed"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"capital", func(c *Config) { c.Account.InitialCapital = decimal.Zero }},
		{"side", func(c *Config) { c.Strategy.Side = "SIDEWAYS" }},
		{"levels", func(c *Config) { c.Strategy.Levels = 0 }},
		{"step mode", func(c *Config) { c.Strategy.StepMode = "LOG" }},
		{"fill probability", func(c *Config) { c.Execution.FillProbability = 1.5 }},
		{"negative commission", func(c *Config) { c.Execution.Commission = decimal.NewFromInt(-1) }},
		{"poll interval", func(c *Config) { c.Execution.PollInterval = "soon" }},
		{"data source", func(c *Config) { c.Data.Source = "ftp" }},
		{"csv path", func(c *Config) { c.Data.Source = "csv" }},
		{"interval", func(c *Config) { c.Data.Interval = "1w" }},
		{"dates", func(c *Config) { c.Data.From, c.Data.To = "2024-02-01", "2024-01-01" }},
		{"redis ttl", func(c *Config) { c.Data.Redis.TTL = "forever" }},
		{"journal type", func(c *Config) { c.Journal.Type = "mongo" }},
		{"journal csv dir", func(c *Config) { c.Journal.Type = "csv" }},
		{"journal sqlite path", func(c *Config) { c.Journal.Type = "sqlite" }},
		{"journal postgres dsn", func(c *Config) { c.Journal.Type = "postgres" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTemplateConfigurationError(t *testing.T) {
	cfg := Default()
	cfg.Strategy.QtyPerLevel = 0

	_, err := cfg.Template()
	var ce *grid.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "qty_per_level", ce.Field)
}

func TestFillModel(t *testing.T) {
	cfg := Default()
	cfg.Execution.Slippage = decimal.RequireFromString("0.05")
	m, err := cfg.FillModel()
	require.NoError(t, err)
	assert.True(t, m.Config().Slippage.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, m.Commission().Equal(decimal.NewFromInt(1)))
}

func TestDataSourceAndJournal(t *testing.T) {
	cfg := Default()
	cfg.Data.Redis = RedisConfig{Addr: "localhost:6379", DB: 2, TTL: "10m"}
	ds, err := cfg.DataSource()
	require.NoError(t, err)
	assert.Equal(t, data.SourceSynthetic, ds.Source)
	assert.Equal(t, 10*time.Minute, ds.CacheTTL)
	assert.Equal(t, 2, ds.RedisDB)

	cfg.Journal = JournalConfig{Type: "sqlite", DBPath: "j.db"}
	jc := cfg.JournalConfig()
	assert.Equal(t, "sqlite", jc.Type)
	assert.Equal(t, "j.db", jc.DBPath)
}

func TestPollIntervalAndLogLevel(t *testing.T) {
	cfg := Default()
	d, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)

	cfg.Log.Level = "debug"
	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	cfg.Log.Level = ""
	lvl, err = cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}
