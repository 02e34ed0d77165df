package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/gridtrader/fill"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/internal/logx"
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete gridtrader configuration
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Strategy  StrategyConfig  `json:"strategy" yaml:"strategy"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Data      DataConfig      `json:"data" yaml:"data"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

type AccountConfig struct {
	ID             string          `json:"id" yaml:"id"`
	Currency       string          `json:"currency" yaml:"currency"`
	InitialCapital decimal.Decimal `json:"initial_capital" yaml:"initial_capital"`
}

// StrategyConfig describes the grid template.
type StrategyConfig struct {
	ID          string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string          `json:"name,omitempty" yaml:"name,omitempty"`
	Symbol      string          `json:"symbol" yaml:"symbol"`
	Side        string          `json:"side" yaml:"side"`
	AnchorPrice decimal.Decimal `json:"anchor_price" yaml:"anchor_price"`
	Step        decimal.Decimal `json:"step" yaml:"step"`
	StepMode    string          `json:"step_mode" yaml:"step_mode"`
	Levels      int             `json:"levels" yaml:"levels"`
	QtyPerLevel int64           `json:"qty_per_level" yaml:"qty_per_level"`

	TickSize      *decimal.Decimal `json:"tick_size,omitempty" yaml:"tick_size,omitempty"`
	GuardianMode  string           `json:"guardian_mode,omitempty" yaml:"guardian_mode,omitempty"`
	GuardianValue *decimal.Decimal `json:"guardian_value,omitempty" yaml:"guardian_value,omitempty"`

	AutoRestart      bool             `json:"auto_restart" yaml:"auto_restart"`
	AutoStartTrigger *decimal.Decimal `json:"auto_start_trigger,omitempty" yaml:"auto_start_trigger,omitempty"`
	// MultiPosition lets every level hold a position at the same time.
	MultiPosition bool `json:"multi_position" yaml:"multi_position"`
}

// ExecutionConfig parameterizes the fill model and the paper broker.
type ExecutionConfig struct {
	Commission             decimal.Decimal `json:"commission" yaml:"commission"`
	Slippage               decimal.Decimal `json:"slippage" yaml:"slippage"`
	FillProbability        float64         `json:"fill_probability" yaml:"fill_probability"`
	PartialFillProbability float64         `json:"partial_fill_probability" yaml:"partial_fill_probability"`
	Seed                   int64           `json:"seed" yaml:"seed"`
	PollInterval           string          `json:"poll_interval" yaml:"poll_interval"` // e.g. "500ms"
	MaxAttempts            int             `json:"max_attempts" yaml:"max_attempts"`
}

type DataConfig struct {
	Source   string      `json:"source" yaml:"source"` // "csv" or "synthetic"
	Path     string      `json:"path,omitempty" yaml:"path,omitempty"`
	Seed     int64       `json:"seed" yaml:"seed"`
	From     string      `json:"from,omitempty" yaml:"from,omitempty"` // 2006-01-02
	To       string      `json:"to,omitempty" yaml:"to,omitempty"`
	Interval string      `json:"interval" yaml:"interval"` // "1d" or "1m"
	Redis    RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig enables the series cache when Addr is set.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db"`
	TTL      string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "none", "csv", "sqlite" or "postgres"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// OrgDir receives one Org report per run when set.
	OrgDir string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(b, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var b []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		b, err = yaml.Marshal(c)
	} else {
		b, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Account.InitialCapital.IsPositive() {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if _, err := c.Template(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if _, err := c.FillModel(); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	if _, err := c.PollInterval(); err != nil {
		return fmt.Errorf("execution.poll_interval: %w", err)
	}
	if c.Execution.MaxAttempts < 0 {
		return fmt.Errorf("execution.max_attempts must not be negative")
	}

	switch data.Source(strings.ToLower(c.Data.Source)) {
	case data.SourceSynthetic:
	case data.SourceCSV:
		if c.Data.Path == "" {
			return fmt.Errorf("data.path is required for the csv source")
		}
	default:
		return fmt.Errorf("data.source must be 'csv' or 'synthetic'")
	}
	if _, err := c.DataRequest(); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := c.DataSource(); err != nil {
		return fmt.Errorf("data.redis: %w", err)
	}

	switch strings.ToLower(c.Journal.Type) {
	case "", "none":
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal.dir required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for SQLite type")
		}
	case "postgres":
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal.dsn required for Postgres type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv', 'sqlite' or 'postgres'")
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "text" && f != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// Template converts the strategy section into an immutable grid template.
func (c *Config) Template() (grid.Template, error) {
	s := c.Strategy

	side, err := grid.ParseSide(s.Side)
	if err != nil {
		return grid.Template{}, err
	}
	mode, err := grid.ParseStepMode(s.StepMode)
	if err != nil {
		return grid.Template{}, err
	}
	if mode == "" {
		mode = grid.Absolute
	}
	gmode, err := grid.ParseStepMode(s.GuardianMode)
	if err != nil {
		return grid.Template{}, err
	}

	t := grid.Template{
		ID:           s.ID,
		Name:         s.Name,
		Symbol:       strings.ToUpper(strings.TrimSpace(s.Symbol)),
		Side:         side,
		AnchorPrice:  s.AnchorPrice,
		Step:         s.Step,
		StepMode:     mode,
		Levels:       s.Levels,
		QtyPerLevel:  s.QtyPerLevel,
		GuardianMode: gmode,
		AutoRestart:  s.AutoRestart,
	}
	if t.ID == "" {
		t.ID = strings.ToLower(t.Symbol) + "-" + strings.ToLower(string(side))
	}
	if s.TickSize != nil {
		t.TickSize = *s.TickSize
	}
	if s.GuardianValue != nil {
		t.GuardianValue = *s.GuardianValue
	}
	if s.AutoStartTrigger != nil {
		t.AutoStartTrigger = decimal.NewNullDecimal(*s.AutoStartTrigger)
	}

	if err := t.Validate(); err != nil {
		return grid.Template{}, err
	}
	return t, nil
}

// FillConfig returns the fill model parameters.
func (c *Config) FillConfig() fill.Config {
	return fill.Config{
		Slippage:               c.Execution.Slippage,
		Commission:             c.Execution.Commission,
		FillProbability:        c.Execution.FillProbability,
		PartialFillProbability: c.Execution.PartialFillProbability,
	}
}

// FillModel builds the seeded fill model.
func (c *Config) FillModel() (*fill.Simulated, error) {
	return fill.NewSimulated(c.FillConfig(), c.Execution.Seed)
}

// PollInterval parses execution.poll_interval; empty means the broker
// default.
func (c *Config) PollInterval() (time.Duration, error) {
	if c.Execution.PollInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Execution.PollInterval)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// DataSource returns the provider configuration.
func (c *Config) DataSource() (data.Config, error) {
	out := data.Config{
		Source:        data.Source(strings.ToLower(c.Data.Source)),
		Path:          c.Data.Path,
		Seed:          c.Data.Seed,
		RedisAddr:     c.Data.Redis.Addr,
		RedisPassword: c.Data.Redis.Password,
		RedisDB:       c.Data.Redis.DB,
	}
	if c.Data.Redis.TTL != "" {
		ttl, err := time.ParseDuration(c.Data.Redis.TTL)
		if err != nil {
			return data.Config{}, err
		}
		out.CacheTTL = ttl
	}
	return out, nil
}

// DataRequest returns the series request for the strategy symbol.
func (c *Config) DataRequest() (data.Request, error) {
	iv, err := data.ParseInterval(c.Data.Interval)
	if err != nil {
		return data.Request{}, err
	}
	req := data.Request{Symbol: strings.ToUpper(c.Strategy.Symbol), Interval: iv}
	if req.From, err = parseDate(c.Data.From); err != nil {
		return data.Request{}, fmt.Errorf("from: %w", err)
	}
	if req.To, err = parseDate(c.Data.To); err != nil {
		return data.Request{}, fmt.Errorf("to: %w", err)
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.To.Before(req.From) {
		return data.Request{}, fmt.Errorf("to is before from")
	}
	return req, nil
}

// JournalConfig returns the journal backend configuration.
func (c *Config) JournalConfig() journal.Config {
	return journal.Config{
		Type:   c.Journal.Type,
		Dir:    c.Journal.Dir,
		DBPath: c.Journal.DBPath,
		DSN:    c.Journal.DSN,
	}
}

// LogLevel parses log.level; empty means info.
func (c *Config) LogLevel() (slog.Level, error) {
	lvl, err := logx.ParseLevel(c.Log.Level)
	if err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:             "PAPER-001",
			Currency:       "USD",
			InitialCapital: decimal.NewFromInt(100000),
		},
		Strategy: StrategyConfig{
			Name:        "default",
			Symbol:      "TEST",
			Side:        string(grid.Long),
			AnchorPrice: decimal.NewFromInt(100),
			Step:        decimal.NewFromInt(1),
			StepMode:    string(grid.Absolute),
			Levels:      5,
			QtyPerLevel: 10,
		},
		Execution: ExecutionConfig{
			Commission:             decimal.NewFromInt(1),
			Slippage:               decimal.Zero,
			FillProbability:        0.95,
			PartialFillProbability: 0.10,
			Seed:                   42,
			PollInterval:           "500ms",
			MaxAttempts:            10,
		},
		Data: DataConfig{
			Source:   string(data.SourceSynthetic),
			Seed:     42,
			From:     "2024-01-01",
			To:       "2024-03-31",
			Interval: string(data.Daily),
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
