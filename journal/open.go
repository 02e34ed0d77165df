package journal

import (
	"context"
	"fmt"
	"strings"
)

// Config selects a journal backend.
type Config struct {
	// Type is none, csv, sqlite or postgres.
	Type   string
	Dir    string
	DBPath string
	DSN    string
}

// Open builds the journal described by cfg. An empty type means Nop.
func Open(ctx context.Context, cfg Config) (Journal, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return Nop{}, nil
	case "csv":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("journal: csv needs a directory")
		}
		return NewCSV(cfg.Dir)
	case "sqlite":
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("journal: sqlite needs db_path")
		}
		return NewSQLite(cfg.DBPath)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("journal: postgres needs a dsn")
		}
		return NewPostgres(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("journal: unknown type %q", cfg.Type)
}
