// Package data loads price series for the engine.
//
// Every provider returns a series sorted by time with duplicate timestamps
// removed, the last row winning.
package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/gridtrader/market"
)

// Interval is the bar size of a request.
type Interval string

const (
	Daily  Interval = "1d"
	Minute Interval = "1m"
)

// Step returns the duration of one bar.
func (i Interval) Step() time.Duration {
	if i == Minute {
		return time.Minute
	}
	return 24 * time.Hour
}

// ParseInterval accepts 1d, 1m and the words daily and minute.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1d", "d", "daily", "day":
		return Daily, nil
	case "1m", "m", "minute", "1min":
		return Minute, nil
	}
	return "", fmt.Errorf("data: unknown interval %q", s)
}

// Request selects a series. Zero From or To leaves that side open where the
// provider allows it.
type Request struct {
	Symbol   string    `json:"symbol"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Interval Interval  `json:"interval"`
}

// Provider supplies price series.
type Provider interface {
	Load(ctx context.Context, req Request) (market.Series, error)
	Close() error
}

// Source names a provider implementation.
type Source string

const (
	SourceCSV       Source = "csv"
	SourceSynthetic Source = "synthetic"
)

// Config selects and configures a provider. A non-empty RedisAddr wraps it in
// a CachedProvider.
type Config struct {
	Source Source
	// Path is a CSV file, or a directory holding <SYMBOL>.csv files.
	Path string
	Seed int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

// Open builds the provider described by cfg.
func Open(cfg Config) (Provider, error) {
	var p Provider
	switch Source(strings.ToLower(string(cfg.Source))) {
	case SourceCSV:
		if cfg.Path == "" {
			return nil, fmt.Errorf("data: csv source needs a path")
		}
		p = NewCSVProvider(cfg.Path)
	case SourceSynthetic, "":
		p = NewSyntheticProvider(cfg.Seed)
	default:
		return nil, fmt.Errorf("data: unknown source %q", cfg.Source)
	}

	if cfg.RedisAddr == "" {
		return p, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewCachedProvider(p, rdb, cfg.CacheTTL, string(cfg.Source)), nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
