// Package logx configures the process wide slog logger.
package logx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel accepts debug, info, warn or error in any case. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// New builds a logger writing to w in the given format ("text" or "json").
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("log format must be 'text' or 'json', got %q", format)
}

// Setup is New followed by slog.SetDefault.
func Setup(level, format string, w io.Writer) (*slog.Logger, error) {
	l, err := New(level, format, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}
