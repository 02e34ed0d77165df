package data

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/shopspring/decimal"
	"github.com/ulikunitz/xz"
)

// CSVProvider reads OHLCV rows:
//
//	time,open,high,low,close[,volume]
//
// time is RFC3339, "2006-01-02 15:04:05" or "2006-01-02". A header row is
// allowed and empty or short rows are skipped. Files ending in .gz or .xz
// are decompressed on the fly.
type CSVProvider struct {
	path string
}

func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{path: path}
}

func (p *CSVProvider) Close() error { return nil }

// Load reads the file for req.Symbol. When the provider path is a directory
// the file is <dir>/<SYMBOL>.csv, with .csv.gz and .csv.xz tried as well.
func (p *CSVProvider) Load(ctx context.Context, req Request) (market.Series, error) {
	path, err := p.resolve(req.Symbol)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := decompress(f, path)
	if err != nil {
		return nil, fmt.Errorf("data: %s: %w", path, err)
	}

	s, err := ReadCSV(ctx, r, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("data: %s: %w", path, err)
	}
	return s, nil
}

func (p *CSVProvider) resolve(symbol string) (string, error) {
	st, err := os.Stat(p.path)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return p.path, nil
	}
	if symbol == "" {
		return "", fmt.Errorf("data: symbol is required to pick a file in %s", p.path)
	}
	for _, ext := range []string{".csv", ".csv.gz", ".csv.xz"} {
		candidate := filepath.Join(p.path, strings.ToUpper(symbol)+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("data: no csv file for %s in %s", symbol, p.path)
}

func decompress(r io.Reader, path string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(path, ".xz"):
		return xz.NewReader(r)
	}
	return r, nil
}

// ReadCSV parses OHLCV rows from r and keeps those in [from, to).
// Malformed values fail with a *grid.DataError naming the row.
func ReadCSV(ctx context.Context, r io.Reader, from, to time.Time) (market.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out market.Series
	for row := 0; ; row++ {
		if row%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if row == 0 && len(rec) > 0 && isHeader(rec[0]) {
			continue
		}

		c, ok, err := parseCandleRow(rec)
		if err != nil {
			return nil, &grid.DataError{Index: row, Reason: err.Error()}
		}
		if !ok || !inRange(c.Time, from, to) {
			continue
		}
		out = append(out, c)
	}
	return market.Dedupe(out), nil
}

func isHeader(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "time" || s == "date" || s == "timestamp"
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func parseCandleRow(rec []string) (market.Candle, bool, error) {
	if len(rec) < 5 {
		return market.Candle{}, false, nil
	}
	ts := strings.TrimSpace(rec[0])
	if ts == "" {
		return market.Candle{}, false, nil
	}

	t, err := parseTime(ts)
	if err != nil {
		return market.Candle{}, false, err
	}

	var vals [4]decimal.Decimal
	names := [4]string{"open", "high", "low", "close"}
	for i := range vals {
		v, err := decimal.NewFromString(strings.TrimSpace(rec[i+1]))
		if err != nil {
			return market.Candle{}, false, fmt.Errorf("bad %s %q", names[i], rec[i+1])
		}
		vals[i] = v
	}

	var vol int64
	if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		if err != nil {
			return market.Candle{}, false, fmt.Errorf("bad volume %q", rec[5])
		}
		vol = int64(f)
	}

	return market.Candle{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vol,
	}, true, nil
}
