package data

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const sampleCSV = `time,open,high,low,close,volume
2024-01-03,101,102,100,101.5,2000
2024-01-01,100,101,99,100.5,1000
2024-01-02,100.5,103,100,102,1500

2024-01-02,100.5,103,100,102.25,1600
short,row
`

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestReadCSV(t *testing.T) {
	s, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, s, 3)

	assert.Equal(t, day(1), s[0].Time)
	assert.Equal(t, day(2), s[1].Time)
	assert.Equal(t, day(3), s[2].Time)

	// last duplicate wins
	assert.Equal(t, "102.25", s[1].Close.String())
	assert.Equal(t, int64(1600), s[1].Volume)
}

func TestReadCSVRange(t *testing.T) {
	s, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV), day(2), day(3))
	require.NoError(t, err)
	require.Len(t, s, 1)
	assert.Equal(t, day(2), s[0].Time)
}

func TestReadCSVTimeFormats(t *testing.T) {
	in := "2024-01-01T10:00:00Z,1,1,1,1\n2024-01-01 11:00:00,1,1,1,1\n"
	s, err := ReadCSV(context.Background(), strings.NewReader(in), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, 10, s[0].Time.Hour())
	assert.Equal(t, 11, s[1].Time.Hour())
	assert.Equal(t, int64(0), s[0].Volume)
}

func TestReadCSVBadRow(t *testing.T) {
	in := "time,open,high,low,close\n2024-01-01,1,1,1,1\n2024-01-02,1,x,1,1\n"
	_, err := ReadCSV(context.Background(), strings.NewReader(in), time.Time{}, time.Time{})
	require.Error(t, err)

	var de *grid.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Index)
	assert.Contains(t, de.Reason, "high")
}

func TestCSVProviderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	s, err := NewCSVProvider(path).Load(context.Background(), Request{})
	require.NoError(t, err)
	assert.Len(t, s, 3)
}

func TestCSVProviderDirectoryAndCompression(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL.csv.gz"), gz.Bytes(), 0o644))

	var x bytes.Buffer
	xw, err := xz.NewWriter(&x)
	require.NoError(t, err)
	_, err = xw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MSFT.csv.xz"), x.Bytes(), 0o644))

	p := NewCSVProvider(dir)
	for _, sym := range []string{"aapl", "MSFT"} {
		s, err := p.Load(context.Background(), Request{Symbol: sym})
		require.NoError(t, err, sym)
		assert.Len(t, s, 3, sym)
	}

	_, err = p.Load(context.Background(), Request{Symbol: "NOPE"})
	assert.Error(t, err)
	_, err = p.Load(context.Background(), Request{})
	assert.Error(t, err)
}

func TestSyntheticDeterministic(t *testing.T) {
	req := Request{Symbol: "TEST", From: day(1), To: day(10), Interval: Daily}

	a, err := NewSyntheticProvider(42).Load(context.Background(), req)
	require.NoError(t, err)
	b, err := NewSyntheticProvider(42).Load(context.Background(), req)
	require.NoError(t, err)
	c, err := NewSyntheticProvider(7).Load(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, a, 10)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	for i, bar := range a {
		assert.True(t, bar.High.GreaterThanOrEqual(bar.Open), "bar %d", i)
		assert.True(t, bar.High.GreaterThanOrEqual(bar.Close), "bar %d", i)
		assert.True(t, bar.Low.LessThanOrEqual(bar.Open), "bar %d", i)
		assert.True(t, bar.Low.LessThanOrEqual(bar.Close), "bar %d", i)
		assert.True(t, bar.Low.IsPositive(), "bar %d", i)
		assert.GreaterOrEqual(t, bar.Volume, int64(1_000_000))
		assert.Less(t, bar.Volume, int64(5_000_000))
	}
}

func TestSyntheticMinuteBars(t *testing.T) {
	from := day(1)
	s, err := NewSyntheticProvider(1).Load(context.Background(), Request{From: from, To: from.Add(59 * time.Minute), Interval: Minute})
	require.NoError(t, err)
	require.Len(t, s, 60)
	assert.Equal(t, time.Minute, s[1].Time.Sub(s[0].Time))
}

func TestParseInterval(t *testing.T) {
	for in, want := range map[string]Interval{"": Daily, "1d": Daily, "daily": Daily, "1m": Minute, "Minute": Minute} {
		got, err := ParseInterval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseInterval("1w")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	p, err := Open(Config{Source: SourceSynthetic, Seed: 3})
	require.NoError(t, err)
	assert.IsType(t, &SyntheticProvider{}, p)

	_, err = Open(Config{Source: SourceCSV})
	assert.Error(t, err)

	_, err = Open(Config{Source: "ftp"})
	assert.Error(t, err)

	p, err = Open(Config{Source: SourceSynthetic, RedisAddr: "127.0.0.1:1"})
	require.NoError(t, err)
	assert.IsType(t, &CachedProvider{}, p)
	assert.NoError(t, p.Close())
}

func TestCachedProviderFallsThrough(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	next := NewSyntheticProvider(42)
	c := NewCachedProvider(next, rdb, 0, "synthetic")
	defer c.Close()

	req := Request{Symbol: "test", From: day(1), To: day(5), Interval: Daily}
	got, err := c.Load(context.Background(), req)
	require.NoError(t, err)

	want, err := next.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, "gridtrader:series:synthetic:TEST:1d:1704067200:1704412800", c.Key(req))
}
