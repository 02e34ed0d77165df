package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/gridtrader/config"
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command. Commands set the default slog logger, so
// these tests do not run in parallel.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "gridtrader (dev)\n", out)
}

func TestLadder(t *testing.T) {
	out, err := run(t, "ladder", "--anchor", "50", "--step", "2", "--levels", "3", "--qty", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "test-long TEST LONG")
	assert.Contains(t, out, "46")
	assert.Contains(t, out, "Required Capital: 147.00")
}

func TestLadderJSON(t *testing.T) {
	out, err := run(t, "ladder", "--side", "short", "--levels", "2", "--commission", "0", "--json")
	require.NoError(t, err)

	var got struct {
		Levels []struct {
			Entry string `json:"entry_price"`
			Exit  string `json:"exit_price"`
		} `json:"levels"`
		Analysis struct {
			PotentialProfit string `json:"potential_profit"`
		} `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Levels, 2)
	assert.Equal(t, "101", got.Levels[1].Entry)
	assert.Equal(t, "100", got.Levels[1].Exit)
	assert.Equal(t, "20", got.Analysis.PotentialProfit)
}

func TestLadderBadFlag(t *testing.T) {
	_, err := run(t, "ladder", "--step", "one")
	assert.ErrorContains(t, err, "bad --step")

	_, err = run(t, "ladder", "--step", "-1")
	assert.ErrorContains(t, err, "step")
}

func TestTwoPointPrices(t *testing.T) {
	out, err := run(t, "ladder", "two-point", "--open", "100", "--second", "104", "--levels", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "LONG ladder from 104, step 2")
	assert.Contains(t, out, "warning: the second price moved against LONG")
}

func TestTwoPointFromData(t *testing.T) {
	dir := t.TempDir()
	csv := "time,open,high,low,close,volume\n" +
		"2024-01-02T09:30:00Z,100,100.5,99.5,100,1000\n" +
		"2024-01-02T09:45:00Z,100,100.5,98.5,99,1000\n" +
		"2024-01-02T10:00:00Z,99,99.5,95.5,96,1000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SPY.csv"), []byte(csv), 0o644))

	out, err := run(t, "ladder", "two-point", "--data", dir, "--symbol", "SPY",
		"--from", "2024-01-02", "--to", "2024-01-03", "--delay", "30m", "--levels", "5", "--json")
	require.NoError(t, err)

	var got struct {
		Start    string `json:"start"`
		Step     string `json:"step"`
		Inverted bool   `json:"inverted"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "100", got.Start)
	assert.Equal(t, "1", got.Step)
	assert.False(t, got.Inverted)

	_, err = run(t, "ladder", "two-point", "--data", dir, "--symbol", "SPY",
		"--from", "2024-01-02", "--to", "2024-01-03", "--session-open", "11:00", "--json")
	assert.Error(t, err)
}

func TestBacktestText(t *testing.T) {
	out, err := run(t, "backtest", "--to", "2024-01-31", "--capital", "10000")
	require.NoError(t, err)
	assert.Contains(t, out, "Grid Backtest Result")
	assert.Contains(t, out, "Start Capital: 10000.00")
	assert.Contains(t, out, "synthetic(seed=42)")
}

func TestBacktestJournalAndOrg(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.sqlite")
	orgDir := filepath.Join(dir, "org")

	out, err := run(t, "backtest", "--to", "2024-01-31", "--db", db, "--org-dir", orgDir, "--json")
	require.NoError(t, err)

	var got struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.RunID, 26)

	j, err := journal.NewSQLite(db)
	require.NoError(t, err)
	defer j.Close()
	r, err := j.GetRun(context.Background(), got.RunID)
	require.NoError(t, err)
	assert.Equal(t, "TEST", r.Symbol)

	_, err = os.Stat(filepath.Join(orgDir, got.RunID+".org"))
	assert.NoError(t, err)
}

func TestBacktestDeterministic(t *testing.T) {
	a, err := run(t, "backtest", "--to", "2024-02-29", "--json")
	require.NoError(t, err)
	b, err := run(t, "backtest", "--to", "2024-02-29", "--json")
	require.NoError(t, err)

	var ra, rb struct {
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(a), &ra))
	require.NoError(t, json.Unmarshal([]byte(b), &rb))
	assert.JSONEq(t, string(ra.Result), string(rb.Result))
}

func TestBacktestInvalidConfig(t *testing.T) {
	_, err := run(t, "backtest", "--levels", "0")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")

	out, err := run(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	out, err = run(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "TEST LONG")

	out, err = run(t, "--config", path, "ladder", "--levels", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Potential Profit: 8.00")
}

func TestConfigValidateRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	cfg := config.Default()
	cfg.Strategy.Side = "SIDEWAYS"
	require.NoError(t, cfg.SaveToFile(path))

	_, err := run(t, "config", "validate", "-f", path)
	assert.Error(t, err)
}

func TestPaper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.yaml")
	cfg := config.Default()
	cfg.Execution.PollInterval = "5ms"
	cfg.Execution.MaxAttempts = 2
	require.NoError(t, cfg.SaveToFile(path))

	out, err := run(t, "--config", path, "paper", "--to", "2024-01-10", "--pace", "1ms", "--settle", "50ms", "--capital", "10000")
	require.NoError(t, err)
	assert.Contains(t, out, "Paper Session")
	assert.Contains(t, out, "Start Capital: 10000.00")
	assert.NotContains(t, out, "ENTRY_PLACED", "working entries are cancelled or settled at the end")
}
