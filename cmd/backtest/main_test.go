package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/storage"
)

// writeWaveCSV writes weekday bars following a slow sine wave on a rising trend
func writeWaveCSV(t *testing.T, dir string, from, to time.Time) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	i := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		c := 100 + 0.05*float64(i) + 15*math.Sin(float64(i)/20)
		o := c - 0.3
		fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,1000\n", d.Format("2006-01-02"), o, c+0.5, o-0.5, c)
		i++
	}
	path := filepath.Join(dir, "wave.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func writeExperiment(t *testing.T, dir, csvPath string) string {
	t.Helper()
	yaml := fmt.Sprintf(`name: wave test
data:
  signal: %s
strategy:
  ma_window: 20
  buy_buffer_pct: 0.01
  sell_buffer_pct: 0.01
grid:
  ma_window: [10, 20, 40]
  buy_buffer_pct: [0.0, 0.02]
walk_forward:
  train_years: 1
  test_years: 1
cscv:
  blocks: 6
execution_pool:
  max_workers: 2
output:
  dir: %s
  sqlite: %s
log:
  level: error
`, csvPath, filepath.Join(dir, "results"), filepath.Join(dir, "runs.db"))
	path := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func setupExperiment(t *testing.T) (dir, cfg string) {
	dir = t.TempDir()
	csv := writeWaveCSV(t, dir,
		time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC))
	return dir, writeExperiment(t, dir, csv)
}

func noEnv(dir string) string {
	return filepath.Join(dir, "missing.env")
}

func TestRun_UsageErrors(t *testing.T) {
	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 2, run([]string{"optimize"}))
	assert.Equal(t, 0, run([]string{"help"}))
	assert.Equal(t, 0, run([]string{"version"}))
	assert.Equal(t, 2, run([]string{"run"}), "missing -config")
	assert.Equal(t, 2, run([]string{"run", "-bogus"}))
}

func TestRun_ConfigErrorsExitWithTwo(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, 2, run([]string{"run", "-config", filepath.Join(dir, "nope.yaml"), "-env", noEnv(dir)}))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("data:\n  signal: x.csv\ncscv:\n  blocks: 7\n"), 0o644))
	assert.Equal(t, 2, run([]string{"grid", "-config", bad, "-env", noEnv(dir)}))
}

func TestRun_MissingDataExitsWithTwo(t *testing.T) {
	dir := t.TempDir()
	cfg := writeExperiment(t, dir, filepath.Join(dir, "absent.csv"))
	assert.Equal(t, 2, run([]string{"run", "-config", cfg, "-env", noEnv(dir), "-console-only"}))
}

func TestRun_SingleBacktestWritesReports(t *testing.T) {
	dir, cfg := setupExperiment(t)
	require.Equal(t, 0, run([]string{"run", "-config", cfg, "-env", noEnv(dir)}))

	out := filepath.Join(dir, "results", "wave_test_backtest")
	assert.FileExists(t, filepath.Join(out, "trades.csv"))
	assert.FileExists(t, filepath.Join(out, "equity.csv"))
	assert.FileExists(t, filepath.Join(out, "report.xlsx"))
	assert.NoFileExists(t, filepath.Join(out, "grid.csv"))
}

func TestRun_ConsoleOnlySkipsFilesAndDatabase(t *testing.T) {
	dir, cfg := setupExperiment(t)
	require.Equal(t, 0, run([]string{"grid", "-config", cfg, "-env", noEnv(dir), "-console-only"}))
	assert.NoDirExists(t, filepath.Join(dir, "results"))
	assert.NoFileExists(t, filepath.Join(dir, "runs.db"))
}

func TestRun_CSCVStoresOverfittingStatistics(t *testing.T) {
	dir, cfg := setupExperiment(t)
	require.Equal(t, 0, run([]string{"cscv", "-config", cfg, "-env", noEnv(dir), "-workers", "3"}))

	out := filepath.Join(dir, "results", "wave_test_cscv")
	assert.FileExists(t, filepath.Join(out, "grid.csv"))
	assert.FileExists(t, filepath.Join(out, "best.json"))
	assert.FileExists(t, filepath.Join(out, "validation.json"))

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "runs.db"), logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	runs, err := store.ListRuns(ctx, storage.KindGrid)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	rows, err := store.GridResults(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	stats, err := store.Overfitting(ctx, runs[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stats.PBO)
	require.NotNil(t, stats.DSR)
	assert.GreaterOrEqual(t, stats.PBO.PBO, 0.0)
	assert.LessOrEqual(t, stats.PBO.PBO, 1.0)
	assert.Equal(t, 6, stats.DSR.Trials)
}

func TestRun_WalkForward(t *testing.T) {
	dir, cfg := setupExperiment(t)
	require.Equal(t, 0, run([]string{"wfo", "-config", cfg, "-env", noEnv(dir)}))

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "runs.db"), logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), storage.KindWalkForward)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	windows, err := store.WalkForwardWindows(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, windows, 2)
	assert.FileExists(t, filepath.Join(dir, "results", "wave_test_wfo", "validation.json"))
}
