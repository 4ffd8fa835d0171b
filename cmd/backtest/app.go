package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/monitoring"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/config"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/data"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/reporting"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/storage"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// app bundles everything a command needs for one experiment
type app struct {
	exp     *config.Experiment
	exec    strategy.ExecutionConfig
	pool    *backtest.GridPool
	status  *monitoring.SweepStatus
	reports *reporting.ReportingManager
	store   *storage.SQLiteStore
	log     *logger.Logger
}

func newApp(exp *config.Experiment, f cliFlags, status *monitoring.SweepStatus, lg *logger.Logger) (*app, error) {
	exec, err := exp.ExecutionConfig()
	if err != nil {
		return nil, err
	}

	workers := exp.Pool.MaxWorkers
	if workers <= 0 {
		workers = backtest.DefaultMaxWorkers()
	}

	a := &app{
		exp:    exp,
		exec:   exec,
		pool:   backtest.NewGridPool(workers, exec, lg).WithStatus(status),
		status: status,
		log:    lg,
		reports: reporting.NewReportingManager(reporting.ReportingConfig{
			EnableConsole:   exp.Output.Console || f.consoleOnly,
			EnableFiles:     !f.consoleOnly,
			OutputDirectory: exp.Output.Dir,
			ExcelEnabled:    exp.Output.XLSX,
			CSVEnabled:      exp.Output.CSV,
			JSONEnabled:     exp.Output.JSON,
		}, os.Stdout, lg),
	}

	if exp.Output.SQLite != "" {
		store, err := storage.NewSQLiteStore(exp.Output.SQLite, lg)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	return a, nil
}

// Close releases the results database
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing results database", logger.Err(err))
	}
}

// loadSeries reads and aligns the configured data, then applies the trailing period
func (a *app) loadSeries() (*types.AlignedSeries, error) {
	start, end := a.exp.DateRange()
	dm := data.NewDataManager(a.log)

	loadStart := time.Now()
	series, err := dm.LoadAligned(a.exp.Data.Signal, a.exp.Data.Trade, start, end)
	if err != nil {
		return nil, err
	}

	if a.exp.Data.Period != "" {
		period, ok := data.ParseTrailingPeriod(a.exp.Data.Period)
		if !ok {
			return nil, bterrors.NewConfigError("cli", "load_series",
				fmt.Sprintf("invalid data.period %q, expected e.g. 10y or 500d", a.exp.Data.Period))
		}
		last := series.Date(series.Len() - 1)
		series = series.Slice(series.IndexOnOrAfter(last.Add(-period)), series.Len())
	}
	if series.Len() < 2 {
		return nil, bterrors.NewDataValidationError("cli", "load_series",
			fmt.Sprintf("only %d aligned rows after filtering", series.Len()))
	}

	a.log.Info("data loaded",
		logger.Int("rows", series.Len()),
		logger.Date("first", series.Date(0)),
		logger.Date("last", series.Date(series.Len()-1)),
		logger.Duration("elapsed", time.Since(loadStart)))
	return series, nil
}

// combinations expands the configured grid
func (a *app) combinations() ([]strategy.StrategyParams, error) {
	combos, err := a.exp.ParamGrid().Combinations()
	if err != nil {
		return nil, err
	}
	a.log.Info("parameter grid expanded",
		logger.Int("combinations", len(combos)),
		logger.Int("workers", a.pool.Workers()))
	return combos, nil
}

// report prints and writes report, logging every file produced
func (a *app) report(report *reporting.Report, mode string) error {
	files, err := a.reports.ReportResults(report, mode)
	if err != nil {
		return err
	}
	for _, f := range files {
		logSuccess("Wrote %s", f)
	}
	return nil
}

// persist runs fn against the results database if one is configured
func (a *app) persist(ctx context.Context, what string, fn func(ctx context.Context, s *storage.SQLiteStore) (string, error)) (string, error) {
	if a.store == nil {
		return "", nil
	}
	id, err := fn(ctx, a.store)
	if err != nil {
		return "", err
	}
	a.log.Info("results stored", logger.String("kind", what), logger.String("run_id", id))
	return id, nil
}
