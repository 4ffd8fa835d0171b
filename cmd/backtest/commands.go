package main

import (
	"context"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/internal/monitoring"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/reporting"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/storage"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/validation"
)

type command func(ctx context.Context, a *app) error

var commands = map[string]command{
	"run":  runSingle,
	"grid": runGrid,
	"wfo":  runWalkForward,
	"cscv": runCSCV,
}

func runSingle(ctx context.Context, a *app) error {
	series, err := a.loadSeries()
	if err != nil {
		return err
	}
	params := a.exp.StrategyParams()

	a.status.Begin("backtest", 1)
	res, err := a.pool.Executor().Run(series, params)
	if err != nil {
		return err
	}
	a.status.Increment()

	a.log.Info("backtest complete",
		logger.String("params", params.Key()),
		logger.Int("trades", res.Summary.TotalTrades),
		logger.Float64("cagr", res.Summary.CAGR),
		logger.Float64("mdd", res.Summary.MDD))

	if _, err := a.persist(ctx, storage.KindBacktest, func(ctx context.Context, s *storage.SQLiteStore) (string, error) {
		return s.SaveBacktest(ctx, a.exp.Name, res)
	}); err != nil {
		return err
	}
	return a.report(&reporting.Report{Name: a.exp.Name, Run: res}, "backtest")
}

// gridSweep evaluates the whole grid and re-runs the best combination for its ledger
func (a *app) gridSweep(ctx context.Context, collectReturns bool) ([]backtest.GridResult, backtest.SelectionMetric, *backtest.Result, error) {
	metric, err := a.exp.GridMetric()
	if err != nil {
		return nil, "", nil, err
	}
	series, err := a.loadSeries()
	if err != nil {
		return nil, "", nil, err
	}
	combos, err := a.combinations()
	if err != nil {
		return nil, "", nil, err
	}

	rows, err := a.pool.ExecuteParallel(ctx, series, combos, backtest.Options{CollectReturns: collectReturns})
	if err != nil {
		return nil, "", nil, err
	}
	best, err := backtest.SelectBest(rows, metric)
	if err != nil {
		return nil, "", nil, err
	}
	a.log.Info("grid search complete",
		logger.Int("rows", len(rows)),
		logger.String("metric", string(metric)),
		logger.String("best", rows[best].Params.Key()),
		logger.Float64("value", metric.Value(rows[best].Summary)))

	run, err := a.pool.Executor().Run(series, rows[best].Params)
	if err != nil {
		return nil, "", nil, err
	}
	return rows, metric, run, nil
}

func runGrid(ctx context.Context, a *app) error {
	rows, metric, run, err := a.gridSweep(ctx, false)
	if err != nil {
		return err
	}
	if _, err := a.persist(ctx, storage.KindGrid, func(ctx context.Context, s *storage.SQLiteStore) (string, error) {
		return s.SaveGrid(ctx, a.exp.Name, metric, rows)
	}); err != nil {
		return err
	}
	return a.report(&reporting.Report{Name: a.exp.Name, Run: run, Grid: rows, Metric: metric}, "grid")
}

func runWalkForward(ctx context.Context, a *app) error {
	cfg, err := a.exp.WalkForwardConfig()
	if err != nil {
		return err
	}
	series, err := a.loadSeries()
	if err != nil {
		return err
	}
	combos, err := a.combinations()
	if err != nil {
		return err
	}

	res, err := validation.NewWalkForwardValidator(a.pool, a.pool.Executor(), a.log).
		WithStatus(a.status).
		Validate(ctx, series, combos, cfg)
	if err != nil {
		return err
	}
	a.log.Info("walk-forward complete",
		logger.Int("windows", len(res.Windows)),
		logger.Int("skipped", res.Skipped),
		logger.Int("distinct_params", res.DistinctParams),
		logger.Float64("oos_cagr", res.Summary.CAGR))

	if _, err := a.persist(ctx, storage.KindWalkForward, func(ctx context.Context, s *storage.SQLiteStore) (string, error) {
		return s.SaveWalkForward(ctx, a.exp.Name, cfg, res)
	}); err != nil {
		return err
	}
	return a.report(&reporting.Report{Name: a.exp.Name, WalkForward: res, Metric: cfg.Metric}, "wfo")
}

func runCSCV(ctx context.Context, a *app) error {
	rows, metric, run, err := a.gridSweep(ctx, true)
	if err != nil {
		return err
	}

	pbo, err := validation.RunCSCV(ctx, rows, a.exp.CSCV.Blocks, a.pool.Workers())
	if err != nil {
		return err
	}
	monitoring.SetPBO(pbo.PBO)

	dsr, _, err := validation.DeflatedSharpeFromGrid(rows, metric)
	if err != nil {
		return err
	}
	monitoring.SetDSR(dsr.DSR)

	a.log.Info("overfitting statistics",
		logger.Float64("pbo", pbo.PBO),
		logger.Int("valid_splits", pbo.ValidSplits),
		logger.Float64("dsr", dsr.DSR),
		logger.Int("trials", dsr.Trials))

	if _, err := a.persist(ctx, storage.KindGrid, func(ctx context.Context, s *storage.SQLiteStore) (string, error) {
		id, err := s.SaveGrid(ctx, a.exp.Name, metric, rows)
		if err != nil {
			return "", err
		}
		return id, s.SaveOverfitting(ctx, id, pbo, dsr)
	}); err != nil {
		return err
	}
	return a.report(&reporting.Report{Name: a.exp.Name, Run: run, Grid: rows, Metric: metric, PBO: pbo, DSR: dsr}, "cscv")
}
