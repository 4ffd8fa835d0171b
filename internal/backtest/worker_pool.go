package backtest

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/indicators"
	"github.com/ducminhle1904/bufferzone-backtest/internal/monitoring"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// GridResult is one evaluated parameter combination
type GridResult struct {
	Index   int                     `json:"index"`
	Params  strategy.StrategyParams `json:"params"`
	Summary types.Summary           `json:"summary"`
	// Returns holds the daily returns of the run when Options.CollectReturns is set
	Returns []float64 `json:"-"`
}

// Options adjusts a parallel grid evaluation
type Options struct {
	// StartDate is forwarded to every run as RunOptions.StartDate
	StartDate time.Time
	// CollectReturns attaches each run's daily returns to its GridResult
	CollectReturns bool
}

// DefaultMaxWorkers is CPU count minus one, at least one
func DefaultMaxWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

type gridJob struct {
	index  int
	params strategy.StrategyParams
}

type maKey struct {
	maType indicators.MAType
	window int
}

// WorkerContext is the per-worker state built once by GridPool.Initialize.
// It owns a private copy of the series arrays and a memo of moving averages,
// and is only ever touched by its own worker goroutine.
type WorkerContext struct {
	ID       int
	series   *types.AlignedSeries
	closes   []float64
	maCache  map[maKey][]float64
	executor *Executor
	tasks    int
}

func newWorkerContext(id int, series *types.AlignedSeries, executor *Executor) *WorkerContext {
	local := &types.AlignedSeries{
		Signal: make([]types.OHLCV, series.Len()),
		Trade:  make([]types.OHLCV, series.Len()),
	}
	copy(local.Signal, series.Signal)
	copy(local.Trade, series.Trade)

	return &WorkerContext{
		ID:       id,
		series:   local,
		closes:   signalCloses(local),
		maCache:  make(map[maKey][]float64),
		executor: executor,
	}
}

// Tasks returns the number of combinations this worker has evaluated
func (w *WorkerContext) Tasks() int {
	return w.tasks
}

func (w *WorkerContext) movingAverage(window int) ([]float64, error) {
	key := maKey{maType: w.executor.exec.MAType, window: window}
	if ma, ok := w.maCache[key]; ok {
		return ma, nil
	}
	ma, err := indicators.MovingAverage(w.closes, window, key.maType)
	if err != nil {
		return nil, err
	}
	w.maCache[key] = ma
	return ma, nil
}

func (w *WorkerContext) run(job gridJob, opts Options) (GridResult, error) {
	w.tasks++

	ma, err := w.movingAverage(job.params.MAWindow)
	if err != nil {
		return GridResult{}, bterrors.WrapConfigError(err, "grid", "moving_average")
	}
	res, err := w.executor.RunWithOptions(w.series, job.params, RunOptions{StartDate: opts.StartDate, MA: ma})
	if err != nil {
		return GridResult{}, err
	}

	out := GridResult{
		Index:   job.index,
		Params:  job.params,
		Summary: res.Summary,
	}
	if opts.CollectReturns {
		out.Returns = DailyReturns(res.Equity)
	}
	return out, nil
}

func (w *WorkerContext) work(ctx context.Context, jobs <-chan gridJob, results chan<- GridResult, opts Options, status *monitoring.SweepStatus) error {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		res, err := w.run(job, opts)
		monitoring.RecordGridTask(err, time.Since(started))
		if err != nil {
			return bterrors.WrapTaskError(err, "grid", job.index).WithContext("params", job.params.Key())
		}

		results <- res
		status.Increment()
	}
	return nil
}

// GridPool evaluates parameter grids on a fixed set of workers.
// Worker contexts survive between calls and are rebuilt only when the payload changes.
type GridPool struct {
	workerCount int
	executor    *Executor
	log         *logger.Logger
	status      *monitoring.SweepStatus

	mu          sync.Mutex
	workers     []*WorkerContext
	source      *types.AlignedSeries
	fingerprint types.Fingerprint
	rebuilds    int
}

// NewGridPool creates a pool of maxWorkers workers; maxWorkers <= 0 selects DefaultMaxWorkers
func NewGridPool(maxWorkers int, exec strategy.ExecutionConfig, log *logger.Logger) *GridPool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers()
	}
	return &GridPool{
		workerCount: maxWorkers,
		executor:    NewExecutor(exec),
		log:         logger.OrNop(log).With(logger.String("component", "grid")),
	}
}

// WithStatus reports per-combination progress to s
func (p *GridPool) WithStatus(s *monitoring.SweepStatus) *GridPool {
	p.status = s
	return p
}

func (p *GridPool) Workers() int {
	return p.workerCount
}

// Executor returns the executor shared by the workers
func (p *GridPool) Executor() *Executor {
	return p.executor
}

// Rebuilds returns how many times worker caches have been built
func (p *GridPool) Rebuilds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rebuilds
}

// Initialize is the worker-init hook: it builds every worker context from series.
// Contexts built for the same payload are kept; a different payload clears and
// rebuilds all of them. It reports whether a rebuild happened.
func (p *GridPool) Initialize(series *types.AlignedSeries) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialize(series)
}

func (p *GridPool) initialize(series *types.AlignedSeries) bool {
	fp := series.Fingerprint()
	if p.workers != nil && p.source == series && p.fingerprint == fp {
		return false
	}

	p.workers = make([]*WorkerContext, p.workerCount)
	for i := range p.workers {
		p.workers[i] = newWorkerContext(i, series, p.executor)
	}
	p.source = series
	p.fingerprint = fp
	p.rebuilds++
	monitoring.RecordCacheRebuild()
	p.log.Debug("worker caches rebuilt",
		logger.Int("workers", p.workerCount), logger.Int("rows", fp.Rows),
		logger.Date("first", fp.First), logger.Date("last", fp.Last))
	return true
}

// ExecuteParallel evaluates every combination over series and returns one result per
// combination in input order. Every combination is validated before any work starts.
// The first failing combination cancels the batch and its error is returned; no
// partial results are returned.
func (p *GridPool) ExecuteParallel(ctx context.Context, series *types.AlignedSeries, combos []strategy.StrategyParams, opts Options) ([]GridResult, error) {
	if len(combos) == 0 {
		return nil, bterrors.NewConfigError("grid", "execute", "parameter grid is empty")
	}
	for i, params := range combos {
		if err := params.Validate(); err != nil {
			return nil, bterrors.WrapConfigError(err, "grid", "execute").WithContext("index", i)
		}
	}
	if series.Len() == 0 {
		return nil, bterrors.NewDataValidationError("grid", "execute", "empty series")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialize(series)

	active := p.workers[:min(len(p.workers), len(combos))]
	p.status.Begin("grid", len(combos))
	p.log.Debug("grid started", logger.Int("combinations", len(combos)), logger.Int("workers", len(active)))
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	jobQueue := make(chan gridJob)
	resultQueue := make(chan GridResult, len(combos))

	g.Go(func() error {
		defer close(jobQueue)
		for i, params := range combos {
			select {
			case jobQueue <- gridJob{index: i, params: params}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for _, w := range active {
		g.Go(func() error {
			return w.work(gctx, jobQueue, resultQueue, opts, p.status)
		})
	}

	err := g.Wait()
	close(resultQueue)
	if err != nil {
		p.status.Fail(err)
		p.log.Error("grid aborted", logger.Err(err))
		return nil, err
	}

	results := make([]GridResult, 0, len(combos))
	for res := range resultQueue {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	p.log.Debug("grid finished", logger.Int("combinations", len(results)), logger.Duration("elapsed", time.Since(started)))
	return results, nil
}
