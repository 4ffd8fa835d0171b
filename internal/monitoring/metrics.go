package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Backtest metrics
	backtestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bzbt_backtest_runs_total",
			Help: "Total number of single backtest runs",
		},
		[]string{"status"},
	)

	backtestTrades = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bzbt_backtest_trades",
			Help:    "Distribution of closed trades per backtest run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// Grid scheduler metrics
	gridTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bzbt_grid_tasks_total",
			Help: "Total number of grid combinations evaluated",
		},
		[]string{"status"},
	)

	gridTaskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bzbt_grid_task_duration_seconds",
			Help:    "Wall time per grid combination",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	workerCacheRebuilds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bzbt_worker_cache_rebuilds_total",
			Help: "Number of times worker caches were rebuilt for a new payload",
		},
	)

	// Validation metrics
	wfoWindowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bzbt_wfo_windows_total",
			Help: "Walk-forward windows by outcome",
		},
		[]string{"status"},
	)

	pboValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bzbt_pbo",
			Help: "Probability of backtest overfitting of the last CSCV run",
		},
	)

	dsrValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bzbt_dsr",
			Help: "Deflated Sharpe ratio of the last evaluation",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bzbt_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(backtestRunsTotal)
	prometheus.MustRegister(backtestTrades)
	prometheus.MustRegister(gridTasksTotal)
	prometheus.MustRegister(gridTaskDuration)
	prometheus.MustRegister(workerCacheRebuilds)
	prometheus.MustRegister(wfoWindowsTotal)
	prometheus.MustRegister(pboValue)
	prometheus.MustRegister(dsrValue)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordBacktestRun records the outcome of one executor run
func RecordBacktestRun(err error, trades int) {
	if err != nil {
		backtestRunsTotal.WithLabelValues("error").Inc()
		return
	}
	backtestRunsTotal.WithLabelValues("ok").Inc()
	backtestTrades.Observe(float64(trades))
}

// RecordGridTask records one grid combination
func RecordGridTask(err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	gridTasksTotal.WithLabelValues(status).Inc()
	gridTaskDuration.Observe(elapsed.Seconds())
}

func RecordCacheRebuild() {
	workerCacheRebuilds.Inc()
}

// RecordWFOWindow records a walk-forward window as "ok", "skipped" or "excluded"
func RecordWFOWindow(status string) {
	wfoWindowsTotal.WithLabelValues(status).Inc()
}

func SetPBO(v float64) {
	pboValue.Set(v)
}

func SetDSR(v float64) {
	dsrValue.Set(v)
}

// RecordError records an error metric
func RecordError(category string) {
	if category == "" {
		category = "other"
	}
	errorsTotal.WithLabelValues(category).Inc()
}
