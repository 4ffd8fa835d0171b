package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/monitoring"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/config"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
)

const usage = `Usage: backtest <command> -config <experiment.yaml> [flags]

Commands:
  run    backtest the strategy parameters once
  grid   grid-search the parameter grid in parallel
  wfo    walk-forward validation over calendar-year windows
  cscv   grid search plus CSCV probability of backtest overfitting and deflated Sharpe

Run 'backtest <command> -h' for flags.
`

// Logging functions for messages before the structured logger exists
func logError(format string, args ...interface{}) {
	log.Printf("❌ "+format, args...)
}

func logInfo(format string, args ...interface{}) {
	log.Printf("ℹ️  "+format, args...)
}

type cliFlags struct {
	configFile  string
	envFile     string
	metricsAddr string
	consoleOnly bool
	workers     int
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return 0
	case "-version", "--version", "version":
		fmt.Println(GetVersionInfo().String())
		return 0
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		logError("unknown command %q", name)
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	var f cliFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&f.configFile, "config", "", "Path to the experiment YAML file (required)")
	fs.StringVar(&f.envFile, "env", ".env", "Environment file with BZ_* overrides")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address (e.g. :9102)")
	fs.BoolVar(&f.consoleOnly, "console-only", false, "Only print tables, do not write report files or the results database")
	fs.IntVar(&f.workers, "workers", -1, "Grid worker count (overrides execution_pool.max_workers; 0 = CPU count - 1)")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if f.configFile == "" {
		logError("-config is required")
		fs.Usage()
		return 2
	}

	if err := config.LoadEnv(f.envFile); err != nil {
		logError("Could not load env file: %v", err)
		return bterrors.ExitCode(err)
	}
	exp, err := config.Load(f.configFile)
	if err != nil {
		logError("Failed to load configuration: %v", err)
		return bterrors.ExitCode(err)
	}
	if f.workers >= 0 {
		exp.Pool.MaxWorkers = f.workers
	}
	if f.consoleOnly {
		exp.Output.SQLite = ""
	}

	lg, err := logger.New(&exp.Log)
	if err != nil {
		logError("Failed to create logger: %v", err)
		return 2
	}
	lg = lg.With(logger.String("command", name), logger.String("experiment", exp.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := monitoring.NewSweepStatus()
	if f.metricsAddr != "" {
		srv := startMetricsServer(f.metricsAddr, status, lg)
		defer shutdownServer(srv)
	}

	a, err := newApp(exp, f, status, lg)
	if err != nil {
		return fail(lg, err)
	}
	defer a.Close()

	started := time.Now()
	if err := cmd(ctx, a); err != nil {
		status.Fail(err)
		return fail(lg, err)
	}
	lg.Info("done", logger.Duration("elapsed", time.Since(started)))
	return 0
}

// fail logs err at the CLI boundary, counts it, and converts it to an exit code
func fail(lg *logger.Logger, err error) int {
	category := string(bterrors.CategoryOf(err))
	if category == "" {
		category = "OTHER"
	}
	monitoring.RecordError(category)

	fields := []logger.Field{logger.Err(err), logger.String("category", category)}
	var be *bterrors.BacktestError
	if errors.As(err, &be) {
		for k, v := range be.Context {
			fields = append(fields, logger.Any(k, v))
		}
	}
	lg.Error("command failed", fields...)
	return bterrors.ExitCode(err)
}

func startMetricsServer(addr string, status *monitoring.SweepStatus, lg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/healthz", status)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("metrics server stopped", logger.Err(err))
		}
	}()
	lg.Info("metrics server listening", logger.String("addr", addr))
	return srv
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logInfo("metrics server shutdown: %v", err)
	}
}

func logSuccess(format string, args ...interface{}) {
	log.Printf("✅ "+format, args...)
}
