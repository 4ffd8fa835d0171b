package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/indicators"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/validation"
)

// Environment overrides applied after the file is read
const (
	EnvLogLevel   = "BZ_LOG_LEVEL"
	EnvMaxWorkers = "BZ_MAX_WORKERS"
	EnvOutputDir  = "BZ_OUTPUT_DIR"
)

const dateLayout = "2006-01-02"

var validate *validator.Validate

func init() {
	validate = validator.New()
	// report yaml keys instead of Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Experiment is one YAML experiment file
type Experiment struct {
	Name        string            `yaml:"name" default:"experiment"`
	Data        DataConfig        `yaml:"data"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Grid        GridConfig        `yaml:"grid"`
	WalkForward WalkForwardConfig `yaml:"walk_forward"`
	CSCV        CSCVConfig        `yaml:"cscv"`
	Pool        PoolConfig        `yaml:"execution_pool"`
	Output      OutputConfig      `yaml:"output"`
	Log         logger.Config     `yaml:"log"`
}

// DataConfig points at the signal and trade CSV files
type DataConfig struct {
	Signal string `yaml:"signal" validate:"required"`
	// Trade defaults to the signal file
	Trade string `yaml:"trade"`
	Start string `yaml:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `yaml:"end" validate:"omitempty,datetime=2006-01-02"`
	// Period keeps only a trailing window such as 10y or 500d
	Period string `yaml:"period"`
}

// ExecutionConfig is the run-wide cost model
type ExecutionConfig struct {
	CommissionRate float64 `yaml:"commission_rate" default:"0.001425" validate:"gte=0,lt=1"`
	SlippageRate   float64 `yaml:"slippage_rate" default:"0.001" validate:"gte=0,lt=1"`
	MAType         string  `yaml:"ma_type" default:"ema" validate:"oneof=ema sma"`
}

// StrategyConfig is the parameter set for a single run
type StrategyConfig struct {
	MAWindow       int     `yaml:"ma_window" default:"200" validate:"gte=1"`
	BuyBufferPct   float64 `yaml:"buy_buffer_pct" default:"0.02" validate:"gte=0"`
	SellBufferPct  float64 `yaml:"sell_buffer_pct" default:"0.02" validate:"gte=0"`
	HoldDays       int     `yaml:"hold_days" validate:"gte=0"`
	RecentMonths   int     `yaml:"recent_months" validate:"gte=0"`
	InitialCapital float64 `yaml:"initial_capital" default:"10000" validate:"gt=0"`
}

// GridConfig lists candidate values per parameter; empty lists fall back to the strategy value
type GridConfig struct {
	MAWindow      []int     `yaml:"ma_window" validate:"dive,gte=1"`
	BuyBufferPct  []float64 `yaml:"buy_buffer_pct" validate:"dive,gte=0"`
	SellBufferPct []float64 `yaml:"sell_buffer_pct" validate:"dive,gte=0"`
	HoldDays      []int     `yaml:"hold_days" validate:"dive,gte=0"`
	RecentMonths  []int     `yaml:"recent_months" validate:"dive,gte=0"`
	Metric        string    `yaml:"selection_metric" default:"cagr" validate:"oneof=cagr total_return_pct mdd sharpe"`
}

// WalkForwardConfig lays out the calendar-year windows
type WalkForwardConfig struct {
	TrainYears int    `yaml:"train_years" default:"5" validate:"gte=1"`
	TestYears  int    `yaml:"test_years" default:"1" validate:"gte=1"`
	Mode       string `yaml:"mode" default:"expanding" validate:"oneof=expanding rolling"`
	Metric     string `yaml:"selection_metric" default:"cagr" validate:"oneof=cagr total_return_pct mdd sharpe"`
}

// CSCVConfig sets the number of blocks S
type CSCVConfig struct {
	Blocks int `yaml:"blocks" default:"10" validate:"gte=4,lte=20"`
}

// PoolConfig sizes the grid worker pool; 0 means CPU count - 1
type PoolConfig struct {
	MaxWorkers int `yaml:"max_workers" validate:"gte=0"`
}

// OutputConfig selects report files and the results database
type OutputConfig struct {
	Dir     string `yaml:"dir" default:"results"`
	Console bool   `yaml:"console" default:"true"`
	CSV     bool   `yaml:"csv" default:"true"`
	XLSX    bool   `yaml:"xlsx" default:"true"`
	JSON    bool   `yaml:"json" default:"true"`
	// SQLite is a database path; empty disables persistence
	SQLite string `yaml:"sqlite"`
}

// Default returns an experiment with every default applied
func Default() (*Experiment, error) {
	exp := &Experiment{}
	if err := defaults.Set(exp); err != nil {
		return nil, bterrors.WrapConfigError(err, "config", "defaults")
	}
	return exp, nil
}

// Load reads path, applies defaults, then environment overrides, then validates
func Load(path string) (*Experiment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, bterrors.WrapConfigError(fmt.Errorf("read config: %w", err), "config", "load").
			WithContext("path", path)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults, applies environment overrides and validates
func Parse(b []byte) (*Experiment, error) {
	exp, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, exp); err != nil {
		return nil, bterrors.WrapConfigError(fmt.Errorf("parse config: %w", err), "config", "parse")
	}
	if err := exp.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// LoadEnv loads a .env file into the process environment if it exists
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return bterrors.WrapConfigError(err, "config", "load_env").WithContext("path", path)
	}
	return nil
}

// ApplyEnv overrides log level, worker count and output directory from the environment
func (e *Experiment) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		e.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvMaxWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return bterrors.NewConfigError("config", "apply_env", fmt.Sprintf("%s must be an integer, got %q", EnvMaxWorkers, v))
		}
		e.Pool.MaxWorkers = n
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		e.Output.Dir = v
	}
	return nil
}

// Validate checks struct tags and cross-field rules
func (e *Experiment) Validate() error {
	if err := validate.Struct(e); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Experiment.")
			msg := fmt.Sprintf("%s failed %q", field, fe.Tag())
			if fe.Param() != "" {
				msg = fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
			}
			return bterrors.NewConfigError("config", "validate", msg).WithContext("value", fe.Value())
		}
		return bterrors.WrapConfigError(err, "config", "validate")
	}

	if e.CSCV.Blocks%2 != 0 {
		return bterrors.NewConfigError("config", "validate", fmt.Sprintf("cscv.blocks must be even, got %d", e.CSCV.Blocks))
	}
	if e.Data.Start != "" && e.Data.End != "" {
		start, end := e.dateOrZero(e.Data.Start), e.dateOrZero(e.Data.End)
		if end.Before(start) {
			return bterrors.NewConfigError("config", "validate",
				fmt.Sprintf("data.end %s is before data.start %s", e.Data.End, e.Data.Start))
		}
	}
	return nil
}

// DateRange returns the configured start and end; zero values mean unbounded
func (e *Experiment) DateRange() (time.Time, time.Time) {
	return e.dateOrZero(e.Data.Start), e.dateOrZero(e.Data.End)
}

func (e *Experiment) dateOrZero(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ExecutionConfig converts the execution section
func (e *Experiment) ExecutionConfig() (strategy.ExecutionConfig, error) {
	ma, err := indicators.ParseMAType(e.Execution.MAType)
	if err != nil {
		return strategy.ExecutionConfig{}, bterrors.WrapConfigError(err, "config", "execution")
	}
	return strategy.ExecutionConfig{
		CommissionRate: e.Execution.CommissionRate,
		SlippageRate:   e.Execution.SlippageRate,
		MAType:         ma,
	}, nil
}

// StrategyParams converts the strategy section
func (e *Experiment) StrategyParams() strategy.StrategyParams {
	s := e.Strategy
	return strategy.StrategyParams{
		MAWindow:       s.MAWindow,
		BuyBufferPct:   s.BuyBufferPct,
		SellBufferPct:  s.SellBufferPct,
		HoldDays:       s.HoldDays,
		RecentMonths:   s.RecentMonths,
		InitialCapital: s.InitialCapital,
	}
}

// ParamGrid converts the grid section; an empty list pins that parameter to the strategy value
func (e *Experiment) ParamGrid() backtest.ParamGrid {
	s, g := e.Strategy, e.Grid
	return backtest.ParamGrid{
		MAWindow:       orDefault(g.MAWindow, s.MAWindow),
		BuyBufferPct:   orDefault(g.BuyBufferPct, s.BuyBufferPct),
		SellBufferPct:  orDefault(g.SellBufferPct, s.SellBufferPct),
		HoldDays:       orDefault(g.HoldDays, s.HoldDays),
		RecentMonths:   orDefault(g.RecentMonths, s.RecentMonths),
		InitialCapital: s.InitialCapital,
	}
}

// GridMetric parses the grid selection metric
func (e *Experiment) GridMetric() (backtest.SelectionMetric, error) {
	return backtest.ParseSelectionMetric(e.Grid.Metric)
}

// WalkForwardConfig converts the walk_forward section
func (e *Experiment) WalkForwardConfig() (validation.WalkForwardConfig, error) {
	metric, err := backtest.ParseSelectionMetric(e.WalkForward.Metric)
	if err != nil {
		return validation.WalkForwardConfig{}, err
	}
	cfg := validation.WalkForwardConfig{
		TrainYears:     e.WalkForward.TrainYears,
		TestYears:      e.WalkForward.TestYears,
		Mode:           validation.WindowMode(e.WalkForward.Mode),
		Metric:         metric,
		InitialCapital: e.Strategy.InitialCapital,
	}
	return cfg, cfg.Validate()
}

func orDefault[T any](values []T, fallback T) []T {
	if len(values) == 0 {
		return []T{fallback}
	}
	return values
}
