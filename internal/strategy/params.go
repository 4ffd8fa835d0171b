package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/internal/indicators"
)

const (
	DefaultCommissionRate = 0.001425
	DefaultSlippageRate   = 0.001
)

var validate = validator.New()

// StrategyParams is the value object for one backtest run
type StrategyParams struct {
	MAWindow       int     `json:"ma_window" yaml:"ma_window" validate:"gte=1"`
	BuyBufferPct   float64 `json:"buy_buffer_pct" yaml:"buy_buffer_pct" validate:"gte=0"`
	SellBufferPct  float64 `json:"sell_buffer_pct" yaml:"sell_buffer_pct" validate:"gte=0"`
	HoldDays       int     `json:"hold_days" yaml:"hold_days" validate:"gte=0"`
	RecentMonths   int     `json:"recent_months" yaml:"recent_months" validate:"gte=0"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital" validate:"gt=0"`
}

// Validate checks parameter bounds and returns a ConfigError on the first violation
func (p StrategyParams) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return bterrors.NewConfigError("strategy", "validate",
			fmt.Sprintf("%s must be %s %s", toSnake(fe.Field()), tagWord(fe.Tag()), fe.Param())).
			WithContext("value", fe.Value())
	}
	return bterrors.WrapConfigError(err, "strategy", "validate")
}

// Key identifies the parameter tuple
func (p StrategyParams) Key() string {
	return fmt.Sprintf("ma=%d buy=%.4f sell=%.4f hold=%d recent=%d",
		p.MAWindow, p.BuyBufferPct, p.SellBufferPct, p.HoldDays, p.RecentMonths)
}

// ExecutionConfig holds the run-wide cost model and indicator choice
type ExecutionConfig struct {
	CommissionRate float64
	SlippageRate   float64
	MAType         indicators.MAType
}

// DefaultExecutionConfig returns EMA bands with the default cost model
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		CommissionRate: DefaultCommissionRate,
		SlippageRate:   DefaultSlippageRate,
		MAType:         indicators.MATypeEMA,
	}
}

// Validate checks the cost model
func (c ExecutionConfig) Validate() error {
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return bterrors.NewConfigError("strategy", "validate", fmt.Sprintf("commission_rate must be in [0, 1), got %v", c.CommissionRate))
	}
	if c.SlippageRate < 0 || c.SlippageRate >= 1 {
		return bterrors.NewConfigError("strategy", "validate", fmt.Sprintf("slippage_rate must be in [0, 1), got %v", c.SlippageRate))
	}
	return nil
}

func tagWord(tag string) string {
	switch tag {
	case "gte":
		return ">="
	case "gt":
		return ">"
	case "lte":
		return "<="
	case "lt":
		return "<"
	default:
		return tag
	}
}

func toSnake(s string) string {
	isUpper := func(c byte) bool { return c >= 'A' && c <= 'Z' }
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUpper(c) {
			// "MAWindow" -> "ma_window"
			if i > 0 && (!isUpper(s[i-1]) || (i+1 < len(s) && !isUpper(s[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteByte(c + ('a' - 'A'))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
