package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// CSVProvider implements BarProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
	log    *logger.Logger
}

// NewCSVProvider creates a CSV provider reading daily bars
func NewCSVProvider(log *logger.Logger) *CSVProvider {
	return NewCSVProviderWithFormat(DailyCSVFormat, log)
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping, log *logger.Logger) *CSVProvider {
	return &CSVProvider{
		format: format,
		log:    logger.OrNop(log),
	}
}

func (p *CSVProvider) Name() string {
	return "csv"
}

// LoadData loads historical data from a CSV file
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, bterrors.WrapDataValidationError(err, "data", "load_csv", "cannot open data file").
			WithContext("path", source)
	}
	defer file.Close()

	data, err := p.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return data, nil
}

// Read parses bars from r; the first line is a header.
// Rows that cannot be parsed or carry impossible prices are skipped with a warning.
func (p *CSVProvider) Read(r io.Reader) ([]types.OHLCV, error) {
	format := p.format
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, bterrors.NewDataValidationError("data", "read_csv", "empty CSV input")
		}
		return nil, bterrors.NewDataValidationError("data", "read_csv", fmt.Sprintf("cannot read header: %v", err))
	}

	var data []types.OHLCV
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, bterrors.NewDataValidationError("data", "read_csv",
				fmt.Sprintf("error reading CSV at line %d: %v", lineNum, err))
		}

		if len(record) < format.MinColumns {
			p.log.Warn("insufficient columns, skipping row",
				logger.Int("line", lineNum), logger.Int("expected", format.MinColumns), logger.Int("got", len(record)))
			continue
		}

		timestamp, err := time.Parse(format.DateFormat, strings.TrimSpace(record[format.TimestampCol]))
		if err != nil {
			p.log.Warn("invalid timestamp, skipping row", logger.Int("line", lineNum), logger.Err(err))
			continue
		}

		var values [5]float64
		cols := [5]int{format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol}
		parsed := true
		for k, col := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				p.log.Warn("invalid number, skipping row",
					logger.Int("line", lineNum), logger.Int("column", col), logger.Err(err))
				parsed = false
				break
			}
			values[k] = v
		}
		if !parsed {
			continue
		}

		bar := types.OHLCV{
			Timestamp: timestamp,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		}
		if err := validateBar(bar); err != nil {
			p.log.Warn("invalid price data, skipping row", logger.Int("line", lineNum), logger.Err(err))
			continue
		}
		data = append(data, bar)
	}

	if len(data) == 0 {
		return nil, bterrors.NewDataValidationError("data", "read_csv", "no valid rows")
	}
	return data, nil
}

// ValidateData validates the integrity of loaded data
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return bterrors.NewDataValidationError("data", "validate", "no data provided")
	}

	for i, candle := range data {
		if err := validateBar(candle); err != nil {
			return bterrors.NewDataValidationError("data", "validate",
				fmt.Sprintf("invalid price data at index %d: %v", i, err))
		}
		if i > 0 && candle.Timestamp.Before(data[i-1].Timestamp) {
			return bterrors.NewDataValidationError("data", "validate",
				fmt.Sprintf("invalid timestamp sequence at index %d: timestamps must be in chronological order", i))
		}
	}
	return nil
}

func validateBar(c types.OHLCV) error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if c.High < c.Low {
		return fmt.Errorf("high (%.4f) cannot be less than low (%.4f)", c.High, c.Low)
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high (%.4f) must be >= open (%.4f) and close (%.4f)", c.High, c.Open, c.Close)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low (%.4f) must be <= open (%.4f) and close (%.4f)", c.Low, c.Open, c.Close)
	}
	if c.Volume < 0 {
		return fmt.Errorf("volume cannot be negative")
	}
	return nil
}
