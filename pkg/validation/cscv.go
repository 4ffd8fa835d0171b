package validation

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/bufferzone-backtest/internal/errors"
)

const (
	// epsilon floors standard deviations and detects zero-variance splits
	epsilon = 1e-12
	// MinBlocks and MaxBlocks bound S; C(20, 10) is already 184756 splits
	MinBlocks = 4
	MaxBlocks = 20
)

// BlockMatrix is the per-block performance matrix of a grid search.
// For every combination and block it keeps the return count, sum and sum of
// squares, so the Sharpe ratio of any union of blocks is computed without re-simulation.
type BlockMatrix struct {
	Blocks       int
	BlockLen     int
	Combinations int
	sum          [][]float64
	sumSq        [][]float64
}

// ReturnsFromGrid collects the daily return series of grid rows run with CollectReturns.
// All series must have the same length.
func ReturnsFromGrid(rows []backtest.GridResult) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, bterrors.NewConfigError("cscv", "returns", "no grid results")
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row.Returns) == 0 {
			return nil, bterrors.NewConfigError("cscv", "returns",
				fmt.Sprintf("grid row %d has no return series; run the grid with CollectReturns", i))
		}
		if len(row.Returns) != len(rows[0].Returns) {
			return nil, bterrors.NewDataValidationError("cscv", "returns",
				fmt.Sprintf("grid row %d has %d returns, row 0 has %d", i, len(row.Returns), len(rows[0].Returns)))
		}
		out[i] = row.Returns
	}
	return out, nil
}

// ValidateBlocks checks S against the number of return rows T
func ValidateBlocks(blocks, rows int) error {
	switch {
	case blocks%2 != 0:
		return bterrors.NewConfigError("cscv", "validate", fmt.Sprintf("number of blocks must be even, got %d", blocks))
	case blocks < MinBlocks:
		return bterrors.NewConfigError("cscv", "validate", fmt.Sprintf("number of blocks must be >= %d, got %d", MinBlocks, blocks))
	case blocks > MaxBlocks:
		return bterrors.NewConfigError("cscv", "validate", fmt.Sprintf("number of blocks must be <= %d, got %d", MaxBlocks, blocks))
	case rows < blocks:
		return bterrors.NewConfigError("cscv", "validate", fmt.Sprintf("%d return rows cannot fill %d blocks", rows, blocks))
	}
	return nil
}

// BuildBlockMatrix cuts each combination's returns (returns[combo][t]) into blocks
// contiguous equal-length blocks. Trailing rows that do not fill a block are dropped.
func BuildBlockMatrix(returns [][]float64, blocks int) (*BlockMatrix, error) {
	if len(returns) < 2 {
		return nil, bterrors.NewConfigError("cscv", "build", fmt.Sprintf("need at least 2 combinations, got %d", len(returns)))
	}
	rows := len(returns[0])
	if err := ValidateBlocks(blocks, rows); err != nil {
		return nil, err
	}

	blockLen := rows / blocks
	m := &BlockMatrix{
		Blocks:       blocks,
		BlockLen:     blockLen,
		Combinations: len(returns),
		sum:          make([][]float64, len(returns)),
		sumSq:        make([][]float64, len(returns)),
	}
	for n, series := range returns {
		if len(series) != rows {
			return nil, bterrors.NewDataValidationError("cscv", "build",
				fmt.Sprintf("combination %d has %d rows, expected %d", n, len(series), rows))
		}
		m.sum[n] = make([]float64, blocks)
		m.sumSq[n] = make([]float64, blocks)
		for b := 0; b < blocks; b++ {
			for _, r := range series[b*blockLen : (b+1)*blockLen] {
				m.sum[n][b] += r
				m.sumSq[n][b] += r * r
			}
		}
	}
	return m, nil
}

// Sharpe is the per-period Sharpe ratio of combination n over the union of blocks
func (m *BlockMatrix) Sharpe(n int, blocks []int) float64 {
	var s, q float64
	for _, b := range blocks {
		s += m.sum[n][b]
		q += m.sumSq[n][b]
	}
	count := float64(len(blocks) * m.BlockLen)
	if count < 2 {
		return 0
	}
	mean := s / count
	variance := (q - s*s/count) / (count - 1)
	if variance < 0 {
		variance = 0
	}
	return mean / math.Max(math.Sqrt(variance), epsilon)
}

// Splits enumerates all C(S, S/2) in-sample choices in lexicographic order
func Splits(blocks int) []CSCVSplit {
	half := blocks / 2
	splits := make([]CSCVSplit, 0, combin.Binomial(blocks, half))
	gen := combin.NewCombinationGenerator(blocks, half)
	for gen.Next() {
		is := gen.Combination(nil)
		inIS := make([]bool, blocks)
		for _, b := range is {
			inIS[b] = true
		}
		oos := make([]int, 0, blocks-half)
		for b := 0; b < blocks; b++ {
			if !inIS[b] {
				oos = append(oos, b)
			}
		}
		splits = append(splits, CSCVSplit{IS: is, OOS: oos})
	}
	return splits
}

// Complement swaps the IS and OOS halves of every split
func Complement(splits []CSCVSplit) []CSCVSplit {
	out := make([]CSCVSplit, len(splits))
	for i, s := range splits {
		out[i] = CSCVSplit{IS: s.OOS, OOS: s.IS}
	}
	return out
}

type splitOutcome struct {
	valid    bool
	best     int
	logit    float64
	isValue  float64
	oosValue float64
}

// evaluateSplit ranks the IS-best combination among the OOS results
func (m *BlockMatrix) evaluateSplit(split CSCVSplit, isVals, oosVals []float64) splitOutcome {
	for n := 0; n < m.Combinations; n++ {
		isVals[n] = m.Sharpe(n, split.IS)
		oosVals[n] = m.Sharpe(n, split.OOS)
	}
	if spread(isVals) <= epsilon || spread(oosVals) <= epsilon {
		return splitOutcome{}
	}

	best := 0
	for n := 1; n < m.Combinations; n++ {
		if isVals[n] > isVals[best] {
			best = n
		}
	}

	omega := averageRank(oosVals, best) / float64(m.Combinations+1)
	return splitOutcome{
		valid:    true,
		best:     best,
		logit:    math.Log(omega / (1 - omega)),
		isValue:  isVals[best],
		oosValue: oosVals[best],
	}
}

// ComputePBO evaluates every split on up to workers goroutines; workers <= 0 uses all CPUs.
// Splits with no spread in IS or OOS performance are excluded from the denominator.
func ComputePBO(ctx context.Context, m *BlockMatrix, splits []CSCVSplit, workers int) (*PboResult, error) {
	if len(splits) == 0 {
		return nil, bterrors.NewConfigError("cscv", "pbo", "no splits to evaluate")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]splitOutcome, len(splits))
	chunk := (len(splits) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for from := 0; from < len(splits); from += chunk {
		to := min(from+chunk, len(splits))
		g.Go(func() error {
			isVals := make([]float64, m.Combinations)
			oosVals := make([]float64, m.Combinations)
			for i := from; i < to; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = m.evaluateSplit(splits[i], isVals, oosVals)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &PboResult{
		Splits:       len(splits),
		Blocks:       m.Blocks,
		BlockLen:     m.BlockLen,
		Combinations: m.Combinations,
		Logits:       make([]float64, 0, len(splits)),
		BestISCounts: make([]int, m.Combinations),
	}
	losses := 0
	logitSum := 0.0
	for _, o := range outcomes {
		if !o.valid {
			continue
		}
		res.ValidSplits++
		if o.logit < 0 {
			res.Overfit++
		}
		if o.oosValue < 0 {
			losses++
		}
		logitSum += o.logit
		res.Logits = append(res.Logits, o.logit)
		res.BestISCounts[o.best]++
		res.ISBestISValue = append(res.ISBestISValue, o.isValue)
		res.ISBestOOSValue = append(res.ISBestOOSValue, o.oosValue)
	}
	if res.ValidSplits == 0 {
		return nil, bterrors.NewDataValidationError("cscv", "pbo",
			fmt.Sprintf("all %d splits are degenerate (no performance spread across combinations)", len(splits)))
	}

	valid := float64(res.ValidSplits)
	res.PBO = float64(res.Overfit) / valid
	res.MeanLogit = logitSum / valid
	res.ProbOOSLoss = float64(losses) / valid
	if res.ValidSplits > 1 && spread(res.ISBestISValue) > epsilon {
		res.InterceptOOS, res.SlopeISvsOOS = stat.LinearRegression(res.ISBestISValue, res.ISBestOOSValue, nil, false)
	}
	return res, nil
}

// RunCSCV builds the block matrix from grid rows and computes PBO over all splits
func RunCSCV(ctx context.Context, rows []backtest.GridResult, blocks, workers int) (*PboResult, error) {
	returns, err := ReturnsFromGrid(rows)
	if err != nil {
		return nil, err
	}
	m, err := BuildBlockMatrix(returns, blocks)
	if err != nil {
		return nil, err
	}
	return ComputePBO(ctx, m, Splits(blocks), workers)
}

// averageRank is the 1-based ascending rank of values[idx]; ties share their mean rank
func averageRank(values []float64, idx int) float64 {
	less, equal := 0, 0
	for _, v := range values {
		switch {
		case v < values[idx]:
			less++
		case v == values[idx]:
			equal++
		}
	}
	return float64(less) + float64(equal+1)/2
}

func spread(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}
