package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ducminhle1904/bufferzone-backtest/internal/backtest"
	"github.com/ducminhle1904/bufferzone-backtest/internal/strategy"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/validation"
)

const schema = `
-- One row per CLI invocation; the summary columns hold the headline result
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    kind             TEXT NOT NULL,
    name             TEXT NOT NULL,
    created_at       TEXT NOT NULL,
    params           TEXT,
    start_date       TEXT,
    end_date         TEXT,
    initial_capital  REAL NOT NULL DEFAULT 0,
    final_capital    REAL NOT NULL DEFAULT 0,
    total_return_pct REAL NOT NULL DEFAULT 0,
    cagr             REAL NOT NULL DEFAULT 0,
    mdd              REAL NOT NULL DEFAULT 0,
    sharpe           REAL NOT NULL DEFAULT 0,
    trades           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS grid_results (
    run_id           TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    idx              INTEGER NOT NULL,
    ma_window        INTEGER NOT NULL,
    buy_buffer_pct   REAL    NOT NULL,
    sell_buffer_pct  REAL    NOT NULL,
    hold_days        INTEGER NOT NULL,
    recent_months    INTEGER NOT NULL,
    initial_capital  REAL    NOT NULL,
    final_capital    REAL    NOT NULL,
    total_return_pct REAL    NOT NULL,
    cagr             REAL    NOT NULL,
    mdd              REAL    NOT NULL,
    sharpe           REAL    NOT NULL,
    win_rate         REAL    NOT NULL,
    trades           INTEGER NOT NULL,
    PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS wfo_windows (
    run_id          TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    window_idx      INTEGER NOT NULL,
    train_start     TEXT    NOT NULL,
    train_end       TEXT    NOT NULL,
    test_start      TEXT    NOT NULL,
    test_end        TEXT    NOT NULL,
    best_params     TEXT    NOT NULL,
    test_return_pct REAL    NOT NULL,
    test_mdd        REAL    NOT NULL,
    train_metric    REAL    NOT NULL,
    test_metric     REAL    NOT NULL,
    start_capital   REAL    NOT NULL,
    end_capital     REAL    NOT NULL,
    test_trades     INTEGER NOT NULL,
    PRIMARY KEY (run_id, window_idx)
);

-- CSCV and DSR results attached to a grid run
CREATE TABLE IF NOT EXISTS overfitting (
    run_id        TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
    pbo           REAL,
    splits        INTEGER,
    valid_splits  INTEGER,
    blocks        INTEGER,
    mean_logit    REAL,
    prob_oos_loss REAL,
    dsr           REAL,
    sharpe        REAL,
    sr0           REAL,
    trials        INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind, created_at DESC);
`

const dateLayout = "2006-01-02"

// Run kinds
const (
	KindBacktest    = "backtest"
	KindGrid        = "grid"
	KindWalkForward = "wfo"
)

// RunRecord is a stored run header
type RunRecord struct {
	ID        string
	Kind      string
	Name      string
	CreatedAt time.Time
	Params    string
	Summary   types.Summary
}

// OverfittingRecord is the stored CSCV/DSR outcome of a grid run; nil fields were not computed
type OverfittingRecord struct {
	PBO *validation.PboResult
	DSR *validation.DsrResult
}

// SQLiteStore persists backtest, grid and validation results (pure Go, no CGo)
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dsn and applies the schema
func NewSQLiteStore(dsn string, log *logger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		log: logger.OrNop(log).With(logger.String("component", "storage")),
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) insertRun(ctx context.Context, tx *sql.Tx, kind, name string, params any, sum types.Summary) (string, error) {
	var paramsJSON sql.NullString
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("storage.insertRun: encode params: %w", err)
		}
		paramsJSON = sql.NullString{String: string(data), Valid: true}
	}

	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, name, created_at, params, start_date, end_date,
		                  initial_capital, final_capital, total_return_pct, cagr, mdd, sharpe, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, name, s.now().Format(time.RFC3339Nano), paramsJSON,
		formatDate(sum.StartDate), formatDate(sum.EndDate),
		sum.InitialCapital, sum.FinalCapital, sum.TotalReturnPct, sum.CAGR, sum.MDD, sum.Sharpe, sum.TotalTrades,
	); err != nil {
		return "", fmt.Errorf("storage.insertRun: %w", err)
	}
	return id, nil
}

// withTx runs fn in a transaction, committing on success
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.%s: commit: %w", op, err)
	}
	return nil
}

// SaveBacktest stores a single run and returns its run ID
func (s *SQLiteStore) SaveBacktest(ctx context.Context, name string, res *backtest.Result) (string, error) {
	var id string
	err := s.withTx(ctx, "SaveBacktest", func(tx *sql.Tx) error {
		var err error
		id, err = s.insertRun(ctx, tx, KindBacktest, name, res.Params, res.Summary)
		return err
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("backtest stored", logger.String("run_id", id))
	return id, nil
}

// SaveGrid stores every grid row under one run whose summary is the best row by metric
func (s *SQLiteStore) SaveGrid(ctx context.Context, name string, metric backtest.SelectionMetric, rows []backtest.GridResult) (string, error) {
	best, err := backtest.SelectBest(rows, metric)
	if err != nil {
		return "", err
	}

	var id string
	err = s.withTx(ctx, "SaveGrid", func(tx *sql.Tx) error {
		var err error
		id, err = s.insertRun(ctx, tx, KindGrid, name, rows[best].Params, rows[best].Summary)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO grid_results
				(run_id, idx, ma_window, buy_buffer_pct, sell_buffer_pct, hold_days, recent_months,
				 initial_capital, final_capital, total_return_pct, cagr, mdd, sharpe, win_rate, trades)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("storage.SaveGrid: prepare: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			p, sum := r.Params, r.Summary
			if _, err := stmt.ExecContext(ctx, id, r.Index,
				p.MAWindow, p.BuyBufferPct, p.SellBufferPct, p.HoldDays, p.RecentMonths, p.InitialCapital,
				sum.FinalCapital, sum.TotalReturnPct, sum.CAGR, sum.MDD, sum.Sharpe, sum.WinRate, sum.TotalTrades,
			); err != nil {
				return fmt.Errorf("storage.SaveGrid: insert row %d: %w", r.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("grid stored", logger.String("run_id", id), logger.Int("rows", len(rows)))
	return id, nil
}

// SaveWalkForward stores the stitched summary and one row per window
func (s *SQLiteStore) SaveWalkForward(ctx context.Context, name string, cfg validation.WalkForwardConfig, res *validation.WalkForwardResult) (string, error) {
	var id string
	err := s.withTx(ctx, "SaveWalkForward", func(tx *sql.Tx) error {
		var err error
		id, err = s.insertRun(ctx, tx, KindWalkForward, name, cfg, res.Summary)
		if err != nil {
			return err
		}
		for _, w := range res.Windows {
			params, err := json.Marshal(w.BestParams)
			if err != nil {
				return fmt.Errorf("storage.SaveWalkForward: encode params: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO wfo_windows
					(run_id, window_idx, train_start, train_end, test_start, test_end, best_params,
					 test_return_pct, test_mdd, train_metric, test_metric, start_capital, end_capital, test_trades)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, w.WindowIdx, formatDate(w.TrainStart), formatDate(w.TrainEnd), formatDate(w.TestStart), formatDate(w.TestEnd),
				string(params), w.TestReturnPct, w.TestMDD, w.TrainMetric, w.TestMetric, w.StartCapital, w.EndCapital, w.TestTrades,
			); err != nil {
				return fmt.Errorf("storage.SaveWalkForward: insert window %d: %w", w.WindowIdx, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("walk-forward stored", logger.String("run_id", id), logger.Int("windows", len(res.Windows)))
	return id, nil
}

// SaveOverfitting attaches CSCV and DSR results to an existing run; either may be nil
func (s *SQLiteStore) SaveOverfitting(ctx context.Context, runID string, pbo *validation.PboResult, dsr *validation.DsrResult) error {
	var (
		pboVal, meanLogit, probLoss sql.NullFloat64
		splits, validSplits, blocks sql.NullInt64
		dsrVal, sharpe, sr0         sql.NullFloat64
		trials                      sql.NullInt64
	)
	if pbo != nil {
		pboVal = sql.NullFloat64{Float64: pbo.PBO, Valid: true}
		meanLogit = sql.NullFloat64{Float64: pbo.MeanLogit, Valid: true}
		probLoss = sql.NullFloat64{Float64: pbo.ProbOOSLoss, Valid: true}
		splits = sql.NullInt64{Int64: int64(pbo.Splits), Valid: true}
		validSplits = sql.NullInt64{Int64: int64(pbo.ValidSplits), Valid: true}
		blocks = sql.NullInt64{Int64: int64(pbo.Blocks), Valid: true}
	}
	if dsr != nil {
		dsrVal = sql.NullFloat64{Float64: dsr.DSR, Valid: true}
		sharpe = sql.NullFloat64{Float64: dsr.Sharpe, Valid: true}
		sr0 = sql.NullFloat64{Float64: dsr.SR0, Valid: true}
		trials = sql.NullInt64{Int64: int64(dsr.Trials), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO overfitting
			(run_id, pbo, splits, valid_splits, blocks, mean_logit, prob_oos_loss, dsr, sharpe, sr0, trials)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			pbo           = COALESCE(excluded.pbo, pbo),
			splits        = COALESCE(excluded.splits, splits),
			valid_splits  = COALESCE(excluded.valid_splits, valid_splits),
			blocks        = COALESCE(excluded.blocks, blocks),
			mean_logit    = COALESCE(excluded.mean_logit, mean_logit),
			prob_oos_loss = COALESCE(excluded.prob_oos_loss, prob_oos_loss),
			dsr           = COALESCE(excluded.dsr, dsr),
			sharpe        = COALESCE(excluded.sharpe, sharpe),
			sr0           = COALESCE(excluded.sr0, sr0),
			trials        = COALESCE(excluded.trials, trials)`,
		runID, pboVal, splits, validSplits, blocks, meanLogit, probLoss, dsrVal, sharpe, sr0, trials,
	); err != nil {
		return fmt.Errorf("storage.SaveOverfitting: %w", err)
	}
	return nil
}

// ListRuns returns runs of the given kind, newest first; empty kind lists all
func (s *SQLiteStore) ListRuns(ctx context.Context, kind string) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, created_at, COALESCE(params, ''), COALESCE(start_date, ''), COALESCE(end_date, ''),
		       initial_capital, final_capital, total_return_pct, cagr, mdd, sharpe, trades
		FROM runs
		WHERE ? = '' OR kind = ?
		ORDER BY created_at DESC`, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var created, start, end string
		if err := rows.Scan(&r.ID, &r.Kind, &r.Name, &created, &r.Params, &start, &end,
			&r.Summary.InitialCapital, &r.Summary.FinalCapital, &r.Summary.TotalReturnPct,
			&r.Summary.CAGR, &r.Summary.MDD, &r.Summary.Sharpe, &r.Summary.TotalTrades,
		); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		r.Summary.StartDate = parseDate(start)
		r.Summary.EndDate = parseDate(end)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GridResults returns the stored grid rows of a run in combination order
func (s *SQLiteStore) GridResults(ctx context.Context, runID string) ([]backtest.GridResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, ma_window, buy_buffer_pct, sell_buffer_pct, hold_days, recent_months,
		       initial_capital, final_capital, total_return_pct, cagr, mdd, sharpe, win_rate, trades
		FROM grid_results
		WHERE run_id = ?
		ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.GridResults: query: %w", err)
	}
	defer rows.Close()

	var out []backtest.GridResult
	for rows.Next() {
		var g backtest.GridResult
		p := &g.Params
		if err := rows.Scan(&g.Index, &p.MAWindow, &p.BuyBufferPct, &p.SellBufferPct, &p.HoldDays, &p.RecentMonths,
			&p.InitialCapital, &g.Summary.FinalCapital, &g.Summary.TotalReturnPct, &g.Summary.CAGR,
			&g.Summary.MDD, &g.Summary.Sharpe, &g.Summary.WinRate, &g.Summary.TotalTrades,
		); err != nil {
			return nil, fmt.Errorf("storage.GridResults: scan row: %w", err)
		}
		g.Summary.InitialCapital = p.InitialCapital
		out = append(out, g)
	}
	return out, rows.Err()
}

// WalkForwardWindows returns the stored windows of a run in order
func (s *SQLiteStore) WalkForwardWindows(ctx context.Context, runID string) ([]validation.WfoWindowResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT window_idx, train_start, train_end, test_start, test_end, best_params,
		       test_return_pct, test_mdd, train_metric, test_metric, start_capital, end_capital, test_trades
		FROM wfo_windows
		WHERE run_id = ?
		ORDER BY window_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.WalkForwardWindows: query: %w", err)
	}
	defer rows.Close()

	var out []validation.WfoWindowResult
	for rows.Next() {
		var w validation.WfoWindowResult
		var trainStart, trainEnd, testStart, testEnd, params string
		if err := rows.Scan(&w.WindowIdx, &trainStart, &trainEnd, &testStart, &testEnd, &params,
			&w.TestReturnPct, &w.TestMDD, &w.TrainMetric, &w.TestMetric, &w.StartCapital, &w.EndCapital, &w.TestTrades,
		); err != nil {
			return nil, fmt.Errorf("storage.WalkForwardWindows: scan row: %w", err)
		}
		var best strategy.StrategyParams
		if err := json.Unmarshal([]byte(params), &best); err != nil {
			return nil, fmt.Errorf("storage.WalkForwardWindows: decode params of window %d: %w", w.WindowIdx, err)
		}
		w.BestParams = best
		w.TrainStart, w.TrainEnd = parseDate(trainStart), parseDate(trainEnd)
		w.TestStart, w.TestEnd = parseDate(testStart), parseDate(testEnd)
		out = append(out, w)
	}
	return out, rows.Err()
}

// Overfitting returns the CSCV/DSR record of a run; sql.ErrNoRows is wrapped when absent
func (s *SQLiteStore) Overfitting(ctx context.Context, runID string) (*OverfittingRecord, error) {
	var (
		pboVal, meanLogit, probLoss sql.NullFloat64
		splits, validSplits, blocks sql.NullInt64
		dsrVal, sharpe, sr0         sql.NullFloat64
		trials                      sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT pbo, splits, valid_splits, blocks, mean_logit, prob_oos_loss, dsr, sharpe, sr0, trials
		FROM overfitting WHERE run_id = ?`, runID,
	).Scan(&pboVal, &splits, &validSplits, &blocks, &meanLogit, &probLoss, &dsrVal, &sharpe, &sr0, &trials)
	if err != nil {
		return nil, fmt.Errorf("storage.Overfitting: %w", err)
	}

	rec := &OverfittingRecord{}
	if pboVal.Valid {
		rec.PBO = &validation.PboResult{
			PBO:         pboVal.Float64,
			Splits:      int(splits.Int64),
			ValidSplits: int(validSplits.Int64),
			Blocks:      int(blocks.Int64),
			MeanLogit:   meanLogit.Float64,
			ProbOOSLoss: probLoss.Float64,
		}
	}
	if dsrVal.Valid {
		rec.DSR = &validation.DsrResult{
			DSR:    dsrVal.Float64,
			Sharpe: sharpe.Float64,
			SR0:    sr0.Float64,
			Trials: int(trials.Int64),
		}
	}
	return rec, nil
}

func formatDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}
