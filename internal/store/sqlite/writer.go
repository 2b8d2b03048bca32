// Package sqlite keeps a durable journal of insights and the bar history used
// for replay and backtesting.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-insights/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/insights.db"

	// BatchSize and FlushDelay tune Run/RunBars; zero uses the defaults.
	BatchSize  int
	FlushDelay time.Duration
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db         *sql.DB
	batchSize  int
	flushDelay time.Duration
	log        *slog.Logger

	// OnCommit is called after every committed batch (for metrics).
	OnCommit func(d time.Duration)
}

var (
	_ model.InsightWriter = (*Writer)(nil)
	_ model.BarWriter     = (*Writer)(nil)
	_ model.InsightSink   = (*Writer)(nil)
)

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	w := &Writer{
		db:         db,
		batchSize:  cfg.BatchSize,
		flushDelay: cfg.FlushDelay,
		log:        slog.Default().With("component", "sqlite"),
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.flushDelay <= 0 {
		w.flushDelay = defaultFlushDelay
	}
	w.log.Info("opened database", "path", cfg.DBPath)
	return w, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS insights (
			id          TEXT    PRIMARY KEY,
			symbol      TEXT    NOT NULL,
			pattern     TEXT    NOT NULL,
			impact      TEXT    NOT NULL,
			confidence  REAL    NOT NULL,
			ts          INTEGER NOT NULL,
			data        TEXT    NOT NULL,
			created_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_insights_symbol_ts ON insights (symbol, ts);
		CREATE INDEX IF NOT EXISTS idx_insights_created_at ON insights (created_at);

		CREATE TABLE IF NOT EXISTS bars (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  REAL    NOT NULL,
			PRIMARY KEY (symbol, ts)
		);
	`)
	return err
}

// WriteInsights inserts a batch of insights in a single transaction.
func (w *Writer) WriteInsights(ctx context.Context, batch []model.Insight) error {
	if len(batch) == 0 {
		return nil
	}
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO insights (id, symbol, pattern, impact, confidence, ts, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, len(batch), func(stmt *sql.Stmt, i int) error {
		in := &batch[i]
		_, err := stmt.ExecContext(ctx, in.ID, in.Symbol, string(in.Pattern), string(in.Impact),
			in.Confidence, in.Timestamp, string(in.JSON()))
		return err
	})
}

// WriteBars inserts a batch of bars in a single transaction. A bar with an
// existing (symbol, ts) replaces the stored one.
func (w *Writer) WriteBars(ctx context.Context, bars []model.SymbolBar) error {
	if len(bars) == 0 {
		return nil
	}
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, len(bars), func(stmt *sql.Stmt, i int) error {
		b := &bars[i]
		_, err := stmt.ExecContext(ctx, b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
		return err
	})
}

func (w *Writer) inTx(ctx context.Context, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite exec: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	if w.OnCommit != nil {
		w.OnCommit(time.Since(start))
	}
	return nil
}

// Run journals insights from ch in batched transactions, flushing every
// batch-size insights or every flush delay, whichever comes first.
// Blocks until ctx is cancelled or ch is closed.
func (w *Writer) Run(ctx context.Context, ch <-chan model.Insight) {
	runBatched(ctx, ch, w.batchSize, w.flushDelay, func(batch []model.Insight) {
		// The run context may already be cancelled on the final flush.
		if err := w.WriteInsights(context.Background(), batch); err != nil {
			w.log.Error("insight batch insert failed", "count", len(batch), "err", err)
			return
		}
		w.log.Debug("committed insights", "count", len(batch))
	})
}

// RunBars records bars from ch with the same batching as Run.
func (w *Writer) RunBars(ctx context.Context, ch <-chan model.SymbolBar) {
	runBatched(ctx, ch, w.batchSize, w.flushDelay, func(batch []model.SymbolBar) {
		if err := w.WriteBars(context.Background(), batch); err != nil {
			w.log.Error("bar batch insert failed", "count", len(batch), "err", err)
		}
	})
}

func runBatched[T any](ctx context.Context, ch <-chan T, size int, delay time.Duration, flushFn func([]T)) {
	batch := make([]T, 0, size)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		flushFn(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case v, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, v)
			if len(batch) >= size {
				flush()
				timer.Reset(delay)
			}
		case <-timer.C:
			flush()
			timer.Reset(delay)
		}
	}
}

// PruneInsights deletes insights journaled before beforeMs. Age is taken from
// the row's created_at, not the bar timestamp, so replayed history survives.
// Returns the number of rows removed.
func (w *Writer) PruneInsights(ctx context.Context, beforeMs int64) (int64, error) {
	res, err := w.db.ExecContext(ctx, `DELETE FROM insights WHERE created_at < ?`, beforeMs/1000)
	if err != nil {
		return 0, fmt.Errorf("sqlite prune insights: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
