package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"trading-insights/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("sqlite: not found")

// Reader provides read-only access for replay, backtest and journal queries.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	return &Reader{db: db}, nil
}

// ReadBars returns bars with ts > afterMs in ascending time order. An empty
// symbol reads every symbol, ordered by (ts, symbol).
func (r *Reader) ReadBars(ctx context.Context, symbol string, afterMs int64) ([]model.SymbolBar, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if symbol == "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT symbol, ts, open, high, low, close, volume
			FROM bars WHERE ts > ?
			ORDER BY ts ASC, symbol ASC
		`, afterMs)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT symbol, ts, open, high, low, close, volume
			FROM bars WHERE symbol = ? AND ts > ?
			ORDER BY ts ASC
		`, symbol, afterMs)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var out []model.SymbolBar
	for rows.Next() {
		var b model.SymbolBar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BarSymbols returns the distinct symbols in the bar history, sorted.
func (r *Reader) BarSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsightQuery selects journaled insights. Zero fields do not filter.
type InsightQuery struct {
	Symbol  string
	Pattern model.Pattern
	SinceMs int64
	Limit   int
}

// ReadInsights returns journaled insights newest first.
func (r *Reader) ReadInsights(ctx context.Context, q InsightQuery) ([]model.Insight, error) {
	query := `SELECT data FROM insights WHERE ts >= ?`
	args := []interface{}{q.SinceMs}
	if q.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, q.Symbol)
	}
	if q.Pattern != "" {
		query += ` AND pattern = ?`
		args = append(args, string(q.Pattern))
	}
	query += ` ORDER BY ts DESC, rowid DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query insights: %w", err)
	}
	defer rows.Close()

	var out []model.Insight
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite scan insight: %w", err)
		}
		var in model.Insight
		if err := json.Unmarshal([]byte(data), &in); err != nil {
			return nil, fmt.Errorf("decode insight: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetInsight returns one journaled insight or ErrNotFound.
func (r *Reader) GetInsight(ctx context.Context, id string) (model.Insight, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM insights WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Insight{}, ErrNotFound
	}
	if err != nil {
		return model.Insight{}, fmt.Errorf("sqlite get insight %s: %w", id, err)
	}
	var in model.Insight
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return model.Insight{}, fmt.Errorf("decode insight: %w", err)
	}
	return in, nil
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
