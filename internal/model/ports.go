package model

import "context"

// ── Port interfaces ──
// These decouple the engine's collaborators from concrete implementations
// (Redis, SQLite, WebSocket, webhooks).

// InsightSink consumes published insights, typically from a bus subscription.
type InsightSink interface {
	// Run reads insights from ch until ctx is cancelled or ch is closed.
	Run(ctx context.Context, ch <-chan Insight)
}

// InsightWriter persists insights.
type InsightWriter interface {
	WriteInsights(ctx context.Context, insights []Insight) error
	Close() error
}

// BarWriter persists bar history.
type BarWriter interface {
	WriteBars(ctx context.Context, bars []SymbolBar) error
	Close() error
}

// BarReader reads bar history in ascending timestamp order.
type BarReader interface {
	// ReadBars returns bars with timestamp > afterMs. An empty symbol reads all symbols.
	ReadBars(ctx context.Context, symbol string, afterMs int64) ([]SymbolBar, error)
	Close() error
}
