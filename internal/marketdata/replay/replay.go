// Package replay streams stored bar history back through the pipeline at a
// configurable speed, for backtesting and warm starts.
package replay

import (
	"context"
	"log/slog"
	"time"

	"trading-insights/internal/model"
)

// maxGap caps the simulated wait between two bars.
const maxGap = 5 * time.Second

// Replayer reads historical bars and replays them in time order.
type Replayer struct {
	reader model.BarReader
	log    *slog.Logger
}

// New creates a Replayer backed by a bar reader (e.g. the SQLite store).
func New(reader model.BarReader) *Replayer {
	return &Replayer{reader: reader, log: slog.Default().With("component", "replay")}
}

// Run replays bars of symbol ("" = all symbols) with ts > afterMs into out.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x,
// 0 = as fast as possible. Returns the number of bars emitted.
func (r *Replayer) Run(ctx context.Context, symbol string, afterMs int64, speed float64, out chan<- model.SymbolBar) (int, error) {
	bars, err := r.reader.ReadBars(ctx, symbol, afterMs)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		r.log.Info("no bars to replay", "symbol", symbol)
		return 0, nil
	}
	r.log.Info("replaying bars", "count", len(bars), "symbol", symbol, "speed", speed)

	var prevTs int64
	emitted := 0
	for _, b := range bars {
		if speed > 0 && prevTs != 0 {
			if gap := time.Duration(b.Timestamp-prevTs) * time.Millisecond; gap > 0 {
				scaled := time.Duration(float64(gap) / speed)
				if scaled > maxGap {
					scaled = maxGap
				}
				select {
				case <-ctx.Done():
					return emitted, ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		prevTs = b.Timestamp

		select {
		case <-ctx.Done():
			r.log.Info("replay cancelled", "emitted", emitted)
			return emitted, ctx.Err()
		case out <- b:
			emitted++
		}
	}

	r.log.Info("replay completed", "emitted", emitted)
	return emitted, nil
}
