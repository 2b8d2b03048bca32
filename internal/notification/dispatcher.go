package notification

import (
	"context"
	"log/slog"
	"time"

	"trading-insights/internal/model"
)

// Dispatcher consumes published insights and alerts on those at or above a
// minimum impact. Repeats of the same symbol and pattern inside Cooldown
// are suppressed.
type Dispatcher struct {
	notifier  Notifier
	minImpact model.Impact

	// Cooldown per symbol+pattern. Zero disables suppression.
	Cooldown time.Duration
	// SendTimeout bounds each delivery. Defaults to 10s.
	SendTimeout time.Duration
	// OnResult is called with "sent", "failed" or "suppressed".
	OnResult func(result string)

	last map[string]time.Time
	now  func() time.Time
	log  *slog.Logger
}

// NewDispatcher creates a dispatcher for impacts >= minImpact.
func NewDispatcher(n Notifier, minImpact model.Impact) *Dispatcher {
	return &Dispatcher{
		notifier:    n,
		minImpact:   minImpact,
		SendTimeout: 10 * time.Second,
		last:        make(map[string]time.Time),
		now:         time.Now,
		log:         slog.Default().With("component", "alerts"),
	}
}

// Run reads insights from ch until ctx is cancelled or ch is closed.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan model.Insight) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-ch:
			if !ok {
				return
			}
			d.Handle(ctx, in)
		}
	}
}

// Handle alerts on a single insight if it passes the impact gate and cooldown.
func (d *Dispatcher) Handle(ctx context.Context, in model.Insight) {
	if in.Impact.Rank() < d.minImpact.Rank() {
		return
	}

	key := in.Symbol + "|" + string(in.Pattern)
	now := d.now()
	if d.Cooldown > 0 {
		if prev, ok := d.last[key]; ok && now.Sub(prev) < d.Cooldown {
			d.result("suppressed")
			return
		}
	}

	sctx, cancel := context.WithTimeout(ctx, d.SendTimeout)
	defer cancel()
	if err := d.notifier.Send(sctx, AlertFor(in)); err != nil {
		d.log.Warn("alert delivery failed", "symbol", in.Symbol, "pattern", in.Pattern, "err", err)
		d.result("failed")
		return
	}
	d.last[key] = now
	d.result("sent")
}

func (d *Dispatcher) result(r string) {
	if d.OnResult != nil {
		d.OnResult(r)
	}
}
