// Package insights is the analysis core: it owns the market data cache, runs
// the detector set over it, keeps produced insights in a bounded store and
// publishes each one on an outbound channel.
//
// The engine is synchronous. It never spawns goroutines and never blocks on
// publication: a full outbound channel drops the event and counts it.
package insights

import (
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trading-insights/internal/detector"
	"trading-insights/internal/indicator"
	"trading-insights/internal/marketdata/cache"
	"trading-insights/internal/metrics"
	"trading-insights/internal/model"
)

// MinAnalysisBars is the window length below which a symbol is not analyzed.
const MinAnalysisBars = 30

// Options configures an Engine. Every field is optional.
type Options struct {
	// Cache holds bar history; nil creates one with WindowCapacity.
	Cache          *cache.Cache
	WindowCapacity int

	// Store holds produced insights; nil creates one with the store defaults.
	Store *Store

	// Detectors to run; nil uses detector.DefaultSet().
	Detectors *detector.Set

	// Events receives every stored insight. nil disables publication.
	Events chan<- model.Insight

	// IDGenerator returns unique insight ids; nil uses random UUIDs.
	IDGenerator func() string

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Engine analyzes cached market data and manages the insight lifecycle.
type Engine struct {
	cache     *cache.Cache
	store     *Store
	detectors *detector.Set
	events    chan<- model.Insight
	newID     func() string
	prom      *metrics.Metrics
	log       *slog.Logger

	dropped atomic.Uint64
}

// NewEngine creates an engine from opts.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		cache:     opts.Cache,
		store:     opts.Store,
		detectors: opts.Detectors,
		events:    opts.Events,
		newID:     opts.IDGenerator,
		prom:      opts.Metrics,
		log:       opts.Logger,
	}
	if e.cache == nil {
		e.cache = cache.New(opts.WindowCapacity)
	}
	if e.store == nil {
		e.store = NewStore(DefaultStoreCapacity, DefaultStoreTTL)
	}
	if e.detectors == nil {
		e.detectors = detector.DefaultSet()
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.NewString() }
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Filter selects insights in GetInsights. Zero fields do not filter.
type Filter struct {
	Symbol        string
	Pattern       model.Pattern
	MinConfidence float64
	Limit         int
}

// Stats summarizes the stored insights.
type Stats struct {
	TotalInsights int                   `json:"total_insights"`
	ByPattern     map[model.Pattern]int `json:"by_pattern"`
	ByImpact      map[model.Impact]int  `json:"by_impact"`
	AvgConfidence float64               `json:"avg_confidence"`
}

// UpdateMarketData appends bar to symbol's window.
func (e *Engine) UpdateMarketData(symbol string, bar model.Bar) {
	e.cache.Append(symbol, bar)
	if e.prom != nil {
		e.prom.BarsIngested.Inc()
		e.prom.TrackedSymbols.Set(float64(len(e.cache.Symbols())))
	}
}

// AnalyzeSymbol runs the single-symbol detectors over symbol's window, stores
// and publishes every result. Fewer than MinAnalysisBars bars yields an empty slice.
func (e *Engine) AnalyzeSymbol(symbol string) []model.Insight {
	start := time.Now()
	found := e.compute(symbol)
	out := e.recordAll(found)
	e.observe(start)
	return out
}

// AnalyzeAllSymbols analyzes every tracked symbol in sorted order, then runs
// the correlation detector once per symbol against all others.
func (e *Engine) AnalyzeAllSymbols() []model.Insight {
	start := time.Now()
	out := []model.Insight{}
	for _, sym := range e.cache.Symbols() {
		out = append(out, e.recordAll(e.compute(sym))...)
	}
	out = append(out, e.recordAll(e.computeCorrelations())...)
	e.observe(start)

	e.log.Debug("analysis pass complete", "symbols", len(e.cache.Symbols()), "insights", len(out))
	return out
}

// Compute returns symbol's single-symbol insights without storing or
// publishing them. Results carry Symbol but no ID.
func (e *Engine) Compute(symbol string) []model.Insight {
	return e.compute(symbol)
}

// ComputeAll is the side-effect-free counterpart of AnalyzeAllSymbols.
func (e *Engine) ComputeAll() []model.Insight {
	out := []model.Insight{}
	for _, sym := range e.cache.Symbols() {
		out = append(out, e.compute(sym)...)
	}
	return append(out, e.computeCorrelations()...)
}

func (e *Engine) compute(symbol string) []model.Insight {
	window := e.cache.Window(symbol)
	if len(window) < MinAnalysisBars {
		return []model.Insight{}
	}
	found := detector.Run(window, nil, e.detectors.Single...)
	for i := range found {
		found[i].Symbol = symbol
	}
	if found == nil {
		return []model.Insight{}
	}
	return found
}

// computeCorrelations recomputes every pairwise correlation on each call.
func (e *Engine) computeCorrelations() []model.Insight {
	var out []model.Insight
	symbols := e.cache.Symbols()
	if len(symbols) < 2 || e.detectors.Correlation == nil {
		return out
	}
	for _, sym := range symbols {
		window := e.cache.Window(sym)
		if len(window) < MinAnalysisBars {
			continue
		}
		if in := e.detectors.Correlation.Detect(window, e.cache.Peers(sym)); in != nil {
			in.Symbol = sym
			out = append(out, *in)
		}
	}
	return out
}

func (e *Engine) recordAll(found []model.Insight) []model.Insight {
	for i := range found {
		found[i] = e.record(found[i])
	}
	return found
}

// record assigns an id, stores and publishes a single insight.
func (e *Engine) record(in model.Insight) model.Insight {
	in.ID = e.newID()

	evicted := e.store.Put(in)
	if e.prom != nil {
		e.prom.InsightsDetected.WithLabelValues(string(in.Pattern), string(in.Impact)).Inc()
		e.prom.StoreSize.Set(float64(e.store.Len()))
		if evicted > 0 {
			e.prom.StoreEvicted.Add(float64(evicted))
		}
	}

	e.publish(in)
	return in
}

// publish sends without blocking; a full channel drops the event.
func (e *Engine) publish(in model.Insight) {
	if e.events == nil {
		return
	}
	select {
	case e.events <- in:
	default:
		e.dropped.Add(1)
		if e.prom != nil {
			e.prom.EventsDropped.Inc()
		}
		e.log.Warn("insight event dropped: channel full", "symbol", in.Symbol, "pattern", in.Pattern)
	}
}

func (e *Engine) observe(start time.Time) {
	if e.prom != nil {
		e.prom.AnalysisDur.Observe(time.Since(start).Seconds())
	}
}

// GetInsights returns stored insights matching f, newest first (by timestamp,
// then by insertion order).
func (e *Engine) GetInsights(f Filter) []model.Insight {
	entries := e.store.snapshot()

	matched := entries[:0]
	for _, en := range entries {
		in := en.insight
		if f.Symbol != "" && in.Symbol != f.Symbol {
			continue
		}
		if f.Pattern != "" && in.Pattern != f.Pattern {
			continue
		}
		if in.Confidence < f.MinConfidence {
			continue
		}
		matched = append(matched, en)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].insight.Timestamp != matched[j].insight.Timestamp {
			return matched[i].insight.Timestamp > matched[j].insight.Timestamp
		}
		return matched[i].seq > matched[j].seq
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]model.Insight, len(matched))
	for i, en := range matched {
		out[i] = en.insight
	}
	return out
}

// GetInsight returns the stored insight with the given id.
func (e *Engine) GetInsight(id string) (model.Insight, bool) {
	return e.store.Get(id)
}

// GetStats aggregates the stored insights.
func (e *Engine) GetStats() Stats {
	st := Stats{
		ByPattern: make(map[model.Pattern]int),
		ByImpact:  make(map[model.Impact]int),
	}
	var sum float64
	for _, en := range e.store.snapshot() {
		st.TotalInsights++
		st.ByPattern[en.insight.Pattern]++
		st.ByImpact[en.insight.Impact]++
		sum += en.insight.Confidence
	}
	if st.TotalInsights > 0 {
		st.AvgConfidence = indicator.Round2(sum / float64(st.TotalInsights))
	}
	return st
}

// GetAvailableSymbols returns the tracked symbols in sorted order.
func (e *Engine) GetAvailableSymbols() []string {
	return e.cache.Symbols()
}

// ClearInsights empties the insight store. Market data is kept.
func (e *Engine) ClearInsights() {
	e.store.Clear()
	if e.prom != nil {
		e.prom.StoreSize.Set(0)
	}
	e.log.Info("insights cleared")
}

// Sweep drops insights past the store TTL.
func (e *Engine) Sweep(now time.Time) int {
	n := e.store.Sweep(now)
	if e.prom != nil {
		e.prom.StoreSize.Set(float64(e.store.Len()))
		if n > 0 {
			e.prom.StoreEvicted.Add(float64(n))
		}
	}
	return n
}

// Dropped returns the number of events dropped on a full channel.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}

// WindowLen returns the number of cached bars for symbol.
func (e *Engine) WindowLen(symbol string) int {
	return e.cache.Len(symbol)
}
