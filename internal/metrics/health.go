package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Dependency names an external collaborator whose liveness affects /healthz.
type Dependency string

const (
	DepFeed   Dependency = "feed"
	DepRedis  Dependency = "redis"
	DepSQLite Dependency = "sqlite"
)

// Probe checks one dependency. A nil error means it is up.
type Probe func(ctx context.Context) error

// RedisProbe pings a Redis client.
func RedisProbe(rdb *goredis.Client) Probe {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// SQLProbe pings a database handle.
func SQLProbe(db *sql.DB) Probe {
	return db.PingContext
}

// DepState is the last known state of a dependency.
type DepState struct {
	Up        bool      `json:"up"`
	LatencyMs float64   `json:"latency_ms,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthStatus tracks the enabled dependencies and the freshness of bars and
// analysis passes. Dependencies that were never enabled do not count.
//
// The service is unhealthy when both stores (Redis and SQLite) are enabled
// and down, and degraded when any enabled dependency is down or no analysis
// pass completed within StaleAfter.
type HealthStatus struct {
	// StaleAfter bounds the age of the last analysis pass. Zero disables it.
	StaleAfter time.Duration

	mu           sync.RWMutex
	startedAt    time.Time
	deps         map[Dependency]*DepState
	probes       map[Dependency]Probe
	lastBar      time.Time
	lastAnalysis time.Time
	now          func() time.Time
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		startedAt: time.Now(),
		deps:      make(map[Dependency]*DepState),
		probes:    make(map[Dependency]Probe),
		now:       time.Now,
	}
}

// Enable starts tracking dep with an initial up state.
func (h *HealthStatus) Enable(dep Dependency, up bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps[dep] = &DepState{Up: up}
}

// AddProbe enables dep and checks it on every liveness tick.
func (h *HealthStatus) AddProbe(dep Dependency, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.deps[dep]; !ok {
		h.deps[dep] = &DepState{Up: true}
	}
	h.probes[dep] = p
}

// SetUp records a pushed state change, such as the feed connecting. Unknown
// dependencies are ignored.
func (h *HealthStatus) SetUp(dep Dependency, up bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.deps[dep]; ok {
		st.Up = up
		if up {
			st.Error = ""
		}
	}
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.lastBar = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastAnalysis(t time.Time) {
	h.mu.Lock()
	h.lastAnalysis = t
	h.mu.Unlock()
}

// CheckAll runs every probe once, each bounded by timeout.
func (h *HealthStatus) CheckAll(ctx context.Context, timeout time.Duration) {
	h.mu.RLock()
	probes := make(map[Dependency]Probe, len(h.probes))
	for dep, p := range h.probes {
		probes[dep] = p
	}
	h.mu.RUnlock()

	for dep, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		start := h.now()
		err := p(pctx)
		cancel()

		st := DepState{
			Up:        err == nil,
			LatencyMs: float64(h.now().Sub(start).Microseconds()) / 1000,
			CheckedAt: h.now(),
		}
		if err != nil {
			st.Error = err.Error()
		}
		h.mu.Lock()
		h.deps[dep] = &st
		h.mu.Unlock()
	}
}

// StartLivenessChecker runs CheckAll every interval until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.CheckAll(ctx, 3*time.Second)
			}
		}
	}()
}

// Status returns the overall status and its HTTP code.
func (h *HealthStatus) Status() (string, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status()
}

func (h *HealthStatus) status() (string, int) {
	down := func(dep Dependency) bool {
		st, ok := h.deps[dep]
		return ok && !st.Up
	}
	if down(DepRedis) && down(DepSQLite) {
		return "unhealthy", http.StatusServiceUnavailable
	}
	for dep := range h.deps {
		if down(dep) {
			return "degraded", http.StatusServiceUnavailable
		}
	}
	if h.StaleAfter > 0 && !h.lastAnalysis.IsZero() && h.now().Sub(h.lastAnalysis) > h.StaleAfter {
		return "degraded", http.StatusServiceUnavailable
	}
	return "healthy", http.StatusOK
}

type healthReport struct {
	Status         string                  `json:"status"`
	Uptime         string                  `json:"uptime"`
	Dependencies   map[Dependency]DepState `json:"dependencies"`
	Down           []Dependency            `json:"down,omitempty"`
	LastBarTime    *time.Time              `json:"last_bar_time,omitempty"`
	BarAge         string                  `json:"bar_age,omitempty"`
	LastAnalysisAt *time.Time              `json:"last_analysis_at,omitempty"`
}

// ServeHTTP serves /healthz.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	status, code := h.status()
	rep := healthReport{
		Status:       status,
		Uptime:       h.now().Sub(h.startedAt).Round(time.Second).String(),
		Dependencies: make(map[Dependency]DepState, len(h.deps)),
	}
	for dep, st := range h.deps {
		rep.Dependencies[dep] = *st
		if !st.Up {
			rep.Down = append(rep.Down, dep)
		}
	}
	if !h.lastBar.IsZero() {
		t := h.lastBar
		rep.LastBarTime = &t
		rep.BarAge = h.now().Sub(t).Round(time.Millisecond).String()
	}
	if !h.lastAnalysis.IsZero() {
		t := h.lastAnalysis
		rep.LastAnalysisAt = &t
	}
	h.mu.RUnlock()

	sort.Slice(rep.Down, func(i, j int) bool { return rep.Down[i] < rep.Down[j] })
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(rep)
}
