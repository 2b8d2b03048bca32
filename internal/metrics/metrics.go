package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the insights service.
type Metrics struct {
	// Engine
	InsightsDetected *prometheus.CounterVec // labels: pattern, impact
	AnalysisDur      prometheus.Histogram
	StoreSize        prometheus.Gauge
	StoreEvicted     prometheus.Counter
	EventsDropped    prometheus.Counter

	// Ingest
	BarsIngested   prometheus.Counter
	TrackedSymbols prometheus.Gauge
	FeedReconnects prometheus.Counter

	// Backpressure
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber

	// Sinks
	RedisWriteDur            prometheus.Histogram
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	SQLiteCommitDur          prometheus.Histogram
	AlertsSent               *prometheus.CounterVec // labels: result
}

// NewMetrics creates all metrics and registers them on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		InsightsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insights_detected_total",
			Help: "Insights produced by the engine (by pattern and impact)",
		}, []string{"pattern", "impact"}),
		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "insights_analysis_duration_seconds",
			Help:    "Latency of one analysis pass over a symbol or all symbols",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		StoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "insights_store_size",
			Help: "Insights currently held by the bounded store",
		}),
		StoreEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insights_store_evicted_total",
			Help: "Insights evicted from the store by capacity or TTL",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insights_events_dropped_total",
			Help: "Insight events dropped because the outbound channel was full",
		}),

		BarsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insights_bars_ingested_total",
			Help: "Bars appended to the market data cache",
		}),
		TrackedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "insights_tracked_symbols",
			Help: "Symbols with a bar window in the cache",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insights_feed_reconnects_total",
			Help: "Bar feed WebSocket reconnection attempts",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insights_fanout_drops_total",
			Help: "Insights dropped by the FanOut bus per subscriber",
		}, []string{"subscriber"}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "insights_redis_write_duration_seconds",
			Help:    "Redis publish latency per insight batch",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "insights_redis_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insights_redis_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "insights_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insights_alerts_total",
			Help: "Alert notifications by result (sent, failed)",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.InsightsDetected,
		m.AnalysisDur,
		m.StoreSize,
		m.StoreEvicted,
		m.EventsDropped,
		m.BarsIngested,
		m.TrackedSymbols,
		m.FeedReconnects,
		m.FanoutDropsTotal,
		m.RedisWriteDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.SQLiteCommitDur,
		m.AlertsSent,
	)

	return m
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. A nil gatherer serves
// prometheus.DefaultGatherer.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
