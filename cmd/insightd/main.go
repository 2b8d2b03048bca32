// cmd/insightd is the pattern detection service: it ingests bars, runs the
// detector set on a schedule and serves insights over HTTP, WebSocket,
// Redis, the SQLite journal and alert notifiers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trading-insights/config"
	"trading-insights/internal/bus"
	"trading-insights/internal/detector"
	"trading-insights/internal/gateway"
	"trading-insights/internal/insights"
	"trading-insights/internal/logger"
	"trading-insights/internal/marketdata/feed"
	"trading-insights/internal/marketdata/replay"
	"trading-insights/internal/marketdata/synth"
	"trading-insights/internal/metrics"
	"trading-insights/internal/model"
	"trading-insights/internal/notification"
	"trading-insights/internal/scheduler"
	redisstore "trading-insights/internal/store/redis"
	sqlitestore "trading-insights/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	log := logger.Init("insightd", level)
	log.Info("starting", "config", cfg)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()
	health.StaleAfter = cfg.AnalysisStaleAfter
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, reg)
	metricsSrv.Start()

	// ---- Engine ----
	detectors, err := detector.NewSet(cfg.Detectors)
	if err != nil {
		return err
	}
	events := make(chan model.Insight, cfg.EventBuffer)
	engine := insights.NewEngine(insights.Options{
		WindowCapacity: cfg.WindowCapacity,
		Store:          insights.NewStore(cfg.StoreCapacity, cfg.StoreTTL),
		Detectors:      detectors,
		Events:         events,
		Metrics:        prom,
		Logger:         log.With("component", "engine"),
	})

	var consumers sync.WaitGroup
	spawn := func(fn func()) {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			fn()
		}()
	}

	// ---- Insight fan-out ----
	insightBus := bus.New[model.Insight](cfg.EventBuffer)
	insightBus.OnDrop = func(name string) {
		prom.FanoutDropsTotal.WithLabelValues(name).Inc()
	}

	attach := func(name string, sink model.InsightSink) {
		in := insightBus.Subscribe(name)
		spawn(func() { sink.Run(ctx, in) })
	}

	hub := gateway.NewHub(cfg.ReplaySize)
	hub.OnSlowClient = func() { prom.FanoutDropsTotal.WithLabelValues("ws_client").Inc() }
	attach("ws", hub)

	// ---- SQLite journal + bar history ----
	var (
		sqlWriter *sqlitestore.Writer
		sqlReader *sqlitestore.Reader
		history   gateway.HistoryReader
	)
	if cfg.SQLitePath != "" {
		sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			return err
		}
		defer sqlWriter.Close()
		sqlWriter.OnCommit = func(d time.Duration) { prom.SQLiteCommitDur.Observe(d.Seconds()) }

		sqlReader, err = sqlitestore.NewReader(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer sqlReader.Close()
		history = sqlReader

		health.AddProbe(metrics.DepSQLite, metrics.SQLProbe(sqlWriter.DB()))
		attach("journal", sqlWriter)
		log.Info("sqlite journal ready", "path", cfg.SQLitePath)
	}

	// ---- Redis publisher ----
	var (
		redisWriter *redisstore.Writer
		latest      gateway.LatestReader
	)
	if cfg.RedisAddr != "" {
		redisWriter, err = redisstore.New(redisstore.WriterConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			// Redis is an optional sink; the service runs without it.
			log.Warn("redis unavailable, continuing without it", "err", err)
		} else {
			defer redisWriter.Close()
			redisWriter.OnWrite = func(d time.Duration) { prom.RedisWriteDur.Observe(d.Seconds()) }

			cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
			cb.OnStateChange = func(from, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
			}
			publisher := redisstore.NewPublisher(redisWriter, cb, 0)
			publisher.OnFlush = func(n int) { log.Info("redis backlog flushed", "insights", n) }

			reader, err := redisstore.NewReader(redisstore.ReaderConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			if err != nil {
				log.Warn("redis reader unavailable", "err", err)
			} else {
				defer reader.Close()
				latest = reader
			}

			health.AddProbe(metrics.DepRedis, metrics.RedisProbe(redisWriter.Client()))
			attach("redis", publisher)
		}
	}

	// ---- Alerting ----
	var notifiers notification.Multi
	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	var notifier notification.Notifier = notification.NewLogNotifier()
	if len(notifiers) > 0 {
		notifier = notifiers
	}
	dispatcher := notification.NewDispatcher(notifier, cfg.AlertMinImpact)
	dispatcher.Cooldown = cfg.AlertCooldown
	dispatcher.OnResult = func(result string) { prom.AlertsSent.WithLabelValues(result).Inc() }
	attach("alerts", dispatcher)

	spawn(func() { insightBus.Run(ctx, events) })

	// ---- Bar ingest ----
	bars := make(chan model.SymbolBar, cfg.EventBuffer)
	barBus := bus.New[model.SymbolBar](cfg.EventBuffer)
	barBus.OnDrop = func(name string) {
		prom.FanoutDropsTotal.WithLabelValues(name).Inc()
	}
	apply := func(sb model.SymbolBar) {
		engine.UpdateMarketData(sb.Symbol, sb.Bar)
		health.SetLastBarTime(time.UnixMilli(sb.Timestamp))
	}
	// The engine window must stay contiguous, so its subscription blocks the
	// bus instead of dropping. Only the history sink may lose bars.
	engineIn := barBus.SubscribeBlocking("engine")
	spawn(func() {
		for sb := range engineIn {
			apply(sb)
		}
	})
	if sqlWriter != nil {
		historyIn := barBus.Subscribe("bar_history")
		spawn(func() { sqlWriter.RunBars(ctx, historyIn) })
	}
	spawn(func() { barBus.Run(ctx, bars) })

	ingest := func(sb model.SymbolBar) bool {
		select {
		case bars <- sb:
			return true
		default:
			prom.FanoutDropsTotal.WithLabelValues("ingest").Inc()
			return false
		}
	}

	// Warm start runs before any feed and bypasses the bus: the bars are
	// already in the history table.
	if cfg.WarmStart > 0 && sqlReader != nil {
		since := time.Now().Add(-cfg.WarmStart)
		n, err := warmStart(ctx, sqlReader, since, apply)
		if err != nil {
			log.Warn("warm start replay failed", "err", err, "bars", n)
		} else {
			log.Info("warm start complete", "bars", n, "since", since.Format(time.RFC3339))
		}
	}

	if cfg.FeedURL != "" {
		client, err := feed.New(feed.Config{URL: cfg.FeedURL})
		if err != nil {
			return err
		}
		health.Enable(metrics.DepFeed, false)
		client.OnConnect = func(up bool) { health.SetUp(metrics.DepFeed, up) }
		client.OnReconnect = prom.FeedReconnects.Inc
		spawn(func() {
			if err := client.Start(ctx, bars); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("feed stopped", "err", err)
			}
		})
		log.Info("bar feed enabled", "url", cfg.FeedURL)
	}

	if len(cfg.SynthSymbols) > 0 {
		gen := synth.New(synth.Config{Symbols: cfg.SynthSymbols, Seed: cfg.SynthSeed})
		spawn(func() {
			if err := gen.Run(ctx, cfg.SynthInterval, bars); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("synthetic feed stopped", "err", err)
			}
		})
		log.Info("synthetic feed enabled", "symbols", cfg.SynthSymbols, "interval", cfg.SynthInterval)
	}

	health.StartLivenessChecker(ctx, 10*time.Second)

	// ---- Scheduler ----
	sched := scheduler.New(ctx, engine)
	sched.OnPass = func(done time.Time, n int) { health.SetLastAnalysis(done) }
	if err := sched.RegisterAll(cfg.AnalyzeCron, cfg.SweepCron); err != nil {
		return err
	}
	if sqlWriter != nil && cfg.JournalRetention > 0 {
		if err := sched.RegisterPrune(cfg.PruneCron, sqlWriter, cfg.JournalRetention); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	// ---- HTTP / WebSocket API ----
	mux := http.NewServeMux()
	channelStats := func() []bus.ChannelStat {
		return append(insightBus.ChannelStats(), barBus.ChannelStats()...)
	}
	gateway.RegisterRoutes(mux, &gateway.API{
		Engine:   engine,
		Hub:      hub,
		History:  history,
		Latest:   latest,
		Health:   health,
		Ingest:   ingest,
		Channels: channelStats,
		Start:    time.Now(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-serveErr:
		log.Error("http server failed", "err", runErr)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	metricsSrv.Stop(shutdownCtx)
	consumers.Wait()

	stats := engine.GetStats()
	log.Info("final stats",
		"insights", stats.TotalInsights,
		"symbols", len(engine.GetAvailableSymbols()),
		"events_dropped", engine.Dropped(),
		"ws_seq", hub.Seq(),
	)
	return runErr
}

// warmStart replays persisted bars newer than since through apply, oldest
// first, so windows hold the newest history before live data arrives.
func warmStart(ctx context.Context, reader model.BarReader, since time.Time, apply func(model.SymbolBar)) (int, error) {
	out := make(chan model.SymbolBar, 256)
	var (
		n   int
		err error
	)
	go func() {
		defer close(out)
		n, err = replay.New(reader).Run(ctx, "", since.UnixMilli(), 0, out)
	}()
	for sb := range out {
		apply(sb)
	}
	return n, err
}
