// Package config loads service configuration from the environment, an
// optional .env file and an optional YAML file of detector tuning.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trading-insights/internal/detector"
	"trading-insights/internal/logger"
	"trading-insights/internal/model"
)

// Config holds all application configuration.
type Config struct {
	// Listeners
	HTTPAddr    string
	MetricsAddr string

	// Infrastructure (empty address/path disables the component)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SQLitePath       string
	JournalRetention time.Duration

	// Market data sources
	FeedURL       string
	SynthSymbols  []string
	SynthSeed     int64
	SynthInterval time.Duration
	// WarmStart replays this much bar history from SQLite on boot. Zero disables.
	WarmStart time.Duration

	// Scheduling
	AnalyzeCron string
	SweepCron   string
	PruneCron   string

	// AnalysisStaleAfter degrades /healthz when no analysis pass completed
	// within it. Zero disables the check.
	AnalysisStaleAfter time.Duration

	// Engine sizing
	WindowCapacity int
	StoreCapacity  int
	StoreTTL       time.Duration
	EventBuffer    int
	ReplaySize     int

	// Alerting
	AlertWebhookURL  string
	AlertMinImpact   model.Impact
	AlertCooldown    time.Duration
	TelegramBotToken string
	TelegramChatID   string

	LogLevel string

	// Detector tuning loaded from DetectorConfigPath, keyed by detector name.
	DetectorConfigPath string
	Detectors          map[string]detector.Config
}

// detectorFile is the YAML layout of DETECTOR_CONFIG_PATH:
//
//	detectors:
//	  momentum:
//	    lookback_period: 12
//	    sensitivity_threshold: 0.03
type detectorFile struct {
	Detectors map[string]detector.Config `yaml:"detectors"`
}

// Load reads .env (if present), then the environment, then the detector file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment with defaults.
func FromEnv() (*Config, error) {
	p := &envParser{}
	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          p.int("REDIS_DB", 0),
		SQLitePath:       getEnv("SQLITE_PATH", ""),
		JournalRetention: p.duration("JOURNAL_RETENTION", 30*24*time.Hour),

		FeedURL:       getEnv("FEED_URL", ""),
		SynthSymbols:  splitList(getEnv("SYNTH_SYMBOLS", "")),
		SynthSeed:     int64(p.int("SYNTH_SEED", 1)),
		SynthInterval: time.Duration(p.int("SYNTH_INTERVAL_MS", 1000)) * time.Millisecond,
		WarmStart:     p.duration("WARM_START", 0),

		AnalyzeCron: getEnv("ANALYZE_CRON", "@every 30s"),
		SweepCron:   getEnv("SWEEP_CRON", "@every 1m"),
		PruneCron:   getEnv("PRUNE_CRON", "@daily"),

		AnalysisStaleAfter: p.duration("ANALYSIS_STALE_AFTER", 5*time.Minute),

		WindowCapacity: p.int("WINDOW_CAPACITY", 200),
		StoreCapacity:  p.int("STORE_CAPACITY", 1000),
		StoreTTL:       p.duration("STORE_TTL", 24*time.Hour),
		EventBuffer:    p.int("EVENT_BUFFER", 1024),
		ReplaySize:     p.int("WS_REPLAY_SIZE", 100),

		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
		AlertMinImpact:   model.Impact(getEnv("ALERT_MIN_IMPACT", string(model.ImpactHigh))),
		AlertCooldown:    p.duration("ALERT_COOLDOWN", 5*time.Minute),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DetectorConfigPath: getEnv("DETECTOR_CONFIG_PATH", ""),
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}

	if cfg.DetectorConfigPath != "" {
		dets, err := LoadDetectors(cfg.DetectorConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Detectors = dets
	}
	return cfg, nil
}

// LoadDetectors reads a detector tuning file.
func LoadDetectors(path string) (map[string]detector.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detector config: %w", err)
	}
	return ParseDetectors(data)
}

// ParseDetectors decodes detector tuning YAML. Unknown keys are rejected.
func ParseDetectors(data []byte) (map[string]detector.Config, error) {
	var f detectorFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse detector config: %w", err)
	}
	return f.Detectors, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    int
	}{
		{"WINDOW_CAPACITY", c.WindowCapacity},
		{"STORE_CAPACITY", c.StoreCapacity},
		{"EVENT_BUFFER", c.EventBuffer},
		{"WS_REPLAY_SIZE", c.ReplaySize},
	} {
		if f.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", f.name, f.v))
		}
	}
	// 0 disables expiry.
	if c.StoreTTL < 0 {
		errs = append(errs, fmt.Errorf("STORE_TTL must not be negative, got %s", c.StoreTTL))
	}
	if len(c.SynthSymbols) > 0 && c.SynthInterval <= 0 {
		errs = append(errs, errors.New("SYNTH_INTERVAL_MS must be positive"))
	}
	if _, ok := model.ParseImpact(string(c.AlertMinImpact)); !ok {
		errs = append(errs, fmt.Errorf("ALERT_MIN_IMPACT %q is not one of Critical, High, Medium, Low", c.AlertMinImpact))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if _, err := detector.NewSet(c.Detectors); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogValue redacts secrets when the config is logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_addr", c.HTTPAddr),
		slog.String("metrics_addr", c.MetricsAddr),
		slog.String("redis_addr", c.RedisAddr),
		slog.String("sqlite_path", c.SQLitePath),
		slog.String("feed_url", c.FeedURL),
		slog.Any("synth_symbols", c.SynthSymbols),
		slog.String("analyze_cron", c.AnalyzeCron),
		slog.Int("window_capacity", c.WindowCapacity),
		slog.Int("store_capacity", c.StoreCapacity),
		slog.Duration("store_ttl", c.StoreTTL),
		slog.Bool("webhook_alerts", c.AlertWebhookURL != ""),
		slog.Bool("telegram_alerts", c.TelegramBotToken != ""),
		slog.String("alert_min_impact", string(c.AlertMinImpact)),
		slog.Int("detector_overrides", len(c.Detectors)),
	)
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// envParser collects parse errors so every bad key is reported at once.
type envParser struct {
	errs []error
}

func (p *envParser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
