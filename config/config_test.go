package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trading-insights/internal/detector"
	"trading-insights/internal/model"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.MetricsAddr != ":9090" {
		t.Errorf("addrs = %s %s", cfg.HTTPAddr, cfg.MetricsAddr)
	}
	if cfg.WindowCapacity != 200 || cfg.StoreCapacity != 1000 || cfg.StoreTTL != 24*time.Hour {
		t.Errorf("sizing = %d %d %s", cfg.WindowCapacity, cfg.StoreCapacity, cfg.StoreTTL)
	}
	if cfg.AnalyzeCron != "@every 30s" || cfg.AlertMinImpact != model.ImpactHigh {
		t.Errorf("cron=%q impact=%q", cfg.AnalyzeCron, cfg.AlertMinImpact)
	}
	if cfg.RedisAddr != "" || cfg.SQLitePath != "" || cfg.FeedURL != "" || cfg.SynthSymbols != nil {
		t.Error("optional components should default to disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":18080")
	t.Setenv("SYNTH_SYMBOLS", " AAPL, MSFT,,BTC ")
	t.Setenv("SYNTH_INTERVAL_MS", "250")
	t.Setenv("STORE_TTL", "2h")
	t.Setenv("WINDOW_CAPACITY", "50")
	t.Setenv("ALERT_MIN_IMPACT", "Critical")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPAddr != ":18080" || cfg.StoreTTL != 2*time.Hour || cfg.WindowCapacity != 50 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if strings.Join(cfg.SynthSymbols, ",") != "AAPL,MSFT,BTC" {
		t.Errorf("symbols = %v", cfg.SynthSymbols)
	}
	if cfg.SynthInterval != 250*time.Millisecond || cfg.AlertMinImpact != model.ImpactCritical {
		t.Errorf("interval=%s impact=%s", cfg.SynthInterval, cfg.AlertMinImpact)
	}
}

func TestFromEnv_ReportsAllParseErrors(t *testing.T) {
	t.Setenv("WINDOW_CAPACITY", "lots")
	t.Setenv("STORE_TTL", "forever")
	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected parse errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "WINDOW_CAPACITY") || !strings.Contains(msg, "STORE_TTL") {
		t.Fatalf("error should name both keys: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg, _ := FromEnv()
	cfg.WindowCapacity = 0
	cfg.StoreCapacity = -1
	cfg.AlertMinImpact = "Severe"
	cfg.LogLevel = "chatty"
	cfg.Detectors = map[string]detector.Config{"astrology": {}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"WINDOW_CAPACITY", "STORE_CAPACITY", "ALERT_MIN_IMPACT", "LOG_LEVEL", "astrology"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestValidate_StableOrder(t *testing.T) {
	cfg, _ := FromEnv()
	cfg.WindowCapacity = 0
	cfg.StoreCapacity = 0
	cfg.EventBuffer = 0
	cfg.ReplaySize = 0

	first := cfg.Validate().Error()
	for i := 0; i < 20; i++ {
		if got := cfg.Validate().Error(); got != first {
			t.Fatalf("validation output changed between runs:\n%s\n%s", first, got)
		}
	}
	if w, s := strings.Index(first, "WINDOW_CAPACITY"), strings.Index(first, "WS_REPLAY_SIZE"); w < 0 || s < w {
		t.Fatalf("unexpected order: %s", first)
	}
}

func TestValidate_StoreTTL(t *testing.T) {
	t.Setenv("STORE_TTL", "0")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("STORE_TTL=0 should disable expiry, got %v", err)
	}

	cfg.StoreTTL = -time.Minute
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "STORE_TTL") {
		t.Fatalf("negative STORE_TTL: %v", err)
	}
}

func TestParseDetectors(t *testing.T) {
	dets, err := ParseDetectors([]byte(`
detectors:
  momentum:
    lookback_period: 12
    sensitivity_threshold: 0.03
  breakout:
    sensitivity_threshold: 2
`))
	if err != nil {
		t.Fatalf("ParseDetectors: %v", err)
	}
	if dets["momentum"] != (detector.Config{LookbackPeriod: 12, SensitivityThreshold: 0.03}) {
		t.Errorf("momentum = %+v", dets["momentum"])
	}
	if dets["breakout"].LookbackPeriod != 0 || dets["breakout"].SensitivityThreshold != 2 {
		t.Errorf("breakout = %+v", dets["breakout"])
	}

	if _, err := ParseDetectors([]byte("detectors:\n  momentum:\n    lookback: 3\n")); err == nil {
		t.Error("expected error for unknown field")
	}
	if dets, err := ParseDetectors(nil); err != nil || dets != nil {
		t.Errorf("empty file: %v %v", dets, err)
	}
}

func TestFromEnv_DetectorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detectors.yaml")
	if err := os.WriteFile(path, []byte("detectors:\n  divergence:\n    sensitivity_threshold: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DETECTOR_CONFIG_PATH", path)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Detectors["divergence"].SensitivityThreshold != 5 {
		t.Fatalf("detectors = %+v", cfg.Detectors)
	}

	t.Setenv("DETECTOR_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for missing detector file")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ANALYZE_CRON=@every 5s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	t.Setenv("ANALYZE_CRON", "") // registered for cleanup; empty lets .env win
	os.Unsetenv("ANALYZE_CRON")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AnalyzeCron != "@every 5s" {
		t.Fatalf("AnalyzeCron = %q, want value from .env", cfg.AnalyzeCron)
	}
}

func TestLogValue_RedactsSecrets(t *testing.T) {
	cfg, _ := FromEnv()
	cfg.RedisPassword = "hunter2"
	cfg.TelegramBotToken = "123:secret"
	if s := cfg.LogValue().String(); strings.Contains(s, "hunter2") || strings.Contains(s, "secret") {
		t.Fatalf("secret leaked: %s", s)
	}
}
