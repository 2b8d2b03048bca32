package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trading-insights/internal/model"
)

type recordingNotifier struct {
	alerts []Alert
	err    error
}

func (r *recordingNotifier) Send(_ context.Context, a Alert) error {
	if r.err != nil {
		return r.err
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func sample(impact model.Impact) model.Insight {
	return model.Insight{
		ID:              "i1",
		Symbol:          "AAPL",
		Pattern:         model.PatternBreakout,
		Confidence:      0.87,
		Impact:          impact,
		Reason:          "Price broke above the 20-bar high.",
		SuggestedAction: model.ActionIncreasePosition,
	}
}

func TestAlertFor(t *testing.T) {
	a := AlertFor(sample(model.ImpactCritical))
	if a.Level != AlertCritical {
		t.Errorf("level = %s", a.Level)
	}
	if a.Title != "AAPL breakout (Critical)" {
		t.Errorf("title = %q", a.Title)
	}
	if !strings.Contains(a.Message, "Confidence 87%") || !strings.Contains(a.Message, "Increase position") {
		t.Errorf("message = %q", a.Message)
	}
	if a.Insight == nil || a.Insight.ID != "i1" {
		t.Error("insight not attached")
	}
	if LevelFor(model.ImpactHigh) != AlertWarning || LevelFor(model.ImpactLow) != AlertInfo {
		t.Error("LevelFor mapping")
	}
}

func TestDispatcher_ImpactGate(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, model.ImpactHigh)

	for _, imp := range []model.Impact{model.ImpactLow, model.ImpactMedium, model.ImpactHigh, model.ImpactCritical} {
		in := sample(imp)
		in.Symbol = string(imp) // distinct keys
		d.Handle(context.Background(), in)
	}
	if len(rec.alerts) != 2 {
		t.Fatalf("sent %d alerts, want 2 (High, Critical)", len(rec.alerts))
	}
}

func TestDispatcher_Cooldown(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, model.ImpactLow)
	d.Cooldown = time.Minute
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	results := map[string]int{}
	d.OnResult = func(r string) { results[r]++ }

	d.Handle(context.Background(), sample(model.ImpactHigh))
	d.Handle(context.Background(), sample(model.ImpactHigh))
	now = now.Add(2 * time.Minute)
	d.Handle(context.Background(), sample(model.ImpactHigh))

	if results["sent"] != 2 || results["suppressed"] != 1 {
		t.Fatalf("results = %v", results)
	}
}

func TestDispatcher_FailureNotRecorded(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("down")}
	d := NewDispatcher(rec, model.ImpactLow)
	d.Cooldown = time.Hour
	var results []string
	d.OnResult = func(r string) { results = append(results, r) }

	d.Handle(context.Background(), sample(model.ImpactHigh))
	rec.err = nil
	d.Handle(context.Background(), sample(model.ImpactHigh))

	if len(results) != 2 || results[0] != "failed" || results[1] != "sent" {
		t.Fatalf("results = %v, failed deliveries must not start a cooldown", results)
	}
}

func TestDispatcher_Run(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, model.ImpactLow)
	ch := make(chan model.Insight, 2)
	ch <- sample(model.ImpactHigh)
	close(ch)
	d.Run(context.Background(), ch)
	if len(rec.alerts) != 1 {
		t.Fatalf("alerts = %d", len(rec.alerts))
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), AlertFor(sample(model.ImpactHigh))); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["level"] != "WARNING" || got["ts"] == nil {
		t.Fatalf("payload = %v", got)
	}
	ins, ok := got["insight"].(map[string]interface{})
	if !ok || ins["symbol"] != "AAPL" {
		t.Fatalf("insight payload = %v", got["insight"])
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42")
	tg.apiBase = srv.URL
	if err := tg.Send(context.Background(), Alert{Level: AlertCritical, Title: "AAPL breakout", Message: "x.y"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if payload["chat_id"] != "42" || !strings.Contains(payload["text"].(string), `x\.y`) {
		t.Errorf("payload = %v", payload)
	}
}

func TestTelegramText_IncludesLevels(t *testing.T) {
	in := sample(model.ImpactCritical)
	in.Metadata.SupportLevel = 101.5
	in.Metadata.ResistanceLevel = 110
	in.Metadata.CorrelatedAssets = []string{"MSFT"}

	text := telegramText(AlertFor(in))
	for _, want := range []string{"🚨 *AAPL", `Support 101\.50 / Resistance 110\.00`, "With MSFT"} {
		if !strings.Contains(text, want) {
			t.Errorf("text %q missing %q", text, want)
		}
	}
}

func TestPostJSON_ErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	err := postJSON(context.Background(), srv.Client(), srv.URL, map[string]string{"a": "b"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a_b.c!"); got != `a\_b\.c\!` {
		t.Fatalf("escapeMarkdown = %q", got)
	}
}

func TestMulti(t *testing.T) {
	ok, bad := &recordingNotifier{}, &recordingNotifier{err: errors.New("boom")}
	err := Multi{ok, bad}.Send(context.Background(), Alert{Title: "t"})
	if err == nil || len(ok.alerts) != 1 {
		t.Fatalf("err=%v sent=%d", err, len(ok.alerts))
	}
}
