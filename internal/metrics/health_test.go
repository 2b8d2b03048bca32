package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthStatus_DisabledDependenciesStayHealthy(t *testing.T) {
	h := NewHealthStatus()
	if status, code := h.Status(); status != "healthy" || code != http.StatusOK {
		t.Fatalf("fresh status = %s/%d, want healthy/200", status, code)
	}

	h.Enable(DepRedis, false)
	if status, _ := h.Status(); status != "degraded" {
		t.Fatalf("redis down: %s, want degraded", status)
	}
	h.Enable(DepSQLite, false)
	if status, _ := h.Status(); status != "unhealthy" {
		t.Fatalf("both stores down: %s, want unhealthy", status)
	}
	h.SetUp(DepRedis, true)
	h.SetUp(DepSQLite, true)
	if status, _ := h.Status(); status != "healthy" {
		t.Fatalf("recovered: %s, want healthy", status)
	}

	// Unknown dependencies are ignored.
	h.SetUp(DepFeed, false)
	if status, _ := h.Status(); status != "healthy" {
		t.Fatalf("untracked feed: %s, want healthy", status)
	}
}

func TestHealthStatus_CheckAllRecordsProbeResults(t *testing.T) {
	h := NewHealthStatus()
	h.AddProbe(DepRedis, func(context.Context) error { return errors.New("connection refused") })
	h.AddProbe(DepSQLite, func(context.Context) error { return nil })

	h.CheckAll(context.Background(), time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", rec.Code)
	}
	var rep healthReport
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Status != "degraded" || len(rep.Down) != 1 || rep.Down[0] != DepRedis {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Dependencies[DepRedis].Error != "connection refused" || !rep.Dependencies[DepSQLite].Up {
		t.Fatalf("dependencies = %+v", rep.Dependencies)
	}
	if rep.Dependencies[DepSQLite].CheckedAt.IsZero() {
		t.Fatal("probe time not recorded")
	}
}

func TestHealthStatus_StaleAnalysis(t *testing.T) {
	h := NewHealthStatus()
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return clock }
	h.StaleAfter = time.Minute

	h.SetLastAnalysis(clock.Add(-30 * time.Second))
	if status, _ := h.Status(); status != "healthy" {
		t.Fatalf("fresh pass: %s", status)
	}
	h.SetLastAnalysis(clock.Add(-2 * time.Minute))
	if status, _ := h.Status(); status != "degraded" {
		t.Fatalf("stale pass: %s, want degraded", status)
	}
}

func TestHealthStatus_ServeHTTPReportsBarAge(t *testing.T) {
	h := NewHealthStatus()
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return clock }
	h.Enable(DepFeed, true)
	h.SetLastBarTime(clock.Add(-1500 * time.Millisecond))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var rep healthReport
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.BarAge != "1.5s" || rep.LastBarTime == nil || rep.LastAnalysisAt != nil {
		t.Fatalf("report = %+v", rep)
	}
}
