package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trading-insights/internal/bus"
	"trading-insights/internal/insights"
	"trading-insights/internal/model"
	"trading-insights/internal/store/sqlite"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Engine is the subset of the insights engine the API serves.
type Engine interface {
	UpdateMarketData(symbol string, bar model.Bar)
	AnalyzeSymbol(symbol string) []model.Insight
	AnalyzeAllSymbols() []model.Insight
	GetInsights(f insights.Filter) []model.Insight
	GetInsight(id string) (model.Insight, bool)
	GetStats() insights.Stats
	GetAvailableSymbols() []string
	ClearInsights()
	Dropped() uint64
}

// HistoryReader serves the persisted insight journal.
type HistoryReader interface {
	ReadInsights(ctx context.Context, q sqlite.InsightQuery) ([]model.Insight, error)
	GetInsight(ctx context.Context, id string) (model.Insight, error)
}

// LatestReader serves recent insights from Redis.
type LatestReader interface {
	Latest(ctx context.Context, symbol string) (model.Insight, bool, error)
	ReadRecent(ctx context.Context, count int64) ([]model.Insight, error)
}

// API bundles the collaborators behind the HTTP routes. Engine and Hub are
// required; the rest are optional and their routes answer 404 when nil.
type API struct {
	Engine  Engine
	Hub     *Hub
	History HistoryReader
	Latest  LatestReader
	Health  http.Handler

	// Channels reports bus subscriber backlogs for /api/metrics.
	Channels func() []bus.ChannelStat

	// Ingest receives bars posted to /api/bars and reports whether the bar
	// was queued. Defaults to Engine.UpdateMarketData.
	Ingest func(model.SymbolBar) bool

	Start time.Time
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, api *API) {
	if api.Start.IsZero() {
		api.Start = time.Now()
	}
	log := slog.Default().With("component", "gateway")

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", "err", err)
			return
		}
		since, _ := strconv.ParseInt(r.URL.Query().Get("since_seq"), 10, 64)
		api.Hub.Register(conn, since)
	})

	mux.HandleFunc("/api/insights", rest(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			f, err := parseFilter(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, api.Engine.GetInsights(f))
		case http.MethodDelete:
			api.Engine.ClearInsights()
			log.Info("insights cleared via api")
			writeJSON(w, http.StatusOK, ClearResponse{Status: "cleared"})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}))

	mux.HandleFunc("/api/insights/", rest(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/insights/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusNotFound, "insight not found")
			return
		}
		if in, ok := api.Engine.GetInsight(id); ok {
			writeJSON(w, http.StatusOK, in)
			return
		}
		// Evicted or expired from memory; fall back to the journal.
		if api.History != nil {
			in, err := api.History.GetInsight(r.Context(), id)
			switch {
			case err == nil:
				writeJSON(w, http.StatusOK, in)
				return
			case !errors.Is(err, sqlite.ErrNotFound):
				log.Error("journal lookup failed", "id", id, "err", err)
				writeError(w, http.StatusInternalServerError, "journal unavailable")
				return
			}
		}
		writeError(w, http.StatusNotFound, "insight not found")
	}))

	mux.HandleFunc("/api/stats", rest(getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.Engine.GetStats())
	})))

	mux.HandleFunc("/api/symbols", rest(getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SymbolsResponse{Symbols: api.Engine.GetAvailableSymbols()})
	})))

	mux.HandleFunc("/api/bars", rest(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var bar model.SymbolBar
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&bar); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if bar.Symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		if err := bar.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if api.Ingest != nil {
			if !api.Ingest(bar) {
				writeError(w, http.StatusServiceUnavailable, "ingest queue full")
				return
			}
		} else {
			api.Engine.UpdateMarketData(bar.Symbol, bar.Bar)
		}
		writeJSON(w, http.StatusAccepted, BarAccepted{Symbol: bar.Symbol, Timestamp: bar.Timestamp})
	}))

	mux.HandleFunc("/api/analyze", rest(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		symbol := r.URL.Query().Get("symbol")
		var found []model.Insight
		if symbol != "" {
			found = api.Engine.AnalyzeSymbol(symbol)
		} else {
			found = api.Engine.AnalyzeAllSymbols()
		}
		writeJSON(w, http.StatusOK, AnalyzeResponse{Symbol: symbol, Count: len(found), Insights: found})
	}))

	mux.HandleFunc("/api/history", rest(getOnly(func(w http.ResponseWriter, r *http.Request) {
		if api.History == nil {
			writeError(w, http.StatusNotFound, "insight journal not configured")
			return
		}
		q, err := parseHistoryQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out, err := api.History.ReadInsights(r.Context(), q)
		if err != nil {
			log.Error("journal query failed", "err", err)
			writeError(w, http.StatusInternalServerError, "journal unavailable")
			return
		}
		if out == nil {
			out = []model.Insight{}
		}
		writeJSON(w, http.StatusOK, out)
	})))

	mux.HandleFunc("/api/latest", rest(getOnly(func(w http.ResponseWriter, r *http.Request) {
		if api.Latest == nil {
			writeError(w, http.StatusNotFound, "redis not configured")
			return
		}
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			limit, err := parseLimit(r.URL.Query().Get("limit"))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if limit == 0 {
				limit = 50
			}
			out, err := api.Latest.ReadRecent(r.Context(), int64(limit))
			if err != nil {
				log.Error("recent stream read failed", "err", err)
				writeError(w, http.StatusBadGateway, "redis unavailable")
				return
			}
			if out == nil {
				out = []model.Insight{}
			}
			writeJSON(w, http.StatusOK, out)
			return
		}
		in, ok, err := api.Latest.Latest(r.Context(), symbol)
		if err != nil {
			log.Error("latest lookup failed", "symbol", symbol, "err", err)
			writeError(w, http.StatusBadGateway, "redis unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "no insight for symbol")
			return
		}
		writeJSON(w, http.StatusOK, in)
	})))

	mux.HandleFunc("/api/metrics", rest(getOnly(func(w http.ResponseWriter, r *http.Request) {
		m := CollectMetrics(api.Start)
		m.WSClients = api.Hub.ClientCount()
		m.StreamSeq = api.Hub.Seq()
		m.EventsDropped = api.Engine.Dropped()
		if api.Hub.Latency != nil {
			m.InsightAge = api.Hub.Latency.Summary()
		}
		if api.Channels != nil {
			m.Channels = api.Channels()
		}
		writeJSON(w, http.StatusOK, m)
	})))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if api.Health != nil {
			api.Health.ServeHTTP(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"ws_clients": api.Hub.ClientCount(),
			"uptime_sec": int64(time.Since(api.Start).Seconds()),
		})
	})
}

// rest sets CORS headers and answers preflight requests.
func rest(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

func parseFilter(r *http.Request) (insights.Filter, error) {
	q := r.URL.Query()
	f := insights.Filter{Symbol: q.Get("symbol")}
	if p := q.Get("pattern"); p != "" {
		f.Pattern = model.Pattern(p)
		if !f.Pattern.Valid() {
			return f, errors.New("unknown pattern " + p)
		}
	}
	if s := q.Get("min_confidence"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 1 {
			return f, errors.New("min_confidence must be a number in [0,1]")
		}
		f.MinConfidence = v
	}
	limit, err := parseLimit(q.Get("limit"))
	f.Limit = limit
	return f, err
}

func parseHistoryQuery(r *http.Request) (sqlite.InsightQuery, error) {
	q := r.URL.Query()
	hq := sqlite.InsightQuery{Symbol: q.Get("symbol"), Pattern: model.Pattern(q.Get("pattern"))}
	if hq.Pattern != "" && !hq.Pattern.Valid() {
		return hq, errors.New("unknown pattern " + string(hq.Pattern))
	}
	if s := q.Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return hq, errors.New("since must be unix milliseconds")
		}
		hq.SinceMs = v
	}
	limit, err := parseLimit(q.Get("limit"))
	if limit == 0 {
		limit = 100
	}
	hq.Limit = limit
	return hq, err
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 1000 {
		return 0, errors.New("limit must be an integer in [0,1000]")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}
