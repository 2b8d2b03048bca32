package gateway

import "trading-insights/internal/model"

// AnalyzeResponse is returned by POST /api/analyze.
type AnalyzeResponse struct {
	Symbol   string          `json:"symbol,omitempty"`
	Count    int             `json:"count"`
	Insights []model.Insight `json:"insights"`
}

// BarAccepted is returned by POST /api/bars.
type BarAccepted struct {
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
}

// SymbolsResponse is returned by GET /api/symbols.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// ClearResponse is returned by DELETE /api/insights.
type ClearResponse struct {
	Status string `json:"status"`
}

// apiError is the REST error body.
type apiError struct {
	Error string `json:"error"`
}
