package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// AssistantMetrics is returned by GET /v1/metrics/summary.
type AssistantMetrics struct {
	TotalMessages       int64            `json:"totalMessages"`
	ErrorRate           float64          `json:"errorRate"`
	Intents             map[string]int64 `json:"intents"`
	AvgTokensPerMessage float64          `json:"avgTokensPerMessage"`
	CategoryCacheHits   int64            `json:"categoryCacheHits"`
	CategoryCacheMisses int64            `json:"categoryCacheMisses"`
	Period              string           `json:"period"`
}
