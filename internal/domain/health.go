package domain

import "time"

// HealthResult is the last known outcome of a probe against one
// (model, provider) pair. Overwritten on every probe; never accumulated.
type HealthResult struct {
	Model       string    `json:"model"`
	Provider    string    `json:"provider"`
	LastChecked time.Time `json:"last_checked"`
	OK          bool      `json:"ok"`
	LatencyMS   int64     `json:"latency_ms"`
	Error       string    `json:"error,omitempty"`
}

// HealthKey identifies a (model, provider) pair in the health matrix.
type HealthKey struct {
	Model    string
	Provider string
}
