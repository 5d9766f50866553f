package domain

import "time"

// UsageRecord is an immutable record of one completed (or failed) call,
// appended to the Usage Ledger. Retained in a bounded ring; oldest
// entries are evicted on overflow.
type UsageRecord struct {
	RequestID        string    `json:"request_id"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Status           string    `json:"status"` // "ok" or an ErrorKind
	Error            string    `json:"error,omitempty"`
}

// Duration is how long the call took end to end.
func (u UsageRecord) Duration() time.Duration { return u.EndedAt.Sub(u.StartedAt) }

// ProviderSummary is a rolling total used by the Usage Ledger's
// summary_by_provider view and the admin /api_usage endpoint.
type ProviderSummary struct {
	Provider         string `json:"provider"`
	RequestCount     int    `json:"request_count"`
	ErrorCount       int    `json:"error_count"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}
