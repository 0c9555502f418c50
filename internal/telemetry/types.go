// Package telemetry records one structured usage event per completed
// request: model, family, token counts, and latency.
package telemetry

import "time"

// UsageEvent is logged exactly once per request at response completion,
// per §4.6. TokensPresent is false when the upstream never emitted a
// usage block (e.g. a streaming request without include_usage).
type UsageEvent struct {
	RequestID     string    `json:"request_id"`
	Timestamp     time.Time `json:"timestamp"`
	Model         string    `json:"model"`
	Family        string    `json:"family"`
	InputTokens   int       `json:"input_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	DurationMs    int64     `json:"duration_ms"`
	TokensPresent bool      `json:"tokens_present"`
	EstimatedIn   int       `json:"estimated_input_tokens,omitempty"`
	EstimatedOut  int       `json:"estimated_output_tokens,omitempty"`
	StatusCode    int       `json:"status_code"`
}
