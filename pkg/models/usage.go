package models

import "time"

// CallKind identifies which billed upstream operation produced a usage record.
type CallKind string

const (
	CallEmbedding CallKind = "embedding"
	CallChat      CallKind = "chat"
)

// UsageRecord tracks token usage of a single upstream call.
type UsageRecord struct {
	ID               int64     `json:"id"`
	Kind             CallKind  `json:"kind"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates usage across calls of one kind and model.
type UsageSummary struct {
	Kind            CallKind `json:"kind"`
	Model           string   `json:"model"`
	RequestCount    int      `json:"request_count"`
	TotalPrompt     int      `json:"total_prompt"`
	TotalCompletion int      `json:"total_completion"`
	TotalTokens     int      `json:"total_tokens"`
	AvgLatencyMs    float64  `json:"avg_latency_ms"`
}
