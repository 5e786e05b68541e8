package models

import "time"

// SkipReason explains why a selected query produced no Finding
type SkipReason string

const (
	SkipNoNewContent  SkipReason = "no_new_content"
	SkipRateLimited   SkipReason = "rate_limited"
	SkipTimeout       SkipReason = "timeout"
	SkipProviderError SkipReason = "provider_error"
)

// ScanResult is the output of the cheap pass for one query
type ScanResult struct {
	HasNewContent bool     `json:"has_new_content"`
	Rationale     string   `json:"rationale"`
	Signals       []string `json:"signals,omitempty"`
	Tokens        int      `json:"tokens"`
}

// FindingItem is one structured entry of a research pass
type FindingItem struct {
	Headline        string `json:"headline"`
	Detail          string `json:"detail"`
	SourceReference string `json:"source_reference,omitempty"`
}

// Finding is the output of a full research pass for one query
type Finding struct {
	TopicID      string        `json:"topic_id"`
	QueryText    string        `json:"query_text"`
	Summary      string        `json:"summary,omitempty"`
	Items        []FindingItem `json:"items"`
	Watch        []WatchItem   `json:"watch,omitempty"`
	Tokens       int           `json:"tokens"`
	Model        string        `json:"model,omitempty"`
	ResearchedAt time.Time     `json:"researched_at"`
}

// Skip records a selected query that ended without a Finding
type Skip struct {
	TopicID   string     `json:"topic_id"`
	QueryText string     `json:"query_text"`
	Reason    SkipReason `json:"reason"`
	Detail    string     `json:"detail,omitempty"`
}

// CycleStats aggregates token and cost figures for one cycle
type CycleStats struct {
	QueriesSelected  int     `json:"queries_selected"`
	Scans            int     `json:"scans"`
	Researched       int     `json:"researched"`
	Skipped          int     `json:"skipped"`
	ScanTokens       int     `json:"scan_tokens"`
	ResearchTokens   int     `json:"research_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// ThrottleStats is a snapshot of the throttle ledger, kept for observability
type ThrottleStats struct {
	TokensPerMinute int     `json:"tokens_per_minute"`
	UsableBudget    int     `json:"usable_budget"`
	WindowTokens    int     `json:"window_tokens"`
	TotalTokens     int     `json:"total_tokens"`
	Calls           int     `json:"api_calls"`
	Waits           int     `json:"waits"`
	WaitedSeconds   float64 `json:"waited_seconds"`
	Denials         int     `json:"denials"`
	RateLimitHits   int     `json:"rate_limit_hits"`
	Retries         int     `json:"retries"`
}

// CycleRecord is one invocation's output. Immutable once written.
type CycleRecord struct {
	ID          string        `json:"cycle_id"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Selected    []Query       `json:"selected"`
	Findings    []Finding     `json:"findings"`
	Skipped     []Skip        `json:"skipped"`
	Stats       CycleStats    `json:"stats"`
	Throttle    ThrottleStats `json:"throttle_stats"`
	Notes       []string      `json:"notes,omitempty"`
}
