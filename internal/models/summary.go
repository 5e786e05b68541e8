package models

import "time"

// WatchItem is an entry of the rolling "things to watch" list
type WatchItem struct {
	Item    string    `json:"item"`
	Reason  string    `json:"reason,omitempty"`
	TopicID string    `json:"topic_id,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// TopicSummary holds the most recent Findings for one topic
type TopicSummary struct {
	TopicID   string    `json:"topic_id"`
	TopicName string    `json:"topic_name,omitempty"`
	Findings  []Finding `json:"findings"`
	CycleID   string    `json:"cycle_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SummaryState is the single live cumulative view, overwritten each cycle
type SummaryState struct {
	Version     int64                   `json:"version"`
	UpdatedAt   time.Time               `json:"updated_at"`
	LastCycleID string                  `json:"last_cycle_id,omitempty"`
	Topics      map[string]TopicSummary `json:"topics"`
	Watchlist   []WatchItem             `json:"watchlist"`
}

// NewSummaryState returns an empty state ready to merge into
func NewSummaryState() *SummaryState {
	return &SummaryState{Topics: make(map[string]TopicSummary)}
}

// MaxHistoryEntries caps the rolling summary history
const MaxHistoryEntries = 30

// HistoryEntry records one summary update
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	CycleID   string    `json:"cycle_id"`
	Summary   string    `json:"summary"`
	KeyItems  []string  `json:"key_items,omitempty"`
}

// SummaryHistory is the rolling log of recent summary updates, oldest first
type SummaryHistory struct {
	Entries []HistoryEntry `json:"entries"`
}

// Append adds e and drops the oldest entries beyond MaxHistoryEntries
func (h *SummaryHistory) Append(e HistoryEntry) {
	h.Entries = append(h.Entries, e)
	if n := len(h.Entries) - MaxHistoryEntries; n > 0 {
		h.Entries = append([]HistoryEntry(nil), h.Entries[n:]...)
	}
}

// Recent returns up to n of the newest entries, oldest first
func (h *SummaryHistory) Recent(n int) []HistoryEntry {
	if h == nil || n <= 0 {
		return nil
	}
	if len(h.Entries) <= n {
		return h.Entries
	}
	return h.Entries[len(h.Entries)-n:]
}
