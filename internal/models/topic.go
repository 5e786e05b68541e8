package models

import "fmt"

// Importance is the tier a topic is monitored at
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Valid reports whether i is one of the known tiers
func (i Importance) Valid() bool {
	switch i {
	case ImportanceHigh, ImportanceMedium, ImportanceLow:
		return true
	default:
		return false
	}
}

// Topic is an immutable catalog entry
type Topic struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Queries    []string   `json:"queries" yaml:"queries"`
	Importance Importance `json:"importance" yaml:"importance"`
}

// Query is a single unit of scheduling
type Query struct {
	TopicID string `json:"topic_id"`
	Text    string `json:"query_text"`
}

func (q Query) String() string {
	return fmt.Sprintf("%s: %s", q.TopicID, q.Text)
}

// SelectionEntry is a query chosen for a cycle. MustRunFull entries bypass the scan gate.
type SelectionEntry struct {
	Query       Query `json:"query"`
	MustRunFull bool  `json:"must_run_full"`
}
