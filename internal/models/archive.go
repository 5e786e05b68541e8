package models

import "time"

// MajorEvent is a notable development inside one month
type MajorEvent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TopicID     string `json:"topic_id,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Ongoing     bool   `json:"ongoing"`
}

// TrendDelta describes how a topic moved over a month
type TrendDelta struct {
	TopicID   string `json:"topic_id"`
	Direction string `json:"direction"`
	Summary   string `json:"summary"`
}

// ArchiveCounts are computed locally from the source records, never by the model
type ArchiveCounts struct {
	DaysWithData    int            `json:"days_with_data"`
	Cycles          int            `json:"cycles"`
	Findings        int            `json:"findings"`
	UniqueItems     int            `json:"unique_items"`
	Skipped         int            `json:"skipped"`
	FindingsByTopic map[string]int `json:"findings_by_topic"`
}

// MonthlyArchive condenses one calendar month of CycleRecords
type MonthlyArchive struct {
	Period           string        `json:"period"`
	Year             int           `json:"year"`
	Month            int           `json:"month"`
	ExecutiveSummary string        `json:"executive_summary"`
	TopThemes        []string      `json:"top_themes"`
	MajorEvents      []MajorEvent  `json:"major_events"`
	TrendDeltas      []TrendDelta  `json:"trend_deltas"`
	NotableSources   []string      `json:"notable_sources"`
	ItemsToWatch     []WatchItem   `json:"items_to_watch,omitempty"`
	Counts           ArchiveCounts `json:"counts"`
	SourceKeys       []string      `json:"source_keys"`
	SourceDates      []string      `json:"source_dates"`
	ArchivedAt       time.Time     `json:"archived_at"`
}

// Overview is the headline state of the historical context
type Overview struct {
	CurrentState string `json:"current_state"`
	Trajectory   string `json:"trajectory"`
	Confidence   string `json:"confidence"`
}

// TopicTrend is the long-term direction of one topic
type TopicTrend struct {
	Direction string   `json:"direction"`
	Summary   string   `json:"summary"`
	KeyEvents []string `json:"key_events,omitempty"`
}

// TimelineEvent is one entry of the historical timeline
type TimelineEvent struct {
	Period       string `json:"period"`
	Event        string `json:"event"`
	Significance string `json:"significance,omitempty"`
	TopicID      string `json:"topic_id,omitempty"`
}

// OngoingStory is an open narrative that is still unfolding
type OngoingStory struct {
	Story         string `json:"story"`
	Started       string `json:"started,omitempty"`
	CurrentStatus string `json:"current_status,omitempty"`
	WatchFor      string `json:"watch_for,omitempty"`
}

// HistoricalContext is the single living document synthesized from all MonthlyArchives
type HistoricalContext struct {
	UpdatedAt      time.Time             `json:"updated_at"`
	PeriodsCovered []string              `json:"periods_covered"`
	Overview       Overview              `json:"overview"`
	TopicTrends    map[string]TopicTrend `json:"topic_trends"`
	Timeline       []TimelineEvent       `json:"timeline"`
	OngoingStories []OngoingStory        `json:"ongoing_stories"`
	Lessons        []string              `json:"lessons"`
}
