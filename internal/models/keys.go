package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Prefix is the root of every object this system writes
	Prefix = "findings"
	// CycleObject is the canonical name of a day's cycle record
	CycleObject = "cycle.json"
)

// DayPrefix returns the folder holding one day's cycle records
// Format: findings/YYYY/MM/DD
func DayPrefix(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d", Prefix, t.Year(), int(t.Month()), t.Day())
}

// CycleKey returns the canonical key of a day's cycle record
// Format: findings/YYYY/MM/DD/cycle.json
func CycleKey(t time.Time) string {
	return DayPrefix(t) + "/" + CycleObject
}

// AlternateCycleKey is used when the canonical key for the day is already taken
// Format: findings/YYYY/MM/DD/cycle-HHMMSS.json
func AlternateCycleKey(t time.Time) string {
	return fmt.Sprintf("%s/cycle-%s.json", DayPrefix(t), t.UTC().Format("150405"))
}

// MonthPrefix returns the folder holding one month's daily records
func MonthPrefix(year, month int) string {
	return fmt.Sprintf("%s/%04d/%02d", Prefix, year, month)
}

// SummaryKey is the single live SummaryState
func SummaryKey() string {
	return Prefix + "/summary/latest.json"
}

// SummaryHistoryKey holds the rolling log of recent summary updates
func SummaryHistoryKey() string {
	return Prefix + "/summary/history.json"
}

// CorruptSummaryKey is where an unreadable live summary is moved aside
// Format: findings/summary/corrupt-YYYYMMDDTHHMMSSZ.json
func CorruptSummaryKey(t time.Time) string {
	return fmt.Sprintf("%s/summary/corrupt-%s.json", Prefix, t.UTC().Format("20060102T150405Z"))
}

// MonthlyArchiveKey returns the key of one month's archive
// Format: findings/archive/YYYY/MM/summary.json
func MonthlyArchiveKey(year, month int) string {
	return fmt.Sprintf("%s/archive/%04d/%02d/summary.json", Prefix, year, month)
}

// ArchivePrefix is the folder holding monthly archives and the historical context
func ArchivePrefix() string {
	return Prefix + "/archive"
}

// HistoricalContextKey is the single HistoricalContext document
func HistoricalContextKey() string {
	return Prefix + "/archive/historical-context.json"
}

// Period formats a year and month as YYYY-MM
func Period(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParsePeriod parses YYYY-MM
func ParsePeriod(s string) (int, int, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period %q (use YYYY-MM): %w", s, err)
	}
	return t.Year(), int(t.Month()), nil
}

// CycleLocation is a cycle record key decomposed into its date parts
type CycleLocation struct {
	Key   string
	Year  int
	Month int
	Day   int
}

// Date returns midnight UTC of the record's day
func (l CycleLocation) Date() time.Time {
	return time.Date(l.Year, time.Month(l.Month), l.Day, 0, 0, 0, 0, time.UTC)
}

// Period returns the record's YYYY-MM
func (l CycleLocation) Period() string {
	return Period(l.Year, l.Month)
}

// ParseCycleKey decomposes findings/YYYY/MM/DD/<name>.json.
// Summary and archive keys are rejected.
func ParseCycleKey(key string) (CycleLocation, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 5 || parts[0] != Prefix {
		return CycleLocation{}, fmt.Errorf("not a cycle record key: %s", key)
	}
	if !strings.HasSuffix(parts[4], ".json") || !strings.HasPrefix(parts[4], "cycle") {
		return CycleLocation{}, fmt.Errorf("not a cycle record key: %s", key)
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return CycleLocation{}, fmt.Errorf("invalid year in key %s", key)
	}
	month, err := strconv.Atoi(parts[2])
	if err != nil || month < 1 || month > 12 {
		return CycleLocation{}, fmt.Errorf("invalid month in key %s", key)
	}
	day, err := strconv.Atoi(parts[3])
	if err != nil || day < 1 || day > 31 {
		return CycleLocation{}, fmt.Errorf("invalid day in key %s", key)
	}

	return CycleLocation{Key: key, Year: year, Month: month, Day: day}, nil
}
