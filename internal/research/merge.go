package research

import (
	"maps"
	"strings"
	"time"

	"github.com/pders01/research-collector/internal/dedupe"
	"github.com/pders01/research-collector/internal/models"
)

// MergeSummary folds a cycle's findings into a copy of prev. Each topic with a
// new Finding has its entry replaced by this cycle's findings; other topics are
// left as they were. New watch items go to the front of the watchlist, which
// is de-duplicated by text similarity and capped at limit (0 means no cap).
func MergeSummary(prev *models.SummaryState, rec *models.CycleRecord, topics []models.Topic, limit int, now time.Time) *models.SummaryState {
	next := models.NewSummaryState()
	if prev != nil {
		next.Version = prev.Version
		next.UpdatedAt = prev.UpdatedAt
		next.LastCycleID = prev.LastCycleID
		maps.Copy(next.Topics, prev.Topics)
		next.Watchlist = append(next.Watchlist, prev.Watchlist...)
	}
	if len(rec.Findings) == 0 {
		return next
	}

	names := make(map[string]string, len(topics))
	for _, t := range topics {
		names[t.ID] = t.Name
	}

	byTopic := make(map[string][]models.Finding)
	var order []string
	var fresh []models.WatchItem
	for _, f := range rec.Findings {
		if _, ok := byTopic[f.TopicID]; !ok {
			order = append(order, f.TopicID)
		}
		byTopic[f.TopicID] = append(byTopic[f.TopicID], f)
		for _, w := range f.Watch {
			w.TopicID = f.TopicID
			if w.AddedAt.IsZero() {
				w.AddedAt = now
			}
			fresh = append(fresh, w)
		}
	}

	for _, id := range order {
		next.Topics[id] = models.TopicSummary{
			TopicID:   id,
			TopicName: names[id],
			Findings:  byTopic[id],
			CycleID:   rec.ID,
			UpdatedAt: now,
		}
	}

	next.Watchlist = mergeWatchlist(fresh, next.Watchlist, limit)
	next.UpdatedAt = now
	next.LastCycleID = rec.ID
	return next
}

// mergeWatchlist keeps the first of every group of similar items, fresh
// items before prior ones
func mergeWatchlist(fresh, prior []models.WatchItem, limit int) []models.WatchItem {
	var out []models.WatchItem
	for _, list := range [][]models.WatchItem{fresh, prior} {
		for _, w := range list {
			if strings.TrimSpace(w.Item) == "" || containsSimilar(out, w.Item) {
				continue
			}
			out = append(out, w)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}

func containsSimilar(items []models.WatchItem, item string) bool {
	for _, w := range items {
		if dedupe.Similar(w.Item, item, dedupe.DefaultThreshold) {
			return true
		}
	}
	return false
}

// historyEntry condenses a recorded cycle into one summary history line
func historyEntry(rec *models.CycleRecord) models.HistoryEntry {
	e := models.HistoryEntry{Timestamp: rec.CompletedAt, CycleID: rec.ID}
	var summaries []string
	for _, f := range rec.Findings {
		if f.Summary != "" {
			summaries = append(summaries, f.Summary)
		}
		for _, item := range f.Items {
			if len(e.KeyItems) < 5 {
				e.KeyItems = append(e.KeyItems, item.Headline)
			}
		}
	}
	e.Summary = strings.Join(summaries, " ")
	return e
}
