package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pders01/research-collector/internal/dedupe"
	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/throttle"
)

const condenseSystem = "You condense a month of research records into a compact archive. Reply with a single JSON object and nothing else."

// topicDigest is everything a month holds about one topic
type topicDigest struct {
	id        string
	name      string
	summaries []string
	items     []models.FindingItem
}

// digest is the local aggregation of a month before synthesis
type digest struct {
	topics []*topicDigest
	counts models.ArchiveCounts
	dates  []string
	keys   []string
}

func (e *Engine) topicName(id string) string {
	for _, t := range e.topics {
		if t.ID == id {
			return t.Name
		}
	}
	return id
}

// aggregate counts and de-duplicates a month's findings without the model
func (e *Engine) aggregate(m Month, records []*models.CycleRecord) digest {
	d := digest{counts: models.ArchiveCounts{FindingsByTopic: make(map[string]int)}}
	byID := make(map[string]*topicDigest)
	days := make(map[string]bool)

	for i, rec := range records {
		d.keys = append(d.keys, m.Records[i].Key)
		day := m.Records[i].Date().Format(time.DateOnly)
		days[day] = true

		d.counts.Cycles++
		d.counts.Skipped += len(rec.Skipped)
		for _, f := range rec.Findings {
			td, ok := byID[f.TopicID]
			if !ok {
				td = &topicDigest{id: f.TopicID, name: e.topicName(f.TopicID)}
				byID[f.TopicID] = td
				d.topics = append(d.topics, td)
			}
			if f.Summary != "" {
				td.summaries = append(td.summaries, f.Summary)
			}
			td.items = append(td.items, f.Items...)
			d.counts.Findings++
			d.counts.FindingsByTopic[f.TopicID]++
		}
	}

	for _, td := range d.topics {
		td.items = dedupe.Items(td.items, e.opts.DedupeThreshold)
		d.counts.UniqueItems += len(td.items)
	}
	sort.Slice(d.topics, func(i, j int) bool { return d.topics[i].id < d.topics[j].id })

	for day := range days {
		d.dates = append(d.dates, day)
	}
	sort.Strings(d.dates)
	d.counts.DaysWithData = len(d.dates)
	return d
}

func condensePrompt(m Month, d digest) string {
	monthName := fmt.Sprintf("%s %d", time.Month(m.Month), m.Year)

	var b strings.Builder
	fmt.Fprintf(&b, "Month: %s\n", monthName)
	fmt.Fprintf(&b, "Research conducted on %d days across %d cycles\n", d.counts.DaysWithData, d.counts.Cycles)
	b.WriteString("\nDATA COLLECTED THIS MONTH:\n")
	for _, td := range d.topics {
		fmt.Fprintf(&b, "\n### %s (%s)\n", td.name, td.id)
		if len(td.summaries) > 0 {
			fmt.Fprintf(&b, "Cycle summaries: %s\n", strings.Join(td.summaries[:min(len(td.summaries), 10)], "; "))
		}
		fmt.Fprintf(&b, "Key findings (%d unique):\n", len(td.items))
		for _, item := range td.items[:min(len(td.items), 15)] {
			fmt.Fprintf(&b, "- %s: %s", item.Headline, clip(item.Detail, 150))
			if item.SourceReference != "" {
				fmt.Fprintf(&b, " [%s]", item.SourceReference)
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, `
Create the monthly archive as JSON:
{
  "executive_summary": "3-5 sentence overview of the month",
  "top_themes": ["theme"],
  "major_events": [
    {"title": "brief title", "description": "what happened and why it matters", "topic_id": "one of the topic ids above", "impact": "high|medium|low", "ongoing": true}
  ],
  "trend_deltas": [
    {"topic_id": "topic id", "direction": "improving|stable|declining|mixed", "summary": "how it moved this month"}
  ],
  "notable_sources": ["publication"],
  "items_to_watch": [{"item": "what to monitor", "reason": "why"}]
}

Period: %s. Preserve important details while eliminating redundancy. Return ONLY valid JSON.`, m.Period())
	return b.String()
}

type condenseReply struct {
	ExecutiveSummary string              `json:"executive_summary"`
	TopThemes        []string            `json:"top_themes"`
	MajorEvents      []models.MajorEvent `json:"major_events"`
	TrendDeltas      []models.TrendDelta `json:"trend_deltas"`
	NotableSources   []string            `json:"notable_sources"`
	ItemsToWatch     []models.WatchItem  `json:"items_to_watch"`
}

func parseCondense(text string) (condenseReply, error) {
	var r condenseReply
	if err := json.Unmarshal([]byte(provider.ExtractJSON(text)), &r); err != nil {
		return r, fmt.Errorf("%w: malformed archive reply: %v", ErrSynthesis, err)
	}
	if strings.TrimSpace(r.ExecutiveSummary) == "" {
		return r, fmt.Errorf("%w: archive reply has no executive summary", ErrSynthesis)
	}
	return r, nil
}

// Condense loads a month's records, synthesizes its MonthlyArchive and writes
// it, overwriting any earlier archive of the month. Nothing is written when
// synthesis fails.
func (e *Engine) Condense(ctx context.Context, thr *throttle.Controller, m Month) (*models.MonthlyArchive, error) {
	records, err := e.loadRecords(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for %s: %w", m.Period(), err)
	}
	d := e.aggregate(m, records)

	text, err := e.synthesize(ctx, thr, provider.Request{
		Model:     e.opts.SynthesisModel,
		System:    condenseSystem,
		Prompt:    condensePrompt(m, d),
		MaxTokens: e.opts.SynthesisMaxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, err
	}
	reply, err := parseCondense(text)
	if err != nil {
		return nil, err
	}

	archive := &models.MonthlyArchive{
		Period:           m.Period(),
		Year:             m.Year,
		Month:            m.Month,
		ExecutiveSummary: strings.TrimSpace(reply.ExecutiveSummary),
		TopThemes:        nonNil(reply.TopThemes),
		MajorEvents:      reply.MajorEvents,
		TrendDeltas:      reply.TrendDeltas,
		NotableSources:   nonNil(reply.NotableSources),
		ItemsToWatch:     reply.ItemsToWatch,
		Counts:           d.counts,
		SourceKeys:       d.keys,
		SourceDates:      d.dates,
		ArchivedAt:       e.clock.Now().UTC(),
	}
	if archive.MajorEvents == nil {
		archive.MajorEvents = []models.MajorEvent{}
	}
	if archive.TrendDeltas == nil {
		archive.TrendDeltas = []models.TrendDelta{}
	}

	if err := e.store.SaveMonthlyArchive(ctx, archive); err != nil {
		return nil, fmt.Errorf("failed to write archive for %s: %w", m.Period(), err)
	}
	e.logger.Info("month condensed", "period", m.Period(),
		"cycles", d.counts.Cycles,
		"findings", d.counts.Findings,
		"unique_items", d.counts.UniqueItems,
	)
	return archive, nil
}

func clip(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
