package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/throttle"
	"github.com/sourcegraph/conc/iter"
)

const historySystem = "You maintain a long-horizon historical context document built from monthly research archives. Reply with a single JSON object and nothing else."

func historyPrompt(archives []*models.MonthlyArchive) string {
	var b strings.Builder
	b.WriteString("AVAILABLE MONTHLY ARCHIVES:\n")
	for _, a := range archives {
		fmt.Fprintf(&b, "\n## %s\n", a.Period)
		fmt.Fprintf(&b, "Summary: %s\n", a.ExecutiveSummary)
		if len(a.TopThemes) > 0 {
			fmt.Fprintf(&b, "Themes: %s\n", strings.Join(a.TopThemes, ", "))
		}
		if len(a.MajorEvents) > 0 {
			b.WriteString("Major events:\n")
			for _, ev := range a.MajorEvents[:min(len(a.MajorEvents), 5)] {
				fmt.Fprintf(&b, "- %s: %s\n", ev.Title, clip(ev.Description, 100))
			}
		}
		for _, td := range a.TrendDeltas {
			fmt.Fprintf(&b, "Trend %s: %s (%s)\n", td.TopicID, td.Direction, clip(td.Summary, 100))
		}
	}
	b.WriteString(`
Create the updated historical context as JSON:
{
  "overview": {"current_state": "2-3 sentences on where things stand now", "trajectory": "improving|stable|declining|volatile", "confidence": "high|medium|low"},
  "topic_trends": {"<topic id>": {"direction": "long-term direction", "summary": "trajectory so far", "key_events": ["event"]}},
  "timeline": [{"period": "YYYY-MM", "event": "what happened", "significance": "why it mattered", "topic_id": "topic id"}],
  "ongoing_stories": [{"story": "what is unfolding", "started": "YYYY-MM", "current_status": "where it stands", "watch_for": "what comes next"}],
  "lessons": ["insight from the history"]
}

Prioritize patterns, turning points and ongoing narratives. Return ONLY valid JSON.`)
	return b.String()
}

type historyReply struct {
	Overview       models.Overview              `json:"overview"`
	TopicTrends    map[string]models.TopicTrend `json:"topic_trends"`
	Timeline       []models.TimelineEvent       `json:"timeline"`
	OngoingStories []models.OngoingStory        `json:"ongoing_stories"`
	Lessons        []string                     `json:"lessons"`
}

func parseHistory(text string) (historyReply, error) {
	var r historyReply
	if err := json.Unmarshal([]byte(provider.ExtractJSON(text)), &r); err != nil {
		return r, fmt.Errorf("%w: malformed history reply: %v", ErrSynthesis, err)
	}
	if strings.TrimSpace(r.Overview.CurrentState) == "" {
		return r, fmt.Errorf("%w: history reply has no overview", ErrSynthesis)
	}
	return r, nil
}

// Resynthesize regenerates the HistoricalContext from the most recent
// archives. It reports false without writing when no archive exists. On a
// failed synthesis the stored document is left as it was.
func (e *Engine) Resynthesize(ctx context.Context, thr *throttle.Controller) (bool, error) {
	periods, err := e.store.ListMonthlyArchives(ctx)
	if err != nil {
		return false, err
	}
	if len(periods) == 0 {
		e.logger.Info("no monthly archives, historical context not rebuilt")
		return false, nil
	}
	if len(periods) > e.opts.HistoryMonths {
		periods = periods[len(periods)-e.opts.HistoryMonths:]
	}

	mapper := iter.Mapper[string, *models.MonthlyArchive]{MaxGoroutines: e.opts.ReadConcurrency}
	archives, err := mapper.MapErr(periods, func(p *string) (*models.MonthlyArchive, error) {
		year, month, err := models.ParsePeriod(*p)
		if err != nil {
			return nil, err
		}
		return e.store.LoadMonthlyArchive(ctx, year, month)
	})
	if err != nil {
		return false, fmt.Errorf("failed to load monthly archives: %w", err)
	}

	text, err := e.synthesize(ctx, thr, provider.Request{
		Model:     e.opts.SynthesisModel,
		System:    historySystem,
		Prompt:    historyPrompt(archives),
		MaxTokens: e.opts.HistoryMaxTokens,
		JSON:      true,
	})
	if err != nil {
		return false, err
	}
	reply, err := parseHistory(text)
	if err != nil {
		return false, err
	}

	hc := &models.HistoricalContext{
		UpdatedAt:      e.clock.Now().UTC(),
		PeriodsCovered: periods,
		Overview:       reply.Overview,
		TopicTrends:    reply.TopicTrends,
		Timeline:       reply.Timeline,
		OngoingStories: reply.OngoingStories,
		Lessons:        reply.Lessons,
	}
	if hc.TopicTrends == nil {
		hc.TopicTrends = make(map[string]models.TopicTrend)
	}
	if err := e.store.SaveHistoricalContext(ctx, hc); err != nil {
		return false, fmt.Errorf("failed to write historical context: %w", err)
	}
	e.logger.Info("historical context rebuilt", "periods", len(periods))
	return true, nil
}
