package research

import (
	"fmt"
	"strings"

	"github.com/pders01/research-collector/internal/models"
)

const scanSystem = "You check whether a monitored topic has new developments. Reply with a single JSON object and nothing else."

const researchSystem = "You are a research analyst monitoring a topic for a business. Use web search, prefer sources from the past 7 days and be specific with dates, numbers and sources."

// recentHistory is how many summary history entries go into a research prompt
const recentHistory = 5

// knownHeadlines returns up to max headlines already in the summary for a topic
func knownHeadlines(summary *models.SummaryState, topicID string, max int) []string {
	if summary == nil {
		return nil
	}
	ts, ok := summary.Topics[topicID]
	if !ok {
		return nil
	}
	var out []string
	for _, f := range ts.Findings {
		for _, item := range f.Items {
			if len(out) == max {
				return out
			}
			out = append(out, truncate(item.Headline, 50))
		}
	}
	return out
}

func scanPrompt(topic models.Topic, q models.Query, known []string) string {
	var b strings.Builder
	b.WriteString("Quick scan for NEW developments only.\n")
	fmt.Fprintf(&b, "Topic: %s\n", topic.Name)
	fmt.Fprintf(&b, "Search: %s\n", q.Text)
	if len(known) > 0 {
		fmt.Fprintf(&b, "\nWe already know about: %s\n", strings.Join(known, ", "))
	}
	b.WriteString(`
Respond with ONLY a JSON object:
{
  "has_new_content": true or false,
  "rationale": "one sentence on why",
  "signals": ["brief description of each new item"]
}

Only mark has_new_content=true if there are developments from the past 7 days that we don't already know about. Be conservative and skip if uncertain.`)
	return b.String()
}

func researchPrompt(topic models.Topic, q models.Query, signals []string, background, recent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic.Name)
	fmt.Fprintf(&b, "Query: %s\n", q.Text)
	if len(signals) > 0 {
		b.WriteString("\nA preliminary scan found these new developments to investigate:\n")
		for _, s := range signals {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if background != "" {
		fmt.Fprintf(&b, "\nBackground from earlier months:\n%s\n", background)
	}
	if recent != "" {
		fmt.Fprintf(&b, "\nRecent summary updates:\n%s\n", recent)
	}
	b.WriteString(`
Search for recent information and reply with ONLY a JSON object:
{
  "summary": "2-3 sentence overview",
  "findings": [
    {"headline": "short title", "detail": "2-3 sentences with dates and numbers", "source": "publication and date"}
  ],
  "watch": [
    {"item": "what to monitor", "reason": "why it matters"}
  ]
}

Return at most 10 findings.`)
	return b.String()
}

// background condenses the historical context into a few lines for one topic
func background(hc *models.HistoricalContext, topicID string) string {
	if hc == nil {
		return ""
	}
	var lines []string
	if hc.Overview.CurrentState != "" {
		lines = append(lines, "Overall: "+hc.Overview.CurrentState)
	}
	if tr, ok := hc.TopicTrends[topicID]; ok && tr.Summary != "" {
		line := "Trend: " + tr.Summary
		if tr.Direction != "" {
			line = fmt.Sprintf("Trend (%s): %s", tr.Direction, tr.Summary)
		}
		lines = append(lines, line)
	}
	for i, s := range hc.OngoingStories {
		if i == 3 {
			break
		}
		lines = append(lines, "Ongoing: "+s.Story)
	}
	return strings.Join(lines, "\n")
}

// recentUpdates lists the newest summary history entries, one line each
func recentUpdates(h *models.SummaryHistory) string {
	var lines []string
	for _, e := range h.Recent(recentHistory) {
		if e.Summary == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Timestamp.UTC().Format("2006-01-02"), truncate(e.Summary, 200)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
