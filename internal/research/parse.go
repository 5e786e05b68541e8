package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
)

// MaxItems caps the structured entries kept per Finding
const MaxItems = 10

var errNoItems = errors.New("no findings in research output")

// errNothingNew marks a well-formed reply that reported no findings
var errNothingNew = errors.New("research found nothing new")

type scanReply struct {
	HasNewContent *bool    `json:"has_new_content"`
	Rationale     string   `json:"rationale"`
	SkipReason    string   `json:"skip_reason"`
	Signals       []string `json:"signals"`
}

// ParseScan reads the scan verdict. A reply without has_new_content is malformed.
func ParseScan(text string) (models.ScanResult, error) {
	var r scanReply
	if err := json.Unmarshal([]byte(provider.ExtractJSON(text)), &r); err != nil {
		return models.ScanResult{}, fmt.Errorf("malformed scan reply: %w", err)
	}
	if r.HasNewContent == nil {
		return models.ScanResult{}, errors.New("malformed scan reply: missing has_new_content")
	}

	rationale := r.Rationale
	if rationale == "" {
		rationale = r.SkipReason
	}
	return models.ScanResult{
		HasNewContent: *r.HasNewContent,
		Rationale:     rationale,
		Signals:       r.Signals,
	}, nil
}

type researchReply struct {
	Summary string `json:"summary"`
	// Findings is nil when the key is absent and empty when the model
	// answered with an explicit empty list.
	Findings *[]struct {
		Headline    string `json:"headline"`
		Title       string `json:"title"`
		Detail      string `json:"detail"`
		Description string `json:"description"`
		Source      string `json:"source"`
	} `json:"findings"`
	Watch []struct {
		Item   string `json:"item"`
		Reason string `json:"reason"`
	} `json:"watch"`
}

// Parsed is the usable content of a research reply
type Parsed struct {
	Summary string
	Items   []models.FindingItem
	Watch   []models.WatchItem
}

// ParseResearch reads a research reply as JSON, falling back to bold-header
// extraction for prose replies. A JSON reply carrying a findings list is
// valid even when the list is empty. A prose reply with no items is an error.
func ParseResearch(text string) (Parsed, error) {
	if p, ok := parseResearchJSON(text); ok {
		return p, nil
	}

	p := Parsed{
		Summary: extractSummary(text),
		Items:   extractItems(text),
	}
	if len(p.Items) == 0 {
		return Parsed{}, errNoItems
	}
	return p, nil
}

func parseResearchJSON(text string) (Parsed, bool) {
	var r researchReply
	if err := json.Unmarshal([]byte(provider.ExtractJSON(text)), &r); err != nil {
		return Parsed{}, false
	}

	if r.Findings == nil {
		return Parsed{}, false
	}

	p := Parsed{Summary: strings.TrimSpace(r.Summary)}
	for _, f := range *r.Findings {
		headline := firstNonEmpty(f.Headline, f.Title)
		if headline == "" {
			continue
		}
		p.Items = append(p.Items, models.FindingItem{
			Headline:        truncate(headline, 200),
			Detail:          strings.TrimSpace(firstNonEmpty(f.Detail, f.Description)),
			SourceReference: strings.TrimSpace(f.Source),
		})
		if len(p.Items) == MaxItems {
			break
		}
	}
	for _, w := range r.Watch {
		if strings.TrimSpace(w.Item) == "" {
			continue
		}
		p.Watch = append(p.Watch, models.WatchItem{Item: strings.TrimSpace(w.Item), Reason: strings.TrimSpace(w.Reason)})
	}
	return p, len(p.Items) > 0 || len(*r.Findings) == 0
}

// extractSummary takes the lines after the first summary-like heading,
// otherwise the opening of the text.
func extractSummary(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		l := strings.ToLower(line)
		if strings.Contains(l, "summary:") || strings.Contains(l, "overview:") ||
			strings.Contains(l, "key findings:") || strings.HasPrefix(strings.TrimSpace(l), "##") {
			end := min(i+4, len(lines))
			s := strings.TrimSpace(strings.Join(trimAll(lines[i+1:end]), " "))
			if s != "" {
				return truncate(s, 500)
			}
		}
	}
	s := strings.TrimSpace(text)
	if len([]rune(s)) > 300 {
		return truncate(s, 300) + "..."
	}
	return s
}

// extractItems turns every **bold** header into an item and the lines below
// it into the detail.
func extractItems(text string) []models.FindingItem {
	var (
		items   []models.FindingItem
		current *models.FindingItem
	)
	flush := func() {
		if current != nil {
			items = append(items, *current)
			current = nil
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "**") && strings.Contains(line[2:], "**") {
			end := strings.Index(line[2:], "**") + 2
			bold := strings.TrimSpace(line[2:end])
			rest := strings.TrimSpace(line[end+2:])

			// "**Source:** x" style field lines belong to the current item
			if strings.HasSuffix(bold, ":") && current != nil {
				field := strings.ToLower(strings.TrimSuffix(bold, ":"))
				if field == "source" || field == "sources" {
					current.SourceReference = rest
				} else {
					appendDetail(current, rest)
				}
				continue
			}

			flush()
			headline := strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
			current = &models.FindingItem{Headline: truncate(headline, 100)}
			continue
		}

		if current == nil {
			continue
		}
		if lower := strings.ToLower(line); strings.HasPrefix(lower, "source:") {
			current.SourceReference = strings.TrimSpace(line[len("source:"):])
			continue
		}
		appendDetail(current, line)
	}
	flush()

	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	return items
}

func appendDetail(item *models.FindingItem, line string) {
	line = strings.TrimSpace(strings.TrimLeft(line, "-* "))
	if line == "" {
		return
	}
	if item.Detail != "" {
		item.Detail += " "
	}
	item.Detail += line
	if len([]rune(item.Detail)) > 300 {
		item.Detail = truncate(item.Detail, 300) + "..."
	}
}

func trimAll(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
