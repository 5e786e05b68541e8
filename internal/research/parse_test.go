package research

import (
	"strings"
	"testing"
)

func TestParseScan(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantNew   bool
		rationale string
		wantErr   bool
	}{
		{
			name:      "plain json",
			text:      `{"has_new_content": true, "rationale": "new bill", "signals": ["bill"]}`,
			wantNew:   true,
			rationale: "new bill",
		},
		{
			name:      "fenced with skip_reason",
			text:      "Here you go:\n```json\n{\"has_new_content\": false, \"skip_reason\": \"quiet\"}\n```",
			rationale: "quiet",
		},
		{
			name:    "missing verdict",
			text:    `{"signals": []}`,
			wantErr: true,
		},
		{
			name:    "prose",
			text:    "Nothing much happened.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan, err := ParseScan(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scan.HasNewContent != tt.wantNew || scan.Rationale != tt.rationale {
				t.Errorf("unexpected scan: %+v", scan)
			}
		})
	}
}

func TestParseResearchJSON(t *testing.T) {
	text := "```json\n" + researchJSON + "\n```"
	p, err := ParseResearch(text)
	if err != nil {
		t.Fatal(err)
	}
	if p.Summary != "quiet week" {
		t.Errorf("unexpected summary %q", p.Summary)
	}
	if len(p.Items) != 1 || p.Items[0].SourceReference != "Example Times" {
		t.Errorf("unexpected items: %+v", p.Items)
	}
	if len(p.Watch) != 1 || p.Watch[0].Item != "Tax vote" {
		t.Errorf("unexpected watch: %+v", p.Watch)
	}
}

func TestParseResearchCapsItems(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"summary":"s","findings":[`)
	for i := 0; i < 15; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"headline":"h","detail":"d"}`)
	}
	b.WriteString("]}")

	p, err := ParseResearch(b.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Items) != MaxItems {
		t.Errorf("expected %d items, got %d", MaxItems, len(p.Items))
	}
}

func TestParseResearchBoldFallback(t *testing.T) {
	text := `## Summary
Regulators were busy this week.
Two items stand out.

**1. Licensing freeze extended**
The state extended the freeze by six months.
**Source:** State Gazette, March 3

**2. Excise tax review**
- Lawmakers scheduled a hearing.
Source: Capitol Weekly
`
	p, err := ParseResearch(text)
	if err != nil {
		t.Fatal(err)
	}
	if p.Summary != "Regulators were busy this week. Two items stand out." {
		t.Errorf("unexpected summary %q", p.Summary)
	}
	if len(p.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", p.Items)
	}
	first := p.Items[0]
	if first.Headline != "1. Licensing freeze extended" {
		t.Errorf("unexpected headline %q", first.Headline)
	}
	if first.Detail != "The state extended the freeze by six months." {
		t.Errorf("unexpected detail %q", first.Detail)
	}
	if first.SourceReference != "State Gazette, March 3" {
		t.Errorf("unexpected source %q", first.SourceReference)
	}
	if p.Items[1].SourceReference != "Capitol Weekly" || p.Items[1].Detail != "Lawmakers scheduled a hearing." {
		t.Errorf("unexpected second item %+v", p.Items[1])
	}
}

func TestParseResearchNoItems(t *testing.T) {
	if _, err := ParseResearch("No relevant news this week."); err == nil {
		t.Error("expected error for output without findings")
	}
	if _, err := ParseResearch(`{"summary":"s","findings":[{"detail":"no headline"}]}`); err == nil {
		t.Error("expected error when no finding has a headline")
	}
}

func TestParseResearchEmptyFindings(t *testing.T) {
	p, err := ParseResearch(`{"summary":"Nothing notable this week.","findings":[],"watch":[]}`)
	if err != nil {
		t.Fatalf("an explicit empty findings list is a valid reply: %v", err)
	}
	if len(p.Items) != 0 || p.Summary != "Nothing notable this week." {
		t.Errorf("unexpected parse %+v", p)
	}
}

func TestExtractSummaryFallback(t *testing.T) {
	long := strings.Repeat("x", 400)
	got := extractSummary(long)
	if len(got) != 303 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated summary, got %d chars", len(got))
	}
}
