package dedupe

import (
	"math"
	"testing"

	"github.com/pders01/research-collector/internal/models"
)

func TestTerms(t *testing.T) {
	v := Terms("The State of the Market: market prices, 2025!")

	if v["market"] != 2 {
		t.Errorf("expected market twice, got %v", v["market"])
	}
	if _, ok := v["the"]; ok {
		t.Error("stopwords should be dropped")
	}
	if v["2025"] != 1 {
		t.Errorf("expected digits to be kept, got %v", v)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{
			name:     "identical",
			a:        "California passes cannabis tax",
			b:        "California passes cannabis tax",
			expected: 1.0,
		},
		{
			name:     "case and punctuation",
			a:        "California passes cannabis tax",
			b:        "california PASSES cannabis tax!",
			expected: 1.0,
		},
		{
			name:     "reordered with stopwords",
			a:        "California passes cannabis tax",
			b:        "The cannabis tax passes in California",
			expected: 1.0,
		},
		{
			name:     "disjoint",
			a:        "California passes cannabis tax",
			b:        "New vape brand launches",
			expected: 0.0,
		},
		{
			name:     "half overlap",
			a:        "cannabis tax",
			b:        "cannabis brand",
			expected: 0.5,
		},
		{
			name:     "empty",
			a:        "",
			b:        "cannabis",
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(Terms(tt.a), Terms(tt.b))
			if math.Abs(result-tt.expected) > 1e-10 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestMagnitude(t *testing.T) {
	v := Vector{"a": 3, "b": 4}
	if math.Abs(v.Magnitude()-5) > 1e-10 {
		t.Errorf("expected 5, got %f", v.Magnitude())
	}
	if (Vector{}).Magnitude() != 0 {
		t.Error("expected zero magnitude for empty vector")
	}
}

func TestItems(t *testing.T) {
	items := []models.FindingItem{
		{Headline: "California passes cannabis tax", Detail: "first"},
		{Headline: "New vape brand launches"},
		{Headline: "The cannabis tax passes in California", Detail: "second"},
		{Headline: "   "},
		{Headline: "A"},
		{Headline: "a"},
	}

	got := Items(items, DefaultThreshold)
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(got), got)
	}
	if got[0].Detail != "first" {
		t.Errorf("expected first occurrence to win, got %+v", got[0])
	}
	if got[2].Headline != "A" {
		t.Errorf("expected stopword-only headline compared by text, got %+v", got[2])
	}
}

func TestSimilar(t *testing.T) {
	if !Similar("cannabis tax hike", "Cannabis tax hike.", DefaultThreshold) {
		t.Error("expected similar")
	}
	if Similar("cannabis tax hike", "dispensary opening", DefaultThreshold) {
		t.Error("expected different")
	}
}
