package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pders01/research-collector/internal/models"
)

func TestDefault(t *testing.T) {
	topics := Default()
	if len(topics) != 5 {
		t.Fatalf("expected 5 default topics, got %d", len(topics))
	}

	high := 0
	for _, topic := range topics {
		if topic.Importance == models.ImportanceHigh {
			high++
		}
		if len(topic.Queries) != 2 {
			t.Errorf("topic %s: expected 2 queries, got %d", topic.ID, len(topic.Queries))
		}
	}
	if high != 2 {
		t.Errorf("expected 2 high topics, got %d", high)
	}

	if _, ok := Find(topics, "pricing"); !ok {
		t.Error("expected pricing topic")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid",
			data: `
topics:
  - id: a
    importance: low
    queries: [q1]
`,
		},
		{
			name: "importance defaults to medium",
			data: `
topics:
  - id: a
    queries: [q1]
`,
		},
		{
			name:    "no topics",
			data:    "topics: []",
			wantErr: true,
		},
		{
			name: "duplicate id",
			data: `
topics:
  - id: a
    queries: [q1]
  - id: a
    queries: [q2]
`,
			wantErr: true,
		},
		{
			name: "bad importance",
			data: `
topics:
  - id: a
    importance: urgent
    queries: [q1]
`,
			wantErr: true,
		},
		{
			name: "blank query",
			data: `
topics:
  - id: a
    queries: ["  "]
`,
			wantErr: true,
		},
		{
			name: "missing id",
			data: `
topics:
  - name: nameless
    queries: [q1]
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics, err := Parse([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("expected ErrInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if topics[0].Name != "a" {
				t.Errorf("expected name to default to id, got %q", topics[0].Name)
			}
			if !topics[0].Importance.Valid() {
				t.Errorf("unexpected importance %q", topics[0].Importance)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	topics, err := Load("")
	if err != nil || len(topics) != 5 {
		t.Fatalf("expected default catalog, got %d topics, err %v", len(topics), err)
	}

	path := filepath.Join(t.TempDir(), "topics.yaml")
	data := "topics:\n  - id: solo\n    importance: high\n    queries: [only]\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	topics, err = Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topics) != 1 || topics[0].ID != "solo" {
		t.Errorf("unexpected topics: %+v", topics)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
