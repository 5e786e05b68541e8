package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pders01/research-collector/internal/archive"
	"github.com/pders01/research-collector/internal/research"
)

func TestInvoke(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, out []byte)
		wantErr bool
	}{
		{
			name:    "archive with nothing to do",
			payload: `{"mode": "archive"}`,
			check: func(t *testing.T, out []byte) {
				var res archive.Result
				if err := json.Unmarshal(out, &res); err != nil {
					t.Fatalf("output is not JSON: %v", err)
				}
				if res.MonthsArchived != 0 || res.HistoricalContextUpdated {
					t.Errorf("unexpected result: %+v", res)
				}
			},
		},
		{
			name:    "research by default",
			payload: `{"topics": ["pricing"]}`,
			check: func(t *testing.T, out []byte) {
				var res research.Result
				if err := json.Unmarshal(out, &res); err != nil {
					t.Fatalf("output is not JSON: %v", err)
				}
				if res.FindingsCount != 1 {
					t.Errorf("expected 1 finding, got %+v", res)
				}
			},
		},
		{
			name:    "unknown mode",
			payload: `{"mode": "report"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTest(t)

			cmd, out := newTestCommand()
			cmd.SetIn(strings.NewReader(tt.payload))
			err := runInvoke(cmd, []string{"-"})
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("invoke failed: %v", err)
			}
			tt.check(t, out.Bytes())
		})
	}
}

func TestInvokeFromFile(t *testing.T) {
	setupTest(t)

	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(`{"mode":"research","topics":["regulatory"]}`), 0644); err != nil {
		t.Fatal(err)
	}

	cmd, out := newTestCommand()
	if err := runInvoke(cmd, []string{path}); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if !strings.Contains(out.String(), `"findings_count": 1`) {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	if err := runInvoke(cmd, []string{filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("expected error for missing payload file")
	}
}
