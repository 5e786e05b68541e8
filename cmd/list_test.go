package cmd

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pders01/research-collector/internal/testutil"
)

func TestList(t *testing.T) {
	setupTest(t)
	st := testStore(t)
	janKey := testutil.SaveCycle(t, st, testRecord(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), "January headline"))
	febKey := testutil.SaveCycle(t, st, testRecord(time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC), "February headline"))

	tests := []struct {
		name    string
		month   string
		since   string
		want    []string
		notWant []string
		wantErr bool
	}{
		{name: "all", want: []string{janKey, febKey}},
		{name: "month", month: "2025-01", want: []string{janKey}, notWant: []string{febKey}},
		{name: "since", since: "2025-02-01", want: []string{febKey}, notWant: []string{janKey}},
		{name: "bad month", month: "January", wantErr: true},
		{name: "bad since", since: "02/01/2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listMonth, listSince, listJSON, listToon = tt.month, tt.since, false, false

			cmd, out := newTestCommand()
			err := runList(cmd, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("list command failed: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("expected %s in output:\n%s", w, out.String())
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out.String(), w) {
					t.Errorf("did not expect %s in output", w)
				}
			}
		})
	}

	t.Run("json", func(t *testing.T) {
		listMonth, listSince, listJSON, listToon = "", "", true, false
		defer func() { listJSON = false }()

		cmd, out := newTestCommand()
		if err := runList(cmd, nil); err != nil {
			t.Fatal(err)
		}
		var entries []cycleEntry
		if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 || entries[0].Key != febKey {
			t.Errorf("expected newest first, got %+v", entries)
		}
	})
}
