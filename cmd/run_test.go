package cmd

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pders01/research-collector/internal/config"
	"github.com/pders01/research-collector/internal/research"
	"github.com/pders01/research-collector/internal/testutil"
)

func resetRunFlags() {
	runTopics = nil
	runForceFull = false
	runCycleSize = 0
	runTimeout = 0
	runJSON = false
}

func TestRunResearchCycle(t *testing.T) {
	c := setupTest(t)
	resetRunFlags()
	runTopics = []string{"pricing"}

	cmd, out := newTestCommand()
	if err := runRun(cmd, nil); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	if !strings.Contains(out.String(), "✓ Cycle") {
		t.Errorf("expected confirmation, got:\n%s", out.String())
	}
	// pricing is high importance: straight to research, no scan
	if got := c.Calls(config.GetScanModel()); got != 0 {
		t.Errorf("expected no scans, got %d", got)
	}
	if got := c.Calls(config.GetResearchModel()); got != 1 {
		t.Errorf("expected 1 research call, got %d", got)
	}

	st := testStore(t)
	locs, err := st.ListCycles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(locs))
	}
	summary, err := st.LoadSummary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Version != 1 {
		t.Errorf("expected summary version 1, got %d", summary.Version)
	}
}

func TestRunJSONOutput(t *testing.T) {
	setupTest(t)
	resetRunFlags()
	runTopics = []string{"market_trends"}
	runForceFull = true
	runCycleSize = 1
	runJSON = true
	defer resetRunFlags()

	cmd, out := newTestCommand()
	if err := runRun(cmd, nil); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	var res research.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if res.FindingsCount != 1 || res.RecordKey == "" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRunReportsArchivalBacklog(t *testing.T) {
	setupTest(t)
	resetRunFlags()
	runTopics = []string{"pricing"}
	defer resetRunFlags()

	st := testStore(t)
	testutil.SaveCycle(t, st, testRecord(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), "January headline"))

	cmd, out := newTestCommand()
	if err := runRun(cmd, nil); err != nil {
		t.Fatalf("run command failed: %v", err)
	}
	if !strings.Contains(out.String(), "Pending:    [2025-01]") {
		t.Errorf("expected january waiting for archival, got:\n%s", out.String())
	}
}
