package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/pders01/research-collector/internal/testutil"
)

func TestShow(t *testing.T) {
	setupTest(t)
	st := testStore(t)
	testutil.SaveCycle(t, st, testRecord(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), "January headline"))
	testutil.SaveCycle(t, st, testRecord(time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC), "February headline"))

	showJSON = false
	cmd, out := newTestCommand()
	if err := runShow(cmd, []string{"2025-01-10"}); err != nil {
		t.Fatalf("show command failed: %v", err)
	}
	if !strings.Contains(out.String(), "January headline") || strings.Contains(out.String(), "February headline") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	if err := runShow(cmd, []string{"2025-01-11"}); err == nil {
		t.Error("expected error for a day without records")
	}
	if err := runShow(cmd, []string{"yesterday"}); err == nil {
		t.Error("expected error for invalid date")
	}
}
