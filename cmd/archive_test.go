package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/testutil"
	"github.com/spf13/viper"
)

// synthesisJSON satisfies both the month condensation and the history synthesis
const synthesisJSON = `{"executive_summary":"January was busy.","top_themes":["tax"],"overview":{"current_state":"Stable market.","trajectory":"stable","confidence":"medium"}}`

func resetArchiveFlags() {
	archiveDeleteAfter = false
	archiveMonth = ""
	archiveRebuild = false
	archiveRecondense = false
	archiveJSON = false
}

func TestArchiveSkipsArchivedMonths(t *testing.T) {
	setupTest(t)
	viper.Set("provider.synthesis_model", "synthesis-model")
	c := testutil.NewCompleter(func(n int, req provider.Request) (provider.Response, error) {
		return testutil.Reply(synthesisJSON)
	})
	newCompleter = func(provider.Config, ...provider.Option) (provider.Completer, error) {
		return c, nil
	}
	resetArchiveFlags()
	defer resetArchiveFlags()

	st := testStore(t)
	testutil.SaveCycle(t, st, testRecord(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), "January headline"))

	cmd, out := newTestCommand()
	if err := runArchive(cmd, nil); err != nil {
		t.Fatalf("archive command failed: %v", err)
	}
	if !strings.Contains(out.String(), "✓ Archived 1 month(s): [2025-01]") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	first := c.Calls("")
	if first != 2 {
		t.Errorf("expected one condensation and one history call, got %d", first)
	}

	cmd, out = newTestCommand()
	if err := runArchive(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Already archived: [2025-01]") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if got := c.Calls(""); got != first {
		t.Errorf("second run should make no calls, made %d", got-first)
	}

	archiveRecondense = true
	cmd, out = newTestCommand()
	if err := runArchive(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "✓ Archived 1 month(s)") || c.Calls("") == first {
		t.Errorf("recondense should rebuild the month, got:\n%s", out.String())
	}
}
