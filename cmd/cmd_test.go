package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/pders01/research-collector/internal/config"
	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/store"
	"github.com/pders01/research-collector/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	researchJSON = `{"summary":"busy week","findings":[{"headline":"New tax bill","detail":"Passed on Monday.","source":"Example Times"}]}`
	hasNews      = `{"has_new_content": true, "rationale": "new filing"}`
)

// setupTest points storage at a temp dir and swaps the provider for a
// scripted completer
func setupTest(t *testing.T) *testutil.Completer {
	t.Helper()

	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set("storage.root", t.TempDir())
	viper.Set("log.level", "error")

	c := testutil.NewCompleter(func(n int, req provider.Request) (provider.Response, error) {
		if req.Model == config.GetScanModel() {
			return testutil.Reply(hasNews)
		}
		return testutil.Reply(researchJSON)
	})
	prev := newCompleter
	newCompleter = func(provider.Config, ...provider.Option) (provider.Completer, error) {
		return c, nil
	}
	t.Cleanup(func() {
		newCompleter = prev
		viper.Reset()
	})
	return c
}

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &out
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := openStore()
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func testRecord(at time.Time, headline string) *models.CycleRecord {
	q := models.Query{TopicID: "pricing", Text: "price changes"}
	return &models.CycleRecord{
		ID:          "cycle-" + at.Format("0102"),
		StartedAt:   at,
		CompletedAt: at.Add(time.Minute),
		Selected:    []models.Query{q},
		Findings: []models.Finding{{
			TopicID:   q.TopicID,
			QueryText: q.Text,
			Items:     []models.FindingItem{{Headline: headline, Detail: "detail"}},
		}},
		Skipped: []models.Skip{},
		Stats:   models.CycleStats{QueriesSelected: 1, Researched: 1, TotalTokens: 150},
	}
}
