package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/store"
	"github.com/spf13/cobra"
)

var (
	listMonth string
	listSince string
	listJSON  bool
	listToon  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cycle records",
	Long: `List the daily cycle records with optional filtering.

Examples:
  collector list
  collector list --month 2025-01
  collector list --since 2025-01-15
  collector list --toon`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listMonth, "month", "", "Show only records from month (YYYY-MM)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Show records since date (YYYY-MM-DD)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().BoolVar(&listToon, "toon", false, "Output in LLM-friendly toon format")
}

type cycleEntry struct {
	Key       string    `json:"key"`
	Date      string    `json:"date"`
	CycleID   string    `json:"cycle_id"`
	StartedAt time.Time `json:"started_at"`
	Selected  int       `json:"selected"`
	Findings  int       `json:"findings"`
	Skipped   int       `json:"skipped"`
	Tokens    int       `json:"tokens"`
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	locs, err := filterCycles(ctx, st, listMonth, listSince)
	if err != nil {
		return err
	}

	entries := make([]cycleEntry, 0, len(locs))
	for _, loc := range locs {
		rec, err := st.LoadCycle(ctx, loc.Key)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to load %s: %v\n", loc.Key, err)
			continue
		}
		entries = append(entries, cycleEntry{
			Key:       loc.Key,
			Date:      loc.Date().Format("2006-01-02"),
			CycleID:   rec.ID,
			StartedAt: rec.StartedAt,
			Selected:  len(rec.Selected),
			Findings:  len(rec.Findings),
			Skipped:   len(rec.Skipped),
			Tokens:    rec.Stats.TotalTokens,
		})
	}

	// Newest first
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})

	w := cmd.OutOrStdout()
	if listJSON {
		return printJSON(w, entries)
	}
	if listToon {
		return printToon(w, struct {
			Cycles []cycleEntry `json:"cycles"`
		}{entries})
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No cycle records found")
		return nil
	}

	fmt.Fprintf(w, "Found %d cycle record(s):\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\n", e.Key)
		fmt.Fprintf(w, "    Cycle:    %s\n", e.CycleID)
		fmt.Fprintf(w, "    Started:  %s\n", e.StartedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "    Queries:  %d selected, %d findings, %d skipped\n", e.Selected, e.Findings, e.Skipped)
		fmt.Fprintf(w, "    Tokens:   %d\n", e.Tokens)
		fmt.Fprintln(w)
	}
	return nil
}

// filterCycles lists record locations restricted to month (YYYY-MM) and
// records on or after since (YYYY-MM-DD). Empty filters match everything.
func filterCycles(ctx context.Context, st *store.Store, month, since string) ([]models.CycleLocation, error) {
	var (
		locs []models.CycleLocation
		err  error
	)
	if month != "" {
		year, m, perr := models.ParsePeriod(month)
		if perr != nil {
			return nil, fmt.Errorf("invalid --month: %w", perr)
		}
		locs, err = st.ListCyclesForMonth(ctx, year, m)
	} else {
		locs, err = st.ListCycles(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle records: %w", err)
	}

	if since == "" {
		return locs, nil
	}
	sinceDate, err := time.Parse("2006-01-02", since)
	if err != nil {
		return nil, fmt.Errorf("invalid --since date format (use YYYY-MM-DD): %w", err)
	}
	var out []models.CycleLocation
	for _, loc := range locs {
		if !loc.Date().Before(sinceDate) {
			out = append(out, loc)
		}
	}
	return out, nil
}
