package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pders01/research-collector/internal/store"
	"github.com/spf13/cobra"
)

var (
	statsJSON bool
	statsToon bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage statistics",
	Long: `Display statistics about the stored research including:
  - Daily cycle records per month
  - Findings, skips and token totals
  - Monthly archives
  - Summary and historical context state

Examples:
  collector stats
  collector stats --json
  collector stats --toon`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().BoolVar(&statsToon, "toon", false, "Output in LLM-friendly toon format")
}

type storeStats struct {
	TotalRecords     int         `json:"total_records"`
	TotalFindings    int         `json:"total_findings"`
	TotalSkipped     int         `json:"total_skipped"`
	TotalTokens      int         `json:"total_tokens"`
	EstimatedCostUSD float64     `json:"estimated_cost_usd"`
	Monthly          []monthStat `json:"monthly"`
	Archives         []string    `json:"archives"`
	SummaryVersion   int64       `json:"summary_version"`
	SummaryUpdatedAt *time.Time  `json:"summary_updated_at,omitempty"`
	WatchlistSize    int         `json:"watchlist_size"`
	HistoryUpdatedAt *time.Time  `json:"history_updated_at,omitempty"`
	HistoryPeriods   int         `json:"history_periods"`
}

type monthStat struct {
	Period   string `json:"period"`
	Records  int    `json:"records"`
	Findings int    `json:"findings"`
	Tokens   int    `json:"tokens"`
	Archived bool   `json:"archived"`
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	locs, err := st.ListCycles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cycle records: %w", err)
	}
	archives, err := st.ListMonthlyArchives(ctx)
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}

	if archives == nil {
		archives = []string{}
	}
	stats := &storeStats{Monthly: []monthStat{}, Archives: archives}
	archived := make(map[string]bool, len(archives))
	for _, p := range archives {
		archived[p] = true
	}

	byMonth := make(map[string]*monthStat)
	for _, loc := range locs {
		rec, err := st.LoadCycle(ctx, loc.Key)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to load %s: %v\n", loc.Key, err)
			continue
		}
		stats.TotalRecords++
		stats.TotalFindings += len(rec.Findings)
		stats.TotalSkipped += len(rec.Skipped)
		stats.TotalTokens += rec.Stats.TotalTokens
		stats.EstimatedCostUSD += rec.Stats.EstimatedCostUSD

		ms, ok := byMonth[loc.Period()]
		if !ok {
			ms = &monthStat{Period: loc.Period()}
			byMonth[loc.Period()] = ms
		}
		ms.Records++
		ms.Findings += len(rec.Findings)
		ms.Tokens += rec.Stats.TotalTokens
	}
	for _, p := range archives {
		if _, ok := byMonth[p]; !ok {
			byMonth[p] = &monthStat{Period: p}
		}
	}
	for p, ms := range byMonth {
		ms.Archived = archived[p]
		stats.Monthly = append(stats.Monthly, *ms)
	}
	sort.Slice(stats.Monthly, func(i, j int) bool {
		return stats.Monthly[i].Period > stats.Monthly[j].Period
	})

	summary, err := st.LoadSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to read summary: %w", err)
	}
	stats.SummaryVersion = summary.Version
	stats.WatchlistSize = len(summary.Watchlist)
	if !summary.UpdatedAt.IsZero() {
		t := summary.UpdatedAt
		stats.SummaryUpdatedAt = &t
	}

	hc, err := st.LoadHistoricalContext(ctx)
	switch {
	case err == nil:
		t := hc.UpdatedAt
		stats.HistoryUpdatedAt = &t
		stats.HistoryPeriods = len(hc.PeriodsCovered)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("failed to read historical context: %w", err)
	}

	w := cmd.OutOrStdout()
	if statsJSON {
		return printJSON(w, stats)
	}
	if statsToon {
		return printToon(w, stats)
	}

	fmt.Fprintln(w, "Research Statistics")
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Cycle Records:   %d\n", stats.TotalRecords)
	fmt.Fprintf(w, "Findings:        %d\n", stats.TotalFindings)
	fmt.Fprintf(w, "Skipped Queries: %d\n", stats.TotalSkipped)
	fmt.Fprintf(w, "Tokens:          %d (est. $%.2f)\n", stats.TotalTokens, stats.EstimatedCostUSD)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Summary:")
	if stats.SummaryUpdatedAt != nil {
		fmt.Fprintf(w, "  Version %d, updated %s, %d watch item(s)\n",
			stats.SummaryVersion, stats.SummaryUpdatedAt.Format("2006-01-02 15:04"), stats.WatchlistSize)
	} else {
		fmt.Fprintln(w, "  none yet")
	}
	fmt.Fprintln(w, "Historical Context:")
	if stats.HistoryUpdatedAt != nil {
		fmt.Fprintf(w, "  Updated %s from %d month(s)\n", stats.HistoryUpdatedAt.Format("2006-01-02 15:04"), stats.HistoryPeriods)
	} else {
		fmt.Fprintln(w, "  none yet")
	}
	fmt.Fprintln(w)

	if len(stats.Monthly) > 0 {
		fmt.Fprintln(w, "By Month:")
		limit := min(12, len(stats.Monthly))
		for _, ms := range stats.Monthly[:limit] {
			mark := ""
			if ms.Archived {
				mark = "  archived"
			}
			bar := strings.Repeat("█", min(ms.Records, 20))
			fmt.Fprintf(w, "  %s  %3d  %-20s%s\n", ms.Period, ms.Records, bar, mark)
		}
	}

	return nil
}
