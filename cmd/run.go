package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/pders01/research-collector/internal/research"
	"github.com/spf13/cobra"
)

var (
	runTopics    []string
	runForceFull bool
	runCycleSize int
	runTimeout   time.Duration
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one research cycle",
	Long: `Select queries from the catalog, scan and research them within the token
budget, write the cycle record and merge it into the rolling summary.

High-importance topics always get one full research pass. The remaining
slots are filled at random from the other topics and go through a cheap
scan first.

Examples:
  collector run
  collector run --topics pricing,regulatory --force-full
  collector run --cycle-size 4 --json`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runTopics, "topics", nil, "Restrict the cycle to these topic IDs")
	runCmd.Flags().BoolVar(&runForceFull, "force-full", false, "Skip the scan gate for every selected query")
	runCmd.Flags().IntVar(&runCycleSize, "cycle-size", 0, "Random fill size (default from config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Wall-clock budget of the cycle (default from config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output the result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	d, err := buildDeps(cmd, true)
	if err != nil {
		return err
	}

	opts := researchOptions()
	if runTimeout > 0 {
		opts.Timeout = runTimeout
	}

	res, err := d.orchestrator(opts).Run(commandContext(cmd), research.Request{
		Topics:    runTopics,
		ForceFull: runForceFull,
		CycleSize: runCycleSize,
	})
	if res != nil {
		if runJSON {
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
		} else {
			printResearchResult(cmd.OutOrStdout(), res)
		}
	}
	if err != nil {
		return fmt.Errorf("research cycle failed: %w", err)
	}
	return nil
}

func printResearchResult(w io.Writer, res *research.Result) {
	if res.RecordKey != "" {
		fmt.Fprintf(w, "✓ Cycle %s recorded: %s\n", res.CycleID, res.RecordKey)
	} else {
		fmt.Fprintf(w, "Cycle %s was not recorded\n", res.CycleID)
	}
	fmt.Fprintf(w, "  Selected:   %d queries\n", res.Stats.QueriesSelected)
	fmt.Fprintf(w, "  Researched: %d topics, %d findings\n", res.TopicsResearched, res.FindingsCount)

	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "  Skipped:    %d\n", len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Fprintf(w, "    - %s: %s (%s)\n", s.TopicID, s.QueryText, s.Reason)
		}
	}

	fmt.Fprintf(w, "  Tokens:     %d (est. $%.4f)\n", res.Stats.TotalTokens, res.Stats.EstimatedCostUSD)
	ts := res.ThrottleStats
	fmt.Fprintf(w, "  Throttle:   %d calls, %d waits (%.0fs), %d rate limit hits, %d retries\n",
		ts.Calls, ts.Waits, ts.WaitedSeconds, ts.RateLimitHits, ts.Retries)

	if res.SummaryUpdated {
		fmt.Fprintln(w, "  Summary:    updated")
	} else {
		fmt.Fprintln(w, "  Summary:    unchanged")
	}
	if len(res.ArchivalPending) > 0 {
		fmt.Fprintf(w, "  Pending:    %v (run collector archive)\n", res.ArchivalPending)
	}
	for _, n := range res.Notes {
		fmt.Fprintf(w, "  Note: %s\n", n)
	}
}
