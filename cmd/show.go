package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/pders01/research-collector/internal/models"
	"github.com/spf13/cobra"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <YYYY-MM-DD>",
	Short: "Show the cycle records of a day",
	Long: `Display every cycle record stored for the given day.

Example:
  collector show 2025-01-10`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	day, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	locs, err := st.ListCyclesForMonth(ctx, day.Year(), int(day.Month()))
	if err != nil {
		return fmt.Errorf("failed to list cycle records: %w", err)
	}

	var records []*models.CycleRecord
	for _, loc := range locs {
		if loc.Day != day.Day() {
			continue
		}
		rec, err := st.LoadCycle(ctx, loc.Key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", loc.Key, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return fmt.Errorf("no cycle records for %s", args[0])
	}

	w := cmd.OutOrStdout()
	if showJSON {
		return printJSON(w, records)
	}
	for i, rec := range records {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printRecord(w, rec)
	}
	return nil
}

func printRecord(w io.Writer, rec *models.CycleRecord) {
	fmt.Fprintf(w, "Cycle: %s\n\n", rec.ID)
	fmt.Fprintf(w, "Started:    %s\n", rec.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Completed:  %s\n", rec.CompletedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Selected:   %d queries\n", len(rec.Selected))
	fmt.Fprintf(w, "Tokens:     %d (est. $%.4f)\n", rec.Stats.TotalTokens, rec.Stats.EstimatedCostUSD)

	for _, f := range rec.Findings {
		fmt.Fprintf(w, "\n[%s] %s\n", f.TopicID, f.QueryText)
		if f.Summary != "" {
			fmt.Fprintf(w, "  %s\n", f.Summary)
		}
		for _, item := range f.Items {
			fmt.Fprintf(w, "  - %s\n", item.Headline)
			if item.Detail != "" {
				fmt.Fprintf(w, "    %s\n", item.Detail)
			}
			if item.SourceReference != "" {
				fmt.Fprintf(w, "    Source: %s\n", item.SourceReference)
			}
		}
	}

	if len(rec.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, s := range rec.Skipped {
			fmt.Fprintf(w, "  - %s: %s (%s)\n", s.TopicID, s.QueryText, s.Reason)
		}
	}
	if len(rec.Notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		for _, n := range rec.Notes {
			fmt.Fprintf(w, "  %s\n", n)
		}
	}
}
