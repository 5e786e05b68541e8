package cmd

import (
	"fmt"
	"io"

	"github.com/pders01/research-collector/internal/archive"
	"github.com/spf13/cobra"
)

var (
	archiveDeleteAfter bool
	archiveMonth       string
	archiveRebuild     bool
	archiveRecondense  bool
	archiveJSON        bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Condense old months into monthly archives",
	Long: `Condense every month past the retention period into a monthly archive and
rebuild the historical context from the most recent archives.

Months whose archive already lists every daily record are skipped unless
--recondense is given or the month is named with --month.

Daily records are only deleted with --delete-after-archive, and only after
their archive has been written.

Examples:
  collector archive
  collector archive --delete-after-archive
  collector archive --month 2025-01
  collector archive --recondense
  collector archive --rebuild-history --json`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().BoolVar(&archiveDeleteAfter, "delete-after-archive", false, "Delete daily records once their month is archived")
	archiveCmd.Flags().StringVar(&archiveMonth, "month", "", "Archive one completed month (YYYY-MM) regardless of retention")
	archiveCmd.Flags().BoolVar(&archiveRebuild, "rebuild-history", false, "Rebuild the historical context even if nothing was archived")
	archiveCmd.Flags().BoolVar(&archiveRecondense, "recondense", false, "Condense months again even if their archive is complete")
	archiveCmd.Flags().BoolVar(&archiveJSON, "json", false, "Output the result as JSON")
}

func runArchive(cmd *cobra.Command, args []string) error {
	d, err := buildDeps(cmd, true)
	if err != nil {
		return err
	}

	res, err := d.engine().Run(commandContext(cmd), archive.Request{
		DeleteAfterArchive: archiveDeleteAfter,
		Period:             archiveMonth,
		RebuildHistory:     archiveRebuild,
		Recondense:         archiveRecondense,
	})
	if res != nil {
		if archiveJSON {
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
		} else {
			printArchiveResult(cmd.OutOrStdout(), res)
		}
	}
	if err != nil {
		return fmt.Errorf("archive failed: %w", err)
	}
	return nil
}

func printArchiveResult(w io.Writer, res *archive.Result) {
	if res.MonthsArchived == 0 {
		fmt.Fprintln(w, "No months archived")
	} else {
		fmt.Fprintf(w, "✓ Archived %d month(s): %v\n", res.MonthsArchived, res.Periods)
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "  Already archived: %v\n", res.Skipped)
	}
	if res.FilesDeleted > 0 {
		fmt.Fprintf(w, "✓ Deleted %d daily record(s)\n", res.FilesDeleted)
	}
	if res.HistoricalContextUpdated {
		fmt.Fprintln(w, "✓ Historical context updated")
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  Error: %s\n", e)
	}
}
