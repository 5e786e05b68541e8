package cmd

import (
	"fmt"

	"github.com/pders01/research-collector/internal/config"
	"github.com/spf13/cobra"
)

var pruneForce bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove daily records that are already archived",
	Long: `Remove daily cycle records of months past the retention period whose
monthly archive already exists. Only records listed in the archive are
removed.

The retention period is configured in config.toml:
  [archive]
  retention_days = 30

Example:
  collector prune            # Show what would be pruned
  collector prune --force    # Actually delete the records`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneForce, "force", false, "Actually delete records (default is a dry run)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	d, err := buildDeps(cmd, false)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Retention policy: %d days\n\n", config.GetRetentionDays())

	res, err := d.engine().Prune(commandContext(cmd), !pruneForce)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	if len(res.Keys) == 0 {
		fmt.Fprintln(w, "No records to prune")
		return nil
	}

	fmt.Fprintf(w, "Records to prune (%d) from %v:\n\n", len(res.Keys), res.Periods)
	for _, key := range res.Keys {
		fmt.Fprintf(w, "  %s\n", key)
	}

	if res.DryRun {
		fmt.Fprintln(w, "\nThis is a dry run. Use --force to actually prune records.")
		return nil
	}
	fmt.Fprintf(w, "\n✓ Pruned %d record(s)\n", res.Deleted)
	return nil
}
