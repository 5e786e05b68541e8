package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pders01/research-collector/internal/config"
	"github.com/pders01/research-collector/internal/invocation"
	"github.com/spf13/cobra"
)

var daemonRunNow bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run research and archive on a schedule",
	Long: `Trigger research every schedule.research_interval and archive every
schedule.archive_interval until interrupted.

Invocations run one after another and never overlap. A tick that fires
while an invocation is still running is handled once it finishes.

Examples:
  collector daemon
  collector daemon --run-now=false`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().BoolVar(&daemonRunNow, "run-now", true, "Run a research cycle immediately on start")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	researchEvery := config.GetResearchInterval()
	archiveEvery := config.GetArchiveInterval()
	if researchEvery <= 0 || archiveEvery <= 0 {
		return fmt.Errorf("schedule intervals must be positive (research %s, archive %s)", researchEvery, archiveEvery)
	}

	d, err := buildDeps(cmd, true)
	if err != nil {
		return err
	}
	h := &invocation.Handler{
		Research: d.orchestrator(researchOptions()),
		Archive:  d.engine(),
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, h, d.logger, researchEvery, archiveEvery, daemonRunNow)
}

// serve dispatches ticks until ctx is done. A single goroutine handles every
// invocation.
func serve(ctx context.Context, h *invocation.Handler, logger *slog.Logger, researchEvery, archiveEvery time.Duration, runNow bool) error {
	researchTicker := time.NewTicker(researchEvery)
	defer researchTicker.Stop()
	archiveTicker := time.NewTicker(archiveEvery)
	defer archiveTicker.Stop()

	logger.Info("daemon started", "research_interval", researchEvery, "archive_interval", archiveEvery)

	if runNow {
		invoke(ctx, h, logger, invocation.ModeResearch)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopped")
			return nil
		case <-researchTicker.C:
			invoke(ctx, h, logger, invocation.ModeResearch)
		case <-archiveTicker.C:
			invoke(ctx, h, logger, invocation.ModeArchive)
		}
	}
}

func invoke(ctx context.Context, h *invocation.Handler, logger *slog.Logger, mode invocation.Mode) {
	start := time.Now()
	res, err := h.Handle(ctx, invocation.Payload{Mode: mode})
	if err != nil {
		logger.Error("invocation failed", "mode", mode, "error", err)
		return
	}

	attrs := []any{"mode", mode, "elapsed", time.Since(start).Round(time.Second)}
	switch {
	case res.Research != nil:
		attrs = append(attrs, "cycle_id", res.Research.CycleID, "findings", res.Research.FindingsCount)
	case res.Archive != nil:
		attrs = append(attrs, "months", res.Archive.MonthsArchived, "deleted", res.Archive.FilesDeleted)
	}
	logger.Info("invocation finished", attrs...)
}
