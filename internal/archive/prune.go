package archive

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pders01/research-collector/internal/store"
)

// PruneResult lists the daily records that are, or would be, removed
type PruneResult struct {
	DryRun  bool     `json:"dry_run"`
	Periods []string `json:"periods"`
	Keys    []string `json:"keys"`
	Deleted int      `json:"deleted"`
}

// Prune deletes daily records of months past retention that an existing
// MonthlyArchive already covers. Records the archive does not list are kept.
func (e *Engine) Prune(ctx context.Context, dryRun bool) (*PruneResult, error) {
	res := &PruneResult{DryRun: dryRun, Periods: []string{}, Keys: []string{}}

	months, err := e.Eligible(ctx, e.clock.Now().UTC())
	if err != nil {
		return res, err
	}

	for _, m := range months {
		archive, err := e.store.LoadMonthlyArchive(ctx, m.Year, m.Month)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, err
		}

		var keys []string
		for _, key := range m.Keys() {
			if slices.Contains(archive.SourceKeys, key) {
				keys = append(keys, key)
			}
		}
		if len(keys) == 0 {
			continue
		}
		res.Periods = append(res.Periods, m.Period())
		res.Keys = append(res.Keys, keys...)
	}

	if dryRun || len(res.Keys) == 0 {
		return res, nil
	}
	n, err := e.store.DeleteCycles(ctx, res.Keys)
	res.Deleted = n
	if err != nil {
		return res, fmt.Errorf("prune stopped after %d deletions: %w", n, err)
	}
	e.logger.Info("pruned archived daily records", "count", n)
	return res, nil
}
