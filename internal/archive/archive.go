// Package archive condenses old daily CycleRecords into MonthlyArchives and
// re-synthesizes the single HistoricalContext document from them.
//
// Both steps are safe to re-run. A MonthlyArchive is always written before any
// of its source records are deleted, and a failed synthesis leaves the prior
// documents untouched.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/pders01/research-collector/internal/clock"
	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/store"
	"github.com/pders01/research-collector/internal/throttle"
	"github.com/sourcegraph/conc/iter"
)

// ErrSynthesis marks a failed or unusable synthesis call
var ErrSynthesis = errors.New("synthesis failed")

// Options tune the engine
type Options struct {
	SynthesisModel     string
	SynthesisMaxTokens int
	HistoryMaxTokens   int
	RetentionDays      int
	HistoryMonths      int
	DedupeThreshold    float64
	// ReadConcurrency bounds parallel record loads
	ReadConcurrency int
	Throttle        throttle.Options
}

// DefaultOptions mirror the configuration defaults
func DefaultOptions() Options {
	return Options{
		SynthesisModel:     "claude-sonnet-4-20250514",
		SynthesisMaxTokens: 3000,
		HistoryMaxTokens:   4000,
		RetentionDays:      30,
		HistoryMonths:      12,
		ReadConcurrency:    4,
		Throttle:           throttle.DefaultOptions(),
	}
}

// Request is one invocation of archive mode
type Request struct {
	DeleteAfterArchive bool
	// Period targets one completed month (YYYY-MM) regardless of retention
	Period         string
	RebuildHistory bool
	// Recondense rebuilds archives that already cover every stored record
	Recondense bool
}

// Result is the archive-mode invocation result
type Result struct {
	MonthsArchived           int                  `json:"months_archived"`
	HistoricalContextUpdated bool                 `json:"historical_context_updated"`
	Periods                  []string             `json:"periods"`
	Skipped                  []string             `json:"skipped,omitempty"`
	FilesDeleted             int                  `json:"files_deleted"`
	Errors                   []string             `json:"errors,omitempty"`
	ThrottleStats            models.ThrottleStats `json:"throttle_stats"`
}

// Month is a calendar month with its stored CycleRecords
type Month struct {
	Year    int
	Month   int
	Records []models.CycleLocation
}

// Period returns YYYY-MM
func (m Month) Period() string {
	return models.Period(m.Year, m.Month)
}

// Keys returns the object keys of the month's records
func (m Month) Keys() []string {
	keys := make([]string, len(m.Records))
	for i, r := range m.Records {
		keys[i] = r.Key
	}
	return keys
}

// end is the first instant after the month
func (m Month) end() time.Time {
	return time.Date(m.Year, time.Month(m.Month)+1, 1, 0, 0, 0, 0, time.UTC)
}

// Engine runs archival. It is not safe for concurrent use.
type Engine struct {
	completer provider.Completer
	store     *store.Store
	topics    []models.Topic
	opts      Options

	clock    clock.Clock
	logger   *slog.Logger
	throttle *throttle.Controller
}

// Option configures an Engine
type Option func(*Engine)

func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithThrottle shares one ledger across runs instead of a fresh one per run
func WithThrottle(t *throttle.Controller) Option {
	return func(e *Engine) { e.throttle = t }
}

// New creates an Engine
func New(c provider.Completer, st *store.Store, topics []models.Topic, opts Options, options ...Option) *Engine {
	if opts.ReadConcurrency <= 0 {
		opts.ReadConcurrency = 4
	}
	if opts.HistoryMonths <= 0 {
		opts.HistoryMonths = 12
	}
	e := &Engine{
		completer: c,
		store:     st,
		topics:    topics,
		opts:      opts,
		clock:     clock.Real{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Months groups every stored CycleRecord by calendar month, oldest first
func (e *Engine) Months(ctx context.Context) ([]Month, error) {
	locs, err := e.store.ListCycles(ctx)
	if err != nil {
		return nil, err
	}

	byPeriod := make(map[string]*Month)
	var order []string
	for _, loc := range locs {
		p := loc.Period()
		m, ok := byPeriod[p]
		if !ok {
			m = &Month{Year: loc.Year, Month: loc.Month}
			byPeriod[p] = m
			order = append(order, p)
		}
		m.Records = append(m.Records, loc)
	}
	sort.Strings(order)

	months := make([]Month, 0, len(order))
	for _, p := range order {
		months = append(months, *byPeriod[p])
	}
	return months, nil
}

// pastRetention reports whether the whole month is older than the retention window
func (e *Engine) pastRetention(m Month, now time.Time) bool {
	cutoff := now.AddDate(0, 0, -e.opts.RetentionDays)
	return !m.end().After(cutoff)
}

// Eligible returns the completed months whose records are all older than the
// retention window.
func (e *Engine) Eligible(ctx context.Context, now time.Time) ([]Month, error) {
	months, err := e.Months(ctx)
	if err != nil {
		return nil, err
	}
	var out []Month
	for _, m := range months {
		if e.pastRetention(m, now) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (e *Engine) target(ctx context.Context, req Request, now time.Time) ([]Month, error) {
	if req.Period == "" {
		return e.Eligible(ctx, now)
	}

	year, month, err := models.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	m := Month{Year: year, Month: month}
	if m.end().After(now) {
		return nil, fmt.Errorf("month %s is not complete yet", req.Period)
	}
	locs, err := e.store.ListCyclesForMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, nil
	}
	m.Records = locs
	return []Month{m}, nil
}

// Run condenses every target month, optionally deletes its sources, and then
// refreshes the historical context. Storage errors abort the run. Synthesis
// failures are collected; the run continues with the other months and
// returns an error wrapping ErrSynthesis at the end.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	thr := e.throttle
	if thr == nil {
		thr = throttle.New(e.opts.Throttle, e.clock, e.logger)
	}
	res := &Result{Periods: []string{}}
	defer func() { res.ThrottleStats = thr.Stats() }()

	now := e.clock.Now().UTC()
	months, err := e.target(ctx, req, now)
	if err != nil {
		return res, fmt.Errorf("failed to find months to archive: %w", err)
	}
	e.logger.Info("archive run started", "months", len(months), "delete_after_archive", req.DeleteAfterArchive)

	for _, m := range months {
		log := e.logger.With("period", m.Period())

		if req.Period == "" && !req.Recondense {
			covered, err := e.covered(ctx, m)
			if err != nil {
				return res, err
			}
			if covered {
				log.Info("month already archived, skipping")
				res.Skipped = append(res.Skipped, m.Period())
				if err := e.deleteSources(ctx, req, m, res, log); err != nil {
					return res, err
				}
				continue
			}
		}

		if _, err := e.Condense(ctx, thr, m); err != nil {
			if errors.Is(err, ErrSynthesis) {
				log.Warn("condensation failed, keeping source records", "error", err)
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", m.Period(), err))
				continue
			}
			return res, err
		}
		res.MonthsArchived++
		res.Periods = append(res.Periods, m.Period())

		if err := e.deleteSources(ctx, req, m, res, log); err != nil {
			return res, err
		}
	}

	rebuild := req.RebuildHistory || res.MonthsArchived > 0
	if !rebuild {
		_, err := e.store.LoadHistoricalContext(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
			rebuild = true
		case err != nil:
			return res, err
		}
	}

	if rebuild {
		updated, err := e.Resynthesize(ctx, thr)
		switch {
		case errors.Is(err, ErrSynthesis):
			e.logger.Warn("historical context synthesis failed, keeping prior document", "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("historical context: %v", err))
		case err != nil:
			return res, err
		}
		res.HistoricalContextUpdated = updated
	}

	if len(res.Errors) > 0 {
		return res, fmt.Errorf("%d archive steps failed: %w", len(res.Errors), ErrSynthesis)
	}
	return res, nil
}

// covered reports whether the stored archive of m already lists every one of
// its records. An unreadable archive is rebuilt.
func (e *Engine) covered(ctx context.Context, m Month) (bool, error) {
	archive, err := e.store.LoadMonthlyArchive(ctx, m.Year, m.Month)
	switch {
	case errors.Is(err, store.ErrNotFound), store.IsCorrupt(err):
		return false, nil
	case err != nil:
		return false, err
	}
	for _, key := range m.Keys() {
		if !slices.Contains(archive.SourceKeys, key) {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) deleteSources(ctx context.Context, req Request, m Month, res *Result, log *slog.Logger) error {
	if !req.DeleteAfterArchive {
		return nil
	}
	n, err := e.store.DeleteCycles(ctx, m.Keys())
	res.FilesDeleted += n
	if err != nil {
		return fmt.Errorf("failed to delete archived records for %s: %w", m.Period(), err)
	}
	log.Info("deleted archived daily records", "count", n)
	return nil
}

// Pending returns the months past retention whose records are not yet
// covered by an archive
func (e *Engine) Pending(ctx context.Context, now time.Time) ([]string, error) {
	months, err := e.Eligible(ctx, now)
	if err != nil {
		return nil, err
	}
	pending := []string{}
	for _, m := range months {
		covered, err := e.covered(ctx, m)
		if err != nil {
			return nil, err
		}
		if !covered {
			pending = append(pending, m.Period())
		}
	}
	return pending, nil
}

// loadRecords reads every record of a month in parallel, preserving order
func (e *Engine) loadRecords(ctx context.Context, m Month) ([]*models.CycleRecord, error) {
	mapper := iter.Mapper[models.CycleLocation, *models.CycleRecord]{MaxGoroutines: e.opts.ReadConcurrency}
	return mapper.MapErr(m.Records, func(loc *models.CycleLocation) (*models.CycleRecord, error) {
		return e.store.LoadCycle(ctx, loc.Key)
	})
}

// synthesize runs one throttled synthesis call and returns the reply text
func (e *Engine) synthesize(ctx context.Context, thr *throttle.Controller, req provider.Request) (string, error) {
	var text string
	_, err := thr.Call(ctx, provider.Estimate(req), func(ctx context.Context) (provider.Usage, error) {
		resp, err := e.completer.Complete(ctx, req)
		text = resp.Text
		return resp.Usage, err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	return text, nil
}
