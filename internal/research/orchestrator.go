// Package research runs one research cycle: select queries, scan, research,
// record, and fold the results into the live summary.
//
// Each selected query moves through PENDING -> SCANNED -> SKIPPED|RESEARCHED
// -> RECORDED. Failures on one query become skip reasons and never abort the
// cycle. The cycle fails only when its CycleRecord cannot be written.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/pders01/research-collector/internal/clock"
	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/scheduler"
	"github.com/pders01/research-collector/internal/store"
	"github.com/pders01/research-collector/internal/throttle"
)

// State is the position of one query in the cycle
type State string

const (
	StatePending    State = "PENDING"
	StateScanned    State = "SCANNED"
	StateSkipped    State = "SKIPPED"
	StateResearched State = "RESEARCHED"
	StateRecorded   State = "RECORDED"
)

// writeTimeout bounds the final record and summary writes, which run even
// after the cycle deadline has passed.
const writeTimeout = 30 * time.Second

// Options tune a cycle
type Options struct {
	ScanModel         string
	ResearchModel     string
	ScanMaxTokens     int
	ResearchMaxTokens int
	CycleSize         int
	Timeout           time.Duration
	WatchlistLimit    int
	CheckVersion      bool
	Pricing           models.Pricing
	Throttle          throttle.Options
}

// DefaultOptions mirror the configuration defaults
func DefaultOptions() Options {
	return Options{
		ScanModel:         "claude-haiku-4-5-20251001",
		ResearchModel:     "claude-sonnet-4-20250514",
		ScanMaxTokens:     300,
		ResearchMaxTokens: 2000,
		CycleSize:         scheduler.DefaultCycleSize,
		Timeout:           14 * time.Minute,
		WatchlistLimit:    20,
		CheckVersion:      true,
		Pricing:           models.DefaultPricing(),
		Throttle:          throttle.DefaultOptions(),
	}
}

// Request is one invocation of research mode
type Request struct {
	Topics    []string
	ForceFull bool
	// CycleSize overrides Options.CycleSize when positive
	CycleSize int
}

// Result is the research-mode invocation result
type Result struct {
	CycleID          string               `json:"cycle_id"`
	RecordKey        string               `json:"record_key,omitempty"`
	TopicsResearched int                  `json:"topics_researched"`
	FindingsCount    int                  `json:"findings_count"`
	Skipped          []models.Skip        `json:"skipped"`
	ThrottleStats    models.ThrottleStats `json:"throttle_stats"`
	Stats            models.CycleStats    `json:"stats"`
	SummaryUpdated   bool                 `json:"summary_updated"`
	Notes            []string             `json:"notes,omitempty"`
	// ArchivalPending lists months past retention that no archive covers yet
	ArchivalPending []string `json:"archival_pending"`

	Record *models.CycleRecord `json:"-"`
}

// PendingFunc reports the months still waiting for archival
type PendingFunc func(ctx context.Context, now time.Time) ([]string, error)

// Orchestrator runs research cycles. It is not safe for concurrent use.
type Orchestrator struct {
	completer provider.Completer
	store     *store.Store
	topics    []models.Topic
	opts      Options
	pending   PendingFunc

	clock    clock.Clock
	rng      *rand.Rand
	logger   *slog.Logger
	throttle *throttle.Controller
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

func WithRand(r *rand.Rand) Option { return func(o *Orchestrator) { o.rng = r } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithThrottle shares one ledger across runs instead of a fresh one per run
func WithThrottle(t *throttle.Controller) Option {
	return func(o *Orchestrator) { o.throttle = t }
}

// WithArchivalCheck reports pending archive months in every Result
func WithArchivalCheck(f PendingFunc) Option {
	return func(o *Orchestrator) { o.pending = f }
}

// New creates an Orchestrator over a topic catalog
func New(c provider.Completer, st *store.Store, topics []models.Topic, opts Options, options ...Option) *Orchestrator {
	o := &Orchestrator{
		completer: c,
		store:     st,
		topics:    topics,
		opts:      opts,
		clock:     clock.Real{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(uint64(o.clock.Now().UnixNano()), rand.Uint64()))
	}
	return o
}

// cycle is the mutable state of one run
type cycle struct {
	rec        *models.CycleRecord
	thr        *throttle.Controller
	summary    *models.SummaryState
	history    *models.HistoricalContext
	recent     *models.SummaryHistory
	scanUsage  provider.Usage
	resUsage   provider.Usage
	notes      []string
	canSummary bool
}

func (c *cycle) note(format string, args ...any) {
	c.notes = append(c.notes, fmt.Sprintf(format, args...))
}

// Run executes one cycle and persists its CycleRecord. The returned error is
// non-nil only when the record could not be written.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	runCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	thr := o.throttle
	if thr == nil {
		thr = throttle.New(o.opts.Throttle, o.clock, o.logger)
	}

	c := &cycle{
		rec: &models.CycleRecord{
			ID:        uuid.NewString(),
			StartedAt: o.clock.Now().UTC(),
			Selected:  []models.Query{},
			Findings:  []models.Finding{},
			Skipped:   []models.Skip{},
		},
		thr:        thr,
		canSummary: true,
	}
	log := o.logger.With("cycle_id", c.rec.ID)

	summary, err := o.store.LoadSummary(runCtx)
	switch {
	case err == nil:
	case store.IsCorrupt(err):
		summary = models.NewSummaryState()
		key, qerr := o.store.QuarantineSummary(runCtx, c.rec.StartedAt)
		if qerr != nil {
			log.Warn("summary unreadable and could not be moved aside", "error", qerr)
			c.note("summary unavailable: %v", qerr)
			c.canSummary = false
			break
		}
		log.Warn("summary unreadable, starting a fresh one", "error", err, "moved_to", key)
		c.note("summary unreadable, moved to %s", key)
	default:
		log.Warn("failed to load summary, continuing without prior state", "error", err)
		c.note("summary unavailable: %v", err)
		summary = models.NewSummaryState()
		c.canSummary = false
	}
	c.summary = summary

	c.recent, err = o.store.LoadSummaryHistory(runCtx)
	if err != nil {
		log.Warn("failed to load summary history", "error", err)
	}

	hc, err := o.store.LoadHistoricalContext(runCtx)
	switch {
	case err == nil:
		c.history = hc
	case !errors.Is(err, store.ErrNotFound):
		log.Warn("failed to load historical context", "error", err)
	}

	size := o.opts.CycleSize
	if req.CycleSize > 0 {
		size = req.CycleSize
	}
	entries, err := scheduler.Select(o.rng, o.topics, scheduler.Options{
		CycleSize: size,
		ForceFull: req.ForceFull,
		Topics:    req.Topics,
	})
	if errors.Is(err, scheduler.ErrScheduleExhausted) {
		log.Warn("no eligible queries for this cycle", "topics", req.Topics)
		c.note("schedule exhausted: no eligible queries")
	}
	c.rec.Selected = scheduler.Queries(entries)
	log.Info("cycle started", "selected", len(entries), "force_full", req.ForceFull)

	for i, entry := range entries {
		if runCtx.Err() != nil {
			o.dropRemaining(c, entries[i:])
			c.note("cycle deadline reached with %d queries pending", len(entries)-i)
			break
		}
		o.process(runCtx, c, entry, log)
	}

	return o.finish(ctx, c, log)
}

// dropRemaining records every not yet terminal query as a timeout
func (o *Orchestrator) dropRemaining(c *cycle, entries []models.SelectionEntry) {
	for _, e := range entries {
		c.rec.Skipped = append(c.rec.Skipped, models.Skip{
			TopicID:   e.Query.TopicID,
			QueryText: e.Query.Text,
			Reason:    models.SkipTimeout,
			Detail:    "cycle deadline reached",
		})
	}
}

func (o *Orchestrator) topic(id string) models.Topic {
	for _, t := range o.topics {
		if t.ID == id {
			return t
		}
	}
	return models.Topic{ID: id, Name: id}
}

// process drives one query to a terminal state
func (o *Orchestrator) process(ctx context.Context, c *cycle, entry models.SelectionEntry, log *slog.Logger) {
	q := entry.Query
	t := o.topic(q.TopicID)
	log = log.With("topic", q.TopicID, "query", q.Text)

	skip := func(reason models.SkipReason, detail string) {
		log.Info("query skipped", "state", StateSkipped, "reason", reason, "detail", detail)
		c.rec.Skipped = append(c.rec.Skipped, models.Skip{
			TopicID:   q.TopicID,
			QueryText: q.Text,
			Reason:    reason,
			Detail:    detail,
		})
		log.Debug("query state", "state", StateRecorded)
	}

	log.Debug("query state", "state", StatePending, "must_run_full", entry.MustRunFull)

	var signals []string
	if !entry.MustRunFull {
		scan, err := o.scan(ctx, c, t, q)
		switch {
		case err == nil && !scan.HasNewContent:
			skip(models.SkipNoNewContent, scan.Rationale)
			return
		case err == nil:
			signals = scan.Signals
		case isTimeout(err):
			skip(models.SkipTimeout, err.Error())
			return
		case isRateLimited(err):
			skip(models.SkipRateLimited, err.Error())
			return
		default:
			log.Warn("scan failed, falling back to full research", "error", err)
		}
		log.Debug("query state", "state", StateScanned, "signals", len(signals))
	}

	finding, err := o.research(ctx, c, t, q, signals)
	if err != nil {
		switch {
		case errors.Is(err, errNothingNew):
			skip(models.SkipNoNewContent, err.Error())
		case isTimeout(err):
			skip(models.SkipTimeout, err.Error())
		case isRateLimited(err):
			skip(models.SkipRateLimited, err.Error())
		default:
			skip(models.SkipProviderError, err.Error())
		}
		return
	}

	log.Info("query researched", "state", StateResearched, "items", len(finding.Items), "tokens", finding.Tokens)
	c.rec.Findings = append(c.rec.Findings, *finding)
	log.Debug("query state", "state", StateRecorded)
}

func isTimeout(err error) bool {
	return errors.Is(err, throttle.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func isRateLimited(err error) bool {
	return errors.Is(err, throttle.ErrDenied) || errors.Is(err, provider.ErrRateLimited)
}

func (o *Orchestrator) scan(ctx context.Context, c *cycle, t models.Topic, q models.Query) (models.ScanResult, error) {
	req := provider.Request{
		Model:     o.opts.ScanModel,
		System:    scanSystem,
		Prompt:    scanPrompt(t, q, knownHeadlines(c.summary, t.ID, 5)),
		MaxTokens: o.opts.ScanMaxTokens,
		WebSearch: true,
		JSON:      true,
	}

	var text string
	usage, err := c.thr.Call(ctx, provider.Estimate(req), func(ctx context.Context) (provider.Usage, error) {
		resp, err := o.completer.Complete(ctx, req)
		text = resp.Text
		return resp.Usage, err
	})
	c.rec.Stats.Scans++
	c.scanUsage.InputTokens += usage.InputTokens
	c.scanUsage.OutputTokens += usage.OutputTokens
	if err != nil {
		return models.ScanResult{Tokens: usage.Total()}, err
	}

	scan, err := ParseScan(text)
	scan.Tokens = usage.Total()
	if err != nil {
		return scan, fmt.Errorf("%w: %v", provider.ErrProvider, err)
	}
	return scan, nil
}

func (o *Orchestrator) research(ctx context.Context, c *cycle, t models.Topic, q models.Query, signals []string) (*models.Finding, error) {
	req := provider.Request{
		Model:     o.opts.ResearchModel,
		System:    researchSystem,
		Prompt:    researchPrompt(t, q, signals, background(c.history, t.ID), recentUpdates(c.recent)),
		MaxTokens: o.opts.ResearchMaxTokens,
		WebSearch: true,
	}

	var (
		parsed Parsed
		model  string
	)
	usage, err := c.thr.Call(ctx, provider.Estimate(req), func(ctx context.Context) (provider.Usage, error) {
		resp, err := o.completer.Complete(ctx, req)
		if err != nil {
			return resp.Usage, err
		}
		p, perr := ParseResearch(resp.Text)
		if perr != nil {
			return resp.Usage, fmt.Errorf("%w: %v", provider.ErrProvider, perr)
		}
		parsed, model = p, resp.Model
		return resp.Usage, nil
	}, throttle.RetryProviderErrors())
	c.resUsage.InputTokens += usage.InputTokens
	c.resUsage.OutputTokens += usage.OutputTokens
	if err != nil {
		return nil, err
	}
	if len(parsed.Items) == 0 {
		if parsed.Summary != "" {
			return nil, fmt.Errorf("%w: %s", errNothingNew, parsed.Summary)
		}
		return nil, errNothingNew
	}
	c.rec.Stats.Researched++

	if model == "" {
		model = req.Model
	}
	now := o.clock.Now().UTC()
	watch := make([]models.WatchItem, len(parsed.Watch))
	for i, w := range parsed.Watch {
		w.TopicID = t.ID
		w.AddedAt = now
		watch[i] = w
	}
	return &models.Finding{
		TopicID:      t.ID,
		QueryText:    q.Text,
		Summary:      parsed.Summary,
		Items:        parsed.Items,
		Watch:        watch,
		Tokens:       usage.Total(),
		Model:        model,
		ResearchedAt: now,
	}, nil
}

// finish writes the CycleRecord and then the summary. Writes use a fresh
// deadline so a cycle that timed out still records what it did.
func (o *Orchestrator) finish(parent context.Context, c *cycle, log *slog.Logger) (*Result, error) {
	rec := c.rec
	rec.CompletedAt = o.clock.Now().UTC()
	rec.Stats.QueriesSelected = len(rec.Selected)
	rec.Stats.Skipped = len(rec.Skipped)
	rec.Stats.ScanTokens = c.scanUsage.Total()
	rec.Stats.ResearchTokens = c.resUsage.Total()
	rec.Stats.TotalTokens = rec.Stats.ScanTokens + rec.Stats.ResearchTokens
	rec.Stats.EstimatedCostUSD = o.opts.Pricing.Scan.Cost(c.scanUsage.InputTokens, c.scanUsage.OutputTokens) +
		o.opts.Pricing.Research.Cost(c.resUsage.InputTokens, c.resUsage.OutputTokens)
	rec.Throttle = c.thr.Stats()
	if len(rec.Findings) > 0 && !c.canSummary {
		c.note("summary not updated: prior summary could not be read")
	}
	// Notes added after this point reach only the Result
	rec.Notes = c.notes

	res := &Result{
		CycleID:       rec.ID,
		FindingsCount: len(rec.Findings),
		Skipped:       rec.Skipped,
		ThrottleStats: rec.Throttle,
		Stats:         rec.Stats,
		Record:        rec,
	}
	researched := make(map[string]bool)
	for _, f := range rec.Findings {
		researched[f.TopicID] = true
	}
	res.TopicsResearched = len(researched)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), writeTimeout)
	defer cancel()

	key, err := o.store.SaveCycle(ctx, rec)
	if err != nil {
		log.Error("failed to write cycle record", "error", err)
		res.Notes = c.notes
		return res, fmt.Errorf("failed to write cycle record: %w", err)
	}
	res.RecordKey = key
	log.Info("cycle recorded", "key", key,
		"findings", len(rec.Findings),
		"skipped", len(rec.Skipped),
		"tokens", rec.Stats.TotalTokens,
		"cost_usd", rec.Stats.EstimatedCostUSD,
	)

	switch {
	case len(rec.Findings) == 0:
		log.Debug("no findings, summary unchanged")
	case !c.canSummary:
		log.Warn("summary left untouched, prior state unavailable")
	default:
		next := MergeSummary(c.summary, rec, o.topics, o.opts.WatchlistLimit, rec.CompletedAt)
		if err := o.store.SaveSummary(ctx, next, o.opts.CheckVersion); err != nil {
			if errors.Is(err, store.ErrConflict) {
				log.Warn("summary changed during the cycle, not overwriting", "error", err)
			} else {
				log.Warn("failed to write summary", "error", err)
			}
			c.note("summary not updated: %v", err)
			break
		}
		res.SummaryUpdated = true

		if err := o.store.AppendSummaryHistory(ctx, historyEntry(rec)); err != nil {
			log.Warn("failed to append summary history", "error", err)
			c.note("summary history not updated: %v", err)
		}
	}

	res.ArchivalPending = []string{}
	if o.pending != nil {
		pending, err := o.pending(ctx, rec.CompletedAt)
		if err != nil {
			log.Warn("failed to check archival backlog", "error", err)
			c.note("archival check failed: %v", err)
		} else {
			res.ArchivalPending = pending
		}
	}

	res.Notes = c.notes
	return res, nil
}
