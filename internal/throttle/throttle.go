// Package throttle keeps provider calls inside a per-minute token budget.
//
// The Controller keeps a sliding window of the tokens actually reported by
// the provider. Before a call it decides whether the estimated cost fits under
// tokens_per_minute * safety_margin; if not the caller waits until enough of
// the window has aged out. When the provider itself reports a rate limit the
// Controller forces a fixed cooldown and retries the call once.
//
// The ledger lives for one process only. Nothing is persisted between
// invocations, so back-to-back invocations rely on the trigger interval being
// coarser than the rate window.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pders01/research-collector/internal/clock"
	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
)

var (
	// ErrDenied means the estimate can never fit in the usable budget
	ErrDenied = errors.New("throttle denied call")
	// ErrTimeout means admission or cooldown would run past the caller's deadline
	ErrTimeout = errors.New("throttle wait exceeds deadline")
)

// Verdict is the outcome of an admission check
type Verdict int

const (
	Allow Verdict = iota
	Wait
	Deny
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Decision is returned by Admit. Wait is set only for the Wait verdict.
type Decision struct {
	Verdict Verdict
	Wait    time.Duration
}

// Options configure the budget
type Options struct {
	TokensPerMinute int
	SafetyMargin    float64
	Window          time.Duration
	Cooldown        time.Duration
}

// DefaultOptions match a 30k tokens/minute provider tier
func DefaultOptions() Options {
	return Options{
		TokensPerMinute: 30000,
		SafetyMargin:    0.85,
		Window:          time.Minute,
		Cooldown:        65 * time.Second,
	}
}

type entry struct {
	at     time.Time
	tokens int
}

// Controller owns the token ledger for one invocation. It is not safe for
// concurrent use; calls are expected to be strictly sequential.
type Controller struct {
	opts   Options
	clock  clock.Clock
	logger *slog.Logger

	ledger []entry
	stats  models.ThrottleStats
	waited time.Duration
}

// New creates a Controller with an empty ledger
func New(opts Options, clk clock.Clock, logger *slog.Logger) *Controller {
	def := DefaultOptions()
	if opts.TokensPerMinute <= 0 {
		opts.TokensPerMinute = def.TokensPerMinute
	}
	if opts.SafetyMargin <= 0 || opts.SafetyMargin > 1 {
		opts.SafetyMargin = def.SafetyMargin
	}
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = def.Cooldown
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Controller{opts: opts, clock: clk, logger: logger}
	c.stats.TokensPerMinute = opts.TokensPerMinute
	c.stats.UsableBudget = c.Budget()
	return c
}

// Budget is the usable token budget per window
func (c *Controller) Budget() int {
	return int(float64(c.opts.TokensPerMinute) * c.opts.SafetyMargin)
}

func (c *Controller) prune(now time.Time) {
	i := 0
	for i < len(c.ledger) && !now.Before(c.ledger[i].at.Add(c.opts.Window)) {
		i++
	}
	c.ledger = c.ledger[i:]
}

// Usage returns the tokens recorded inside the current window
func (c *Controller) Usage() int {
	c.prune(c.clock.Now())
	total := 0
	for _, e := range c.ledger {
		total += e.tokens
	}
	return total
}

// Admit decides whether a call estimated at est tokens may proceed now.
// Wait is the time until enough ledger entries expire for est to fit.
func (c *Controller) Admit(est int) Decision {
	now := c.clock.Now()
	c.prune(now)

	budget := c.Budget()
	if est > budget {
		return Decision{Verdict: Deny}
	}

	usage := 0
	for _, e := range c.ledger {
		usage += e.tokens
	}
	if usage+est <= budget {
		return Decision{Verdict: Allow}
	}

	// Walk forward through expiries until the remainder fits.
	for _, e := range c.ledger {
		usage -= e.tokens
		if usage+est <= budget {
			wait := e.at.Add(c.opts.Window).Sub(now)
			if wait <= 0 {
				wait = time.Millisecond
			}
			return Decision{Verdict: Wait, Wait: wait}
		}
	}

	// Unreachable while est <= budget: an empty ledger always fits.
	return Decision{Verdict: Deny}
}

// Record adds the tokens a provider reported for a finished call
func (c *Controller) Record(tokens int) {
	if tokens < 0 {
		tokens = 0
	}
	now := c.clock.Now()
	c.prune(now)
	c.ledger = append(c.ledger, entry{at: now, tokens: tokens})
	c.stats.Calls++
	c.stats.TotalTokens += tokens
}

// fits reports whether sleeping d would still end before ctx's deadline
func (c *Controller) fits(ctx context.Context, d time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return !c.clock.Now().Add(d).After(deadline)
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if !c.fits(ctx, d) {
		return fmt.Errorf("need to wait %s: %w", d.Round(time.Millisecond), ErrTimeout)
	}
	if err := c.clock.Sleep(ctx, d); err != nil {
		return fmt.Errorf("%v: %w", err, ErrTimeout)
	}
	c.waited += d
	return nil
}

// Acquire blocks until a call of est tokens is admitted
func (c *Controller) Acquire(ctx context.Context, est int) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%v: %w", err, ErrTimeout)
		}

		d := c.Admit(est)
		switch d.Verdict {
		case Allow:
			return nil
		case Deny:
			c.stats.Denials++
			return fmt.Errorf("estimate %d exceeds usable budget %d: %w", est, c.Budget(), ErrDenied)
		case Wait:
			c.stats.Waits++
			c.logger.Info("token budget exhausted, waiting",
				"window_tokens", c.Usage(),
				"estimated", est,
				"budget", c.Budget(),
				"wait", d.Wait.Round(time.Millisecond).String(),
			)
			if err := c.sleep(ctx, d.Wait); err != nil {
				return err
			}
		}
	}
}

// Cooldown forces the fixed post-rate-limit pause
func (c *Controller) Cooldown(ctx context.Context) error {
	c.logger.Info("cooling down after rate limit", "cooldown", c.opts.Cooldown.String())
	return c.sleep(ctx, c.opts.Cooldown)
}

// CallFunc performs one provider call and reports its token usage
type CallFunc func(ctx context.Context) (provider.Usage, error)

type callConfig struct {
	retryProviderErrors bool
}

// CallOption adjusts retry behaviour of Call
type CallOption func(*callConfig)

// RetryProviderErrors also spends the single retry on ErrProvider failures
func RetryProviderErrors() CallOption {
	return func(c *callConfig) { c.retryProviderErrors = true }
}

// Call admits, runs and records fn. A rate-limited attempt (and, with
// RetryProviderErrors, a failed one) is retried at most once after Cooldown.
func (c *Controller) Call(ctx context.Context, est int, fn CallFunc, opts ...CallOption) (provider.Usage, error) {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var total provider.Usage
	for attempt := 0; ; attempt++ {
		if err := c.Acquire(ctx, est); err != nil {
			return total, err
		}

		usage, err := fn(ctx)
		c.Record(usage.Total())
		total.InputTokens += usage.InputTokens
		total.OutputTokens += usage.OutputTokens
		if err == nil {
			return total, nil
		}

		rateLimited := errors.Is(err, provider.ErrRateLimited)
		if rateLimited {
			c.stats.RateLimitHits++
		}
		retryable := rateLimited || (cfg.retryProviderErrors && errors.Is(err, provider.ErrProvider))
		if !retryable || attempt > 0 {
			return total, err
		}

		c.stats.Retries++
		c.logger.Warn("provider call failed, retrying once after cooldown", "error", err, "rate_limited", rateLimited)
		if cerr := c.Cooldown(ctx); cerr != nil {
			return total, fmt.Errorf("%w (after: %v)", cerr, err)
		}
	}
}

// Stats returns a snapshot of the ledger counters
func (c *Controller) Stats() models.ThrottleStats {
	s := c.stats
	s.WindowTokens = c.Usage()
	s.WaitedSeconds = c.waited.Seconds()
	return s
}
