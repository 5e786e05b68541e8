// Package testutil holds shared fakes for package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pders01/research-collector/internal/clock"
	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/store"
)

// ReplyFunc produces the response for the n-th call (starting at 0)
type ReplyFunc func(n int, req provider.Request) (provider.Response, error)

// Completer is a scripted provider.Completer that records every request
type Completer struct {
	mu       sync.Mutex
	reply    ReplyFunc
	requests []provider.Request
}

// NewCompleter returns a Completer answering with reply
func NewCompleter(reply ReplyFunc) *Completer {
	return &Completer{reply: reply}
}

func (c *Completer) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	c.mu.Lock()
	n := len(c.requests)
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return provider.Response{}, err
	}
	return c.reply(n, req)
}

// Requests returns a copy of every request seen so far
func (c *Completer) Requests() []provider.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]provider.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Calls returns the number of requests seen, optionally only those for model
func (c *Completer) Calls(model string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if model == "" {
		return len(c.requests)
	}
	n := 0
	for _, r := range c.requests {
		if r.Model == model {
			n++
		}
	}
	return n
}

// Reply builds a successful response with fixed usage
func Reply(text string) (provider.Response, error) {
	return provider.Response{
		Text:  text,
		Usage: provider.Usage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

// Step is one entry of a Sequence
type Step struct {
	Text string
	Err  error
}

// Sequence answers calls in order; calls past the end fail with ErrProvider
func Sequence(steps ...Step) ReplyFunc {
	return func(n int, req provider.Request) (provider.Response, error) {
		if n >= len(steps) {
			return provider.Response{}, fmt.Errorf("unscripted call %d: %w", n, provider.ErrProvider)
		}
		if steps[n].Err != nil {
			return provider.Response{}, steps[n].Err
		}
		return Reply(steps[n].Text)
	}
}

// NewStore returns a research store on an in-memory filesystem
func NewStore() *store.Store {
	return store.New(store.NewMemStore())
}

// NewClock returns a fake clock at the current wall time. Starting at real
// time keeps context deadlines and fake time comparable.
func NewClock() *clock.Fake {
	return clock.NewFake(time.Now().UTC())
}

// SaveCycle stores rec and fails the test on error
func SaveCycle(t *testing.T, st *store.Store, rec *models.CycleRecord) string {
	t.Helper()
	key, err := st.SaveCycle(context.Background(), rec)
	if err != nil {
		t.Fatalf("failed to save cycle: %v", err)
	}
	return key
}

// FailingObjects wraps an ObjectStore and fails writes to keys with a given prefix
type FailingObjects struct {
	store.ObjectStore

	mu          sync.Mutex
	putPrefix   string
	deletes     bool
	failedCalls int
}

// NewFailingObjects wraps inner
func NewFailingObjects(inner store.ObjectStore) *FailingObjects {
	return &FailingObjects{ObjectStore: inner}
}

// FailPuts makes every Put under prefix fail. An empty prefix disables it.
func (f *FailingObjects) FailPuts(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putPrefix = prefix
}

// FailDeletes makes every Delete fail
func (f *FailingObjects) FailDeletes(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = fail
}

// Failures returns how many calls were failed on purpose
func (f *FailingObjects) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failedCalls
}

func (f *FailingObjects) Put(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	fail := f.putPrefix != "" && strings.HasPrefix(key, f.putPrefix)
	if fail {
		f.failedCalls++
	}
	f.mu.Unlock()
	if fail {
		return &store.Error{Op: "put", Key: key, Err: fmt.Errorf("injected failure")}
	}
	return f.ObjectStore.Put(ctx, key, data)
}

func (f *FailingObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	fail := f.deletes
	if fail {
		f.failedCalls++
	}
	f.mu.Unlock()
	if fail {
		return &store.Error{Op: "delete", Key: key, Err: fmt.Errorf("injected failure")}
	}
	return f.ObjectStore.Delete(ctx, key)
}
