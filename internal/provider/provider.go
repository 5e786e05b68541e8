// Package provider talks to hosted or local text-completion services.
package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrRateLimited means the service refused the call for quota reasons
	ErrRateLimited = errors.New("provider rate limited")
	// ErrProvider means the call failed or returned something unusable
	ErrProvider = errors.New("provider error")
)

// Request is one completion call
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
	// WebSearch asks the backend to augment the call with web search when it can
	WebSearch bool
	// JSON asks the backend to constrain output to a JSON object when it can
	JSON bool
}

// Usage is the token accounting reported by the service
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Response is the result of a completion call
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Completer is implemented by every backend
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config selects and configures a backend
type Config struct {
	Backend string
	APIKey  string
	BaseURL string
}

// New creates the backend named by cfg.Backend
func New(cfg Config, opts ...Option) (Completer, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "anthropic", "claude":
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, opts...)
	case "ollama":
		return NewOllama(cfg.BaseURL, opts...)
	default:
		return nil, fmt.Errorf("unknown provider backend: %q (valid: anthropic, ollama)", cfg.Backend)
	}
}

// Preflighter is a backend that can verify it is ready before a run
type Preflighter interface {
	Preflight(ctx context.Context, models ...string) error
}

// Preflight runs c's readiness check when it has one. Repeated and empty
// model names are checked once.
func Preflight(ctx context.Context, c Completer, models ...string) error {
	p, ok := c.(Preflighter)
	if !ok {
		return nil
	}
	var names []string
	for _, m := range models {
		if m != "" && !slices.Contains(names, m) {
			names = append(names, m)
		}
	}
	return p.Preflight(ctx, names...)
}

// EstimateTokens is a rough estimate at about four characters per token
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Estimate is the admission estimate for a request: prompt plus the output ceiling
func Estimate(req Request) int {
	return EstimateTokens(req.System) + EstimateTokens(req.Prompt) + req.MaxTokens
}

// ExtractJSON strips markdown fences and surrounding prose from a model reply
func ExtractJSON(text string) string {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}
