package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is the default Ollama API endpoint
const DefaultOllamaURL = "http://localhost:11434"

// Ollama wraps the Ollama API client
type Ollama struct {
	client *api.Client
	url    string
	logger *slog.Logger
}

// NewOllama creates a new Ollama client
func NewOllama(rawURL string, opts ...Option) (*Ollama, error) {
	if rawURL == "" {
		rawURL = DefaultOllamaURL
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", rawURL, err)
	}
	o := applyOptions(opts)

	return &Ollama{
		client: api.NewClient(base, o.httpClient),
		url:    rawURL,
		logger: o.logger,
	}, nil
}

// Preflight checks the server answers and that every model has been pulled
func (o *Ollama) Preflight(ctx context.Context, models ...string) error {
	if err := o.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", o.url, err)
	}
	for _, m := range models {
		if err := o.CheckModel(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// CheckModel checks if the specified model has been pulled
func (o *Ollama) CheckModel(ctx context.Context, model string) error {
	listResp, err := o.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models at %s: %w", o.url, err)
	}

	for _, m := range listResp.Models {
		if m.Name == model || strings.TrimSuffix(m.Name, ":latest") == model {
			return nil
		}
	}

	return fmt.Errorf("model '%s' not found - run: ollama pull %s", model, model)
}

// Complete runs one non-streaming chat call. Ollama has no web search tool,
// so WebSearch requests are answered from the model alone.
func (o *Ollama) Complete(ctx context.Context, req Request) (Response, error) {
	if req.WebSearch {
		o.logger.Debug("ollama backend has no web search, answering from model", "model", req.Model)
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:  req.Model,
		Stream: &stream,
		Options: map[string]any{
			"num_predict": req.MaxTokens,
		},
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, api.Message{Role: "system", Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, api.Message{Role: "user", Content: req.Prompt})
	if req.JSON {
		chatReq.Format = []byte(`"json"`)
	}

	var out Response
	var text strings.Builder
	err := o.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		text.WriteString(r.Message.Content)
		if r.Done {
			out.Model = r.Model
			out.Usage = Usage{InputTokens: r.PromptEvalCount, OutputTokens: r.EvalCount}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		var statusErr api.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return Response{}, fmt.Errorf("ollama: %v: %w", err, ErrRateLimited)
		}
		return Response{}, fmt.Errorf("ollama chat failed: %v: %w", err, ErrProvider)
	}

	out.Text = text.String()
	o.logger.Debug("ollama completion",
		"model", out.Model,
		"input_tokens", out.Usage.InputTokens,
		"output_tokens", out.Usage.OutputTokens,
	)
	if strings.TrimSpace(out.Text) == "" {
		return out, fmt.Errorf("empty ollama response: %w", ErrProvider)
	}
	return out, nil
}
