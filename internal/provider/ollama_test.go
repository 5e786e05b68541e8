package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaPreflight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"models":[{"name":"llama3:latest"},{"name":"qwen2.5:7b"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	tests := []struct {
		name    string
		url     string
		models  []string
		wantErr string
	}{
		{name: "models pulled", url: server.URL, models: []string{"llama3", "qwen2.5:7b", "llama3"}},
		{name: "missing model", url: server.URL, models: []string{"llama3", "mistral"}, wantErr: "ollama pull mistral"},
		{name: "unreachable server", url: "http://127.0.0.1:1", models: []string{"llama3"}, wantErr: "not reachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewOllama(tt.url)
			if err != nil {
				t.Fatal(err)
			}
			err = Preflight(context.Background(), client, tt.models...)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOllamaComplete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"{\"ok\":true}"},"done":true,"prompt_eval_count":42,"eval_count":8}`))
	}))
	defer server.Close()

	client, err := NewOllama(server.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	resp, err := client.Complete(context.Background(), Request{
		Model:     "llama3",
		System:    "be terse",
		Prompt:    "status?",
		MaxTokens: 64,
		JSON:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Text != `{"ok":true}` {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 8 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if got["format"] != "json" {
		t.Errorf("expected json format in request, got %v", got["format"])
	}
	if msgs, ok := got["messages"].([]any); !ok || len(msgs) != 2 {
		t.Errorf("expected system and user messages, got %v", got["messages"])
	}
}

func TestOllamaRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"too many requests"}`))
	}))
	defer server.Close()

	client, err := NewOllama(server.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestOllamaServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model crashed"}`))
	}))
	defer server.Close()

	client, _ := NewOllama(server.URL)
	_, err := client.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if !errors.Is(err, ErrProvider) {
		t.Errorf("expected ErrProvider, got %v", err)
	}
}
