package provider

import (
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 120 * time.Second

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a backend
type Option func(*options)

// WithHTTPClient overrides the HTTP client used for calls
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-call HTTP timeout
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
