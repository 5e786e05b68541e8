package invocation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes a Handler over HTTP. Requests are handled one at a time so
// invocations never overlap.
type Server struct {
	handler *Handler
	logger  *slog.Logger
	router  chi.Router
	mu      sync.Mutex
}

// NewServer builds the router
func NewServer(h *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{handler: h, logger: logger, router: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start))
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Post("/invoke", s.handleInvoke)
}

type errorResponse struct {
	Error  string `json:"error"`
	Result any    `json:"result,omitempty"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	payload, err := Decode(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, nil)
		return
	}

	s.mu.Lock()
	res, err := s.handler.Handle(r.Context(), payload)
	s.mu.Unlock()

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownMode) {
			status = http.StatusBadRequest
		}
		var partial any
		if res != nil && (res.Research != nil || res.Archive != nil) {
			partial = res.Value()
		}
		s.writeError(w, status, err, partial)
		return
	}
	writeJSON(w, http.StatusOK, res.Value())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, partial any) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("invocation failed", "status", status, "error", err)
	} else {
		s.logger.Warn("invalid invocation", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Result: partial})
}
