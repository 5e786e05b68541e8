// Package invocation decodes trigger payloads and dispatches them to the
// research or archive engine.
package invocation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pders01/research-collector/internal/archive"
	"github.com/pders01/research-collector/internal/research"
)

// Mode selects what an invocation does
type Mode string

const (
	ModeResearch Mode = "research"
	ModeArchive  Mode = "archive"
)

// ErrUnknownMode is returned for a payload mode other than research or archive
var ErrUnknownMode = errors.New("unknown invocation mode")

// Payload is the trigger input. An absent mode means research.
type Payload struct {
	Mode               Mode     `json:"mode,omitempty"`
	Topics             []string `json:"topics,omitempty"`
	ForceFull          bool     `json:"force_full,omitempty"`
	DeleteAfterArchive bool     `json:"delete_after_archive,omitempty"`
}

// Decode reads one payload. Empty input is a default research payload.
func Decode(r io.Reader) (Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to read payload: %w", err)
	}

	var p Payload
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return Payload{}, fmt.Errorf("failed to parse payload: %w", err)
		}
	}
	if p.Mode == "" {
		p.Mode = ModeResearch
	}
	if p.Mode != ModeResearch && p.Mode != ModeArchive {
		return Payload{}, fmt.Errorf("%w: %q", ErrUnknownMode, p.Mode)
	}
	return p, nil
}

// Researcher runs research cycles
type Researcher interface {
	Run(ctx context.Context, req research.Request) (*research.Result, error)
}

// Archiver runs archival
type Archiver interface {
	Run(ctx context.Context, req archive.Request) (*archive.Result, error)
}

// Result is the invocation output, carrying exactly one mode's result
type Result struct {
	Mode     Mode             `json:"mode"`
	Research *research.Result `json:"research,omitempty"`
	Archive  *archive.Result  `json:"archive,omitempty"`
}

// Value returns the mode-specific result for encoding
func (r *Result) Value() any {
	if r.Mode == ModeArchive {
		return r.Archive
	}
	return r.Research
}

// Handler dispatches payloads. Invocations run one at a time.
type Handler struct {
	Research Researcher
	Archive  Archiver
}

// Handle runs the payload. The result is returned even when err is set so
// callers can report partial outcomes.
func (h *Handler) Handle(ctx context.Context, p Payload) (*Result, error) {
	switch p.Mode {
	case "", ModeResearch:
		if h.Research == nil {
			return nil, fmt.Errorf("research mode is not configured")
		}
		res, err := h.Research.Run(ctx, research.Request{Topics: p.Topics, ForceFull: p.ForceFull})
		return &Result{Mode: ModeResearch, Research: res}, err
	case ModeArchive:
		if h.Archive == nil {
			return nil, fmt.Errorf("archive mode is not configured")
		}
		res, err := h.Archive.Run(ctx, archive.Request{DeleteAfterArchive: p.DeleteAfterArchive})
		return &Result{Mode: ModeArchive, Archive: res}, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, p.Mode)
	}
}
