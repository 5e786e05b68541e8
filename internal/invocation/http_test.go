package invocation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/pders01/research-collector/internal/research"
)

func TestServerInvoke(t *testing.T) {
	r := &fakeResearcher{}
	a := &fakeArchiver{}
	srv := httptest.NewServer(NewServer(&Handler{Research: r, Archive: a}, nil))
	defer srv.Close()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "research", body: `{"topics":["pricing"]}`, wantStatus: http.StatusOK},
		{name: "archive", body: `{"mode":"archive"}`, wantStatus: http.StatusOK},
		{name: "unknown mode", body: `{"mode":"report"}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/invoke", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}

	if !slices.Equal(r.got.Topics, []string{"pricing"}) {
		t.Errorf("topics not forwarded: %v", r.got.Topics)
	}
}

func TestServerInvokeFailureKeepsResult(t *testing.T) {
	h := &Handler{Research: &fakeResearcher{err: errors.New("write failed")}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(`{}`))
	NewServer(h, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body struct {
		Error  string          `json:"error"`
		Result research.Result `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error == "" || body.Result.CycleID != "c1" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestServerHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(&Handler{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("unexpected healthz response: %d %q", rec.Code, rec.Body.String())
	}
}
