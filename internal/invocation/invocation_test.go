package invocation

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pders01/research-collector/internal/archive"
	"github.com/pders01/research-collector/internal/research"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Payload
		wantErr error
	}{
		{
			name:  "empty input",
			input: "",
			want:  Payload{Mode: ModeResearch},
		},
		{
			name:  "mode defaults to research",
			input: `{"topics": ["pricing"], "force_full": true}`,
			want:  Payload{Mode: ModeResearch, Topics: []string{"pricing"}, ForceFull: true},
		},
		{
			name:  "archive",
			input: `{"mode": "archive", "delete_after_archive": true}`,
			want:  Payload{Mode: ModeArchive, DeleteAfterArchive: true},
		},
		{
			name:    "unknown mode",
			input:   `{"mode": "report"}`,
			wantErr: ErrUnknownMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}

	if _, err := Decode(strings.NewReader("{not json")); err == nil {
		t.Error("expected parse error")
	}
}

type fakeResearcher struct {
	got research.Request
	err error
}

func (f *fakeResearcher) Run(ctx context.Context, req research.Request) (*research.Result, error) {
	f.got = req
	return &research.Result{CycleID: "c1", FindingsCount: 2}, f.err
}

type fakeArchiver struct {
	got archive.Request
}

func (f *fakeArchiver) Run(ctx context.Context, req archive.Request) (*archive.Result, error) {
	f.got = req
	return &archive.Result{MonthsArchived: 1}, nil
}

func TestHandle(t *testing.T) {
	r := &fakeResearcher{}
	a := &fakeArchiver{}
	h := &Handler{Research: r, Archive: a}

	res, err := h.Handle(context.Background(), Payload{Mode: ModeResearch, Topics: []string{"pricing"}, ForceFull: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Research == nil || res.Research.FindingsCount != 2 || res.Archive != nil {
		t.Errorf("unexpected result: %+v", res)
	}
	if !r.got.ForceFull || !reflect.DeepEqual(r.got.Topics, []string{"pricing"}) {
		t.Errorf("request not forwarded: %+v", r.got)
	}
	if _, ok := res.Value().(*research.Result); !ok {
		t.Error("expected research value")
	}

	res, err = h.Handle(context.Background(), Payload{Mode: ModeArchive, DeleteAfterArchive: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Archive == nil || res.Archive.MonthsArchived != 1 || !a.got.DeleteAfterArchive {
		t.Errorf("unexpected archive result: %+v", res)
	}
	if _, ok := res.Value().(*archive.Result); !ok {
		t.Error("expected archive value")
	}

	if _, err := h.Handle(context.Background(), Payload{Mode: "bogus"}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestHandleKeepsResultOnFailure(t *testing.T) {
	h := &Handler{Research: &fakeResearcher{err: errors.New("write failed")}}
	res, err := h.Handle(context.Background(), Payload{})
	if err == nil {
		t.Fatal("expected error")
	}
	if res == nil || res.Research.CycleID != "c1" {
		t.Errorf("partial result should be returned, got %+v", res)
	}
}
