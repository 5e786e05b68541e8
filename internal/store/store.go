package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pders01/research-collector/internal/models"
)

// Store reads and writes the research documents on an ObjectStore
type Store struct {
	objects ObjectStore
}

// New wraps an object store
func New(objects ObjectStore) *Store {
	return &Store{objects: objects}
}

// Objects exposes the underlying object store
func (s *Store) Objects() ObjectStore {
	return s.objects
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &Error{Op: "encode", Key: key, Err: err}
	}
	return s.objects.Put(ctx, key, data)
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.objects.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Op: "decode", Key: key, Err: err}
	}
	return nil
}

// SaveCycle writes an immutable cycle record under its day and returns the key used.
// An existing record for the same day is never overwritten.
func (s *Store) SaveCycle(ctx context.Context, rec *models.CycleRecord) (string, error) {
	key := models.CycleKey(rec.StartedAt)
	taken, err := s.objects.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if taken {
		key = models.AlternateCycleKey(rec.StartedAt)
		taken, err = s.objects.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if taken {
			return "", &Error{Op: "put", Key: key, Err: fmt.Errorf("cycle record already exists")}
		}
	}

	if err := s.putJSON(ctx, key, rec); err != nil {
		return "", err
	}
	return key, nil
}

// LoadCycle reads one cycle record by key
func (s *Store) LoadCycle(ctx context.Context, key string) (*models.CycleRecord, error) {
	var rec models.CycleRecord
	if err := s.getJSON(ctx, key, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCycles returns the location of every stored cycle record, oldest first
func (s *Store) ListCycles(ctx context.Context) ([]models.CycleLocation, error) {
	keys, err := s.objects.List(ctx, models.Prefix)
	if err != nil {
		return nil, err
	}

	var locs []models.CycleLocation
	for _, key := range keys {
		loc, err := models.ParseCycleKey(key)
		if err != nil {
			continue
		}
		locs = append(locs, loc)
	}

	sort.SliceStable(locs, func(i, j int) bool {
		if !locs[i].Date().Equal(locs[j].Date()) {
			return locs[i].Date().Before(locs[j].Date())
		}
		return locs[i].Key < locs[j].Key
	})
	return locs, nil
}

// ListCyclesForMonth returns the cycle records stored under one month
func (s *Store) ListCyclesForMonth(ctx context.Context, year, month int) ([]models.CycleLocation, error) {
	keys, err := s.objects.List(ctx, models.MonthPrefix(year, month))
	if err != nil {
		return nil, err
	}

	var locs []models.CycleLocation
	for _, key := range keys {
		if loc, err := models.ParseCycleKey(key); err == nil {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

// LoadSummary reads the live summary. A missing summary yields an empty one.
func (s *Store) LoadSummary(ctx context.Context) (*models.SummaryState, error) {
	state := models.NewSummaryState()
	err := s.getJSON(ctx, models.SummaryKey(), state)
	if errors.Is(err, ErrNotFound) {
		return models.NewSummaryState(), nil
	}
	if err != nil {
		return nil, err
	}
	if state.Topics == nil {
		state.Topics = make(map[string]models.TopicSummary)
	}
	return state, nil
}

// SaveSummary overwrites the live summary. When checkVersion is set the stored
// version must still equal state.Version; the written copy carries Version+1.
func (s *Store) SaveSummary(ctx context.Context, state *models.SummaryState, checkVersion bool) error {
	if checkVersion {
		current, err := s.LoadSummary(ctx)
		if err != nil {
			return err
		}
		if current.Version != state.Version {
			return fmt.Errorf("summary at version %d, expected %d: %w", current.Version, state.Version, ErrConflict)
		}
	}

	next := *state
	next.Version = state.Version + 1
	if err := s.putJSON(ctx, models.SummaryKey(), &next); err != nil {
		return err
	}
	state.Version = next.Version
	return nil
}

// IsCorrupt reports whether err is a stored document that exists but could
// not be decoded
func IsCorrupt(err error) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Op == "decode"
}

// QuarantineSummary moves the live summary aside so the next save starts
// fresh. It returns the key the old bytes were copied to.
func (s *Store) QuarantineSummary(ctx context.Context, at time.Time) (string, error) {
	data, err := s.objects.Get(ctx, models.SummaryKey())
	if err != nil {
		return "", err
	}
	key := models.CorruptSummaryKey(at)
	if err := s.objects.Put(ctx, key, data); err != nil {
		return "", err
	}
	if err := s.objects.Delete(ctx, models.SummaryKey()); err != nil {
		return key, err
	}
	return key, nil
}

// LoadSummaryHistory reads the rolling summary history. A missing history is empty.
func (s *Store) LoadSummaryHistory(ctx context.Context) (*models.SummaryHistory, error) {
	var h models.SummaryHistory
	err := s.getJSON(ctx, models.SummaryHistoryKey(), &h)
	if errors.Is(err, ErrNotFound) {
		return &models.SummaryHistory{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// AppendSummaryHistory adds one entry to the rolling history. An unreadable
// history is replaced rather than blocking new entries.
func (s *Store) AppendSummaryHistory(ctx context.Context, e models.HistoryEntry) error {
	h, err := s.LoadSummaryHistory(ctx)
	switch {
	case IsCorrupt(err):
		h = &models.SummaryHistory{}
	case err != nil:
		return err
	}
	h.Append(e)
	return s.putJSON(ctx, models.SummaryHistoryKey(), h)
}

// SaveMonthlyArchive writes or overwrites one month's archive
func (s *Store) SaveMonthlyArchive(ctx context.Context, archive *models.MonthlyArchive) error {
	return s.putJSON(ctx, models.MonthlyArchiveKey(archive.Year, archive.Month), archive)
}

// LoadMonthlyArchive reads one month's archive
func (s *Store) LoadMonthlyArchive(ctx context.Context, year, month int) (*models.MonthlyArchive, error) {
	var archive models.MonthlyArchive
	if err := s.getJSON(ctx, models.MonthlyArchiveKey(year, month), &archive); err != nil {
		return nil, err
	}
	return &archive, nil
}

// ListMonthlyArchives returns the YYYY-MM periods that have an archive, oldest first
func (s *Store) ListMonthlyArchives(ctx context.Context) ([]string, error) {
	keys, err := s.objects.List(ctx, models.ArchivePrefix())
	if err != nil {
		return nil, err
	}

	var periods []string
	for _, key := range keys {
		parts := strings.Split(strings.TrimPrefix(key, models.ArchivePrefix()+"/"), "/")
		if len(parts) != 3 || parts[2] != "summary.json" {
			continue
		}
		period := parts[0] + "-" + parts[1]
		if _, _, err := models.ParsePeriod(period); err != nil {
			continue
		}
		periods = append(periods, period)
	}
	sort.Strings(periods)
	return periods, nil
}

// LoadHistoricalContext reads the historical context document
func (s *Store) LoadHistoricalContext(ctx context.Context) (*models.HistoricalContext, error) {
	var hc models.HistoricalContext
	if err := s.getJSON(ctx, models.HistoricalContextKey(), &hc); err != nil {
		return nil, err
	}
	return &hc, nil
}

// SaveHistoricalContext overwrites the historical context document
func (s *Store) SaveHistoricalContext(ctx context.Context, hc *models.HistoricalContext) error {
	return s.putJSON(ctx, models.HistoricalContextKey(), hc)
}

// DeleteCycles removes daily records. It stops at the first failure and
// reports how many were removed.
func (s *Store) DeleteCycles(ctx context.Context, keys []string) (int, error) {
	deleted := 0
	for _, key := range keys {
		if _, err := models.ParseCycleKey(key); err != nil {
			return deleted, &Error{Op: "delete", Key: key, Err: err}
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
