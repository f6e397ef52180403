// Package memstore is an in-process Store used for local runs and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"basement-monitor/internal/models"
	"basement-monitor/internal/store"
)

type alertKey struct {
	deviceID string
	rt       models.ReadingType
}

// Store keeps every collection in memory behind a single RWMutex.
type Store struct {
	mu       sync.RWMutex
	readings map[string][]models.Reading
	active   map[alertKey]models.ActiveAlert
	history  []models.AlertHistoryRecord
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		readings: make(map[string][]models.Reading),
		active:   make(map[alertKey]models.ActiveAlert),
	}
}

func (s *Store) InsertReading(_ context.Context, r models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[r.DeviceID] = append(s.readings[r.DeviceID], r)
	return nil
}

func (s *Store) RecentReadings(_ context.Context, deviceID string, limit int) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.readings[deviceID]
	out := make([]models.Reading, len(src))
	// reverse first so equal timestamps keep latest-inserted first
	for i, r := range src {
		out[len(src)-1-i] = r
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountReadings(_ context.Context, f models.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f.DeviceID != "" {
		return int64(len(s.readings[f.DeviceID])), nil
	}
	var n int64
	for _, rs := range s.readings {
		n += int64(len(rs))
	}
	return n, nil
}

func (s *Store) DeleteReadings(_ context.Context, f models.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.DeviceID != "" {
		n := int64(len(s.readings[f.DeviceID]))
		delete(s.readings, f.DeviceID)
		return n, nil
	}
	var n int64
	for _, rs := range s.readings {
		n += int64(len(rs))
	}
	s.readings = make(map[string][]models.Reading)
	return n, nil
}

func (s *Store) ExistsActive(_ context.Context, deviceID string, rt models.ReadingType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[alertKey{deviceID, rt}]
	return ok, nil
}

func (s *Store) InsertActive(_ context.Context, a models.ActiveAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := alertKey{a.DeviceID, a.ReadingType}
	if _, ok := s.active[k]; ok {
		return store.ErrDuplicateAlert
	}
	s.active[k] = a
	return nil
}

func (s *Store) GetActive(_ context.Context, deviceID string, rt models.ReadingType) (models.ActiveAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.active[alertKey{deviceID, rt}]
	if !ok {
		return models.ActiveAlert{}, store.ErrAlertNotFound
	}
	return a, nil
}

func (s *Store) UpdateLastNotified(_ context.Context, deviceID string, rt models.ReadingType, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := alertKey{deviceID, rt}
	a, ok := s.active[k]
	if !ok {
		return store.ErrAlertNotFound
	}
	a.LastNotifiedAt = ts
	s.active[k] = a
	return nil
}

func (s *Store) CloseActive(_ context.Context, deviceID string, rt models.ReadingType, clearedAt time.Time) (models.AlertHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := alertKey{deviceID, rt}
	a, ok := s.active[k]
	if !ok {
		return models.AlertHistoryRecord{}, store.ErrAlertNotFound
	}
	rec := models.AlertHistoryRecord{
		ID:           uuid.NewString(),
		DeviceID:     a.DeviceID,
		ReadingType:  a.ReadingType,
		OriginatedAt: a.OriginatedAt,
		ClearedAt:    clearedAt,
	}
	s.history = append(s.history, rec)
	delete(s.active, k)
	return rec, nil
}

func (s *Store) CountActive(_ context.Context, f models.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for k := range s.active {
		if match(f, k.deviceID, k.rt) {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteActive(_ context.Context, f models.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.active {
		if match(f, k.deviceID, k.rt) {
			delete(s.active, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) CountHistory(_ context.Context, f models.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, h := range s.history {
		if match(f, h.DeviceID, h.ReadingType) {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteHistory(_ context.Context, f models.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.history[:0]
	var n int64
	for _, h := range s.history {
		if match(f, h.DeviceID, h.ReadingType) {
			n++
			continue
		}
		kept = append(kept, h)
	}
	s.history = kept
	return n, nil
}

// History returns a copy of the closed alerts, oldest first.
func (s *Store) History() []models.AlertHistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AlertHistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func match(f models.Filter, deviceID string, rt models.ReadingType) bool {
	if f.DeviceID != "" && f.DeviceID != deviceID {
		return false
	}
	if f.ReadingType != "" && f.ReadingType != rt {
		return false
	}
	return true
}
