package store

import (
	"sync"
	"time"

	"tripcal/internal/calendar"
	"tripcal/internal/model"
)

// TripStore keeps the latest trips of every feed in memory.
//
// Sources are kept in the order they were first replaced, so All and
// Window return trips grouped by source, each in feed order.
type TripStore struct {
	mu        sync.RWMutex
	order     []string
	bySource  map[string][]model.Trip
	updatedAt time.Time
	revision  uint64
	now       func() time.Time
}

// New returns an empty store.
func New() *TripStore {
	return &TripStore{
		bySource: make(map[string][]model.Trip),
		now:      time.Now,
	}
}

// Replace swaps the trips of one source. The slice is copied.
func (s *TripStore) Replace(sourceID string, trips []model.Trip) {
	cp := make([]model.Trip, len(trips))
	copy(cp, trips)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bySource[sourceID]; !ok {
		s.order = append(s.order, sourceID)
	}
	s.bySource[sourceID] = cp
	s.updatedAt = s.now()
	s.revision++
}

// Retain drops every source not listed in ids, e.g. after a feed was
// removed from the configuration.
func (s *TripStore) Retain(ids []string) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := s.order[:0]
	changed := false
	for _, id := range s.order {
		if keep[id] {
			order = append(order, id)
			continue
		}
		delete(s.bySource, id)
		changed = true
	}
	s.order = order
	if changed {
		s.updatedAt = s.now()
		s.revision++
	}
}

// All returns every trip, source order then feed order.
func (s *TripStore) All() []model.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Trip, 0)
	for _, id := range s.order {
		out = append(out, s.bySource[id]...)
	}
	return out
}

// Window returns the trips whose date range overlaps [from, to], in the
// same order as All.
func (s *TripStore) Window(from, to time.Time) []model.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Trip, 0)
	for _, id := range s.order {
		for _, trip := range s.bySource[id] {
			if calendar.Overlaps(trip, from, to) {
				out = append(out, trip)
			}
		}
	}
	return out
}

// UpdatedAt is the time of the last change; zero if nothing was stored.
func (s *TripStore) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Revision increases on every change. Caches key on it.
func (s *TripStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}
