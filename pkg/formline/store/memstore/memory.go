package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/formline/pkg/formline/decode"
	"github.com/cognicore/formline/pkg/formline/internalerr"
	"github.com/cognicore/formline/pkg/formline/reconcile"
	"github.com/cognicore/formline/pkg/formline/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu     sync.RWMutex
	horses map[string]decode.Horse
	races  map[string]reconcile.Race
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		horses: make(map[string]decode.Horse),
		races:  make(map[string]reconcile.Race),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertHorse inserts or updates a horse keyed by identity, merging runs.
func (s *Store) UpsertHorse(ctx context.Context, h decode.Horse) error {
	if h.Name == "" {
		return fmt.Errorf("upsert horse: empty name: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := h.Identity()
	existing := s.horses[id]
	h.Runs = store.MergeRuns(existing.Runs, h.Runs)
	s.horses[id] = h
	return nil
}

// GetHorse returns a copy of the horse with the given identity.
func (s *Store) GetHorse(ctx context.Context, name, country string, year int) (decode.Horse, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.horses[decode.Horse{Name: name, Country: country, Year: year}.Identity()]
	if !ok {
		return decode.Horse{}, false, nil
	}
	return copyHorse(h), true, nil
}

// PutRace stores a race, replacing any race with the same ID.
func (s *Store) PutRace(ctx context.Context, r reconcile.Race) error {
	if r.ID == "" {
		return fmt.Errorf("put race: empty id: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.races[r.ID] = copyRace(r)
	return nil
}

// GetRace returns a race by ID.
func (s *Store) GetRace(ctx context.Context, id string) (reconcile.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.races[id]
	if !ok {
		return reconcile.Race{}, fmt.Errorf("race %s: %w", id, internalerr.ErrNotFound)
	}
	return copyRace(r), nil
}

// RacesOn returns the races run on date, ordered by course then ID.
func (s *Store) RacesOn(ctx context.Context, date time.Time) ([]reconcile.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := date.Format("2006-01-02")
	var out []reconcile.Race
	for _, r := range s.races {
		if r.Key.Date == day {
			out = append(out, copyRace(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Course != out[j].Course {
			return out[i].Course < out[j].Course
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Counts implements store.Store.
func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := store.Counts{Horses: len(s.horses), Races: len(s.races)}
	for _, h := range s.horses {
		c.Runs += len(h.Runs)
	}
	return c, nil
}

func copyHorse(h decode.Horse) decode.Horse {
	h.Runs = append([]decode.Run(nil), h.Runs...)
	return h
}

func copyRace(r reconcile.Race) reconcile.Race {
	r.Runners = append([]reconcile.Runner(nil), r.Runners...)
	return r
}

var _ store.Store = (*Store)(nil)
