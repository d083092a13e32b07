package reconcile

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/formline/pkg/formline/internalerr"
)

// Config tunes the engine.
type Config struct {
	// RatingTolerance bounds the spread of rating-per-length ratios.
	RatingTolerance float64
	// StatsEvery logs counters after this many submissions; 0 disables.
	StatsEvery int
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{RatingTolerance: 1.0, StatsEvery: 500}
}

// Stats are the engine counters.
type Stats struct {
	Submitted        int
	Duplicates       int
	RacesBuilt       int
	RunnersPlaced    int
	CandidatesTested int
	MemoHits         int
	PendingKeys      int
	PendingRunners   int
	MemoEntries      int
}

// Unresolved describes a key still holding runners when the engine closed.
type Unresolved struct {
	Key     RaceKey
	Pending int
	Horses  []string
}

// Report is the end-of-stream summary.
type Report struct {
	Unresolved []Unresolved
	Stats      Stats
}

// Engine groups runners into races. It is safe for concurrent use; calls
// are serialized so each submission and its cascade of checks completes
// before the next begins.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	logger  *slog.Logger
	entropy *ulid.MonotonicEntropy

	pending map[RaceKey][]Runner
	memos   map[RaceKey]memo
	stats   Stats
	closed  bool
}

// NewEngine creates an empty engine.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		logger:  logger.With("comp", "reconcile"),
		entropy: ulid.Monotonic(rand.Reader, 0),
		pending: make(map[RaceKey][]Runner),
		memos:   make(map[RaceKey]memo),
	}
}

// Submit adds a runner under key and returns every race that became
// complete as a result, in the order they resolved.
func (e *Engine) Submit(key RaceKey, r Runner) ([]Race, error) {
	if key.Ran <= 0 {
		return nil, fmt.Errorf("race key %s: %w", key, internalerr.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("submit after close: %w", internalerr.ErrClosed)
	}

	e.stats.Submitted++
	defer e.maybeLogStats()

	for _, p := range e.pending[key] {
		if p.HorseID == r.HorseID {
			e.stats.Duplicates++
			e.logger.Debug("duplicate runner ignored", "key", key.String(), "horse", r.HorseID)
			return nil, nil
		}
	}
	e.pending[key] = append(e.pending[key], r)

	var races []Race
	for {
		res := e.check(key)
		if len(res.Complete) == 0 {
			break
		}
		races = append(races, e.build(key, res.Complete))
		if len(res.Todo) == 0 {
			delete(e.pending, key)
			delete(e.memos, key)
			break
		}
		e.pending[key] = res.Todo
		delete(e.memos, key)
	}
	return races, nil
}

// Check reports how the pool under key splits right now without changing
// what is pending. Rejected candidates are still memoized.
func (e *Engine) Check(key RaceKey) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.check(key)
}

func (e *Engine) check(key RaceKey) Result {
	pool := e.pending[key]
	m := e.memos[key]
	if m == nil {
		m = make(memo)
		e.memos[key] = m
	}
	c := newChecker(pool, key.Ran, e.cfg.RatingTolerance, m)
	idx := c.check()
	e.stats.CandidatesTested += c.tested
	e.stats.MemoHits += c.memoHits
	if len(m) == 0 {
		delete(e.memos, key)
	}
	if idx == nil {
		return Result{Todo: append([]Runner(nil), pool...)}
	}
	return c.split(idx)
}

func (e *Engine) build(key RaceKey, runners []Runner) Race {
	lead := runners[0].Run
	race := Race{
		ID:       ulid.MustNew(ulid.Now(), e.entropy).String(),
		Key:      key,
		Date:     lead.Date,
		Course:   lead.Course,
		Type:     lead.Type,
		Prize:    lead.Prize,
		Distance: lead.Distance,
		Going:    lead.Going,
		Ran:      key.Ran,
		Runners:  runners,
	}
	e.stats.RacesBuilt++
	e.stats.RunnersPlaced += len(runners)
	e.logger.Debug("race complete", "race", race.ID, "key", key.String(), "runners", len(runners))
	return race
}

func (e *Engine) maybeLogStats() {
	if e.cfg.StatsEvery <= 0 || e.stats.Submitted%e.cfg.StatsEvery != 0 {
		return
	}
	s := e.snapshot()
	e.logger.Info("reconcile stats",
		"submitted", s.Submitted,
		"races", s.RacesBuilt,
		"pending_keys", s.PendingKeys,
		"pending_runners", s.PendingRunners,
		"memo_entries", s.MemoEntries)
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() Stats {
	s := e.stats
	s.PendingKeys = len(e.pending)
	s.PendingRunners = 0
	for _, rs := range e.pending {
		s.PendingRunners += len(rs)
	}
	s.MemoEntries = 0
	for _, m := range e.memos {
		s.MemoEntries += len(m)
	}
	return s
}

// Close ends the stream and reports every key still holding runners. Later
// submissions fail; a second Close returns an empty report.
func (e *Engine) Close() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep := Report{Stats: e.snapshot()}
	for key, rs := range e.pending {
		u := Unresolved{Key: key, Pending: len(rs)}
		for _, r := range rs {
			u.Horses = append(u.Horses, r.HorseID)
		}
		rep.Unresolved = append(rep.Unresolved, u)
	}
	sort.Slice(rep.Unresolved, func(i, j int) bool {
		return rep.Unresolved[i].Key.String() < rep.Unresolved[j].Key.String()
	})
	for _, u := range rep.Unresolved {
		e.logger.Warn("unresolved race", "key", u.Key.String(), "pending", u.Pending, "horses", u.Horses)
	}

	e.pending = make(map[RaceKey][]Runner)
	e.memos = make(map[RaceKey]memo)
	e.closed = true
	return rep
}
