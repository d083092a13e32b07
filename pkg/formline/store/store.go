package store

import (
	"context"
	"sort"
	"time"

	"github.com/cognicore/formline/pkg/formline/decode"
	"github.com/cognicore/formline/pkg/formline/reconcile"
)

// Store persists decoded horse form and finalized races
type Store interface {
	Close() error

	// Horses
	UpsertHorse(ctx context.Context, h decode.Horse) error
	GetHorse(ctx context.Context, name, country string, year int) (decode.Horse, bool, error)

	// Races
	PutRace(ctx context.Context, r reconcile.Race) error
	GetRace(ctx context.Context, id string) (reconcile.Race, error)
	RacesOn(ctx context.Context, date time.Time) ([]reconcile.Race, error)

	Counts(ctx context.Context) (Counts, error)
}

// Counts summarizes store contents
type Counts struct {
	Horses int
	Runs   int
	Races  int
}

// RunKey identifies a run within a horse's form: a horse runs at most once
// per course per day.
func RunKey(r decode.Run) string {
	return r.Date.Format("2006-01-02") + "|" + r.Course
}

// MergeRuns merges incoming runs into existing ones by RunKey, replacing
// matches, and returns the result ordered by date then course.
func MergeRuns(existing, incoming []decode.Run) []decode.Run {
	byKey := make(map[string]int, len(existing)+len(incoming))
	out := make([]decode.Run, 0, len(existing)+len(incoming))
	for _, r := range append(append([]decode.Run(nil), existing...), incoming...) {
		k := RunKey(r)
		if i, ok := byKey[k]; ok {
			out[i] = r
			continue
		}
		byKey[k] = len(out)
		out = append(out, r)
	}
	SortRuns(out)
	return out
}

// SortRuns orders runs by date then course.
func SortRuns(runs []decode.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		a, b := runs[i], runs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Course < b.Course
	})
}
