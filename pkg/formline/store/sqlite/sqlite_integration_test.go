package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/formline/pkg/formline/decode"
	"github.com/cognicore/formline/pkg/formline/internalerr"
	"github.com/cognicore/formline/pkg/formline/reconcile"
	"github.com/cognicore/formline/pkg/formline/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func testRun(date time.Time, course, jockey string) decode.Run {
	beaten := 1.5
	rating := 172
	return decode.Run{
		Date:         date,
		Type:         decode.RaceType{Code: "Chg", Discipline: decode.Chase, Graded: true},
		Prize:        85.4,
		Course:       course,
		Ran:          9,
		WeightCode:   "11-10",
		Weight:       164,
		Jockey:       jockey,
		Position:     decode.Position{Code: "1", Finisher: true, Rank: 1},
		Beaten:       &beaten,
		DistanceCode: "3m2½f",
		Distance:     26.5,
		Going:        "GS",
		Rating:       &rating,
	}
}

func testHorse() decode.Horse {
	return decode.Horse{
		Name:       "DENMAN",
		Country:    "IRE",
		Year:       2000,
		Trainer:    "P Nicholls",
		PrizeCode:  "£245,000",
		PrizeMoney: 245000,
		Runs: []decode.Run{
			testRun(day(14), "Chelt", "S Thomas"),
			testRun(day(2), "Newb", "R Walsh"),
		},
	}
}

func testRace(id string, date time.Time, course string) reconcile.Race {
	winner := reconcile.Runner{HorseID: "DENMAN|IRE|2000", Name: "DENMAN", Country: "IRE", Year: 2000,
		Trainer: "P Nicholls", Run: testRun(date, course, "S Thomas")}
	second := reconcile.Runner{HorseID: "KAUTO STAR|FR|2000", Name: "KAUTO STAR", Country: "FR", Year: 2000,
		Trainer: "P Nicholls", Run: testRun(date, course, "R Walsh")}
	second.Run.Position = decode.Position{Code: "2", Finisher: true, Rank: 2}
	key := reconcile.KeyOf(winner.Run)
	return reconcile.Race{
		ID:       id,
		Key:      key,
		Date:     date,
		Course:   course,
		Type:     winner.Run.Type,
		Prize:    winner.Run.Prize,
		Distance: key.Distance,
		Going:    key.Going,
		Ran:      key.Ran,
		Runners:  []reconcile.Runner{winner, second},
	}
}

func TestSQLiteHorseRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertHorse(ctx, testHorse()); err != nil {
		t.Fatalf("UpsertHorse: %v", err)
	}

	h, found, err := st.GetHorse(ctx, "DENMAN", "IRE", 2000)
	if err != nil {
		t.Fatalf("GetHorse: %v", err)
	}
	if !found {
		t.Fatal("horse should be found")
	}
	if h.Trainer != "P Nicholls" || h.PrizeMoney != 245000 {
		t.Errorf("unexpected header %+v", h)
	}
	if len(h.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(h.Runs))
	}
	if h.Runs[0].Course != "Newb" || h.Runs[1].Course != "Chelt" {
		t.Errorf("runs not in date order: %s, %s", h.Runs[0].Course, h.Runs[1].Course)
	}
	r := h.Runs[1]
	if !r.Date.Equal(day(14)) || r.Beaten == nil || *r.Beaten != 1.5 || r.Rating == nil || *r.Rating != 172 {
		t.Errorf("run fields lost: %+v", r)
	}
	if !r.Type.Graded || r.Type.Discipline != decode.Chase || r.Distance != 26.5 {
		t.Errorf("run type lost: %+v", r.Type)
	}
}

func TestSQLiteHorseMerge(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertHorse(ctx, testHorse()); err != nil {
		t.Fatalf("UpsertHorse: %v", err)
	}

	again := testHorse()
	again.Trainer = "P F Nicholls"
	again.Runs = []decode.Run{
		testRun(day(2), "Newb", "N Fehily"),
		testRun(day(28), "Aintr", "R Walsh"),
	}
	if err := st.UpsertHorse(ctx, again); err != nil {
		t.Fatalf("UpsertHorse merge: %v", err)
	}

	h, _, err := st.GetHorse(ctx, "DENMAN", "IRE", 2000)
	if err != nil {
		t.Fatalf("GetHorse: %v", err)
	}
	if h.Trainer != "P F Nicholls" {
		t.Errorf("trainer = %q", h.Trainer)
	}
	if len(h.Runs) != 3 {
		t.Fatalf("expected 3 merged runs, got %d", len(h.Runs))
	}
	if h.Runs[0].Jockey != "N Fehily" {
		t.Errorf("matching run not replaced: jockey %q", h.Runs[0].Jockey)
	}

	c, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Horses != 1 || c.Runs != 3 {
		t.Errorf("unexpected counts %+v", c)
	}
}

func TestSQLiteMissingHorse(t *testing.T) {
	st := openTestStore(t)
	_, found, err := st.GetHorse(context.Background(), "NOBODY", "GB", 2010)
	if err != nil {
		t.Fatalf("GetHorse: %v", err)
	}
	if found {
		t.Error("unexpected horse")
	}
}

func TestSQLiteRejectsNamelessHorse(t *testing.T) {
	st := openTestStore(t)
	if err := st.UpsertHorse(context.Background(), decode.Horse{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSQLiteRaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	race := testRace("01HV0000000000000000000001", day(14), "Chelt")
	if err := st.PutRace(ctx, race); err != nil {
		t.Fatalf("PutRace: %v", err)
	}

	got, err := st.GetRace(ctx, race.ID)
	if err != nil {
		t.Fatalf("GetRace: %v", err)
	}
	if got.Key != race.Key {
		t.Errorf("key = %+v, want %+v", got.Key, race.Key)
	}
	if !got.Date.Equal(race.Date) || got.Course != "Chelt" || got.Prize != 85.4 || !got.Type.Graded {
		t.Errorf("unexpected header %+v", got)
	}
	if len(got.Runners) != 2 {
		t.Fatalf("expected 2 runners, got %d", len(got.Runners))
	}
	if got.Runners[0].Name != "DENMAN" || got.Runners[1].Run.Position.Rank != 2 {
		t.Errorf("runner order lost: %s, %d", got.Runners[0].Name, got.Runners[1].Run.Position.Rank)
	}

	// replacing keeps one copy of each runner
	if err := st.PutRace(ctx, race); err != nil {
		t.Fatalf("PutRace again: %v", err)
	}
	got, _ = st.GetRace(ctx, race.ID)
	if len(got.Runners) != 2 {
		t.Errorf("expected 2 runners after replace, got %d", len(got.Runners))
	}
}

func TestSQLiteMissingRace(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetRace(context.Background(), "missing"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRacesOn(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	for _, r := range []reconcile.Race{
		testRace("01HV0000000000000000000003", day(14), "Chelt"),
		testRace("01HV0000000000000000000002", day(14), "Ascot"),
		testRace("01HV0000000000000000000001", day(15), "Chelt"),
	} {
		if err := st.PutRace(ctx, r); err != nil {
			t.Fatalf("PutRace: %v", err)
		}
	}

	races, err := st.RacesOn(ctx, day(14))
	if err != nil {
		t.Fatalf("RacesOn: %v", err)
	}
	if len(races) != 2 {
		t.Fatalf("expected 2 races, got %d", len(races))
	}
	if races[0].Course != "Ascot" || races[1].Course != "Chelt" {
		t.Errorf("unexpected order %s, %s", races[0].Course, races[1].Course)
	}
	if len(races[1].Runners) != 2 {
		t.Errorf("runners not loaded")
	}

	c, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Races != 3 {
		t.Errorf("races = %d, want 3", c.Races)
	}
}
