package formline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cognicore/formline/pkg/formline/ingest"
	"github.com/cognicore/formline/pkg/formline/store/memstore"
)

const cardPage = `FORMBOOK Flat Season 2024
DENMAN 6 P Nicholls £245
12Mar24 F 5 Asc 3 9-2 R Moore 1 2 1mGF
KAUTO STAR (FR) 6 P Nicholls £100
12Mar24 F 5 Asc 3 9-0 J Doyle 2 2 1mGF
BIG BUCK'S 7 P Nicholls £80
12Mar24 F 5 Asc 3 9-0 W Buick f 1mGF`

const loosePage = `SPRINTER SACRE 5 N Henderson £50
1Feb24 Ch 20 Kem 8 11-4 B Geraghty 1 5 2mS 170`

func testDoc(id, text string) Document {
	return Document{ID: id, Tokens: ingest.NewTokenizer(2024).Tokenize(text)}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIngestBuildsRaces(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	f := New(Options{Store: st, Workers: 2, Logger: quietLogger()})
	docs := []Document{testDoc("card", cardPage), testDoc("loose", loosePage)}
	if err := f.Ingest(ctx, docs); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	s := f.Stats()
	if s.Documents != 2 || s.Horses != 4 || s.Runs != 4 || s.Races != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.HorseFailures != 0 || s.RunFailures != 0 {
		t.Errorf("unexpected decode failures %+v", s)
	}

	races, err := st.RacesOn(ctx, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RacesOn: %v", err)
	}
	if len(races) != 1 {
		t.Fatalf("expected 1 stored race, got %d", len(races))
	}
	want := []string{"DENMAN", "KAUTO STAR", "BIG BUCK'S"}
	for i, rn := range races[0].Runners {
		if rn.Name != want[i] {
			t.Errorf("runner %d = %q, want %q", i, rn.Name, want[i])
		}
	}
	if races[0].Runners[1].Country != "FR" {
		t.Errorf("country lost: %+v", races[0].Runners[1])
	}

	h, found, err := st.GetHorse(ctx, "SPRINTER SACRE", "GB", 2019)
	if err != nil || !found {
		t.Fatalf("GetHorse: found=%v err=%v", found, err)
	}
	if len(h.Runs) != 1 || h.Runs[0].Course != "Kem" {
		t.Errorf("unexpected runs %+v", h.Runs)
	}

	rep, err := f.Close(ctx)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(rep.Unresolved) != 1 || rep.Unresolved[0].Pending != 1 {
		t.Fatalf("expected one unresolved key with 1 runner, got %+v", rep.Unresolved)
	}
	if rep.Unresolved[0].Key.Course != "Kem" {
		t.Errorf("unexpected unresolved key %+v", rep.Unresolved[0].Key)
	}
}

func TestIngestAcrossCalls(t *testing.T) {
	ctx := context.Background()
	f := New(Options{Store: memstore.New(), Logger: quietLogger()})

	// each call carries part of the field; the race completes on the second
	first := `DENMAN 6 P Nicholls £245
12Mar24 F 5 Asc 2 9-2 R Moore 1 2 1mGF`
	second := `KAUTO STAR 6 P Nicholls £100
12Mar24 F 5 Asc 2 9-0 J Doyle 2 2 1mGF`

	if err := f.Ingest(ctx, []Document{testDoc("a", first)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if f.Stats().Races != 0 {
		t.Fatal("race resolved with one runner")
	}
	if err := f.Ingest(ctx, []Document{testDoc("b", second)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if f.Stats().Races != 1 {
		t.Errorf("races = %d, want 1", f.Stats().Races)
	}
	if es := f.EngineStats(); es.PendingKeys != 0 {
		t.Errorf("pending keys = %d", es.PendingKeys)
	}
}

func TestIngestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Options{Store: memstore.New(), Logger: quietLogger()})
	err := f.Ingest(ctx, []Document{testDoc("card", cardPage)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
