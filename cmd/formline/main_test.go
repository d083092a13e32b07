package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/formline/pkg/formline/decode"
	"github.com/cognicore/formline/pkg/formline/reconcile"
)

func writePages(t *testing.T, dir string, pages ...string) string {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, text := range pages {
		if err := enc.Encode(map[string]any{"doc": "fb2024", "page": i + 1, "epoch": 2024, "text": text}); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(dir, "pages.jsonl")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestIngestStatsAndRaces(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "form.db")
	pages := writePages(t, dir,
		"DENMAN 6 P Nicholls £245 12Mar24 F 5 Asc 2 9-2 R Moore 1 2 1mGF",
		"KAUTO STAR (FR) 6 P Nicholls £100 12Mar24 F 5 Asc 2 9-0 J Doyle 2 2 1mGF",
		"SPRINTER SACRE 5 N Henderson £50 1Feb24 Ch 20 Kem 8 11-4 B Geraghty 1 5 2mS 170",
	)

	out, err := execute(t, "ingest", "--db", db, pages)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "Unresolved races: 1") || !strings.Contains(out, "SPRINTER SACRE") {
		t.Errorf("ingest output missing unresolved report:\n%s", out)
	}

	out, err = execute(t, "stats", "--db", db)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "HORSES") || !strings.Contains(out, "3") {
		t.Errorf("unexpected stats output:\n%s", out)
	}

	out, err = execute(t, "races", "--db", db, "--date", "2024-03-12")
	if err != nil {
		t.Fatalf("races: %v", err)
	}
	if !strings.Contains(out, "Asc") || !strings.Contains(out, "DENMAN") {
		t.Errorf("unexpected races output:\n%s", out)
	}
}

func TestRaceMissing(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "form.db")
	pages := writePages(t, dir, "DENMAN 6 P Nicholls £245")
	if _, err := execute(t, "ingest", "--db", db, pages); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := execute(t, "race", "--db", db, "01HV0000000000000000000000"); err == nil {
		t.Error("expected error for an unknown race")
	}
}

func TestStatsWithoutDB(t *testing.T) {
	if _, err := execute(t, "stats", "--db", filepath.Join(t.TempDir(), "none.db")); err == nil {
		t.Error("expected error for a missing database")
	}
}

func TestLoadDocumentsErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadDocuments([]string{filepath.Join(dir, "book.pdf")}, 0); err == nil {
		t.Error("expected error for unsupported file type")
	}
	page := filepath.Join(dir, "page.html")
	if err := os.WriteFile(page, []byte("<p>DENMAN</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadDocuments([]string{page}, 0); err == nil {
		t.Error("expected error for html without epoch")
	}
	docs, err := loadDocuments([]string{page}, 2024)
	if err != nil {
		t.Fatalf("loadDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "page" || len(docs[0].Tokens) != 1 || docs[0].Tokens[0].Epoch != 2024 {
		t.Errorf("unexpected documents %+v", docs)
	}
}

func TestRenderRace(t *testing.T) {
	beaten := 2.0
	race := reconcile.Race{
		ID:       "01HV0000000000000000000001",
		Key:      reconcile.RaceKey{Date: "2024-03-12"},
		Course:   "Chelt",
		Type:     decode.RaceType{Code: "Chg"},
		Distance: 26.5,
		Going:    "GS",
		Ran:      2,
		Prize:    85.4,
		Runners: []reconcile.Runner{
			{Name: "DENMAN", Country: "IRE", Year: 2000, Run: decode.Run{
				Position: decode.Position{Code: "1"}, WeightCode: "11-10", Jockey: "S Thomas", Beaten: &beaten}},
			{Name: "KAUTO STAR", Country: "GB", Year: 2000, Run: decode.Run{
				Position: decode.Position{Code: "f"}, WeightCode: "11-10", Jockey: "R Walsh"}},
		},
	}

	out := renderRace(race)
	for _, want := range []string{"2024-03-12 Chelt Chg 3m2½f GS", "DENMAN (IRE)", "S Thomas", "KAUTO STAR ", "R Walsh"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestFormatFurlongs(t *testing.T) {
	cases := map[float64]string{
		5:    "5f",
		8:    "1m",
		16:   "2m",
		20.5: "2m4½f",
		7.5:  "7½f",
		26:   "3m2f",
	}
	for in, want := range cases {
		if got := formatFurlongs(in); got != want {
			t.Errorf("formatFurlongs(%v) = %q, want %q", in, got, want)
		}
	}
}
