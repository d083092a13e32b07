package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSONL(t *testing.T) {
	path := writeFile(t, "pages.jsonl", `{"doc":"fb2012","page":2,"epoch":2012,"text":"KAUTO STAR 12"}
{"doc":"fb2012","page":1,"epoch":2012,"text":"DENMAN 12"}
not json
{"page":3,"text":"orphan"}

{"doc":"fb2013","page":1,"epoch":2013,"text":"SPRINTER SACRE 7"}
`)

	docs, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "fb2012" || docs[0].Epoch != 2012 || len(docs[0].Pages) != 2 {
		t.Errorf("unexpected first document %+v", docs[0])
	}
	if docs[0].Pages[0].Text != "DENMAN 12" {
		t.Errorf("pages not sorted: %+v", docs[0].Pages)
	}

	toks := docs[0].Tokens()
	if len(toks) != 5 {
		t.Fatalf("expected 5 tokens, got %d", len(toks))
	}
	if toks[2].Text != "KAUTO" || toks[2].Pos != 2 || toks[2].Epoch != 2012 {
		t.Errorf("positions must continue across pages: %+v", toks[2])
	}
}

func TestLoadJSONLEmpty(t *testing.T) {
	if _, err := LoadJSONL(writeFile(t, "empty.jsonl", "\n\nbad\n")); err == nil {
		t.Error("expected error for a file without pages")
	}
	if _, err := LoadJSONL(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLoadHTML(t *testing.T) {
	path := writeFile(t, "page-0042.html", `<html><head><title>FORMBOOK</title>
<style>p { color: red }</style></head>
<body><p>DENMAN 12 P Nicholls</p><script>var x = 1;</script><div>12Mar24 Chg 85.4 Chelt</div></body></html>`)

	doc, err := LoadHTML(path, 2012)
	if err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}
	if doc.ID != "page-0042" || doc.Epoch != 2012 || len(doc.Pages) != 1 {
		t.Errorf("unexpected document %+v", doc)
	}
	text := doc.Pages[0].Text
	if strings.Contains(text, "color") || strings.Contains(text, "var x") {
		t.Errorf("script or style leaked: %q", text)
	}
	if !strings.Contains(text, "Nicholls\n12Mar24") {
		t.Errorf("block elements should break lines: %q", text)
	}

	var words []string
	for _, tok := range doc.Tokens() {
		words = append(words, tok.Text)
	}
	if got := strings.Join(words, " "); got != "DENMAN 12 P Nicholls 12Mar24 Chg 85.4 Chelt" {
		t.Errorf("tokens = %q", got)
	}
}
