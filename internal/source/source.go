package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/cognicore/formline/pkg/formline/ingest"
)

// Page is one page of extracted text
type Page struct {
	Number int
	Text   string
}

// Document is one source form book: its pages and foaling-year epoch
type Document struct {
	ID    string
	Epoch int
	Pages []Page
}

// Tokens tokenizes every page of the document with one position counter.
func (d Document) Tokens() []ingest.Token {
	tz := ingest.NewTokenizer(d.Epoch)
	var toks []ingest.Token
	for _, p := range d.Pages {
		toks = append(toks, tz.Tokenize(p.Text)...)
	}
	return toks
}

type pageLine struct {
	Doc   string `json:"doc"`
	Page  int    `json:"page"`
	Epoch int    `json:"epoch"`
	Text  string `json:"text"`
}

// LoadJSONL loads pages from a JSONL file, one page per line, grouped into
// documents in the order they first appear.
func LoadJSONL(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var docs []Document
	index := make(map[string]int)
	lines := strings.Split(string(data), "\n")

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var pl pageLine
		if err := json.Unmarshal([]byte(line), &pl); err != nil {
			slog.Warn("skipping malformed page", "path", path, "line", i+1, "err", err)
			continue
		}
		if pl.Doc == "" {
			slog.Warn("skipping page without document id", "path", path, "line", i+1)
			continue
		}

		at, ok := index[pl.Doc]
		if !ok {
			at = len(docs)
			index[pl.Doc] = at
			docs = append(docs, Document{ID: pl.Doc, Epoch: pl.Epoch})
		} else if docs[at].Epoch != pl.Epoch {
			slog.Warn("page epoch differs from document", "path", path, "line", i+1,
				"doc", pl.Doc, "epoch", pl.Epoch, "doc_epoch", docs[at].Epoch)
		}
		docs[at].Pages = append(docs[at].Pages, Page{Number: pl.Page, Text: pl.Text})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no valid pages found in %s", path)
	}

	for i := range docs {
		pages := docs[i].Pages
		sort.SliceStable(pages, func(a, b int) bool { return pages[a].Number < pages[b].Number })
	}
	return docs, nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "pre": true, "section": true, "article": true,
}

// LoadHTML extracts the visible text of an HTML page as a single-page
// document named after the file.
func LoadHTML(path string, epoch int) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return Document{
		ID:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Epoch: epoch,
		Pages: []Page{{Number: 1, Text: VisibleText(doc)}},
	}, nil
}

// VisibleText returns the text under n, skipping scripts and styles and
// breaking lines at block elements.
func VisibleText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteByte('\n')
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
