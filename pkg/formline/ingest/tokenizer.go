package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Token is one word of extracted page text.
type Token struct {
	Text  string
	Pos   int // index within the whole document
	Epoch int // foaling-year epoch of the source document
}

// Tokenizer splits extracted page text into positioned tokens
type Tokenizer struct {
	epoch int
	pos   int
}

// NewTokenizer creates a tokenizer for one document. Positions start at zero
// and keep counting across every page passed to Tokenize.
func NewTokenizer(epoch int) *Tokenizer {
	return &Tokenizer{epoch: epoch}
}

// Epoch returns the foaling-year epoch stamped on every token.
func (t *Tokenizer) Epoch() int {
	return t.epoch
}

// Tokenize splits text on whitespace after artifact normalization.
func (t *Tokenizer) Tokenize(text string) []Token {
	var tokens []Token
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		tokens = append(tokens, Token{Text: current.String(), Pos: t.pos, Epoch: t.epoch})
		t.pos++
		current.Reset()
	}

	for _, r := range Normalize(text) {
		if unicode.IsSpace(r) {
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()

	return tokens
}

// Normalize composes the text to NFC and folds the apostrophe look-alikes and
// replacement characters that PDF extraction leaves in horse and people names.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u2019', '\u2018', '\u02bc', '\u00b4', '`', '\ufffd':
			return '\''
		case '\u00a0', '\u2007', '\u202f':
			return ' '
		}
		return r
	}, text)
}
