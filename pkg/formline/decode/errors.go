package decode

import (
	"fmt"
	"strings"

	"github.com/cognicore/formline/pkg/formline/internalerr"
)

// GrammarError reports a buffer that did not match its field grammar.
type GrammarError struct {
	Record string // "horse" or "run"
	Reason string
	Tokens []string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("%s grammar: %s: [%s]", e.Record, e.Reason, strings.Join(e.Tokens, " "))
}

func (e *GrammarError) Unwrap() error {
	return internalerr.ErrGrammar
}

func horseErr(toks []string, format string, args ...any) error {
	return &GrammarError{Record: "horse", Reason: fmt.Sprintf(format, args...), Tokens: toks}
}

func runErr(toks []string, format string, args ...any) error {
	return &GrammarError{Record: "run", Reason: fmt.Sprintf(format, args...), Tokens: toks}
}
