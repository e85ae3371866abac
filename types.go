package textmate

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// Sentinel errors.
var (
	// ErrGrammar is returned when a grammar cannot be compiled.
	ErrGrammar = errors.New("textmate: grammar error")
	// ErrDecode is returned when a grammar file cannot be decoded.
	ErrDecode = errors.New("textmate: decode error")
	// ErrState is returned when an encoded state does not belong to the
	// grammar decoding it.
	ErrState = errors.New("textmate: invalid state")
)

// Token is a run of line text sharing one scope stack. Scopes are ordered
// outermost first and always start with the grammar's root scope.
type Token struct {
	Value  string   `json:"value"`
	Scopes []string `json:"scopes"`
}

// String returns the token as its quoted value followed by its scopes.
func (t Token) String() string {
	var buf strings.Builder
	buf.WriteString(strconv.Quote(t.Value))
	for _, s := range t.Scopes {
		buf.WriteByte(' ')
		buf.WriteString(s)
	}
	return buf.String()
}

// HasScope reports whether scope is one of the token's scopes.
func (t Token) HasScope(scope string) bool {
	return slices.Contains(t.Scopes, scope)
}

// LineResult is the outcome of tokenizing one line: its tokens and the state
// to tokenize the following line from.
type LineResult struct {
	Tokens []Token
	State  *State
}

// Text returns the concatenated token values, which is the tokenized line.
func (r LineResult) Text() string {
	var buf strings.Builder
	for _, t := range r.Tokens {
		buf.WriteString(t.Value)
	}
	return buf.String()
}
