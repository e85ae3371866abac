// Package selector parses TextMate scope selectors and matches them against
// scope stacks. Selectors decide where grammar injections apply.
//
// Grammar:
//
//	selector    = entry *( "," entry )
//	entry       = [ ( "L:" / "R:" ) ] conjunction
//	conjunction = 1*operand
//	operand     = "-" operand / "(" group ")" / path
//	group       = conjunction *( ( "|" / "," ) conjunction )
//	path        = 1*scope
//
// A path matches when its scopes occur in the stack in order; each scope
// matches a stack entry equal to it or starting with it followed by a dot.
package selector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned for malformed selectors.
var ErrSyntax = errors.New("selector: syntax error")

// Priority orders an injection relative to the rules of the context it is
// injected into.
type Priority int8

const (
	Left    Priority = -1 // L: wins ties against the regular rules
	Default Priority = 0
	Right   Priority = 1 // R: loses ties
)

// String returns the string representation of p.
func (p Priority) String() string {
	switch p {
	case Left:
		return "L"
	case Right:
		return "R"
	default:
		return "default"
	}
}

// Matcher reports whether a scope stack, ordered outermost first, is
// selected.
type Matcher interface {
	Match(scopes []string) bool
}

// Entry is one comma-separated alternative of a selector.
type Entry struct {
	Priority Priority
	Matcher  Matcher
}

// path matches scope names in order, each by dot-boundary prefix.
type path []string

func (p path) Match(scopes []string) bool {
	i := 0
	for _, s := range scopes {
		if i == len(p) {
			break
		}
		if scopePrefix(p[i], s) {
			i++
		}
	}
	return i == len(p)
}

// scopePrefix reports whether scope equals prefix or extends it by a dotted
// segment.
func scopePrefix(prefix, scope string) bool {
	if !strings.HasPrefix(scope, prefix) {
		return false
	}
	return len(scope) == len(prefix) || scope[len(prefix)] == '.'
}

type negation struct{ m Matcher }

func (n negation) Match(scopes []string) bool { return !n.m.Match(scopes) }

type conjunction []Matcher

func (c conjunction) Match(scopes []string) bool {
	for _, m := range c {
		if !m.Match(scopes) {
			return false
		}
	}
	return true
}

type disjunction []Matcher

func (d disjunction) Match(scopes []string) bool {
	for _, m := range d {
		if m.Match(scopes) {
			return true
		}
	}
	return false
}

// Parse parses a selector into its entries.
func Parse(src string) ([]Entry, error) {
	p := &parser{toks: tokenize(src), src: src}
	if len(p.toks) == 0 {
		return nil, fmt.Errorf("%w: empty selector", ErrSyntax)
	}
	var entries []Entry
	for {
		e := Entry{Priority: Default}
		switch p.peek() {
		case "L:":
			e.Priority = Left
			p.pos++
		case "R:":
			e.Priority = Right
			p.pos++
		}
		m, err := p.conjunction()
		if err != nil {
			return nil, err
		}
		e.Matcher = m
		entries = append(entries, e)
		if p.peek() != "," {
			break
		}
		p.pos++
	}
	if p.pos < len(p.toks) {
		return nil, p.errorf("unexpected %q", p.toks[p.pos])
	}
	return entries, nil
}

// MustParse is like [Parse] but panics on error.
func MustParse(src string) []Entry {
	entries, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return entries
}

type parser struct {
	src  string
	toks []string
	pos  int
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrSyntax, fmt.Sprintf(format, args...), p.src)
}

// conjunction parses one or more operands.
func (p *parser) conjunction() (Matcher, error) {
	var ms conjunction
	for {
		m, ok, err := p.operand()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ms = append(ms, m)
	}
	switch len(ms) {
	case 0:
		return nil, p.errorf("expected scope at token %d", p.pos)
	case 1:
		return ms[0], nil
	}
	return ms, nil
}

// operand parses a negation, a parenthesised group or a path. It reports
// false when the next token cannot start an operand.
func (p *parser) operand() (Matcher, bool, error) {
	switch tok := p.peek(); {
	case tok == "-":
		p.pos++
		m, ok, err := p.operand()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, p.errorf("expected operand after '-'")
		}
		return negation{m}, true, nil
	case tok == "(":
		p.pos++
		m, err := p.group()
		if err != nil {
			return nil, false, err
		}
		if p.peek() != ")" {
			return nil, false, p.errorf("expected ')'")
		}
		p.pos++
		return m, true, nil
	case isScope(tok):
		var ps path
		for isScope(p.peek()) {
			ps = append(ps, p.peek())
			p.pos++
		}
		return ps, true, nil
	}
	return nil, false, nil
}

// group parses alternatives separated by | or , inside parentheses.
func (p *parser) group() (Matcher, error) {
	var alts disjunction
	for {
		m, err := p.conjunction()
		if err != nil {
			return nil, err
		}
		alts = append(alts, m)
		if tok := p.peek(); tok != "|" && tok != "," {
			break
		}
		p.pos++
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return alts, nil
}

// isScope reports whether tok is a scope name rather than an operator.
func isScope(tok string) bool {
	if tok == "" || tok == "L:" || tok == "R:" {
		return false
	}
	return isScopeStart(tok[0])
}

// tokenize splits src into scope names, priority prefixes and operators.
// Scope names start with a word character, dot or colon and may contain
// dashes.
func tokenize(src string) []string {
	var toks []string
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case (c == 'L' || c == 'R') && i+1 < len(src) && src[i+1] == ':':
			toks = append(toks, src[i:i+2])
			i += 2
		case c == ',' || c == '|' || c == '-' || c == '(' || c == ')':
			toks = append(toks, src[i:i+1])
			i++
		case isScopeStart(c):
			j := i + 1
			for j < len(src) && (isScopeStart(src[j]) || src[j] == '-') {
				j++
			}
			toks = append(toks, src[i:j])
			i = j
		default:
			// Unknown characters are kept as single tokens so the parser
			// reports them.
			toks = append(toks, src[i:i+1])
			i++
		}
	}
	return toks
}

func isScopeStart(c byte) bool {
	return c == '.' || c == ':' || c == '_' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
		c >= 0x80
}
