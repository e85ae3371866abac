// Package textmate tokenizes text with TextMate grammars.
//
// A grammar is compiled once into a [Grammar] and then tokenizes any number
// of documents, line by line, into tokens annotated with scope names:
//
//	g, err := textmate.LoadFile("css.tmLanguage.json")
//	if err != nil {
//		return err
//	}
//	for _, line := range g.TokenizeLines("a > b {}") {
//		for _, tok := range line {
//			fmt.Println(tok.Value, tok.Scopes)
//		}
//	}
//
// Spans that cross line boundaries, such as block comments, are carried from
// one line to the next in a [State].
package textmate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/agentable/textmate/grammar"
	"github.com/agentable/textmate/internal/rule"
)

// Grammar is a compiled TextMate grammar. Safe for concurrent use.
type Grammar struct {
	scopeName  string
	arena      *rule.Arena
	root       rule.ID
	injections []injection
	opts       compilerOptions
	initial    *State
}

// ScopeName returns the grammar's root scope, which every token carries
// first.
func (g *Grammar) ScopeName() string {
	return g.scopeName
}

// InitialState returns the state before the first line of a document.
func (g *Grammar) InitialState() *State {
	return g.initial
}

// TokenizeLine tokenizes line as the first line of a document.
func (g *Grammar) TokenizeLine(line string) LineResult {
	return g.tokenizeLine(line, g.initial)
}

// TokenizeLineFrom tokenizes line continuing from state, which is usually
// the State of the previous line's result. A nil state is the initial state.
func (g *Grammar) TokenizeLineFrom(line string, state *State) LineResult {
	if state == nil {
		return g.TokenizeLine(line)
	}
	if state.g != g {
		g.opts.logger.Warn("state belongs to another grammar; starting from the initial state",
			zap.String("scope", g.scopeName),
		)
		return g.TokenizeLine(line)
	}
	return g.tokenizeLine(line, state)
}

// TokenizeLines tokenizes text as a document and returns the tokens of each
// line. Lines are separated by "\n"; a "\r" before the "\n" belongs to the
// line break.
func (g *Grammar) TokenizeLines(text string) [][]Token {
	out, _ := g.TokenizeLinesContext(context.Background(), text)
	return out
}

// SplitLines splits text into lines the way [Grammar.TokenizeLines] does.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Compile compiles g with the given options. Returns [ErrGrammar] on
// failure.
func Compile(g *grammar.Grammar, opts ...Option) (*Grammar, error) {
	return NewCompiler(opts...).Compile(g)
}

// MustCompile is like [Compile] but panics on failure.
func MustCompile(g *grammar.Grammar, opts ...Option) *Grammar {
	return NewCompiler(opts...).MustCompile(g)
}

// Parse decodes and compiles a grammar in its JSON form.
func Parse(data []byte, opts ...Option) (*Grammar, error) {
	return NewCompiler(opts...).Parse(data)
}

// ParseYAML decodes and compiles a grammar in its YAML form.
func ParseYAML(data []byte, opts ...Option) (*Grammar, error) {
	return NewCompiler(opts...).ParseYAML(data)
}

// LoadFile reads and compiles a grammar file.
func LoadFile(path string, opts ...Option) (*Grammar, error) {
	return NewCompiler(opts...).LoadFile(path)
}
