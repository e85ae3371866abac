package textmate

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/agentable/textmate/grammar"
	"github.com/agentable/textmate/internal/compiler"
	"github.com/agentable/textmate/internal/selector"
)

const (
	// DefaultMatchTimeout bounds a single regex evaluation.
	DefaultMatchTimeout = 250 * time.Millisecond
	// DefaultLineTimeout bounds the tokenization of a single line.
	DefaultLineTimeout = 2 * time.Second
)

// Option configures a [Compiler].
type Option func(*compilerOptions)

// compilerOptions holds configuration for a [Compiler]. The compiled
// [Grammar] keeps a copy and uses it while tokenizing.
type compilerOptions struct {
	logger        *zap.Logger
	matchTimeout  time.Duration
	lineTimeout   time.Duration
	maxLineLength int
	injections    []compiler.Injection
}

// WithLogger sets the logger for compilation and tokenization events. A nil
// logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *compilerOptions) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l
	}
}

// WithMatchTimeout bounds every regex evaluation. A regex that runs out of
// time is treated as not matching for the rest of the line. Zero disables
// the bound.
func WithMatchTimeout(d time.Duration) Option {
	return func(o *compilerOptions) {
		o.matchTimeout = d
	}
}

// WithLineTimeout bounds the tokenization of one line. When the budget runs
// out the rest of the line becomes a single token in the current scopes.
// Zero disables the bound.
func WithLineTimeout(d time.Duration) Option {
	return func(o *compilerOptions) {
		o.lineTimeout = d
	}
}

// WithMaxLineLength makes lines longer than n characters a single token in
// the current scopes, leaving the state unchanged. Zero means no limit.
func WithMaxLineLength(n int) Option {
	return func(o *compilerOptions) {
		o.maxLineLength = max(n, 0)
	}
}

// WithInjection injects r into every context whose scopes match selector,
// alongside the grammar's own injections. Options are applied in order, so
// later injections with the same selector are tried after earlier ones.
func WithInjection(selector string, r *grammar.Rule) Option {
	return func(o *compilerOptions) {
		o.injections = append(o.injections, compiler.Injection{Selector: selector, Rule: r})
	}
}

// Compiler compiles grammars into [Grammar] values, configured by options.
// A Compiler may be reused for any number of grammars.
type Compiler struct {
	opts compilerOptions
}

// NewCompiler creates a new [Compiler] configured by opts.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		opts: compilerOptions{
			logger:       zap.NewNop(),
			matchTimeout: DefaultMatchTimeout,
			lineTimeout:  DefaultLineTimeout,
		},
	}
	for _, o := range opts {
		o(&c.opts)
	}
	return c
}

// Compile resolves g into a [Grammar] ready to tokenize. Returns
// [ErrGrammar] on failure.
func (c *Compiler) Compile(g *grammar.Grammar) (*Grammar, error) {
	res, err := compiler.Compile(g, compiler.Options{
		MatchTimeout: c.opts.matchTimeout,
		Injections:   c.opts.injections,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGrammar, err)
	}

	var injections []injection
	for _, inj := range res.Injections {
		entries, err := selector.Parse(inj.Selector)
		if err != nil {
			return nil, fmt.Errorf("%w: injection %q: %w", ErrGrammar, inj.Selector, err)
		}
		for _, e := range entries {
			injections = append(injections, injection{
				selector:   inj.Selector,
				priority:   e.Priority,
				matcher:    e.Matcher,
				candidates: inj.Candidates,
			})
		}
	}
	sortInjections(injections)

	out := &Grammar{
		scopeName:  g.ScopeName,
		arena:      res.Arena,
		root:       res.Root,
		injections: injections,
		opts:       c.opts,
	}
	scopes := newScopeList(g.ScopeName)
	out.initial = &State{g: out, top: &frame{
		rule:          res.Root,
		name:          g.ScopeName,
		nameScopes:    scopes,
		contentScopes: scopes,
		enterPos:      -1,
		anchorPos:     -1,
	}}

	c.opts.logger.Debug("grammar compiled",
		zap.String("scope", g.ScopeName),
		zap.Int("rules", res.Arena.Len()),
		zap.Int("injections", len(injections)),
	)
	return out, nil
}

// MustCompile is like [Compiler.Compile] but panics on failure.
func (c *Compiler) MustCompile(g *grammar.Grammar) *Grammar {
	out, err := c.Compile(g)
	if err != nil {
		panic(err)
	}
	return out
}

// Parse decodes a grammar in its JSON form and compiles it. Returns
// [ErrDecode] or [ErrGrammar] on failure.
func (c *Compiler) Parse(data []byte) (*Grammar, error) {
	g, err := grammar.Decode(data)
	if err != nil {
		return nil, errors.Join(ErrDecode, err)
	}
	return c.Compile(g)
}

// ParseYAML decodes a grammar in its YAML form and compiles it.
func (c *Compiler) ParseYAML(data []byte) (*Grammar, error) {
	g, err := grammar.DecodeYAML(data)
	if err != nil {
		return nil, errors.Join(ErrDecode, err)
	}
	return c.Compile(g)
}

// LoadFile reads and compiles a grammar file. Files ending in .yaml or .yml
// are decoded as YAML, everything else as JSON.
func (c *Compiler) LoadFile(path string) (*Grammar, error) {
	g, err := grammar.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, err
		}
		return nil, errors.Join(ErrDecode, err)
	}
	return c.Compile(g)
}
