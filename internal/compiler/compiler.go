// Package compiler turns a raw [grammar.Grammar] into an arena of compiled
// rules. Includes are resolved once here, so the tokenizer never looks up a
// rule by name.
package compiler

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/agentable/textmate/grammar"
	"github.com/agentable/textmate/internal/rule"
)

var (
	// ErrUnresolvedInclude is returned when an include names no rule.
	ErrUnresolvedInclude = errors.New("unresolved include")
	// ErrInvalidPattern is returned when a regex cannot be compiled.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrInvalidRule is returned for rules whose fields contradict each other.
	ErrInvalidRule = errors.New("invalid rule")
)

// neverMatches is the end pattern of a begin rule that declares none. The
// span then stays open to the end of input.
const neverMatches = `(?!)`

// Options configures compilation.
type Options struct {
	// MatchTimeout bounds every regex evaluation. Zero disables it.
	MatchTimeout time.Duration
	// Injections are extra rules injected into the grammar, in addition to
	// the grammar's own injections.
	Injections []Injection
}

// Injection pairs a scope selector with the rule it injects.
type Injection struct {
	Selector string
	Rule     *grammar.Rule
}

// Result is a compiled grammar.
type Result struct {
	Arena *rule.Arena
	// Root is the container holding the grammar's top-level patterns.
	Root rule.ID
	// Injections holds the compiled injections, ordered by selector text.
	Injections []CompiledInjection
}

// CompiledInjection is an injection whose rule has been compiled.
type CompiledInjection struct {
	Selector   string
	Rule       rule.ID
	Candidates []rule.ID
}

// repository is one level of named rules visible to includes.
type repository map[string]*grammar.Rule

// Compiler compiles one grammar. It is not safe for concurrent use.
type Compiler struct {
	g        *grammar.Grammar
	opts     Options
	arena    *rule.Arena
	root     rule.ID
	ids      map[*grammar.Rule]rule.ID
	matchers map[matcherKey]*rule.Matcher
}

// New creates a Compiler for g.
func New(g *grammar.Grammar, opts Options) *Compiler {
	return &Compiler{
		g:        g,
		opts:     opts,
		arena:    rule.NewArena(),
		root:     rule.None,
		ids:      make(map[*grammar.Rule]rule.ID),
		matchers: make(map[matcherKey]*rule.Matcher),
	}
}

// Compile compiles g. See [Compiler.Compile].
func Compile(g *grammar.Grammar, opts Options) (*Result, error) {
	return New(g, opts).Compile()
}

// Compile compiles the grammar, its injections and the injections given in
// the options, then expands every pattern list into its candidate list.
func (c *Compiler) Compile() (*Result, error) {
	if err := c.g.Validate(); err != nil {
		return nil, err
	}

	top := []repository{c.g.Repository}
	root := c.arena.Add(rule.Container)
	c.root = root.ID
	patterns, err := c.compilePatterns(c.g.Patterns, top)
	if err != nil {
		return nil, err
	}
	root.Patterns = patterns

	injections := make([]Injection, 0, len(c.g.Injections)+len(c.opts.Injections))
	for _, sel := range slices.Sorted(maps.Keys(c.g.Injections)) {
		injections = append(injections, Injection{Selector: sel, Rule: c.g.Injections[sel]})
	}
	injections = append(injections, c.opts.Injections...)
	slices.SortStableFunc(injections, func(a, b Injection) int {
		return strings.Compare(a.Selector, b.Selector)
	})

	res := &Result{Arena: c.arena, Root: c.root}
	for _, inj := range injections {
		if inj.Rule == nil {
			continue
		}
		id, err := c.compileRule(inj.Rule, top)
		if err != nil {
			return nil, fmt.Errorf("injection %q: %w", inj.Selector, err)
		}
		res.Injections = append(res.Injections, CompiledInjection{Selector: inj.Selector, Rule: id})
	}

	c.link()
	for i := range res.Injections {
		res.Injections[i].Candidates = c.flatten(rule.None, []rule.ID{res.Injections[i].Rule})
	}
	return res, nil
}

// compilePatterns compiles a pattern list, skipping disabled rules.
func (c *Compiler) compilePatterns(patterns []grammar.Rule, scope []repository) ([]rule.ID, error) {
	ids := make([]rule.ID, 0, len(patterns))
	for i := range patterns {
		if patterns[i].Disabled {
			continue
		}
		id, err := c.compileRule(&patterns[i], scope)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// compileRule compiles r with the repositories in scope visible to its
// includes, innermost last. Each raw rule is compiled once; the ID is
// recorded before the children are compiled so cycles resolve to it.
func (c *Compiler) compileRule(r *grammar.Rule, scope []repository) (rule.ID, error) {
	if id, ok := c.ids[r]; ok {
		return id, nil
	}
	if len(r.Repository) > 0 {
		scope = append(scope[:len(scope):len(scope)], r.Repository)
	}

	var out *rule.Rule
	var err error
	switch {
	case r.Match != "":
		out = c.arena.Add(rule.Match)
		c.ids[r] = out.ID
		err = c.compileMatch(out, r, scope)
	case r.Begin != "":
		kind := rule.BeginEnd
		if r.While != "" {
			kind = rule.BeginWhile
		}
		out = c.arena.Add(kind)
		c.ids[r] = out.ID
		err = c.compileSpan(out, r, scope)
	case r.Include != "":
		out = c.arena.Add(rule.Include)
		c.ids[r] = out.ID
		out.Target, err = c.resolve(r.Include, scope)
	default:
		out = c.arena.Add(rule.Container)
		c.ids[r] = out.ID
		out.Name = rule.NewName(r.Name)
		out.ContentName = rule.NewName(r.ContentName)
		out.Patterns, err = c.compilePatterns(r.Patterns, scope)
	}
	if err != nil {
		return rule.None, err
	}
	return out.ID, nil
}

func (c *Compiler) compileMatch(out *rule.Rule, r *grammar.Rule, scope []repository) error {
	if r.Begin != "" || r.End != "" || r.While != "" {
		return fmt.Errorf("%w: rule %q has both match and begin/end", ErrInvalidRule, r.Name)
	}
	var err error
	out.Name = rule.NewName(r.Name)
	if out.Begin, err = c.matcher(r.Match); err != nil {
		return err
	}
	out.Captures, err = c.compileCaptures(r.Captures, scope)
	return err
}

func (c *Compiler) compileSpan(out *rule.Rule, r *grammar.Rule, scope []repository) error {
	var err error
	out.Name = rule.NewName(r.Name)
	out.ContentName = rule.NewName(r.ContentName)
	out.ApplyEndPatternLast = bool(r.ApplyEndPatternLast)
	if out.Begin, err = c.matcher(r.Begin); err != nil {
		return err
	}

	beginCaps, endCaps, end := r.BeginCaptures, r.EndCaptures, r.End
	if out.Kind == rule.BeginWhile {
		endCaps, end = r.WhileCaptures, r.While
	} else if end == "" {
		end = neverMatches
	}
	if len(beginCaps) == 0 {
		beginCaps = r.Captures
	}
	if len(endCaps) == 0 {
		endCaps = r.Captures
	}

	if out.End, err = c.endMatcher(end); err != nil {
		return err
	}
	if out.Captures, err = c.compileCaptures(beginCaps, scope); err != nil {
		return err
	}
	if out.EndCaptures, err = c.compileCaptures(endCaps, scope); err != nil {
		return err
	}
	out.Patterns, err = c.compilePatterns(r.Patterns, scope)
	return err
}

// compileCaptures compiles a captures map into a slice indexed by group.
func (c *Compiler) compileCaptures(caps grammar.Captures, scope []repository) ([]rule.ID, error) {
	groups, err := caps.Groups()
	if err != nil {
		return nil, err
	}
	if groups == nil {
		return nil, nil
	}
	ids := make([]rule.ID, len(groups))
	for i, g := range groups {
		ids[i] = rule.None
		if g == nil {
			continue
		}
		if id, ok := c.ids[g]; ok {
			ids[i] = id
			continue
		}
		out := c.arena.Add(rule.Capture)
		c.ids[g] = out.ID
		out.Name = rule.NewName(g.Name)
		out.ContentName = rule.NewName(g.ContentName)
		if out.Patterns, err = c.compilePatterns(g.Patterns, scope); err != nil {
			return nil, err
		}
		ids[i] = out.ID
	}
	return ids, nil
}

// matcherKey identifies a compiled pattern. End and while patterns are kept
// apart from the rest since they may refer to groups they do not define.
type matcherKey struct {
	src string
	end bool
}

// matcher compiles src, sharing matchers between identical patterns.
func (c *Compiler) matcher(src string) (*rule.Matcher, error) {
	return c.cached(matcherKey{src: src}, rule.Compile)
}

// endMatcher compiles the end or while pattern src.
func (c *Compiler) endMatcher(src string) (*rule.Matcher, error) {
	return c.cached(matcherKey{src: src, end: true}, rule.CompileEnd)
}

func (c *Compiler) cached(key matcherKey, compile func(string, time.Duration) (*rule.Matcher, error)) (*rule.Matcher, error) {
	if m, ok := c.matchers[key]; ok {
		return m, nil
	}
	m, err := compile(key.src, c.opts.MatchTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, key.src, err)
	}
	c.matchers[key] = m
	return m, nil
}

// resolve finds the rule an include refers to. Local references search the
// repositories from the innermost outwards; the referenced rule is compiled
// with the repositories visible where it was defined.
func (c *Compiler) resolve(ref string, scope []repository) (rule.ID, error) {
	switch {
	case ref == "$self" || ref == "$base" || ref == c.g.ScopeName:
		return c.root, nil
	case strings.HasPrefix(ref, "#"):
		name := ref[1:]
		for i := len(scope) - 1; i >= 0; i-- {
			if r := scope[i][name]; r != nil {
				return c.compileRule(r, scope[:i+1])
			}
		}
	default:
		if scopeName, name, ok := strings.Cut(ref, "#"); ok && scopeName == c.g.ScopeName {
			if r := c.g.Repository[name]; r != nil {
				return c.compileRule(r, scope[:1])
			}
		}
	}
	return rule.None, fmt.Errorf("%w: %q", ErrUnresolvedInclude, ref)
}

// link fills in the candidate list of every rule that has patterns.
func (c *Compiler) link() {
	for _, r := range c.arena.All() {
		if r.HasPatterns() {
			r.Candidates = c.flatten(r.ID, r.Patterns)
		}
	}
}

// flatten expands includes and containers in ids depth first, keeping the
// first occurrence of each rule. owner is not expanded again when a pattern
// list includes it, which keeps $self in the root list finite.
func (c *Compiler) flatten(owner rule.ID, ids []rule.ID) []rule.ID {
	seen := make(map[rule.ID]bool)
	if owner != rule.None {
		seen[owner] = c.arena.Get(owner).Kind == rule.Container
	}
	var out []rule.ID
	var walk func([]rule.ID)
	walk = func(ids []rule.ID) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			r := c.arena.Get(id)
			switch r.Kind {
			case rule.Include:
				walk([]rule.ID{r.Target})
			case rule.Container, rule.Capture:
				walk(r.Patterns)
			default:
				out = append(out, id)
			}
		}
	}
	walk(ids)
	return out
}
