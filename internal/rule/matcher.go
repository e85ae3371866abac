package rule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/agentable/textmate/internal/pattern"
)

// ErrTimeout is returned by [Matcher.Find] when the regex ran longer than
// its match timeout.
var ErrTimeout = errors.New("rule: match timeout")

// resolvedCache caches matchers built from end and while patterns whose
// back-references were replaced by begin captures, keyed by resolved source
// and timeout.
var resolvedCache sync.Map

type cacheKey struct {
	src     string
	timeout time.Duration
}

// Span is the rune range of a match or capture group within a line.
// Start is -1 when the group did not participate in the match.
type Span struct {
	Start int
	End   int
}

// Matched reports whether the group participated in the match.
func (s Span) Matched() bool { return s.Start >= 0 }

// Len returns the length of the span in runes.
func (s Span) Len() int { return s.End - s.Start }

// Spans holds one [Span] per group; index 0 is the whole match.
type Spans []Span

// Text returns the text of group i, or "" when the group did not match.
func (s Spans) Text(text []rune, i int) string {
	if i >= len(s) || !s[i].Matched() {
		return ""
	}
	return string(text[s[i].Start:s[i].End])
}

// Texts returns the text of every group.
func (s Spans) Texts(text []rune) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s.Text(text, i)
	}
	return out
}

// Matcher runs one grammar regex. It carries two compiled forms: one where
// \G may match at the scan position and one where it never matches.
// Matchers are safe for concurrent use.
type Matcher struct {
	tr         pattern.Translation
	anchored   *regexp2.Regexp
	unanchored *regexp2.Regexp
	timeout    time.Duration
}

// Compile translates and compiles an Oniguruma pattern. A zero timeout
// disables the match timeout.
func Compile(src string, timeout time.Duration) (*Matcher, error) {
	return compile(src, timeout, false)
}

// CompileEnd is like [Compile] for end and while patterns, whose
// back-references may refer to groups of the begin pattern. A pattern that
// only compiles once those references are filled in is checked with them
// left empty; [Matcher.Resolve] supplies the real text.
func CompileEnd(src string, timeout time.Duration) (*Matcher, error) {
	return compile(src, timeout, true)
}

func compile(src string, timeout time.Duration, end bool) (*Matcher, error) {
	tr, err := pattern.Translate(src)
	if err != nil {
		return nil, err
	}
	m := &Matcher{tr: tr, timeout: timeout}
	m.anchored, err = compileRegexp(tr.Anchored, timeout)
	if err != nil && end && tr.HasBackRefs {
		return compileUnresolved(tr, timeout)
	}
	if err != nil {
		return nil, err
	}
	m.unanchored = m.anchored
	if tr.HasAnchorG {
		if m.unanchored, err = compileRegexp(tr.Unanchored, timeout); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func compileUnresolved(tr pattern.Translation, timeout time.Duration) (*Matcher, error) {
	src, err := pattern.ResolveBackRefs(tr.Source, nil)
	if err != nil {
		return nil, err
	}
	placeholder, err := Compile(src, timeout)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		tr:         tr,
		anchored:   placeholder.anchored,
		unanchored: placeholder.unanchored,
		timeout:    timeout,
	}, nil
}

// MustCompile is like [Compile] but panics on error.
func MustCompile(src string) *Matcher {
	m, err := Compile(src, 0)
	if err != nil {
		panic(err)
	}
	return m
}

func compileRegexp(src string, timeout time.Duration) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(src, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pattern.ErrSyntax, err)
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return re, nil
}

// Source returns the pattern as written in the grammar.
func (m *Matcher) Source() string { return m.tr.Source }

// HasBackRefs reports whether the pattern contains numbered back-references.
func (m *Matcher) HasBackRefs() bool { return m.tr.HasBackRefs }

// Find returns the leftmost match starting at or after pos, or nil when
// there is none. allowG selects whether \G may match at pos. Lookbehind sees
// the text before pos.
func (m *Matcher) Find(text []rune, pos int, allowG bool) (Spans, error) {
	re := m.unanchored
	if allowG {
		re = m.anchored
	}
	match, err := re.FindRunesMatchStartingAt(text, pos)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrTimeout, m.tr.Source, err)
	}
	if match == nil {
		return nil, nil
	}
	return spansOf(match), nil
}

// spansOf converts the groups of m into spans, ordered by group number.
func spansOf(m *regexp2.Match) Spans {
	groups := m.Groups()
	out := make(Spans, len(groups))
	for i := range groups {
		g := &groups[i]
		if len(g.Captures) == 0 {
			out[i] = Span{Start: -1, End: -1}
			continue
		}
		out[i] = Span{Start: g.Index, End: g.Index + g.Length}
	}
	return out
}

// Resolve returns a matcher for m's pattern with every back-reference
// replaced by the text the begin match captured. Resolved matchers are
// cached, so frames that captured the same text share one matcher.
func (m *Matcher) Resolve(text []rune, caps Spans) (*Matcher, error) {
	if !m.tr.HasBackRefs {
		return m, nil
	}
	src, err := pattern.ResolveBackRefs(m.tr.Source, caps.Texts(text))
	if err != nil {
		return nil, err
	}
	return CompileCached(src, m.timeout)
}

// CompileCached is like [Compile] but reuses a previously compiled matcher
// for the same source and timeout.
func CompileCached(src string, timeout time.Duration) (*Matcher, error) {
	key := cacheKey{src: src, timeout: timeout}
	if v, ok := resolvedCache.Load(key); ok {
		return v.(*Matcher), nil
	}
	m, err := Compile(src, timeout)
	if err != nil {
		return nil, err
	}
	v, _ := resolvedCache.LoadOrStore(key, m)
	return v.(*Matcher), nil
}
