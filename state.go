package textmate

import (
	"fmt"

	"github.com/go-json-experiment/json"

	"github.com/agentable/textmate/internal/rule"
)

// frame is one open context of the rule stack: the grammar root, an open
// begin/end or begin/while span, or a capture being re-tokenized. Frames are
// never modified once another frame or a [State] refers to them.
type frame struct {
	parent *frame
	rule   rule.ID
	// end is the end or while matcher with back-references resolved.
	end *rule.Matcher

	name        string // resolved name scopes pushed by the frame
	contentName string // resolved content scopes pushed inside the span
	// nameScopes apply to the span's delimiters, contentScopes between
	// them.
	nameScopes    *scopeList
	contentScopes *scopeList

	// enterPos is the column the frame was pushed at on the current line,
	// anchorPos the \G anchor to restore when the frame is popped. Both are
	// -1 once the line is done.
	enterPos  int
	anchorPos int
	// beginEOL is set when the begin match consumed the line break.
	beginEOL bool
	depth    int
}

func (f *frame) push(id rule.ID, pos, anchor int, scopes *scopeList, name string) *frame {
	return &frame{
		parent:        f,
		rule:          id,
		name:          name,
		nameScopes:    scopes,
		contentScopes: scopes,
		enterPos:      pos,
		anchorPos:     anchor,
		depth:         f.depth + 1,
	}
}

// with returns a copy of f for in-place field updates on a frame nothing else
// refers to yet.
func (f *frame) with(update func(*frame)) *frame {
	c := *f
	update(&c)
	return &c
}

// reset returns the stack with line positions cleared, copying only the
// frames that carry positions.
func (f *frame) reset() *frame {
	if f == nil {
		return nil
	}
	parent := f.parent.reset()
	if parent == f.parent && f.enterPos == -1 && f.anchorPos == -1 {
		return f
	}
	c := *f
	c.parent = parent
	c.enterPos, c.anchorPos = -1, -1
	return &c
}

// sameRuleEntered reports whether a frame pushed at the same column as f
// already runs rule id, which would make pushing it again loop forever.
func (f *frame) sameRuleEntered(id rule.ID, pos int) bool {
	for e := f; e != nil && e.enterPos == pos; e = e.parent {
		if e.rule == id {
			return true
		}
	}
	return false
}

func (f *frame) equal(o *frame) bool {
	for f != nil && o != nil {
		if f == o {
			return true
		}
		if f.rule != o.rule || f.depth != o.depth || f.beginEOL != o.beginEOL ||
			f.name != o.name || f.contentName != o.contentName ||
			matcherSource(f.end) != matcherSource(o.end) {
			return false
		}
		f, o = f.parent, o.parent
	}
	return f == o
}

func matcherSource(m *rule.Matcher) string {
	if m == nil {
		return ""
	}
	return m.Source()
}

// State is the rule stack between two lines. States are immutable and may be
// shared between goroutines; tokenizing from a state never changes it.
type State struct {
	g   *Grammar
	top *frame
}

// Depth returns the number of contexts open above the grammar root.
func (s *State) Depth() int {
	return s.top.depth
}

// Scopes returns the scopes that apply to text following the state.
func (s *State) Scopes() []string {
	return s.top.contentScopes.names()
}

// Equal reports whether s and o would tokenize any line identically.
func (s *State) Equal(o *State) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.g == o.g && s.top.equal(o.top)
}

// stateJSON is the persisted form of a [State], root frame first.
type stateJSON struct {
	Scope  string      `json:"scope"`
	Frames []frameJSON `json:"frames"`
}

type frameJSON struct {
	Rule        rule.ID `json:"rule"`
	End         string  `json:"end,omitempty"`
	Name        string  `json:"name,omitempty"`
	ContentName string  `json:"contentName,omitempty"`
	BeginEOL    bool    `json:"beginEOL,omitzero"`
}

// EncodeState serializes s so it can be stored and restored with
// [Grammar.DecodeState].
func (g *Grammar) EncodeState(s *State) ([]byte, error) {
	if s == nil || s.g != g {
		return nil, fmt.Errorf("%w: state belongs to another grammar", ErrState)
	}
	frames := make([]frameJSON, s.top.depth+1)
	for f := s.top; f != nil; f = f.parent {
		fj := frameJSON{Rule: f.rule, Name: f.name, ContentName: f.contentName, BeginEOL: f.beginEOL}
		if r := g.arena.Get(f.rule); r.End != nil && r.End.HasBackRefs() {
			fj.End = f.end.Source()
		}
		frames[f.depth] = fj
	}
	return json.Marshal(stateJSON{Scope: g.scopeName, Frames: frames})
}

// DecodeState restores a state encoded by [Grammar.EncodeState]. It fails
// with [ErrState] unless the state was encoded for a grammar compiled from
// the same definition.
func (g *Grammar) DecodeState(data []byte) (*State, error) {
	var sj stateJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrState, err)
	}
	if sj.Scope != g.scopeName {
		return nil, fmt.Errorf("%w: scope %q, want %q", ErrState, sj.Scope, g.scopeName)
	}
	if len(sj.Frames) == 0 || sj.Frames[0].Rule != g.root {
		return nil, fmt.Errorf("%w: missing root frame", ErrState)
	}

	top := g.initial.top
	for _, fj := range sj.Frames[1:] {
		if !g.arena.Valid(fj.Rule) {
			return nil, fmt.Errorf("%w: unknown rule %d", ErrState, fj.Rule)
		}
		r := g.arena.Get(fj.Rule)
		if r.Kind != rule.BeginEnd && r.Kind != rule.BeginWhile {
			return nil, fmt.Errorf("%w: rule %d is a %s rule", ErrState, fj.Rule, r.Kind)
		}
		end := r.End
		if r.End.HasBackRefs() && fj.End != r.End.Source() {
			if fj.End == "" {
				return nil, fmt.Errorf("%w: rule %d needs its resolved end pattern", ErrState, fj.Rule)
			}
			var err error
			if end, err = rule.CompileCached(fj.End, g.opts.matchTimeout); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrState, err)
			}
		}
		scopes := top.contentScopes.push(fj.Name)
		top = top.push(fj.Rule, -1, -1, scopes, fj.Name).with(func(f *frame) {
			f.end = end
			f.contentName = fj.ContentName
			f.contentScopes = scopes.push(fj.ContentName)
			f.beginEOL = fj.BeginEOL
		})
	}
	return &State{g: g, top: top}, nil
}
