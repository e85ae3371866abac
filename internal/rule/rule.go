// Package rule holds the compiled form of a TextMate grammar: an arena of
// rules addressed by [ID], the regexp2 matchers they run, and scope name
// templates.
package rule

import (
	"fmt"
)

// ID addresses a rule inside an [Arena]. Rules refer to each other by ID,
// which is how self-referencing grammars form cycles without pointers.
type ID int32

// None is the zero value for an absent rule reference.
const None ID = -1

// Kind identifies the variant stored in a [Rule].
type Kind uint8

const (
	Match      Kind = iota // single regex, optional per-capture scopes
	BeginEnd               // span from a begin match to an end match
	BeginWhile             // span from a begin match while each line matches
	Include                // reference to another rule
	Container              // pattern list only; the grammar root is one
	Capture                // scopes (and optional patterns) for a capture group
)

// String returns the string representation of k.
func (k Kind) String() string {
	switch k {
	case Match:
		return "match"
	case BeginEnd:
		return "begin/end"
	case BeginWhile:
		return "begin/while"
	case Include:
		return "include"
	case Container:
		return "container"
	case Capture:
		return "capture"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Rule is a tagged union over the rule variants. Using a single concrete
// struct keeps the arena a flat list and lets the tokenizer switch on Kind.
type Rule struct {
	ID          ID
	Kind        Kind
	Name        Name
	ContentName Name

	// Begin is the match regex of a Match rule, or the begin regex of a
	// BeginEnd / BeginWhile rule.
	Begin *Matcher
	// End is the end regex of a BeginEnd rule, or the while regex of a
	// BeginWhile rule.
	End *Matcher
	// ApplyEndPatternLast ranks End after the child patterns instead of
	// before them.
	ApplyEndPatternLast bool

	// Captures holds the capture rule for each group of Begin, None where
	// a group has no scope.
	Captures []ID
	// EndCaptures holds the capture rules for End.
	EndCaptures []ID

	// Patterns lists the child rules in declaration order.
	Patterns []ID
	// Target is the rule an Include refers to.
	Target ID

	// Candidates is Patterns with includes and containers expanded, in
	// declaration order and without duplicates. It is filled in once the
	// whole grammar has been compiled.
	Candidates []ID
}

// HasPatterns reports whether the rule opens a context whose children are
// matched: the grammar root, BeginEnd and BeginWhile spans, and capture
// rules that re-tokenize their text.
func (r *Rule) HasPatterns() bool {
	return len(r.Patterns) > 0
}

// Arena owns every rule of one compiled grammar. It is append-only while the
// grammar compiles and read-only afterwards, so it may be shared by any
// number of concurrent tokenizers.
type Arena struct {
	rules []*Rule
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add allocates a rule of kind k and returns it. The returned pointer stays
// valid as the arena grows.
func (a *Arena) Add(k Kind) *Rule {
	r := &Rule{ID: ID(len(a.rules)), Kind: k, Target: None}
	a.rules = append(a.rules, r)
	return r
}

// Get returns the rule with the given id. It panics if id is out of range.
func (a *Arena) Get(id ID) *Rule {
	return a.rules[id]
}

// Valid reports whether id addresses a rule in a.
func (a *Arena) Valid(id ID) bool {
	return id >= 0 && int(id) < len(a.rules)
}

// Len returns the number of rules in a.
func (a *Arena) Len() int {
	return len(a.rules)
}

// All returns the rules in ID order.
func (a *Arena) All() []*Rule {
	return a.rules
}
