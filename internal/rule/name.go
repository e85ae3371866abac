package rule

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// captureRef matches $1 and ${1:/downcase} style references in scope names.
var captureRef = regexp2.MustCompile(`\$(\d+)|\$\{(\d+):/(downcase|upcase)\}`, regexp2.None)

// Name is a scope name as written in the grammar. It may reference capture
// groups of the match that produced it.
type Name struct {
	raw     string
	dynamic bool
}

// NewName wraps a scope name.
func NewName(s string) Name {
	return Name{raw: s, dynamic: strings.Contains(s, "$")}
}

// String returns the name as written.
func (n Name) String() string { return n.raw }

// Resolve substitutes capture references with the captured text. Leading
// dots are stripped from substituted text so a capture cannot produce an
// empty scope segment.
func (n Name) Resolve(text []rune, caps Spans) string {
	if !n.dynamic || caps == nil {
		return n.raw
	}
	out, err := captureRef.ReplaceFunc(n.raw, func(m regexp2.Match) string {
		index, transform := m.GroupByNumber(1).String(), ""
		if index == "" {
			index = m.GroupByNumber(2).String()
			transform = m.GroupByNumber(3).String()
		}
		i, err := strconv.Atoi(index)
		if err != nil {
			return ""
		}
		s := strings.TrimLeft(caps.Text(text, i), ".")
		switch transform {
		case "downcase":
			s = strings.ToLower(s)
		case "upcase":
			s = strings.ToUpper(s)
		}
		return s
	}, -1, -1)
	if err != nil {
		return n.raw
	}
	return out
}
