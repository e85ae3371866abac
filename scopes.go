package textmate

import "strings"

// scopeList is an immutable scope stack. Each element links to its parent,
// so pushing never copies and stacks share their common prefix.
type scopeList struct {
	parent *scopeList
	name   string
	depth  int
}

func newScopeList(root string) *scopeList {
	return &scopeList{name: root, depth: 1}
}

// push returns s with the scopes of name appended. A name may hold several
// space-separated scopes; an empty name leaves s unchanged.
func (s *scopeList) push(name string) *scopeList {
	for part := range strings.FieldsSeq(name) {
		s = &scopeList{parent: s, name: part, depth: s.depth + 1}
	}
	return s
}

// names returns the scopes outermost first. The slice is freshly allocated
// so callers may keep and modify it.
func (s *scopeList) names() []string {
	out := make([]string, s.depth)
	for e := s; e != nil; e = e.parent {
		out[e.depth-1] = e.name
	}
	return out
}
