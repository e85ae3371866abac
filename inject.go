package textmate

import (
	"cmp"
	"slices"

	"github.com/agentable/textmate/internal/rule"
	"github.com/agentable/textmate/internal/selector"
)

// injection is one selector entry of a grammar injection. An injection with
// several comma-separated entries yields one injection per entry.
type injection struct {
	selector   string
	priority   selector.Priority
	matcher    selector.Matcher
	candidates []rule.ID
}

// sortInjections orders injections by priority, L: first and R: last, then
// by selector text. The sort is stable, so entries of one selector keep
// their written order.
func sortInjections(injections []injection) {
	slices.SortStableFunc(injections, func(a, b injection) int {
		if c := cmp.Compare(a.priority, b.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.selector, b.selector)
	})
}

// matchInjections finds the earliest match among the injections whose
// selector matches scopes. Ties go to the injection tried first.
func (t *lineTokenizer) matchInjections(c cursor, scopes []string) (match, bool) {
	var best match
	found := false
	for i := range t.g.injections {
		inj := &t.g.injections[i]
		if !inj.matcher.Match(scopes) {
			continue
		}
		m, ok := t.bestOf(c, inj.candidates, nil, false)
		if !ok || (found && m.start() >= best.start()) {
			continue
		}
		best, found = m, true
		best.priority = inj.priority
		if best.start() == c.pos {
			break
		}
	}
	return best, found
}

// resolveInjection picks between the regular match and the injection match.
// The injection wins when it starts earlier, or at the same column when it
// has L: priority.
func resolveInjection(regular match, hasRegular bool, injected match, hasInjected bool) (match, bool) {
	switch {
	case !hasInjected:
		return regular, hasRegular
	case !hasRegular:
		return injected, true
	}
	if injected.start() < regular.start() ||
		(injected.start() == regular.start() && injected.priority == selector.Left) {
		return injected, true
	}
	return regular, true
}
