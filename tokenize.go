package textmate

import (
	"time"

	"go.uber.org/zap"

	"github.com/agentable/textmate/internal/rule"
	"github.com/agentable/textmate/internal/selector"
)

// match is the winning candidate of one scan step.
type match struct {
	rule     rule.ID // None when the end pattern of the top frame matched
	isEnd    bool
	spans    rule.Spans
	priority selector.Priority
}

func (m match) start() int { return m.spans[0].Start }
func (m match) end() int   { return m.spans[0].End }

// cursor is the text being scanned and the column to scan from.
type cursor struct {
	text   []rune
	pos    int
	allowG bool // \G may match at pos
}

// rawToken spans [start, end) of the scanned line.
type rawToken struct {
	start, end int
	scopes     *scopeList
}

// lineTokenizer holds the per-line scratch state of one tokenizeLine call.
type lineTokenizer struct {
	g       *Grammar
	log     *zap.Logger
	line    string
	text    []rune // the line followed by "\n"
	offsets []int  // byte offset in line of each rune, then len(line)
	lineLen int    // length of the line without "\n"
	tokens  []rawToken
	lastEnd int

	// skipped holds matchers that timed out on this line.
	skipped  map[*rule.Matcher]bool
	deadline time.Time
	expired  bool
}

// tokenizeLine tokenizes one line starting from state.
func (g *Grammar) tokenizeLine(line string, state *State) LineResult {
	top := state.top
	runes, offsets := decodeLine(line)
	if g.opts.maxLineLength > 0 && len(runes) > g.opts.maxLineLength {
		g.opts.logger.Warn("line exceeds maximum length",
			zap.String("scope", g.scopeName),
			zap.Int("length", len(runes)),
			zap.Int("max", g.opts.maxLineLength),
		)
		return LineResult{
			Tokens: []Token{{Value: line, Scopes: top.contentScopes.names()}},
			State:  state,
		}
	}

	t := &lineTokenizer{
		g:       g,
		log:     g.opts.logger,
		line:    line,
		text:    append(runes, '\n'),
		offsets: offsets,
		lineLen: len(runes),
	}
	if g.opts.lineTimeout > 0 {
		t.deadline = time.Now().Add(g.opts.lineTimeout)
	}

	top, pos, anchor := t.checkWhile(top)
	top = t.scan(t.text, top, pos, anchor)
	return LineResult{
		Tokens: t.result(top),
		State:  &State{g: g, top: top.reset()},
	}
}

// decodeLine splits line into runes and records the byte offset of each,
// followed by len(line). An invalid byte decodes to U+FFFD but keeps its own
// offset, so tokens can be sliced from line unchanged.
func decodeLine(line string) ([]rune, []int) {
	runes := make([]rune, 0, len(line)+1)
	offsets := make([]int, 0, len(line)+1)
	for i, r := range line {
		runes = append(runes, r)
		offsets = append(offsets, i)
	}
	return runes, append(offsets, len(line))
}

// checkWhile re-checks the while condition of every open begin/while span,
// outermost first, at the start of the line. The first span whose condition
// fails is closed together with everything opened inside it.
func (t *lineTokenizer) checkWhile(top *frame) (*frame, int, int) {
	pos, anchor := 0, -1
	if top.beginEOL {
		anchor = 0
	}

	var spans []*frame
	for f := top; f != nil; f = f.parent {
		if t.g.arena.Get(f.rule).Kind == rule.BeginWhile {
			spans = append(spans, f)
		}
	}
	for i := len(spans) - 1; i >= 0; i-- {
		f := spans[i]
		m := t.find(f.end, cursor{text: t.text, pos: pos, allowG: pos == anchor})
		if m == nil {
			return f.parent, pos, anchor
		}
		t.produce(f.contentScopes, m[0].Start)
		t.handleCaptures(t.text, f.contentScopes, t.g.arena.Get(f.rule).EndCaptures, m)
		t.produce(f.contentScopes, m[0].End)
		anchor = m[0].End
		pos = max(pos, m[0].End)
	}
	return top, pos, anchor
}

// scan tokenizes text from pos with top as the innermost context and returns
// the context open at the end of text.
func (t *lineTokenizer) scan(text []rune, top *frame, pos, anchor int) *frame {
	n := len(text)
	for pos < n && !t.outOfTime() {
		m, ok := t.next(cursor{text: text, pos: pos, allowG: pos == anchor}, top)
		if !ok {
			break
		}
		start, end := m.start(), m.end()
		advanced := end > pos

		if m.isEnd {
			r := t.g.arena.Get(top.rule)
			t.produce(top.contentScopes, start)
			t.handleCaptures(text, top.nameScopes, r.EndCaptures, m.spans)
			t.produce(top.nameScopes, end)

			popped := top
			top, anchor = popped.parent, popped.anchorPos
			if !advanced && popped.enterPos == pos {
				// Closing a span where it was opened would reopen it on the
				// next step; keep it open and step past the column.
				t.noProgress(popped.rule, pos)
				top, anchor = popped, -1
				pos++
				continue
			}
		} else {
			r := t.g.arena.Get(m.rule)
			t.produce(top.contentScopes, start)
			name := r.Name.Resolve(text, m.spans)
			scopes := top.contentScopes.push(name)

			switch r.Kind {
			case rule.BeginEnd, rule.BeginWhile:
				next := top.push(r.ID, pos, anchor, scopes, name)
				next.beginEOL = end == n
				t.handleCaptures(text, scopes, r.Captures, m.spans)
				t.produce(scopes, end)

				next.contentName = r.ContentName.Resolve(text, m.spans)
				next.contentScopes = scopes.push(next.contentName)
				next.end = t.resolveEnd(r, text, m.spans)
				if !advanced && top.sameRuleEntered(r.ID, pos) {
					t.noProgress(r.ID, pos)
					pos++
					continue
				}
				top, anchor = next, end
			default:
				t.handleCaptures(text, scopes, r.Captures, m.spans)
				t.produce(scopes, end)
				if !advanced {
					t.noProgress(r.ID, pos)
					pos++
					continue
				}
			}
		}
		if advanced {
			pos = end
		}
	}
	t.produce(top.contentScopes, n)
	return top
}

// next returns the winning match of one scan step in the context of top.
func (t *lineTokenizer) next(c cursor, top *frame) (match, bool) {
	r := t.g.arena.Get(top.rule)
	var end *rule.Matcher
	if r.Kind == rule.BeginEnd {
		end = top.end
	}
	regular, ok := t.bestOf(c, r.Candidates, end, r.ApplyEndPatternLast)
	if len(t.g.injections) == 0 {
		return regular, ok
	}
	injected, iok := t.matchInjections(c, top.contentScopes.names())
	return resolveInjection(regular, ok, injected, iok)
}

// bestOf returns the leftmost match among the candidates, ties going to the
// earlier candidate. A non-nil end is tried before the candidates, or after
// them when endLast is set.
func (t *lineTokenizer) bestOf(c cursor, candidates []rule.ID, end *rule.Matcher, endLast bool) (match, bool) {
	var best match
	found := false
	// try reports whether the search can stop because nothing can start
	// before the current best.
	try := func(m *rule.Matcher, id rule.ID, isEnd bool) bool {
		spans := t.find(m, c)
		if spans == nil || (found && spans[0].Start >= best.start()) {
			return false
		}
		best, found = match{rule: id, isEnd: isEnd, spans: spans}, true
		return spans[0].Start == c.pos
	}

	if end != nil && !endLast && try(end, rule.None, true) {
		return best, true
	}
	for _, id := range candidates {
		if try(t.g.arena.Get(id).Begin, id, false) {
			return best, true
		}
	}
	if end != nil && endLast {
		try(end, rule.None, true)
	}
	return best, found
}

// find runs m at the cursor. A regex that times out is logged and skipped
// for the rest of the line.
func (t *lineTokenizer) find(m *rule.Matcher, c cursor) rule.Spans {
	if c.pos >= len(c.text) || t.skipped[m] || t.outOfTime() {
		return nil
	}
	spans, err := m.Find(c.text, c.pos, c.allowG)
	if err != nil {
		if t.skipped == nil {
			t.skipped = make(map[*rule.Matcher]bool)
		}
		t.skipped[m] = true
		t.log.Warn("regex match timed out",
			zap.String("scope", t.g.scopeName),
			zap.String("pattern", m.Source()),
			zap.Int("column", c.pos),
			zap.Error(err),
		)
		return nil
	}
	return spans
}

// resolveEnd returns the end or while matcher of r with back-references
// replaced by the begin captures.
func (t *lineTokenizer) resolveEnd(r *rule.Rule, text []rune, spans rule.Spans) *rule.Matcher {
	end, err := r.End.Resolve(text, spans)
	if err != nil {
		t.log.Warn("cannot resolve end pattern",
			zap.String("scope", t.g.scopeName),
			zap.String("pattern", r.End.Source()),
			zap.Error(err),
		)
		return r.End
	}
	return end
}

// handleCaptures emits the tokens of a match split by its capture groups.
// Groups nest: a group inside another gets the outer group's scopes too.
// A capture rule with patterns re-tokenizes the group's text with them.
func (t *lineTokenizer) handleCaptures(text []rune, base *scopeList, captures []rule.ID, spans rule.Spans) {
	if len(captures) == 0 {
		return
	}
	type open struct {
		scopes *scopeList
		end    int
	}
	var stack []open
	closeUntil := func(pos int) {
		for len(stack) > 0 && stack[len(stack)-1].end <= pos {
			o := stack[len(stack)-1]
			t.produce(o.scopes, o.end)
			stack = stack[:len(stack)-1]
		}
	}

	maxEnd := spans[0].End
	for i := 0; i < min(len(captures), len(spans)); i++ {
		id, sp := captures[i], spans[i]
		if id == rule.None || !sp.Matched() || sp.Len() == 0 {
			continue
		}
		if sp.Start > maxEnd {
			break
		}
		closeUntil(sp.Start)
		outer := base
		if len(stack) > 0 {
			outer = stack[len(stack)-1].scopes
		}
		t.produce(outer, sp.Start)

		r := t.g.arena.Get(id)
		name := r.Name.Resolve(text, spans)
		scopes := outer.push(name)
		if r.HasPatterns() {
			contentName := r.ContentName.Resolve(text, spans)
			f := &frame{
				rule:          id,
				name:          name,
				contentName:   contentName,
				nameScopes:    scopes,
				contentScopes: scopes.push(contentName),
				enterPos:      sp.Start,
				anchorPos:     -1,
			}
			t.scan(text[:sp.End], f, sp.Start, -1)
			continue
		}
		if name != "" {
			stack = append(stack, open{scopes: scopes, end: sp.End})
		}
	}
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		t.produce(o.scopes, o.end)
		stack = stack[:len(stack)-1]
	}
}

// produce emits a token with scopes from the end of the previous token up to
// end. Nothing is emitted when end does not lie past the previous token.
func (t *lineTokenizer) produce(scopes *scopeList, end int) {
	if end <= t.lastEnd {
		return
	}
	t.tokens = append(t.tokens, rawToken{start: t.lastEnd, end: end, scopes: scopes})
	t.lastEnd = end
}

// result converts the raw tokens into tokens of the line without its
// trailing "\n". A line without text yields one empty token.
func (t *lineTokenizer) result(top *frame) []Token {
	out := make([]Token, 0, len(t.tokens))
	for _, rt := range t.tokens {
		end := min(rt.end, t.lineLen)
		if rt.start >= end {
			continue
		}
		out = append(out, Token{Value: t.line[t.offsets[rt.start]:t.offsets[end]], Scopes: rt.scopes.names()})
	}
	if len(out) == 0 {
		out = append(out, Token{Value: "", Scopes: top.contentScopes.names()})
	}
	return out
}

func (t *lineTokenizer) outOfTime() bool {
	if t.expired {
		return true
	}
	if t.deadline.IsZero() || time.Now().Before(t.deadline) {
		return false
	}
	t.expired = true
	t.log.Warn("line tokenization budget exhausted",
		zap.String("scope", t.g.scopeName),
		zap.Int("length", t.lineLen),
		zap.Int("column", t.lastEnd),
	)
	return true
}

func (t *lineTokenizer) noProgress(id rule.ID, pos int) {
	t.log.Warn("rule matched without progress",
		zap.String("scope", t.g.scopeName),
		zap.Int32("rule", int32(id)),
		zap.Int("column", pos),
	)
}
