package fixtures

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentable/textmate"
)

func cssGrammarT(t *testing.T) *textmate.Grammar {
	t.Helper()
	g, err := CSS()
	require.NoError(t, err)
	return g
}

func suiteT(t *testing.T) *Suite {
	t.Helper()
	s, err := Cases()
	require.NoError(t, err)
	require.NotEmpty(t, s.Cases)
	return s
}

func TestCases(t *testing.T) {
	g := cssGrammarT(t)
	for _, tc := range suiteT(t).Cases {
		t.Run(tc.Name, func(t *testing.T) {
			got := g.TokenizeLines(tc.Input)
			if diff := cmp.Diff(tc.Tokens, got); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCasesLineByLine(t *testing.T) {
	g := cssGrammarT(t)
	for _, tc := range suiteT(t).Cases {
		t.Run(tc.Name, func(t *testing.T) {
			lines := textmate.SplitLines(tc.Input)
			require.Len(t, tc.Tokens, len(lines))

			state := g.InitialState()
			for i, line := range lines {
				res := g.TokenizeLineFrom(line, state)
				assert.Equal(t, line, res.Text(), "line %d loses text", i)
				if diff := cmp.Diff(tc.Tokens[i], res.Tokens); diff != "" {
					t.Errorf("line %d mismatch (-want +got):\n%s", i, diff)
				}
				for _, tok := range res.Tokens {
					require.NotEmpty(t, tok.Scopes)
					assert.Equal(t, CSSScope, tok.Scopes[0])
				}
				state = res.State
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	g := cssGrammarT(t)
	other := cssGrammarT(t)
	for _, tc := range suiteT(t).Cases {
		first := g.TokenizeLines(tc.Input)
		assert.Equal(t, first, g.TokenizeLines(tc.Input), tc.Name)
		assert.Equal(t, first, other.TokenizeLines(tc.Input), tc.Name)
	}
}

func TestSeedScenarios(t *testing.T) {
	g := cssGrammarT(t)

	t.Run("type selector", func(t *testing.T) {
		tokens := g.TokenizeLine("p {}").Tokens
		assert.Equal(t, textmate.Token{
			Value:  "p",
			Scopes: []string{"source.css", "meta.selector.css", "entity.name.tag.css"},
		}, tokens[0])
	})

	t.Run("combinator", func(t *testing.T) {
		tokens := g.TokenizeLine("a > b").Tokens
		require.Len(t, tokens, 5)
		assert.Equal(t, ">", tokens[2].Value)
		assert.True(t, tokens[2].HasScope("keyword.operator.combinator.css"))
	})

	t.Run("bad identifier", func(t *testing.T) {
		tokens := g.TokenizeLine(".B&W{").Tokens
		require.GreaterOrEqual(t, len(tokens), 2)
		assert.Equal(t, ".", tokens[0].Value)
		assert.Equal(t, "B&W", tokens[1].Value)
		assert.True(t, tokens[0].HasScope("invalid.illegal.bad-identifier.css"))
		assert.True(t, tokens[1].HasScope("invalid.illegal.bad-identifier.css"))
	})

	t.Run("multi-line attribute selector", func(t *testing.T) {
		lines := g.TokenizeLines("span[\n  \\x20{2}\n  ns|lang/**/\n  |=\n\"pt\"]")
		require.Len(t, lines, 5)
		for i, line := range lines {
			skip := 0
			if i == 0 {
				skip = 1 // the type selector before the bracket
			}
			for _, tok := range line[skip:] {
				assert.True(t, tok.HasScope("meta.attribute-selector.css"), "line %d token %q", i, tok.Value)
			}
		}
		assert.True(t, lines[2][4].HasScope("comment.block.css"))
		assert.True(t, lines[4][1].HasScope("string.quoted.double.css"))
	})

	t.Run("unclosed charset string", func(t *testing.T) {
		tokens := g.TokenizeLine(`@charset "UTF-8`).Tokens
		last := tokens[len(tokens)-1]
		assert.Equal(t, `"UTF-8`, last.Value)
		assert.True(t, last.HasScope("invalid.illegal.unclosed-string.charset.css"))
	})
}

func TestCaseInsensitiveKeywords(t *testing.T) {
	g := cssGrammarT(t)

	tests := []struct {
		lower, mixed string
	}{
		{`@import url("a.css");`, `@IMPoRT url("a.css");`},
		{`@media screen {}`, `@MEDIA SCREEN {}`},
		{`a { color: rgba(1, 2, 3) }`, `a { COLOR: RGBa(1, 2, 3) }`},
		{`@font-face {}`, `@Font-Face {}`},
	}
	for _, tc := range tests {
		want := g.TokenizeLine(tc.lower).Tokens
		got := g.TokenizeLine(tc.mixed).Tokens
		require.Len(t, got, len(want), tc.mixed)
		for i := range want {
			assert.True(t, strings.EqualFold(want[i].Value, got[i].Value), "%s: token %d", tc.mixed, i)
			assert.Equal(t, want[i].Scopes, got[i].Scopes, "%s: token %d", tc.mixed, i)
		}
	}
}

func TestScopeStackBalance(t *testing.T) {
	g := cssGrammarT(t)

	closed := []string{
		"p {}",
		"a { width: calc(100% / 3) }",
		"@media screen and (min-width: 100px) {\n  p { color: red }\n}",
		"a[href^='http'] { color: #06c; }",
		"/* one\ntwo */",
		`@import url("a.css");`,
		"a:not(:not(b)) {}",
		"@supports not ((display: grid)) {\n  a { color: red }\n}",
		"@font-face { unicode-range: U+0025-00FF, u+4?? }",
	}
	for _, src := range closed {
		state := g.InitialState()
		for _, line := range textmate.SplitLines(src) {
			state = g.TokenizeLineFrom(line, state).State
		}
		assert.Equal(t, 0, state.Depth(), src)
		assert.True(t, state.Equal(g.InitialState()), src)
	}

	open := g.TokenizeLine("a { /* open").State
	assert.Equal(t, 2, open.Depth())
	assert.Equal(t, []string{"source.css", "meta.property-list.css", "comment.block.css"}, open.Scopes())

	negation := g.TokenizeLine("a:not(:not(:not(").State
	assert.Equal(t, 4, negation.Depth())
	assert.Equal(t, []string{"source.css", "meta.selector.css"}, negation.Scopes())

	query := g.TokenizeLine("@supports ((((display").State
	assert.Equal(t, 6, query.Depth())
	assert.Equal(t, "meta.feature-query.css", query.Scopes()[len(query.Scopes())-1])
}

func TestStateRoundTrip(t *testing.T) {
	g := cssGrammarT(t)

	state := g.TokenizeLine("@media print {").State
	data, err := g.EncodeState(state)
	require.NoError(t, err)

	decoded, err := g.DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t,
		g.TokenizeLineFrom("  a { color: red }", state).Tokens,
		g.TokenizeLineFrom("  a { color: red }", decoded).Tokens,
	)
}

func TestPathologicalLines(t *testing.T) {
	g := cssGrammarT(t)

	inputs := map[string]string{
		"tags":             strings.Repeat("a ", 1000),
		"nested calc":      "a{b:" + strings.Repeat("calc(", 399),
		"backslashes":      `"` + strings.Repeat(`\`, 1999),
		"attribute name":   "[" + strings.Repeat("a", 1999),
		"unclosed strings": "a{b:" + strings.Repeat(`"'`, 998),
		"class chain":      strings.Repeat(".a", 1000),
		"nested negation":  "a" + strings.Repeat(":not(", 399),
		"nested queries":   "@supports " + strings.Repeat("(", 1990),
	}
	for name, line := range inputs {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			res := g.TokenizeLine(line)
			assert.Less(t, time.Since(start), 5*time.Second)
			assert.Equal(t, line, res.Text())
		})
	}
}

func TestCSSGrammarSource(t *testing.T) {
	t.Parallel()

	src := CSSGrammarSource()
	require.NotEmpty(t, src)
	src[0] = 'X'
	assert.NotEqual(t, byte('X'), CSSGrammarSource()[0])

	g := cssGrammarT(t)
	assert.Equal(t, CSSScope, g.ScopeName())
}
