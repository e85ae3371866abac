package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "L", Left.String())
	assert.Equal(t, "R", Right.String())
	assert.Equal(t, "default", Default.String())
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  []string
	}{
		{"source.css", []string{"source.css"}},
		{"L:source.css - comment", []string{"L:", "source.css", "-", "comment"}},
		{"meta.selector-list.css", []string{"meta.selector-list.css"}},
		{"(a|b),c", []string{"(", "a", "|", "b", ")", ",", "c"}},
		{"a !b", []string{"a", "!", "b"}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tokenize(tc.input), tc.input)
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	stack := []string{"source.css", "meta.selector.css", "meta.attribute-selector.css", "string.quoted.double.css"}

	tests := []struct {
		selector string
		want     bool
	}{
		{"source.css", true},
		{"source", true},
		{"source.cs", false},
		{"text.html", false},
		{"source.css string", true},
		{"string source.css", false},
		{"meta.selector string.quoted", true},
		{"source.css - comment", true},
		{"source.css - string", false},
		{"-comment", true},
		{"(comment | string)", true},
		{"(comment, text)", false},
		{"source.css -(comment | string)", false},
		{"meta.attribute-selector.css", true},
	}
	for _, tc := range tests {
		t.Run(tc.selector, func(t *testing.T) {
			t.Parallel()
			entries, err := Parse(tc.selector)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tc.want, entries[0].Matcher.Match(stack))
		})
	}
}

func TestParseEntries(t *testing.T) {
	t.Parallel()

	entries, err := Parse("L:source.css - comment, R:text.html, string")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, Left, entries[0].Priority)
	assert.Equal(t, Right, entries[1].Priority)
	assert.Equal(t, Default, entries[2].Priority)

	assert.True(t, entries[0].Matcher.Match([]string{"source.css"}))
	assert.False(t, entries[0].Matcher.Match([]string{"source.css", "comment.block.css"}))
	assert.True(t, entries[1].Matcher.Match([]string{"text.html.basic"}))
	assert.False(t, entries[2].Matcher.Match([]string{"source.css"}))
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"   ",
		",",
		"a,",
		"(a",
		"a)",
		"-",
		"a !b",
		"L:",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(input)
			require.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestMustParse(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { MustParse("source.css") })
	assert.Panics(t, func() { MustParse("(") })
}
