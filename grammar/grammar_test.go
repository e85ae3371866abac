package grammar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonGrammar = `{
  "name": "Test",
  "scopeName": "source.test",
  "fileTypes": ["test"],
  "patterns": [
    {"include": "#comment"},
    {"match": "\\bkw\\b", "name": "keyword.test"}
  ],
  "repository": {
    "comment": {
      "begin": "/\\*",
      "end": "\\*/",
      "name": "comment.block.test",
      "applyEndPatternLast": 1,
      "beginCaptures": {"0": {"name": "punctuation.definition.comment.test"}}
    }
  },
  "injections": {
    "L:source.test": {"patterns": [{"match": "TODO", "name": "keyword.todo.test"}]}
  }
}`

const yamlGrammar = `
name: Test
scopeName: source.test
patterns:
  - include: '#string'
repository:
  string:
    begin: '"'
    end: '"'
    name: string.quoted.double.test
    disabled: false
    endCaptures:
      '0': {name: punctuation.definition.string.end.test}
    patterns:
      - match: '\\.'
        name: constant.character.escape.test
`

func TestDecode(t *testing.T) {
	t.Parallel()

	g, err := Decode([]byte(jsonGrammar))
	require.NoError(t, err)
	assert.Equal(t, "Test", g.Name)
	assert.Equal(t, "source.test", g.ScopeName)
	assert.Equal(t, []string{"test"}, g.FileTypes)
	require.Len(t, g.Patterns, 2)
	assert.Equal(t, "#comment", g.Patterns[0].Include)
	assert.Equal(t, `\bkw\b`, g.Patterns[1].Match)

	comment := g.Repository["comment"]
	require.NotNil(t, comment)
	assert.Equal(t, `/\*`, comment.Begin)
	assert.True(t, bool(comment.ApplyEndPatternLast))
	assert.Equal(t, "punctuation.definition.comment.test", comment.BeginCaptures["0"].Name)

	require.Contains(t, g.Injections, "L:source.test")
	assert.Len(t, g.Injections["L:source.test"].Patterns, 1)
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	g, err := DecodeYAML([]byte(yamlGrammar))
	require.NoError(t, err)
	assert.Equal(t, "source.test", g.ScopeName)

	str := g.Repository["string"]
	require.NotNil(t, str)
	assert.Equal(t, "string.quoted.double.test", str.Name)
	assert.False(t, bool(str.Disabled))
	assert.Equal(t, "punctuation.definition.string.end.test", str.EndCaptures["0"].Name)
	require.Len(t, str.Patterns, 1)
	assert.Equal(t, `\\.`, str.Patterns[0].Match)
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		decode  func([]byte) (*Grammar, error)
		input   string
		wantErr error
	}{
		{"json syntax", Decode, `{"scopeName":`, ErrFormat},
		{"json missing scope", Decode, `{"name":"x"}`, ErrMissingScope},
		{"json bad flag", Decode, `{"scopeName":"s","patterns":[{"applyEndPatternLast":"yes"}]}`, ErrFormat},
		{"yaml syntax", DecodeYAML, "scopeName: [", ErrFormat},
		{"yaml missing scope", DecodeYAML, "name: x\n", ErrMissingScope},
		{"yaml bad flag", DecodeYAML, "scopeName: s\npatterns:\n  - disabled: maybe\n", ErrFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.decode([]byte(tc.input))
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestFlagJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"0", false},
		{"null", false},
	}
	for _, tc := range tests {
		var f Flag
		require.NoError(t, f.UnmarshalJSON([]byte(tc.in)), tc.in)
		assert.Equal(t, tc.want, bool(f), tc.in)
	}
}

func TestCapturesGroups(t *testing.T) {
	t.Parallel()

	one := &Rule{Name: "one"}
	three := &Rule{Name: "three"}
	groups, err := Captures{"1": one, "3": three}.Groups()
	require.NoError(t, err)
	assert.Equal(t, []*Rule{nil, one, nil, three}, groups)

	groups, err = Captures(nil).Groups()
	require.NoError(t, err)
	assert.Nil(t, groups)

	_, err = Captures{"x": one}.Groups()
	require.ErrorIs(t, err, ErrFormat)

	_, err = Captures{"-1": one}.Groups()
	require.ErrorIs(t, err, ErrFormat)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "test.tmLanguage.json")
	yamlPath := filepath.Join(dir, "test.tmLanguage.YAML")
	require.NoError(t, os.WriteFile(jsonPath, []byte(jsonGrammar), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlGrammar), 0o600))

	g, err := ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, g.Repository, "comment")

	g, err = ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, g.Repository, "string")

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
