package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentable/textmate"
)

const testGrammar = `
scopeName: source.test
patterns:
  - match: '\bkw\b'
    name: keyword.test
`

func writeGrammar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tmLanguage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testGrammar), 0o600))
	return path
}

func TestRunText(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-grammar", writeGrammar(t)}, strings.NewReader("a kw\nkw"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, `1:
  "a " source.test
  "kw" source.test keyword.test
2:
  "kw" source.test keyword.test
`, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRunJSONFromFile(t *testing.T) {
	t.Parallel()

	input := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(input, []byte("kw"), 0o600))

	var stdout, stderr bytes.Buffer
	err := run([]string{"-json", "-grammar", writeGrammar(t), input}, strings.NewReader(""), &stdout, &stderr)
	require.NoError(t, err)

	var lines [][]textmate.Token
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &lines))
	assert.Equal(t, [][]textmate.Token{
		{{Value: "kw", Scopes: []string{"source.test", "keyword.test"}}},
	}, lines)
}

func TestRunBuiltinGrammar(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run(nil, strings.NewReader("a > b"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, `1:
  "a" source.css meta.selector.css entity.name.tag.css
  " " source.css meta.selector.css
  ">" source.css meta.selector.css keyword.operator.combinator.css
  " " source.css meta.selector.css
  "b" source.css meta.selector.css entity.name.tag.css
`, stdout.String())
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-nope"}},
		{"missing grammar file", []string{"-grammar", filepath.Join(t.TempDir(), "none.json")}},
		{"missing input file", []string{"-grammar", writeGrammar(t), filepath.Join(t.TempDir(), "none.txt")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			err := run(tc.args, strings.NewReader(""), &stdout, &stderr)
			require.Error(t, err)
			assert.Empty(t, stdout.String())
		})
	}
}
