// Package fixtures ships a CSS grammar for the source.css scope together
// with a suite of CSS snippets and the exact tokens the grammar produces for
// them.
//
// The suite is the regression oracle for the tokenizer: every case is
// replayed by this package's tests and the expected tokens are compared
// token for token.
package fixtures

import (
	_ "embed"
	"fmt"

	"github.com/go-json-experiment/json"

	"github.com/agentable/textmate"
)

//go:embed testdata/css.tmLanguage.yaml
var cssGrammar []byte

//go:embed testdata/cases.json
var casesJSON []byte

// CSSScope is the root scope of the CSS grammar.
const CSSScope = "source.css"

// Suite is the decoded case file.
type Suite struct {
	Description string `json:"description"`
	Cases       []Case `json:"cases"`
}

// Case is one input and the tokens expected for each of its lines.
type Case struct {
	Name   string             `json:"name"`
	Input  string             `json:"input"`
	Tokens [][]textmate.Token `json:"tokens"`
}

// CSSGrammarSource returns the CSS grammar in its YAML form.
func CSSGrammarSource() []byte {
	return append([]byte(nil), cssGrammar...)
}

// CSS compiles the CSS grammar.
func CSS(opts ...textmate.Option) (*textmate.Grammar, error) {
	return textmate.ParseYAML(cssGrammar, opts...)
}

// Cases decodes the CSS case suite.
func Cases() (*Suite, error) {
	var s Suite
	if err := json.Unmarshal(casesJSON, &s); err != nil {
		return nil, fmt.Errorf("fixtures: decode cases: %w", err)
	}
	return &s, nil
}
