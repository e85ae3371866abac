// Package grammar defines the raw, declarative form of a TextMate grammar
// and decodes it from the JSON and YAML files grammars are distributed as.
//
// A raw grammar is data only. Compile it with the textmate package before
// tokenizing.
package grammar

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingScope is returned when a grammar has no scopeName.
	ErrMissingScope = errors.New("grammar: missing scopeName")
	// ErrFormat is returned when a grammar file cannot be decoded.
	ErrFormat = errors.New("grammar: malformed grammar")
)

// Grammar is a TextMate grammar: a root scope and an ordered rule list, plus
// a repository of named rules the list can include.
type Grammar struct {
	Name              string           `json:"name,omitempty" yaml:"name,omitempty"`
	ScopeName         string           `json:"scopeName" yaml:"scopeName"`
	FileTypes         []string         `json:"fileTypes,omitempty" yaml:"fileTypes,omitempty"`
	FirstLineMatch    string           `json:"firstLineMatch,omitempty" yaml:"firstLineMatch,omitempty"`
	Patterns          []Rule           `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Repository        map[string]*Rule `json:"repository,omitempty" yaml:"repository,omitempty"`
	Injections        map[string]*Rule `json:"injections,omitempty" yaml:"injections,omitempty"`
	InjectionSelector string           `json:"injectionSelector,omitempty" yaml:"injectionSelector,omitempty"`
}

// Rule is one node of the rule tree. Which fields are set decides its
// variant: Match for a match rule, Begin with End or While for a span,
// Include for a reference, and Patterns alone for a plain group.
type Rule struct {
	Include     string `json:"include,omitempty" yaml:"include,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	ContentName string `json:"contentName,omitempty" yaml:"contentName,omitempty"`

	Match string `json:"match,omitempty" yaml:"match,omitempty"`
	Begin string `json:"begin,omitempty" yaml:"begin,omitempty"`
	End   string `json:"end,omitempty" yaml:"end,omitempty"`
	While string `json:"while,omitempty" yaml:"while,omitempty"`

	Captures      Captures `json:"captures,omitempty" yaml:"captures,omitempty"`
	BeginCaptures Captures `json:"beginCaptures,omitempty" yaml:"beginCaptures,omitempty"`
	EndCaptures   Captures `json:"endCaptures,omitempty" yaml:"endCaptures,omitempty"`
	WhileCaptures Captures `json:"whileCaptures,omitempty" yaml:"whileCaptures,omitempty"`

	Patterns   []Rule           `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Repository map[string]*Rule `json:"repository,omitempty" yaml:"repository,omitempty"`

	ApplyEndPatternLast Flag `json:"applyEndPatternLast,omitzero" yaml:"applyEndPatternLast,omitempty"`
	Disabled            Flag `json:"disabled,omitzero" yaml:"disabled,omitempty"`
}

// Captures maps a capture group number, written as a decimal string, to the
// rule applied to that group's text.
type Captures map[string]*Rule

// Groups returns the rule per group number, nil where a group has none.
// It fails if a key is not a non-negative decimal number.
func (c Captures) Groups() ([]*Rule, error) {
	if len(c) == 0 {
		return nil, nil
	}
	maxGroup := -1
	index := make(map[int]*Rule, len(c))
	for k, r := range c {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: capture key %q is not a group number", ErrFormat, k)
		}
		index[n] = r
		maxGroup = max(maxGroup, n)
	}
	out := make([]*Rule, maxGroup+1)
	for n, r := range index {
		out[n] = r
	}
	return out, nil
}

// Flag is a boolean that also accepts the 0/1 integers found in grammars
// converted from property lists.
type Flag bool

// UnmarshalJSON implements [json.Unmarshaler].
func (f *Flag) UnmarshalJSON(b []byte) error {
	switch s := strings.TrimSpace(string(b)); s {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		return fmt.Errorf("%w: invalid flag %s", ErrFormat, s)
	}
	return nil
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (f *Flag) UnmarshalYAML(n *yaml.Node) error {
	switch n.Value {
	case "true", "1":
		*f = true
	case "false", "0", "":
		*f = false
	default:
		return fmt.Errorf("%w: invalid flag %q at line %d", ErrFormat, n.Value, n.Line)
	}
	return nil
}

// Validate reports structural problems that make g impossible to compile
// regardless of its patterns.
func (g *Grammar) Validate() error {
	if g.ScopeName == "" {
		return ErrMissingScope
	}
	return nil
}

// Decode reads a grammar in its JSON form.
func Decode(data []byte) (*Grammar, error) {
	var g Grammar
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// DecodeYAML reads a grammar in its YAML form.
func DecodeYAML(data []byte) (*Grammar, error) {
	var g Grammar
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// ReadFile loads a grammar file, choosing the decoder from its extension:
// .yaml and .yml are YAML, everything else is JSON.
func ReadFile(path string) (*Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return Decode(data)
	}
}
