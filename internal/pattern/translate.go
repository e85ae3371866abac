package pattern

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// never is substituted for \G when the scan position is not the anchor. It
// is an empty negative lookahead and therefore can never match.
const never = `(?!)`

// Translation is an Oniguruma pattern rewritten for regexp2.
type Translation struct {
	// Source is the pattern as written in the grammar.
	Source string
	// Anchored is the regexp2 form in which \G matches at the start position.
	Anchored string
	// Unanchored is the regexp2 form in which \G never matches.
	Unanchored string
	// HasAnchorG reports whether the pattern uses \G at all.
	HasAnchorG bool
	// HasBackRefs reports whether the pattern contains numbered
	// back-references. In end and while patterns these refer to the
	// captures of the begin match.
	HasBackRefs bool
}

// posixClasses maps POSIX bracket class names to bracket expression
// content. The second entry is the negated form, empty when the class
// cannot be negated inside a bracket expression.
var posixClasses = map[string][2]string{
	"alnum":  {`\p{L}\p{M}\p{Nd}`, ""},
	"alpha":  {`\p{L}\p{M}`, ""},
	"ascii":  {`\u0000-\u007F`, ""},
	"blank":  {`\t\p{Zs}`, ""},
	"cntrl":  {`\p{Cc}`, `\P{Cc}`},
	"digit":  {`\d`, `\D`},
	"lower":  {`\p{Ll}`, `\P{Ll}`},
	"punct":  {`\p{P}`, `\P{P}`},
	"space":  {`\s`, `\S`},
	"upper":  {`\p{Lu}`, `\P{Lu}`},
	"word":   {`\w`, `\W`},
	"xdigit": {`0-9A-Fa-f`, ""},
}

// Translate rewrites src into regexp2 syntax. It fails with [ErrSyntax] when
// src uses a construct that has no regexp2 equivalent; regexp2 itself
// reports any remaining syntax errors when the result is compiled.
func Translate(src string) (Translation, error) {
	t := Translation{Source: src}
	var anchored, unanchored strings.Builder
	anchored.Grow(len(src))
	unanchored.Grow(len(src))

	l := New(src)
	for {
		tok := l.Scan()
		switch tok.Kind {
		case EOF:
			t.Anchored = anchored.String()
			t.Unanchored = unanchored.String()
			return t, nil
		case Invalid:
			return t, tok.Err()
		case AnchorG:
			t.HasAnchorG = true
			anchored.WriteString(`\G`)
			unanchored.WriteString(never)
			continue
		case BackRef:
			t.HasBackRefs = true
		}
		s, err := rewrite(tok, src)
		if err != nil {
			return t, err
		}
		anchored.WriteString(s)
		unanchored.WriteString(s)
	}
}

// rewrite returns the regexp2 text for a single token.
func rewrite(tok Token, src string) (string, error) {
	switch tok.Kind {
	case Literal:
		if !tok.InClass && src[tok.Start] == '{' {
			return `\{`, nil
		}
	case Quantifier:
		if tok.Possessive {
			// regexp2 has no possessive quantifiers; the greedy form accepts
			// a superset of the same inputs.
			return src[tok.Start : tok.End-1], nil
		}
	case ClassOpen:
		var b strings.Builder
		b.WriteByte('[')
		if tok.Negated {
			b.WriteByte('^')
		}
		if tok.LeadingBracket {
			b.WriteString(`\]`)
		}
		return b.String(), nil
	case HexDigit:
		if tok.InClass {
			return `0-9a-fA-F`, nil
		}
		return `[0-9a-fA-F]`, nil
	case NotHexDigit:
		return `[^0-9a-fA-F]`, nil
	case CodePoint:
		return codePoint(tok.Rune), nil
	case PosixClass:
		forms, ok := posixClasses[tok.Value]
		if !ok {
			return "", fmt.Errorf("%w: unknown POSIX class %q at offset %d", ErrSyntax, tok.Value, tok.Start)
		}
		if !tok.Negated {
			return forms[0], nil
		}
		if forms[1] == "" {
			return "", fmt.Errorf("%w: negated POSIX class %q is not supported at offset %d", ErrSyntax, tok.Value, tok.Start)
		}
		return forms[1], nil
	}
	return tok.Val(src), nil
}

// codePoint renders r as an escape usable both inside and outside bracket
// expressions. regexp2 has no \x{...} form; runes beyond the BMP are written
// literally since none of them is a metacharacter.
func codePoint(r rune) string {
	if r > 0xFFFF {
		return string(r)
	}
	return fmt.Sprintf(`\u%04X`, r)
}

// ResolveBackRefs replaces each numbered back-reference in src with the
// escaped text of the corresponding capture. References to groups that did
// not participate, or that do not exist, become empty. The result is still in
// the Oniguruma dialect and must be passed through [Translate].
func ResolveBackRefs(src string, captures []string) (string, error) {
	var b strings.Builder
	b.Grow(len(src))
	l := New(src)
	for {
		tok := l.Scan()
		switch tok.Kind {
		case EOF:
			return b.String(), nil
		case Invalid:
			return "", tok.Err()
		case BackRef:
			if tok.Group < len(captures) {
				b.WriteString(regexp2.Escape(captures[tok.Group]))
			}
		default:
			b.WriteString(tok.Val(src))
		}
	}
}
