// Package pattern provides a hand-written lexer for the Oniguruma regular
// expression dialect used by TextMate grammars, and a translator from that
// dialect into the syntax accepted by github.com/dlclark/regexp2.
//
// The lexer does not build a syntax tree. It only classifies the pieces of a
// pattern that differ between the two dialects (\G, \h, \x{...}, POSIX
// bracket classes, possessive quantifiers, back-references) and passes
// everything else through byte for byte. Tokens store byte offsets into the
// source string, so [Token.Val] is allocation free.
package pattern

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Kind identifies a lexical token type.
type Kind int16

const (
	Invalid     Kind = iota // error token; Value holds error message
	EOF                     // end of input
	Literal                 // a rune copied unchanged
	Escape                  // backslash escape copied unchanged
	Meta                    // ^ $ . | )
	GroupOpen               // ( or (?
	ClassOpen               // [ or [^, optionally followed by a literal ]
	ClassClose              // ]
	Quantifier              // * + ? {n,m} with an optional lazy ?
	Comment                 // # comment in extended mode
	AnchorG                 // \G
	HexDigit                // \h
	NotHexDigit             // \H
	CodePoint               // \x{HHHH}; Rune holds the code point
	BackRef                 // \1 .. \99; Group holds the number
	PosixClass              // [:name:] inside a bracket expression; Value holds name
)

var kindNames = [...]string{
	Invalid:     "invalid",
	EOF:         "EOF",
	Literal:     "literal",
	Escape:      "escape",
	Meta:        "meta",
	GroupOpen:   "(",
	ClassOpen:   "[",
	ClassClose:  "]",
	Quantifier:  "quantifier",
	Comment:     "comment",
	AnchorG:     `\G`,
	HexDigit:    `\h`,
	NotHexDigit: `\H`,
	CodePoint:   "code point",
	BackRef:     "back-reference",
	PosixClass:  "posix class",
}

// String returns the human-readable name of k.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Token represents a single lexical token. Use [Token.Val] for zero-copy
// access to the raw source text.
type Token struct {
	Kind  Kind
	Start int    // byte offset in source (inclusive)
	End   int    // byte offset in source (exclusive)
	Value string // class name for PosixClass; error message for Invalid

	Rune  rune // CodePoint
	Group int  // BackRef

	InClass        bool // token appears inside a bracket expression
	Negated        bool // ClassOpen [^ or PosixClass [:^name:]
	LeadingBracket bool // ClassOpen followed by a literal ]
	Possessive     bool // Quantifier followed by a possessive +
}

// Val returns the raw source substring without allocating.
func (t Token) Val(src string) string { return src[t.Start:t.End] }

// ErrSyntax is the sentinel error returned by [Token.Err] for invalid tokens.
var ErrSyntax = errors.New("pattern: syntax error")

// Err returns a syntax error for [Invalid] tokens and nil for all others.
func (t Token) Err() error {
	if t.Kind != Invalid {
		return nil
	}
	return fmt.Errorf("%w: %s at offset %d", ErrSyntax, t.Value, t.Start)
}

// Lexer tokenizes an Oniguruma pattern. Create with [New] and call
// [Lexer.Scan] repeatedly to get tokens.
type Lexer struct {
	src      string // source input
	r        rune   // current rune; -1 means EOF
	rPos     int    // byte offset of current rune
	nextPos  int    // byte offset after current rune
	class    bool   // inside a bracket expression
	extended bool   // (?x) seen: whitespace and # comments are insignificant
}

// New creates a Lexer for src.
func New(src string) *Lexer {
	l := &Lexer{src: src, r: -1}
	l.next() // prime
	return l
}

// next advances to the next rune and returns it. Returns -1 at EOF.
func (l *Lexer) next() rune {
	if l.nextPos < len(l.src) {
		l.rPos = l.nextPos
		r, w := rune(l.src[l.nextPos]), 1
		if r >= utf8.RuneSelf {
			r, w = utf8.DecodeRuneInString(l.src[l.nextPos:])
		}
		l.nextPos += w
		l.r = r
	} else {
		l.rPos = len(l.src)
		l.r = -1
	}
	return l.r
}

// peek returns the next rune without advancing. Returns -1 at EOF.
func (l *Lexer) peek() rune {
	if l.nextPos < len(l.src) {
		r := rune(l.src[l.nextPos])
		if r >= utf8.RuneSelf {
			r, _ = utf8.DecodeRuneInString(l.src[l.nextPos:])
		}
		return r
	}
	return -1
}

// errToken creates an [Invalid] token and halts the lexer.
func (l *Lexer) errToken(start int, msg string) Token {
	l.r = -1 // halt further scanning
	return Token{Kind: Invalid, Start: start, End: l.rPos, Value: msg}
}

// tok builds a token of kind k spanning start up to the current rune.
func (l *Lexer) tok(k Kind, start int) Token {
	return Token{Kind: k, Start: start, End: l.rPos, InClass: l.class}
}

// Scan returns the next token. After [EOF] is returned, subsequent calls
// continue returning EOF.
func (l *Lexer) Scan() Token {
	if l.r < 0 {
		return Token{Kind: EOF, Start: l.rPos, End: l.rPos}
	}
	if l.class {
		return l.scanClass()
	}

	start := l.rPos
	switch l.r {
	case '\\':
		return l.scanEscape()
	case '[':
		return l.scanClassOpen()
	case '(':
		return l.scanGroupOpen()
	case '*', '+', '?':
		l.next()
		return l.scanQuantifierSuffix(start)
	case '{':
		if end, ok := l.intervalEnd(); ok {
			for l.rPos < end {
				l.next()
			}
			return l.scanQuantifierSuffix(start)
		}
		l.next()
		return l.tok(Literal, start)
	case '^', '$', '.', '|', ')':
		l.next()
		return l.tok(Meta, start)
	case '#':
		if l.extended {
			for l.r >= 0 && l.r != '\n' {
				l.next()
			}
			return l.tok(Comment, start)
		}
	}
	l.next()
	return l.tok(Literal, start)
}

// scanClass scans one token inside a bracket expression.
func (l *Lexer) scanClass() Token {
	start := l.rPos
	switch l.r {
	case '\\':
		return l.scanEscape()
	case ']':
		l.next()
		t := l.tok(ClassClose, start)
		l.class = false
		return t
	case '[':
		if l.peek() == ':' {
			return l.scanPosixClass()
		}
		l.next()
		return l.errToken(start, "nested bracket expressions are not supported")
	}
	l.next()
	return l.tok(Literal, start)
}

// scanClassOpen scans [ with its optional ^ and leading literal ].
// l.r must be '[' on entry.
func (l *Lexer) scanClassOpen() Token {
	start := l.rPos
	l.next()
	t := Token{Kind: ClassOpen, Start: start}
	if l.r == '^' {
		t.Negated = true
		l.next()
	}
	if l.r == ']' {
		t.LeadingBracket = true
		l.next()
	}
	if l.r < 0 {
		return l.errToken(start, "unterminated bracket expression")
	}
	t.End = l.rPos
	l.class = true
	return t
}

// scanPosixClass scans [:name:] or [:^name:]. l.r must be '[' on entry.
func (l *Lexer) scanPosixClass() Token {
	start := l.rPos
	l.next() // [
	l.next() // :
	t := Token{Kind: PosixClass, InClass: true, Start: start}
	if l.r == '^' {
		t.Negated = true
		l.next()
	}
	nameStart := l.rPos
	for 'a' <= l.r && l.r <= 'z' {
		l.next()
	}
	name := l.src[nameStart:l.rPos]
	if name == "" || l.r != ':' || l.peek() != ']' {
		return l.errToken(start, "malformed POSIX bracket expression")
	}
	l.next()
	l.next()
	t.End = l.rPos
	t.Value = name
	return t
}

// scanGroupOpen scans ( and an immediately following ?. When the group
// carries inline options that switch on x, extended mode starts.
// l.r must be '(' on entry.
func (l *Lexer) scanGroupOpen() Token {
	start := l.rPos
	l.next()
	if l.r == '?' {
		l.next()
		if l.enablesExtended() {
			l.extended = true
		}
	}
	return l.tok(GroupOpen, start)
}

// enablesExtended reports whether the option letters at the current position
// turn on extended mode, as in (?x) or (?ix:.
func (l *Lexer) enablesExtended() bool {
	for i := l.rPos; i < len(l.src); i++ {
		switch c := l.src[i]; {
		case c == 'x':
			return true
		case c == '-' || c == ')' || c == ':':
			return false
		case c < 'a' || c > 'z':
			return false
		}
	}
	return false
}

// intervalEnd reports whether the current { opens a {n}, {n,}, {,m} or {n,m}
// interval and returns the offset just past its closing brace.
func (l *Lexer) intervalEnd() (int, bool) {
	digits, comma := 0, false
	for i := l.rPos + 1; i < len(l.src); i++ {
		switch c := l.src[i]; {
		case '0' <= c && c <= '9':
			digits++
		case c == ',' && !comma:
			comma = true
		case c == '}':
			return i + 1, digits > 0
		default:
			return 0, false
		}
	}
	return 0, false
}

// scanQuantifierSuffix consumes a lazy ? or possessive + after a quantifier
// body that ends at the current rune.
func (l *Lexer) scanQuantifierSuffix(start int) Token {
	t := Token{Kind: Quantifier, Start: start}
	switch l.r {
	case '?':
		l.next()
	case '+':
		t.Possessive = true
		l.next()
	}
	t.End = l.rPos
	return t
}

// scanEscape scans a backslash escape. l.r must be '\\' on entry.
func (l *Lexer) scanEscape() Token {
	start := l.rPos
	c := l.next()
	if c < 0 {
		return l.errToken(start, "trailing backslash")
	}
	l.next()

	switch {
	case c == 'h':
		return l.tok(HexDigit, start)
	case c == 'H':
		if l.class {
			return l.errToken(start, `\H inside a bracket expression is not supported`)
		}
		return l.tok(NotHexDigit, start)
	case c == 'G' && !l.class:
		return l.tok(AnchorG, start)
	case c == 'x' && l.r == '{':
		return l.scanCodePoint(start)
	case (c == 'p' || c == 'P') && l.r == '{':
		for l.r >= 0 && l.r != '}' {
			l.next()
		}
		if l.r < 0 {
			return l.errToken(start, "unterminated property escape")
		}
		l.next()
		return l.tok(Escape, start)
	case '1' <= c && c <= '9' && !l.class:
		n := int(c - '0')
		for isDigit(l.r) && n < 10 {
			n = n*10 + int(l.r-'0')
			l.next()
		}
		t := l.tok(BackRef, start)
		t.Group = n
		return t
	}
	return l.tok(Escape, start)
}

// scanCodePoint scans the {HHHH} part of \x{HHHH}. l.r must be '{' on entry.
func (l *Lexer) scanCodePoint(start int) Token {
	l.next() // consume '{'
	var r rune
	n := 0
	for hexVal(l.r) >= 0 {
		r = r*16 + hexVal(l.r)
		n++
		if n > 8 {
			return l.errToken(start, "code point escape too long")
		}
		l.next()
	}
	if n == 0 || l.r != '}' {
		return l.errToken(start, `malformed \x{...} escape`)
	}
	l.next()
	if r > utf8.MaxRune {
		return l.errToken(start, "code point out of range")
	}
	t := l.tok(CodePoint, start)
	t.Rune = r
	return t
}

// hexVal returns the numeric value of hex digit r, or -1 if not a hex digit.
func hexVal(r rune) rune {
	switch {
	case '0' <= r && r <= '9':
		return r - '0'
	case 'a' <= r && r <= 'f':
		return r - 'a' + 10
	case 'A' <= r && r <= 'F':
		return r - 'A' + 10
	default:
		return -1
	}
}

// isDigit reports whether r is an ASCII digit.
func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}
