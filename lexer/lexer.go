// Package lexer tokenizes template source text.
//
// The lexer is a state machine over the raw input: each state is a function
// that consumes input, queues zero or more items, and returns the next state.
// Tokens are pulled one at a time with Next; the machine only runs far enough
// to produce the next token, so no token is computed before it is requested.
// The stream is finite and ends in exactly one EOF or error item.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	leftDelim       = "{{"
	rightDelim      = "}}"
	leftComment     = "/*"
	rightComment    = "*/"
	leftTrimMarker  = "- "
	rightTrimMarker = " -"
)

const eof = -1

// stateFn represents the state of the lexer as a function that returns the
// next state.
type stateFn func(*Lexer) stateFn

// Lexer holds the state of the scanner.
type Lexer struct {
	input     string  // the string being scanned
	state     stateFn // the next lexing function to enter
	pos       int     // current position in the input
	start     int     // start position of the current item
	width     int     // width of the last rune read from input
	line      int     // 1 + number of newlines seen
	startLine int     // start line of the current item
	items     []Item  // queue of scanned items
	parenDepth int    // nesting depth of ( ) exprs
}

// New creates a lexer for the given input.
func New(input string) *Lexer {
	return &Lexer{
		input:     input,
		state:     lexText,
		line:      1,
		startLine: 1,
	}
}

// Next returns the next item from the input. After the EOF or error item has
// been returned, every further call returns EOF.
func (l *Lexer) Next() Item {
	for len(l.items) == 0 && l.state != nil {
		l.state = l.state(l)
	}
	if len(l.items) == 0 {
		return Item{Typ: ItemEOF, Pos: l.pos, Line: l.line}
	}
	item := l.items[0]
	l.items = l.items[1:]
	return item
}

// All runs the lexer to completion and collects every item.
func (l *Lexer) All() []Item {
	var items []Item
	for {
		item := l.Next()
		items = append(items, item)
		if item.Typ == ItemEOF || item.Typ == ItemError {
			return items
		}
	}
}

// next returns the next rune in the input.
func (l *Lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	if r == '\n' {
		l.line++
	}
	return r
}

// peek returns but does not consume the next rune.
func (l *Lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// backup steps back one rune. Can only be called once per call of next.
func (l *Lexer) backup() {
	l.pos -= l.width
	if l.width == 1 && l.input[l.pos] == '\n' {
		l.line--
	}
}

// emit queues an item for the span from start to the current position.
func (l *Lexer) emit(t ItemType) {
	l.items = append(l.items, Item{Typ: t, Pos: l.start, Val: l.input[l.start:l.pos], Line: l.startLine})
	l.start = l.pos
	l.startLine = l.line
}

// ignore skips the input scanned so far, accounting for newlines the scan
// jumped over without calling next.
func (l *Lexer) ignore() {
	l.line += strings.Count(l.input[l.start:l.pos], "\n")
	l.start = l.pos
	l.startLine = l.line
}

// accept consumes the next rune if it is in the valid set.
func (l *Lexer) accept(valid string) bool {
	if strings.ContainsRune(valid, l.next()) {
		return true
	}
	l.backup()
	return false
}

// acceptRun consumes a run of runes from the valid set.
func (l *Lexer) acceptRun(valid string) {
	for l.accept(valid) {
	}
}

// errorf queues an error item and terminates the scan.
func (l *Lexer) errorf(format string, args ...any) stateFn {
	l.items = append(l.items, Item{Typ: ItemError, Pos: l.start, Val: fmt.Sprintf(format, args...), Line: l.line})
	return nil
}

// lexText scans until the next left delimiter.
func lexText(l *Lexer) stateFn {
	l.width = 0
	x := strings.Index(l.input[l.pos:], leftDelim)
	if x < 0 {
		l.pos = len(l.input)
		if l.pos > l.start {
			l.line += strings.Count(l.input[l.start:l.pos], "\n")
			l.emit(ItemText)
		}
		l.emit(ItemEOF)
		return nil
	}
	l.pos += x
	ld := l.pos + len(leftDelim)
	trim := 0
	if strings.HasPrefix(l.input[ld:], leftTrimMarker) {
		trim = rightTrimLength(l.input[l.start:l.pos])
	}
	l.pos -= trim
	if l.pos > l.start {
		l.line += strings.Count(l.input[l.start:l.pos], "\n")
		l.emit(ItemText)
	}
	l.pos += trim
	l.ignore()
	return lexLeftDelim
}

// lexLeftDelim scans the left delimiter, which is known to be present,
// possibly with a trim marker or a comment.
func lexLeftDelim(l *Lexer) stateFn {
	l.pos += len(leftDelim)
	trim := strings.HasPrefix(l.input[l.pos:], leftTrimMarker)
	afterMarker := 0
	if trim {
		afterMarker = len(leftTrimMarker)
	}
	if strings.HasPrefix(l.input[l.pos+afterMarker:], leftComment) {
		l.pos += afterMarker
		l.ignore()
		return lexComment
	}
	l.emit(ItemLeftDelim)
	l.pos += afterMarker
	l.ignore()
	l.parenDepth = 0
	return lexInsideAction
}

// lexComment scans a comment. The left comment marker is known to be present.
func lexComment(l *Lexer) stateFn {
	l.pos += len(leftComment)
	i := strings.Index(l.input[l.pos:], rightComment)
	if i < 0 {
		return l.errorf("unclosed comment")
	}
	l.pos += i + len(rightComment)
	delim, trim := l.atRightDelim()
	if !delim {
		return l.errorf("comment ends before closing delimiter")
	}
	if trim {
		l.pos += len(rightTrimMarker)
	}
	l.pos += len(rightDelim)
	if trim {
		l.pos += leftTrimLength(l.input[l.pos:])
	}
	l.ignore()
	return lexText
}

// lexRightDelim scans the right delimiter, which is known to be present,
// possibly with a trim marker.
func lexRightDelim(l *Lexer) stateFn {
	trim := strings.HasPrefix(l.input[l.pos:], rightTrimMarker)
	if trim {
		l.pos += len(rightTrimMarker)
		l.ignore()
	}
	l.pos += len(rightDelim)
	l.emit(ItemRightDelim)
	if trim {
		l.pos += leftTrimLength(l.input[l.pos:])
		l.ignore()
	}
	return lexText
}

// atRightDelim reports whether the input is at a right delimiter, possibly
// preceded by a trim marker.
func (l *Lexer) atRightDelim() (delim, trim bool) {
	if strings.HasPrefix(l.input[l.pos:], rightDelim) {
		return true, false
	}
	if strings.HasPrefix(l.input[l.pos:], rightTrimMarker+rightDelim) {
		return true, true
	}
	return false, false
}

// lexInsideAction scans the elements inside action delimiters.
func lexInsideAction(l *Lexer) stateFn {
	if delim, _ := l.atRightDelim(); delim {
		if l.parenDepth == 0 {
			return lexRightDelim
		}
		return l.errorf("unclosed left paren")
	}
	switch r := l.next(); {
	case r == eof || r == '\r' || r == '\n':
		return l.errorf("unclosed action")
	case r == '"':
		return lexQuote
	case r == '`':
		return lexRawQuote
	case r == '$':
		return lexVariable
	case r == '\'':
		return lexChar
	case r == '(':
		l.emit(ItemLeftParen)
		l.parenDepth++
	case r == ')':
		l.emit(ItemRightParen)
		if l.parenDepth == 0 {
			return l.errorf("unexpected right paren %#U", r)
		}
		l.parenDepth--
	case r == ':':
		if l.next() != '=' {
			return l.errorf("expected :=")
		}
		l.emit(ItemColonEquals)
	case r == '|':
		l.emit(ItemPipe)
	case r == '.':
		// Special look-ahead for ".field" so we don't break l.backup().
		if l.pos < len(l.input) {
			if c := l.input[l.pos]; c >= '0' && c <= '9' {
				l.backup()
				return lexNumber
			}
		}
		return lexField
	case r == '+' || r == '-' || ('0' <= r && r <= '9'):
		l.backup()
		return lexNumber
	case isSpace(r):
		l.backup()
		return lexSpace
	case isAlphaNumeric(r):
		l.backup()
		return lexIdentifier
	case r < utf8.RuneSelf && unicode.IsPrint(r):
		l.emit(ItemChar)
	default:
		return l.errorf("unrecognized character in action: %#U", r)
	}
	return lexInsideAction
}

// lexSpace scans a run of space characters; one space is known to be present.
// The last space must not be consumed if it belongs to a trim marker before
// the right delimiter.
func lexSpace(l *Lexer) stateFn {
	var r rune
	var numSpaces int
	for {
		r = l.peek()
		if !isSpace(r) {
			break
		}
		l.next()
		numSpaces++
	}
	if strings.HasPrefix(l.input[l.pos-1:], rightTrimMarker+rightDelim) {
		l.backup()
		if numSpaces == 1 {
			return lexRightDelim
		}
	}
	l.emit(ItemSpace)
	return lexInsideAction
}

// lexIdentifier scans an alphanumeric word and classifies it.
func lexIdentifier(l *Lexer) stateFn {
	for {
		r := l.next()
		if isAlphaNumeric(r) {
			continue
		}
		l.backup()
		word := l.input[l.start:l.pos]
		if !l.atTerminator() {
			return l.errorf("bad character %#U", r)
		}
		switch {
		case word == "true" || word == "false":
			l.emit(ItemBool)
		case key[word] > ItemKeyword:
			l.emit(key[word])
		case word[0] == '.':
			l.emit(ItemField)
		default:
			l.emit(ItemIdentifier)
		}
		return lexInsideAction
	}
}

// lexField scans a field: a '.' has been seen.
func lexField(l *Lexer) stateFn {
	return lexFieldOrVariable(l, ItemField)
}

// lexVariable scans a variable: a '$' has been seen.
func lexVariable(l *Lexer) stateFn {
	return lexFieldOrVariable(l, ItemVariable)
}

// lexFieldOrVariable scans a field or variable; the leading '.' or '$' has
// been consumed. A lone '.' is the cursor, a lone '$' is the root variable.
func lexFieldOrVariable(l *Lexer, typ ItemType) stateFn {
	if l.atTerminator() {
		if typ == ItemVariable {
			l.emit(ItemVariable)
		} else {
			l.emit(ItemDot)
		}
		return lexInsideAction
	}
	var r rune
	for {
		r = l.next()
		if !isAlphaNumeric(r) {
			l.backup()
			break
		}
	}
	if !l.atTerminator() {
		return l.errorf("bad character %#U", r)
	}
	l.emit(typ)
	return lexInsideAction
}

// atTerminator reports whether the input is at a valid termination character
// for an identifier, field or variable.
func (l *Lexer) atTerminator() bool {
	r := l.peek()
	if r == eof || unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', '|', ':', ')', '(':
		return true
	}
	// This is what the grammar uses to detect a delimiter.
	return strings.HasPrefix(rightDelim, string(r))
}

// lexChar scans a character constant; the initial quote is already scanned.
func lexChar(l *Lexer) stateFn {
Loop:
	for {
		switch l.next() {
		case '\\':
			if r := l.next(); r != eof && r != '\n' {
				break
			}
			fallthrough
		case eof, '\n':
			return l.errorf("unterminated character constant")
		case '\'':
			break Loop
		}
	}
	l.emit(ItemCharConstant)
	return lexInsideAction
}

// lexQuote scans a quoted string; the initial quote is already scanned.
func lexQuote(l *Lexer) stateFn {
Loop:
	for {
		switch l.next() {
		case '\\':
			if r := l.next(); r != eof && r != '\n' {
				break
			}
			fallthrough
		case eof, '\n':
			return l.errorf("unterminated quoted string")
		case '"':
			break Loop
		}
	}
	l.emit(ItemString)
	return lexInsideAction
}

// lexRawQuote scans a raw quoted string; the initial backquote is already
// scanned. Raw strings may span newlines.
func lexRawQuote(l *Lexer) stateFn {
	for {
		switch l.next() {
		case eof:
			return l.errorf("unterminated raw quoted string")
		case '`':
			l.emit(ItemRawString)
			return lexInsideAction
		}
	}
}

// lexNumber scans a number: decimal, hex, float, with an optional sign.
func lexNumber(l *Lexer) stateFn {
	if !l.scanNumber() {
		return l.errorf("bad number syntax: %q", l.input[l.start:l.pos])
	}
	l.emit(ItemNumber)
	return lexInsideAction
}

func (l *Lexer) scanNumber() bool {
	l.accept("+-")
	digits := "0123456789"
	if l.accept("0") && l.accept("xX") {
		digits = "0123456789abcdefABCDEF"
		l.acceptRun(digits)
	} else {
		l.acceptRun(digits)
		if l.accept(".") {
			l.acceptRun(digits)
		}
		if l.accept("eE") {
			l.accept("+-")
			l.acceptRun("0123456789")
		}
	}
	// Next thing must not be alphanumeric.
	if isAlphaNumeric(l.peek()) {
		l.next()
		return false
	}
	return true
}

// isSpace reports whether r is a space character inside an action. Newlines
// are not spaces there; an action must close on the line it opened.
func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// isAlphaNumeric reports whether r is a letter, digit or underscore.
func isAlphaNumeric(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// rightTrimLength returns the number of trailing whitespace bytes of s.
func rightTrimLength(s string) int {
	return len(s) - len(strings.TrimRight(s, " \t\r\n"))
}

// leftTrimLength returns the number of leading whitespace bytes of s.
func leftTrimLength(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t\r\n"))
}
