// Package printf expands printf-style format strings against template
// values. Argument checking happens up front so that a bad format is
// reported as an error; rendering itself is delegated to the fmt
// package after the values are converted to their native Go forms.
package printf

import (
	"fmt"
	"strings"

	"github.com/fiji-flo/gtmpl/value"
)

// verbs is the set of accepted formatting verbs.
const verbs = "vtbcdoqxXUeEfFsgG"

// Sprintf expands format using args. The format may use the flags
// '#', '0', '+', '-' and ' ', widths and precisions (literal or '*'),
// and one-based explicit argument indexes '[n]'. An unknown verb, an
// unterminated verb, a malformed index or too few arguments is an
// error. A verb applied to a value of the wrong kind renders inline as
// fmt renders it.
func Sprintf(format string, args ...value.Value) (string, error) {
	s := scanner{format: format, nargs: len(args)}
	if err := s.check(); err != nil {
		return "", err
	}
	native := make([]any, len(args))
	for i, a := range args {
		native[i] = a.Interface()
	}
	return fmt.Sprintf(format, native...), nil
}

type scanner struct {
	format string
	nargs  int
	pos    int
	argNum int // next argument to consume, 0-based.
}

func (s *scanner) check() error {
	for s.pos < len(s.format) {
		if s.format[s.pos] != '%' {
			s.pos++
			continue
		}
		s.pos++
		if s.pos < len(s.format) && s.format[s.pos] == '%' {
			s.pos++
			continue
		}
		if err := s.verb(); err != nil {
			return err
		}
	}
	return nil
}

// verb validates a single format verb. The '%' has been consumed.
func (s *scanner) verb() error {
	start := s.pos - 1
	for s.pos < len(s.format) && strings.IndexByte("#0+- ", s.format[s.pos]) >= 0 {
		s.pos++
	}
	if err := s.index(); err != nil {
		return err
	}
	if err := s.widthOrPrecision(); err != nil {
		return err
	}
	if s.pos < len(s.format) && s.format[s.pos] == '.' {
		s.pos++
		if err := s.index(); err != nil {
			return err
		}
		if err := s.widthOrPrecision(); err != nil {
			return err
		}
	}
	if err := s.index(); err != nil {
		return err
	}
	if s.pos >= len(s.format) {
		return fmt.Errorf("unterminated format verb %q", s.format[start:])
	}
	c := s.format[s.pos]
	if strings.IndexByte(verbs, c) < 0 {
		return fmt.Errorf("unrecognized format verb %%%c", c)
	}
	s.pos++
	return s.consumeArg()
}

// widthOrPrecision consumes a literal number or a '*' argument.
func (s *scanner) widthOrPrecision() error {
	if s.pos < len(s.format) && s.format[s.pos] == '*' {
		s.pos++
		return s.consumeArg()
	}
	for s.pos < len(s.format) && s.format[s.pos] >= '0' && s.format[s.pos] <= '9' {
		s.pos++
	}
	return nil
}

// index consumes an explicit one-based argument index '[n]' if present
// and redirects subsequent argument consumption to it.
func (s *scanner) index() error {
	if s.pos >= len(s.format) || s.format[s.pos] != '[' {
		return nil
	}
	end := strings.IndexByte(s.format[s.pos:], ']')
	if end < 0 {
		return fmt.Errorf("missing closing bracket in %q", s.format[s.pos:])
	}
	num := s.format[s.pos+1 : s.pos+end]
	n := 0
	for _, c := range []byte(num) {
		if c < '0' || c > '9' {
			return fmt.Errorf("bad argument index %q", num)
		}
		n = n*10 + int(c-'0')
	}
	if num == "" || n < 1 {
		return fmt.Errorf("bad argument index %q", num)
	}
	s.argNum = n - 1
	s.pos += end + 1
	return nil
}

func (s *scanner) consumeArg() error {
	if s.argNum >= s.nargs {
		return fmt.Errorf("not enough arguments for format %q", s.format)
	}
	s.argNum++
	return nil
}
