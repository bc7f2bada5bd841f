package gtmpl

import "fmt"

// ErrorKind describes the type of error.
type ErrorKind int

const (
	ErrSyntax ErrorKind = iota
	ErrIncompleteTemplate
	ErrUnknownNode
	ErrUndefinedVariable
	ErrBadField
	ErrInvalidRange
	ErrNotAFunction
	ErrUnknownFunction
	ErrFunctionCall
	ErrBadTemplateName
	ErrTemplateNotFound
	ErrMaxDepth
	ErrWrite
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrIncompleteTemplate:
		return "incomplete template"
	case ErrUnknownNode:
		return "unknown node"
	case ErrUndefinedVariable:
		return "undefined variable"
	case ErrBadField:
		return "bad field access"
	case ErrInvalidRange:
		return "invalid range"
	case ErrNotAFunction:
		return "not a function"
	case ErrUnknownFunction:
		return "unknown function"
	case ErrFunctionCall:
		return "function call failed"
	case ErrBadTemplateName:
		return "bad template name"
	case ErrTemplateNotFound:
		return "template not found"
	case ErrMaxDepth:
		return "max template depth exceeded"
	case ErrWrite:
		return "write failed"
	default:
		return "error"
	}
}

// Error represents an error that occurred while rendering a template.
type Error struct {
	Kind    ErrorKind
	Message string
	Name    string // template name
	Line    int    // line in the template source, 1-based; 0 when unknown
}

func (e *Error) Error() string {
	if e.Name != "" && e.Line > 0 {
		return fmt.Sprintf("template: %s:%d: %s: %s", e.Name, e.Line, e.Kind, e.Message)
	}
	if e.Name != "" {
		return fmt.Sprintf("template: %s: %s: %s", e.Name, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates a new error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WithName adds the template name to an error.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// WithLine adds the source line to an error.
func (e *Error) WithLine(line int) *Error {
	e.Line = line
	return e
}
