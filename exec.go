package gtmpl

import (
	"fmt"
	"io"

	"github.com/fiji-flo/gtmpl/parse"
	"github.com/fiji-flo/gtmpl/value"
)

// maxExecDepth is the maximum nesting of {{template}} invocations.
// A template that invokes itself unconditionally fails with a depth
// error instead of exhausting the stack.
const maxExecDepth = 100000

// variable is one name binding on the scope stack.
type variable struct {
	name  string
	value value.Value
}

// state holds the evaluation state during template rendering. The
// scope stack is a flat slice; frames are delimited by marks taken
// before a branch or iteration and restored afterwards, and lookups
// walk the stack backwards so inner declarations shadow outer ones.
type state struct {
	tmpl  *Template
	wr    io.Writer
	vars  []variable
	line  int // line of the action being evaluated, for error context
	depth int // nesting of {{template}} invocations
}

func (s *state) errorf(kind ErrorKind, format string, args ...any) error {
	return NewError(kind, fmt.Sprintf(format, args...)).WithName(s.tmpl.Name).WithLine(s.line)
}

func (s *state) push(name string, v value.Value) {
	s.vars = append(s.vars, variable{name, v})
}

func (s *state) mark() int {
	return len(s.vars)
}

func (s *state) pop(mark int) {
	s.vars = s.vars[:mark]
}

// varValue resolves a variable by walking the scope stack backwards.
func (s *state) varValue(name string) (value.Value, error) {
	for i := len(s.vars) - 1; i >= 0; i-- {
		if s.vars[i].name == name {
			return s.vars[i].value, nil
		}
	}
	return value.Value{}, s.errorf(ErrUndefinedVariable, "variable %s not found", name)
}

func (s *state) walk(dot value.Value, node parse.Node) error {
	switch node := node.(type) {
	case *parse.ActionNode:
		s.line = node.Line
		val, err := s.evalPipeline(dot, node.Pipe)
		if err != nil {
			return err
		}
		// An action whose pipeline declares variables exists for the
		// binding and produces no output.
		if len(node.Pipe.Decl) == 0 {
			return s.printValue(val)
		}
	case *parse.ListNode:
		for _, n := range node.Nodes {
			if err := s.walk(dot, n); err != nil {
				return err
			}
		}
	case *parse.TextNode:
		if _, err := io.WriteString(s.wr, node.Text); err != nil {
			return s.errorf(ErrWrite, "%s", err)
		}
	case *parse.IfNode:
		s.line = node.Line
		return s.walkIfOrWith(parse.NodeIf, dot, &node.BranchNode)
	case *parse.WithNode:
		s.line = node.Line
		return s.walkIfOrWith(parse.NodeWith, dot, &node.BranchNode)
	case *parse.RangeNode:
		s.line = node.Line
		return s.walkRange(dot, node)
	case *parse.TemplateNode:
		s.line = node.Line
		return s.walkTemplate(dot, node)
	default:
		return s.errorf(ErrUnknownNode, "unknown node: %s", node)
	}
	return nil
}

func (s *state) walkIfOrWith(typ parse.NodeType, dot value.Value, b *parse.BranchNode) error {
	defer s.pop(s.mark())
	val, err := s.evalPipeline(dot, b.Pipe)
	if err != nil {
		return err
	}
	if val.IsTrue() {
		if typ == parse.NodeWith {
			return s.walk(val, b.List)
		}
		return s.walk(dot, b.List)
	}
	if b.ElseList != nil {
		return s.walk(dot, b.ElseList)
	}
	return nil
}

func (s *state) walkRange(dot value.Value, r *parse.RangeNode) error {
	defer s.pop(s.mark())
	val, err := s.evalPipeline(dot, r.Pipe)
	if err != nil {
		return err
	}

	// With one declared variable it is bound to the element; with two,
	// the first is bound to the key or index and the second to the
	// element. Each iteration runs in its own scope frame.
	oneIteration := func(key, elem value.Value) error {
		mark := s.mark()
		switch len(r.Pipe.Decl) {
		case 1:
			s.push(r.Pipe.Decl[0].Ident[0], elem)
		case 2:
			s.push(r.Pipe.Decl[0].Ident[0], key)
			s.push(r.Pipe.Decl[1].Ident[0], elem)
		}
		err := s.walk(elem, r.List)
		s.pop(mark)
		return err
	}

	switch val.Kind() {
	case value.KindArray:
		elems, _ := val.AsSlice()
		for i, elem := range elems {
			if err := oneIteration(value.FromInt(int64(i)), elem); err != nil {
				return err
			}
		}
		if len(elems) > 0 {
			return nil
		}
	case value.KindMap, value.KindObject:
		keys := val.Keys()
		for _, k := range keys {
			elem, _ := val.MapKey(k)
			if err := oneIteration(value.FromString(k), elem); err != nil {
				return err
			}
		}
		if len(keys) > 0 {
			return nil
		}
	default:
		return s.errorf(ErrInvalidRange, "invalid range %s", val)
	}
	if r.ElseList != nil {
		return s.walk(dot, r.ElseList)
	}
	return nil
}

func (s *state) walkTemplate(dot value.Value, t *parse.TemplateNode) error {
	name := t.Name
	if t.NamePipe != nil {
		val, err := s.evalPipeline(dot, t.NamePipe)
		if err != nil {
			return err
		}
		str, ok := val.AsString()
		if !ok {
			return s.errorf(ErrBadTemplateName, "template name pipeline must yield a string, got %s", val.Kind())
		}
		name = str
	}
	tree := s.tmpl.treeSet[name]
	if tree == nil || tree.Root == nil {
		return s.errorf(ErrTemplateNotFound, "template %q not defined", name)
	}
	if s.depth == maxExecDepth {
		return s.errorf(ErrMaxDepth, "exceeded maximum template depth (%d)", maxExecDepth)
	}
	newDot := dot
	if t.Pipe != nil {
		var err error
		newDot, err = s.evalPipeline(dot, t.Pipe)
		if err != nil {
			return err
		}
	}
	// The invoked tree starts with a fresh scope holding only "$".
	sub := *s
	sub.depth++
	sub.vars = []variable{{"$", newDot}}
	return sub.walk(newDot, tree.Root)
}

// evalPipeline threads a running value through the commands and binds
// any declared variables to the final value in the current frame.
func (s *state) evalPipeline(dot value.Value, pipe *parse.PipeNode) (value.Value, error) {
	s.line = pipe.Line
	var val value.Value
	haveVal := false
	for _, cmd := range pipe.Cmds {
		var err error
		val, err = s.evalCommand(dot, cmd, val, haveVal)
		if err != nil {
			return value.Value{}, err
		}
		haveVal = true
	}
	for _, v := range pipe.Decl {
		s.push(v.Ident[0], val)
	}
	return val, nil
}

func (s *state) evalCommand(dot value.Value, cmd *parse.CommandNode, final value.Value, haveFinal bool) (value.Value, error) {
	firstWord := cmd.Args[0]
	switch n := firstWord.(type) {
	case *parse.FieldNode:
		return s.evalFieldChainOn(dot, dot, n.Ident, cmd.Args, final, haveFinal)
	case *parse.ChainNode:
		return s.evalChainNode(dot, n, cmd.Args, final, haveFinal)
	case *parse.IdentifierNode:
		return s.evalFunction(dot, n.Ident, cmd.Args, final, haveFinal)
	case *parse.VariableNode:
		return s.evalVariableNode(dot, n, cmd.Args, final, haveFinal)
	case *parse.PipeNode:
		// Parenthesized pipeline as command head.
		if err := s.notAFunction(cmd.Args, haveFinal); err != nil {
			return value.Value{}, err
		}
		return s.evalPipeline(dot, n)
	}
	if err := s.notAFunction(cmd.Args, haveFinal); err != nil {
		return value.Value{}, err
	}
	switch word := firstWord.(type) {
	case *parse.BoolNode:
		return word.Val, nil
	case *parse.DotNode:
		return dot, nil
	case *parse.NilNode:
		return value.Nil(), nil
	case *parse.NumberNode:
		return word.Val, nil
	case *parse.StringNode:
		return word.Val, nil
	}
	return value.Value{}, s.errorf(ErrUnknownNode, "cannot evaluate command %s", firstWord)
}

func (s *state) notAFunction(args []parse.Node, haveFinal bool) error {
	if len(args) > 1 || haveFinal {
		return s.errorf(ErrNotAFunction, "can't give argument to non-function %s", args[0])
	}
	return nil
}

func (s *state) evalVariableNode(dot value.Value, v *parse.VariableNode, args []parse.Node, final value.Value, haveFinal bool) (value.Value, error) {
	val, err := s.varValue(v.Ident[0])
	if err != nil {
		return value.Value{}, err
	}
	if len(v.Ident) == 1 {
		// A bare variable that holds a function and has call arguments
		// is invoked like any function head.
		if fn, ok := val.AsFunc(); ok && (len(args) > 1 || haveFinal) {
			return s.callFunc(v.Ident[0], fn, dot, args, final, haveFinal, value.Value{}, false)
		}
		if err := s.notAFunction(args, haveFinal); err != nil {
			return value.Value{}, err
		}
		return val, nil
	}
	return s.evalFieldChainOn(dot, val, v.Ident[1:], args, final, haveFinal)
}

func (s *state) evalChainNode(dot value.Value, chain *parse.ChainNode, args []parse.Node, final value.Value, haveFinal bool) (value.Value, error) {
	if len(chain.Field) == 0 {
		return value.Value{}, s.errorf(ErrBadField, "internal error: no fields in chain node")
	}
	if _, ok := chain.Node.(*parse.NilNode); ok {
		return value.Value{}, s.errorf(ErrBadField, "indirection through explicit nil in %s", chain)
	}
	// Evaluate the base with no arguments; the chain's final field
	// carries the call arguments.
	base, err := s.evalArg(dot, chain.Node)
	if err != nil {
		return value.Value{}, err
	}
	return s.evalFieldChainOn(dot, base, chain.Field, args, final, haveFinal)
}

// evalFieldChainOn applies the dotted path to receiver. Only the last
// segment may consume the command's arguments.
func (s *state) evalFieldChainOn(dot, receiver value.Value, ident []string, args []parse.Node, final value.Value, haveFinal bool) (value.Value, error) {
	n := len(ident)
	for i := 0; i < n-1; i++ {
		var err error
		receiver, err = s.evalField(dot, ident[i], nil, value.Value{}, false, receiver)
		if err != nil {
			return value.Value{}, err
		}
	}
	return s.evalField(dot, ident[n-1], args, final, haveFinal, receiver)
}

// evalField resolves one path segment against receiver. Map lookups
// substitute the no-value sentinel for a missing key; object lookups
// fail. A resolved function value is invoked, receiving the enclosing
// receiver as its first argument.
func (s *state) evalField(dot value.Value, fieldName string, args []parse.Node, final value.Value, haveFinal bool, receiver value.Value) (value.Value, error) {
	hasArgs := len(args) > 1 || haveFinal
	switch receiver.Kind() {
	case value.KindMap, value.KindObject:
		field, ok := receiver.MapKey(fieldName)
		if !ok {
			if receiver.Kind() == value.KindMap {
				return value.NoValue(), nil
			}
			return value.Value{}, s.errorf(ErrBadField, "no field %s for %s", fieldName, receiver)
		}
		if fn, ok := field.AsFunc(); ok {
			return s.callFunc("."+fieldName, fn, dot, args, final, haveFinal, receiver, true)
		}
		if hasArgs {
			return value.Value{}, s.errorf(ErrNotAFunction, "%s has arguments but cannot be invoked as function", fieldName)
		}
		return field, nil
	}
	return value.Value{}, s.errorf(ErrBadField, "only maps and objects have fields, got %s", receiver.Kind())
}

func (s *state) evalFunction(dot value.Value, name string, args []parse.Node, final value.Value, haveFinal bool) (value.Value, error) {
	fn, ok := s.tmpl.funcs[name]
	if !ok {
		return value.Value{}, s.errorf(ErrUnknownFunction, "%s is not a defined function", name)
	}
	return s.callFunc(name, fn, dot, args, final, haveFinal, value.Value{}, false)
}

// callFunc evaluates the arguments and invokes fn. For a function
// reached through a field access, the receiver is passed as the first
// argument. The previous pipeline stage's value, if any, is appended
// as the last argument.
func (s *state) callFunc(name string, fn value.Func, dot value.Value, args []parse.Node, final value.Value, haveFinal bool, receiver value.Value, haveReceiver bool) (value.Value, error) {
	argv := make([]value.Value, 0, len(args)+1)
	if haveReceiver {
		argv = append(argv, receiver)
	}
	if len(args) > 1 {
		for _, arg := range args[1:] {
			v, err := s.evalArg(dot, arg)
			if err != nil {
				return value.Value{}, err
			}
			argv = append(argv, v)
		}
	}
	if haveFinal {
		argv = append(argv, final)
	}
	out, err := fn(argv)
	if err != nil {
		return value.Value{}, s.errorf(ErrFunctionCall, "error calling %s: %s", name, err)
	}
	return out, nil
}

// evalArg evaluates one argument of a command in isolation.
func (s *state) evalArg(dot value.Value, n parse.Node) (value.Value, error) {
	switch n := n.(type) {
	case *parse.DotNode:
		return dot, nil
	case *parse.NilNode:
		return value.Nil(), nil
	case *parse.FieldNode:
		return s.evalFieldChainOn(dot, dot, n.Ident, []parse.Node{n}, value.Value{}, false)
	case *parse.VariableNode:
		return s.evalVariableNode(dot, n, []parse.Node{n}, value.Value{}, false)
	case *parse.PipeNode:
		return s.evalPipeline(dot, n)
	case *parse.IdentifierNode:
		return s.evalFunction(dot, n.Ident, []parse.Node{n}, value.Value{}, false)
	case *parse.ChainNode:
		return s.evalChainNode(dot, n, []parse.Node{n}, value.Value{}, false)
	case *parse.BoolNode:
		return n.Val, nil
	case *parse.NumberNode:
		return n.Val, nil
	case *parse.StringNode:
		return n.Val, nil
	}
	return value.Value{}, s.errorf(ErrUnknownNode, "cannot handle %s as argument", n)
}

func (s *state) printValue(val value.Value) error {
	if _, err := io.WriteString(s.wr, val.String()); err != nil {
		return s.errorf(ErrWrite, "%s", err)
	}
	return nil
}
