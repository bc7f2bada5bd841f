package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fiji-flo/gtmpl/lexer"
	"github.com/fiji-flo/gtmpl/value"
)

// Pos is a byte offset into the original template text.
type Pos int

func (p Pos) Position() Pos { return p }

// NodeType identifies the type of a parse tree node.
type NodeType int

// Type returns itself and provides an easy default implementation
// for embedding in a Node.
func (t NodeType) Type() NodeType { return t }

const (
	NodeText       NodeType = iota // Plain text.
	NodeAction                     // A non-control action such as a field evaluation.
	NodeBool                       // A boolean constant.
	NodeChain                      // A sequence of field accesses.
	NodeCommand                    // An element of a pipeline.
	NodeDot                        // The cursor, dot.
	nodeElse                       // An else action. Not added to tree.
	nodeEnd                        // An end action. Not added to tree.
	NodeField                      // A field or method name.
	NodeIdentifier                 // An identifier; always a function name.
	NodeIf                         // An if action.
	NodeList                       // A list of Nodes.
	NodeNil                        // An untyped nil constant.
	NodeNumber                     // A numerical constant.
	NodePipe                       // A pipeline of commands.
	NodeRange                      // A range action.
	NodeString                     // A string constant.
	NodeTemplate                   // A template invocation action.
	NodeVariable                   // A $ variable.
	NodeWith                       // A with action.
)

// Node is an element in the parse tree. The set of node types is
// closed; only the types defined in this package implement it.
type Node interface {
	Type() NodeType
	String() string
	// writeTo writes the String output to the builder.
	writeTo(sb *strings.Builder)
	Position() Pos // byte position of start of node in full original input text
	// TreeID identifies the tree in which the node was parsed.
	TreeID() int
	// tree restricts implementations to this package.
	tree() *Tree
}

// treeRef ties a node to the tree it was parsed in.
type treeRef struct {
	tr *Tree
}

func (r treeRef) tree() *Tree { return r.tr }

func (r treeRef) TreeID() int {
	if r.tr == nil {
		return 0
	}
	return r.tr.ID
}

// ListNode holds a sequence of nodes.
type ListNode struct {
	NodeType
	Pos
	treeRef
	Nodes []Node // The element nodes in lexical order.
}

func (t *Tree) newList(pos Pos) *ListNode {
	return &ListNode{NodeType: NodeList, Pos: pos, treeRef: treeRef{t}}
}

func (l *ListNode) append(n Node) {
	l.Nodes = append(l.Nodes, n)
}

func (l *ListNode) String() string {
	var sb strings.Builder
	l.writeTo(&sb)
	return sb.String()
}

func (l *ListNode) writeTo(sb *strings.Builder) {
	for _, n := range l.Nodes {
		n.writeTo(sb)
	}
}

// TextNode holds plain text.
type TextNode struct {
	NodeType
	Pos
	treeRef
	Text string // The text; may span newlines.
}

func (t *Tree) newText(pos Pos, text string) *TextNode {
	return &TextNode{NodeType: NodeText, Pos: pos, treeRef: treeRef{t}, Text: text}
}

var textFormat = "%s" // changed to "%q" in tests for better error messages.

func (n *TextNode) String() string {
	return fmt.Sprintf(textFormat, n.Text)
}

func (n *TextNode) writeTo(sb *strings.Builder) {
	sb.WriteString(n.String())
}

// PipeNode holds a pipeline with optional declaration.
type PipeNode struct {
	NodeType
	Pos
	treeRef
	Line int             // The line number in the input.
	Decl []*VariableNode // Variables in lexical order.
	Cmds []*CommandNode  // The commands in lexical order.
}

func (t *Tree) newPipeline(pos Pos, line int, decl []*VariableNode) *PipeNode {
	return &PipeNode{NodeType: NodePipe, Pos: pos, treeRef: treeRef{t}, Line: line, Decl: decl}
}

func (p *PipeNode) append(command *CommandNode) {
	p.Cmds = append(p.Cmds, command)
}

func (p *PipeNode) String() string {
	var sb strings.Builder
	p.writeTo(&sb)
	return sb.String()
}

func (p *PipeNode) writeTo(sb *strings.Builder) {
	if len(p.Decl) > 0 {
		for i, v := range p.Decl {
			if i > 0 {
				sb.WriteString(", ")
			}
			v.writeTo(sb)
		}
		sb.WriteString(" := ")
	}
	for i, c := range p.Cmds {
		if i > 0 {
			sb.WriteString(" | ")
		}
		c.writeTo(sb)
	}
}

// ActionNode holds an action (something bounded by delimiters).
// Control actions have their own node types.
type ActionNode struct {
	NodeType
	Pos
	treeRef
	Line int       // The line number in the input.
	Pipe *PipeNode // The pipeline in the action.
}

func (t *Tree) newAction(pos Pos, line int, pipe *PipeNode) *ActionNode {
	return &ActionNode{NodeType: NodeAction, Pos: pos, treeRef: treeRef{t}, Line: line, Pipe: pipe}
}

func (n *ActionNode) String() string {
	var sb strings.Builder
	n.writeTo(&sb)
	return sb.String()
}

func (n *ActionNode) writeTo(sb *strings.Builder) {
	sb.WriteString("{{")
	n.Pipe.writeTo(sb)
	sb.WriteString("}}")
}

// CommandNode holds a command (a pipeline inside an evaluating action).
type CommandNode struct {
	NodeType
	Pos
	treeRef
	Args []Node // Arguments in lexical order: Identifier, field, or constant.
}

func (t *Tree) newCommand(pos Pos) *CommandNode {
	return &CommandNode{NodeType: NodeCommand, Pos: pos, treeRef: treeRef{t}}
}

func (c *CommandNode) append(arg Node) {
	c.Args = append(c.Args, arg)
}

func (c *CommandNode) String() string {
	var sb strings.Builder
	c.writeTo(&sb)
	return sb.String()
}

func (c *CommandNode) writeTo(sb *strings.Builder) {
	for i, arg := range c.Args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if arg, ok := arg.(*PipeNode); ok {
			sb.WriteByte('(')
			arg.writeTo(sb)
			sb.WriteByte(')')
			continue
		}
		arg.writeTo(sb)
	}
}

// IdentifierNode holds an identifier, always a function name.
type IdentifierNode struct {
	NodeType
	Pos
	treeRef
	Ident string // The identifier's name.
}

func (t *Tree) newIdentifier(pos Pos, ident string) *IdentifierNode {
	return &IdentifierNode{NodeType: NodeIdentifier, Pos: pos, treeRef: treeRef{t}, Ident: ident}
}

func (i *IdentifierNode) String() string {
	return i.Ident
}

func (i *IdentifierNode) writeTo(sb *strings.Builder) {
	sb.WriteString(i.String())
}

// VariableNode holds a list of variable names, possibly with chained
// field accesses. The dollar sign is part of the (first) name.
type VariableNode struct {
	NodeType
	Pos
	treeRef
	Ident []string // Variable name and fields in lexical order.
}

func (t *Tree) newVariable(pos Pos, ident string) *VariableNode {
	return &VariableNode{NodeType: NodeVariable, Pos: pos, treeRef: treeRef{t}, Ident: strings.Split(ident, ".")}
}

func (v *VariableNode) String() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

func (v *VariableNode) writeTo(sb *strings.Builder) {
	for i, id := range v.Ident {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(id)
	}
}

// DotNode holds the special identifier '.'.
type DotNode struct {
	NodeType
	Pos
	treeRef
}

func (t *Tree) newDot(pos Pos) *DotNode {
	return &DotNode{NodeType: NodeDot, Pos: pos, treeRef: treeRef{t}}
}

func (d *DotNode) String() string {
	return "."
}

func (d *DotNode) writeTo(sb *strings.Builder) {
	sb.WriteString(d.String())
}

// NilNode holds the special identifier 'nil' representing an untyped nil constant.
type NilNode struct {
	NodeType
	Pos
	treeRef
}

func (t *Tree) newNil(pos Pos) *NilNode {
	return &NilNode{NodeType: NodeNil, Pos: pos, treeRef: treeRef{t}}
}

func (n *NilNode) String() string {
	return "nil"
}

func (n *NilNode) writeTo(sb *strings.Builder) {
	sb.WriteString(n.String())
}

// FieldNode holds a field (identifier starting with '.').
// The names may be chained ('.x.y'). The periods are dropped from each ident.
type FieldNode struct {
	NodeType
	Pos
	treeRef
	Ident []string // The identifiers in lexical order.
}

func (t *Tree) newField(pos Pos, ident string) *FieldNode {
	return &FieldNode{NodeType: NodeField, Pos: pos, treeRef: treeRef{t}, Ident: strings.Split(ident[1:], ".")}
}

func (f *FieldNode) String() string {
	var sb strings.Builder
	f.writeTo(&sb)
	return sb.String()
}

func (f *FieldNode) writeTo(sb *strings.Builder) {
	for _, id := range f.Ident {
		sb.WriteByte('.')
		sb.WriteString(id)
	}
}

// ChainNode holds a term followed by a chain of field accesses.
// The names may be chained ('.x.y'). The periods are dropped from each ident.
type ChainNode struct {
	NodeType
	Pos
	treeRef
	Node  Node
	Field []string // The identifiers in lexical order.
}

func (t *Tree) newChain(pos Pos, node Node) *ChainNode {
	return &ChainNode{NodeType: NodeChain, Pos: pos, treeRef: treeRef{t}, Node: node}
}

// Add adds the named field (which should start with a period) to the end of the chain.
func (c *ChainNode) Add(field string) {
	if len(field) == 0 || field[0] != '.' {
		panic("no dot in field")
	}
	field = field[1:] // Remove leading dot.
	if field == "" {
		panic("empty field")
	}
	c.Field = append(c.Field, field)
}

func (c *ChainNode) String() string {
	var sb strings.Builder
	c.writeTo(&sb)
	return sb.String()
}

func (c *ChainNode) writeTo(sb *strings.Builder) {
	if _, ok := c.Node.(*PipeNode); ok {
		sb.WriteByte('(')
		c.Node.writeTo(sb)
		sb.WriteByte(')')
	} else {
		c.Node.writeTo(sb)
	}
	for _, field := range c.Field {
		sb.WriteByte('.')
		sb.WriteString(field)
	}
}

// BoolNode holds a boolean constant.
type BoolNode struct {
	NodeType
	Pos
	treeRef
	True bool        // The value of the boolean constant.
	Val  value.Value // The constant realized as a value.
}

func (t *Tree) newBool(pos Pos, true_ bool) *BoolNode {
	return &BoolNode{NodeType: NodeBool, Pos: pos, treeRef: treeRef{t}, True: true_, Val: value.FromBool(true_)}
}

func (b *BoolNode) String() string {
	if b.True {
		return "true"
	}
	return "false"
}

func (b *BoolNode) writeTo(sb *strings.Builder) {
	sb.WriteString(b.String())
}

// NumberNode holds a numeric constant: signed integer, unsigned integer
// or float. The value is parsed and stored under all representations
// that can hold it.
type NumberNode struct {
	NodeType
	Pos
	treeRef
	IsInt   bool        // Number has an integral value.
	IsUint  bool        // Number has an unsigned integral value.
	IsFloat bool        // Number has a floating-point value.
	Int64   int64       // The signed integer value.
	Uint64  uint64      // The unsigned integer value.
	Float64 float64     // The floating-point value.
	Text    string      // The original textual representation from the input.
	Val     value.Value // The constant realized as a value.
}

func (t *Tree) newNumber(pos Pos, text string, typ lexer.ItemType) (*NumberNode, error) {
	n := &NumberNode{NodeType: NodeNumber, Pos: pos, treeRef: treeRef{t}, Text: text}
	if typ == lexer.ItemCharConstant {
		r, _, tail, err := strconv.UnquoteChar(text[1:], text[0])
		if err != nil {
			return nil, err
		}
		if tail != "'" {
			return nil, fmt.Errorf("malformed character constant: %s", text)
		}
		n.Int64 = int64(r)
		n.IsInt = true
		n.Uint64 = uint64(r)
		n.IsUint = true
		n.Float64 = float64(r)
		n.IsFloat = true
		n.Val = value.FromInt(n.Int64)
		return n, nil
	}
	// Do integer test first so we get 0x123 etc.
	u, err := strconv.ParseUint(text, 0, 64) // will fail for -0; fixed below.
	if err == nil {
		n.IsUint = true
		n.Uint64 = u
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err == nil {
		n.IsInt = true
		n.Int64 = i
		if i == 0 {
			n.IsUint = true // in case of -0.
			n.Uint64 = u
		}
	}
	// If an integer extraction succeeded, promote the float.
	if n.IsInt {
		n.IsFloat = true
		n.Float64 = float64(n.Int64)
	} else if n.IsUint {
		n.IsFloat = true
		n.Float64 = float64(n.Uint64)
	} else {
		f, err := strconv.ParseFloat(text, 64)
		if err == nil {
			// If we parsed it as a float but it looks like an integer,
			// it's a huge number too large to fit in an int. Reject it.
			if !strings.ContainsAny(text, ".eEpP") {
				return nil, fmt.Errorf("integer overflow: %q", text)
			}
			n.IsFloat = true
			n.Float64 = f
			// If a floating-point extraction succeeded, extract the int if needed.
			if !n.IsInt && float64(int64(f)) == f {
				n.IsInt = true
				n.Int64 = int64(f)
			}
			if !n.IsUint && float64(uint64(f)) == f {
				n.IsUint = true
				n.Uint64 = uint64(f)
			}
		}
	}
	if !n.IsInt && !n.IsUint && !n.IsFloat {
		return nil, fmt.Errorf("illegal number syntax: %q", text)
	}
	// A literal spelled with a decimal point or exponent stays a float
	// even when it has an exact integer value.
	switch {
	case n.IsFloat && !isHexInt(text) && strings.ContainsAny(text, ".eEpP"):
		n.Val = value.FromFloat(n.Float64)
	case n.IsInt:
		n.Val = value.FromInt(n.Int64)
	case n.IsUint:
		n.Val = value.FromUint(n.Uint64)
	default:
		n.Val = value.FromFloat(n.Float64)
	}
	return n, nil
}

func isHexInt(s string) bool {
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	return len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func (n *NumberNode) String() string {
	return n.Text
}

func (n *NumberNode) writeTo(sb *strings.Builder) {
	sb.WriteString(n.String())
}

// StringNode holds a string constant. The value has been "unquoted".
type StringNode struct {
	NodeType
	Pos
	treeRef
	Quoted string      // The original text of the string, with quotes.
	Text   string      // The string, after quote processing.
	Val    value.Value // The constant realized as a value.
}

func (t *Tree) newString(pos Pos, orig, text string) *StringNode {
	return &StringNode{NodeType: NodeString, Pos: pos, treeRef: treeRef{t}, Quoted: orig, Text: text, Val: value.FromString(text)}
}

func (s *StringNode) String() string {
	return s.Quoted
}

func (s *StringNode) writeTo(sb *strings.Builder) {
	sb.WriteString(s.String())
}

// endNode represents an {{end}} action.
// It does not appear in the final parse tree.
type endNode struct {
	NodeType
	Pos
	treeRef
}

func (t *Tree) newEnd(pos Pos) *endNode {
	return &endNode{NodeType: nodeEnd, Pos: pos, treeRef: treeRef{t}}
}

func (e *endNode) String() string {
	return "{{end}}"
}

func (e *endNode) writeTo(sb *strings.Builder) {
	sb.WriteString(e.String())
}

// elseNode represents an {{else}} action. Does not appear in the final tree.
type elseNode struct {
	NodeType
	Pos
	treeRef
	Line int // The line number in the input.
}

func (t *Tree) newElse(pos Pos, line int) *elseNode {
	return &elseNode{NodeType: nodeElse, Pos: pos, treeRef: treeRef{t}, Line: line}
}

func (e *elseNode) String() string {
	return "{{else}}"
}

func (e *elseNode) writeTo(sb *strings.Builder) {
	sb.WriteString(e.String())
}

// BranchNode is the common representation of if, range, and with.
type BranchNode struct {
	NodeType
	Pos
	treeRef
	Line     int       // The line number in the input.
	Pipe     *PipeNode // The pipeline to be evaluated.
	List     *ListNode // What to execute if the value is non-empty.
	ElseList *ListNode // What to execute if the value is empty (nil if absent).
}

func (b *BranchNode) String() string {
	var sb strings.Builder
	b.writeTo(&sb)
	return sb.String()
}

func (b *BranchNode) writeTo(sb *strings.Builder) {
	name := ""
	switch b.NodeType {
	case NodeIf:
		name = "if"
	case NodeRange:
		name = "range"
	case NodeWith:
		name = "with"
	default:
		panic("unknown branch type")
	}
	sb.WriteString("{{")
	sb.WriteString(name)
	sb.WriteByte(' ')
	b.Pipe.writeTo(sb)
	sb.WriteString("}}")
	b.List.writeTo(sb)
	if b.ElseList != nil {
		sb.WriteString("{{else}}")
		b.ElseList.writeTo(sb)
	}
	sb.WriteString("{{end}}")
}

// IfNode represents an {{if}} action and its commands.
type IfNode struct {
	BranchNode
}

func (t *Tree) newIf(pos Pos, line int, pipe *PipeNode, list, elseList *ListNode) *IfNode {
	return &IfNode{BranchNode{NodeType: NodeIf, Pos: pos, treeRef: treeRef{t}, Line: line, Pipe: pipe, List: list, ElseList: elseList}}
}

// RangeNode represents a {{range}} action and its commands.
type RangeNode struct {
	BranchNode
}

func (t *Tree) newRange(pos Pos, line int, pipe *PipeNode, list, elseList *ListNode) *RangeNode {
	return &RangeNode{BranchNode{NodeType: NodeRange, Pos: pos, treeRef: treeRef{t}, Line: line, Pipe: pipe, List: list, ElseList: elseList}}
}

// WithNode represents a {{with}} action and its commands.
type WithNode struct {
	BranchNode
}

func (t *Tree) newWith(pos Pos, line int, pipe *PipeNode, list, elseList *ListNode) *WithNode {
	return &WithNode{BranchNode{NodeType: NodeWith, Pos: pos, treeRef: treeRef{t}, Line: line, Pipe: pipe, List: list, ElseList: elseList}}
}

// TemplateNode represents a {{template}} action.
type TemplateNode struct {
	NodeType
	Pos
	treeRef
	Line     int       // The line number in the input.
	Name     string    // The name of the template (unquoted); empty when dynamic.
	NamePipe *PipeNode // The pipeline producing the name; nil when static.
	Pipe     *PipeNode // The command to evaluate as dot for the template.
}

func (t *Tree) newTemplate(pos Pos, line int, name string, namePipe, pipe *PipeNode) *TemplateNode {
	return &TemplateNode{NodeType: NodeTemplate, Pos: pos, treeRef: treeRef{t}, Line: line, Name: name, NamePipe: namePipe, Pipe: pipe}
}

func (n *TemplateNode) String() string {
	var sb strings.Builder
	n.writeTo(&sb)
	return sb.String()
}

func (n *TemplateNode) writeTo(sb *strings.Builder) {
	sb.WriteString("{{template ")
	if n.NamePipe != nil {
		sb.WriteByte('(')
		n.NamePipe.writeTo(sb)
		sb.WriteByte(')')
	} else {
		sb.WriteString(strconv.Quote(n.Name))
	}
	if n.Pipe != nil {
		sb.WriteByte(' ')
		n.Pipe.writeTo(sb)
	}
	sb.WriteString("}}")
}

// IsEmptyTree reports whether this tree (node) is empty of everything but space or comments.
func IsEmptyTree(n Node) bool {
	switch n := n.(type) {
	case nil:
		return true
	case *ActionNode:
	case *IfNode:
	case *ListNode:
		for _, node := range n.Nodes {
			if !IsEmptyTree(node) {
				return false
			}
		}
		return true
	case *RangeNode:
	case *TemplateNode:
	case *TextNode:
		return len(strings.TrimSpace(n.Text)) == 0
	case *WithNode:
	default:
		panic("unknown node: " + n.String())
	}
	return false
}
