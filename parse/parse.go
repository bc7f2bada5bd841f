// Package parse builds parse trees for templates. Clients should use
// the facilities of the root package to construct templates rather
// than this one, which provides shared internal data structures not
// intended for general use.
package parse

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/fiji-flo/gtmpl/lexer"
)

// Mode controls optional parser behaviour.
type Mode uint

const (
	// DynamicTemplateNames permits a pipeline in place of the quoted
	// name of a template invocation.
	DynamicTemplateNames Mode = 1 << iota
)

// Tree is the representation of a single parsed template.
type Tree struct {
	Name      string    // name of the template represented by the tree.
	ParseName string    // name of the top-level template during parsing, for error messages.
	Root      *ListNode // top-level root of the tree.
	ID        int       // session-unique identifier, assigned once and never reused.
	Mode      Mode      // parsing mode.
	text      string    // text parsed to create the template (or its parent)
	// Parsing only; cleared after parse.
	funcs     map[string]bool
	lex       *lexer.Lexer
	token     [3]lexer.Item // three-token lookahead for parser.
	peekCount int
	vars      []string // variables defined at the moment.
	treeSet   map[string]*Tree
	nextID    *int
}

// New allocates a new parse tree with the given name.
func New(name string) *Tree {
	return &Tree{Name: name}
}

// Parse returns a map from template name to Tree, created by parsing the
// template described in the argument string. If an error is encountered,
// parsing stops and an empty map is returned with the error. The funcs
// set names every function a template may call; identifiers outside the
// set are rejected at parse time.
func Parse(name, text string, funcs map[string]bool, mode Mode) (map[string]*Tree, error) {
	treeSet := make(map[string]*Tree)
	t := New(name)
	t.Mode = mode
	t.text = text
	_, err := t.Parse(text, funcs, treeSet)
	return treeSet, err
}

// next returns the next token.
func (t *Tree) next() lexer.Item {
	if t.peekCount > 0 {
		t.peekCount--
	} else {
		t.token[0] = t.lex.Next()
	}
	return t.token[t.peekCount]
}

// backup backs the input stream up one token.
func (t *Tree) backup() {
	t.peekCount++
}

// backup2 backs the input stream up two tokens.
// The zeroth token is already there.
func (t *Tree) backup2(t1 lexer.Item) {
	t.token[1] = t1
	t.peekCount = 2
}

// backup3 backs the input stream up three tokens.
// The zeroth token is already there.
func (t *Tree) backup3(t2, t1 lexer.Item) {
	t.token[1] = t1
	t.token[2] = t2
	t.peekCount = 3
}

// peek returns but does not consume the next token.
func (t *Tree) peek() lexer.Item {
	if t.peekCount > 0 {
		return t.token[t.peekCount-1]
	}
	t.peekCount = 1
	t.token[0] = t.lex.Next()
	return t.token[0]
}

// nextNonSpace returns the next non-space token.
func (t *Tree) nextNonSpace() (token lexer.Item) {
	for {
		token = t.next()
		if token.Typ != lexer.ItemSpace {
			break
		}
	}
	return token
}

// peekNonSpace returns but does not consume the next non-space token.
func (t *Tree) peekNonSpace() lexer.Item {
	token := t.nextNonSpace()
	t.backup()
	return token
}

// errorf formats the error and terminates processing.
func (t *Tree) errorf(format string, args ...any) {
	t.Root = nil
	format = fmt.Sprintf("template: %s:%d: %s", t.ParseName, t.token[0].Line, format)
	panic(fmt.Errorf(format, args...))
}

// error terminates processing.
func (t *Tree) error(err error) {
	t.errorf("%s", err)
}

// expect consumes the next token and guarantees it has the required type.
func (t *Tree) expect(expected lexer.ItemType, context string) lexer.Item {
	token := t.nextNonSpace()
	if token.Typ != expected {
		t.unexpected(token, context)
	}
	return token
}

// expectOneOf consumes the next token and guarantees it has one of the required types.
func (t *Tree) expectOneOf(expected1, expected2 lexer.ItemType, context string) lexer.Item {
	token := t.nextNonSpace()
	if token.Typ != expected1 && token.Typ != expected2 {
		t.unexpected(token, context)
	}
	return token
}

// unexpected complains about the token and terminates processing.
func (t *Tree) unexpected(token lexer.Item, context string) {
	t.errorf("unexpected %s in %s", token, context)
}

// recover is the handler that turns panics into returns from the top level of Parse.
func (t *Tree) recover(errp *error) {
	e := recover()
	if e != nil {
		if _, ok := e.(runtime.Error); ok {
			panic(e)
		}
		if t != nil {
			t.stopParse()
		}
		*errp = e.(error)
	}
}

// startParse initializes the parser, using the lexer.
func (t *Tree) startParse(funcs map[string]bool, lex *lexer.Lexer, treeSet map[string]*Tree, nextID *int) {
	t.Root = nil
	t.lex = lex
	t.vars = []string{"$"}
	t.funcs = funcs
	t.treeSet = treeSet
	t.nextID = nextID
	*nextID++
	t.ID = *nextID
}

// stopParse terminates parsing.
func (t *Tree) stopParse() {
	t.lex = nil
	t.vars = nil
	t.funcs = nil
	t.treeSet = nil
	t.nextID = nil
}

// Parse parses the template definition string to construct a representation
// of the template for execution. Embedded template definitions are added to
// the treeSet map.
func (t *Tree) Parse(text string, funcs map[string]bool, treeSet map[string]*Tree) (tree *Tree, err error) {
	defer t.recover(&err)
	t.ParseName = t.Name
	var id int
	t.startParse(funcs, lexer.New(text), treeSet, &id)
	t.text = text
	t.parse()
	t.add()
	t.stopParse()
	return t, nil
}

// add adds tree to t.treeSet.
func (t *Tree) add() {
	tree := t.treeSet[t.Name]
	if tree == nil || IsEmptyTree(tree.Root) {
		t.treeSet[t.Name] = t
		return
	}
	if !IsEmptyTree(t.Root) {
		t.errorf("multiple definition of template %q", t.Name)
	}
}

// parse is the top-level parser for a template, essentially the same
// as itemList except it also parses {{define}} actions.
// It runs to EOF.
func (t *Tree) parse() {
	t.Root = t.newList(Pos(t.peek().Pos))
	for t.peek().Typ != lexer.ItemEOF {
		if t.peek().Typ == lexer.ItemLeftDelim {
			delim := t.next()
			if t.nextNonSpace().Typ == lexer.ItemDefine {
				newT := New("definition") // name will be updated once we know it.
				newT.text = t.text
				newT.Mode = t.Mode
				newT.ParseName = t.ParseName
				newT.startParse(t.funcs, t.lex, t.treeSet, t.nextID)
				newT.parseDefinition()
				continue
			}
			t.backup2(delim)
		}
		switch n := t.textOrAction(); n.Type() {
		case nodeEnd, nodeElse:
			t.errorf("unexpected %s", n)
		default:
			t.Root.append(n)
		}
	}
}

// parseDefinition parses a {{define}} ... {{end}} template definition and
// installs the definition in t.treeSet. The "define" keyword has already
// been scanned.
func (t *Tree) parseDefinition() {
	const context = "define clause"
	name := t.expectOneOf(lexer.ItemString, lexer.ItemRawString, context)
	var err error
	t.Name, err = strconv.Unquote(name.Val)
	if err != nil {
		t.error(err)
	}
	t.expect(lexer.ItemRightDelim, context)
	var end Node
	t.Root, end = t.itemList()
	if end.Type() != nodeEnd {
		t.errorf("unexpected %s in %s", end, context)
	}
	t.add()
	t.stopParse()
}

// itemList:
//
//	textOrAction*
//
// Terminates at {{end}} or {{else}}, returned separately.
func (t *Tree) itemList() (list *ListNode, next Node) {
	list = t.newList(Pos(t.peekNonSpace().Pos))
	for t.peekNonSpace().Typ != lexer.ItemEOF {
		n := t.textOrAction()
		switch n.Type() {
		case nodeEnd, nodeElse:
			return list, n
		}
		list.append(n)
	}
	t.errorf("unexpected EOF")
	return
}

// textOrAction:
//
//	text | action
func (t *Tree) textOrAction() Node {
	switch token := t.nextNonSpace(); token.Typ {
	case lexer.ItemText:
		return t.newText(Pos(token.Pos), token.Val)
	case lexer.ItemLeftDelim:
		return t.action()
	default:
		t.unexpected(token, "input")
	}
	return nil
}

// Action:
//
//	control
//	command ("|" command)*
//
// Left delim is past. Now get actions.
// First word could be a keyword such as range.
func (t *Tree) action() (n Node) {
	switch token := t.nextNonSpace(); token.Typ {
	case lexer.ItemBlock:
		return t.blockControl()
	case lexer.ItemElse:
		return t.elseControl()
	case lexer.ItemEnd:
		return t.endControl()
	case lexer.ItemIf:
		return t.ifControl()
	case lexer.ItemRange:
		return t.rangeControl()
	case lexer.ItemTemplate:
		return t.templateControl()
	case lexer.ItemWith:
		return t.withControl()
	}
	t.backup()
	token := t.peek()
	// Do not pop variables; they persist until "end".
	return t.newAction(Pos(token.Pos), token.Line, t.pipeline("command", lexer.ItemRightDelim))
}

// Pipeline:
//
//	declarations? command ('|' command)*
func (t *Tree) pipeline(context string, end lexer.ItemType) (pipe *PipeNode) {
	token := t.peekNonSpace()
	pipe = t.newPipeline(Pos(token.Pos), token.Line, nil)
	// Are there declarations or assignments?
decls:
	if v := t.peekNonSpace(); v.Typ == lexer.ItemVariable {
		t.next()
		// Since space is a token, we need 3-token look-ahead here in the worst case:
		// in "$x foo" we need to read "foo" (as opposed to ":=") to know that $x is
		// an argument variable rather than a declaration.
		tokenAfterVariable := t.peek()
		next := t.peekNonSpace()
		switch {
		case next.Typ == lexer.ItemColonEquals:
			t.nextNonSpace()
			pipe.Decl = append(pipe.Decl, t.newVariable(Pos(v.Pos), v.Val))
			t.vars = append(t.vars, v.Val)
		case next.Typ == lexer.ItemChar && next.Val == ",":
			t.nextNonSpace()
			pipe.Decl = append(pipe.Decl, t.newVariable(Pos(v.Pos), v.Val))
			t.vars = append(t.vars, v.Val)
			if context == "range" && len(pipe.Decl) < 2 {
				switch t.peekNonSpace().Typ {
				case lexer.ItemVariable, lexer.ItemRightDelim, lexer.ItemRightParen:
					// second initialized variable in a range pipeline
					goto decls
				default:
					t.errorf("range can only initialize variables")
				}
			}
			t.errorf("too many declarations in %s", context)
		case tokenAfterVariable.Typ == lexer.ItemSpace:
			t.backup3(v, tokenAfterVariable)
		default:
			t.backup2(v)
		}
	}
	for {
		switch token := t.nextNonSpace(); token.Typ {
		case end:
			// At this point, the pipeline is complete.
			t.checkPipeline(pipe, context)
			return
		case lexer.ItemBool, lexer.ItemCharConstant, lexer.ItemDot, lexer.ItemField,
			lexer.ItemIdentifier, lexer.ItemNumber, lexer.ItemNil, lexer.ItemRawString,
			lexer.ItemString, lexer.ItemVariable, lexer.ItemLeftParen:
			t.backup()
			pipe.append(t.command())
		default:
			t.unexpected(token, context)
		}
	}
}

func (t *Tree) checkPipeline(pipe *PipeNode, context string) {
	// Reject empty pipelines.
	if len(pipe.Cmds) == 0 {
		t.errorf("missing value for %s", context)
	}
	// Only the first command of a pipeline can start with a non executable operand.
	for i, c := range pipe.Cmds[1:] {
		switch c.Args[0].Type() {
		case NodeBool, NodeDot, NodeNil, NodeNumber, NodeString:
			// With A|B|C, pipeline stage 2 is B.
			t.errorf("non executable command in pipeline stage %d", i+2)
		}
	}
}

func (t *Tree) parseControl(context string) (pos Pos, line int, pipe *PipeNode, list, elseList *ListNode) {
	defer t.popVars(len(t.vars))
	pipe = t.pipeline(context, lexer.ItemRightDelim)
	var next Node
	list, next = t.itemList()
	switch next.Type() {
	case nodeEnd: // done
	case nodeElse:
		if context == "if" && t.peek().Typ == lexer.ItemIf {
			// Special case for "else if". If the "else" is followed immediately by
			// an "if", the elseControl will have left the "if" token pending. Treat
			//	{{if a}}_{{else if b}}_{{end}}
			// as
			//	{{if a}}_{{else}}{{if b}}_{{end}}{{end}}.
			// To do this, parse the "if" as usual and stop at it {{end}}; the
			// subsequent{{end}} is assumed. This technique works even for long
			// if-else-if chains.
			t.next() // Consume the "if" token.
			elseList = t.newList(next.Position())
			elseList.append(t.ifControl())
		} else {
			elseList, next = t.itemList()
			if next.Type() != nodeEnd {
				t.errorf("expected end; found %s", next)
			}
		}
	}
	return pipe.Position(), pipe.Line, pipe, list, elseList
}

// If:
//
//	{{if pipeline}} itemList {{end}}
//	{{if pipeline}} itemList {{else}} itemList {{end}}
//
// If keyword is past.
func (t *Tree) ifControl() Node {
	return t.newIf(t.parseControl("if"))
}

// Range:
//
//	{{range pipeline}} itemList {{end}}
//	{{range pipeline}} itemList {{else}} itemList {{end}}
//
// Range keyword is past.
func (t *Tree) rangeControl() Node {
	return t.newRange(t.parseControl("range"))
}

// With:
//
//	{{with pipeline}} itemList {{end}}
//	{{with pipeline}} itemList {{else}} itemList {{end}}
//
// With keyword is past.
func (t *Tree) withControl() Node {
	return t.newWith(t.parseControl("with"))
}

// End:
//
//	{{end}}
//
// End keyword is past.
func (t *Tree) endControl() Node {
	return t.newEnd(Pos(t.expect(lexer.ItemRightDelim, "end").Pos))
}

// Else:
//
//	{{else}}
//
// Else keyword is past.
func (t *Tree) elseControl() Node {
	peek := t.peekNonSpace()
	// The "{{else if ... " and "{{else}}{{if ... " forms are treated identically.
	if peek.Typ == lexer.ItemIf {
		return t.newElse(Pos(peek.Pos), peek.Line)
	}
	token := t.expect(lexer.ItemRightDelim, "else")
	return t.newElse(Pos(token.Pos), token.Line)
}

// Block:
//
//	{{block stringValue pipeline}}
//
// Block keyword is past.
// The name must be something that can evaluate to a string.
// The pipeline is mandatory.
func (t *Tree) blockControl() Node {
	const context = "block clause"
	token := t.nextNonSpace()
	name := t.parseTemplateName(token, context)
	pipe := t.pipeline(context, lexer.ItemRightDelim)

	block := New(name) // name will be updated once we know it.
	block.text = t.text
	block.Mode = t.Mode
	block.ParseName = t.ParseName
	block.startParse(t.funcs, t.lex, t.treeSet, t.nextID)
	var end Node
	block.Root, end = block.itemList()
	if end.Type() != nodeEnd {
		t.errorf("unexpected %s in %s", end, context)
	}
	block.add()
	block.stopParse()

	return t.newTemplate(Pos(token.Pos), token.Line, name, nil, pipe)
}

// Template:
//
//	{{template stringValue pipeline}}
//
// Template keyword is past. The name must be something that can evaluate
// to a string. When DynamicTemplateNames is set, the name may instead be
// a pipeline operand evaluated at execution time.
func (t *Tree) templateControl() Node {
	const context = "template clause"
	token := t.nextNonSpace()
	var name string
	var namePipe *PipeNode
	switch token.Typ {
	case lexer.ItemString, lexer.ItemRawString:
		name = t.parseTemplateName(token, context)
	default:
		if t.Mode&DynamicTemplateNames == 0 {
			t.unexpected(token, context)
		}
		t.backup()
		op := t.operand()
		if op == nil {
			t.unexpected(token, context)
		}
		namePipe = t.newPipeline(Pos(token.Pos), token.Line, nil)
		cmd := t.newCommand(Pos(token.Pos))
		cmd.append(op)
		namePipe.append(cmd)
	}
	var pipe *PipeNode
	if t.nextNonSpace().Typ != lexer.ItemRightDelim {
		t.backup()
		// Do not pop variables; they persist until "end".
		pipe = t.pipeline(context, lexer.ItemRightDelim)
	}
	return t.newTemplate(Pos(token.Pos), token.Line, name, namePipe, pipe)
}

func (t *Tree) parseTemplateName(token lexer.Item, context string) (name string) {
	switch token.Typ {
	case lexer.ItemString, lexer.ItemRawString:
		s, err := strconv.Unquote(token.Val)
		if err != nil {
			t.error(err)
		}
		name = s
	default:
		t.unexpected(token, context)
	}
	return
}

// command:
//
//	operand (space operand)*
//
// space-separated arguments up to a pipeline character or right delimiter.
// we consume the pipe character but leave the right delim to terminate the action.
func (t *Tree) command() *CommandNode {
	cmd := t.newCommand(Pos(t.peekNonSpace().Pos))
	for {
		t.peekNonSpace() // skip leading spaces.
		operand := t.operand()
		if operand != nil {
			cmd.append(operand)
		}
		switch token := t.next(); token.Typ {
		case lexer.ItemSpace:
			continue
		case lexer.ItemRightDelim, lexer.ItemRightParen:
			t.backup()
		case lexer.ItemPipe:
			// nothing here; break loop below
		default:
			t.unexpected(token, "operand")
		}
		break
	}
	if len(cmd.Args) == 0 {
		t.errorf("empty command")
	}
	return cmd
}

// operand:
//
//	term .Field*
//
// An operand is a space-separated component of a command,
// a term possibly followed by field accesses.
// A nil return means the next item is not an operand.
func (t *Tree) operand() Node {
	node := t.term()
	if node == nil {
		return nil
	}
	if t.peek().Typ == lexer.ItemField {
		chain := t.newChain(Pos(t.peek().Pos), node)
		for t.peek().Typ == lexer.ItemField {
			chain.Add(t.next().Val)
		}
		// Obvious parsing errors involving literal values are detected here.
		// If the term is of type NodeField or NodeVariable, just put more
		// fields on the original; otherwise keep the Chain node between the
		// term and the fields.
		switch node.Type() {
		case NodeField:
			node = t.newField(chain.Position(), chain.String())
		case NodeVariable:
			node = t.newVariable(chain.Position(), chain.String())
		case NodeBool, NodeString, NodeNumber, NodeNil, NodeDot:
			t.errorf("unexpected . after term %q", node.String())
		default:
			node = chain
		}
	}
	return node
}

// term:
//
//	literal (number, string, nil, boolean)
//	function (identifier)
//	.
//	.Field
//	$
//	'(' pipeline ')'
//
// A term is a simple "expression".
// A nil return means the next item is not a term.
func (t *Tree) term() Node {
	switch token := t.nextNonSpace(); token.Typ {
	case lexer.ItemIdentifier:
		if !t.hasFunction(token.Val) {
			t.errorf("function %q not defined", token.Val)
		}
		return t.newIdentifier(Pos(token.Pos), token.Val)
	case lexer.ItemDot:
		return t.newDot(Pos(token.Pos))
	case lexer.ItemNil:
		return t.newNil(Pos(token.Pos))
	case lexer.ItemVariable:
		return t.useVar(Pos(token.Pos), token.Val)
	case lexer.ItemField:
		return t.newField(Pos(token.Pos), token.Val)
	case lexer.ItemBool:
		return t.newBool(Pos(token.Pos), token.Val == "true")
	case lexer.ItemCharConstant, lexer.ItemNumber:
		number, err := t.newNumber(Pos(token.Pos), token.Val, token.Typ)
		if err != nil {
			t.error(err)
		}
		return number
	case lexer.ItemLeftParen:
		return t.pipeline("parenthesized pipeline", lexer.ItemRightParen)
	case lexer.ItemString, lexer.ItemRawString:
		s, err := strconv.Unquote(token.Val)
		if err != nil {
			t.error(err)
		}
		return t.newString(Pos(token.Pos), token.Val, s)
	}
	t.backup()
	return nil
}

// hasFunction reports if a function name exists in the Tree's maps.
func (t *Tree) hasFunction(name string) bool {
	return t.funcs[name]
}

// popVars trims the variable list to the given length.
func (t *Tree) popVars(n int) {
	t.vars = t.vars[:n]
}

// useVar returns a node for a variable reference. It errors if the
// variable is not defined.
func (t *Tree) useVar(pos Pos, name string) Node {
	v := t.newVariable(pos, name)
	for _, varName := range t.vars {
		if varName == v.Ident[0] {
			return v
		}
	}
	t.errorf("undefined variable %q", v.Ident[0])
	return nil
}
