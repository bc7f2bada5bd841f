package gtmpl

import (
	"io"
	"strings"

	"github.com/fiji-flo/gtmpl/parse"
	"github.com/fiji-flo/gtmpl/value"
)

// Template holds a set of parsed template trees together with the
// function table used both to validate identifiers at parse time and
// to resolve calls during execution.
type Template struct {
	// Name is the name of the main template, the one executed by
	// Execute and Render.
	Name string

	funcs        map[string]value.Func
	treeSet      map[string]*parse.Tree
	dynamicNames bool
}

// New creates an empty template with the given name. The builtin
// function table is installed; additional functions can be registered
// with AddFunc before parsing.
func New(name string) *Template {
	t := &Template{
		Name:    name,
		funcs:   make(map[string]value.Func, len(builtins)),
		treeSet: make(map[string]*parse.Tree),
	}
	for k, f := range builtins {
		t.funcs[k] = f
	}
	return t
}

// SetDynamicNames controls whether {{template}} invocations may
// compute their target name from a pipeline instead of a quoted
// string. Off by default; affects subsequent Parse calls.
func (t *Template) SetDynamicNames(on bool) {
	t.dynamicNames = on
}

// AddFunc registers a single custom function. Functions must be
// registered before the template text referring to them is parsed.
func (t *Template) AddFunc(name string, f value.Func) {
	t.funcs[name] = f
}

// AddFuncs registers custom functions.
func (t *Template) AddFuncs(funcs map[string]value.Func) {
	for k, f := range funcs {
		t.funcs[k] = f
	}
}

// Funcs returns the names of all registered functions.
func (t *Template) Funcs() []string {
	names := make([]string, 0, len(t.funcs))
	for k := range t.funcs {
		names = append(names, k)
	}
	return names
}

// Parse parses text as the body of the main template. Any {{define}}
// and {{block}} trees in the text are added to the template set.
func (t *Template) Parse(text string) error {
	return t.parseInto(t.Name, text)
}

// AddTemplate parses text as an associated template with its own
// name, invocable from other templates via {{template}}.
func (t *Template) AddTemplate(name, text string) error {
	return t.parseInto(name, text)
}

func (t *Template) parseInto(name, text string) error {
	var mode parse.Mode
	if t.dynamicNames {
		mode |= parse.DynamicTemplateNames
	}
	known := make(map[string]bool, len(t.funcs))
	for k := range t.funcs {
		known[k] = true
	}
	treeSet, err := parse.Parse(name, text, known, mode)
	if err != nil {
		return err
	}
	for k, tree := range treeSet {
		t.treeSet[k] = tree
	}
	return nil
}

// Lookup reports whether a tree with the given name has been parsed.
func (t *Template) Lookup(name string) bool {
	tree, ok := t.treeSet[name]
	return ok && tree.Root != nil
}

// Execute applies the main template to data, writing the output to w.
// If data is not already a value.Value it is converted with
// value.FromAny.
func (t *Template) Execute(w io.Writer, data any) error {
	dot := toValue(data)
	tree := t.treeSet[t.Name]
	if tree == nil || tree.Root == nil || parse.IsEmptyTree(tree.Root) {
		return NewError(ErrIncompleteTemplate, t.Name+" is an incomplete or empty template").WithName(t.Name)
	}
	s := &state{
		tmpl: t,
		wr:   w,
		vars: []variable{{"$", dot}},
	}
	return s.walk(dot, tree.Root)
}

// Render applies the main template to data and returns the output.
func (t *Template) Render(data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func toValue(data any) value.Value {
	if v, ok := data.(value.Value); ok {
		return v
	}
	return value.FromAny(data)
}
