package parse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fiji-flo/gtmpl/lexer"
)

func init() {
	textFormat = "%q"
}

var builtins = map[string]bool{
	"printf":   true,
	"print":    true,
	"urlquery": true,
	"len":      true,
	"eq":       true,
}

type parseTest struct {
	name   string
	input  string
	hasErr bool
	result string // what the user would see in an error message.
}

const noError = false
const hasError = true

var parseTests = []parseTest{
	{"empty", "", noError, ``},
	{"spaces", " \t\n", noError, `" \t\n"`},
	{"text", "some text", noError, `"some text"`},
	{"emptyAction", "{{}}", hasError, `{{}}`},
	{"field", "{{.X}}", noError, `{{.X}}`},
	{"simple command", "{{printf}}", noError, `{{printf}}`},
	{"$ invocation", "{{$}}", noError, "{{$}}"},
	{"variable invocation", "{{with $x := 3}}{{$x 23}}{{end}}", noError, "{{with $x := 3}}{{$x 23}}{{end}}"},
	{"variable with fields", "{{$.I}}", noError, "{{$.I}}"},
	{"multi-word command", `{{printf "%d" 23}}`, noError, `{{printf "%d" 23}}`},
	{"pipeline", "{{.X|.Y}}", noError, `{{.X | .Y}}`},
	{"pipeline with decl", "{{$x := .X|.Y}}", noError, `{{$x := .X | .Y}}`},
	{"nested pipeline", "{{.X (.Y .Z) (.A | .B .C) (.E)}}", noError, `{{.X (.Y .Z) (.A | .B .C) (.E)}}`},
	{"field applied to parentheses", "{{(.Y .Z).Field}}", noError, `{{(.Y .Z).Field}}`},
	{"simple if", "{{if .X}}hello{{end}}", noError, `{{if .X}}"hello"{{end}}`},
	{"if with else", "{{if .X}}true{{else}}false{{end}}", noError, `{{if .X}}"true"{{else}}"false"{{end}}`},
	{"if with else if", "{{if .X}}true{{else if .Y}}false{{end}}", noError, `{{if .X}}"true"{{else}}{{if .Y}}"false"{{end}}{{end}}`},
	{"if else chain", "+{{if .X}}X{{else if .Y}}Y{{else if .Z}}Z{{end}}+", noError, `"+"{{if .X}}"X"{{else}}{{if .Y}}"Y"{{else}}{{if .Z}}"Z"{{end}}{{end}}{{end}}"+"`},
	{"simple range", "{{range .X}}hello{{end}}", noError, `{{range .X}}"hello"{{end}}`},
	{"chained field range", "{{range .X.Y.Z}}hello{{end}}", noError, `{{range .X.Y.Z}}"hello"{{end}}`},
	{"nested range", "{{range .X}}hello{{range .Y}}goodbye{{end}}{{end}}", noError, `{{range .X}}"hello"{{range .Y}}"goodbye"{{end}}{{end}}`},
	{"range with else", "{{range .X}}true{{else}}false{{end}}", noError, `{{range .X}}"true"{{else}}"false"{{end}}`},
	{"range over pipeline", "{{range .X|.M}}true{{else}}false{{end}}", noError, `{{range .X | .M}}"true"{{else}}"false"{{end}}`},
	{"range []int", "{{range .SI}}{{.}}{{end}}", noError, `{{range .SI}}{{.}}{{end}}`},
	{"range 1 var", "{{range $x := .SI}}{{.}}{{end}}", noError, `{{range $x := .SI}}{{.}}{{end}}`},
	{"range 2 vars", "{{range $x, $y := .SI}}{{.}}{{end}}", noError, `{{range $x, $y := .SI}}{{.}}{{end}}`},
	{"constants", "{{range .SI 1 -3.2i true false 'a' nil}}{{end}}", hasError, ""},
	{"template", "{{template `x`}}", noError, `{{template "x"}}`},
	{"template with arg", "{{template `x` .Y}}", noError, `{{template "x" .Y}}`},
	{"with", "{{with .X}}hello{{end}}", noError, `{{with .X}}"hello"{{end}}`},
	{"with with else", "{{with .X}}hello{{else}}goodbye{{end}}", noError, `{{with .X}}"hello"{{else}}"goodbye"{{end}}`},
	// Errors.
	{"unclosed action", "hello{{range", hasError, ""},
	{"unmatched end", "{{end}}", hasError, ""},
	{"unmatched else", "{{else}}", hasError, ""},
	{"missing end", "hello{{range .x}}", hasError, ""},
	{"missing end after else", "hello{{range .x}}{{else}}", hasError, ""},
	{"undefined function", "hello{{undefined}}", hasError, ""},
	{"undefined variable", "{{$x}}", hasError, ""},
	{"variable undefined after end", "{{with $x := 4}}{{end}}{{$x}}", hasError, ""},
	{"variable undefined in template", "{{template $v}}", hasError, ""},
	{"declare with field", "{{with $x.Y := 4}}{{end}}", hasError, ""},
	{"template with field name", "{{template .X}}", hasError, ""},
	{"template with var", "{{template $v}}", hasError, ""},
	{"invalid punctuation", "{{printf 3, 4}}", hasError, ""},
	{"multidecl outside range", "{{$v, $w := 3}}", hasError, ""},
	{"too many decls in range", "{{range $u, $v, $w := 3}}{{end}}", hasError, ""},
	{"dot applied to parentheses", "{{printf (printf .).}}", hasError, ""},
	{"adjacent args", "{{printf 3`x`}}", hasError, ""},
	{"multiple declaration", "{{$x := $y := 3}}", hasError, ""},
	{"dot after integer", "{{1.E}}", hasError, ""},
	{"dot after string", `{{"hello".guys}}`, hasError, ""},
	{"dot after dot", "{{..E}}", hasError, ""},
	{"dot after nil", "{{nil.E}}", hasError, ""},
	// Non-executable commands in a pipeline.
	{"bug1a", "{{$x:=.}}{{$x.moo}}", noError, "{{$x := .}}{{$x.moo}}"},
	{"bug1b", "{{$x:=.}}{{$x+2}}", hasError, ""},
	{"dot pipeline stage 2", "{{.X|.}}", hasError, ""},
	{"number pipeline stage 2", "{{.X|0}}", hasError, ""},
}

func TestParse(t *testing.T) {
	for _, test := range parseTests {
		treeSet, err := Parse(test.name, test.input, builtins, 0)
		switch {
		case err == nil && test.hasErr:
			t.Errorf("%q: expected error; got none", test.name)
			continue
		case err != nil && !test.hasErr:
			t.Errorf("%q: unexpected error: %v", test.name, err)
			continue
		case err != nil:
			continue
		}
		tree := treeSet[test.name]
		if tree == nil {
			t.Errorf("%q: no tree registered under the template name", test.name)
			continue
		}
		if result := tree.Root.String(); result != test.result {
			t.Errorf("%q=(%q): got\n\t%v\nexpected\n\t%v", test.name, test.input, result, test.result)
		}
	}
}

func TestParseErrorFormat(t *testing.T) {
	_, err := Parse("tpl", "line one\n{{bogus}}", builtins, 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "template: tpl:2: ") {
		t.Errorf("error should carry template name and line: %q", err)
	}
	if !strings.Contains(err.Error(), `function "bogus" not defined`) {
		t.Errorf("error should name the function: %q", err)
	}
}

func TestDefineRegistersTree(t *testing.T) {
	treeSet, err := Parse("root", `main {{define "sub"}}inner {{.X}}{{end}} tail`, builtins, 0)
	if err != nil {
		t.Fatal(err)
	}
	sub := treeSet["sub"]
	if sub == nil {
		t.Fatal("define did not register a tree")
	}
	if got := sub.Root.String(); got != `"inner "{{.X}}` {
		t.Errorf("sub tree = %s", got)
	}
	root := treeSet["root"]
	if got := root.Root.String(); got != `"main "" tail"` {
		t.Errorf("definition body must not leak into the enclosing tree: %s", got)
	}
	if root.ID == sub.ID {
		t.Error("trees must have distinct ids")
	}
}

func TestBlockDefinesAndInvokes(t *testing.T) {
	treeSet, err := Parse("root", `{{block "area" .}}fallback{{end}}`, builtins, 0)
	if err != nil {
		t.Fatal(err)
	}
	if treeSet["area"] == nil {
		t.Fatal("block did not register its body")
	}
	if got := treeSet["root"].Root.String(); got != `{{template "area" .}}` {
		t.Errorf("root tree = %s", got)
	}
	if got := treeSet["area"].Root.String(); got != `"fallback"` {
		t.Errorf("area tree = %s", got)
	}
}

func TestRedefinitionRules(t *testing.T) {
	// Redefining a non-empty template is an error.
	_, err := Parse("t", `{{define "a"}}x{{end}}{{define "a"}}y{{end}}`, builtins, 0)
	if err == nil || !strings.Contains(err.Error(), "multiple definition") {
		t.Errorf("expected multiple definition error, got %v", err)
	}
	// Redefining an empty body is allowed.
	treeSet, err := Parse("t", `{{define "a"}} {{end}}{{define "a"}}y{{end}}`, builtins, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := treeSet["a"].Root.String(); got != `"y"` {
		t.Errorf("redefinition should win over empty body, got %s", got)
	}
}

func TestDynamicTemplateNames(t *testing.T) {
	// Off by default.
	if _, err := Parse("t", `{{with $n := "x"}}{{template $n}}{{end}}`, builtins, 0); err == nil {
		t.Error("dynamic name should be rejected without the mode flag")
	}
	treeSet, err := Parse("t", `{{with $n := "x"}}{{template $n .}}{{end}}`, builtins, DynamicTemplateNames)
	if err != nil {
		t.Fatal(err)
	}
	var tmpl *TemplateNode
	walk := treeSet["t"].Root.Nodes[0].(*WithNode)
	tmpl = walk.List.Nodes[0].(*TemplateNode)
	if tmpl.NamePipe == nil {
		t.Fatal("expected a name pipeline")
	}
	if tmpl.Name != "" {
		t.Errorf("static name should be empty, got %q", tmpl.Name)
	}
	if tmpl.Pipe == nil {
		t.Error("expected a data pipeline")
	}
}

func TestNumberNode(t *testing.T) {
	tr := New("numbers")
	tests := []struct {
		text    string
		isInt   bool
		isUint  bool
		isFloat bool
		val     string
	}{
		{"0", true, true, true, "0"},
		{"-0", true, true, true, "0"},
		{"73", true, true, true, "73"},
		{"0x73", true, true, true, "115"},
		{"-73", true, false, true, "-73"},
		{"+73", true, false, true, "73"},
		{"100", true, true, true, "100"},
		{"1e9", true, true, true, "1e+09"},
		{"1.2", false, false, true, "1.2"},
		{"-.2", false, false, true, "-0.2"},
		{"18446744073709551615", false, true, true, "18446744073709551615"},
	}
	for _, tt := range tests {
		n, err := tr.newNumber(0, tt.text, lexer.ItemNumber)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.text, err)
			continue
		}
		if n.IsInt != tt.isInt || n.IsUint != tt.isUint || n.IsFloat != tt.isFloat {
			t.Errorf("%q: kinds int=%v uint=%v float=%v", tt.text, n.IsInt, n.IsUint, n.IsFloat)
		}
		if got := fmt.Sprint(n.Val); got != tt.val {
			t.Errorf("%q: value %q, want %q", tt.text, got, tt.val)
		}
	}
	if _, err := tr.newNumber(0, "18446744073709551616", lexer.ItemNumber); err == nil {
		t.Error("expected overflow for 2^64")
	}
	n, err := tr.newNumber(0, "'a'", lexer.ItemCharConstant)
	if err != nil {
		t.Fatal(err)
	}
	if !n.IsInt || n.Int64 != 'a' {
		t.Errorf("char constant: got %v %d", n.IsInt, n.Int64)
	}
}
