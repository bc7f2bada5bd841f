package gtmpl

import (
	"errors"
	"strings"
	"testing"

	"github.com/fiji-flo/gtmpl/value"
)

func render(t *testing.T, text string, data any) string {
	t.Helper()
	out, err := Render(text, data)
	if err != nil {
		t.Fatalf("render %q: %v", text, err)
	}
	return out
}

func TestRenderText(t *testing.T) {
	if got := render(t, "plain text", nil); got != "plain text" {
		t.Errorf("got %q", got)
	}
}

func TestConditionalTruthiness(t *testing.T) {
	if got := render(t, "{{ if true }} 2000 {{ end }}", nil); got != " 2000 " {
		t.Errorf("true branch: got %q", got)
	}
	if got := render(t, "{{ if false }} 2000 {{ end }}", nil); got != "" {
		t.Errorf("false branch: got %q", got)
	}
}

func TestTrimWithElse(t *testing.T) {
	got := render(t, "{{ if false -}} 2000 {{- else -}} 3000 {{- end }}", nil)
	if got != "3000" {
		t.Errorf("got %q", got)
	}
}

func TestWithRebindsDot(t *testing.T) {
	ctx := map[string]any{"foo": 1000}
	got := render(t, "{{ with .foo -}} {{.}} {{- else -}} 3000 {{- end }}", ctx)
	if got != "1000" {
		t.Errorf("got %q", got)
	}
	// An empty value takes the else branch with the outer dot intact.
	got = render(t, "{{ with .bar -}} {{.}} {{- else -}} 3000 {{- end }}", ctx)
	if got != "3000" {
		t.Errorf("else branch: got %q", got)
	}
}

func TestRangeTwoVariables(t *testing.T) {
	got := render(t, "{{ range $k, $v := . -}} {{ $k }}{{ $v }} {{- end }}", map[string]any{"a": 1})
	if got != "a1" {
		t.Errorf("got %q", got)
	}
}

func TestRangeOneVariableBindsElement(t *testing.T) {
	got := render(t, "{{ range $v := . }}{{ $v }}{{ end }}", []int{1, 2, 3})
	if got != "123" {
		t.Errorf("got %q", got)
	}
}

func TestRangeArrayIndexes(t *testing.T) {
	got := render(t, "{{ range $i, $v := . }}{{ $i }}{{ $v }}{{ end }}", []string{"a", "b"})
	if got != "0a1b" {
		t.Errorf("got %q", got)
	}
}

func TestRangeSetsDot(t *testing.T) {
	got := render(t, "{{ range . }}[{{ . }}]{{ end }}", []int{7, 8})
	if got != "[7][8]" {
		t.Errorf("got %q", got)
	}
}

func TestRangeElse(t *testing.T) {
	got := render(t, "{{ range . }}x{{ else }}empty{{ end }}", []int{})
	if got != "empty" {
		t.Errorf("got %q", got)
	}
}

func TestRangeInvalid(t *testing.T) {
	if _, err := Render("{{ range . }}x{{ end }}", 42); err == nil {
		t.Error("range over a number should fail")
	}
}

func TestDefineAndInvoke(t *testing.T) {
	got := render(t, `{{ define "tmpl"}} some {{ end -}} there is {{- template "tmpl" -}} template`, nil)
	if got != "there is some template" {
		t.Errorf("got %q", got)
	}
}

func TestMultipleDefines(t *testing.T) {
	text := `{{ define "tmpl1"}} some {{ end -}} {{- define "tmpl2"}} some other {{ end -}} there is {{- template "tmpl2" -}} template`
	if got := render(t, text, nil); got != "there is some other template" {
		t.Errorf("got %q", got)
	}
}

func TestTemplateWithArgument(t *testing.T) {
	tmpl := New("main")
	if err := tmpl.AddTemplate("fancy", "{{ . }}"); err != nil {
		t.Fatal(err)
	}
	if err := tmpl.Parse(`{{ template "fancy" .name }}!`); err != nil {
		t.Fatal(err)
	}
	got, err := tmpl.Render(map[string]any{"name": "Hello World"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello World!" {
		t.Errorf("got %q", got)
	}
}

func TestTemplateInheritsDot(t *testing.T) {
	got := render(t, `{{ define "sub" }}{{ . }}{{ end }}{{ template "sub" }}`, "ctx")
	if got != "ctx" {
		t.Errorf("invocation without argument should inherit dot, got %q", got)
	}
}

func TestDynamicTemplateName(t *testing.T) {
	text := `{{ define "tmpl2"}} some other {{ end -}} there is {{- template (.) -}} template`
	tmpl := New("main")
	tmpl.SetDynamicNames(true)
	if err := tmpl.Parse(text); err != nil {
		t.Fatal(err)
	}
	got, err := tmpl.Render("tmpl2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "there is some other template" {
		t.Errorf("got %q", got)
	}

	// Without the opt-in the same text must not parse.
	if err := New("main").Parse(text); err == nil {
		t.Error("dynamic name should require the opt-in")
	}
}

func TestScopeEndsWithBlock(t *testing.T) {
	// A variable declared inside a range body is gone after the range.
	tmpl := New("t")
	if err := tmpl.Parse("{{ range . }}{{ $x := . }}{{ end }}{{ $x }}"); err == nil {
		t.Error("variable must not survive its block")
	}
}

func TestScopeShadowing(t *testing.T) {
	got := render(t, "{{ $x := 1 }}{{ range . }}{{ $x := . }}{{ $x }}{{ end }}{{ $x }}", []int{7})
	if got != "71" {
		t.Errorf("got %q", got)
	}
}

func TestDollarIsInitialDot(t *testing.T) {
	got := render(t, "{{ with .inner }}{{ $.outer }}{{ end }}", map[string]any{
		"inner": "x",
		"outer": "o",
	})
	if got != "o" {
		t.Errorf("got %q", got)
	}
}

func TestDeclarationSuppressesOutput(t *testing.T) {
	got := render(t, "{{ $x := 5 }}{{ $x }}", nil)
	if got != "5" {
		t.Errorf("got %q", got)
	}
}

func TestPipeline(t *testing.T) {
	if got := render(t, `{{ "foo" | len }}`, nil); got != "3" {
		t.Errorf("len: got %q", got)
	}
	if got := render(t, `{{ 16 | printf "%x" }}`, nil); got != "10" {
		t.Errorf("printf final arg: got %q", got)
	}
	if got := render(t, `{{ ( len "ab" ) }}`, nil); got != "2" {
		t.Errorf("paren pipeline: got %q", got)
	}
}

func TestMapMissingKeyRendersNoValue(t *testing.T) {
	got := render(t, "{{ .missing }}", map[string]any{"present": 1})
	if got != "<no value>" {
		t.Errorf("got %q", got)
	}
}

func TestObjectMissingFieldFails(t *testing.T) {
	type ctx struct{ Present int }
	_, err := Render("{{ .Missing }}", ctx{Present: 1})
	if err == nil {
		t.Fatal("missing object field should fail")
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrBadField {
		t.Errorf("expected bad field error, got %v", err)
	}
}

func TestNiladicFunctionField(t *testing.T) {
	plusOne := func(args []value.Value) (value.Value, error) {
		obj := args[0]
		num, _ := obj.MapKey("num")
		n, _ := num.AsNumber()
		i, _ := n.AsInt64()
		return value.FromInt(i + 1), nil
	}
	ctx := value.FromObject(map[string]value.Value{
		"num":      value.FromInt(42),
		"plus_one": value.FromFunc(plusOne),
	})
	got := render(t, "The answer is: {{ .plus_one }}", ctx)
	if got != "The answer is: 43" {
		t.Errorf("got %q", got)
	}
}

func TestCustomFunction(t *testing.T) {
	tmpl := New("t")
	tmpl.AddFunc("helloWorld", func(args []value.Value) (value.Value, error) {
		return value.FromString("Hello World!"), nil
	})
	if err := tmpl.Parse("{{ helloWorld }}"); err != nil {
		t.Fatal(err)
	}
	got, err := tmpl.Render(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello World!" {
		t.Errorf("got %q", got)
	}
}

func TestUnknownFunctionRejectedAtParse(t *testing.T) {
	if err := New("t").Parse("{{ nope }}"); err == nil {
		t.Error("unknown function should be a parse error")
	}
}

func TestDepthGuard(t *testing.T) {
	tmpl := New("main")
	if err := tmpl.Parse(`{{ define "r" }}{{ template "r" }}{{ end }}go {{ template "r" }}`); err != nil {
		t.Fatal(err)
	}
	_, err := tmpl.Render(nil)
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrMaxDepth {
		t.Fatalf("expected max depth error, got %v", err)
	}
}

func TestIdempotentRender(t *testing.T) {
	tmpl := New("t")
	if err := tmpl.Parse("{{ range $k, $v := . }}{{ $k }}={{ $v }};{{ end }}"); err != nil {
		t.Fatal(err)
	}
	ctx := map[string]any{"b": 2, "a": 1}
	first, err := tmpl.Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tmpl.Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("renders differ: %q vs %q", first, second)
	}
}

func TestIncompleteTemplate(t *testing.T) {
	tmpl := New("main")
	if err := tmpl.Parse(`{{ define "only" }}hi{{ end }}`); err != nil {
		t.Fatal(err)
	}
	_, err := tmpl.Render(nil)
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrIncompleteTemplate {
		t.Errorf("expected incomplete template error, got %v", err)
	}
}

func TestUndefinedTemplateInvocation(t *testing.T) {
	_, err := Render(`x{{ template "ghost" }}`, nil)
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrTemplateNotFound {
		t.Errorf("expected template not found, got %v", err)
	}
}

func TestExecErrorLocation(t *testing.T) {
	tmpl := New("page")
	if err := tmpl.Parse("line1\n{{ .Oops }}"); err != nil {
		t.Fatal(err)
	}
	type ctx struct{ X int }
	_, err := tmpl.Render(ctx{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "template: page:2:") {
		t.Errorf("error should carry name and line: %q", err)
	}
}

func TestWriterErrorsPropagate(t *testing.T) {
	tmpl := New("t")
	if err := tmpl.Parse("some text"); err != nil {
		t.Fatal(err)
	}
	err := tmpl.Execute(failWriter{}, nil)
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrWrite {
		t.Errorf("expected write error, got %v", err)
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("sink closed")
}
