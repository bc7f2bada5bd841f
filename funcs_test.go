package gtmpl

import (
	"errors"
	"testing"

	"github.com/fiji-flo/gtmpl/value"
)

func TestComparisons(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`{{ eq 1 1 }}`, "true"},
		{`{{ eq 1 2 }}`, "false"},
		{`{{ eq 1 1 1 1 }}`, "true"},
		{`{{ eq 1 1 2 }}`, "false"},
		{`{{ eq "foo" "foo" }}`, "true"},
		{`{{ ne 2 3 }}`, "true"},
		{`{{ ne 2 2 }}`, "false"},
		{`{{ lt 1 2 }}`, "true"},
		{`{{ lt 2 2 }}`, "false"},
		{`{{ le 2 2 }}`, "true"},
		{`{{ gt 3 2 }}`, "true"},
		{`{{ ge 2 3 }}`, "false"},
		{`{{ lt "a" "b" }}`, "true"},
	}
	for _, test := range tests {
		if got := render(t, test.text, nil); got != test.want {
			t.Errorf("%s: got %q, want %q", test.text, got, test.want)
		}
	}
}

func TestCompareMixedTypesFails(t *testing.T) {
	if _, err := Render(`{{ lt 1 "a" }}`, nil); err == nil {
		t.Error("comparing a number with a string should fail")
	}
}

func TestLen(t *testing.T) {
	if got := render(t, `{{ len "foo" }}`, nil); got != "3" {
		t.Errorf("string: got %q", got)
	}
	if got := render(t, `{{ len . }}`, []int{1, 2, 3, 4}); got != "4" {
		t.Errorf("array: got %q", got)
	}
	if got := render(t, `{{ len . }}`, map[string]any{"a": 1}); got != "1" {
		t.Errorf("map: got %q", got)
	}
	if _, err := Render(`{{ len 1 }}`, nil); err == nil {
		t.Error("len of a number should fail")
	}
}

func TestAndOrReturnOperands(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`{{ and 1 2 }}`, "2"},
		{`{{ and 0 2 }}`, "0"},
		{`{{ and "" "x" }}`, ""},
		{`{{ or 1 2 }}`, "1"},
		{`{{ or 0 2 }}`, "2"},
		{`{{ or 0 0 }}`, "0"},
		{`{{ or "" "fallback" }}`, "fallback"},
	}
	for _, test := range tests {
		if got := render(t, test.text, nil); got != test.want {
			t.Errorf("%s: got %q, want %q", test.text, got, test.want)
		}
	}
}

func TestNot(t *testing.T) {
	if got := render(t, `{{ not 0 }}`, nil); got != "true" {
		t.Errorf("got %q", got)
	}
	if got := render(t, `{{ not "x" }}`, nil); got != "false" {
		t.Errorf("got %q", got)
	}
}

func TestUrlquery(t *testing.T) {
	got := render(t, `{{ urlquery . }}`, "foo bar?")
	if got != "foo%20bar%3F" {
		t.Errorf("got %q", got)
	}
}

func TestPrintSpacing(t *testing.T) {
	// Spaces only between operands when neither side is a string.
	if got := render(t, `{{ print "Hello" "world" "!" }}`, nil); got != "Helloworld!" {
		t.Errorf("adjacent strings: got %q", got)
	}
	if got := render(t, `{{ print 1 2 }}`, nil); got != "1 2" {
		t.Errorf("adjacent numbers: got %q", got)
	}
	if got := render(t, `{{ print "n=" 1 }}`, nil); got != "n=1" {
		t.Errorf("string then number: got %q", got)
	}
}

func TestPrintln(t *testing.T) {
	if got := render(t, `{{ println "Hello" "world!" }}`, nil); got != "Hello world!\n" {
		t.Errorf("got %q", got)
	}
}

func TestPrintf(t *testing.T) {
	if got := render(t, `{{ printf "%v %s %v" 1 "two" 3.0 }}`, nil); got != "1 two 3" {
		t.Errorf("got %q", got)
	}
	if _, err := Render(`{{ printf "%d %d" 1 }}`, nil); err == nil {
		t.Error("missing format argument should fail")
	}
}

func TestIndex(t *testing.T) {
	ctx := map[string]any{
		"people": []any{
			map[string]any{"name": "ada"},
			map[string]any{"name": "grace"},
		},
	}
	if got := render(t, `{{ index .people 1 "name" }}`, ctx); got != "grace" {
		t.Errorf("nested: got %q", got)
	}
	if got := render(t, `{{ index . "missing" }}`, map[string]any{"a": 1}); got != "<no value>" {
		t.Errorf("map miss: got %q", got)
	}
	if _, err := Render(`{{ index . 9 }}`, []int{1}); err == nil {
		t.Error("array index out of range should fail")
	}
}

func TestCall(t *testing.T) {
	add := func(args []value.Value) (value.Value, error) {
		var sum int64
		for _, arg := range args {
			n, _ := arg.AsNumber()
			i, _ := n.AsInt64()
			sum += i
		}
		return value.FromInt(sum), nil
	}
	got, err := callFunc([]value.Value{
		value.FromFunc(add),
		value.FromInt(1),
		value.FromInt(2),
		value.FromInt(3),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "6" {
		t.Errorf("got %s", got)
	}

	if _, err := callFunc([]value.Value{value.FromInt(1)}); err == nil {
		t.Error("calling a non-function should fail")
	}
}

func TestFunctionErrorsAreWrapped(t *testing.T) {
	tmpl := New("t")
	tmpl.AddFunc("boom", func(args []value.Value) (value.Value, error) {
		return value.Value{}, errors.New("kaboom")
	})
	if err := tmpl.Parse("{{ boom }}"); err != nil {
		t.Fatal(err)
	}
	_, err := tmpl.Render(nil)
	if err == nil {
		t.Fatal("expected error")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != ErrFunctionCall {
		t.Errorf("expected function call error, got %v", err)
	}
}
