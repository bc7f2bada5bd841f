// Package gtmpl is a small template engine with the familiar
// {{ }} action syntax: pipelines, if/with/range branches, variables,
// and named sub-templates via define, block and template.
//
// Quick use:
//
//	out, err := gtmpl.Render("Hello {{ .name }}!", map[string]any{"name": "world"})
//
// For anything beyond a one-off render, build a Template so parsing
// happens once:
//
//	t := gtmpl.New("page")
//	t.AddFunc("shout", shout)
//	if err := t.Parse(src); err != nil { ... }
//	err = t.Execute(w, context)
//
// A parsed Template is immutable during execution; concurrent Execute
// calls over the same Template are safe as long as the registered
// functions are.
package gtmpl

import "github.com/fiji-flo/gtmpl/value"

// Value is the dynamic value type threaded through templates.
type Value = value.Value

// Func is the signature of template functions.
type Func = value.Func

// Render parses text as a one-off template and renders it with data.
func Render(text string, data any) (string, error) {
	t := New("gtmpl")
	if err := t.Parse(text); err != nil {
		return "", err
	}
	return t.Render(data)
}
