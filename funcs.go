package gtmpl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fiji-flo/gtmpl/internal/printf"
	"github.com/fiji-flo/gtmpl/value"
)

// builtins is the function table every new template starts with.
// The table is copied per template so registering custom functions
// never mutates shared state.
var builtins = map[string]value.Func{
	"eq":       eqFunc,
	"ne":       neFunc,
	"lt":       ltFunc,
	"le":       leFunc,
	"gt":       gtFunc,
	"ge":       geFunc,
	"len":      lenFunc,
	"and":      andFunc,
	"or":       orFunc,
	"not":      notFunc,
	"urlquery": urlqueryFunc,
	"print":    printFunc,
	"println":  printlnFunc,
	"printf":   printfFunc,
	"index":    indexFunc,
	"call":     callFunc,
}

// eqFunc returns the boolean truth of arg1 == arg2 [== arg3 ...].
func eqFunc(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, errors.New("eq requires at least 2 arguments")
	}
	for _, other := range args[1:] {
		if !args[0].Equal(other) {
			return value.FromBool(false), nil
		}
	}
	return value.FromBool(true), nil
}

// neFunc returns the boolean truth of arg1 != arg2.
func neFunc(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, errors.New("ne requires 2 arguments")
	}
	return value.FromBool(!args[0].Equal(args[1])), nil
}

func compareFunc(name string, args []value.Value) (int, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("%s requires 2 arguments", name)
	}
	c, ok := args[0].Compare(args[1])
	if !ok {
		return 0, fmt.Errorf("unable to compare %s and %s", args[0], args[1])
	}
	return c, nil
}

// ltFunc returns the boolean truth of arg1 < arg2.
func ltFunc(args []value.Value) (value.Value, error) {
	c, err := compareFunc("lt", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromBool(c < 0), nil
}

// leFunc returns the boolean truth of arg1 <= arg2.
func leFunc(args []value.Value) (value.Value, error) {
	c, err := compareFunc("le", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromBool(c <= 0), nil
}

// gtFunc returns the boolean truth of arg1 > arg2.
func gtFunc(args []value.Value) (value.Value, error) {
	c, err := compareFunc("gt", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromBool(c > 0), nil
}

// geFunc returns the boolean truth of arg1 >= arg2.
func geFunc(args []value.Value) (value.Value, error) {
	c, err := compareFunc("ge", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromBool(c >= 0), nil
}

// lenFunc returns the integer length of its argument.
func lenFunc(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, errors.New("len requires exactly 1 argument")
	}
	n, ok := args[0].Len()
	if !ok {
		return value.Value{}, fmt.Errorf("unable to call len on %s", args[0])
	}
	return value.FromInt(int64(n)), nil
}

// andFunc returns the boolean AND of its arguments by returning the
// first empty argument or the last argument. That is, "and x y"
// behaves as "if x then y else x". All arguments are evaluated.
func andFunc(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, errors.New("and requires at least one argument")
	}
	for _, arg := range args {
		if !arg.IsTrue() {
			return arg, nil
		}
	}
	return args[len(args)-1], nil
}

// orFunc returns the boolean OR of its arguments by returning the
// first non-empty argument or the last argument. That is, "or x y"
// behaves as "if x then x else y". All arguments are evaluated.
func orFunc(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, errors.New("or requires at least one argument")
	}
	for _, arg := range args {
		if arg.IsTrue() {
			return arg, nil
		}
	}
	return args[len(args)-1], nil
}

// notFunc returns the boolean negation of its single argument.
func notFunc(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, errors.New("not requires a single argument")
	}
	return value.FromBool(!args[0].IsTrue()), nil
}

// urlqueryFunc percent-escapes its string argument for embedding in a
// URL query. A space becomes %20, not '+'.
func urlqueryFunc(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, errors.New("urlquery requires one argument")
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Value{}, errors.New("urlquery requires a string argument")
	}
	escaped := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	return value.FromString(escaped), nil
}

// printFunc formats like fmt.Sprint: operands rendered with their
// default representation, spaces added between operands when neither
// is a string.
func printFunc(args []value.Value) (value.Value, error) {
	var sb strings.Builder
	noSpace := true
	for _, arg := range args {
		if s, ok := arg.AsString(); ok {
			noSpace = true
			sb.WriteString(s)
			continue
		}
		if !noSpace {
			sb.WriteByte(' ')
		}
		sb.WriteString(arg.String())
		noSpace = false
	}
	return value.FromString(sb.String()), nil
}

// printlnFunc formats like fmt.Sprintln: spaces between all operands,
// trailing newline.
func printlnFunc(args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return value.FromString(strings.Join(parts, " ") + "\n"), nil
}

// printfFunc formats like fmt.Sprintf; the first argument is the
// format string.
func printfFunc(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, errors.New("printf requires at least one argument")
	}
	format, ok := args[0].AsString()
	if !ok {
		return value.Value{}, errors.New("printf requires a format string")
	}
	s, err := printf.Sprintf(format, args[1:]...)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromString(s), nil
}

// indexFunc indexes its first argument by the following arguments:
// "index x 1 2 3" is x[1][2][3]. Arrays take numeric indexes; maps and
// objects take string keys (numbers are used as their decimal text).
// A missing map key yields the no-value sentinel; everything else
// missing is an error.
func indexFunc(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, errors.New("index requires at least 2 arguments")
	}
	col := args[0]
	for _, key := range args[1:] {
		next, err := getItem(col, key)
		if err != nil {
			return value.Value{}, err
		}
		col = next
	}
	return col, nil
}

func getItem(col, key value.Value) (value.Value, error) {
	switch col.Kind() {
	case value.KindArray:
		if n, ok := key.AsNumber(); ok {
			if i, ok := n.AsUint64(); ok {
				elems, _ := col.AsSlice()
				if i < uint64(len(elems)) {
					return elems[i], nil
				}
			}
		}
	case value.KindMap, value.KindObject:
		name := ""
		switch key.Kind() {
		case value.KindString:
			name, _ = key.AsString()
		case value.KindNumber:
			name = key.String()
		default:
			return value.Value{}, fmt.Errorf("unable to get %s in %s", key, col)
		}
		if v, ok := col.MapKey(name); ok {
			return v, nil
		}
		if col.Kind() == value.KindMap {
			return value.NoValue(), nil
		}
	}
	return value.Value{}, fmt.Errorf("unable to get %s in %s", key, col)
}

// callFunc invokes its first argument, which must be a function, with
// the remaining arguments as parameters.
func callFunc(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, errors.New("call requires at least one argument")
	}
	fn, ok := args[0].AsFunc()
	if !ok {
		return value.Value{}, errors.New("call requires the first argument to be a function")
	}
	return fn(args[1:])
}
