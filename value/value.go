// Package value provides the dynamic value type for the template engine.
//
// A Value is a closed tagged union over the kinds a template can observe:
// nil, the "no value" sentinel, booleans, numbers, strings, arrays, maps,
// objects and functions. Maps and objects are both string-keyed collections;
// they differ only in how field resolution treats a missing key. Looking up a
// missing key on a map yields NoValue, while the same lookup on an object is
// an error. This mirrors the distinction between Go's map indexing and struct
// field access.
//
// Values are created with the From* constructors or with FromAny, which
// converts arbitrary Go data reflectively:
//
//	v := value.FromAny(map[string]any{"name": "World", "count": 3})
//	if s, ok := v.MapKey("name"); ok {
//	    fmt.Println(s) // World
//	}
//
// Equality, ordering and truthiness rules live here too, so that every
// consumer (builtin functions, the evaluator, the formatter) shares one
// definition.
package value

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Func is the call contract for function values and for builtin/custom
// template functions: ordered arguments in, one value or an error out.
type Func func(args []Value) (Value, error)

// Kind describes which variant a Value holds.
type Kind int

const (
	// KindNil is the untyped nil constant.
	KindNil Kind = iota
	// KindNoValue is the sentinel produced by missing map keys. It renders
	// as "<no value>" and is false in boolean context.
	KindNoValue
	KindBool
	KindNumber
	KindString
	KindArray
	// KindMap is a string-keyed collection whose missing keys resolve to
	// NoValue instead of failing.
	KindMap
	// KindObject is a string-keyed collection whose missing keys are an
	// error, like a struct without the field.
	KindObject
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindNoValue:
		return "no value"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Value is a dynamically typed template value.
type Value struct {
	kind Kind
	b    bool
	num  Number
	str  string
	arr  []Value
	m    map[string]Value
	fn   Func
}

// Nil returns the nil value.
func Nil() Value {
	return Value{kind: KindNil}
}

// NoValue returns the missing-map-key sentinel.
func NoValue() Value {
	return Value{kind: KindNoValue}
}

// FromBool returns a boolean value.
func FromBool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// FromInt returns a number value holding a signed integer.
func FromInt(i int64) Value {
	return Value{kind: KindNumber, num: IntNumber(i)}
}

// FromUint returns a number value holding an unsigned integer.
func FromUint(u uint64) Value {
	return Value{kind: KindNumber, num: UintNumber(u)}
}

// FromFloat returns a number value holding a float.
func FromFloat(f float64) Value {
	return Value{kind: KindNumber, num: FloatNumber(f)}
}

// FromNumber returns a number value.
func FromNumber(n Number) Value {
	return Value{kind: KindNumber, num: n}
}

// FromString returns a string value.
func FromString(s string) Value {
	return Value{kind: KindString, str: s}
}

// FromSlice returns an array value.
func FromSlice(vals []Value) Value {
	return Value{kind: KindArray, arr: vals}
}

// FromMap returns a map value. Missing keys resolve to NoValue.
func FromMap(m map[string]Value) Value {
	return Value{kind: KindMap, m: m}
}

// FromObject returns an object value. Missing keys are an error.
func FromObject(m map[string]Value) Value {
	return Value{kind: KindObject, m: m}
}

// FromFunc returns a function value.
func FromFunc(f Func) Value {
	return Value{kind: KindFunction, fn: f}
}

// FromAny converts arbitrary Go data to a Value. Maps become KindMap,
// structs become KindObject, slices and arrays become KindArray, and a
// value.Func (or compatible function) becomes KindFunction. Unsupported
// types become Nil.
func FromAny(data any) Value {
	switch v := data.(type) {
	case nil:
		return Nil()
	case Value:
		return v
	case Func:
		return FromFunc(v)
	case func(args []Value) (Value, error):
		return FromFunc(v)
	case bool:
		return FromBool(v)
	case string:
		return FromString(v)
	case int:
		return FromInt(int64(v))
	case int8:
		return FromInt(int64(v))
	case int16:
		return FromInt(int64(v))
	case int32:
		return FromInt(int64(v))
	case int64:
		return FromInt(v)
	case uint:
		return FromUint(uint64(v))
	case uint8:
		return FromUint(uint64(v))
	case uint16:
		return FromUint(uint64(v))
	case uint32:
		return FromUint(uint64(v))
	case uint64:
		return FromUint(v)
	case float32:
		return FromFloat(float64(v))
	case float64:
		return FromFloat(v)
	}
	return fromReflect(reflect.ValueOf(data))
}

func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Nil()
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		arr := make([]Value, rv.Len())
		for i := range arr {
			arr[i] = FromAny(rv.Index(i).Interface())
		}
		return FromSlice(arr)
	case reflect.Map:
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[fmt.Sprint(iter.Key().Interface())] = FromAny(iter.Value().Interface())
		}
		return FromMap(m)
	case reflect.Struct:
		t := rv.Type()
		m := make(map[string]Value, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			m[f.Name] = FromAny(rv.Field(i).Interface())
		}
		return FromObject(m)
	}
	return Nil()
}

// Kind returns the variant this value holds.
func (v Value) Kind() Kind {
	return v.kind
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (Number, bool) {
	return v.num, v.kind == KindNumber
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsSlice returns the array payload.
func (v Value) AsSlice() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

// AsMap returns the key/value payload of a map or object.
func (v Value) AsMap() (map[string]Value, bool) {
	return v.m, v.kind == KindMap || v.kind == KindObject
}

// AsFunc returns the function payload.
func (v Value) AsFunc() (Func, bool) {
	return v.fn, v.kind == KindFunction
}

// MapKey looks up a key on a map or object. The second return reports
// whether the key was present.
func (v Value) MapKey(key string) (Value, bool) {
	if v.kind != KindMap && v.kind != KindObject {
		return Nil(), false
	}
	val, ok := v.m[key]
	return val, ok
}

// Keys returns the keys of a map or object in sorted order. Sorted keys
// keep renders deterministic.
func (v Value) Keys() []string {
	if v.kind != KindMap && v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the element count of a string, array, map or object.
func (v Value) Len() (int, bool) {
	switch v.kind {
	case KindString:
		return len(v.str), true
	case KindArray:
		return len(v.arr), true
	case KindMap, KindObject:
		return len(v.m), true
	}
	return 0, false
}

// IsTrue reports the truth of a value in boolean context: the zero value
// of every kind is false, functions are always true, nil and the no-value
// sentinel are always false.
func (v Value) IsTrue() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.str != ""
	case KindArray:
		return len(v.arr) > 0
	case KindMap, KindObject:
		return len(v.m) > 0
	case KindFunction:
		return true
	case KindNumber:
		return !v.num.IsZero()
	}
	return false
}

// Equal reports deep equality. Numbers compare numerically regardless of
// internal representation; arrays, maps and objects compare elementwise.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNumber && o.kind == KindNumber {
		return v.num.Cmp(o.num) == 0
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil, KindNoValue:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.str == o.str
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap, KindObject:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, val := range v.m {
			other, ok := o.m[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values. Numbers order numerically, booleans order
// false before true, strings order lexicographically, arrays order by
// length. The second return is false for incomparable kinds.
func (v Value) Compare(o Value) (int, bool) {
	if v.kind == KindNumber && o.kind == KindNumber {
		return v.num.Cmp(o.num), true
	}
	if v.kind != o.kind {
		return 0, false
	}
	switch v.kind {
	case KindBool:
		return boolCmp(v.b, o.b), true
	case KindString:
		return strings.Compare(v.str, o.str), true
	case KindArray:
		return intCmp(len(v.arr), len(o.arr)), true
	}
	return 0, false
}

func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	default:
		return 1
	}
}

func intCmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the value the way Go's fmt package renders the
// corresponding native type with %v.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "<nil>"
	case KindNoValue:
		return "<no value>"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.num.String()
	case KindString:
		return v.str
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KindMap, KindObject:
		keys := v.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + v.m[k].String()
		}
		return "map[" + strings.Join(parts, " ") + "]"
	case KindFunction:
		return "<function>"
	}
	return "<invalid>"
}

// Interface returns the value as native Go data: nil, bool, int64,
// uint64, float64, string, []any or map[string]any. Sentinels and
// functions come back as their display strings.
func (v Value) Interface() any {
	switch v.kind {
	case KindNil:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		switch {
		case v.num.IsFloat():
			return v.num.AsFloat64()
		default:
			if i, ok := v.num.AsInt64(); ok {
				return i
			}
			u, _ := v.num.AsUint64()
			return u
		}
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindMap, KindObject:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	}
	return v.String()
}
