package value

import "strconv"

type numKind int

const (
	numInt numKind = iota
	numUint
	numFloat
)

// Number holds one numeric representation: signed integer, unsigned
// integer or float. Conversions between representations are lossless
// where possible and report failure otherwise.
type Number struct {
	kind numKind
	i    int64
	u    uint64
	f    float64
}

// IntNumber returns a Number holding a signed integer.
func IntNumber(i int64) Number {
	return Number{kind: numInt, i: i}
}

// UintNumber returns a Number holding an unsigned integer.
func UintNumber(u uint64) Number {
	return Number{kind: numUint, u: u}
}

// FloatNumber returns a Number holding a float.
func FloatNumber(f float64) Number {
	return Number{kind: numFloat, f: f}
}

// IsFloat reports whether the number holds a float.
func (n Number) IsFloat() bool {
	return n.kind == numFloat
}

// AsInt64 returns the number as a signed integer if representable.
func (n Number) AsInt64() (int64, bool) {
	switch n.kind {
	case numInt:
		return n.i, true
	case numUint:
		if n.u <= 1<<63-1 {
			return int64(n.u), true
		}
	case numFloat:
		if n.f == float64(int64(n.f)) {
			return int64(n.f), true
		}
	}
	return 0, false
}

// AsUint64 returns the number as an unsigned integer if representable.
func (n Number) AsUint64() (uint64, bool) {
	switch n.kind {
	case numInt:
		if n.i >= 0 {
			return uint64(n.i), true
		}
	case numUint:
		return n.u, true
	case numFloat:
		if n.f >= 0 && n.f == float64(uint64(n.f)) {
			return uint64(n.f), true
		}
	}
	return 0, false
}

// AsFloat64 returns the number as a float.
func (n Number) AsFloat64() float64 {
	switch n.kind {
	case numInt:
		return float64(n.i)
	case numUint:
		return float64(n.u)
	default:
		return n.f
	}
}

// IsZero reports whether the number is numerically zero.
func (n Number) IsZero() bool {
	switch n.kind {
	case numInt:
		return n.i == 0
	case numUint:
		return n.u == 0
	default:
		return n.f == 0
	}
}

// Cmp orders two numbers numerically: -1, 0 or 1.
func (n Number) Cmp(o Number) int {
	if n.kind == numFloat || o.kind == numFloat {
		a, b := n.AsFloat64(), o.AsFloat64()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	if au, aok := n.AsUint64(); aok {
		if bu, bok := o.AsUint64(); bok {
			switch {
			case au < bu:
				return -1
			case au > bu:
				return 1
			default:
				return 0
			}
		}
		// o is negative
		return 1
	}
	if _, bok := o.AsUint64(); bok {
		// n is negative
		return -1
	}
	switch {
	case n.i < o.i:
		return -1
	case n.i > o.i:
		return 1
	default:
		return 0
	}
}

func (n Number) String() string {
	switch n.kind {
	case numInt:
		return strconv.FormatInt(n.i, 10)
	case numUint:
		return strconv.FormatUint(n.u, 10)
	default:
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
}
