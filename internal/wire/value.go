// Package wire implements the textual value model exchanged with the remote
// caller: a bracketed, comma-separated array literal whose elements are
// integers, doubles, booleans, quoted strings, or nested arrays.
package wire

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the concrete type held by a Value.
type Kind uint8

const (
	KindInt32 Kind = iota + 1
	KindInt64
	KindDouble
	KindBool
	KindString
	KindList
)

var kindNames = map[Kind]string{
	KindInt32:  "int32",
	KindInt64:  "int64",
	KindDouble: "double",
	KindBool:   "bool",
	KindString: "string",
	KindList:   "list",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one node of a value tree. The set of implementations is closed.
type Value interface {
	Kind() Kind
}

type (
	Int32  int32
	Int64  int64
	Double float64
	Bool   bool
	String string
	List   []Value
)

func (Int32) Kind() Kind  { return KindInt32 }
func (Int64) Kind() Kind  { return KindInt64 }
func (Double) Kind() Kind { return KindDouble }
func (Bool) Kind() Kind   { return KindBool }
func (String) Kind() Kind { return KindString }
func (List) Kind() Kind   { return KindList }

// Integer returns n as an Int32 when it fits and as an Int64 otherwise.
// This is the form the decoder produces, so trees built with Integer
// survive an Encode/Decode round trip unchanged.
func Integer(n int64) Value {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return Int32(n)
	}
	return Int64(n)
}

// String renders the list in wire form for log lines. Values that cannot be
// encoded are rendered with a marker instead of failing.
func (l List) String() string {
	var b strings.Builder
	if err := appendValue(&b, l, 0); err != nil {
		return "<unencodable: " + err.Error() + ">"
	}
	return b.String()
}

// StringAny returns the string form of v: a String as-is, anything else in
// its encoded form.
func StringAny(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	var b strings.Builder
	if err := appendValue(&b, v, 0); err != nil {
		return ""
	}
	return b.String()
}

// BigInt reads v as a 64-bit integer. Doubles are truncated and strings
// must hold a base-10 integer.
func BigInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case Int32:
		return int64(x), true
	case Int64:
		return int64(x), true
	case Double:
		f := float64(x)
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	case String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// IntAny reads v as an int using the same rules as BigInt, limited to the
// 32-bit range.
func IntAny(v Value) (int, bool) {
	n, ok := BigInt(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// Float reads v as a float64. Integers widen and strings must hold a number.
func Float(v Value) (float64, bool) {
	switch x := v.(type) {
	case Int32:
		return float64(x), true
	case Int64:
		return float64(x), true
	case Double:
		return float64(x), true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
