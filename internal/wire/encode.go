package wire

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encode renders v in wire form. Decode(Encode(l)) yields l again for any
// list built from Integer, Double, Bool, String, and List values.
func Encode(v Value) (string, error) {
	var b strings.Builder
	if err := appendValue(&b, v, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

func appendValue(b *strings.Builder, v Value, depth int) error {
	switch x := v.(type) {
	case Int32:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case Int64:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case Double:
		return appendDouble(b, float64(x))
	case Bool:
		b.WriteString(strconv.FormatBool(bool(x)))
	case String:
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(string(x), `"`, `""`))
		b.WriteByte('"')
	case List:
		if depth >= MaxDepth {
			return ErrTooDeep
		}
		b.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := appendValue(b, elem, depth+1); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case nil:
		return fmt.Errorf("wire: nil value")
	default:
		return fmt.Errorf("wire: unsupported value %T", v)
	}
	return nil
}

// appendDouble writes the shortest representation that parses back to f and
// always includes a fraction or exponent so it never reads as an integer.
func appendDouble(b *strings.Builder, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrNonFinite
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	b.WriteString(s)
	if !strings.ContainsAny(s, ".e") {
		b.WriteString(".0")
	}
	return nil
}
