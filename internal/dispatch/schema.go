package dispatch

import (
	"fmt"

	"github.com/mesh-intelligence/hive/internal/wire"
)

// ArgKind is the expected shape of one positional argument.
type ArgKind uint8

const (
	// ArgInt accepts integers, doubles (truncated), and numeric strings in
	// the 32-bit range.
	ArgInt ArgKind = iota + 1
	// ArgBigInt is ArgInt widened to 64 bits.
	ArgBigInt
	// ArgFloat accepts any number or numeric string.
	ArgFloat
	// ArgBool requires a boolean.
	ArgBool
	// ArgString requires a string.
	ArgString
	// ArgText accepts anything and yields its string form.
	ArgText
	// ArgList requires an array.
	ArgList
	// ArgAny accepts anything unchanged.
	ArgAny
)

var argKindNames = map[ArgKind]string{
	ArgInt:    "int",
	ArgBigInt: "bigint",
	ArgFloat:  "float",
	ArgBool:   "bool",
	ArgString: "string",
	ArgText:   "text",
	ArgList:   "list",
	ArgAny:    "any",
}

func (k ArgKind) String() string {
	if name, ok := argKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("argkind(%d)", uint8(k))
}

// Param declares the argument at its position in a Schema.
type Param struct {
	Name     string
	Kind     ArgKind
	Optional bool
	// Default is used for a missing optional argument. Nil leaves it absent.
	Default wire.Value
}

// Schema is the ordered argument list a command accepts. Arguments past the
// end of the schema are ignored.
type Schema []Param

// ArgError reports the first argument that failed validation.
type ArgError struct {
	Index  int
	Name   string
	Reason string
}

func (e ArgError) Error() string {
	return fmt.Sprintf("argument %d (%s): %s", e.Index, e.Name, e.Reason)
}

// Params holds arguments validated by Schema.Bind. Getters return the zero
// value for absent optional arguments.
type Params struct {
	raw  wire.List
	vals []any
}

// Bind validates args against s once, before the handler runs.
func (s Schema) Bind(args wire.List) (Params, error) {
	p := Params{raw: args, vals: make([]any, len(s))}
	for i, param := range s {
		arg := wire.Value(nil)
		if i < len(args) {
			arg = args[i]
		} else if param.Default != nil {
			arg = param.Default
		}
		if arg == nil {
			if param.Optional {
				continue
			}
			return Params{}, ArgError{Index: i, Name: param.Name, Reason: "missing required argument"}
		}

		v, ok := coerce(param.Kind, arg)
		if !ok {
			return Params{}, ArgError{
				Index:  i,
				Name:   param.Name,
				Reason: fmt.Sprintf("want %s, got %s", param.Kind, arg.Kind()),
			}
		}
		p.vals[i] = v
	}
	return p, nil
}

func coerce(kind ArgKind, v wire.Value) (any, bool) {
	switch kind {
	case ArgInt:
		return wire.IntAny(v)
	case ArgBigInt:
		return wire.BigInt(v)
	case ArgFloat:
		return wire.Float(v)
	case ArgBool:
		b, ok := v.(wire.Bool)
		return bool(b), ok
	case ArgString:
		s, ok := v.(wire.String)
		return string(s), ok
	case ArgText:
		return wire.StringAny(v), true
	case ArgList:
		l, ok := v.(wire.List)
		return l, ok
	case ArgAny:
		return v, true
	default:
		return nil, false
	}
}

// Has reports whether argument i was supplied (or defaulted).
func (p Params) Has(i int) bool {
	return i >= 0 && i < len(p.vals) && p.vals[i] != nil
}

// Raw returns the arguments as received, after the command id.
func (p Params) Raw() wire.List { return p.raw }

func (p Params) at(i int) any {
	if i < 0 || i >= len(p.vals) {
		return nil
	}
	return p.vals[i]
}

func (p Params) Int(i int) int {
	n, _ := p.at(i).(int)
	return n
}

func (p Params) BigInt(i int) int64 {
	n, _ := p.at(i).(int64)
	return n
}

func (p Params) Float(i int) float64 {
	f, _ := p.at(i).(float64)
	return f
}

func (p Params) Bool(i int) bool {
	b, _ := p.at(i).(bool)
	return b
}

// String returns an ArgString or ArgText argument.
func (p Params) String(i int) string {
	s, _ := p.at(i).(string)
	return s
}

func (p Params) List(i int) wire.List {
	l, _ := p.at(i).(wire.List)
	return l
}

func (p Params) Value(i int) wire.Value {
	v, _ := p.at(i).(wire.Value)
	return v
}
