package wire

import (
	"strconv"
	"strings"
)

// MaxDepth bounds array nesting accepted by Decode and Encode.
const MaxDepth = 64

// Decode parses text as a single top-level array literal. It returns either
// the complete list or an error; partial results are never returned.
func Decode(text string) (List, error) {
	d := decoder{src: text}
	d.skipSpace()
	if d.eof() || d.src[d.pos] != '[' {
		return nil, d.fail("expected '['")
	}
	l, err := d.list()
	if err != nil {
		return nil, err
	}
	d.skipSpace()
	if !d.eof() {
		return nil, d.fail("trailing data after array")
	}
	return l, nil
}

type decoder struct {
	src   string
	pos   int
	depth int
}

func (d *decoder) eof() bool { return d.pos >= len(d.src) }

func (d *decoder) fail(msg string) error {
	return &SyntaxError{Offset: d.pos, Msg: msg}
}

func (d *decoder) skipSpace() {
	for !d.eof() {
		switch d.src[d.pos] {
		case ' ', '\t', '\r', '\n':
			d.pos++
		default:
			return
		}
	}
}

func (d *decoder) list() (List, error) {
	d.depth++
	if d.depth > MaxDepth {
		return nil, &SyntaxError{Offset: d.pos, Msg: ErrTooDeep.Error()}
	}
	d.pos++ // '['

	out := List{}
	d.skipSpace()
	if !d.eof() && d.src[d.pos] == ']' {
		d.pos++
		d.depth--
		return out, nil
	}

	for {
		d.skipSpace()
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		d.skipSpace()
		if d.eof() {
			return nil, d.fail("unterminated array")
		}
		switch d.src[d.pos] {
		case ',':
			d.pos++
		case ']':
			d.pos++
			d.depth--
			return out, nil
		default:
			return nil, d.fail("expected ',' or ']'")
		}
	}
}

func (d *decoder) value() (Value, error) {
	if d.eof() {
		return nil, d.fail("unexpected end of input")
	}
	c := d.src[d.pos]
	switch {
	case c == '[':
		return d.list()
	case c == '"':
		return d.str()
	case c == '-' || isDigit(c):
		return d.number()
	case isLetter(c):
		return d.word()
	case c == ',' || c == ']':
		return nil, d.fail("empty element")
	default:
		return nil, d.fail("unexpected character " + strconv.QuoteRune(rune(c)))
	}
}

// str reads a double-quoted string. A quote inside the string is written as
// two consecutive quotes.
func (d *decoder) str() (Value, error) {
	start := d.pos
	d.pos++ // opening quote

	var b strings.Builder
	for {
		i := strings.IndexByte(d.src[d.pos:], '"')
		if i < 0 {
			d.pos = start
			return nil, d.fail("unterminated string")
		}
		b.WriteString(d.src[d.pos : d.pos+i])
		d.pos += i + 1
		if !d.eof() && d.src[d.pos] == '"' {
			b.WriteByte('"')
			d.pos++
			continue
		}
		return String(b.String()), nil
	}
}

func (d *decoder) number() (Value, error) {
	start := d.pos
	isFloat := false

	if d.src[d.pos] == '-' {
		d.pos++
	}
	if !d.digits() {
		return nil, d.fail("malformed number")
	}
	if !d.eof() && d.src[d.pos] == '.' {
		isFloat = true
		d.pos++
		if !d.digits() {
			return nil, d.fail("malformed fraction")
		}
	}
	if !d.eof() && (d.src[d.pos] == 'e' || d.src[d.pos] == 'E') {
		isFloat = true
		d.pos++
		if !d.eof() && (d.src[d.pos] == '+' || d.src[d.pos] == '-') {
			d.pos++
		}
		if !d.digits() {
			return nil, d.fail("malformed exponent")
		}
	}

	text := d.src[start:d.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			d.pos = start
			return nil, d.fail("double out of range")
		}
		return Double(f), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		d.pos = start
		return nil, d.fail("integer out of range")
	}
	return Integer(n), nil
}

// digits consumes a run of decimal digits and reports whether any were read.
func (d *decoder) digits() bool {
	start := d.pos
	for !d.eof() && isDigit(d.src[d.pos]) {
		d.pos++
	}
	return d.pos > start
}

func (d *decoder) word() (Value, error) {
	start := d.pos
	for !d.eof() && isLetter(d.src[d.pos]) {
		d.pos++
	}
	switch w := d.src[start:d.pos]; {
	case strings.EqualFold(w, "true"):
		return Bool(true), nil
	case strings.EqualFold(w, "false"):
		return Bool(false), nil
	default:
		d.pos = start
		return nil, d.fail("unknown literal " + strconv.Quote(w))
	}
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
