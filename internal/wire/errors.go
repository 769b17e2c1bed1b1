package wire

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax    = errors.New("wire: syntax error")
	ErrNonFinite = errors.New("wire: non-finite double")
	ErrTooDeep   = errors.New("wire: nesting too deep")
)

// SyntaxError reports where decoding stopped. It wraps ErrSyntax.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("wire: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }
