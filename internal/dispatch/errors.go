package dispatch

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/hive/pkg/types"
)

// Kind is a machine-readable failure category for a dropped call.
type Kind string

const (
	KindParse            Kind = "ParseError"
	KindBadEnvelope      Kind = "BadEnvelope"
	KindUnknownCommand   Kind = "UnknownCommand"
	KindUnauthorized     Kind = "Unauthorized"
	KindArityMismatch    Kind = "ArityMismatch"
	KindHandlerFailure   Kind = "HandlerFailure"
	KindEncodingOverflow Kind = "EncodingOverflow"
)

// NoCommand marks an Error raised before the command id was known.
const NoCommand = -1

// Error describes why a call produced no output.
type Error struct {
	Kind    Kind
	Command int
	Message string
	Err     error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Command != NoCommand {
		prefix = fmt.Sprintf("%s: command %d", e.Kind, e.Command)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, cmd int, msg string, err error) *Error {
	return &Error{Kind: kind, Command: cmd, Message: msg, Err: err}
}

// KindOf classifies err. Errors that carry no kind are handler failures,
// except argument errors raised by handlers and placeholder mismatches
// surfaced by the data sources.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	var ae ArgError
	if errors.As(err, &ae) {
		return KindBadEnvelope
	}
	if errors.Is(err, types.ErrArityMismatch) {
		return KindArityMismatch
	}
	return KindHandlerFailure
}
