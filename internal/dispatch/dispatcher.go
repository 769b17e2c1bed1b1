// Package dispatch routes textual calls to registered handlers.
//
// A call is the wire text ["CHILD", id, args...]. Call decodes it, validates
// the envelope, binds the arguments against the command's schema, runs the
// handler, encodes the result, and copies it into the caller's buffer. Any
// failure is logged and the call is dropped: the buffer is left untouched.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/hive/internal/wire"
)

// EnvelopeMarker is the literal that must lead every call.
const EnvelopeMarker = "CHILD"

// Outcome reports what Call did with the output buffer.
type Outcome struct {
	// Written is the number of content bytes copied, excluding the NUL
	// terminator. It is zero when the call was dropped.
	Written int
	// Shutdown is set after a verified shutdown reply was delivered.
	Shutdown bool
	// Err is the reason the call was dropped, nil on success.
	Err error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for per-call logging.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithSession replaces the default empty session.
func WithSession(s *Session) Option {
	return func(d *Dispatcher) { d.session = s }
}

// WithFailureReply makes dropped calls write ["ERROR", kind] when it fits,
// instead of leaving the buffer untouched.
func WithFailureReply() Option {
	return func(d *Dispatcher) { d.failureReply = true }
}

// Dispatcher owns the dispatch table and the session. Calls are executed
// one at a time.
type Dispatcher struct {
	mu           sync.Mutex
	table        *Table
	session      *Session
	log          zerolog.Logger
	failureReply bool
}

// New takes ownership of table, freezing it.
func New(table *Table, opts ...Option) *Dispatcher {
	table.Freeze()
	d := &Dispatcher{
		table:   table,
		session: NewSession(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Session returns the process-wide session.
func (d *Dispatcher) Session() *Session { return d.session }

// Call runs one call and writes its reply into out. At most len(out)-1
// content bytes are written, followed by a NUL. A reply that does not fit
// is dropped whole.
func (d *Dispatcher) Call(ctx context.Context, raw string, out []byte) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, id, err := d.run(ctx, raw)
	if err != nil {
		return d.drop(raw, err, out)
	}

	text, err := wire.Encode(res.Value)
	if err != nil {
		return d.drop(raw, newError(KindHandlerFailure, id, "encode result", err), out)
	}
	d.log.Info().Int("method", id).Str("result", text).Msg("result")

	if len(text) >= len(out) {
		msg := fmt.Sprintf("output size too big (%d) for capacity %d", len(text), len(out))
		return d.drop(raw, newError(KindEncodingOverflow, id, msg, nil), out)
	}
	n := copy(out, text)
	out[n] = 0

	_, shutdown := res.Shutdown()
	if shutdown {
		d.log.Info().Int("method", id).Msg("shutting down")
	}
	return Outcome{Written: n, Shutdown: shutdown}
}

func (d *Dispatcher) run(ctx context.Context, raw string) (Result, int, error) {
	params, err := wire.Decode(raw)
	if err != nil {
		return Result{}, NoCommand, newError(KindParse, NoCommand, "cannot parse function", err)
	}

	id, args, err := splitEnvelope(params)
	if err != nil {
		return Result{}, NoCommand, newError(KindBadEnvelope, NoCommand, "invalid function format", err)
	}

	cmd, ok := d.table.Lookup(id)
	if !ok {
		return Result{}, id, newError(KindUnknownCommand, id, "invalid method id", nil)
	}

	d.log.Debug().Str("raw", raw).Msg("raw params")
	d.log.Info().Int("method", id).Str("name", cmd.Name).Stringer("params", args).Msg("dispatch")

	p, err := cmd.Schema.Bind(args)
	if err != nil {
		return Result{}, id, newError(KindBadEnvelope, id, "invalid arguments for "+cmd.Name, err)
	}

	res, err := d.invoke(ctx, cmd, p)
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			return Result{}, id, err
		}
		return Result{}, id, newError(KindOf(err), id, "error executing "+cmd.Name, err)
	}
	if res.Value == nil {
		return Result{}, id, newError(KindHandlerFailure, id, cmd.Name+" returned no value", nil)
	}

	if key, ok := res.Shutdown(); ok && !d.session.KeyMatches(key) {
		return Result{}, id, newError(KindUnauthorized, id, "shutdown key mismatch, not shutting down", nil)
	}
	return res, id, nil
}

// invoke runs the handler, turning a panic into a handler failure.
func (d *Dispatcher) invoke(ctx context.Context, cmd Command, p Params) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug().Int("method", cmd.ID).Bytes("stack", debug.Stack()).Msg("handler panic")
			res, err = Result{}, fmt.Errorf("%s panicked: %v", cmd.Name, r)
		}
	}()
	return cmd.Handler(ctx, d.session, p)
}

// splitEnvelope checks the leading marker and command id and returns the
// remaining arguments.
func splitEnvelope(params wire.List) (int, wire.List, error) {
	if len(params) < 2 {
		return 0, nil, fmt.Errorf("want at least 2 elements, got %d", len(params))
	}
	if marker, ok := params[0].(wire.String); !ok || string(marker) != EnvelopeMarker {
		return 0, nil, fmt.Errorf("first element must be %s", EnvelopeMarker)
	}

	var id int64
	switch v := params[1].(type) {
	case wire.Int32:
		id = int64(v)
	case wire.Int64:
		id = int64(v)
	default:
		return 0, nil, fmt.Errorf("command id must be an integer, got %s", params[1].Kind())
	}
	if id < math.MinInt32 || id > math.MaxInt32 {
		return 0, nil, fmt.Errorf("command id %d out of range", id)
	}
	return int(id), params[2:], nil
}

func (d *Dispatcher) drop(raw string, err error, out []byte) Outcome {
	kind := KindOf(err)
	ev := d.log.Error().Err(err).Str("kind", string(kind)).Str("input", raw)
	var de *Error
	if errors.As(err, &de) && de.Command != NoCommand {
		ev = ev.Int("method", de.Command)
	}
	ev.Msg("call dropped")

	n := 0
	if d.failureReply {
		n = writeFailure(kind, out)
	}
	return Outcome{Written: n, Err: err}
}

func writeFailure(kind Kind, out []byte) int {
	text, err := wire.Encode(Reply(StatusError, wire.String(string(kind))))
	if err != nil || len(text) >= len(out) {
		return 0
	}
	n := copy(out, text)
	out[n] = 0
	return n
}
