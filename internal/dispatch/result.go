package dispatch

import "github.com/mesh-intelligence/hive/internal/wire"

// Status literals leading most replies.
const (
	StatusPass  = "PASS"
	StatusError = "ERROR"
)

// Result is what a handler hands back to the dispatcher: either a value to
// deliver, or a value to deliver followed by process shutdown.
type Result struct {
	Value wire.Value

	shutdown bool
	key      string
}

// Continue delivers v and keeps the process running.
func Continue(v wire.Value) Result {
	return Result{Value: v}
}

// RequestShutdown delivers v and asks the host to stop. The dispatcher honors
// the request only when key matches the session's shutdown key.
func RequestShutdown(key string, v wire.Value) Result {
	return Result{Value: v, shutdown: true, key: key}
}

// Shutdown reports whether the result requests shutdown, and with which key.
func (r Result) Shutdown() (key string, ok bool) {
	return r.key, r.shutdown
}

// Reply builds [status, rest...].
func Reply(status string, rest ...wire.Value) wire.List {
	out := make(wire.List, 0, 1+len(rest))
	out = append(out, wire.String(status))
	return append(out, rest...)
}

// Status builds ["PASS"] or ["ERROR"], with msg appended when non-empty.
func Status(ok bool, msg string) wire.List {
	status := StatusPass
	if !ok {
		status = StatusError
	}
	if msg == "" {
		return Reply(status)
	}
	return Reply(status, wire.String(msg))
}
