package hive

import (
	"context"
	"errors"

	"github.com/mesh-intelligence/hive/internal/dispatch"
	"github.com/mesh-intelligence/hive/internal/wire"
	"github.com/mesh-intelligence/hive/pkg/types"
)

// customExecute runs a write template and replies true or false. A failed
// statement is not retried.
func (a *App) customExecute(ctx context.Context, _ *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
	ok, err := a.custom.Execute(ctx, p.String(0), p.List(1))
	if errors.Is(err, types.ErrArityMismatch) {
		return dispatch.Result{}, err
	}
	if err != nil {
		a.log.Error().Err(err).Str("template", p.String(0)).Msg("custom execute failed")
		ok = false
	}
	return dispatch.Continue(wire.Bool(ok)), nil
}

// streamCustom starts a query stream, or returns its next row. A query with
// no rows replies with a count of zero and leaves the stream idle.
func (a *App) streamCustom(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
	cur := s.Stream(StreamCustom)
	if row, ok := cur.Next(); ok {
		return dispatch.Continue(row), nil
	}
	if err := requireStart(p, "template", "args"); err != nil {
		return dispatch.Result{}, err
	}

	n, err := cur.Start(a.custom.Populate(ctx, p.String(0), p.List(1)))
	if err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.Continue(dispatch.Reply(CustomStreamStart, wire.Integer(int64(n)))), nil
}
