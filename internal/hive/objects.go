package hive

import (
	"context"
	"errors"
	"strconv"

	"github.com/mesh-intelligence/hive/internal/dispatch"
	"github.com/mesh-intelligence/hive/internal/store"
	"github.com/mesh-intelligence/hive/internal/wire"
	"github.com/mesh-intelligence/hive/pkg/types"
)

// MsgAlreadyInitialized is the reply to a second object stream start.
const MsgAlreadyInitialized = "Instance already initialized"

// streamObjects starts the object stream, or returns its next row. The first
// start records the server instance and mints the shutdown key; the key is
// part of the start reply. Later starts are refused.
func (a *App) streamObjects(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
	cur := s.Stream(StreamObjects)
	if row, ok := cur.Next(); ok {
		return dispatch.Continue(row), nil
	}
	if s.ShutdownKey() != "" {
		return dispatch.Continue(dispatch.Status(false, MsgAlreadyInitialized)), nil
	}
	if err := requireStart(p, "serverId"); err != nil {
		return dispatch.Result{}, err
	}

	instance := p.Int(0)
	s.SetInstance(instance)
	n, err := cur.Start(a.objects.Populate(ctx, instance))
	if err != nil {
		return dispatch.Result{}, err
	}
	key, err := s.MintShutdownKey()
	if err != nil {
		cur.Reset()
		return dispatch.Result{}, err
	}
	a.log.Info().Int("instance", instance).Int("objects", n).Msg("object stream started")
	return dispatch.Continue(dispatch.Reply(ObjectStreamStart, wire.Integer(int64(n)), wire.String(key))), nil
}

// Vehicles are published with uid 0, so ident 0 never addresses a single
// object and is acknowledged without touching the store.

func (a *App) objectInventory(byUID bool) dispatch.HandlerFunc {
	return func(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
		ident := p.BigInt(0)
		if ident == 0 {
			return a.status("update inventory", nil), nil
		}
		return a.status("update inventory", a.objects.UpdateInventory(ctx, s.Instance(), ident, byUID, p.List(1))), nil
	}
}

func (a *App) objectDelete(byUID bool) dispatch.HandlerFunc {
	return func(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
		ident := p.BigInt(0)
		if ident == 0 {
			return a.status("delete object", nil), nil
		}
		return a.status("delete object", a.objects.Delete(ctx, s.Instance(), ident, byUID)), nil
	}
}

func (a *App) objectDatestamp(byUID bool) dispatch.HandlerFunc {
	return func(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
		ident := p.BigInt(0)
		if ident == 0 {
			return a.status("datestamp object", nil), nil
		}
		return a.status("datestamp object", a.objects.Datestamp(ctx, s.Instance(), ident, byUID)), nil
	}
}

// Scripts sometimes report movement and damage with a non-positive id; those
// are acknowledged and dropped.

func (a *App) vehicleMoved(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
	id := p.BigInt(0)
	if id <= 0 {
		return a.status("update movement", nil), nil
	}
	return a.status("update movement", a.objects.UpdateMovement(ctx, s.Instance(), id, p.List(1), p.Float(2))), nil
}

func (a *App) vehicleDamaged(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
	id := p.BigInt(0)
	if id <= 0 {
		return a.status("update status", nil), nil
	}
	return a.status("update status", a.objects.UpdateStatus(ctx, s.Instance(), id, p.List(1), p.Float(2))), nil
}

func (a *App) objectPublish(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
	obj := store.Object{
		Classname:   p.String(1),
		Damage:      p.Float(2),
		CharacterID: p.Int(3),
		Worldspace:  p.List(4),
		Inventory:   p.List(5),
		Hitpoints:   p.List(6),
		Fuel:        p.Float(7),
		UID:         p.BigInt(8),
	}
	return a.status("create object", a.objects.Create(ctx, s.Instance(), obj)), nil
}

func (a *App) objectReturnID(ctx context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
	id, err := a.objects.FetchID(ctx, s.Instance(), p.BigInt(0))
	if errors.Is(err, types.ErrNotFound) {
		return dispatch.Continue(dispatch.Status(false, "")), nil
	}
	if err != nil {
		return a.status("fetch object id", err), nil
	}
	return dispatch.Continue(dispatch.Reply(dispatch.StatusPass, wire.String(strconv.FormatInt(id, 10)))), nil
}

// dateTime replies ["PASS",[year,month,day,hour,minute]] in server time.
func (a *App) dateTime(context.Context, *dispatch.Session, dispatch.Params) (dispatch.Result, error) {
	now := a.clock.Now()
	return dispatch.Continue(dispatch.Reply(dispatch.StatusPass, wire.List{
		wire.Integer(int64(now.Year())),
		wire.Integer(int64(now.Month())),
		wire.Integer(int64(now.Day())),
		wire.Integer(int64(now.Hour())),
		wire.Integer(int64(now.Minute())),
	})), nil
}

// serverShutdown asks the host to stop when key is the minted shutdown key.
func (a *App) serverShutdown(_ context.Context, s *dispatch.Session, p dispatch.Params) (dispatch.Result, error) {
	key := p.String(0)
	if !s.KeyMatches(key) {
		a.log.Warn().Msg("shutdown refused: key mismatch")
		return dispatch.Continue(dispatch.Status(false, "")), nil
	}
	a.log.Info().Msg("shutdown requested")
	return dispatch.RequestShutdown(key, dispatch.Status(true, "")), nil
}
