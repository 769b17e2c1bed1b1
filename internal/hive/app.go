// Package hive holds the bridge's command handlers and registers them in a
// dispatch table.
package hive

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/hive/internal/dispatch"
	"github.com/mesh-intelligence/hive/internal/store"
	"github.com/mesh-intelligence/hive/internal/wire"
)

// Command ids.
const (
	CmdStreamObjects        = 302
	CmdObjectInventory      = 303
	CmdObjectDelete         = 304
	CmdVehicleMoved         = 305
	CmdVehicleDamaged       = 306
	CmdDateTime             = 307
	CmdObjectPublish        = 308
	CmdObjectInventoryByUID = 309
	CmdObjectDeleteByUID    = 310
	CmdObjectReturnID       = 388
	CmdObjectDatestamp      = 396
	CmdObjectDatestampByUID = 397
	CmdServerShutdown       = 400
	CmdCustomExecute        = 998
	CmdStreamCustom         = 999
)

// Stream names.
const (
	StreamObjects = "objects"
	StreamCustom  = "custom"
)

// Stream start markers.
const (
	ObjectStreamStart = "ObjectStreamStart"
	CustomStreamStart = "CustomStreamStart"
)

// ObjectStore persists world objects for a server instance.
type ObjectStore interface {
	Populate(ctx context.Context, instance int) iter.Seq2[wire.List, error]
	Create(ctx context.Context, instance int, obj store.Object) error
	UpdateInventory(ctx context.Context, instance int, ident int64, byUID bool, inventory wire.List) error
	Delete(ctx context.Context, instance int, ident int64, byUID bool) error
	Datestamp(ctx context.Context, instance int, ident int64, byUID bool) error
	UpdateMovement(ctx context.Context, instance int, id int64, worldspace wire.List, fuel float64) error
	UpdateStatus(ctx context.Context, instance int, id int64, hitpoints wire.List, damage float64) error
	FetchID(ctx context.Context, instance int, uid int64) (int64, error)
}

// CustomStore runs caller-supplied SQL templates.
type CustomStore interface {
	Populate(ctx context.Context, template string, args wire.List) iter.Seq2[wire.List, error]
	Execute(ctx context.Context, template string, args wire.List) (bool, error)
}

// Clock reports server wall time.
type Clock interface {
	Now() time.Time
}

// App binds the handlers to their data sources.
type App struct {
	objects ObjectStore
	custom  CustomStore
	clock   Clock
	log     zerolog.Logger
}

func New(objects ObjectStore, custom CustomStore, clk Clock, log zerolog.Logger) *App {
	return &App{objects: objects, custom: custom, clock: clk, log: log}
}

// Commands returns the dispatch table entries served by the app.
func (a *App) Commands() []dispatch.Command {
	objectIdent := dispatch.Param{Name: "objectId", Kind: dispatch.ArgBigInt}
	objectUID := dispatch.Param{Name: "objectUid", Kind: dispatch.ArgBigInt}

	return []dispatch.Command{
		{
			ID:   CmdStreamObjects,
			Name: "streamObjects",
			Schema: dispatch.Schema{
				{Name: "serverId", Kind: dispatch.ArgInt, Optional: true},
			},
			Handler: a.streamObjects,
		},
		{
			ID:      CmdObjectInventory,
			Name:    "objectInventory",
			Schema:  dispatch.Schema{objectIdent, {Name: "inventory", Kind: dispatch.ArgList}},
			Handler: a.objectInventory(false),
		},
		{
			ID:      CmdObjectDelete,
			Name:    "objectDelete",
			Schema:  dispatch.Schema{objectIdent},
			Handler: a.objectDelete(false),
		},
		{
			ID:   CmdVehicleMoved,
			Name: "vehicleMoved",
			Schema: dispatch.Schema{
				objectIdent,
				{Name: "worldspace", Kind: dispatch.ArgList},
				{Name: "fuel", Kind: dispatch.ArgFloat},
			},
			Handler: a.vehicleMoved,
		},
		{
			ID:   CmdVehicleDamaged,
			Name: "vehicleDamaged",
			Schema: dispatch.Schema{
				objectIdent,
				{Name: "hitpoints", Kind: dispatch.ArgList},
				{Name: "damage", Kind: dispatch.ArgFloat},
			},
			Handler: a.vehicleDamaged,
		},
		{
			ID:      CmdDateTime,
			Name:    "getDateTime",
			Handler: a.dateTime,
		},
		{
			ID:   CmdObjectPublish,
			Name: "objectPublish",
			Schema: dispatch.Schema{
				{Name: "serverId", Kind: dispatch.ArgAny},
				{Name: "classname", Kind: dispatch.ArgString},
				{Name: "damage", Kind: dispatch.ArgFloat},
				{Name: "characterId", Kind: dispatch.ArgInt},
				{Name: "worldspace", Kind: dispatch.ArgList},
				{Name: "inventory", Kind: dispatch.ArgList},
				{Name: "hitpoints", Kind: dispatch.ArgList},
				{Name: "fuel", Kind: dispatch.ArgFloat},
				{Name: "uid", Kind: dispatch.ArgBigInt},
			},
			Handler: a.objectPublish,
		},
		{
			ID:      CmdObjectInventoryByUID,
			Name:    "objectInventoryByUid",
			Schema:  dispatch.Schema{objectUID, {Name: "inventory", Kind: dispatch.ArgList}},
			Handler: a.objectInventory(true),
		},
		{
			ID:      CmdObjectDeleteByUID,
			Name:    "objectDeleteByUid",
			Schema:  dispatch.Schema{objectUID},
			Handler: a.objectDelete(true),
		},
		{
			ID:      CmdObjectReturnID,
			Name:    "objectReturnId",
			Schema:  dispatch.Schema{objectUID},
			Handler: a.objectReturnID,
		},
		{
			ID:      CmdObjectDatestamp,
			Name:    "objectDatestamp",
			Schema:  dispatch.Schema{objectIdent},
			Handler: a.objectDatestamp(false),
		},
		{
			ID:      CmdObjectDatestampByUID,
			Name:    "objectDatestampByUid",
			Schema:  dispatch.Schema{objectUID},
			Handler: a.objectDatestamp(true),
		},
		{
			ID:      CmdServerShutdown,
			Name:    "serverShutdown",
			Schema:  dispatch.Schema{{Name: "key", Kind: dispatch.ArgString}},
			Handler: a.serverShutdown,
		},
		{
			ID:   CmdCustomExecute,
			Name: "customExecute",
			Schema: dispatch.Schema{
				{Name: "template", Kind: dispatch.ArgText},
				{Name: "args", Kind: dispatch.ArgList},
			},
			Handler: a.customExecute,
		},
		{
			ID:   CmdStreamCustom,
			Name: "streamCustom",
			Schema: dispatch.Schema{
				{Name: "template", Kind: dispatch.ArgText, Optional: true},
				{Name: "args", Kind: dispatch.ArgList, Optional: true},
			},
			Handler: a.streamCustom,
		},
	}
}

// Register adds every command to t.
func (a *App) Register(t *dispatch.Table) error {
	for _, cmd := range a.Commands() {
		if err := t.Register(cmd); err != nil {
			return fmt.Errorf("register %s: %w", cmd.Name, err)
		}
	}
	return nil
}

// status turns a data source outcome into ["PASS"] or ["ERROR"], logging the
// failure.
func (a *App) status(op string, err error) dispatch.Result {
	if err != nil {
		a.log.Error().Err(err).Str("op", op).Msg("data source failure")
		return dispatch.Continue(dispatch.Status(false, ""))
	}
	return dispatch.Continue(dispatch.Status(true, ""))
}

// requireStart rejects a stream start that lacks one of its arguments.
func requireStart(p dispatch.Params, names ...string) error {
	for i, name := range names {
		if !p.Has(i) {
			return dispatch.ArgError{Index: i, Name: name, Reason: "required to start a stream"}
		}
	}
	return nil
}
