package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/hive/internal/wire"
	"github.com/mesh-intelligence/hive/pkg/types"
)

// ObjectRowMarker leads every row of the object stream.
const ObjectRowMarker = "OBJ"

// Object is a world object to be published.
type Object struct {
	UID         int64
	Classname   string
	CharacterID int
	Worldspace  wire.List
	Inventory   wire.List
	Hitpoints   wire.List
	Fuel        float64
	Damage      float64
}

// ObjectSource persists world objects scoped to a server instance. Objects
// are addressed either by object_id or, when byUID is set, by object_uid.
type ObjectSource struct {
	backend *Backend
	log     zerolog.Logger
}

func NewObjectSource(b *Backend, log zerolog.Logger) *ObjectSource {
	return &ObjectSource{backend: b, log: log}
}

const (
	selectObjects = `SELECT object_id, classname, character_id, worldspace, inventory, hitpoints, fuel, damage
FROM object_data WHERE instance = ? ORDER BY object_id`
	insertObject = `INSERT INTO object_data
(object_uid, instance, classname, character_id, worldspace, inventory, hitpoints, fuel, damage)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectObjectID = `SELECT object_id FROM object_data WHERE object_uid = ? AND instance = ?`
	updateMovement = `UPDATE object_data SET worldspace = ?, fuel = ?, last_updated = CURRENT_TIMESTAMP
WHERE object_id = ? AND instance = ?`
	updateStatus = `UPDATE object_data SET hitpoints = ?, damage = ?, last_updated = CURRENT_TIMESTAMP
WHERE object_id = ? AND instance = ?`
)

// identColumn picks the addressing column.
func identColumn(byUID bool) string {
	if byUID {
		return "object_uid"
	}
	return "object_id"
}

// Populate yields every object of instance as an object stream row:
// ["OBJ", "<id>", classname, "<characterId>", worldspace, inventory,
// hitpoints, fuel, damage].
func (s *ObjectSource) Populate(ctx context.Context, instance int) iter.Seq2[wire.List, error] {
	return func(yield func(wire.List, error) bool) {
		stmt, err := s.backend.Prepare(ctx, selectObjects)
		if err != nil {
			yield(nil, err)
			return
		}
		rows, err := stmt.QueryContext(ctx, instance)
		if err != nil {
			yield(nil, fmt.Errorf("query objects: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id, charID int64
			var classname, ws, inv, hitpoints string
			var fuel, damage float64
			if err := rows.Scan(&id, &classname, &charID, &ws, &inv, &hitpoints, &fuel, &damage); err != nil {
				yield(nil, fmt.Errorf("scan object: %w", err))
				return
			}
			row := wire.List{
				wire.String(ObjectRowMarker),
				wire.String(strconv.FormatInt(id, 10)),
				wire.String(classname),
				wire.String(strconv.FormatInt(charID, 10)),
				s.decodeColumn(id, "worldspace", ws),
				s.decodeColumn(id, "inventory", inv),
				s.decodeColumn(id, "hitpoints", hitpoints),
				wire.Double(fuel),
				wire.Double(damage),
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate objects: %w", err))
		}
	}
}

// decodeColumn parses a stored list. Bad text is replaced by [].
func (s *ObjectSource) decodeColumn(id int64, column, text string) wire.List {
	l, err := wire.Decode(text)
	if err != nil {
		s.log.Warn().Err(err).Int64("object_id", id).Str("column", column).Msg("stored value is not a list")
		return wire.List{}
	}
	return l
}

// Create inserts a new object.
func (s *ObjectSource) Create(ctx context.Context, instance int, obj Object) error {
	ws, err := encodeColumn("worldspace", obj.Worldspace)
	if err != nil {
		return err
	}
	inv, err := encodeColumn("inventory", obj.Inventory)
	if err != nil {
		return err
	}
	hp, err := encodeColumn("hitpoints", obj.Hitpoints)
	if err != nil {
		return err
	}
	return s.exec(ctx, "create object", insertObject,
		obj.UID, instance, obj.Classname, obj.CharacterID, ws, inv, hp, obj.Fuel, obj.Damage)
}

// UpdateInventory replaces the inventory of one object.
func (s *ObjectSource) UpdateInventory(ctx context.Context, instance int, ident int64, byUID bool, inventory wire.List) error {
	inv, err := encodeColumn("inventory", inventory)
	if err != nil {
		return err
	}
	query := "UPDATE object_data SET inventory = ?, last_updated = CURRENT_TIMESTAMP WHERE " +
		identColumn(byUID) + " = ? AND instance = ?"
	return s.exec(ctx, "update inventory", query, inv, ident, instance)
}

// Delete removes one object.
func (s *ObjectSource) Delete(ctx context.Context, instance int, ident int64, byUID bool) error {
	query := "DELETE FROM object_data WHERE " + identColumn(byUID) + " = ? AND instance = ?"
	return s.exec(ctx, "delete object", query, ident, instance)
}

// Datestamp marks one object as maintained now.
func (s *ObjectSource) Datestamp(ctx context.Context, instance int, ident int64, byUID bool) error {
	query := "UPDATE object_data SET datestamp = CURRENT_TIMESTAMP WHERE " +
		identColumn(byUID) + " = ? AND instance = ?"
	return s.exec(ctx, "datestamp object", query, ident, instance)
}

// UpdateMovement records a vehicle's position and fuel.
func (s *ObjectSource) UpdateMovement(ctx context.Context, instance int, id int64, worldspace wire.List, fuel float64) error {
	ws, err := encodeColumn("worldspace", worldspace)
	if err != nil {
		return err
	}
	return s.exec(ctx, "update movement", updateMovement, ws, fuel, id, instance)
}

// UpdateStatus records a vehicle's hitpoints and overall damage.
func (s *ObjectSource) UpdateStatus(ctx context.Context, instance int, id int64, hitpoints wire.List, damage float64) error {
	hp, err := encodeColumn("hitpoints", hitpoints)
	if err != nil {
		return err
	}
	return s.exec(ctx, "update status", updateStatus, hp, damage, id, instance)
}

// FetchID returns the object_id for uid. Returns ErrNotFound when no object
// has that uid.
func (s *ObjectSource) FetchID(ctx context.Context, instance int, uid int64) (int64, error) {
	stmt, err := s.backend.Prepare(ctx, selectObjectID)
	if err != nil {
		return 0, err
	}
	var id int64
	err = stmt.QueryRowContext(ctx, uid, instance).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, types.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("fetch object id: %w", err)
	}
	return id, nil
}

func (s *ObjectSource) exec(ctx context.Context, op, query string, args ...any) error {
	stmt, err := s.backend.Prepare(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func encodeColumn(column string, l wire.List) (string, error) {
	if l == nil {
		l = wire.List{}
	}
	text, err := wire.Encode(l)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", column, err)
	}
	return text, nil
}
