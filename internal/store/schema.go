package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/hive/pkg/types"
)

// List-valued columns hold wire text, e.g. [0,[1,2,3]].
const (
	createObjectDataSQLite = `CREATE TABLE IF NOT EXISTS object_data (
    object_id INTEGER PRIMARY KEY AUTOINCREMENT,
    object_uid INTEGER NOT NULL DEFAULT 0,
    instance INTEGER NOT NULL,
    classname TEXT NOT NULL,
    character_id INTEGER NOT NULL DEFAULT 0,
    worldspace TEXT NOT NULL DEFAULT '[]',
    inventory TEXT NOT NULL DEFAULT '[]',
    hitpoints TEXT NOT NULL DEFAULT '[]',
    fuel REAL NOT NULL DEFAULT 0,
    damage REAL NOT NULL DEFAULT 0,
    last_updated TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    datestamp TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

	createObjectDataPostgres = `CREATE TABLE IF NOT EXISTS object_data (
    object_id BIGSERIAL PRIMARY KEY,
    object_uid BIGINT NOT NULL DEFAULT 0,
    instance INTEGER NOT NULL,
    classname TEXT NOT NULL,
    character_id INTEGER NOT NULL DEFAULT 0,
    worldspace TEXT NOT NULL DEFAULT '[]',
    inventory TEXT NOT NULL DEFAULT '[]',
    hitpoints TEXT NOT NULL DEFAULT '[]',
    fuel DOUBLE PRECISION NOT NULL DEFAULT 0,
    damage DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    datestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

	idxObjectDataInstanceUID = `CREATE INDEX IF NOT EXISTS idx_object_data_instance_uid ON object_data(instance, object_uid);`
)

var schemaDDL = map[string][]string{
	types.DriverSQLite:   {createObjectDataSQLite, idxObjectDataInstanceUID},
	types.DriverPostgres: {createObjectDataPostgres, idxObjectDataInstanceUID},
}

func createSchema(ctx context.Context, db *sql.DB, driver string) error {
	for _, ddl := range schemaDDL[driver] {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
