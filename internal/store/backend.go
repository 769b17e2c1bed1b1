// Package store implements the SQL side of the bridge: a database/sql
// backend with attach/detach lifecycle and a per-query statement cache, the
// caller-templated custom source, and the object data source.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/hive/pkg/types"
)

// DefaultDBFile is the sqlite database created in the data directory when
// no DSN is configured.
const DefaultDBFile = "hive.db"

// sqlDriverNames maps configured drivers to registered database/sql names.
var sqlDriverNames = map[string]string{
	types.DriverSQLite:   "sqlite",
	types.DriverPostgres: "pgx",
}

// Backend owns the database handle. Prepared statements are cached per query
// text for as long as the backend stays attached.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	driver   string
	db       *sql.DB
	log      zerolog.Logger

	stmtMu sync.Mutex
	stmts  map[string]*sql.Stmt
}

// NewBackend creates a detached backend. Call Attach before use.
func NewBackend(log zerolog.Logger) *Backend {
	return &Backend{
		log:   log,
		stmts: make(map[string]*sql.Stmt),
	}
}

// Attach opens the configured database and creates the schema if missing.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(ctx context.Context, cfg types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	dsn, err := resolveDSN(cfg)
	if err != nil {
		return err
	}
	db, err := sql.Open(sqlDriverNames[cfg.Database.Driver], dsn)
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	if cfg.Database.Driver == types.DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping %s database: %w", cfg.Database.Driver, err)
	}
	if err := createSchema(ctx, db, cfg.Database.Driver); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.driver = cfg.Database.Driver
	b.attached = true
	b.log.Info().Str("driver", b.driver).Msg("database attached")
	return nil
}

// resolveDSN fills in the sqlite file path when no DSN is given, creating the
// data directory as needed.
func resolveDSN(cfg types.Config) (string, error) {
	if cfg.Database.DSN != "" || cfg.Database.Driver != types.DriverSQLite {
		return cfg.Database.DSN, nil
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return filepath.Join(dataDir, DefaultDBFile), nil
}

// Detach closes cached statements and the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stmtMu.Lock()
	for query, stmt := range b.stmts {
		if err := stmt.Close(); err != nil {
			b.log.Warn().Err(err).Str("query", query).Msg("close statement")
		}
	}
	b.stmts = make(map[string]*sql.Stmt)
	b.stmtMu.Unlock()

	err := b.db.Close()
	b.db = nil
	b.attached = false
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Driver returns the attached driver name, or "" when detached.
func (b *Backend) Driver() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.driver
}

// DB returns the database handle. Returns ErrDetached when not attached.
func (b *Backend) DB() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}
	return b.db, nil
}

// Prepare returns the cached statement for query, preparing it on first use.
// Queries use ? placeholders regardless of driver.
func (b *Backend) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	b.stmtMu.Lock()
	defer b.stmtMu.Unlock()
	if stmt, ok := b.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := b.db.PrepareContext(ctx, Rebind(b.driver, query))
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	b.stmts[query] = stmt
	b.log.Debug().Str("query", query).Int("cached", len(b.stmts)).Msg("statement prepared")
	return stmt, nil
}

// cachedStatements reports the size of the statement cache.
func (b *Backend) cachedStatements() int {
	b.stmtMu.Lock()
	defer b.stmtMu.Unlock()
	return len(b.stmts)
}

// Rebind rewrites ? placeholders into the driver's native form.
func Rebind(driver, query string) string {
	if driver != types.DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			sb.WriteByte(query[i])
			continue
		}
		n++
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

// placeholders counts ? in a template. Every ? counts, including one inside
// a quoted literal.
func placeholders(template string) int {
	return strings.Count(template, "?")
}
