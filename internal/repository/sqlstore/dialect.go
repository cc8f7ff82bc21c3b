package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect hides the SQL differences between the supported engines. Queries
// are written with ? placeholders and rebound per engine.
type dialect interface {
	name() string
	rebind(query string) string

	// inSet and notInSet return a predicate over column that takes the whole
	// set as a single bound parameter built by stringSet or intSet.
	inSet(column string) string
	notInSet(column string) string
	stringSet(values []string) (any, error)
	intSet(values []int64) (any, error)

	schema() []string
	initConn(ctx context.Context, conn *sql.Conn) error
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite, "sqlite3":
		return sqliteDialect{}, nil
	case DriverPostgres, "postgresql", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ============================================================================
// SQLite
// ============================================================================

type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) inSet(column string) string {
	return column + " IN (SELECT value FROM json_each(?))"
}

func (sqliteDialect) notInSet(column string) string {
	return column + " NOT IN (SELECT value FROM json_each(?))"
}

func (sqliteDialect) stringSet(values []string) (any, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (sqliteDialect) intSet(values []int64) (any, error) {
	if values == nil {
		values = []int64{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (sqliteDialect) schema() []string {
	return schemaStatements("REAL", "INTEGER", " WITHOUT ROWID")
}

func (sqliteDialect) initConn(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

// ============================================================================
// Postgres
// ============================================================================

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

// rebind rewrites ? placeholders to $1, $2, ...
func (postgresDialect) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (postgresDialect) inSet(column string) string {
	return column + " = ANY(?)"
}

func (postgresDialect) notInSet(column string) string {
	return "NOT (" + column + " = ANY(?))"
}

func (postgresDialect) stringSet(values []string) (any, error) {
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func (postgresDialect) intSet(values []int64) (any, error) {
	if values == nil {
		values = []int64{}
	}
	return values, nil
}

func (postgresDialect) schema() []string {
	return schemaStatements("DOUBLE PRECISION", "BIGINT", "")
}

func (postgresDialect) initConn(context.Context, *sql.Conn) error { return nil }
