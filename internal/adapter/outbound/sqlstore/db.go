// Package sqlstore implements the policy, tenant and record ports on
// database/sql. Two dialects are supported: PostgreSQL through the pgx
// stdlib driver and embedded SQLite through modernc.org/sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
)

// Dialect selects SQL syntax differences between backends.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName maps a dialect to its registered database/sql driver.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// DB wraps a *sql.DB with its dialect.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// Options configures Open.
type Options struct {
	Dialect      Dialect
	DSN          string
	MaxOpenConns int
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, opts Options) (*DB, error) {
	switch opts.Dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", opts.Dialect)
	}

	dsn := opts.DSN
	if opts.Dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}
	sqlDB, err := sql.Open(opts.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Dialect, err)
	}
	switch {
	case opts.Dialect == DialectSQLite:
		// SQLite has a single writer. One connection serializes callers in
		// the pool instead of failing them with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	case opts.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(max(opts.MaxOpenConns/2, 1))
	}
	sqlDB.SetConnMaxLifetime(15 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	db := New(sqlDB, opts.Dialect)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Dialect, err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// sqlitePragmas are applied to every SQLite connection unless the DSN
// already sets them. foreign_keys is off by default in SQLite, which would
// leave the policy_hits cascade inert.
var sqlitePragmas = []struct{ name, value string }{
	{"foreign_keys", "1"},
	{"busy_timeout", "5000"},
	{"journal_mode", "WAL"},
}

// sqliteDSN adds the required pragmas to dsn.
func sqliteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, p.name) {
			continue
		}
		b.WriteString(sep + "_pragma=" + p.name + "(" + p.value + ")")
		sep = "&"
	}
	return b.String()
}

// New wraps an existing connection pool. The schema is not applied.
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

// Close closes the pool.
func (d *DB) Close() error { return d.db.Close() }

// Ping checks connectivity, for health reporting.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Dialect returns the configured dialect.
func (d *DB) Dialect() Dialect { return d.dialect }

// rebind rewrites '?' placeholders to '$n' for PostgreSQL.
// Queries in this package never contain literal question marks.
func (d *DB) rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
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

// sqliteTimeLayout is fixed width so TEXT columns sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// ts converts t to the column representation of the dialect.
func (d *DB) ts(t time.Time) any {
	t = t.UTC()
	if d.dialect == DialectSQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

// nullTS is ts for optional timestamps.
func (d *DB) nullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.ts(*t)
}

// scanTime scans either a native timestamp or its SQLite text form.
type scanTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (s *scanTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		s.Time, s.Valid = time.Time{}, false
		return nil
	case time.Time:
		s.Time, s.Valid = v.UTC(), true
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (s *scanTime) parse(v string) error {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	s.Time, s.Valid = t.UTC(), true
	return nil
}

func (s scanTime) ptr() *time.Time {
	if !s.Valid {
		return nil
	}
	t := s.Time
	return &t
}

// isUniqueViolation reports whether err is a unique or primary key violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// storeErr classifies a driver error for operation op.
func storeErr(op string, err error) error {
	return fault.Unavailable(op, err)
}

// rollback is deferred after BeginTx; it is a no-op once the tx committed.
func rollback(tx *sql.Tx) { _ = tx.Rollback() }
