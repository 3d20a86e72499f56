package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
)

// Values accepted in Config.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	pingTimeout = 5 * time.Second
	idleTimeout = 30 * time.Minute

	sqliteDirMode  = 0o750
	sqliteFileMode = 0o600
)

// ErrUnsupportedDriver is returned by Open for a driver it does not know.
var ErrUnsupportedDriver = errors.New("database: unsupported driver")

// Config selects and tunes the backend. Path, WALMode and BusyTimeout
// apply to SQLite; DSN applies to PostgreSQL.
type Config struct {
	Driver      string // "sqlite" when empty
	Path        string
	DSN         string
	WALMode     bool
	BusyTimeout int // seconds
}

// DB is a *sql.DB that remembers which backend it talks to. Statements
// use $N placeholders, which both drivers accept.
type DB struct {
	*sql.DB
	driver string
	path   string
}

// Open connects to the configured backend and pings it before returning.
func Open(cfg Config) (*DB, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}

	var (
		conn *sql.DB
		err  error
	)
	switch cfg.Driver {
	case DriverSQLite:
		conn, err = openSQLite(cfg)
	case DriverPostgres:
		conn, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("database: ping %s: %w", cfg.Driver, err)
	}

	db := &DB{DB: conn, driver: cfg.Driver}
	if cfg.Driver == DriverSQLite {
		db.path = cfg.Path
		// The file may only appear on first write.
		_ = os.Chmod(cfg.Path, sqliteFileMode)
	}
	return db, nil
}

// openSQLite pins the pool to one connection: SQLite allows a single
// writer and the pragmas are per connection.
func openSQLite(cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), sqliteDirMode); err != nil {
		return nil, fmt.Errorf("database: create directory: %w", err)
	}

	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*1000))
	q.Set("_foreign_keys", "on")
	if cfg.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}

	conn, err := sql.Open("sqlite3", "file:"+cfg.Path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("database: open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxIdleTime(idleTimeout)
	return conn, nil
}

func openPostgres(cfg Config) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database: postgres requires a dsn")
	}
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: open postgres: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(idleTimeout)
	return conn, nil
}

// Close releases the pool. Safe on a DB that never opened.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("database: close: %w", err)
	}
	return nil
}

// Driver reports DriverSQLite or DriverPostgres.
func (db *DB) Driver() string { return db.driver }

// Path is the SQLite file, or "" for PostgreSQL.
func (db *DB) Path() string { return db.path }

// HealthCheck round-trips a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database: health check: %w", err)
	}
	return nil
}

// ExecContext is sql.DB.ExecContext with the error tagged.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: exec: %w", err)
	}
	return res, nil
}

// BeginTx is sql.DB.BeginTx with the error tagged. Callers defer
// tx.Rollback, which is a no-op after Commit.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("database: begin: %w", err)
	}
	return tx, nil
}
