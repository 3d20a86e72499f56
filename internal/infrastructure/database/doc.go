// Package database provides SQL connectivity for the device health service.
//
// Two backends are supported through database/sql:
//   - SQLite (mattn/go-sqlite3), the default, with WAL mode and a single connection
//   - PostgreSQL (jackc/pgx stdlib driver) with a bounded pool
//
// All queries in the service use $N placeholders in ascending order, which
// both drivers bind positionally.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database file permissions are set to 0600
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Driver: cfg.Database.Driver,
//	    Path:   cfg.Database.Path,
//	    DSN:    cfg.Database.DSN,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// The migrations package registers its embedded files at init through
// RegisterMigrations. Each version has an .up.sql and usually a .down.sql
// file, written in SQL accepted by both backends. Tests pass their own
// filesystem to MigrateFS.
package database
