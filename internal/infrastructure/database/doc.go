// Package database provides relational storage connectivity for Sentinel Core.
//
// This package manages:
//   - SQLite (mattn/go-sqlite3) and PostgreSQL (pgx stdlib) connections behind one DB type
//   - Placeholder rebinding so repositories write ? and run on either dialect
//   - Per-dialect schema migrations recorded in schema_migrations
//   - Transactions (WithTx) and unique-constraint detection (UniqueViolation)
//
// Security Considerations:
//   - All queries use parameterised statements
//   - SQLite database file permissions are set to 0600
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "sqlite3", Path: "./data/sentinel.db", WALMode: true})
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
// Timestamps are stored as RFC 3339 TEXT and calendar dates as YYYY-MM-DD TEXT
// in both dialects, so scanning code is shared. Each migration file has both
// .up.sql and .down.sql.
package database
