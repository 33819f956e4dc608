package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// UniqueViolation reports whether err is a unique-constraint failure from
// either supported driver, and if so which column tripped it.
//
// The column is best-effort: SQLite reports "table.column" in the message and
// PostgreSQL reports a constraint name such as "users_email_key".
// An empty field with ok=true means the column could not be determined.
func UniqueViolation(err error) (field string, ok bool) {
	if err == nil {
		return "", false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique &&
			sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return "", false
		}
		return sqliteUniqueField(sqliteErr.Error()), true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgerrcode.UniqueViolation {
			return "", false
		}
		return pgUniqueField(pgErr.TableName, pgErr.ConstraintName), true
	}

	// Drivers wrapped by something that hides their error type still carry the text.
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return sqliteUniqueField(msg), true
	}
	if strings.Contains(msg, "duplicate key value violates unique constraint") {
		return "", true
	}
	return "", false
}

// sqliteUniqueField extracts "email" from "UNIQUE constraint failed: users.email".
// Composite constraints report only the first column.
func sqliteUniqueField(msg string) string {
	_, cols, found := strings.Cut(msg, "UNIQUE constraint failed: ")
	if !found {
		return ""
	}
	first, _, _ := strings.Cut(cols, ",")
	if _, col, ok := strings.Cut(strings.TrimSpace(first), "."); ok {
		return col
	}
	return strings.TrimSpace(first)
}

// pgUniqueField extracts "email" from table "users" and constraint "users_email_key".
func pgUniqueField(table, constraint string) string {
	name := constraint
	for _, suffix := range []string{"_key", "_idx", "_unique"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if table != "" {
		name = strings.TrimPrefix(name, table+"_")
	}
	return name
}
