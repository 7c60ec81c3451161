// Package repository implements the MySQL persistence for identities,
// organizations, teams, memberships, role templates and role assignments.
// Every method translates driver errors into the model sentinels so
// higher layers never look at SQL error codes: a missing row becomes
// model.ErrNotFound and a duplicate unique key becomes model.ErrConflict.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/opla-backend/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// translate maps driver errors onto model sentinels, naming what failed.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	case isDuplicate(err):
		return fmt.Errorf("%s: %w", what, model.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// nullString converts an optional string for a nullable column.
func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// strPtr is the inverse of nullString.
func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
