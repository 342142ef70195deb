// Package repository holds the SQL data access layer. Every repository
// works on database/sql with `?` placeholders so the same statements run on
// MySQL and SQLite.
//
// Sentinel values let higher layers distinguish failure scenarios without
// inspecting driver errors. Anything else a repository returns is a storage
// failure.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when the addressed row does not exist (or is no
// longer active).
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint, such
// as a second ACTIVE reservation for the same laboratory, slot and date.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when a user is created or renamed to an email
// that is already taken.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isUniqueViolation reports whether err is a unique/primary key violation on
// either supported driver.
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}
