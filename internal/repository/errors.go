// Package repository holds the MySQL persistence for staff accounts,
// refresh tokens, the catalog, transaction history and devices. Queries
// use database/sql with ? placeholders.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when a lookup by key matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("conflict")
	// ErrEmailExists is a conflict on users.email.
	ErrEmailExists = errors.New("email already exists")
	// ErrTokenInvalid covers unknown, revoked and expired refresh tokens.
	ErrTokenInvalid = errors.New("refresh token invalid")
)

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
