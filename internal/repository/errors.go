// Package repository holds the MySQL and Redis backed stores.  Sentinel
// errors here let handlers distinguish failure cases without inspecting
// driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when an insert collides with an existing key.
// Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a lookup by key yields no rows.
var ErrNotFound = errors.New("not found")

// isDuplicate reports a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
