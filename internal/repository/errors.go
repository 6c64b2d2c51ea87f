// Package repository holds the MySQL and Redis data access used by the auth
// core.  Sentinel values below let higher layers distinguish failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")
