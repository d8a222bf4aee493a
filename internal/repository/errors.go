package repository

import "errors"

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

var (
	ErrNoRowsUpdated = errors.New("no rows affected")
	ErrDuplicateKey  = errors.New("duplicate key")
)
