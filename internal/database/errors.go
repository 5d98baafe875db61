package database

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const pqUniqueViolation = "23505"

// Translate maps driver errors onto ErrNotFound / ErrConflict so callers
// above the store never inspect driver types.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrConflict
	}

	// sqlite reports primary key and unique index violations the same way
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrConflict
	}

	return err
}
