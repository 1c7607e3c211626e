package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned when a write violates a uniqueness constraint.
var ErrDuplicateKey = errors.New("duplicate key")

// Column-specific duplicates. Both match ErrDuplicateKey with errors.Is.
var (
	ErrDuplicateUsername = fmt.Errorf("username: %w", ErrDuplicateKey)
	ErrDuplicateEmail    = fmt.Errorf("email: %w", ErrDuplicateKey)
)

const uniqueViolation = "23505"

// mapUniqueViolation translates driver unique violations from either lib/pq
// or pgx into the duplicate sentinels; other errors pass through.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return duplicateFor(pqErr.Constraint)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return duplicateFor(pgErr.ConstraintName)
	}
	return err
}

func duplicateFor(constraint string) error {
	switch {
	case strings.Contains(constraint, "email"):
		return ErrDuplicateEmail
	case strings.Contains(constraint, "username"):
		return ErrDuplicateUsername
	default:
		return ErrDuplicateKey
	}
}

// Normalize trims and lowercases a username or email.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
