package database

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned by single-row lookups that match nothing.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateFingerprint is returned when another session already
	// holds the fingerprint being inserted.
	ErrDuplicateFingerprint = errors.New("fingerprint already imported")
)

const (
	uniqueViolation      = "23505"
	fingerprintUniqueKey = "import_sessions_fingerprint_key"
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique violation,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// CopyLine reports the zero-based position, within a COPY batch, of the row
// a server error points at. Postgres names it in the error context as
// "COPY <table>, line N[, column ...]".
func CopyLine(err error) (int, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, false
	}
	_, rest, ok := strings.Cut(pgErr.Where, ", line ")
	if !ok || !strings.HasPrefix(pgErr.Where, "COPY ") {
		return 0, false
	}
	end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		rest = rest[:end]
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
