package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrInsufficientStock is returned when a guarded stock decrement matches no row.
var ErrInsufficientStock = errors.New("insufficient stock")

const uniqueViolation = "23505"

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// prefixPattern builds a LIKE pattern matching the lowercased prefix literally.
func prefixPattern(prefix string) string {
	return likeEscaper.Replace(strings.ToLower(strings.TrimSpace(prefix))) + "%"
}

// containsPattern builds a LIKE pattern matching the lowercased term literally anywhere.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}
