package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/foiacquire/foiacquire/internal/catalog"
)

// wrapDBError normalizes sql.ErrNoRows and unique-constraint violations to
// the sentinels catalog callers expect, the same convention the teacher's
// internal/storage/sqlite/errors.go uses for wrapDBError/wrapDBErrorf.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, catalog.ErrNotFound)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, catalog.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}
