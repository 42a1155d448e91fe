package netdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/foiacquire/foiacquire/internal/catalog"
)

// wrapDBError mirrors internal/catalog/sqlite's wrapDBError, normalizing
// MySQL's duplicate-key wording instead of SQLite's constraint wording.
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
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "1062")
}
