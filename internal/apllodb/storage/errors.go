package storage

import (
	"strings"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
)

func isUniqueErr(err error) bool {
	return err != nil && containsAny(err.Error(),
		"UNIQUE constraint failed",
		"constraint failed: UNIQUE",
	)
}

func isNotNullErr(err error) bool {
	return err != nil && containsAny(err.Error(),
		"NOT NULL constraint failed",
		"constraint failed: NOTNULL",
	)
}

func isForeignKeyErr(err error) bool {
	return err != nil && containsAny(err.Error(),
		"FOREIGN KEY constraint failed",
		"constraint failed: FOREIGN KEY",
	)
}

func isBusyErr(err error) bool {
	return err != nil && containsAny(err.Error(),
		"database is locked",
		"SQLITE_BUSY",
		"database table is locked",
	)
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// classify maps a raw SQLite error into apllodb's Kind taxonomy
//, falling back to IoError for anything unrecognized.
func classify(err error) *apperrors.Error {
	if err == nil {
		return nil
	}
	switch {
	case isUniqueErr(err):
		return apperrors.Wrap(apperrors.IntegrityConstraintUniqueViolation, err, "unique constraint violated")
	case isNotNullErr(err):
		return apperrors.Wrap(apperrors.IntegrityConstraintNotNullViolation, err, "not null constraint violated")
	case isForeignKeyErr(err):
		return apperrors.Wrap(apperrors.IntegrityConstraintViolation, err, "foreign key constraint violated")
	case isBusyErr(err):
		return apperrors.Wrap(apperrors.DeadlockDetected, err, "database file busy")
	default:
		return apperrors.Wrap(apperrors.IoError, err, "storage i/o error")
	}
}
