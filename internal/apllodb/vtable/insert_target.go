package vtable

import (
	"fmt"
	"strings"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
)

// SelectInsertTarget implements the INSERT version-selection
// policy: among the newest-first ActiveVersions, pick the newest Version
// such that every supplied column is either a PK column or exists in that
// Version, and every NOT NULL column of that Version is supplied.
//
// Failure taxonomy:
//   - if no Version contains some supplied column name at all -> UndefinedColumn
//   - else if every Version rejects the row for NOT-NULL/type reasons -> IntegrityConstraintViolation
func SelectInsertTarget(active ActiveVersions, pkCols []schema.ColumnName, supplied row.NonPKValues) (*Version, error) {
	suppliedSet := make(map[schema.ColumnName]bool, len(supplied.Columns))
	for _, c := range supplied.Columns {
		suppliedSet[c] = true
	}
	pkSet := make(map[schema.ColumnName]bool, len(pkCols))
	for _, c := range pkCols {
		pkSet[c] = true
	}

	// First, verify every supplied non-PK column exists in at least one
	// active Version; otherwise it's a genuinely undefined column.
	for c := range suppliedSet {
		if pkSet[c] {
			continue
		}
		foundSomewhere := false
		for _, v := range active.Versions {
			if v.HasColumn(c) {
				foundSomewhere = true
				break
			}
		}
		if !foundSomewhere {
			return nil, apperrors.New(apperrors.UndefinedColumn, string(c))
		}
	}

	var rejectReasons []string
	for _, v := range active.Versions {
		ok := true
		for c := range suppliedSet {
			if pkSet[c] {
				continue
			}
			if !v.HasColumn(c) {
				ok = false
				rejectReasons = append(rejectReasons, fmt.Sprintf("version %d: column %q not defined", v.ID.VersionNumber, c))
				break
			}
		}
		if !ok {
			continue
		}
		for _, nn := range v.NonNullColumns() {
			if !suppliedSet[nn] {
				ok = false
				rejectReasons = append(rejectReasons, fmt.Sprintf("version %d: NOT NULL column %q missing", v.ID.VersionNumber, nn))
				break
			}
		}
		if ok {
			vCopy := v
			return &vCopy, nil
		}
	}

	return nil, apperrors.New(apperrors.IntegrityConstraintViolation, strings.Join(rejectReasons, "; "))
}
