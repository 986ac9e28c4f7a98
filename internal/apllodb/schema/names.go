// Package schema holds short-name identifiers and the row schema types
// (ordered table-column names, plus the aliaser/index that lets SeqScan
// output be looked up by "column", "table.column", or an alias form).
package schema

import (
	"strings"
	"unicode/utf8"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
)

// MaxNameLength is the identifier length limit: at most
// 64 Unicode scalar values.
const MaxNameLength = 64

// ValidateName enforces the identifier rule for any database,
// table, column, or alias name.
func ValidateName(kind, name string) error {
	if name == "" {
		return apperrors.New(apperrors.InvalidName, kind+" name must not be empty")
	}
	n := utf8.RuneCountInString(name)
	if n > MaxNameLength {
		return apperrors.New(apperrors.NameTooLong, kind+" name exceeds 64 Unicode scalar values: "+name)
	}
	return nil
}

// DatabaseName is a validated database identifier.
type DatabaseName string

// TableName is a validated table identifier (unqualified).
type TableName string

// ColumnName is a validated column identifier (unqualified).
type ColumnName string

// QuoteIdent renders name as a SQLite double-quoted identifier, escaping
// embedded quotes. Used everywhere the storage engine builds SQL against
// dynamically named physical tables.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
