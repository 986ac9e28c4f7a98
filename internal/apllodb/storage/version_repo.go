package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// Version physical tables self-contain the tuple (apparent_pk, revision,
// non_pk_values*); the navi table records which revision of each apparent
// PK is live and in which Version, so full scans as well as point lookups
// by apparent PK are driven by navi.
//
// Dynamic CREATE TABLE/ALTER TABLE DDL has a computed column list that
// squirrel's fluent builder isn't meant to express, so these statements are
// hand-built via fmt.Sprintf; squirrel is reserved for the fixed-shape
// metadata and navi DML elsewhere in this package.

func sqliteColumnType(t sqltype.Type) string {
	switch t {
	case sqltype.SmallInt, sqltype.Integer, sqltype.BigInt, sqltype.Boolean:
		return "INTEGER"
	case sqltype.Text:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// createVersionPhysicalTable creates the physical table backing v, named
// deterministically per naming.go.
func createVersionPhysicalTable(ctx context.Context, db dbExecutor, tableName string, v vtable.Version, pkCols []schema.ColumnName, pkTypes map[schema.ColumnName]sqltype.DataType) error {
	phys := versionTableName(tableName, v.ID.VersionNumber, v.Active)
	var cols []string
	for _, c := range pkCols {
		cols = append(cols, fmt.Sprintf("%q %s NOT NULL", c, sqliteColumnType(pkTypes[c])))
	}
	cols = append(cols, "revision INTEGER NOT NULL")
	for _, c := range v.ColumnNames {
		dt := v.ColumnDataTypes[c]
		null := "NOT NULL"
		if dt.Nullable {
			null = ""
		}
		cols = append(cols, strings.TrimSpace(fmt.Sprintf("%q %s %s", c, sqliteColumnType(dt.Type), null)))
	}
	stmt := fmt.Sprintf("CREATE TABLE %q (navi_row_id INTEGER PRIMARY KEY AUTOINCREMENT, %s)", phys, strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return classify(err)
	}
	return nil
}

func dropVersionPhysicalTable(ctx context.Context, db dbExecutor, tableName string, v vtable.Version) error {
	phys := versionTableName(tableName, v.ID.VersionNumber, v.Active)
	_, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", phys))
	if err != nil {
		return classify(err)
	}
	return nil
}

// deactivateVersionPhysicalTable renames the active-flagged table to its
// inactive-flagged name, since the active flag is encoded in the name
// itself.
func deactivateVersionPhysicalTable(ctx context.Context, db dbExecutor, tableName string, versionNumber vtable.VersionNumber) error {
	oldName := versionTableName(tableName, versionNumber, true)
	newName := versionTableName(tableName, versionNumber, false)
	_, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %q RENAME TO %q", oldName, newName))
	if err != nil {
		return classify(err)
	}
	return nil
}

// insertPhysicalRow inserts one (pk, revision, non_pk) tuple into the
// version's physical table and returns its rowid, used as physical_row_id.
func insertPhysicalRow(ctx context.Context, db dbExecutor, tableName string, versionNumber vtable.VersionNumber, active bool, pk row.PKValues, revision int64, nonPK row.NonPKValues) (int64, error) {
	phys := versionTableName(tableName, versionNumber, active)
	cols := make([]string, 0, len(pk.Columns)+1+len(nonPK.Columns))
	vals := make([]any, 0, cap(cols))
	for i, c := range pk.Columns {
		cols = append(cols, string(c))
		vals = append(vals, pk.Values[i].ToDriverValue())
	}
	cols = append(cols, "revision")
	vals = append(vals, revision)
	for i, c := range nonPK.Columns {
		cols = append(cols, string(c))
		vals = append(vals, nonPK.Values[i].ToDriverValue())
	}
	q := builder.Insert(phys).Columns(cols...).Values(vals...)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.IoError, err, "build physical row insert")
	}
	res, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// fetchNonPKByRowID reads the non-PK column values of one physical row,
// identified by its navi_row_id, out of the version's physical table. This
// is how FullScan/UPDATE resolve a navi entry's current value set: the
// navi table is the source of truth for which row is live, the physical
// table is the source of truth for its contents.
func fetchNonPKByRowID(ctx context.Context, db dbExecutor, tableName string, v vtable.Version, rowid string) (row.NonPKValues, error) {
	phys := versionTableName(tableName, v.ID.VersionNumber, v.Active)
	id, err := parseRowID(rowid)
	if err != nil {
		return row.NonPKValues{}, apperrors.Wrap(apperrors.IoError, err, "parse physical row id")
	}
	cols := columnNameStrings(v.ColumnNames)
	q := builder.Select(cols...).From(phys).Where(sq.Eq{"navi_row_id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return row.NonPKValues{}, apperrors.Wrap(apperrors.IoError, err, "build physical row fetch")
	}
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = &raw[i]
	}
	if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(dest...); err != nil {
		return row.NonPKValues{}, classify(err)
	}
	vals := make([]sqltype.Value, len(v.ColumnNames))
	for i, c := range v.ColumnNames {
		val, err := sqltype.FromDriverValue(v.ColumnDataTypes[c].Type, raw[i])
		if err != nil {
			return row.NonPKValues{}, apperrors.Wrap(apperrors.IoError, err, "decode column value")
		}
		vals[i] = val
	}
	return row.NewNonPKValues(v.ColumnNames, vals), nil
}

func columnNameStrings(cols []schema.ColumnName) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = string(c)
	}
	return out
}

func parseRowID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatRowID(id int64) string {
	return strconv.FormatInt(id, 10)
}
