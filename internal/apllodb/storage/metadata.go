package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// builder is the shared squirrel statement builder, using "?" placeholders
// to match modernc.org/sqlite's driver convention.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

type columnDefJSON struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func encodeColumnDefs(defs []vtable.ColumnDef) (string, error) {
	out := make([]columnDefJSON, len(defs))
	for i, d := range defs {
		out[i] = columnDefJSON{Name: string(d.Name), Type: string(d.DataType.Type), Nullable: d.DataType.Nullable}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", apperrors.Wrap(apperrors.SerializationError, err, "encode column defs")
	}
	return string(b), nil
}

func decodeColumnDefs(s string) ([]vtable.ColumnDef, []schema.ColumnName, map[schema.ColumnName]sqltype.DataType, error) {
	var in []columnDefJSON
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return nil, nil, nil, apperrors.Wrap(apperrors.DeserializationError, err, "decode column defs")
	}
	defs := make([]vtable.ColumnDef, len(in))
	names := make([]schema.ColumnName, len(in))
	types := make(map[schema.ColumnName]sqltype.DataType, len(in))
	for i, d := range in {
		cn := schema.ColumnName(d.Name)
		dt := sqltype.DataType{Type: sqltype.Type(d.Type), Nullable: d.Nullable}
		defs[i] = vtable.ColumnDef{Name: cn, DataType: dt}
		names[i] = cn
		types[cn] = dt
	}
	return defs, names, types, nil
}

// putVTableMeta upserts a VTable's table-wide constraint set.
func putVTableMeta(ctx context.Context, db dbExecutor, tableName string, cs vtable.ConstraintSet) error {
	b, err := json.Marshal(cs)
	if err != nil {
		return apperrors.Wrap(apperrors.SerializationError, err, "encode constraint set")
	}
	q := builder.Insert(vtableMetaTable).
		Columns("table_name", "constraints_json", "updated_at").
		Values(tableName, string(b), sq.Expr("datetime('now')")).
		Suffix("ON CONFLICT(table_name) DO UPDATE SET constraints_json = excluded.constraints_json, updated_at = excluded.updated_at")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return apperrors.Wrap(apperrors.IoError, err, "build vtable meta upsert")
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return classify(err)
	}
	return nil
}

// getVTableMeta reads back a VTable's constraints. Returns UndefinedTable if
// absent.
func getVTableMeta(ctx context.Context, db dbExecutor, tableName string) (vtable.ConstraintSet, error) {
	q := builder.Select("constraints_json").From(vtableMetaTable).Where(sq.Eq{"table_name": tableName})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return vtable.ConstraintSet{}, apperrors.Wrap(apperrors.IoError, err, "build vtable meta select")
	}
	var raw string
	if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return vtable.ConstraintSet{}, apperrors.New(apperrors.UndefinedTable, tableName)
		}
		return vtable.ConstraintSet{}, classify(err)
	}
	var cs vtable.ConstraintSet
	if err := json.Unmarshal([]byte(raw), &cs); err != nil {
		return vtable.ConstraintSet{}, apperrors.Wrap(apperrors.DeserializationError, err, "decode constraint set")
	}
	return cs, nil
}

func deleteVTableMeta(ctx context.Context, db dbExecutor, tableName string) error {
	q := builder.Delete(vtableMetaTable).Where(sq.Eq{"table_name": tableName})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return apperrors.Wrap(apperrors.IoError, err, "build vtable meta delete")
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return classify(err)
	}
	return nil
}

// putVersionMeta upserts one Version's column defs and active flag.
func putVersionMeta(ctx context.Context, db dbExecutor, tableName string, v vtable.Version) error {
	defsJSON, err := encodeColumnDefs(columnDefsOf(v))
	if err != nil {
		return err
	}
	active := 0
	if v.Active {
		active = 1
	}
	q := builder.Insert(versionMetaTable).
		Columns("table_name", "version_number", "column_defs_json", "active").
		Values(tableName, int64(v.ID.VersionNumber), defsJSON, active).
		Suffix("ON CONFLICT(table_name, version_number) DO UPDATE SET column_defs_json = excluded.column_defs_json, active = excluded.active")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return apperrors.Wrap(apperrors.IoError, err, "build version meta upsert")
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return classify(err)
	}
	return nil
}

func columnDefsOf(v vtable.Version) []vtable.ColumnDef {
	out := make([]vtable.ColumnDef, len(v.ColumnNames))
	for i, n := range v.ColumnNames {
		out[i] = vtable.ColumnDef{Name: n, DataType: v.ColumnDataTypes[n]}
	}
	return out
}

// listVersionMeta returns every Version (active and inactive) recorded for
// tableName, ordered by version_number ascending.
func listVersionMeta(ctx context.Context, db dbExecutor, dbName, tableName string) ([]vtable.Version, error) {
	q := builder.Select("version_number", "column_defs_json", "active").
		From(versionMetaTable).
		Where(sq.Eq{"table_name": tableName}).
		OrderBy("version_number ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.IoError, err, "build version meta select")
	}
	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []vtable.Version
	for rows.Next() {
		var vn int64
		var defsJSON string
		var active int
		if err := rows.Scan(&vn, &defsJSON, &active); err != nil {
			return nil, classify(err)
		}
		_, names, types, err := decodeColumnDefs(defsJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, vtable.Version{
			ID: vtable.VersionID{
				VTableID:      vtable.ID{DatabaseName: schema.DatabaseName(dbName), TableName: schema.TableName(tableName)},
				VersionNumber: vtable.VersionNumber(vn),
			},
			ColumnNames:     names,
			ColumnDataTypes: types,
			Active:          active != 0,
		})
	}
	return out, rows.Err()
}

func deleteVersionMeta(ctx context.Context, db dbExecutor, tableName string) error {
	q := builder.Delete(versionMetaTable).Where(sq.Eq{"table_name": tableName})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return apperrors.Wrap(apperrors.IoError, err, "build version meta delete")
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return classify(err)
	}
	return nil
}
