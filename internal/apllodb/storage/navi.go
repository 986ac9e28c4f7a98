package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vrr"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// SQLiteResolver is the concrete navi implementation of vrr.Resolver
//, backed by one dynamically-created table per VTable named
// via naviTableName.
type SQLiteResolver struct {
	db       dbExecutor
	dbName   string
	table    string // logical table name
	pkCols   []schema.ColumnName
	pkTypes  map[schema.ColumnName]sqltype.DataType
}

var _ vrr.Resolver = (*SQLiteResolver)(nil)

func NewSQLiteResolver(db dbExecutor, dbName, tableName string, pkCols []schema.ColumnName, pkTypes map[schema.ColumnName]sqltype.DataType) *SQLiteResolver {
	return &SQLiteResolver{db: db, dbName: dbName, table: tableName, pkCols: pkCols, pkTypes: pkTypes}
}

func createNaviTable(ctx context.Context, db dbExecutor, tableName string, pkCols []schema.ColumnName, pkTypes map[schema.ColumnName]sqltype.DataType) error {
	navi := naviTableName(tableName)
	var cols []string
	var pkDecl []string
	for _, c := range pkCols {
		cols = append(cols, fmt.Sprintf("%q %s NOT NULL", c, sqliteColumnType(pkTypes[c])))
		pkDecl = append(pkDecl, fmt.Sprintf("%q", c))
	}
	cols = append(cols,
		"revision INTEGER NOT NULL",
		"version_number INTEGER",
		"physical_row_id TEXT NOT NULL",
	)
	stmt := fmt.Sprintf("CREATE TABLE %q (%s, PRIMARY KEY(%s))", navi, strings.Join(cols, ", "), strings.Join(pkDecl, ", "))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return classify(err)
	}
	return nil
}

func dropNaviTable(ctx context.Context, db dbExecutor, tableName string) error {
	navi := naviTableName(tableName)
	_, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", navi))
	if err != nil {
		return classify(err)
	}
	return nil
}

func (r *SQLiteResolver) pkEq(pk row.PKValues) sq.Eq {
	eq := sq.Eq{}
	for i, c := range pk.Columns {
		eq[string(c)] = pk.Values[i].ToDriverValue()
	}
	return eq
}

func (r *SQLiteResolver) selectColumns() []string {
	cols := columnNameStrings(r.pkCols)
	return append(cols, "revision", "version_number", "physical_row_id")
}

func (r *SQLiteResolver) scanEntry(row_ *sql.Rows) (vrr.NaviEntry, error) {
	raw := make([]any, len(r.pkCols)+3)
	dest := make([]any, len(raw))
	for i := range dest {
		dest[i] = &raw[i]
	}
	if err := row_.Scan(dest...); err != nil {
		return vrr.NaviEntry{}, classify(err)
	}
	return r.decodeRow(raw)
}

func (r *SQLiteResolver) decodeRow(raw []any) (vrr.NaviEntry, error) {
	pkVals := make([]sqltype.Value, len(r.pkCols))
	for i, c := range r.pkCols {
		v, err := sqltype.FromDriverValue(r.pkTypes[c].Type, raw[i])
		if err != nil {
			return vrr.NaviEntry{}, apperrors.Wrap(apperrors.IoError, err, "decode navi pk")
		}
		pkVals[i] = v
	}
	revVal, _ := sqltype.FromDriverValue(sqltype.BigInt, raw[len(r.pkCols)])
	revision, _ := revVal.Int64()

	var vn *vtable.VersionNumber
	if raw[len(r.pkCols)+1] != nil {
		vv, _ := sqltype.FromDriverValue(sqltype.BigInt, raw[len(r.pkCols)+1])
		n, _ := vv.Int64()
		v := vtable.VersionNumber(n)
		vn = &v
	}
	physID, _ := raw[len(r.pkCols)+2].(string)

	return vrr.NaviEntry{
		PK:            row.NewPKValues(r.pkCols, pkVals),
		PhysicalRowID: physID,
		VersionNumber: vn,
		Revision:      revision,
	}, nil
}

func (r *SQLiteResolver) Probe(ctx context.Context, pks []row.PKValues) ([]vrr.NaviEntry, error) {
	var out []vrr.NaviEntry
	navi := naviTableName(r.table)
	for _, pk := range pks {
		q := builder.Select(r.selectColumns()...).From(navi).
			Where(r.pkEq(pk)).
			Where(sq.NotEq{"version_number": nil})
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.IoError, err, "build navi probe")
		}
		rows, err := r.db.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return nil, classify(err)
		}
		for rows.Next() {
			e, err := r.scanEntry(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, classify(err)
		}
		rows.Close()
	}
	return out, nil
}

func (r *SQLiteResolver) Scan(ctx context.Context) ([]vrr.NaviEntry, error) {
	navi := naviTableName(r.table)
	q := builder.Select(r.selectColumns()...).From(navi).
		Where(sq.NotEq{"version_number": nil}).
		OrderBy(quotedList(r.pkCols) + " ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.IoError, err, "build navi scan")
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []vrr.NaviEntry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func quotedList(cols []schema.ColumnName) string {
	var parts []string
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%q", c))
	}
	return strings.Join(parts, ", ")
}

// lookupEntry returns the existing navi row for pk regardless of liveness,
// or (NaviEntry{}, false, nil) if no row exists yet.
func (r *SQLiteResolver) lookupEntry(ctx context.Context, pk row.PKValues) (vrr.NaviEntry, bool, error) {
	navi := naviTableName(r.table)
	q := builder.Select(r.selectColumns()...).From(navi).Where(r.pkEq(pk))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return vrr.NaviEntry{}, false, apperrors.Wrap(apperrors.IoError, err, "build navi lookup")
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return vrr.NaviEntry{}, false, classify(err)
	}
	defer rows.Close()
	if !rows.Next() {
		return vrr.NaviEntry{}, false, rows.Err()
	}
	e, err := r.scanEntry(rows)
	return e, true, err
}

func (r *SQLiteResolver) versionActiveFlag(ctx context.Context, versionNumber vtable.VersionNumber) (bool, error) {
	q := builder.Select("active").From(versionMetaTable).
		Where(sq.Eq{"table_name": r.table, "version_number": int64(versionNumber)})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return false, apperrors.Wrap(apperrors.IoError, err, "build version active lookup")
	}
	var active int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&active); err != nil {
		if err == sql.ErrNoRows {
			return false, apperrors.New(apperrors.UndefinedObject, "version not found")
		}
		return false, classify(err)
	}
	return active != 0, nil
}

func (r *SQLiteResolver) upsertNavi(ctx context.Context, pk row.PKValues, revision int64, versionNumber *vtable.VersionNumber, physicalRowID string) error {
	navi := naviTableName(r.table)
	cols := columnNameStrings(r.pkCols)
	vals := make([]any, 0, len(cols)+3)
	for i := range r.pkCols {
		vals = append(vals, pk.Values[i].ToDriverValue())
	}
	cols = append(cols, "revision", "version_number", "physical_row_id")
	vals = append(vals, revision)
	if versionNumber != nil {
		vals = append(vals, int64(*versionNumber))
	} else {
		vals = append(vals, nil)
	}
	vals = append(vals, physicalRowID)

	conflictCols := quotedList(r.pkCols)
	q := builder.Insert(navi).Columns(cols...).Values(vals...).
		Suffix(fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET revision = excluded.revision, version_number = excluded.version_number, physical_row_id = excluded.physical_row_id", conflictCols))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return apperrors.Wrap(apperrors.IoError, err, "build navi upsert")
	}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return classify(err)
	}
	return nil
}

func (r *SQLiteResolver) Register(ctx context.Context, versionID vtable.VersionID, pk row.PKValues, nonPK row.NonPKValues) (int64, error) {
	existing, found, err := r.lookupEntry(ctx, pk)
	if err != nil {
		return 0, err
	}
	if found && existing.IsLive() {
		return 0, apperrors.New(apperrors.IntegrityConstraintUniqueViolation, "duplicate primary key")
	}
	revision := int64(1)
	if found {
		revision = existing.Revision + 1
	}

	active, err := r.versionActiveFlag(ctx, versionID.VersionNumber)
	if err != nil {
		return 0, err
	}
	rowid, err := insertPhysicalRow(ctx, r.db, r.table, versionID.VersionNumber, active, pk, revision, nonPK)
	if err != nil {
		return 0, err
	}
	vn := versionID.VersionNumber
	if err := r.upsertNavi(ctx, pk, revision, &vn, formatRowID(rowid)); err != nil {
		return 0, err
	}
	return revision, nil
}

func (r *SQLiteResolver) ReviseLive(ctx context.Context, pk row.PKValues, nonPK row.NonPKValues) (int64, error) {
	existing, found, err := r.lookupEntry(ctx, pk)
	if err != nil {
		return 0, err
	}
	if !found || !existing.IsLive() {
		return 0, apperrors.New(apperrors.UndefinedObject, "no live row for primary key")
	}
	revision := existing.Revision + 1
	active, err := r.versionActiveFlag(ctx, *existing.VersionNumber)
	if err != nil {
		return 0, err
	}
	rowid, err := insertPhysicalRow(ctx, r.db, r.table, *existing.VersionNumber, active, pk, revision, nonPK)
	if err != nil {
		return 0, err
	}
	if err := r.upsertNavi(ctx, pk, revision, existing.VersionNumber, formatRowID(rowid)); err != nil {
		return 0, err
	}
	return revision, nil
}

func (r *SQLiteResolver) DeregisterAll(ctx context.Context) error {
	navi := naviTableName(r.table)
	stmt := fmt.Sprintf(
		"UPDATE %q SET version_number = NULL, revision = revision + 1 WHERE version_number IS NOT NULL",
		navi,
	)
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return classify(err)
	}
	return nil
}
