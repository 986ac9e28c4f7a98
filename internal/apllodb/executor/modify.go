package executor

import (
	"context"
	"fmt"
	"io"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/plan"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/storage"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// executeInsert evaluates the Values child, picks the newest-qualifying
// Version for each row, then registers it through the
// navi resolver.
func (e *Executor) executeInsert(ctx context.Context, repo *storage.VTableRepository, n plan.Insert) (int64, error) {
	tableName := schema.TableName(n.Table)
	vt, err := repo.Read(ctx, tableName)
	if err != nil {
		return 0, err
	}
	pkCols := vt.Constraints.PrimaryKeyColumns()
	active, err := repo.ActiveVersions(ctx, tableName)
	if err != nil {
		return 0, err
	}
	resolver, err := repo.Resolver(ctx, tableName)
	if err != nil {
		return 0, err
	}

	values, ok := n.Child.(plan.Values)
	if !ok {
		return 0, apperrors.New(apperrors.FeatureNotSupported, "INSERT requires a literal VALUES child")
	}
	childRec, err := e.evalQuery(ctx, repo, n.Child)
	if err != nil {
		return 0, err
	}

	var affected int64
	for {
		r, rerr := childRec.Iter.Next()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return affected, rerr
		}
		supplied := row.NewNonPKValues(columnNamesOf(values.Columns), r.Values)
		target, serr := vtable.SelectInsertTarget(active, pkCols, supplied)
		if serr != nil {
			return affected, serr
		}
		pk, nonPK := splitRow(pkCols, supplied)
		if _, rerr := resolver.Register(ctx, target.ID, pk, nonPK); rerr != nil {
			return affected, rerr
		}
		affected++
	}
	return affected, nil
}

func columnNamesOf(cols []string) []schema.ColumnName {
	out := make([]schema.ColumnName, len(cols))
	for i, c := range cols {
		out[i] = schema.ColumnName(c)
	}
	return out
}

// splitRow separates a fully-supplied NonPKValues set (an external INSERT
// statement names both PK and non-PK columns together) into its PK and
// non-PK parts.
func splitRow(pkCols []schema.ColumnName, supplied row.NonPKValues) (row.PKValues, row.NonPKValues) {
	pkSet := make(map[schema.ColumnName]bool, len(pkCols))
	for _, c := range pkCols {
		pkSet[c] = true
	}
	var pk row.PKValues
	var nonPK row.NonPKValues
	for i, c := range supplied.Columns {
		if pkSet[c] {
			pk.Columns = append(pk.Columns, c)
			pk.Values = append(pk.Values, supplied.Values[i])
		} else {
			nonPK.Columns = append(nonPK.Columns, c)
			nonPK.Values = append(nonPK.Values, supplied.Values[i])
		}
	}
	return pk, nonPK
}

// executeUpdate applies Assignments to every currently-live row of Table
// satisfying Where, by re-registering it under ReviseLive.
//
// Where/Assignments are evaluated against the unioned physical schema (a
// row may have been written under any active or inactive Version), but
// each row is written back only through its own live Version's column set,
// since that is what its physical table actually stores.
func (e *Executor) executeUpdate(ctx context.Context, repo *storage.VTableRepository, n plan.Update) (int64, error) {
	tableName := schema.TableName(n.Table)
	idx, colOrder, colTypes, versions, err := e.physicalSchema(ctx, repo, tableName, n.Table, "")
	if err != nil {
		return 0, err
	}
	byNumber := make(map[vtable.VersionNumber]vtable.Version, len(versions))
	for _, v := range versions {
		byNumber[v.ID.VersionNumber] = v
	}

	resolver, err := repo.Resolver(ctx, tableName)
	if err != nil {
		return 0, err
	}
	entries, err := resolver.Scan(ctx)
	if err != nil {
		return 0, err
	}
	versionOf := make(map[string]vtable.VersionNumber, len(entries))
	for _, entry := range entries {
		versionOf[pkKey(entry.PK)] = *entry.VersionNumber
	}

	physRows, err := repo.FullScan(ctx, tableName)
	if err != nil {
		return 0, err
	}

	var affected int64
	for _, pr := range physRows {
		vals := physicalRowValues(pr, colOrder, colTypes)
		r := row.NewRow(vals...)

		if n.Where != nil {
			v, werr := n.Where.Eval(idx, r)
			if werr != nil {
				return affected, werr
			}
			if v.IsNull() {
				continue
			}
			b, _ := v.Bool()
			if !b {
				continue
			}
		}

		for col, expr := range n.Assignments {
			pos, perr := idx.Resolve(col)
			if perr != nil {
				return affected, perr
			}
			nv, eerr := expr.Eval(idx, r)
			if eerr != nil {
				return affected, eerr
			}
			vals[pos] = nv
		}
		updated := row.NewRow(vals...)

		vn, ok := versionOf[pkKey(pr.PK)]
		if !ok {
			return affected, apperrors.New(apperrors.IoError, "no live navi entry for scanned row")
		}
		v, ok := byNumber[vn]
		if !ok {
			return affected, apperrors.New(apperrors.IoError, fmt.Sprintf("unknown version %d", vn))
		}

		newNonPK, perr := projectNonPK(idx, updated, v)
		if perr != nil {
			return affected, perr
		}
		if _, rerr := resolver.ReviseLive(ctx, pr.PK, newNonPK); rerr != nil {
			return affected, rerr
		}
		affected++
	}
	return affected, nil
}

// projectNonPK reads v's own non-PK column values out of r (positioned via
// idx, the unioned physical schema) — the value set ReviseLive writes back
// into v's physical table.
func projectNonPK(idx *schema.Index, r row.Row, v vtable.Version) (row.NonPKValues, error) {
	vals := make([]sqltype.Value, len(v.ColumnNames))
	for i, c := range v.ColumnNames {
		pos, err := idx.Resolve(string(c))
		if err != nil {
			return row.NonPKValues{}, err
		}
		vals[i] = r.Values[pos]
	}
	return row.NewNonPKValues(v.ColumnNames, vals), nil
}

// pkKey renders a PKValues as a stable map key for pairing navi entries
// with the physical rows FullScan resolves.
func pkKey(pk row.PKValues) string {
	s := ""
	for i := range pk.Columns {
		s += fmt.Sprintf("%s=%v;", pk.Columns[i], pk.Values[i].ToDriverValue())
	}
	return s
}

// executeDeleteAll tombstones every currently-live row of Table.
func (e *Executor) executeDeleteAll(ctx context.Context, repo *storage.VTableRepository, n plan.DeleteAll) (int64, error) {
	tableName := schema.TableName(n.Table)
	resolver, err := repo.Resolver(ctx, tableName)
	if err != nil {
		return 0, err
	}
	entries, err := resolver.Scan(ctx)
	if err != nil {
		return 0, err
	}
	if err := resolver.DeregisterAll(ctx); err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}
