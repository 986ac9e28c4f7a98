// Package executor drives a plan.Node tree in post-order,
// calling into the storage engine through a transaction-scoped
// storage.VTableRepository and producing record.Record streams.
package executor

import (
	"context"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/plan"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/record"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/storage"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

// Result is what Execute produces: a row stream for query plans, or an
// affected-row count for modification plans (exactly one of the two is
// meaningful per plan.Kind).
type Result struct {
	Rows     record.Record
	Affected int64
}

// Executor holds no state of its own; every call is parameterized by the
// repository of the transaction it runs under.
type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Execute(ctx context.Context, repo *storage.VTableRepository, root plan.Node) (Result, error) {
	switch n := root.(type) {
	case plan.Insert:
		affected, err := e.executeInsert(ctx, repo, n)
		return Result{Affected: affected}, err
	case plan.Update:
		affected, err := e.executeUpdate(ctx, repo, n)
		return Result{Affected: affected}, err
	case plan.DeleteAll:
		affected, err := e.executeDeleteAll(ctx, repo, n)
		return Result{Affected: affected}, err
	default:
		rec, err := e.evalQuery(ctx, repo, root)
		return Result{Rows: rec}, err
	}
}

// evalQuery walks the read-only operator tree in post-order: leaves
// (SeqScan, Values) resolve first, then each Unary/Binary operator wraps
// its already-evaluated child/children.
func (e *Executor) evalQuery(ctx context.Context, repo *storage.VTableRepository, n plan.Node) (record.Record, error) {
	switch node := n.(type) {
	case plan.SeqScan:
		return e.seqScan(ctx, repo, node)
	case plan.Values:
		return e.values(node)
	case plan.Projection:
		child, err := e.evalQuery(ctx, repo, node.Child)
		if err != nil {
			return record.Record{}, err
		}
		return record.Projection(child, node.Columns)
	case plan.Selection:
		child, err := e.evalQuery(ctx, repo, node.Child)
		if err != nil {
			return record.Record{}, err
		}
		return record.Selection(child, node.Pred), nil
	case plan.Sort:
		child, err := e.evalQuery(ctx, repo, node.Child)
		if err != nil {
			return record.Record{}, err
		}
		return record.Sort(child, node.Keys)
	case plan.HashJoin:
		left, err := e.evalQuery(ctx, repo, node.Left)
		if err != nil {
			return record.Record{}, err
		}
		right, err := e.evalQuery(ctx, repo, node.Right)
		if err != nil {
			return record.Record{}, err
		}
		return record.HashJoin(left, right, node.LeftKey, node.RightKey)
	default:
		return record.Record{}, apperrors.New(apperrors.FeatureNotSupported, "unsupported plan node")
	}
}

func (e *Executor) values(n plan.Values) (record.Record, error) {
	fields := make([]schema.FieldRef, len(n.Columns))
	for i, c := range n.Columns {
		fields[i] = schema.FieldRef{Column: c}
	}
	idx := schema.NewIndex(schema.NewSchema(fields...))
	rows := make([]row.Row, len(n.Rows))
	for i, exprRow := range n.Rows {
		vals := make([]sqltype.Value, len(exprRow))
		for j, expr := range exprRow {
			v, err := expr.Eval(idx, row.Row{})
			if err != nil {
				return record.Record{}, err
			}
			vals[j] = v
		}
		rows[i] = row.NewRow(vals...)
	}
	return record.Values(idx, rows), nil
}

// physicalSchema builds the unioned physical schema across every Version of
// table (pk columns first, then the union of non-pk column names in
// Version order) — the schema both SeqScan and UPDATE need to evaluate
// Conditions/Assignments against a row regardless of which Version it was
// written under.
func (e *Executor) physicalSchema(ctx context.Context, repo *storage.VTableRepository, tableName schema.TableName, tableRef, alias string) (*schema.Index, []schema.ColumnName, map[schema.ColumnName]sqltype.DataType, []vtable.Version, error) {
	vt, err := repo.Read(ctx, tableName)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	pkCols := vt.Constraints.PrimaryKeyColumns()
	versions, err := repo.AllVersions(ctx, tableName)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	colOrder := append([]schema.ColumnName(nil), pkCols...)
	colTypes := map[schema.ColumnName]sqltype.DataType{}
	seen := map[schema.ColumnName]bool{}
	for _, c := range pkCols {
		seen[c] = true
	}
	for _, v := range versions {
		for _, c := range v.ColumnNames {
			if !seen[c] {
				seen[c] = true
				colOrder = append(colOrder, c)
			}
			colTypes[c] = v.ColumnDataTypes[c]
		}
	}

	fields := make([]schema.FieldRef, len(colOrder))
	for i, c := range colOrder {
		fields[i] = schema.FieldRef{TableName: tableRef, Alias: alias, Column: string(c)}
	}
	return schema.NewIndex(schema.NewSchema(fields...)), colOrder, colTypes, versions, nil
}

// physicalRowValues renders one PhysicalRow against the unioned colOrder,
// padding columns absent from the row's own Version with NULL.
func physicalRowValues(pr row.PhysicalRow, colOrder []schema.ColumnName, colTypes map[schema.ColumnName]sqltype.DataType) []sqltype.Value {
	vals := make([]sqltype.Value, len(colOrder))
	for j, c := range colOrder {
		if v, ok := pr.PK.Get(c); ok {
			vals[j] = v
			continue
		}
		if v, ok := pr.NonPKValues.Get(c); ok {
			vals[j] = v
			continue
		}
		vals[j] = sqltype.NullValue(colTypes[c].Type)
	}
	return vals
}

// seqScan reads every live row of table via FullScan and renders it against
// the unioned physical schema.
func (e *Executor) seqScan(ctx context.Context, repo *storage.VTableRepository, n plan.SeqScan) (record.Record, error) {
	tableName := schema.TableName(n.Table)
	idx, colOrder, colTypes, _, err := e.physicalSchema(ctx, repo, tableName, n.Table, n.Alias)
	if err != nil {
		return record.Record{}, err
	}

	physRows, err := repo.FullScan(ctx, tableName)
	if err != nil {
		return record.Record{}, err
	}

	rows := make([]row.Row, len(physRows))
	for i, pr := range physRows {
		rows[i] = row.NewRow(physicalRowValues(pr, colOrder, colTypes)...)
	}

	if n.Columns != nil {
		rec := record.Values(idx, rows)
		return record.Projection(rec, n.Columns)
	}
	return record.Values(idx, rows), nil
}

