package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/ast"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/plan"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/storage"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/vtable"
)

func openTestRepo(t *testing.T) *storage.VTableRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.apllodb")
	f, err := storage.OpenPath(context.Background(), path, storage.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return storage.NewVTableRepository(f.DB(), "d")
}

func createTable(t *testing.T, repo *storage.VTableRepository, name string, pk schema.ColumnName, cols map[schema.ColumnName]sqltype.DataType) {
	t.Helper()
	var colNames []schema.ColumnName
	colTypes := map[schema.ColumnName]sqltype.DataType{pk: {Type: sqltype.Integer, Nullable: false}}
	for c, dt := range cols {
		colNames = append(colNames, c)
		colTypes[c] = dt
	}
	vt := vtable.VTable{
		ID:          vtable.ID{DatabaseName: "d", TableName: schema.TableName(name)},
		Constraints: vtable.NewConstraintSet(vtable.PrimaryKey(pk)),
	}
	v1 := vtable.Version{
		ID:              vtable.VersionID{VTableID: vt.ID, VersionNumber: 1},
		ColumnNames:     colNames,
		ColumnDataTypes: colTypes,
		Active:          true,
	}
	require.NoError(t, repo.Create(context.Background(), vt, v1))
}

func execStmt(t *testing.T, repo *storage.VTableRepository, stmt ast.Statement) Result {
	t.Helper()
	node, err := plan.Translate(stmt)
	require.NoError(t, err)
	res, err := New().Execute(context.Background(), repo, node)
	require.NoError(t, err)
	return res
}

func TestExecutor_InsertAndSeqScan(t *testing.T) {
	repo := openTestRepo(t)
	createTable(t, repo, "people", "id", map[schema.ColumnName]sqltype.DataType{
		"name": {Type: sqltype.Text, Nullable: false},
	})

	ins := execStmt(t, repo, ast.Insert{
		Table:   "people",
		Columns: []string{"id", "name"},
		Rows: [][]ast.Expression{
			{ast.Literal{Value: 1}, ast.Literal{Value: "ada"}},
			{ast.Literal{Value: 2}, ast.Literal{Value: "bo"}},
		},
	})
	assert.Equal(t, int64(2), ins.Affected)

	sel := execStmt(t, repo, ast.Select{From: []ast.TableRef{{Table: "people"}}})
	rows, err := row.Collect(sel.Rows.Iter)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

// TestExecutor_MultiTableJoin is the end-to-end regression test for the
// HashJoin key-derivation bug: SELECT ... FROM orders o, customers c WHERE
// o.customer_id = c.id must actually return the joined rows, not fail with
// UndefinedColumn at execution time.
func TestExecutor_MultiTableJoin(t *testing.T) {
	repo := openTestRepo(t)
	createTable(t, repo, "customers", "id", map[schema.ColumnName]sqltype.DataType{
		"name": {Type: sqltype.Text, Nullable: false},
	})
	createTable(t, repo, "orders", "id", map[schema.ColumnName]sqltype.DataType{
		"customer_id": {Type: sqltype.Integer, Nullable: false},
	})

	execStmt(t, repo, ast.Insert{
		Table: "customers", Columns: []string{"id", "name"},
		Rows: [][]ast.Expression{{ast.Literal{Value: 1}, ast.Literal{Value: "ada"}}},
	})
	execStmt(t, repo, ast.Insert{
		Table: "orders", Columns: []string{"id", "customer_id"},
		Rows: [][]ast.Expression{
			{ast.Literal{Value: 100}, ast.Literal{Value: 1}},
			{ast.Literal{Value: 101}, ast.Literal{Value: 99}}, // no matching customer
		},
	})

	stmt := ast.Select{
		From: []ast.TableRef{
			{Table: "orders", Alias: "o"},
			{Table: "customers", Alias: "c"},
		},
		Where: ast.EqExpr{Left: ast.ColumnRef{Name: "o.customer_id"}, Right: ast.ColumnRef{Name: "c.id"}},
	}
	res := execStmt(t, repo, stmt)
	rows, err := row.Collect(res.Rows.Iter)
	require.NoError(t, err)
	require.Len(t, rows, 1, "only the order with a matching customer should join")

	orderID, err := res.Rows.Index.Resolve("o.id")
	require.NoError(t, err)
	id, _ := rows[0].Values[orderID].Int64()
	assert.Equal(t, int64(100), id)
}

func TestExecutor_MultiTableWithoutEquiJoinPredicate_FailsAtTranslate(t *testing.T) {
	stmt := ast.Select{From: []ast.TableRef{{Table: "orders"}, {Table: "customers"}}}
	_, err := plan.Translate(stmt)
	require.Error(t, err)
	assert.Equal(t, apperrors.FeatureNotSupported, apperrors.KindOf(err))
}

func TestExecutor_UpdateAndDeleteAll(t *testing.T) {
	repo := openTestRepo(t)
	createTable(t, repo, "people", "id", map[schema.ColumnName]sqltype.DataType{
		"name": {Type: sqltype.Text, Nullable: false},
	})
	execStmt(t, repo, ast.Insert{
		Table: "people", Columns: []string{"id", "name"},
		Rows: [][]ast.Expression{{ast.Literal{Value: 1}, ast.Literal{Value: "ada"}}},
	})

	upd := execStmt(t, repo, ast.Update{
		Table:       "people",
		Assignments: []ast.Assignment{{Column: "name", Value: ast.Literal{Value: "ada lovelace"}}},
		Where:       ast.EqExpr{Left: ast.ColumnRef{Name: "id"}, Right: ast.Literal{Value: 1}},
	})
	assert.Equal(t, int64(1), upd.Affected)

	del := execStmt(t, repo, ast.Delete{Table: "people"})
	assert.Equal(t, int64(1), del.Affected)

	sel := execStmt(t, repo, ast.Select{From: []ast.TableRef{{Table: "people"}}})
	rows, err := row.Collect(sel.Rows.Iter)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
