package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/ast"
)

func TestTranslateSelect_SingleTable(t *testing.T) {
	stmt := ast.Select{
		Fields: []ast.SelectField{{Expr: ast.ColumnRef{Name: "name"}}},
		From:   []ast.TableRef{{Table: "people"}},
	}
	node, err := Translate(stmt)
	require.NoError(t, err)

	proj, ok := node.(Projection)
	require.True(t, ok, "expected a Projection at the root")
	scan, ok := proj.Child.(SeqScan)
	require.True(t, ok, "expected a SeqScan under the Projection")
	assert.Equal(t, "people", scan.Table)
}

func TestTranslateSelect_TwoTableJoin_DerivesKeysFromEqualityPredicate(t *testing.T) {
	// SELECT * FROM orders o, customers c WHERE o.customer_id = c.id
	stmt := ast.Select{
		From: []ast.TableRef{
			{Table: "orders", Alias: "o"},
			{Table: "customers", Alias: "c"},
		},
		Where: ast.EqExpr{
			Left:  ast.ColumnRef{Name: "o.customer_id"},
			Right: ast.ColumnRef{Name: "c.id"},
		},
	}
	node, err := Translate(stmt)
	require.NoError(t, err)

	join, ok := node.(HashJoin)
	require.True(t, ok, "expected a HashJoin at the root")
	assert.Equal(t, "o.customer_id", join.LeftKey)
	assert.Equal(t, "c.id", join.RightKey)

	left, ok := join.Left.(SeqScan)
	require.True(t, ok)
	assert.Equal(t, "orders", left.Table)
	right, ok := join.Right.(SeqScan)
	require.True(t, ok)
	assert.Equal(t, "customers", right.Table)
}

func TestTranslateSelect_TwoTableJoin_KeyOrderInPredicateDoesNotMatter(t *testing.T) {
	// Same join, but the predicate names the new table's column first.
	stmt := ast.Select{
		From: []ast.TableRef{
			{Table: "orders", Alias: "o"},
			{Table: "customers", Alias: "c"},
		},
		Where: ast.EqExpr{
			Left:  ast.ColumnRef{Name: "c.id"},
			Right: ast.ColumnRef{Name: "o.customer_id"},
		},
	}
	node, err := Translate(stmt)
	require.NoError(t, err)

	join, ok := node.(HashJoin)
	require.True(t, ok)
	assert.Equal(t, "o.customer_id", join.LeftKey)
	assert.Equal(t, "c.id", join.RightKey)
}

func TestTranslateSelect_TwoTableJoin_ExtraPredicateSurvivesAsSelection(t *testing.T) {
	// WHERE o.customer_id = c.id AND c.active = true
	stmt := ast.Select{
		From: []ast.TableRef{
			{Table: "orders", Alias: "o"},
			{Table: "customers", Alias: "c"},
		},
		Where: ast.AndExpr{
			Left:  ast.EqExpr{Left: ast.ColumnRef{Name: "o.customer_id"}, Right: ast.ColumnRef{Name: "c.id"}},
			Right: ast.EqExpr{Left: ast.ColumnRef{Name: "c.active"}, Right: ast.Literal{Value: true}},
		},
	}
	node, err := Translate(stmt)
	require.NoError(t, err)

	sel, ok := node.(Selection)
	require.True(t, ok, "the non-join conjunct must still be applied as a Selection above the HashJoin")
	_, ok = sel.Child.(HashJoin)
	require.True(t, ok)
}

func TestTranslateSelect_MultiTableWithoutEquiJoinPredicate_IsRejected(t *testing.T) {
	// SELECT * FROM orders, customers with no WHERE at all: no syntactic
	// way to derive a join key without database/schema access, so this
	// must be rejected rather than produce a HashJoin with empty keys
	// that would fail UndefinedColumn at execution time.
	stmt := ast.Select{
		From: []ast.TableRef{{Table: "orders"}, {Table: "customers"}},
	}
	_, err := Translate(stmt)
	require.Error(t, err)
	assert.Equal(t, apperrors.FeatureNotSupported, apperrors.KindOf(err))
}

func TestTranslateSelect_MultiTableWithUnqualifiedPredicate_IsRejected(t *testing.T) {
	// An equality predicate is present, but neither side is qualified, so
	// it cannot be attributed to either table syntactically.
	stmt := ast.Select{
		From:  []ast.TableRef{{Table: "orders"}, {Table: "customers"}},
		Where: ast.EqExpr{Left: ast.ColumnRef{Name: "id"}, Right: ast.Literal{Value: 1}},
	}
	_, err := Translate(stmt)
	require.Error(t, err)
	assert.Equal(t, apperrors.FeatureNotSupported, apperrors.KindOf(err))
}

func TestTranslateSelect_NoFromClause_IsRejected(t *testing.T) {
	_, err := Translate(ast.Select{})
	require.Error(t, err)
	assert.Equal(t, apperrors.FeatureNotSupported, apperrors.KindOf(err))
}

func TestTranslateInsert(t *testing.T) {
	stmt := ast.Insert{
		Table:   "people",
		Columns: []string{"id", "name"},
		Rows: [][]ast.Expression{
			{ast.Literal{Value: 1}, ast.Literal{Value: "ada"}},
		},
	}
	node, err := Translate(stmt)
	require.NoError(t, err)
	ins, ok := node.(Insert)
	require.True(t, ok)
	assert.Equal(t, "people", ins.Table)
	values, ok := ins.Child.(Values)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, values.Columns)
	require.Len(t, values.Rows, 1)
}

func TestTranslateDelete_RejectsWhere(t *testing.T) {
	_, err := Translate(ast.Delete{Table: "people", Where: ast.EqExpr{Left: ast.ColumnRef{Name: "id"}, Right: ast.Literal{Value: 1}}})
	require.Error(t, err)
	assert.Equal(t, apperrors.FeatureNotSupported, apperrors.KindOf(err))
}

func TestTranslateDelete_WholeTable(t *testing.T) {
	node, err := Translate(ast.Delete{Table: "people"})
	require.NoError(t, err)
	del, ok := node.(DeleteAll)
	require.True(t, ok)
	assert.Equal(t, "people", del.Table)
}
