package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
)

func peopleIndex() *schema.Index {
	return schema.NewIndex(schema.NewSchema(
		schema.FieldRef{TableName: "people", Column: "id"},
		schema.FieldRef{TableName: "people", Column: "name"},
	))
}

func peopleRows() []row.Row {
	return []row.Row{
		row.NewRow(sqltype.NewInteger(1), sqltype.NewText("ada")),
		row.NewRow(sqltype.NewInteger(2), sqltype.NewText("bo")),
	}
}

func collect(t *testing.T, rec Record) []row.Row {
	t.Helper()
	rows, err := row.Collect(rec.Iter)
	require.NoError(t, err)
	return rows
}

func TestProjection_KeepsOnlyRequestedColumnsInOrder(t *testing.T) {
	rec := Values(peopleIndex(), peopleRows())
	out, err := Projection(rec, []string{"name", "id"})
	require.NoError(t, err)

	rows := collect(t, out)
	require.Len(t, rows, 2)
	name, _ := rows[0].Values[0].Text()
	assert.Equal(t, "ada", name)
	id, _ := rows[0].Values[1].Int64()
	assert.Equal(t, int64(1), id)
}

func TestProjection_UndefinedColumn(t *testing.T) {
	rec := Values(peopleIndex(), peopleRows())
	_, err := Projection(rec, []string{"nope"})
	require.Error(t, err)
	assert.Equal(t, apperrors.UndefinedColumn, apperrors.KindOf(err))
}

func TestSelection_DropsNonMatchingRows(t *testing.T) {
	rec := Values(peopleIndex(), peopleRows())
	pred := Eq{Left: ColumnRef{Name: "name"}, Right: Const{Value: sqltype.NewText("bo")}}
	out := Selection(rec, pred)

	rows := collect(t, out)
	require.Len(t, rows, 1)
	name, _ := rows[0].Values[1].Text()
	assert.Equal(t, "bo", name)
}

func TestSort_OrdersByKeyWithNullsLast(t *testing.T) {
	idx := peopleIndex()
	rows := []row.Row{
		row.NewRow(sqltype.NewInteger(1), sqltype.NullValue(sqltype.Text)),
		row.NewRow(sqltype.NewInteger(2), sqltype.NewText("bo")),
		row.NewRow(sqltype.NewInteger(3), sqltype.NewText("ada")),
	}
	rec := Values(idx, rows)
	out, err := Sort(rec, []OrderKey{{Name: "name"}})
	require.NoError(t, err)

	sorted := collect(t, out)
	require.Len(t, sorted, 3)
	n0, _ := sorted[0].Values[1].Text()
	n1, _ := sorted[1].Values[1].Text()
	assert.Equal(t, "ada", n0)
	assert.Equal(t, "bo", n1)
	assert.True(t, sorted[2].Values[1].IsNull(), "NULL must sort last")
}

func TestHashJoin_MatchesOnQualifiedKeys(t *testing.T) {
	left := Values(
		schema.NewIndex(schema.NewSchema(
			schema.FieldRef{TableName: "orders", Alias: "o", Column: "id"},
			schema.FieldRef{TableName: "orders", Alias: "o", Column: "customer_id"},
		)),
		[]row.Row{
			row.NewRow(sqltype.NewInteger(100), sqltype.NewInteger(1)),
			row.NewRow(sqltype.NewInteger(101), sqltype.NewInteger(2)),
		},
	)
	right := Values(
		schema.NewIndex(schema.NewSchema(
			schema.FieldRef{TableName: "customers", Alias: "c", Column: "id"},
			schema.FieldRef{TableName: "customers", Alias: "c", Column: "name"},
		)),
		[]row.Row{
			row.NewRow(sqltype.NewInteger(1), sqltype.NewText("ada")),
		},
	)

	out, err := HashJoin(left, right, "o.customer_id", "c.id")
	require.NoError(t, err)

	rows := collect(t, out)
	require.Len(t, rows, 1, "only order 100 has a matching customer")
	orderID, _ := rows[0].Values[0].Int64()
	customerName, _ := rows[0].Values[3].Text()
	assert.Equal(t, int64(100), orderID)
	assert.Equal(t, "ada", customerName)
}

func TestHashJoin_EmptyKeyIsRejected(t *testing.T) {
	// Regression test for the bug where Translate built a HashJoin with
	// no LeftKey/RightKey: Index.Resolve("") must fail with
	// UndefinedColumn rather than silently joining on an arbitrary
	// column, so a broken plan is caught here instead of returning wrong
	// rows.
	left := Values(peopleIndex(), peopleRows())
	right := Values(peopleIndex(), peopleRows())

	_, err := HashJoin(left, right, "", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.UndefinedColumn, apperrors.KindOf(err))
}
