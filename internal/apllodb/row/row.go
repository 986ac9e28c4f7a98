// Package row defines the physical and logical row shapes that flow
// through the storage engine and the query processor: the apparent-PK /
// revision / non-PK-values tuple stored inside a Version,
// and the positional, schema-aligned logical Row used by the record layer.
package row

import (
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
)

// PKValues is an ordered set of (column, value) pairs forming one apparent
// PK — ordered because compound primary keys must
// preserve declaration order for physical storage and comparison.
type PKValues struct {
	Columns []schema.ColumnName
	Values  []sqltype.Value
}

func NewPKValues(cols []schema.ColumnName, vals []sqltype.Value) PKValues {
	return PKValues{Columns: append([]schema.ColumnName(nil), cols...), Values: append([]sqltype.Value(nil), vals...)}
}

// Get returns the value held for col, or false if col is not a PK column.
func (p PKValues) Get(col schema.ColumnName) (sqltype.Value, bool) {
	for i, c := range p.Columns {
		if c == col {
			return p.Values[i], true
		}
	}
	return sqltype.Value{}, false
}

// Equal compares two PKValues for exact value equality across all columns,
// in declared order.
func (p PKValues) Equal(o PKValues) bool {
	if len(p.Values) != len(o.Values) {
		return false
	}
	for i := range p.Values {
		if !p.Values[i].Equal(o.Values[i]) {
			return false
		}
	}
	return true
}

// NonPKValues is an ordered set of (column, value) pairs for the non-PK
// columns supplied to, or read from, one physical row.
type NonPKValues struct {
	Columns []schema.ColumnName
	Values  []sqltype.Value
}

func NewNonPKValues(cols []schema.ColumnName, vals []sqltype.Value) NonPKValues {
	return NonPKValues{Columns: append([]schema.ColumnName(nil), cols...), Values: append([]sqltype.Value(nil), vals...)}
}

func (n NonPKValues) Get(col schema.ColumnName) (sqltype.Value, bool) {
	for i, c := range n.Columns {
		if c == col {
			return n.Values[i], true
		}
	}
	return sqltype.Value{}, false
}

// PhysicalRow is the tuple `(apparent_pk, revision, non_pk_values*)` stored
// inside a Version's physical table.
type PhysicalRow struct {
	PK          PKValues
	Revision    int64
	NonPKValues NonPKValues
}

// Row is a positional, schema-aligned logical row flowing through the
// record/executor layer — the Go analogue of the original's
// RowColumnRefSchema-carrying row iterator element.
type Row struct {
	Values []sqltype.Value
}

func NewRow(values ...sqltype.Value) Row {
	return Row{Values: append([]sqltype.Value(nil), values...)}
}

// Project returns a new Row containing only the given positions, in order
// — used by the Projection operator together with schema.Index.Project.
func (r Row) Project(positions []int) Row {
	out := make([]sqltype.Value, len(positions))
	for i, p := range positions {
		out[i] = r.Values[p]
	}
	return Row{Values: out}
}

// Concat appends o's values after r's, used by HashJoin to build the
// joined row under joined_schema.
func (r Row) Concat(o Row) Row {
	out := make([]sqltype.Value, 0, len(r.Values)+len(o.Values))
	out = append(out, r.Values...)
	out = append(out, o.Values...)
	return Row{Values: out}
}
