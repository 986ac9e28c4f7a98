// Package record implements the executor's operator algebra over
// schema-aligned row streams: Projection, Selection, Sort, HashJoin,
// Values, plus the Expression tree used by Selection predicates. The
// SeqScan leaf is read by the executor package itself; HashJoin matches
// on key column names, not on an Expression.
package record

import (
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
)

// Record pairs a row stream with the schema.Index needed to resolve its
// column references — the unit every operator consumes and produces.
type Record struct {
	Index *schema.Index
	Iter  row.Iterator
}

func NewRecord(idx *schema.Index, iter row.Iterator) Record {
	return Record{Index: idx, Iter: iter}
}
