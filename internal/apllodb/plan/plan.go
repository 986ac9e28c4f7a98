// Package plan translates ast.Statement query/modification forms into the
// operator-tree shape executor.Execute drives in post-order.
package plan

import "github.com/apllodb/apllodb-sub001/internal/apllodb/record"

type Kind string

const (
	KindSeqScan    Kind = "SeqScan"
	KindValues     Kind = "Values"
	KindProjection Kind = "Projection"
	KindSelection  Kind = "Selection"
	KindSort       Kind = "Sort"
	KindHashJoin   Kind = "HashJoin"
	KindInsert     Kind = "Insert"
	KindUpdate     Kind = "Update"
	KindDeleteAll  Kind = "DeleteAll"
)

// Node is the closed plan-tree sum type.
type Node interface{ Kind() Kind }

// SeqScan is a Leaf operator reading every row of Table; its columns are
// the PK columns followed by each Version's non-PK columns, oldest Version
// first.
type SeqScan struct {
	Table   string
	Alias   string
	Columns []string // nil = FullScan
}

func (SeqScan) Kind() Kind { return KindSeqScan }

// Values is a Leaf operator over a literal row set (e.g. INSERT's VALUES
// clause), evaluated ahead of the operator tree since constant expressions
// require no row.
type Values struct {
	Columns []string
	Rows    [][]record.Expression
}

func (Values) Kind() Kind { return KindValues }

// Projection is a Unary operator.
type Projection struct {
	Child   Node
	Columns []string
}

func (Projection) Kind() Kind { return KindProjection }

// Selection is a Unary operator.
type Selection struct {
	Child Node
	Pred  record.Expression
}

func (Selection) Kind() Kind { return KindSelection }

// Sort is a Unary operator.
type Sort struct {
	Child Node
	Keys  []record.OrderKey
}

func (Sort) Kind() Kind { return KindSort }

// HashJoin is a Binary operator. LeftKey/RightKey are qualified column
// names (e.g. "t1.id") resolved independently against Left's and Right's
// schemas; Translate only ever produces a HashJoin whose keys it derived
// from an equality predicate naming both sides' table qualifiers.
type HashJoin struct {
	Left, Right       Node
	LeftKey, RightKey string
}

func (HashJoin) Kind() Kind { return KindHashJoin }

// Insert is a modification plan: evaluate Child (a Values leaf; the
// executor rejects any other child) and register each resulting row in
// Table.
type Insert struct {
	Table string
	Child Node
}

func (Insert) Kind() Kind { return KindInsert }

// Update is a modification plan over every live row of Table satisfying
// Where.
type Update struct {
	Table       string
	Assignments map[string]record.Expression
	Where       record.Expression
}

func (Update) Kind() Kind { return KindUpdate }

// DeleteAll is the implementation of DELETE FROM t with no WHERE clause.
type DeleteAll struct {
	Table string
}

func (DeleteAll) Kind() Kind { return KindDeleteAll }
