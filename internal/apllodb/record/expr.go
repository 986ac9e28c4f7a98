package record

import (
	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
)

// Expression is the condition grammar: constants, column
// references, unary NOT, logical AND, and `=` comparison.
type Expression interface {
	Eval(idx *schema.Index, r row.Row) (sqltype.Value, error)
}

// Const is a constant predicate, evaluable without a row.
type Const struct{ Value sqltype.Value }

func (c Const) Eval(*schema.Index, row.Row) (sqltype.Value, error) { return c.Value, nil }

// ColumnRef resolves Name through idx ("column", "table.column", or
// "alias" form) and reads the corresponding position from r.
type ColumnRef struct{ Name string }

func (c ColumnRef) Eval(idx *schema.Index, r row.Row) (sqltype.Value, error) {
	pos, err := idx.Resolve(c.Name)
	if err != nil {
		return sqltype.Value{}, err
	}
	return r.Values[pos], nil
}

// Not negates a boolean sub-expression.
type Not struct{ Expr Expression }

func (n Not) Eval(idx *schema.Index, r row.Row) (sqltype.Value, error) {
	v, err := n.Expr.Eval(idx, r)
	if err != nil {
		return sqltype.Value{}, err
	}
	b, ok := v.Bool()
	if !ok {
		return sqltype.Value{}, apperrors.New(apperrors.DataExceptionIllegalConversion, "NOT requires a boolean operand")
	}
	return sqltype.NewBoolean(!b), nil
}

// And evaluates both sides; SQL NULL propagates as per standard three-value
// logic (FALSE if either side is FALSE, otherwise NULL if either side is
// NULL). The "NULL predicate result is treated as FALSE" rule is handled by
// Selection, not here.
type And struct{ Left, Right Expression }

func (a And) Eval(idx *schema.Index, r row.Row) (sqltype.Value, error) {
	l, err := a.Left.Eval(idx, r)
	if err != nil {
		return sqltype.Value{}, err
	}
	lb, ok := l.Bool()
	if !ok && !l.IsNull() {
		return sqltype.Value{}, apperrors.New(apperrors.DataExceptionIllegalConversion, "AND requires boolean operands")
	}
	if ok && !lb {
		return sqltype.NewBoolean(false), nil
	}
	rv, err := a.Right.Eval(idx, r)
	if err != nil {
		return sqltype.Value{}, err
	}
	rb, ok := rv.Bool()
	if !ok && !rv.IsNull() {
		return sqltype.Value{}, apperrors.New(apperrors.DataExceptionIllegalConversion, "AND requires boolean operands")
	}
	if ok && !rb {
		return sqltype.NewBoolean(false), nil
	}
	if l.IsNull() || rv.IsNull() {
		return sqltype.NullValue(sqltype.Boolean), nil
	}
	return sqltype.NewBoolean(true), nil
}

// Eq is SQL value equality: NULL is never equal to anything, including
// NULL (sqltype.Value.Equal's rule).
type Eq struct{ Left, Right Expression }

func (e Eq) Eval(idx *schema.Index, r row.Row) (sqltype.Value, error) {
	l, err := e.Left.Eval(idx, r)
	if err != nil {
		return sqltype.Value{}, err
	}
	rv, err := e.Right.Eval(idx, r)
	if err != nil {
		return sqltype.Value{}, err
	}
	if l.IsNull() || rv.IsNull() {
		return sqltype.NullValue(sqltype.Boolean), nil
	}
	return sqltype.NewBoolean(l.Equal(rv)), nil
}
