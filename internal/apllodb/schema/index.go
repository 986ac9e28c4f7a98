package schema

import (
	"strings"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
)

// FieldRef is one positional field of a schema: an unaliased column name,
// the table it came from (may be empty for synthesized fields such as
// literal projections), and any user-declared alias.
type FieldRef struct {
	TableName string // unqualified source table name, "" if not applicable
	Alias     string // table alias, if the FROM clause declared one, "" otherwise
	Column    string
	ColAlias  string // column-level "AS x", "" otherwise
}

// Schema is the ordered, positional field list carried by a record stream.
// It corresponds to an ordered table-column name list, the row schema.
type Schema struct {
	Fields []FieldRef
}

func NewSchema(fields ...FieldRef) Schema {
	return Schema{Fields: append([]FieldRef(nil), fields...)}
}

func (s Schema) Len() int { return len(s.Fields) }

// Index resolves "column", or
// "table.column", or "alias" forms to a schema position, so that
// downstream operators (Projection, Selection, Sort, HashJoin) can refer
// to fields the way the original query text did.
type Index struct {
	schema Schema
}

func NewIndex(s Schema) *Index {
	return &Index{schema: s}
}

func (idx *Index) Schema() Schema { return idx.schema }

// Resolve finds the position of name, accepting "column", "alias",
// "table.column", or "colalias" forms. AmbiguousColumn is returned when
// more than one field matches an unqualified name.
func (idx *Index) Resolve(name string) (int, error) {
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		table := name[:dot]
		col := name[dot+1:]
		found := -1
		for i, f := range idx.schema.Fields {
			if (f.TableName == table || f.Alias == table) && f.Column == col {
				if found != -1 {
					return -1, apperrors.New(apperrors.AmbiguousColumn, name)
				}
				found = i
			}
		}
		if found == -1 {
			return -1, apperrors.New(apperrors.UndefinedColumn, name)
		}
		return found, nil
	}

	found := -1
	for i, f := range idx.schema.Fields {
		if (f.ColAlias != "" && f.ColAlias == name) || f.Column == name {
			if found != -1 {
				return -1, apperrors.New(apperrors.AmbiguousColumn, name)
			}
			found = i
		}
	}
	if found == -1 {
		return -1, apperrors.New(apperrors.UndefinedColumn, name)
	}
	return found, nil
}

// Project returns a new Index restricted to (and reordered by) the given
// field names, in the order requested — used by the Projection operator.
func (idx *Index) Project(names []string) (*Index, []int, error) {
	positions := make([]int, 0, len(names))
	fields := make([]FieldRef, 0, len(names))
	for _, n := range names {
		pos, err := idx.Resolve(n)
		if err != nil {
			return nil, nil, err
		}
		positions = append(positions, pos)
		fields = append(fields, idx.schema.Fields[pos])
	}
	return NewIndex(NewSchema(fields...)), positions, nil
}
