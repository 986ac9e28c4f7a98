package record

import (
	"io"
	"sort"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/schema"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/sqltype"
)

// Values is the Leaf operator for literal row sources (e.g. INSERT's
// supplied rows, or a constant-folded single-row source).
func Values(idx *schema.Index, rows []row.Row) Record {
	return NewRecord(idx, row.NewSliceIterator(rows))
}

type projectionIterator struct {
	src       row.Iterator
	positions []int
}

func (p *projectionIterator) Next() (row.Row, error) {
	r, err := p.src.Next()
	if err != nil {
		return row.Row{}, err
	}
	return r.Project(p.positions), nil
}

func (p *projectionIterator) Close() error { return p.src.Close() }

// Projection keeps only the indexed columns, in the requested order.
func Projection(in Record, names []string) (Record, error) {
	newIdx, positions, err := in.Index.Project(names)
	if err != nil {
		return Record{}, err
	}
	return NewRecord(newIdx, &projectionIterator{src: in.Iter, positions: positions}), nil
}

type selectionIterator struct {
	src  row.Iterator
	idx  *schema.Index
	pred Expression
}

func (s *selectionIterator) Next() (row.Row, error) {
	for {
		r, err := s.src.Next()
		if err != nil {
			return row.Row{}, err
		}
		v, err := s.pred.Eval(s.idx, r)
		if err != nil {
			return row.Row{}, err
		}
		if v.IsNull() {
			continue // NULL predicate result is treated as FALSE
		}
		b, ok := v.Bool()
		if !ok {
			return row.Row{}, apperrors.New(apperrors.DataExceptionIllegalConversion, "WHERE predicate must be boolean")
		}
		if b {
			return r, nil
		}
	}
}

func (s *selectionIterator) Close() error { return s.src.Close() }

// Selection evaluates pred per row, dropping rows where it is FALSE or
// NULL.
func Selection(in Record, pred Expression) Record {
	return NewRecord(in.Index, &selectionIterator{src: in.Iter, idx: in.Index, pred: pred})
}

// OrderKey is one Sort key: a resolvable column name plus direction.
type OrderKey struct {
	Name string
	Desc bool
}

// Sort performs a stable sort by the listed keys with NULLS last. It
// materializes its input, since a stable full sort requires the complete
// row set.
func Sort(in Record, keys []OrderKey) (Record, error) {
	rows, err := row.Collect(in.Iter)
	if err != nil {
		return Record{}, err
	}
	positions := make([]int, len(keys))
	for i, k := range keys {
		pos, err := in.Index.Resolve(k.Name)
		if err != nil {
			return Record{}, err
		}
		positions[i] = pos
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for k, pos := range positions {
			a, b := rows[i].Values[pos], rows[j].Values[pos]
			if a.IsNull() && b.IsNull() {
				continue
			}
			if a.IsNull() {
				return false // NULLS last
			}
			if b.IsNull() {
				return true
			}
			less, equal := compareValues(a, b)
			if equal {
				continue
			}
			if keys[k].Desc {
				return !less
			}
			return less
		}
		return false
	})
	return NewRecord(in.Index, row.NewSliceIterator(rows)), nil
}

// compareValues orders two non-NULL values of compatible types, returning
// (less, equal).
func compareValues(a, b sqltype.Value) (bool, bool) {
	if ai, aok := a.Int64(); aok {
		if bi, bok := b.Int64(); bok {
			return ai < bi, ai == bi
		}
	}
	if at, aok := a.Text(); aok {
		if bt, bok := b.Text(); bok {
			return at < bt, at == bt
		}
	}
	if ab, aok := a.Bool(); aok {
		if bb, bok := b.Bool(); bok {
			return !ab && bb, ab == bb
		}
	}
	return false, true
}

// HashJoin builds a hash table on the right input's join key, then probes
// it with each row from the left, emitting the concatenated row under
// left_schema ++ right_schema on every hit.
func HashJoin(left, right Record, leftKey, rightKey string) (Record, error) {
	rightRows, err := row.Collect(right.Iter)
	if err != nil {
		return Record{}, err
	}
	rightPos, err := right.Index.Resolve(rightKey)
	if err != nil {
		return Record{}, err
	}
	leftPos, err := left.Index.Resolve(leftKey)
	if err != nil {
		return Record{}, err
	}

	buckets := map[any][]row.Row{}
	for _, r := range rightRows {
		key := r.Values[rightPos].HashKey()
		if key == nil {
			continue // NULL never joins
		}
		buckets[key] = append(buckets[key], r)
	}

	joinedFields := append(append([]schema.FieldRef(nil), left.Index.Schema().Fields...), right.Index.Schema().Fields...)
	joinedIdx := schema.NewIndex(schema.NewSchema(joinedFields...))

	var out []row.Row
	for {
		lr, err := left.Iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Record{}, err
		}
		key := lr.Values[leftPos].HashKey()
		if key == nil {
			continue
		}
		for _, rr := range buckets[key] {
			out = append(out, lr.Concat(rr))
		}
	}
	return NewRecord(joinedIdx, row.NewSliceIterator(out)), nil
}
