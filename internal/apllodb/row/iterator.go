package row

import "io"

// Iterator streams schema-aligned Rows one at a time. It is the Go
// analogue of the original's version_row_iter: callers call Next until it
// returns io.EOF.
type Iterator interface {
	Next() (Row, error)
	Close() error
}

// SliceIterator adapts an in-memory []Row into an Iterator — used by the
// Values leaf operator and by tests.
type SliceIterator struct {
	rows []Row
	pos  int
}

func NewSliceIterator(rows []Row) *SliceIterator {
	return &SliceIterator{rows: rows}
}

func (it *SliceIterator) Next() (Row, error) {
	if it.pos >= len(it.rows) {
		return Row{}, io.EOF
	}
	r := it.rows[it.pos]
	it.pos++
	return r, nil
}

func (it *SliceIterator) Close() error { return nil }

// Collect drains an iterator into a slice, for tests and for operators
// (Sort, HashJoin build side) that must materialize their input.
func Collect(it Iterator) ([]Row, error) {
	var out []Row
	for {
		r, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
}
