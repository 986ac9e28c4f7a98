package daemon

import (
	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/executor"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/row"
)

// ResultDTO is the wire rendering of an executor.Result: exactly one of
// Rows or Affected is populated.
type ResultDTO struct {
	Columns  []string `json:"columns,omitempty"`
	Rows     [][]any  `json:"rows,omitempty"`
	Affected *int64   `json:"affected,omitempty"`
}

func toResultDTO(res executor.Result) (ResultDTO, error) {
	if res.Rows.Index == nil && res.Rows.Iter == nil {
		affected := res.Affected
		return ResultDTO{Affected: &affected}, nil
	}

	fields := res.Rows.Index.Schema().Fields
	cols := make([]string, len(fields))
	for i, f := range fields {
		name := f.Column
		if f.ColAlias != "" {
			name = f.ColAlias
		}
		cols[i] = name
	}

	rows, err := row.Collect(res.Rows.Iter)
	if err != nil {
		return ResultDTO{}, apperrors.Wrap(apperrors.IoError, err, "collect result rows")
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(r.Values))
		for j, v := range r.Values {
			vals[j] = v.ToDriverValue()
		}
		out[i] = vals
	}
	return ResultDTO{Columns: cols, Rows: out}, nil
}
