package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// EncodeRows builds a prediction matrix from decoded JSON rows. Columns are
// taken from the columns argument when given, otherwise from the sorted keys
// of the first row. Text values are encoded with an encoder built over this
// call's rows only.
func EncodeRows(rows []map[string]any, columns []string) ([][]float64, []string, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}

	if len(columns) == 0 {
		columns = make([]string, 0, len(rows[0]))
		for k := range rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	raw := make([][]string, len(rows))
	for i, row := range rows {
		rec := make([]string, len(columns))
		for j, col := range columns {
			v, ok := row[col]
			if !ok || v == nil {
				return nil, nil, &ColumnNotFoundError{Column: col}
			}
			s, err := cellString(v)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %q: %w", i, col, err)
			}
			if IsNull(s) {
				return nil, nil, &ColumnNotFoundError{Column: col}
			}
			rec[j] = s
		}
		raw[i] = rec
	}

	X := make([][]float64, len(raw))
	for i := range X {
		X[i] = make([]float64, len(columns))
	}
	for j := range columns {
		col, _ := encodeColumn(raw, j)
		for i, v := range col {
			X[i][j] = v
		}
	}

	return X, columns, nil
}

func cellString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
