// Package dataset turns tabular CSV data into the numeric matrix the
// training providers consume.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// naTokens are the cell values treated as missing.
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsNull reports whether a raw cell counts as missing.
func IsNull(v string) bool {
	_, ok := naTokens[v]
	return ok
}

// CategoricalEncoder maps the distinct values of a text column to integer
// codes. Codes follow lexicographic order of the values.
type CategoricalEncoder struct {
	Values []string
	codes  map[string]int
}

// NewCategoricalEncoder builds an encoder over the distinct values.
func NewCategoricalEncoder(values []string) *CategoricalEncoder {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	distinct := make([]string, 0, len(seen))
	for v := range seen {
		distinct = append(distinct, v)
	}
	sort.Strings(distinct)

	codes := make(map[string]int, len(distinct))
	for i, v := range distinct {
		codes[v] = i
	}
	return &CategoricalEncoder{Values: distinct, codes: codes}
}

// Code returns the code of v and whether v was seen when the encoder was built.
func (e *CategoricalEncoder) Code(v string) (int, bool) {
	c, ok := e.codes[v]
	return c, ok
}

// Encoded is a fully numeric dataset.
type Encoded struct {
	// Columns are the feature column names, in X column order.
	Columns []string
	X       [][]float64
	// Target is nil when no target column was requested.
	Target       []float64
	TargetColumn string
	// Encoders holds one encoder per text column, target included.
	Encoders map[string]*CategoricalEncoder
	// Dropped counts rows removed because they contained a null.
	Dropped int
}

// Rows returns the number of encoded rows.
func (e *Encoded) Rows() int {
	return len(e.X)
}

// Load reads a CSV dataset from src and encodes it. When target is empty
// every column becomes a feature.
func Load(ctx context.Context, src Source, location, target string) (*Encoded, error) {
	rc, err := src.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	header, records, err := readCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("read dataset %q: %w", location, err)
	}

	return Encode(location, header, records, target)
}

// Encode drops rows containing nulls and converts the remaining cells to
// numbers. The empty check runs before the target lookup.
func Encode(location string, header []string, records [][]string, target string) (*Encoded, error) {
	kept := make([][]string, 0, len(records))
	for _, rec := range records {
		if !hasNull(rec) {
			kept = append(kept, rec)
		}
	}
	if len(kept) == 0 {
		return nil, &EmptyDatasetError{Location: location}
	}

	targetIdx := -1
	if target != "" {
		for i, h := range header {
			if h == target {
				targetIdx = i
				break
			}
		}
		if targetIdx < 0 {
			return nil, &ColumnNotFoundError{Column: target}
		}
	}

	out := &Encoded{
		TargetColumn: target,
		Encoders:     make(map[string]*CategoricalEncoder),
		Dropped:      len(records) - len(kept),
	}

	columns := make([][]float64, len(header))
	for j, name := range header {
		col, enc := encodeColumn(kept, j)
		if j == targetIdx && enc == nil && !integral(col) {
			col, enc = encodeCategorical(kept, j)
		}
		columns[j] = col
		if enc != nil {
			out.Encoders[name] = enc
		}
	}

	for j, name := range header {
		if j == targetIdx {
			out.Target = columns[j]
			continue
		}
		out.Columns = append(out.Columns, name)
	}

	out.X = make([][]float64, len(kept))
	for i := range kept {
		row := make([]float64, 0, len(out.Columns))
		for j := range header {
			if j != targetIdx {
				row = append(row, columns[j][i])
			}
		}
		out.X[i] = row
	}

	return out, nil
}

// encodeColumn returns the numeric values of column j, plus an encoder when
// the column is not entirely numeric.
func encodeColumn(records [][]string, j int) ([]float64, *CategoricalEncoder) {
	values := make([]float64, len(records))
	numeric := true
	for i, rec := range records {
		f, ok := parseNumber(rec[j])
		if !ok {
			numeric = false
			break
		}
		values[i] = f
	}
	if numeric {
		return values, nil
	}
	return encodeCategorical(records, j)
}

// encodeCategorical codes column j lexicographically.
func encodeCategorical(records [][]string, j int) ([]float64, *CategoricalEncoder) {
	raw := make([]string, len(records))
	for i, rec := range records {
		raw[i] = rec[j]
	}
	enc := NewCategoricalEncoder(raw)
	values := make([]float64, len(raw))
	for i, v := range raw {
		c, _ := enc.Code(v)
		values[i] = float64(c)
	}
	return values, enc
}

// integral reports whether every value is a whole number. Class labels are
// whole numbers, so a target that is not gets categorical codes.
func integral(values []float64) bool {
	for _, v := range values {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func hasNull(rec []string) bool {
	for _, v := range rec {
		if IsNull(v) {
			return true
		}
	}
	return false
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		if _, dup := seen[h]; dup {
			return nil, nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = struct{}{}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, records, nil
}
