package training

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ParamKind is the numeric kind of a hyperparameter.
type ParamKind string

const (
	KindFloat ParamKind = "float"
	KindInt   ParamKind = "int"
)

// ParamSpec declares one hyperparameter a provider understands.
type ParamSpec struct {
	Name    string    `json:"name"`
	Kind    ParamKind `json:"kind"`
	Default float64   `json:"default"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max,omitempty"`
	// MinExclusive makes Min a strict lower bound.
	MinExclusive bool `json:"min_exclusive,omitempty"`
	// MaxRows bounds the value by the number of encoded rows. It is
	// checked after the dataset is loaded.
	MaxRows bool `json:"max_rows,omitempty"`
}

func (s ParamSpec) bounded() bool {
	return s.Max != 0
}

// Params holds coerced hyperparameter values.
type Params map[string]float64

// Float returns the value of name.
func (p Params) Float(name string) float64 {
	return p[name]
}

// Int returns the value of name as an int.
func (p Params) Int(name string) int {
	return int(p[name])
}

// InvalidHyperparameterError is returned when a hyperparameter has the
// wrong type or is out of range.
type InvalidHyperparameterError struct {
	Algorithm string
	Name      string
	Value     any
	Reason    string
}

func (e *InvalidHyperparameterError) Error() string {
	return fmt.Sprintf("invalid hyperparameter %q=%v for algorithm %q: %s", e.Name, e.Value, e.Algorithm, e.Reason)
}

// coerce converts raw request values into Params, filling defaults. Keys
// that no ParamSpec names are ignored.
func coerce(algorithm string, specs []ParamSpec, raw map[string]any) (Params, error) {
	params := make(Params, len(specs))
	for _, spec := range specs {
		params[spec.Name] = spec.Default

		v, ok := raw[spec.Name]
		if !ok || v == nil {
			continue
		}

		invalid := func(reason string) error {
			return &InvalidHyperparameterError{Algorithm: algorithm, Name: spec.Name, Value: v, Reason: reason}
		}

		f, err := toFloat(v)
		if err != nil {
			return nil, invalid(err.Error())
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid("must be finite")
		}
		if spec.Kind == KindInt && f != math.Trunc(f) {
			return nil, invalid("must be an integer")
		}
		if spec.MinExclusive && f <= spec.Min {
			return nil, invalid(fmt.Sprintf("must be greater than %v", spec.Min))
		}
		if !spec.MinExclusive && f < spec.Min {
			return nil, invalid(fmt.Sprintf("must be at least %v", spec.Min))
		}
		if spec.bounded() && f > spec.Max {
			return nil, invalid(fmt.Sprintf("must be at most %v", spec.Max))
		}

		params[spec.Name] = f
	}
	return params, nil
}

// checkRows validates MaxRows bounds once the row count is known.
func checkRows(algorithm string, specs []ParamSpec, params Params, rows int) error {
	for _, spec := range specs {
		if !spec.MaxRows {
			continue
		}
		if v := params[spec.Name]; v > float64(rows) {
			return &InvalidHyperparameterError{
				Algorithm: algorithm,
				Name:      spec.Name,
				Value:     v,
				Reason:    fmt.Sprintf("must not exceed the number of rows (%d)", rows),
			}
		}
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		return f, nil
	case bool:
		return 0, fmt.Errorf("booleans are not accepted")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// sortedSpecs returns specs ordered by name.
func sortedSpecs(specs []ParamSpec) []ParamSpec {
	out := append([]ParamSpec(nil), specs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
