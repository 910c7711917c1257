package algo

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Standardizer rescales every feature to zero mean and unit variance.
// Constant columns keep a unit scale so they pass through centered.
type Standardizer struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitStandardizer computes per-column statistics of X.
func FitStandardizer(X [][]float64) (*Standardizer, error) {
	d, err := checkMatrix(X)
	if err != nil {
		return nil, err
	}

	s := &Standardizer{
		Mean: make([]float64, d),
		Std:  make([]float64, d),
	}

	col := make(stats.Float64Data, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			col[i] = row[j]
		}

		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("column %d mean: %w", j, err)
		}
		std, err := stats.StandardDeviation(col)
		if err != nil {
			return nil, fmt.Errorf("column %d std: %w", j, err)
		}
		if std < 1e-12 {
			std = 1
		}

		s.Mean[j] = mean
		s.Std[j] = std
	}

	return s, nil
}

// Transform returns a standardized copy of X.
func (s *Standardizer) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = r
	}
	return out
}

// Width returns the number of features the standardizer was fitted on.
func (s *Standardizer) Width() int {
	return len(s.Mean)
}
