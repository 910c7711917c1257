// Package algo holds the numeric capability providers used by the training
// dispatcher: a logistic regression and a random forest classifier, k-means
// clustering and a small feed-forward binary classifier.
//
// The lifecycle code only talks to these through the Predictor and
// ProbabilityEstimator interfaces, so providers can be swapped without
// touching training or prediction.
package algo

import (
	"errors"
	"fmt"
	"sort"
)

// Family groups algorithms by the inputs they need and how they persist.
type Family string

const (
	FamilySupervisedClassifier Family = "supervised-classifier"
	FamilyClustering           Family = "clustering"
	FamilyNeuralClassifier     Family = "neural-classifier"
)

// IsValid checks if the family is known.
func (f Family) IsValid() bool {
	switch f {
	case FamilySupervisedClassifier, FamilyClustering, FamilyNeuralClassifier:
		return true
	}
	return false
}

// RequiresTarget reports whether training needs a target column.
func (f Family) RequiresTarget() bool {
	return f == FamilySupervisedClassifier || f == FamilyNeuralClassifier
}

// String returns string representation.
func (f Family) String() string {
	return string(f)
}

// Predictor produces one integer label (class or cluster) per input row.
type Predictor interface {
	Predict(X [][]float64) ([]int, error)
}

// ProbabilityEstimator returns per-row class probabilities, one column per
// class in the order reported by Classes.
type ProbabilityEstimator interface {
	Predictor
	PredictProba(X [][]float64) ([][]float64, error)
	Classes() []float64
}

var (
	ErrEmptyInput      = errors.New("empty input")
	ErrNoFeatures      = errors.New("dataset has no feature columns")
	ErrLengthMismatch  = errors.New("feature rows and target length differ")
	ErrNotFitted       = errors.New("model is not fitted")
	ErrFeatureMismatch = errors.New("feature count mismatch")
)

// checkMatrix validates a feature matrix and returns its width.
func checkMatrix(X [][]float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyInput
	}
	d := len(X[0])
	if d == 0 {
		return 0, ErrNoFeatures
	}
	for i, row := range X {
		if len(row) != d {
			return 0, fmt.Errorf("row %d has %d values, expected %d: %w", i, len(row), d, ErrFeatureMismatch)
		}
	}
	return d, nil
}

// checkWidth validates prediction input against the fitted width.
func checkWidth(X [][]float64, want int) error {
	for i, row := range X {
		if len(row) != want {
			return fmt.Errorf("row %d has %d values, model expects %d: %w", i, len(row), want, ErrFeatureMismatch)
		}
	}
	return nil
}

// uniqueClasses returns the sorted distinct target values and the class
// index of every row.
func uniqueClasses(y []float64) ([]float64, []int) {
	seen := make(map[float64]struct{}, len(y))
	for _, v := range y {
		seen[v] = struct{}{}
	}
	classes := make([]float64, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)

	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	idx := make([]int, len(y))
	for i, v := range y {
		idx[i] = index[v]
	}
	return classes, idx
}

// argmax returns the index of the largest value; ties go to the lowest index.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// labelsFromProba maps probability rows to class labels.
func labelsFromProba(proba [][]float64, classes []float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = int(classes[argmax(p)])
	}
	return out
}
