package metrics

import "fmt"

// PositiveLabel is the class counted as positive by precision and recall.
const PositiveLabel = 1

// Classification scores predicted labels against true labels. Precision,
// recall and f1 treat PositiveLabel as positive and every other label as
// negative; a zero denominator yields 0.
func Classification(yTrue []float64, yPred []int) (Metrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("label count mismatch: %d true, %d predicted", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("no labels to evaluate")
	}

	var correct, tp, fp, fn float64
	for i, t := range yTrue {
		p := float64(yPred[i])
		if p == t {
			correct++
		}
		switch {
		case p == PositiveLabel && t == PositiveLabel:
			tp++
		case p == PositiveLabel:
			fp++
		case t == PositiveLabel:
			fn++
		}
	}

	precision := ratio(tp, tp+fp)
	recall := ratio(tp, tp+fn)

	return Metrics{
		"accuracy":  correct / float64(len(yTrue)),
		"precision": precision,
		"recall":    recall,
		"f1":        ratio(2*precision*recall, precision+recall),
	}, nil
}

// MeanSquaredError returns the mean squared difference of two series.
func MeanSquaredError(yTrue, yScore []float64) (float64, error) {
	if len(yTrue) != len(yScore) {
		return 0, fmt.Errorf("length mismatch: %d true, %d scores", len(yTrue), len(yScore))
	}
	if len(yTrue) == 0 {
		return 0, fmt.Errorf("no values to evaluate")
	}

	sum := 0.0
	for i, t := range yTrue {
		d := yScore[i] - t
		sum += d * d
	}
	return sum / float64(len(yTrue)), nil
}

// Inertia is the clustering summary recorded instead of label metrics.
func Inertia(inertia float64, clusters int) Metrics {
	return Metrics{
		"inertia":    inertia,
		"n_clusters": float64(clusters),
	}
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
