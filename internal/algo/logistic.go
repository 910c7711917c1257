package algo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegressionConfig holds logistic regression hyperparameters.
type LogisticRegressionConfig struct {
	// C is the inverse L2 regularization strength.
	C            float64
	MaxIter      int
	LearningRate float64
}

// DefaultLogisticRegressionConfig mirrors the usual library defaults.
func DefaultLogisticRegressionConfig() LogisticRegressionConfig {
	return LogisticRegressionConfig{
		C:            1.0,
		MaxIter:      1000,
		LearningRate: 0.1,
	}
}

// LogisticRegression is a multinomial (softmax) logistic regression trained
// with full-batch gradient descent on standardized features.
// With two classes it behaves like a binary classifier with two
// probability columns.
type LogisticRegression struct {
	Config LogisticRegressionConfig

	ClassValues []float64
	// Weights[k][j] is the coefficient of feature j for class k.
	Weights [][]float64
	Bias    []float64
	Scaler  *Standardizer
}

// NewLogisticRegression creates an unfitted model.
func NewLogisticRegression(cfg LogisticRegressionConfig) *LogisticRegression {
	def := DefaultLogisticRegressionConfig()
	if cfg.C <= 0 {
		cfg.C = def.C
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = def.MaxIter
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	return &LogisticRegression{Config: cfg}
}

// Fit trains the model on X and the class values y.
func (m *LogisticRegression) Fit(X [][]float64, y []float64) error {
	d, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if len(y) != len(X) {
		return ErrLengthMismatch
	}

	scaler, err := FitStandardizer(X)
	if err != nil {
		return err
	}
	classes, yIdx := uniqueClasses(y)

	n := len(X)
	k := len(classes)

	m.Scaler = scaler
	m.ClassValues = classes

	// A single observed class needs no optimization.
	if k == 1 {
		m.Weights = [][]float64{make([]float64, d)}
		m.Bias = []float64{0}
		return nil
	}

	xs := denseFromRows(scaler.Transform(X))

	onehot := mat.NewDense(n, k, nil)
	for i, c := range yIdx {
		onehot.Set(i, c, 1)
	}

	w := mat.NewDense(d, k, nil)
	b := make([]float64, k)

	invN := 1 / float64(n)
	lambda := 1 / (m.Config.C * float64(n))

	for iter := 0; iter < m.Config.MaxIter; iter++ {
		var logits mat.Dense
		logits.Mul(xs, w)
		probs := softmaxRows(&logits, b)

		var residual mat.Dense
		residual.Sub(probs, onehot)

		var gradW mat.Dense
		gradW.Mul(xs.T(), &residual)
		gradW.Scale(invN, &gradW)

		var reg mat.Dense
		reg.Scale(lambda, w)
		gradW.Add(&gradW, &reg)

		maxGrad := 0.0
		for c := 0; c < k; c++ {
			g := mat.Sum(residual.ColView(c)) * invN
			b[c] -= m.Config.LearningRate * g
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		maxGrad = math.Max(maxGrad, mat.Max(absDense(&gradW)))

		var step mat.Dense
		step.Scale(m.Config.LearningRate, &gradW)
		w.Sub(w, &step)

		if maxGrad < 1e-6 {
			break
		}
	}

	m.Weights = make([][]float64, k)
	for c := 0; c < k; c++ {
		row := make([]float64, d)
		mat.Col(row, c, w)
		m.Weights[c] = row
	}
	m.Bias = b

	return nil
}

// Classes returns the class values in probability column order.
func (m *LogisticRegression) Classes() []float64 {
	return m.ClassValues
}

// PredictProba returns one probability column per class.
func (m *LogisticRegression) PredictProba(X [][]float64) ([][]float64, error) {
	if m.Scaler == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.Scaler.Width()); err != nil {
		return nil, err
	}

	xs := m.Scaler.Transform(X)
	k := len(m.ClassValues)

	out := make([][]float64, len(xs))
	for i, row := range xs {
		if k == 1 {
			out[i] = []float64{1}
			continue
		}
		logits := make([]float64, k)
		for c := 0; c < k; c++ {
			z := m.Bias[c]
			for j, v := range row {
				z += m.Weights[c][j] * v
			}
			logits[c] = z
		}
		out[i] = softmax(logits)
	}
	return out, nil
}

// Predict returns the most probable class value per row.
func (m *LogisticRegression) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("logistic regression: %w", err)
	}
	return labelsFromProba(proba, m.ClassValues), nil
}

func denseFromRows(rows [][]float64) *mat.Dense {
	n, d := len(rows), len(rows[0])
	data := make([]float64, 0, n*d)
	for _, r := range rows {
		data = append(data, r...)
	}
	return mat.NewDense(n, d, data)
}

// softmaxRows adds the bias to every row of logits and applies softmax.
func softmaxRows(logits *mat.Dense, bias []float64) *mat.Dense {
	n, k := logits.Dims()
	out := mat.NewDense(n, k, nil)
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			row[c] = logits.At(i, c) + bias[c]
		}
		out.SetRow(i, softmax(row))
	}
	return out
}

func softmax(z []float64) []float64 {
	maxZ := z[0]
	for _, v := range z[1:] {
		maxZ = math.Max(maxZ, v)
	}
	out := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func absDense(a *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, a)
	return &out
}
