package algo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const (
	// NeuralFormatName identifies the native saved-model document.
	NeuralFormatName    = "tabml.nnet"
	neuralFormatVersion = 1

	activationReLU    = "relu"
	activationSigmoid = "sigmoid"
)

// HiddenLayers is the fixed topology of the binary classifier.
var HiddenLayers = []int{16, 8}

// NeuralNetworkConfig holds training hyperparameters.
type NeuralNetworkConfig struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
	RandomState  int64   `json:"random_state"`
}

// DefaultNeuralNetworkConfig returns the default training configuration.
func DefaultNeuralNetworkConfig() NeuralNetworkConfig {
	return NeuralNetworkConfig{
		Epochs:       5,
		LearningRate: 0.01,
		BatchSize:    32,
		RandomState:  42,
	}
}

// Layer is a dense layer; Weights[o][i] connects input i to output o.
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// NeuralNetwork is a feed-forward binary classifier with two ReLU hidden
// layers and a sigmoid output, trained with Adam on binary cross-entropy.
type NeuralNetwork struct {
	Format   string              `json:"format"`
	Version  int                 `json:"version"`
	Features []string            `json:"features,omitempty"`
	Config   NeuralNetworkConfig `json:"config"`
	Scaler   *Standardizer       `json:"scaler"`
	Layers   []Layer             `json:"layers"`
}

// NewNeuralNetwork creates an unfitted network.
func NewNeuralNetwork(cfg NeuralNetworkConfig) *NeuralNetwork {
	def := DefaultNeuralNetworkConfig()
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &NeuralNetwork{
		Format:  NeuralFormatName,
		Version: neuralFormatVersion,
		Config:  cfg,
	}
}

// SetFeatures records the input column names stored with the model.
func (n *NeuralNetwork) SetFeatures(features []string) {
	n.Features = append([]string(nil), features...)
}

// FeatureNames returns the input column names the model was trained on.
func (n *NeuralNetwork) FeatureNames() []string {
	return n.Features
}

// Fit trains the network. y must only contain the values 0 and 1.
func (n *NeuralNetwork) Fit(X [][]float64, y []float64) error {
	d, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if len(y) != len(X) {
		return ErrLengthMismatch
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("neural network: binary target must be 0 or 1, row %d has %v", i, v)
		}
	}

	scaler, err := FitStandardizer(X)
	if err != nil {
		return err
	}
	n.Scaler = scaler
	xs := scaler.Transform(X)

	rng := rand.New(rand.NewSource(n.Config.RandomState))

	sizes := append([]int{d}, HiddenLayers...)
	sizes = append(sizes, 1)

	weights := make([]*mat.Dense, len(sizes)-1)
	biases := make([]*mat.VecDense, len(sizes)-1)
	adamW := make([]*adam, len(weights))
	adamB := make([]*adam, len(weights))
	for l := range weights {
		in, out := sizes[l], sizes[l+1]
		// He initialization for ReLU layers.
		scale := math.Sqrt(2 / float64(in))
		data := make([]float64, out*in)
		for i := range data {
			data[i] = rng.NormFloat64() * scale
		}
		weights[l] = mat.NewDense(out, in, data)
		biases[l] = mat.NewVecDense(out, nil)
		adamW[l] = newAdam(out * in)
		adamB[l] = newAdam(out)
	}

	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < n.Config.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += n.Config.BatchSize {
			end := min(start+n.Config.BatchSize, len(order))
			batch := order[start:end]

			xb := mat.NewDense(len(batch), d, nil)
			yb := mat.NewDense(len(batch), 1, nil)
			for r, i := range batch {
				xb.SetRow(r, xs[i])
				yb.Set(r, 0, y[i])
			}

			acts, pre := forward(xb, weights, biases)

			// Sigmoid + BCE gives dZ = (a - y) / m at the output.
			var delta mat.Dense
			delta.Sub(acts[len(acts)-1], yb)
			delta.Scale(1/float64(len(batch)), &delta)

			for l := len(weights) - 1; l >= 0; l-- {
				var gradW mat.Dense
				gradW.Mul(delta.T(), acts[l])

				rows, cols := delta.Dims()
				gradB := make([]float64, cols)
				for r := 0; r < rows; r++ {
					for c := 0; c < cols; c++ {
						gradB[c] += delta.At(r, c)
					}
				}

				if l > 0 {
					var next mat.Dense
					next.Mul(&delta, weights[l])
					next.Apply(func(i, j int, v float64) float64 {
						if pre[l-1].At(i, j) > 0 {
							return v
						}
						return 0
					}, &next)
					delta = next
				}

				adamW[l].step(weights[l].RawMatrix().Data, gradW.RawMatrix().Data, n.Config.LearningRate)
				adamB[l].step(biases[l].RawVector().Data, gradB, n.Config.LearningRate)
			}
		}
	}

	n.Layers = make([]Layer, len(weights))
	for l, w := range weights {
		out, in := w.Dims()
		rows := make([][]float64, out)
		for o := 0; o < out; o++ {
			rows[o] = make([]float64, in)
			mat.Row(rows[o], o, w)
		}
		act := activationReLU
		if l == len(weights)-1 {
			act = activationSigmoid
		}
		n.Layers[l] = Layer{
			Weights:    rows,
			Bias:       append([]float64(nil), biases[l].RawVector().Data...),
			Activation: act,
		}
	}

	return nil
}

// Score runs a forward pass and returns the sigmoid output per row.
func (n *NeuralNetwork) Score(X [][]float64) ([]float64, error) {
	if n.Scaler == nil || len(n.Layers) == 0 {
		return nil, ErrNotFitted
	}
	if len(X) == 0 {
		return nil, ErrEmptyInput
	}
	if err := checkWidth(X, n.Scaler.Width()); err != nil {
		return nil, err
	}

	xs := n.Scaler.Transform(X)

	weights := make([]*mat.Dense, len(n.Layers))
	biases := make([]*mat.VecDense, len(n.Layers))
	for l, layer := range n.Layers {
		weights[l] = denseFromRows(layer.Weights)
		biases[l] = mat.NewVecDense(len(layer.Bias), append([]float64(nil), layer.Bias...))
	}

	acts, _ := forward(denseFromRows(xs), weights, biases)
	return mat.Col(nil, 0, acts[len(acts)-1]), nil
}

// DecisionThreshold separates the two classes of a score.
const DecisionThreshold = 0.5

// ThresholdScores converts scores into 0/1 labels.
func ThresholdScores(scores []float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s >= DecisionThreshold {
			out[i] = 1
		}
	}
	return out
}

// Save writes the network as its native JSON document.
func (n *NeuralNetwork) Save(w io.Writer) error {
	if len(n.Layers) == 0 {
		return ErrNotFitted
	}
	enc := json.NewEncoder(w)
	return enc.Encode(n)
}

// ReadNeuralNetwork decodes and validates a native document.
func ReadNeuralNetwork(r io.Reader) (*NeuralNetwork, error) {
	var n NeuralNetwork
	if err := json.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode neural network: %w", err)
	}
	if n.Format != NeuralFormatName {
		return nil, fmt.Errorf("unexpected document format %q", n.Format)
	}
	if n.Version > neuralFormatVersion {
		return nil, fmt.Errorf("neural network version %d is newer than supported %d", n.Version, neuralFormatVersion)
	}
	if err := n.validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

func (n *NeuralNetwork) validate() error {
	if n.Scaler == nil || len(n.Layers) == 0 {
		return errors.New("neural network has no layers")
	}
	in := n.Scaler.Width()
	for l, layer := range n.Layers {
		if len(layer.Weights) == 0 || len(layer.Weights) != len(layer.Bias) {
			return fmt.Errorf("layer %d: weights and bias disagree", l)
		}
		for _, row := range layer.Weights {
			if len(row) != in {
				return fmt.Errorf("layer %d: expected %d inputs, got %d", l, in, len(row))
			}
		}
		in = len(layer.Weights)
	}
	if in != 1 {
		return fmt.Errorf("output layer has %d units, expected 1", in)
	}
	return nil
}

// forward returns the activations of every layer (input first) and the
// pre-activations of every layer.
func forward(x *mat.Dense, weights []*mat.Dense, biases []*mat.VecDense) ([]*mat.Dense, []*mat.Dense) {
	acts := []*mat.Dense{x}
	pre := make([]*mat.Dense, len(weights))

	a := x
	for l, w := range weights {
		var z mat.Dense
		z.Mul(a, w.T())
		b := biases[l]
		z.Apply(func(_, j int, v float64) float64 { return v + b.AtVec(j) }, &z)
		pre[l] = &z

		var out mat.Dense
		if l == len(weights)-1 {
			out.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, &z)
		} else {
			out.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, &z)
		}
		acts = append(acts, &out)
		a = &out
	}
	return acts, pre
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// adam keeps first and second moment estimates for one parameter block.
type adam struct {
	m, v []float64
	t    int
}

func newAdam(size int) *adam {
	return &adam{m: make([]float64, size), v: make([]float64, size)}
}

func (a *adam) step(params, grads []float64, lr float64) {
	const (
		beta1 = 0.9
		beta2 = 0.999
		eps   = 1e-7
	)
	a.t++
	c1 := 1 - math.Pow(beta1, float64(a.t))
	c2 := 1 - math.Pow(beta2, float64(a.t))
	for i, g := range grads {
		a.m[i] = beta1*a.m[i] + (1-beta1)*g
		a.v[i] = beta2*a.v[i] + (1-beta2)*g*g
		params[i] -= lr * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + eps)
	}
}
