package training

import (
	"math"

	"github.com/haskel/tabml/internal/algo"
)

// Algorithm ids of the built-in providers.
const (
	AlgorithmLogisticRegression = "logisticregression"
	AlgorithmRandomForest       = "randomforestclassifier"
	AlgorithmKMeans             = "kmeans"
	AlgorithmNeuralNet          = "neuralnetclassifier"
)

// DefaultMaxEpochs bounds the neural network epochs when no limit is configured.
const DefaultMaxEpochs = 1000

// NewDefaultRegistry returns a registry holding the built-in providers.
// maxEpochs caps the neural network's epochs hyperparameter.
func NewDefaultRegistry(maxEpochs int) *Registry {
	if maxEpochs <= 0 {
		maxEpochs = DefaultMaxEpochs
	}

	r := NewRegistry()
	for _, p := range builtinProviders(maxEpochs) {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

func builtinProviders(maxEpochs int) []Provider {
	lr := algo.DefaultLogisticRegressionConfig()
	rf := algo.DefaultRandomForestConfig()
	nn := algo.DefaultNeuralNetworkConfig()

	return []Provider{
		{
			ID:          AlgorithmLogisticRegression,
			Family:      algo.FamilySupervisedClassifier,
			Description: "Multinomial logistic regression with L2 regularization",
			Params: []ParamSpec{
				{Name: "C", Kind: KindFloat, Default: lr.C, Min: 0, MinExclusive: true},
				{Name: "max_iter", Kind: KindInt, Default: float64(lr.MaxIter), Min: 1, Max: 100000},
				{Name: "learning_rate", Kind: KindFloat, Default: lr.LearningRate, Min: 0, MinExclusive: true},
			},
			Fit: func(in FitInput) (any, error) {
				m := algo.NewLogisticRegression(algo.LogisticRegressionConfig{
					C:            in.Params.Float("C"),
					MaxIter:      in.Params.Int("max_iter"),
					LearningRate: in.Params.Float("learning_rate"),
				})
				if err := m.Fit(in.X, in.Y); err != nil {
					return nil, err
				}
				return m, nil
			},
		},
		{
			ID:          AlgorithmRandomForest,
			Family:      algo.FamilySupervisedClassifier,
			Description: "Random forest of gini decision trees",
			Params: []ParamSpec{
				{Name: "n_estimators", Kind: KindInt, Default: float64(rf.NEstimators), Min: 1, Max: 1000},
				{Name: "max_depth", Kind: KindInt, Default: float64(rf.MaxDepth), Min: 0, Max: 64},
				{Name: "min_samples_split", Kind: KindInt, Default: float64(rf.MinSamplesSplit), Min: 2, Max: 1000},
				{Name: "random_state", Kind: KindInt, Default: float64(rf.RandomState), Min: 0, Max: math.MaxUint32},
			},
			Fit: func(in FitInput) (any, error) {
				m := algo.NewRandomForest(algo.RandomForestConfig{
					NEstimators:     in.Params.Int("n_estimators"),
					MaxDepth:        in.Params.Int("max_depth"),
					MinSamplesSplit: in.Params.Int("min_samples_split"),
					RandomState:     int64(in.Params.Int("random_state")),
				})
				if err := m.Fit(in.X, in.Y); err != nil {
					return nil, err
				}
				return m, nil
			},
		},
		{
			ID:          AlgorithmKMeans,
			Family:      algo.FamilyClustering,
			Description: "K-means clustering",
			Params: []ParamSpec{
				{Name: "n_clusters", Kind: KindInt, Default: 2, Min: 1, MaxRows: true},
			},
			Fit: func(in FitInput) (any, error) {
				m := algo.NewKMeans(in.Params.Int("n_clusters"))
				if err := m.Fit(in.X); err != nil {
					return nil, err
				}
				return m, nil
			},
		},
		{
			ID:          AlgorithmNeuralNet,
			Aliases:     []string{"tensorflow_classifier", "mlpclassifier"},
			Family:      algo.FamilyNeuralClassifier,
			Description: "Feed-forward binary classifier (16-8 ReLU, sigmoid output)",
			Params: []ParamSpec{
				{Name: "epochs", Kind: KindInt, Default: float64(nn.Epochs), Min: 1, Max: float64(maxEpochs)},
				{Name: "learning_rate", Kind: KindFloat, Default: nn.LearningRate, Min: 0, MinExclusive: true},
				{Name: "batch_size", Kind: KindInt, Default: float64(nn.BatchSize), Min: 1, Max: 4096},
				{Name: "random_state", Kind: KindInt, Default: float64(nn.RandomState), Min: 0, Max: math.MaxUint32},
			},
			Fit: func(in FitInput) (any, error) {
				n := algo.NewNeuralNetwork(algo.NeuralNetworkConfig{
					Epochs:       in.Params.Int("epochs"),
					LearningRate: in.Params.Float("learning_rate"),
					BatchSize:    in.Params.Int("batch_size"),
					RandomState:  int64(in.Params.Int("random_state")),
				})
				n.SetFeatures(in.Features)
				if err := n.Fit(in.X, in.Y); err != nil {
					return nil, err
				}
				return n, nil
			},
		},
	}
}
