// Package training turns a training request into a persisted model and its
// evaluation metrics.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/haskel/tabml/internal/algo"
	"github.com/haskel/tabml/internal/dataset"
	"github.com/haskel/tabml/internal/metrics"
	"github.com/haskel/tabml/internal/storage"
)

// Stage is a step of the training state machine.
type Stage string

const (
	StageRequested Stage = "requested"
	StageEncoded   Stage = "encoded"
	StageFitted    Stage = "fitted"
	StagePersisted Stage = "persisted"
	StageEvaluated Stage = "evaluated"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// splitSeed fixes the shuffle used for the evaluation hold-out.
const splitSeed = 42

// MaxTestSize is the largest accepted hold-out fraction.
const MaxTestSize = 0.5

// Request describes one training run.
type Request struct {
	DatasetPath    string         `json:"dataset_path"`
	LabelColumn    string         `json:"label_column,omitempty"`
	Algorithm      string         `json:"algorithm"`
	Hyperparams    map[string]any `json:"hyperparams,omitempty"`
	ModelName      string         `json:"model_name,omitempty"`
	MetricsVersion string         `json:"metrics_version,omitempty"`
	TestSize       float64        `json:"test_size,omitempty"`
	Overwrite      bool           `json:"overwrite,omitempty"`
}

// Result is returned by a successful training run.
type Result struct {
	Status         string          `json:"status"`
	ModelFile      string          `json:"model_file"`
	Name           string          `json:"name"`
	Algorithm      string          `json:"algorithm"`
	Format         storage.Format  `json:"format"`
	Family         algo.Family     `json:"family"`
	Details        string          `json:"details"`
	MetricsVersion string          `json:"metrics_version"`
	Metrics        metrics.Metrics `json:"metrics"`
	Rows           int             `json:"rows"`
	Features       []string        `json:"features"`
	Duration       time.Duration   `json:"duration_ns"`
}

// InvalidRequestError is returned for malformed requests.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TrainingFailedError wraps a failure raised while fitting, persisting or
// evaluating a model.
type TrainingFailedError struct {
	Algorithm string
	Stage     Stage
	Err       error
}

func (e *TrainingFailedError) Error() string {
	return fmt.Sprintf("training %q failed at stage %s: %v", e.Algorithm, e.Stage, e.Err)
}

func (e *TrainingFailedError) Unwrap() error {
	return e.Err
}

// Dispatcher runs training requests against registered providers.
type Dispatcher struct {
	registry       *Registry
	source         dataset.Source
	models         *storage.ModelStore
	metrics        metrics.Store
	defaultVersion string
	logger         *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	registry *Registry,
	source dataset.Source,
	models *storage.ModelStore,
	store metrics.Store,
	defaultVersion string,
	logger *slog.Logger,
) *Dispatcher {
	if defaultVersion == "" {
		defaultVersion = metrics.DefaultVersion
	}
	return &Dispatcher{
		registry:       registry,
		source:         source,
		models:         models,
		metrics:        store,
		defaultVersion: defaultVersion,
		logger:         logger.With("component", "training"),
	}
}

// DefaultVersion is the metrics version used when a request names none.
func (d *Dispatcher) DefaultVersion() string {
	return d.defaultVersion
}

// Registry returns the provider registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// ArtifactName returns the default artifact name for an algorithm id and a
// dataset location.
func ArtifactName(algorithm, datasetPath string) string {
	return normalizeID(algorithm) + "_" + filepath.Base(datasetPath)
}

// run tracks the state of one request.
type run struct {
	algorithm string
	stage     Stage
	logger    *slog.Logger
}

func (r *run) advance(next Stage) {
	r.logger.Debug("training stage", "from", r.stage, "to", next)
	r.stage = next
}

func (r *run) fail(at Stage, err error) error {
	r.logger.Debug("training stage", "from", r.stage, "to", StageFailed, "at", at, "error", err)
	r.stage = StageFailed
	return &TrainingFailedError{Algorithm: r.algorithm, Stage: at, Err: err}
}

// reject moves to Failed without wrapping err.
func (r *run) reject(err error) error {
	r.logger.Debug("training stage", "from", r.stage, "to", StageFailed, "error", err)
	r.stage = StageFailed
	return err
}

// Train runs the full lifecycle for req. Request and dataset problems are
// returned as their own typed errors; failures of the provider or the
// stores are wrapped in TrainingFailedError.
func (d *Dispatcher) Train(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	r := &run{
		algorithm: req.Algorithm,
		stage:     StageRequested,
		logger:    d.logger.With("algorithm", req.Algorithm, "dataset", req.DatasetPath),
	}
	r.logger.Debug("training stage", "to", StageRequested)

	// Everything that can be rejected without I/O is checked first.
	provider, err := d.registry.Lookup(req.Algorithm)
	if err != nil {
		return nil, r.reject(err)
	}
	params, err := coerce(provider.ID, provider.Params, req.Hyperparams)
	if err != nil {
		return nil, r.reject(err)
	}
	if strings.TrimSpace(req.DatasetPath) == "" {
		return nil, r.reject(&InvalidRequestError{Field: "dataset_path", Reason: "is required"})
	}
	if req.TestSize < 0 || req.TestSize > MaxTestSize || math.IsNaN(req.TestSize) {
		return nil, r.reject(&InvalidRequestError{
			Field:  "test_size",
			Reason: fmt.Sprintf("must be between 0 and %v", MaxTestSize),
		})
	}
	needsTarget := provider.Family.RequiresTarget()
	if needsTarget && req.LabelColumn == "" {
		return nil, r.reject(&InvalidRequestError{
			Field:  "label_column",
			Reason: fmt.Sprintf("is required for %s algorithms", provider.Family),
		})
	}

	name := req.ModelName
	if name == "" {
		name = ArtifactName(req.Algorithm, req.DatasetPath)
	}
	if err := storage.ValidateName(name); err != nil {
		return nil, r.reject(err)
	}
	version := req.MetricsVersion
	if version == "" {
		version = d.defaultVersion
	}

	target := ""
	if needsTarget {
		target = req.LabelColumn
	}
	data, err := dataset.Load(ctx, d.source, req.DatasetPath, target)
	if err != nil {
		return nil, r.reject(err)
	}
	if len(data.Columns) == 0 {
		return nil, r.reject(&InvalidRequestError{Field: "dataset_path", Reason: "dataset has no feature columns"})
	}
	if err := checkRows(provider.ID, provider.Params, params, data.Rows()); err != nil {
		return nil, r.reject(err)
	}
	r.advance(StageEncoded)

	trainX, trainY, testX, testY := data.X, data.Target, data.X, data.Target
	if needsTarget && req.TestSize > 0 {
		trainX, trainY, testX, testY = split(data.X, data.Target, req.TestSize)
	}

	model, err := safely(func() (any, error) {
		return provider.Fit(FitInput{X: trainX, Y: trainY, Features: data.Columns, Params: params})
	})
	if err != nil {
		return nil, r.fail(StageFitted, err)
	}
	r.advance(StageFitted)

	ref, err := d.models.Put(name, model, provider.Family, storage.PutOptions{
		Algorithm: provider.ID,
		Features:  data.Columns,
		Overwrite: req.Overwrite,
	})
	if err != nil {
		var conflict *storage.ArtifactConflictError
		if errors.As(err, &conflict) {
			return nil, r.reject(err)
		}
		return nil, r.fail(StagePersisted, err)
	}
	r.advance(StagePersisted)

	scores, err := safely(func() (metrics.Metrics, error) {
		return evaluate(provider.Family, model, testX, testY)
	})
	if err != nil {
		return nil, r.fail(StageEvaluated, err)
	}
	if err := d.metrics.Save(ctx, name, version, scores); err != nil {
		return nil, r.fail(StageEvaluated, err)
	}
	r.advance(StageEvaluated)

	r.advance(StageDone)
	elapsed := time.Since(start)
	d.logger.Info("model trained",
		"name", name,
		"algorithm", provider.ID,
		"file", ref.File,
		"rows", data.Rows(),
		"dropped", data.Dropped,
		"duration", elapsed,
	)

	return &Result{
		Status:         "ok",
		ModelFile:      ref.File,
		Name:           name,
		Algorithm:      provider.ID,
		Format:         ref.Format,
		Family:         provider.Family,
		Details:        fmt.Sprintf("Model trained with %s and saved as %s", provider.ID, ref.File),
		MetricsVersion: version,
		Metrics:        scores,
		Rows:           data.Rows(),
		Features:       data.Columns,
		Duration:       elapsed,
	}, nil
}

// split shuffles rows with a fixed seed and holds out testSize of them.
// If either side would be empty the full data is used for both.
func split(X [][]float64, y []float64, testSize float64) ([][]float64, []float64, [][]float64, []float64) {
	n := len(X)
	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest <= 0 || nTest >= n {
		return X, y, X, y
	}

	perm := rand.New(rand.NewSource(splitSeed)).Perm(n)

	pick := func(idx []int) ([][]float64, []float64) {
		xs := make([][]float64, len(idx))
		ys := make([]float64, len(idx))
		for i, j := range idx {
			xs[i] = X[j]
			ys[i] = y[j]
		}
		return xs, ys
	}

	testX, testY := pick(perm[:nTest])
	trainX, trainY := pick(perm[nTest:])
	return trainX, trainY, testX, testY
}

type scorer interface {
	Score(X [][]float64) ([]float64, error)
}

type clusterSummary interface {
	Summary() (float64, int)
}

// evaluate computes the family's metrics for model on X and y.
func evaluate(family algo.Family, model any, X [][]float64, y []float64) (metrics.Metrics, error) {
	switch family {
	case algo.FamilySupervisedClassifier:
		p, ok := model.(algo.Predictor)
		if !ok {
			return nil, fmt.Errorf("model %T cannot predict", model)
		}
		pred, err := p.Predict(X)
		if err != nil {
			return nil, err
		}
		return metrics.Classification(y, pred)

	case algo.FamilyNeuralClassifier:
		s, ok := model.(scorer)
		if !ok {
			return nil, fmt.Errorf("model %T cannot score", model)
		}
		scores, err := s.Score(X)
		if err != nil {
			return nil, err
		}
		m, err := metrics.Classification(y, algo.ThresholdScores(scores))
		if err != nil {
			return nil, err
		}
		mse, err := metrics.MeanSquaredError(y, scores)
		if err != nil {
			return nil, err
		}
		m["mse"] = mse
		return m, nil

	case algo.FamilyClustering:
		c, ok := model.(clusterSummary)
		if !ok {
			return nil, fmt.Errorf("model %T has no cluster summary", model)
		}
		inertia, k := c.Summary()
		return metrics.Inertia(inertia, k), nil
	}
	return nil, fmt.Errorf("unknown family %q", family)
}

// safely runs fn and turns a panic into an error.
func safely[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
