// Package prediction resolves a stored model by name and runs inference on
// caller-supplied rows.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/haskel/tabml/internal/algo"
	"github.com/haskel/tabml/internal/dataset"
	"github.com/haskel/tabml/internal/storage"
)

// Result holds one prediction and one probability per input row.
type Result struct {
	Predictions   []int     `json:"predictions"`
	Probabilities []float64 `json:"probabilities"`
}

// NoInputDataError is returned when predict is called without rows.
type NoInputDataError struct {
	Model string
}

func (e *NoInputDataError) Error() string {
	return fmt.Sprintf("no input data provided for model %q", e.Model)
}

// PredictionFailedError wraps a failure while loading a model or running
// inference.
type PredictionFailedError struct {
	Model string
	Err   error
}

func (e *PredictionFailedError) Error() string {
	return fmt.Sprintf("prediction with model %q failed: %v", e.Model, e.Err)
}

func (e *PredictionFailedError) Unwrap() error {
	return e.Err
}

// loaded is a decoded artifact.
type loaded struct {
	size    int64
	modTime time.Time

	format  storage.Format
	generic *storage.Envelope
	neural  *algo.NeuralNetwork
}

// Service runs predictions against stored models.
type Service struct {
	models *storage.ModelStore
	cache  *lru.Cache
	logger *slog.Logger
}

// NewService creates a prediction Service. cacheSize is the number of
// decoded models kept in memory; 0 disables caching.
func NewService(models *storage.ModelStore, cacheSize int, logger *slog.Logger) (*Service, error) {
	s := &Service{
		models: models,
		logger: logger.With("component", "prediction"),
	}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create model cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Predict runs the model stored under name on rows.
func (s *Service) Predict(ctx context.Context, name string, rows []map[string]any) (*Result, error) {
	ref, err := s.models.Resolve(name)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NoInputDataError{Model: name}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := s.load(ref)
	if err != nil {
		var unsupported *storage.UnsupportedArtifactFormatError
		if errors.As(err, &unsupported) {
			return nil, err
		}
		return nil, &PredictionFailedError{Model: name, Err: err}
	}

	res, err := infer(m, rows)
	if err != nil {
		var missing *dataset.ColumnNotFoundError
		if errors.As(err, &missing) {
			return nil, err
		}
		return nil, &PredictionFailedError{Model: name, Err: err}
	}

	s.logger.Debug("prediction served", "model", name, "file", ref.File, "rows", len(rows))
	return res, nil
}

// load decodes the artifact, reusing a cached copy while the file is
// unchanged.
func (s *Service) load(ref storage.ArtifactRef) (*loaded, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(ref.Path); ok {
			m := v.(*loaded)
			if m.size == ref.Size && m.modTime.Equal(ref.ModTime) && m.format == ref.Format {
				return m, nil
			}
			s.cache.Remove(ref.Path)
		}
	}

	m := &loaded{size: ref.Size, modTime: ref.ModTime, format: ref.Format}
	switch ref.Format {
	case storage.FormatGeneric:
		env, err := s.models.LoadGeneric(ref)
		if err != nil {
			return nil, err
		}
		m.generic = env
	case storage.FormatNeural:
		net, err := s.models.LoadNeural(ref)
		if err != nil {
			return nil, err
		}
		m.neural = net
	default:
		return nil, &storage.UnsupportedArtifactFormatError{Name: ref.Name, Format: ref.Format}
	}

	if s.cache != nil {
		s.cache.Add(ref.Path, m)
	}
	return m, nil
}

// CachedModels returns the number of decoded models held in memory.
func (s *Service) CachedModels() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

// infer runs the decoded model on rows. Provider panics are returned as
// errors.
func infer(m *loaded, rows []map[string]any) (res *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	switch m.format {
	case storage.FormatGeneric:
		return inferGeneric(m.generic, rows)
	case storage.FormatNeural:
		return inferNeural(m.neural, rows)
	}
	return nil, fmt.Errorf("no inference path for format %q", m.format)
}

func inferGeneric(env *storage.Envelope, rows []map[string]any) (*Result, error) {
	X, _, err := dataset.EncodeRows(rows, env.Features)
	if err != nil {
		return nil, err
	}

	preds, err := env.Model.Predict(X)
	if err != nil {
		return nil, err
	}

	probs := make([]float64, len(X))
	if est, ok := env.Model.(algo.ProbabilityEstimator); ok {
		proba, err := est.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for i, row := range proba {
			probs[i] = positiveColumn(row)
		}
	}

	return &Result{Predictions: preds, Probabilities: probs}, nil
}

// positiveColumn picks the reported probability of a row: the only column
// when there is one, otherwise column 1.
func positiveColumn(row []float64) float64 {
	switch len(row) {
	case 0:
		return 0
	case 1:
		return row[0]
	}
	return row[1]
}

func inferNeural(net *algo.NeuralNetwork, rows []map[string]any) (*Result, error) {
	X, _, err := dataset.EncodeRows(rows, net.FeatureNames())
	if err != nil {
		return nil, err
	}

	scores, err := net.Score(X)
	if err != nil {
		return nil, err
	}

	return &Result{Predictions: algo.ThresholdScores(scores), Probabilities: scores}, nil
}
