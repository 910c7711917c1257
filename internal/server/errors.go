package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/haskel/tabml/internal/capacity"
	"github.com/haskel/tabml/internal/dataset"
	"github.com/haskel/tabml/internal/metrics"
	"github.com/haskel/tabml/internal/prediction"
	"github.com/haskel/tabml/internal/server/middleware"
	"github.com/haskel/tabml/internal/storage"
	"github.com/haskel/tabml/internal/training"
)

// badRequestError is a body that could not be decoded.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string {
	return fmt.Sprintf("invalid request body: %v", e.err)
}

func (e *badRequestError) Unwrap() error {
	return e.err
}

// statusFor maps a component error to its HTTP status.
func statusFor(err error) int {
	var (
		tooLarge    *http.MaxBytesError
		badBody     *badRequestError
		column      *dataset.ColumnNotFoundError
		empty       *dataset.EmptyDatasetError
		noDataset   *dataset.DatasetNotFoundError
		unsupported *training.UnsupportedAlgorithmError
		hyper       *training.InvalidHyperparameterError
		invalid     *training.InvalidRequestError
		trainFailed *training.TrainingFailedError
		badName     *storage.InvalidModelNameError
		conflict    *storage.ArtifactConflictError
		noModel     *storage.ModelNotFoundError
		format      *storage.UnsupportedArtifactFormatError
		noInput     *prediction.NoInputDataError
		predFailed  *prediction.PredictionFailedError
		busy        *capacity.ExceededError
	)

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &busy):
		return http.StatusServiceUnavailable
	case errors.As(err, &trainFailed), errors.As(err, &predFailed):
		return http.StatusInternalServerError
	case errors.As(err, &badBody),
		errors.As(err, &column),
		errors.As(err, &empty),
		errors.As(err, &unsupported),
		errors.As(err, &hyper),
		errors.As(err, &invalid),
		errors.As(err, &badName),
		errors.As(err, &noInput):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &noModel),
		errors.As(err, &noDataset),
		errors.Is(err, metrics.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &format):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	middleware.WriteError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status,
		)
	}
}

// decodeJSON decodes one JSON document from the request body. Numbers are
// kept as json.Number so integer hyperparameters and row cells are exact.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &badRequestError{err: errors.New("empty body")}
		}
		return &badRequestError{err: err}
	}
	return nil
}
