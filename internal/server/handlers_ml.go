package server

import (
	"net/http"
	"strings"

	"github.com/haskel/tabml/internal/metrics"
	"github.com/haskel/tabml/internal/storage"
	"github.com/haskel/tabml/internal/training"
)

// PredictRequest is the body of POST /ml/predict.
type PredictRequest struct {
	ModelName string           `json:"model_name"`
	Data      []map[string]any `json:"data"`
}

type MetricsResponse struct {
	ModelName string          `json:"model_name"`
	Version   string          `json:"version"`
	Metrics   metrics.Metrics `json:"metrics"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

type DeleteResponse struct {
	Deleted string `json:"deleted"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req training.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Admission != nil {
		if err := s.deps.Admission.Admit(); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	res, err := s.deps.Trainer.Train(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ModelName) == "" {
		s.writeError(w, r, &training.InvalidRequestError{Field: "model_name", Reason: "is required"})
		return
	}

	res, err := s.deps.Predictor.Predict(r.Context(), storage.StripExt(req.ModelName), req.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.serveMetrics(w, r, r.PathValue("model"), r.PathValue("version"))
}

// handlePerformance is the query-string form of handleMetrics.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("model_name")
	if name == "" {
		s.writeError(w, r, &training.InvalidRequestError{Field: "model_name", Reason: "is required"})
		return
	}
	s.serveMetrics(w, r, name, q.Get("version"))
}

func (s *Server) serveMetrics(w http.ResponseWriter, r *http.Request, name, version string) {
	name = storage.StripExt(name)
	if version == "" {
		version = s.deps.Trainer.DefaultVersion()
	}

	m, err := s.deps.Metrics.Get(r.Context(), name, version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, MetricsResponse{ModelName: name, Version: version, Metrics: m})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Models.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ModelsResponse{Models: names})
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	name := storage.StripExt(r.PathValue("model"))
	if err := s.deps.Models.Delete(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, DeleteResponse{Deleted: name})
}
