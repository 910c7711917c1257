package server

import (
	"net/http"
	"time"

	"github.com/haskel/tabml/internal/monitor"
	"github.com/haskel/tabml/internal/training"
)

type InfoResponse struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Algorithms int    `json:"algorithms"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type StatusResponse struct {
	Version      string             `json:"version"`
	Uptime       string             `json:"uptime"`
	Models       int                `json:"models"`
	CachedModels int                `json:"cached_models"`
	Host         *monitor.HostState `json:"host,omitempty"`
}

type AlgorithmsResponse struct {
	Algorithms []training.Provider `json:"algorithms"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, InfoResponse{
		Name:       "tabml",
		Version:    s.version,
		Algorithms: len(s.deps.Trainer.Registry().List()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Models.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := StatusResponse{
		Version:      s.version,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Models:       len(names),
		CachedModels: s.deps.Predictor.CachedModels(),
	}
	if s.deps.Monitor != nil {
		resp.Host = s.deps.Monitor.State()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, AlgorithmsResponse{
		Algorithms: s.deps.Trainer.Registry().List(),
	})
}
