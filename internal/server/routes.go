package server

import (
	"net/http"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /ml/train", s.handleTrain)
	mux.HandleFunc("POST /ml/train2", s.handleTrain)
	mux.HandleFunc("POST /ml/predict", s.handlePredict)
	mux.HandleFunc("POST /predict2", s.handlePredict)

	mux.HandleFunc("GET /ml/metrics/{model}/{version}", s.handleMetrics)
	mux.HandleFunc("GET /ml/performance", s.handlePerformance)

	mux.HandleFunc("GET /ml/models", s.handleListModels)
	mux.HandleFunc("DELETE /ml/models/{model}", s.handleDeleteModel)
	mux.HandleFunc("GET /ml/algorithms", s.handleAlgorithms)

	return mux
}
