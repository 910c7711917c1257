package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haskel/tabml/internal/capacity"
	"github.com/haskel/tabml/internal/config"
	"github.com/haskel/tabml/internal/dataset"
	"github.com/haskel/tabml/internal/metrics"
	"github.com/haskel/tabml/internal/monitor"
	"github.com/haskel/tabml/internal/prediction"
	"github.com/haskel/tabml/internal/storage"
	"github.com/haskel/tabml/internal/training"
)

const binaryCSV = `x1,x2,label
0.1,0.2,0
0.2,0.1,0
0.3,0.3,0
0.2,0.4,0
5.1,5.0,1
5.3,4.8,1
4.9,5.2,1
5.0,5.1,1
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockMonitor struct {
	name string
	data any
}

func (m *mockMonitor) Name() string { return m.name }

func (m *mockMonitor) Collect(context.Context) (any, error) { return m.data, nil }

type fixture struct {
	srv      *Server
	handler  http.Handler
	models   *storage.ModelStore
	modelDir string
	dataDir  string
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.ModelDir = filepath.Join(t.TempDir(), "models")
	for _, m := range mutate {
		m(cfg)
	}

	logger := testLogger()
	models := storage.NewModelStore(cfg.Storage.ModelDir, logger)
	store := metrics.NewMemoryStore()
	registry := training.NewDefaultRegistry(cfg.Training.MaxEpochs)
	trainer := training.NewDispatcher(registry, dataset.FileSource{}, models, store, cfg.Training.DefaultMetricsVersion, logger)
	predictor, err := prediction.NewService(models, cfg.Prediction.CacheSize, logger)
	if err != nil {
		t.Fatal(err)
	}

	agg := monitor.NewAggregator([]monitor.Monitor{
		&mockMonitor{name: "cpu", data: &monitor.CPUState{UsagePercent: 12.5, LogicalCores: 4}},
	}, time.Second, logger)
	if err := agg.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(agg.Stop)

	deps := Deps{
		Trainer:   trainer,
		Predictor: predictor,
		Models:    models,
		Metrics:   store,
		Monitor:   agg,
	}
	deps.Admission = capacity.NewGuard(agg, AdmissionThresholds(cfg.Admission))
	srv := New(cfg, deps, logger, "0.1.0-test")

	return &fixture{
		srv:      srv,
		handler:  srv.Handler(),
		models:   models,
		modelDir: cfg.Storage.ModelDir,
		dataDir:  t.TempDir(),
	}
}

func (f *fixture) writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dataDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[struct {
		Error string `json:"error"`
	}](t, w).Error
}

func TestServer_Info(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	info := decode[InfoResponse](t, w)
	if info.Name != "tabml" || info.Version != "0.1.0-test" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Algorithms != 4 {
		t.Errorf("expected 4 algorithms, got %d", info.Algorithms)
	}

	if w := f.do(t, http.MethodGet, "/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", w.Code)
	}
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := decode[HealthResponse](t, w).Status; got != "ok" {
		t.Errorf("status = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response should carry a request id")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("response should not be cacheable")
	}
}

func TestServer_Status(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	status := decode[StatusResponse](t, w)
	if status.Models != 0 {
		t.Errorf("models = %d, want 0", status.Models)
	}
	if status.Host == nil || status.Host.CPU.LogicalCores != 4 {
		t.Errorf("host = %+v, want the monitor snapshot", status.Host)
	}
}

func TestServer_Algorithms(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/ml/algorithms", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	resp := decode[AlgorithmsResponse](t, w)
	if len(resp.Algorithms) != 4 || resp.Algorithms[0].ID != training.AlgorithmKMeans {
		t.Errorf("unexpected algorithms: %+v", resp.Algorithms)
	}
	if !strings.Contains(w.Body.String(), `"n_clusters"`) {
		t.Error("hyperparameter specs should be listed")
	}
}

func TestServer_TrainPredictMetricsLifecycle(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "points.csv", binaryCSV)

	w := f.do(t, http.MethodPost, "/ml/train", map[string]any{
		"dataset_path": path,
		"label_column": "label",
		"algorithm":    "LogisticRegression",
		"hyperparams":  map[string]any{"max_iter": 200},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("train: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	trained := decode[training.Result](t, w)
	if trained.ModelFile != "logisticregression_points.csv.gob" {
		t.Errorf("model_file = %q", trained.ModelFile)
	}
	if !strings.Contains(trained.Details, "logisticregression") {
		t.Errorf("details = %q", trained.Details)
	}

	w = f.do(t, http.MethodGet, "/ml/models", nil)
	models := decode[ModelsResponse](t, w)
	if len(models.Models) != 1 || models.Models[0] != trained.ModelFile {
		t.Errorf("models = %v, want [%s]", models.Models, trained.ModelFile)
	}

	rows := []map[string]any{{"x1": 0.15, "x2": 0.2}, {"x1": 5.0, "x2": 5.1}}
	for _, path := range []string{"/ml/predict", "/predict2"} {
		w = f.do(t, http.MethodPost, path, PredictRequest{ModelName: trained.Name, Data: rows})
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d: %s", path, w.Code, w.Body.String())
		}
		res := decode[prediction.Result](t, w)
		if len(res.Predictions) != 2 || len(res.Probabilities) != 2 {
			t.Fatalf("%s: misaligned result %+v", path, res)
		}
		if res.Predictions[0] != 0 || res.Predictions[1] != 1 {
			t.Errorf("%s: predictions = %v, want [0 1]", path, res.Predictions)
		}
	}

	w = f.do(t, http.MethodGet, "/ml/metrics/"+trained.ModelFile+"/v1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	m := decode[MetricsResponse](t, w)
	if m.ModelName != trained.Name || m.Version != "v1" {
		t.Errorf("metrics identity = %s/%s", m.ModelName, m.Version)
	}
	for _, key := range []string{"accuracy", "precision", "recall", "f1"} {
		if _, ok := m.Metrics[key]; !ok {
			t.Errorf("metrics missing %s: %v", key, m.Metrics)
		}
	}

	w = f.do(t, http.MethodGet, "/ml/performance?model_name="+trained.Name, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("performance: expected status 200, got %d", w.Code)
	}
	if decode[MetricsResponse](t, w).Version != "v1" {
		t.Error("performance should default to version v1")
	}

	w = f.do(t, http.MethodDelete, "/ml/models/"+trained.ModelFile, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected status 200, got %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/ml/predict", PredictRequest{ModelName: trained.Name, Data: rows})
	if w.Code != http.StatusNotFound {
		t.Errorf("predict after delete: expected 404, got %d", w.Code)
	}
}

func TestServer_TrainClusteringAlias(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "points.csv", binaryCSV)

	w := f.do(t, http.MethodPost, "/ml/train2", map[string]any{
		"dataset_path": path,
		"algorithm":    "KMeans",
		"hyperparams":  map[string]any{"n_clusters": 2},
		"model_name":   "clusters",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/ml/predict", map[string]any{
		"model_name": "clusters",
		"data":       []map[string]any{{"x1": 0.1, "x2": 0.1, "label": 0}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("predict: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[prediction.Result](t, w)
	if len(res.Probabilities) != 1 || res.Probabilities[0] != 0 {
		t.Errorf("clustering probabilities = %v, want [0]", res.Probabilities)
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "points.csv", binaryCSV)
	emptyPath := f.writeCSV(t, "empty.csv", "x1,x2,label\n")

	w := f.do(t, http.MethodPost, "/ml/train", map[string]any{
		"dataset_path": path, "label_column": "label", "algorithm": "LogisticRegression", "model_name": "m",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("setup train failed: %d %s", w.Code, w.Body.String())
	}
	if err := os.WriteFile(filepath.Join(f.modelDir, "opaque"), []byte("??"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		method      string
		path        string
		body        any
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "unsupported algorithm",
			method:      http.MethodPost,
			path:        "/ml/train",
			body:        map[string]any{"dataset_path": path, "label_column": "label", "algorithm": "SuperDuperForest"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "SuperDuperForest",
		},
		{
			name:        "missing label column",
			method:      http.MethodPost,
			path:        "/ml/train",
			body:        map[string]any{"dataset_path": path, "label_column": "Target", "algorithm": "LogisticRegression"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Target",
		},
		{
			name:        "empty dataset",
			method:      http.MethodPost,
			path:        "/ml/train",
			body:        map[string]any{"dataset_path": emptyPath, "label_column": "label", "algorithm": "LogisticRegression"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "empty.csv",
		},
		{
			name:        "invalid hyperparameter",
			method:      http.MethodPost,
			path:        "/ml/train",
			body:        map[string]any{"dataset_path": path, "label_column": "label", "algorithm": "KMeans", "hyperparams": map[string]any{"n_clusters": "many"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "n_clusters",
		},
		{
			name:        "dataset not found",
			method:      http.MethodPost,
			path:        "/ml/train",
			body:        map[string]any{"dataset_path": filepath.Join(f.dataDir, "missing.csv"), "label_column": "label", "algorithm": "LogisticRegression"},
			wantStatus:  http.StatusNotFound,
			wantMessage: "missing.csv",
		},
		{
			name:        "artifact conflict",
			method:      http.MethodPost,
			path:        "/ml/train",
			body:        map[string]any{"dataset_path": path, "label_column": "label", "algorithm": "tensorflow_classifier", "model_name": "m", "hyperparams": map[string]any{"epochs": 5}},
			wantStatus:  http.StatusConflict,
			wantMessage: "m.gob",
		},
		{
			name:       "malformed body",
			method:     http.MethodPost,
			path:       "/ml/train",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body",
			method:     http.MethodPost,
			path:       "/ml/predict",
			body:       "",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "model never trained",
			method:      http.MethodPost,
			path:        "/ml/predict",
			body:        PredictRequest{ModelName: "never_trained", Data: []map[string]any{{"x1": 1}}},
			wantStatus:  http.StatusNotFound,
			wantMessage: "never_trained",
		},
		{
			name:        "no input rows",
			method:      http.MethodPost,
			path:        "/ml/predict",
			body:        PredictRequest{ModelName: "m"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "m",
		},
		{
			name:        "missing feature",
			method:      http.MethodPost,
			path:        "/ml/predict",
			body:        PredictRequest{ModelName: "m", Data: []map[string]any{{"x1": 1}}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "x2",
		},
		{
			name:       "model name required",
			method:     http.MethodPost,
			path:       "/ml/predict",
			body:       PredictRequest{Data: []map[string]any{{"x1": 1}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "unsupported artifact format",
			method:      http.MethodPost,
			path:        "/ml/predict",
			body:        PredictRequest{ModelName: "opaque", Data: []map[string]any{{"x1": 1}}},
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "opaque",
		},
		{
			name:        "metrics version not found",
			method:      http.MethodGet,
			path:        "/ml/metrics/m/v2",
			wantStatus:  http.StatusNotFound,
			wantMessage: "v2",
		},
		{
			name:       "performance requires model_name",
			method:     http.MethodGet,
			path:       "/ml/performance",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "delete unknown model",
			method:      http.MethodDelete,
			path:        "/ml/models/ghost",
			wantStatus:  http.StatusNotFound,
			wantMessage: "ghost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			msg := errorMessage(t, w)
			if msg == "" {
				t.Error("error body should carry a message")
			}
			if tt.wantMessage != "" && !strings.Contains(msg, tt.wantMessage) {
				t.Errorf("error %q should name %q", msg, tt.wantMessage)
			}
		})
	}
}

func TestServer_BodyTooLarge(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Server.MaxBodyBytes = 64
	})

	w := f.do(t, http.MethodPost, "/ml/predict", PredictRequest{
		ModelName: "m",
		Data:      []map[string]any{{"a_rather_long_feature_name": strings.Repeat("x", 100)}},
	})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}

func TestServer_Auth(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Auth = config.AuthConfig{Enabled: true, User: "admin", Password: "secret"}
	})

	if w := f.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("/health should stay public, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/ml/models", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ml/models", nil)
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with credentials, got %d", w.Code)
	}

	cfg := config.Default()
	f.srv.ReloadConfig(cfg)
	if w := f.do(t, http.MethodGet, "/ml/models", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 after disabling auth, got %d", w.Code)
	}
}

func TestServer_Addr(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = 9123
	})
	if got := f.srv.Addr(); got != "127.0.0.1:9123" {
		t.Errorf("Addr = %q", got)
	}
}

func TestServer_TrainRefusedWhenHostBusy(t *testing.T) {
	busy := func(cfg *config.Config) {
		cfg.Admission.Enabled = true
		cfg.Admission.MaxCPUPercent = 10
	}
	f := newFixture(t, busy)
	path := f.writeCSV(t, "points.csv", binaryCSV)
	req := map[string]any{
		"dataset_path": path,
		"label_column": "label",
		"algorithm":    "LogisticRegression",
	}

	w := f.do(t, http.MethodPost, "/ml/train", req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "cpu_overload") {
		t.Errorf("body %q should name the reason", w.Body.String())
	}

	cfg := config.Default()
	cfg.Admission.Enabled = true
	cfg.Admission.MaxCPUPercent = 50
	f.srv.ReloadConfig(cfg)

	if w := f.do(t, http.MethodPost, "/ml/train", req); w.Code != http.StatusOK {
		t.Errorf("expected 200 after raising the threshold, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_ReloadDuringRequests(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			f.srv.ReloadConfig(config.Default())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			f.do(t, http.MethodGet, "/ml/performance?model_name=x", nil)
		}
	}()
	wg.Wait()

	if f.srv.Config() == nil {
		t.Fatal("Config should not be nil after reload")
	}
}

func TestServer_MetricsVersionSurvivesReload(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "points.csv", binaryCSV)

	w := f.do(t, http.MethodPost, "/ml/train", map[string]any{
		"dataset_path": path,
		"label_column": "label",
		"algorithm":    "LogisticRegression",
		"model_name":   "lr",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("train: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	cfg := config.Default()
	cfg.Training.DefaultMetricsVersion = "v2"
	f.srv.ReloadConfig(cfg)

	w = f.do(t, http.MethodGet, "/ml/performance?model_name=lr", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("performance: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[MetricsResponse](t, w); got.Version != "v1" {
		t.Errorf("Version = %q, want the version training wrote under", got.Version)
	}
	if f.srv.Config().Training.DefaultMetricsVersion != "v2" {
		t.Error("reloaded config should be in effect")
	}
}

func TestServer_LabelOnlyDatasetIsBadRequest(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "labels.csv", "label\n0\n1\n0\n1\n")

	w := f.do(t, http.MethodPost, "/ml/train", map[string]any{
		"dataset_path": path,
		"label_column": "label",
		"algorithm":    "LogisticRegression",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
