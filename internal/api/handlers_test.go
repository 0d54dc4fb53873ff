package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/miradorstack/workload-classifier/internal/catboost/catboosttest"
	"github.com/miradorstack/workload-classifier/internal/config"
	"github.com/miradorstack/workload-classifier/internal/model"
	"github.com/miradorstack/workload-classifier/internal/models"
	"github.com/miradorstack/workload-classifier/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	router   *gin.Engine
	manager  *model.Manager
	artifact string
}

func newFixture(t *testing.T, cfg config.ServerConfig) *fixture {
	t.Helper()
	dir := t.TempDir()
	artifact := filepath.Join(dir, "model", "catboost_model.json")
	manager := model.NewManager(model.Options{
		ArtifactPath: artifact,
		MetadataPath: filepath.Join(dir, "model_info.json"),
	}, discardLogger())

	logger := discardLogger()
	handlers := NewHandlers(logger,
		services.NewPredictionService(logger, manager, nil, 0),
		services.NewIntrospectionService(manager),
		manager)
	return &fixture{router: NewRouter(cfg, logger, handlers), manager: manager, artifact: artifact}
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(f.artifact), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(f.artifact, catboosttest.WorkloadModel(), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := f.manager.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	return serve(f.router, method, path, body)
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func metricsBody(t *testing.T, overrides map[string]any, drop ...string) string {
	t.Helper()
	record := map[string]any{
		"db_time_total":        120.5,
		"db_time_committed":    110,
		"cpu_time":             60.25,
		"io_time":              40,
		"lock_time":            20,
		"cpu_percent":          50,
		"io_percent":           33.3,
		"lock_percent":         16.7,
		"tps":                  500,
		"qps":                  3000,
		"avg_query_latency_ms": 5,
		"rollback_rate":        0.2,
		"total_commits":        10000,
		"total_rollbacks":      12,
		"total_calls":          60000,
		"active_config":        "oltp_tuned",
	}
	for k, v := range overrides {
		record[k] = v
	}
	for _, k := range drop {
		delete(record, k)
	}
	raw, err := json.Marshal(map[string]any{"metrics": record})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return string(raw)
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestEndpointsBeforeLoad(t *testing.T) {
	f := newFixture(t, config.ServerConfig{})

	rec := f.do(http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("root: expected 200, got %d", rec.Code)
	}
	var status models.ServiceStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if status.Message != services.BannerMessage || status.Status != "running" || status.ModelLoaded {
		t.Fatalf("unexpected root body: %+v", status)
	}

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/health", ""},
		{http.MethodGet, "/model_info", ""},
		{http.MethodPost, "/predict", metricsBody(t, nil)},
	} {
		rec := f.do(tc.method, tc.path, tc.body)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", tc.path, rec.Code)
		}
		if !strings.HasPrefix(decodeDetail(t, rec), "Model not loaded") {
			t.Fatalf("%s: unexpected detail %q", tc.path, rec.Body.String())
		}
	}
}

func TestHealthAndModelInfo(t *testing.T) {
	f := newFixture(t, config.ServerConfig{})
	f.load(t)

	rec := f.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health models.HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "healthy" || !health.ModelLoaded || len(health.ModelClasses) != 3 {
		t.Fatalf("unexpected health: %+v", health)
	}

	rec = f.do(http.MethodGet, "/model_info", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var info models.ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode model info: %v", err)
	}
	if info.ModelType != "CatBoostClassifier" || info.NFeatures != 16 || !info.ModelLoaded {
		t.Fatalf("unexpected model info: %+v", info)
	}
}

func TestPredictEndpoint(t *testing.T) {
	f := newFixture(t, config.ServerConfig{})
	f.load(t)

	rec := f.do(http.MethodPost, "/predict", metricsBody(t, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.PredictionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.PredictedScenario != "oltp_heavy" || result.Status != "success" {
		t.Fatalf("unexpected result: %+v", result)
	}
	total := 0.0
	for _, p := range result.Probabilities {
		total += p
	}
	if math.Abs(total-1) > 1e-6 || len(result.Probabilities) != 3 {
		t.Fatalf("unexpected probabilities: %v", result.Probabilities)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestPredictValidation(t *testing.T) {
	f := newFixture(t, config.ServerConfig{})
	f.load(t)

	cases := map[string]string{
		"missing field":       metricsBody(t, nil, "tps"),
		"fractional counter":  metricsBody(t, map[string]any{"total_commits": 10.5}),
		"numeric config":      metricsBody(t, map[string]any{"active_config": 3}),
		"string measurement":  metricsBody(t, map[string]any{"cpu_time": "fast"}),
		"missing metrics":     `{}`,
		"malformed json":      `{"metrics": `,
		"null required field": metricsBody(t, map[string]any{"io_time": nil}),
	}
	for name, body := range cases {
		rec := f.do(http.MethodPost, "/predict", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d: %s", name, rec.Code, rec.Body.String())
		}
		if detail := decodeDetail(t, rec); !strings.HasPrefix(detail, "invalid request") {
			t.Fatalf("%s: unexpected detail %q", name, detail)
		}
	}
}

func TestPredictValidationDetail(t *testing.T) {
	f := newFixture(t, config.ServerConfig{})
	f.load(t)

	cases := map[string]struct{ body, detail string }{
		"missing field":  {metricsBody(t, nil, "tps"), "invalid request: metrics.tps is required"},
		"numeric config": {metricsBody(t, map[string]any{"active_config": 3}), "invalid request: metrics.active_config must be a string"},
		"empty body":     {"", "invalid request: empty body"},
		"malformed json": {`{"metrics": `, "invalid request: malformed JSON"},
	}
	for name, tc := range cases {
		rec := f.do(http.MethodPost, "/predict", tc.body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", name, rec.Code)
		}
		if detail := decodeDetail(t, rec); detail != tc.detail {
			t.Fatalf("%s: expected %q, got %q", name, tc.detail, detail)
		}
	}
}

func TestPredictAcceptsWholeNumberCounters(t *testing.T) {
	f := newFixture(t, config.ServerConfig{})
	f.load(t)

	for _, raw := range []string{"1000.0", "1e3", "10000"} {
		body := metricsBody(t, map[string]any{"total_commits": json.RawMessage(raw)})
		if rec := f.do(http.MethodPost, "/predict", body); rec.Code != http.StatusOK {
			t.Fatalf("total_commits %s: expected 200, got %d: %s", raw, rec.Code, rec.Body.String())
		}
	}
	for _, raw := range []string{"1000.5", "1e30", `"1000"`} {
		body := metricsBody(t, map[string]any{"total_commits": json.RawMessage(raw)})
		rec := f.do(http.MethodPost, "/predict", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("total_commits %s: expected 422, got %d", raw, rec.Code)
		}
		if detail := decodeDetail(t, rec); !strings.HasPrefix(detail, "invalid request: ") {
			t.Fatalf("total_commits %s: unexpected detail %q", raw, detail)
		}
	}
}

func TestReloadEndpoint(t *testing.T) {
	f := newFixture(t, config.ServerConfig{})

	rec := f.do(http.MethodPost, "/reload_model", "")
	if rec.Code != http.StatusInternalServerError || decodeDetail(t, rec) != msgReloadFailed {
		t.Fatalf("expected reload failure, got %d: %s", rec.Code, rec.Body.String())
	}

	f.load(t)
	rec = f.do(http.MethodPost, "/reload_model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body reloadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode reload: %v", err)
	}
	if body.Status != "success" || body.Message != msgReloaded {
		t.Fatalf("unexpected reload body: %+v", body)
	}

	if err := os.WriteFile(f.artifact, []byte("not a model"), 0o644); err != nil {
		t.Fatalf("corrupt artifact: %v", err)
	}
	rec = f.do(http.MethodPost, "/reload_model", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/predict", metricsBody(t, nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected previous model to keep serving, got %d", rec.Code)
	}
}

type predictorFunc func(ctx context.Context, record *models.MetricsRecord) (models.PredictionResult, error)

func (fn predictorFunc) Predict(ctx context.Context, record *models.MetricsRecord) (models.PredictionResult, error) {
	return fn(ctx, record)
}

func stubRouter(predictor Predictor) *gin.Engine {
	manager := model.NewManager(model.Options{ArtifactPath: "missing.json", MetadataPath: "missing_info.json"}, discardLogger())
	handlers := NewHandlers(discardLogger(), predictor, services.NewIntrospectionService(manager), manager)
	return NewRouter(config.ServerConfig{}, discardLogger(), handlers)
}

func TestPredictInferenceFailure(t *testing.T) {
	router := stubRouter(predictorFunc(func(context.Context, *models.MetricsRecord) (models.PredictionResult, error) {
		return models.PredictionResult{}, &services.InferenceError{Err: errors.New("feature tps missing")}
	}))

	rec := serve(router, http.MethodPost, "/predict", metricsBody(t, nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if detail := decodeDetail(t, rec); detail != "Prediction failed: feature tps missing" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	router := stubRouter(predictorFunc(func(context.Context, *models.MetricsRecord) (models.PredictionResult, error) {
		panic("boom")
	}))

	rec := serve(router, http.MethodPost, "/predict", metricsBody(t, nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if decodeDetail(t, rec) == "" {
		t.Fatalf("expected a detail message")
	}
}

func TestRequestIDPropagates(t *testing.T) {
	f := newFixture(t, config.ServerConfig{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc123")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "abc123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestPprofRoutes(t *testing.T) {
	disabled := newFixture(t, config.ServerConfig{})
	if rec := disabled.do(http.MethodGet, "/debug/pprof/", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected pprof to be disabled, got %d", rec.Code)
	}

	enabled := newFixture(t, config.ServerConfig{Pprof: true})
	if rec := enabled.do(http.MethodGet, "/debug/pprof/", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected pprof index, got %d", rec.Code)
	}
}

func TestCORSOrigins(t *testing.T) {
	f := newFixture(t, config.ServerConfig{AllowedOrigins: []string{"https://dash.example"}})

	req := httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected disallowed origin to be rejected, got %d", rec.Code)
	}
}
