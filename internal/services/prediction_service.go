package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/workload-classifier/internal/cache"
	"github.com/miradorstack/workload-classifier/internal/frame"
	"github.com/miradorstack/workload-classifier/internal/metrics"
	"github.com/miradorstack/workload-classifier/internal/model"
	"github.com/miradorstack/workload-classifier/internal/models"
	"github.com/miradorstack/workload-classifier/internal/utils"
)

// StateSource hands out the current model snapshot.
type StateSource interface {
	Current() *model.State
}

// PredictionService validates records against the loaded schema and runs
// the classifier.
type PredictionService struct {
	logger   *slog.Logger
	states   StateSource
	cache    cache.Provider
	cacheTTL time.Duration
}

// NewPredictionService constructs the prediction facade. A nil cache
// disables result caching.
func NewPredictionService(logger *slog.Logger, states StateSource, cacheProvider cache.Provider, cacheTTL time.Duration) *PredictionService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &PredictionService{
		logger:   logger,
		states:   states,
		cache:    cacheProvider,
		cacheTTL: cacheTTL,
	}
}

// Predict classifies one metrics record using the snapshot current at entry.
func (s *PredictionService) Predict(ctx context.Context, record *models.MetricsRecord) (models.PredictionResult, error) {
	start := time.Now()
	state := s.states.Current()
	if state == nil {
		metrics.ObservePrediction(time.Since(start), metrics.OutcomeUnavailable)
		return models.PredictionResult{}, ErrModelUnavailable
	}

	result, cached, err := s.predict(ctx, state, record)
	if err != nil {
		metrics.ObservePrediction(time.Since(start), metrics.OutcomeError)
		s.logger.Error("prediction error", slog.Uint64("generation", state.Generation), slog.Any("error", err))
		return models.PredictionResult{}, &InferenceError{Err: err}
	}

	metrics.ObservePrediction(time.Since(start), metrics.OutcomeSuccess)
	metrics.ObserveScenario(result.PredictedScenario)
	s.logger.Info("prediction",
		slog.String("scenario", result.PredictedScenario),
		slog.String("confidence", fmt.Sprintf("%.4f", result.Confidence)),
		slog.Bool("cached", cached))
	return result, nil
}

func (s *PredictionService) predict(ctx context.Context, state *model.State, record *models.MetricsRecord) (result models.PredictionResult, cached bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = utils.PanicError("predict", r)
		}
	}()

	f, err := frame.Build(record.Values(), state.FeatureNames, state.CategoricalFeatures)
	if err != nil {
		return models.PredictionResult{}, false, err
	}

	key := cacheKey(state.Fingerprint, f)
	if hit, ok := s.lookup(ctx, key); ok {
		return hit, true, nil
	}

	label, err := state.Classifier.Predict(f)
	if err != nil {
		return models.PredictionResult{}, false, err
	}
	probs, err := state.Classifier.PredictProba(f)
	if err != nil {
		return models.PredictionResult{}, false, err
	}
	result, err = shape(label, probs, state.ClassNames)
	if err != nil {
		return models.PredictionResult{}, false, err
	}

	s.store(ctx, key, result)
	return result, false, nil
}

// shape maps probabilities positionally onto class names.
func shape(label string, probs []float64, classNames []string) (models.PredictionResult, error) {
	if len(probs) == 0 {
		return models.PredictionResult{}, errors.New("classifier returned no probabilities")
	}
	if len(classNames) > len(probs) {
		return models.PredictionResult{}, fmt.Errorf("%d class names for %d probabilities", len(classNames), len(probs))
	}

	confidence := probs[0]
	for _, p := range probs[1:] {
		if p > confidence {
			confidence = p
		}
	}
	mapping := make(map[string]float64, len(classNames))
	for i, name := range classNames {
		mapping[name] = probs[i]
	}
	return models.PredictionResult{
		PredictedScenario: label,
		Confidence:        confidence,
		Probabilities:     mapping,
		Status:            models.StatusSuccess,
	}, nil
}

func cacheKey(fingerprint string, f frame.Frame) string {
	return fmt.Sprintf("predict:%s:%016x", fingerprint, f.Fingerprint())
}

func (s *PredictionService) lookup(ctx context.Context, key string) (models.PredictionResult, bool) {
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("prediction cache read failed", slog.Any("error", err))
		}
		metrics.ObserveCache(false)
		return models.PredictionResult{}, false
	}

	var result models.PredictionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		s.logger.Warn("dropping undecodable cache entry", slog.String("key", key), slog.Any("error", err))
		if delErr := s.cache.Del(ctx, key); delErr != nil {
			s.logger.Warn("prediction cache delete failed", slog.Any("error", delErr))
		}
		metrics.ObserveCache(false)
		return models.PredictionResult{}, false
	}
	metrics.ObserveCache(true)
	return result, true
}

func (s *PredictionService) store(ctx context.Context, key string, result models.PredictionResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("encode prediction for cache", slog.Any("error", err))
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		s.logger.Warn("prediction cache write failed", slog.Any("error", err))
	}
}
