package services

import (
	"github.com/miradorstack/workload-classifier/internal/models"
)

// BannerMessage is reported by the root endpoint.
const BannerMessage = "Database Load Scenario Classification API"

// IntrospectionService reports service health and model metadata.
type IntrospectionService struct {
	states StateSource
}

// NewIntrospectionService constructs the read-only introspection facade.
func NewIntrospectionService(states StateSource) *IntrospectionService {
	return &IntrospectionService{states: states}
}

// Status reports that the service is running and whether a model is loaded.
func (s *IntrospectionService) Status() models.ServiceStatus {
	return models.ServiceStatus{
		Message:     BannerMessage,
		Status:      "running",
		ModelLoaded: s.states.Current() != nil,
	}
}

// Health returns the loaded classes, or ErrModelUnavailable.
func (s *IntrospectionService) Health() (models.HealthStatus, error) {
	state := s.states.Current()
	if state == nil {
		return models.HealthStatus{}, ErrModelUnavailable
	}
	return models.HealthStatus{
		Status:       "healthy",
		ModelLoaded:  true,
		ModelClasses: append([]string{}, state.ClassNames...),
	}, nil
}

// ModelInfo describes the loaded model, or returns ErrModelUnavailable.
func (s *IntrospectionService) ModelInfo() (models.ModelInfo, error) {
	state := s.states.Current()
	if state == nil {
		return models.ModelInfo{}, ErrModelUnavailable
	}
	return models.ModelInfo{
		ModelType:           state.ModelType,
		FeatureColumns:      append([]string{}, state.FeatureNames...),
		CategoricalFeatures: append([]string{}, state.CategoricalFeatures...),
		NFeatures:           len(state.FeatureNames),
		Classes:             append([]string{}, state.ClassNames...),
		ModelLoaded:         true,
		Generation:          state.Generation,
		Fingerprint:         state.Fingerprint,
		LoadedAt:            state.LoadedAt,
		ArtifactPath:        state.ArtifactPath,
	}, nil
}
