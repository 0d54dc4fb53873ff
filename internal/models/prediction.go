package models

import "time"

// StatusSuccess is the status reported by successful predictions.
const StatusSuccess = "success"

// PredictionResult is the shaped classifier output.
type PredictionResult struct {
	PredictedScenario string             `json:"predicted_scenario"`
	Confidence        float64            `json:"confidence"`
	Probabilities     map[string]float64 `json:"probabilities"`
	Status            string             `json:"status"`
}

// HealthStatus is returned by GET /health while a model is loaded.
type HealthStatus struct {
	Status       string   `json:"status"`
	ModelLoaded  bool     `json:"model_loaded"`
	ModelClasses []string `json:"model_classes"`
}

// ServiceStatus is the root banner.
type ServiceStatus struct {
	Message     string `json:"message"`
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ModelInfo describes the loaded model and its feature schema.
type ModelInfo struct {
	ModelType           string    `json:"model_type"`
	FeatureColumns      []string  `json:"feature_columns"`
	CategoricalFeatures []string  `json:"categorical_features"`
	NFeatures           int       `json:"n_features"`
	Classes             []string  `json:"classes"`
	ModelLoaded         bool      `json:"model_loaded"`
	Generation          uint64    `json:"generation"`
	Fingerprint         string    `json:"fingerprint"`
	LoadedAt            time.Time `json:"loaded_at"`
	ArtifactPath        string    `json:"artifact_path"`
}

// Metadata is the sidecar file stored next to the classifier artifact.
type Metadata struct {
	FeatureColumns      []string `json:"feature_columns"`
	CategoricalFeatures []string `json:"categorical_features"`
	ClassNames          []string `json:"class_names"`
}
