// Package model owns the loaded classifier and the feature schema that goes
// with it.
package model

import (
	"time"

	"github.com/miradorstack/workload-classifier/internal/catboost"
	"github.com/miradorstack/workload-classifier/internal/frame"
)

// Classifier is the inference handle held by a State.
type Classifier interface {
	Predict(f frame.Frame) (string, error)
	PredictProba(f frame.Frame) ([]float64, error)
	Classes() []string
}

// ParseFunc compiles artifact bytes into a Classifier.
type ParseFunc func(data []byte) (Classifier, error)

// ParseCatBoost is the default ParseFunc.
func ParseCatBoost(data []byte) (Classifier, error) {
	m, err := catboost.Parse(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// State is an immutable snapshot of a successful load. Callers must not
// modify its slices.
type State struct {
	Classifier          Classifier
	FeatureNames        []string
	CategoricalFeatures []string
	ClassNames          []string

	ModelType    string
	Generation   uint64
	Fingerprint  string
	LoadedAt     time.Time
	ArtifactPath string
	// Derived is true when the metadata came from the default schema rather
	// than an existing sidecar file.
	Derived bool
}
