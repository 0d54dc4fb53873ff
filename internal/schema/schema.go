package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSchemaYAML []byte

// Schema describes the ordered feature columns a classifier expects and the
// subset of them that must be treated as categorical.
type Schema struct {
	FeatureColumns      []string `yaml:"feature_columns" json:"feature_columns"`
	CategoricalFeatures []string `yaml:"categorical_features" json:"categorical_features"`
}

var (
	defaultOnce   sync.Once
	defaultSchema Schema
	defaultErr    error
)

// Default returns a copy of the embedded schema. It is the single source of
// truth for feature layout whenever no sidecar metadata is available.
func Default() (Schema, error) {
	defaultOnce.Do(func() {
		defaultSchema, defaultErr = Parse(defaultSchemaYAML)
	})
	if defaultErr != nil {
		return Schema{}, defaultErr
	}
	return defaultSchema.Clone(), nil
}

// Parse decodes a YAML schema document and validates it.
func Parse(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Validate checks that the schema has columns, no duplicates, and that every
// categorical feature is one of the columns.
func (s Schema) Validate() error {
	if len(s.FeatureColumns) == 0 {
		return errors.New("schema has no feature columns")
	}
	seen := make(map[string]struct{}, len(s.FeatureColumns))
	for _, name := range s.FeatureColumns {
		if name == "" {
			return errors.New("schema contains an empty feature name")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate feature column %q", name)
		}
		seen[name] = struct{}{}
	}
	for _, name := range s.CategoricalFeatures {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("categorical feature %q is not a feature column", name)
		}
	}
	return nil
}

// IsCategorical reports whether name is in the categorical subset.
func (s Schema) IsCategorical(name string) bool {
	for _, c := range s.CategoricalFeatures {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (s Schema) Clone() Schema {
	return Schema{
		FeatureColumns:      append([]string(nil), s.FeatureColumns...),
		CategoricalFeatures: append([]string(nil), s.CategoricalFeatures...),
	}
}
