package catboost

import (
	"encoding/json"
	"fmt"
)

// Split types understood by the evaluator.
const (
	SplitFloatFeature  = "FloatFeature"
	SplitOneHotFeature = "OneHotFeature"
	SplitOnlineCtr     = "OnlineCtr"
)

// File mirrors the JSON document written by CatBoost's
// save_model(format="json"). Only the sections needed for inference are
// decoded; model_info is kept raw.
type File struct {
	ModelInfo      json.RawMessage `json:"model_info,omitempty"`
	FeaturesInfo   FeaturesInfo    `json:"features_info"`
	ObliviousTrees []ObliviousTree `json:"oblivious_trees"`
	ScaleAndBias   *ScaleAndBias   `json:"scale_and_bias,omitempty"`
	CtrData        json.RawMessage `json:"ctr_data,omitempty"`
}

// FeaturesInfo lists the model inputs.
type FeaturesInfo struct {
	FloatFeatures       []FloatFeature       `json:"float_features,omitempty"`
	CategoricalFeatures []CategoricalFeature `json:"categorical_features,omitempty"`
}

// FloatFeature is a numeric model input.
type FloatFeature struct {
	FeatureIndex      int       `json:"feature_index"`
	FlatFeatureIndex  int       `json:"flat_feature_index"`
	FeatureID         string    `json:"feature_id,omitempty"`
	Borders           []float64 `json:"borders,omitempty"`
	HasNans           bool      `json:"has_nans,omitempty"`
	NanValueTreatment string    `json:"nan_value_treatment,omitempty"`
}

// CategoricalFeature is a categorical model input.
type CategoricalFeature struct {
	FeatureIndex     int    `json:"feature_index"`
	FlatFeatureIndex int    `json:"flat_feature_index"`
	FeatureID        string `json:"feature_id,omitempty"`
}

// ObliviousTree is a symmetric tree: every level shares one split.
type ObliviousTree struct {
	LeafValues  []float64 `json:"leaf_values"`
	LeafWeights []float64 `json:"leaf_weights,omitempty"`
	Splits      []Split   `json:"splits"`
}

// Split is one tree level condition.
type Split struct {
	SplitIndex        int     `json:"split_index"`
	SplitType         string  `json:"split_type"`
	FloatFeatureIndex int     `json:"float_feature_index,omitempty"`
	Border            float64 `json:"border,omitempty"`
	CatFeatureIndex   int     `json:"cat_feature_index,omitempty"`
	Value             int64   `json:"value,omitempty"`
}

// ScaleAndBias is encoded as [scale, bias] where bias is either a number or
// one number per output dimension.
type ScaleAndBias struct {
	Scale float64
	Bias  []float64
}

// MarshalJSON implements json.Marshaler.
func (s ScaleAndBias) MarshalJSON() ([]byte, error) {
	bias := s.Bias
	if bias == nil {
		bias = []float64{}
	}
	return json.Marshal([]any{s.Scale, bias})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ScaleAndBias) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("scale_and_bias: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("scale_and_bias: expected 2 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &s.Scale); err != nil {
		return fmt.Errorf("scale_and_bias scale: %w", err)
	}
	var single float64
	if err := json.Unmarshal(parts[1], &single); err == nil {
		s.Bias = []float64{single}
		return nil
	}
	if err := json.Unmarshal(parts[1], &s.Bias); err != nil {
		return fmt.Errorf("scale_and_bias bias: %w", err)
	}
	return nil
}

// SetClassNames writes class_params.class_names into model_info.
func (f *File) SetClassNames(names []string) error {
	info := map[string]any{
		"class_params": map[string]any{
			"class_label_type": "String",
			"class_names":      names,
		},
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	f.ModelInfo = raw
	return nil
}

// Encode serialises the file with the indentation CatBoost uses.
func (f *File) Encode() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}
