// Package catboosttest builds small CatBoost JSON artifacts over the default
// workload schema for tests and local development.
package catboosttest

import (
	"github.com/miradorstack/workload-classifier/internal/catboost"
	"github.com/miradorstack/workload-classifier/internal/schema"
)

// Classes emitted by the workload model, in output order.
var Classes = []string{"oltp_heavy", "batch_heavy", "idle"}

// ConfigBatchTuned is the active_config value the model splits on.
const ConfigBatchTuned = "batch_tuned"

// Float feature indexes of the split columns within the default schema.
const (
	tpsIndex     = 8
	latencyIndex = 10
)

// WorkloadFile returns a two-tree, three-class model:
//
//	tree 1: tps > 100
//	tree 2: avg_query_latency_ms > 50, active_config == batch_tuned
//
// High tps with low latency scores oltp_heavy, high latency on batch_tuned
// scores batch_heavy and low tps with low latency scores idle.
func WorkloadFile() *catboost.File {
	s, err := schema.Default()
	if err != nil {
		panic(err)
	}

	var info catboost.FeaturesInfo
	floatIdx, catIdx := 0, 0
	for flat, name := range s.FeatureColumns {
		if s.IsCategorical(name) {
			info.CategoricalFeatures = append(info.CategoricalFeatures, catboost.CategoricalFeature{
				FeatureIndex:     catIdx,
				FlatFeatureIndex: flat,
				FeatureID:        name,
			})
			catIdx++
			continue
		}
		ff := catboost.FloatFeature{
			FeatureIndex:      floatIdx,
			FlatFeatureIndex:  flat,
			FeatureID:         name,
			NanValueTreatment: "AsIs",
		}
		switch floatIdx {
		case tpsIndex:
			ff.Borders = []float64{100}
		case latencyIndex:
			ff.Borders = []float64{50}
		}
		info.FloatFeatures = append(info.FloatFeatures, ff)
		floatIdx++
	}

	file := &catboost.File{
		FeaturesInfo: info,
		ObliviousTrees: []catboost.ObliviousTree{
			{
				Splits: []catboost.Split{
					{SplitIndex: 0, SplitType: catboost.SplitFloatFeature, FloatFeatureIndex: tpsIndex, Border: 100},
				},
				LeafValues: []float64{
					-0.5, 0.2, 0.8,
					1.2, -0.3, -0.9,
				},
			},
			{
				Splits: []catboost.Split{
					{SplitIndex: 1, SplitType: catboost.SplitFloatFeature, FloatFeatureIndex: latencyIndex, Border: 50},
					{SplitIndex: 2, SplitType: catboost.SplitOneHotFeature, CatFeatureIndex: 0, Value: int64(int32(catboost.HashCategory(ConfigBatchTuned)))},
				},
				LeafValues: []float64{
					0.3, -0.2, 0.1,
					-0.2, 0.9, -0.4,
					0.0, 0.5, -0.1,
					-0.6, 1.4, -0.5,
				},
			},
		},
		ScaleAndBias: &catboost.ScaleAndBias{Scale: 1, Bias: []float64{0, 0, 0}},
	}
	if err := file.SetClassNames(Classes); err != nil {
		panic(err)
	}
	return file
}

// WorkloadModel returns the encoded WorkloadFile artifact.
func WorkloadModel() []byte {
	data, err := WorkloadFile().Encode()
	if err != nil {
		panic(err)
	}
	return data
}

// WorkloadModelWithoutClasses returns the artifact with model_info removed,
// as produced by exports that do not record class names.
func WorkloadModelWithoutClasses() []byte {
	file := WorkloadFile()
	file.ModelInfo = nil
	data, err := file.Encode()
	if err != nil {
		panic(err)
	}
	return data
}
