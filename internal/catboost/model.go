// Package catboost evaluates CatBoost classifiers exported with
// save_model(format="json").
package catboost

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/go-faster/city"
	"github.com/tidwall/gjson"

	"github.com/miradorstack/workload-classifier/internal/frame"
)

// ModelType is the tag reported to clients for models served by this package.
const ModelType = "CatBoostClassifier"

// maxDepth bounds tree depth; CatBoost itself does not train deeper than 16.
const maxDepth = 16

// ErrUnsupported marks artifacts that use features the evaluator does not implement.
var ErrUnsupported = errors.New("unsupported catboost model")

var classNamePaths = []string{
	"model_info.class_params.class_names",
	"model_info.params.data_processing_options.class_names",
}

type splitKind int

const (
	splitFloat splitKind = iota
	splitOneHot
)

type condition struct {
	kind    splitKind
	feature int
	border  float64
	hash    uint32
}

type tree struct {
	conds  []condition
	leaves []float64
}

type floatInput struct {
	flat      int
	id        string
	nanAsTrue bool
}

type catInput struct {
	flat int
	id   string
}

// Model is a compiled oblivious-tree ensemble. It is immutable and safe for
// concurrent use.
type Model struct {
	floats    []floatInput
	cats      []catInput
	trees     []tree
	dimension int
	scale     float64
	bias      []float64
	classes   []string
}

// Parse compiles a JSON model document.
func Parse(data []byte) (*Model, error) {
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catboost json: %w", err)
	}
	m, err := compile(&file)
	if err != nil {
		return nil, err
	}
	m.classes = classNames(data)
	if err := m.checkClasses(); err != nil {
		return nil, err
	}
	return m, nil
}

func classNames(data []byte) []string {
	for _, path := range classNamePaths {
		res := gjson.GetBytes(data, path)
		if !res.IsArray() {
			continue
		}
		items := res.Array()
		names := make([]string, 0, len(items))
		for _, item := range items {
			names = append(names, item.String())
		}
		return names
	}
	return nil
}

func compile(file *File) (*Model, error) {
	if len(file.CtrData) > 0 && string(file.CtrData) != "null" && string(file.CtrData) != "{}" {
		return nil, fmt.Errorf("%w: ctr_data present; train with one_hot_max_size at least the number of distinct categorical values", ErrUnsupported)
	}
	if len(file.ObliviousTrees) == 0 {
		return nil, errors.New("catboost model has no trees")
	}

	m := &Model{scale: 1}
	for i, ff := range file.FeaturesInfo.FloatFeatures {
		if ff.FeatureIndex != i {
			return nil, fmt.Errorf("float feature %d has feature_index %d", i, ff.FeatureIndex)
		}
		m.floats = append(m.floats, floatInput{
			flat:      ff.FlatFeatureIndex,
			id:        ff.FeatureID,
			nanAsTrue: ff.NanValueTreatment == "AsTrue",
		})
	}
	for i, cf := range file.FeaturesInfo.CategoricalFeatures {
		if cf.FeatureIndex != i {
			return nil, fmt.Errorf("categorical feature %d has feature_index %d", i, cf.FeatureIndex)
		}
		m.cats = append(m.cats, catInput{flat: cf.FlatFeatureIndex, id: cf.FeatureID})
	}

	for ti, ot := range file.ObliviousTrees {
		depth := len(ot.Splits)
		if depth > maxDepth {
			return nil, fmt.Errorf("tree %d: depth %d exceeds %d", ti, depth, maxDepth)
		}
		leaves := 1 << depth
		if len(ot.LeafValues) == 0 || len(ot.LeafValues)%leaves != 0 {
			return nil, fmt.Errorf("tree %d: %d leaf values do not fit %d leaves", ti, len(ot.LeafValues), leaves)
		}
		dim := len(ot.LeafValues) / leaves
		if m.dimension == 0 {
			m.dimension = dim
		} else if dim != m.dimension {
			return nil, fmt.Errorf("tree %d: dimension %d differs from %d", ti, dim, m.dimension)
		}

		t := tree{leaves: append([]float64(nil), ot.LeafValues...)}
		for si, sp := range ot.Splits {
			cond, err := m.compileSplit(sp)
			if err != nil {
				return nil, fmt.Errorf("tree %d split %d: %w", ti, si, err)
			}
			t.conds = append(t.conds, cond)
		}
		m.trees = append(m.trees, t)
	}

	if sb := file.ScaleAndBias; sb != nil {
		m.scale = sb.Scale
		m.bias = append([]float64(nil), sb.Bias...)
	}
	switch len(m.bias) {
	case 0:
		m.bias = make([]float64, m.dimension)
	case 1:
		if m.dimension > 1 {
			b := m.bias[0]
			m.bias = make([]float64, m.dimension)
			for i := range m.bias {
				m.bias[i] = b
			}
		}
	default:
		if len(m.bias) != m.dimension {
			return nil, fmt.Errorf("bias has %d values for dimension %d", len(m.bias), m.dimension)
		}
	}
	return m, nil
}

func (m *Model) compileSplit(sp Split) (condition, error) {
	switch sp.SplitType {
	case SplitFloatFeature:
		if sp.FloatFeatureIndex < 0 || sp.FloatFeatureIndex >= len(m.floats) {
			return condition{}, fmt.Errorf("float feature index %d out of range", sp.FloatFeatureIndex)
		}
		return condition{kind: splitFloat, feature: sp.FloatFeatureIndex, border: sp.Border}, nil
	case SplitOneHotFeature:
		if sp.CatFeatureIndex < 0 || sp.CatFeatureIndex >= len(m.cats) {
			return condition{}, fmt.Errorf("categorical feature index %d out of range", sp.CatFeatureIndex)
		}
		return condition{kind: splitOneHot, feature: sp.CatFeatureIndex, hash: uint32(sp.Value)}, nil
	case SplitOnlineCtr:
		return condition{}, fmt.Errorf("%w: split type %s", ErrUnsupported, sp.SplitType)
	default:
		return condition{}, fmt.Errorf("%w: split type %q", ErrUnsupported, sp.SplitType)
	}
}

func (m *Model) checkClasses() error {
	n := len(m.classes)
	if n == 0 {
		return nil
	}
	if m.dimension == 1 && n != 2 {
		return fmt.Errorf("binary model lists %d class names", n)
	}
	if m.dimension > 1 && n != m.dimension {
		return fmt.Errorf("model has dimension %d but lists %d class names", m.dimension, n)
	}
	return nil
}

// HashCategory returns the value CatBoost stores for a one-hot category: the
// low 32 bits of CityHash64 (v1.0.2) of the label.
func HashCategory(label string) uint32 {
	return uint32(city.CH64([]byte(label)))
}

// Classes returns the class labels recorded in the artifact, or nil.
func (m *Model) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Dimension returns the number of raw outputs per prediction.
func (m *Model) Dimension() int { return m.dimension }

// TreeCount returns the number of trees in the ensemble.
func (m *Model) TreeCount() int { return len(m.trees) }

// RawFormulaVal returns scale*sum(leaves)+bias for each output dimension.
func (m *Model) RawFormulaVal(f frame.Frame) ([]float64, error) {
	floats := make([]float64, len(m.floats))
	for i, in := range m.floats {
		col, err := column(f, in.flat, in.id, frame.Numeric)
		if err != nil {
			return nil, err
		}
		floats[i] = col.Num
	}
	hashes := make([]uint32, len(m.cats))
	for i, in := range m.cats {
		col, err := column(f, in.flat, in.id, frame.Categorical)
		if err != nil {
			return nil, err
		}
		hashes[i] = HashCategory(col.Cat)
	}

	sum := make([]float64, m.dimension)
	for _, t := range m.trees {
		idx := 0
		for level, c := range t.conds {
			if m.holds(c, floats, hashes) {
				idx |= 1 << level
			}
		}
		leaf := t.leaves[idx*m.dimension : (idx+1)*m.dimension]
		for d, v := range leaf {
			sum[d] += v
		}
	}
	for d := range sum {
		sum[d] = m.scale*sum[d] + m.bias[d]
	}
	return sum, nil
}

func (m *Model) holds(c condition, floats []float64, hashes []uint32) bool {
	if c.kind == splitOneHot {
		return hashes[c.feature] == c.hash
	}
	v := floats[c.feature]
	if math.IsNaN(v) {
		return m.floats[c.feature].nanAsTrue
	}
	return v > c.border
}

func column(f frame.Frame, flat int, id string, kind frame.Kind) (frame.Column, error) {
	if flat < 0 || flat >= f.Len() {
		return frame.Column{}, fmt.Errorf("model expects feature at position %d, frame has %d columns", flat, f.Len())
	}
	col := f.Columns[flat]
	if id != "" && col.Name != id {
		return frame.Column{}, fmt.Errorf("feature at position %d is %q, model expects %q", flat, col.Name, id)
	}
	if col.Kind != kind {
		return frame.Column{}, fmt.Errorf("feature %q is %s, model expects %s", col.Name, col.Kind, kind)
	}
	return col, nil
}

// PredictProba returns one probability per class.
func (m *Model) PredictProba(f frame.Frame) ([]float64, error) {
	raw, err := m.RawFormulaVal(f)
	if err != nil {
		return nil, err
	}
	if m.dimension == 1 {
		p := sigmoid(raw[0])
		return []float64{1 - p, p}, nil
	}
	return softmax(raw), nil
}

// Predict returns the label of the most probable class.
func (m *Model) Predict(f frame.Frame) (string, error) {
	probs, err := m.PredictProba(f)
	if err != nil {
		return "", err
	}
	best := argmax(probs)
	if best < len(m.classes) {
		return m.classes[best], nil
	}
	return strconv.Itoa(best), nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func softmax(raw []float64) []float64 {
	maxVal := raw[0]
	for _, v := range raw[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	out := make([]float64, len(raw))
	total := 0.0
	for i, v := range raw {
		out[i] = math.Exp(v - maxVal)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
