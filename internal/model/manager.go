package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/miradorstack/workload-classifier/internal/catboost"
	"github.com/miradorstack/workload-classifier/internal/metrics"
	"github.com/miradorstack/workload-classifier/internal/models"
	"github.com/miradorstack/workload-classifier/internal/schema"
	"github.com/miradorstack/workload-classifier/internal/utils"
)

// Options locate the artifact and its sidecar metadata.
type Options struct {
	ArtifactPath string
	MetadataPath string
	// ModelType is reported by introspection; defaults to CatBoostClassifier.
	ModelType string
	Parse     ParseFunc
}

// Manager loads classifier state and hands out snapshots to readers. Loads are
// serialized; readers never block.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	generation uint64
	current    atomic.Pointer[State]

	listenersMu sync.RWMutex
	listeners   []func(*State)
}

// NewManager constructs a Manager. Nothing is loaded until Load is called.
func NewManager(opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ModelType == "" {
		opts.ModelType = catboost.ModelType
	}
	if opts.Parse == nil {
		opts.Parse = ParseCatBoost
	}
	return &Manager{opts: opts, logger: logger}
}

// Current returns the active snapshot, or nil if no load has succeeded.
func (m *Manager) Current() *State {
	return m.current.Load()
}

// Subscribe registers fn to be called after every successful swap.
func (m *Manager) Subscribe(fn func(*State)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Load reads the artifact and metadata and swaps in a new snapshot. On
// failure the error is logged and returned and the previous snapshot stays.
func (m *Manager) Load() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = utils.PanicError("model.load", r)
		}
		if err != nil {
			metrics.ObserveModelLoad(time.Since(start), metrics.OutcomeError)
			m.logger.Error("error loading model",
				slog.String("artifact", m.opts.ArtifactPath),
				slog.String("metadata", m.opts.MetadataPath),
				slog.Any("error", err))
		}
	}()

	state, err := m.build()
	if err != nil {
		return err
	}

	m.generation = state.Generation
	m.current.Store(state)
	metrics.ObserveModelLoad(time.Since(start), metrics.OutcomeSuccess)
	metrics.SetModelState(true, state.Generation)
	m.logger.Info("model loaded",
		slog.Uint64("generation", state.Generation),
		slog.String("fingerprint", state.Fingerprint),
		slog.Int("features", len(state.FeatureNames)),
		slog.Any("classes", state.ClassNames),
		slog.Bool("derived_metadata", state.Derived))

	m.notify(state)
	return nil
}

// Reload re-runs Load.
func (m *Manager) Reload() error {
	return m.Load()
}

// notify runs listeners after the swap. A panicking listener is logged and
// does not turn the completed load into a failure.
func (m *Manager) notify(state *State) {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	for _, fn := range m.listeners {
		m.callListener(fn, state)
	}
}

func (m *Manager) callListener(fn func(*State), state *State) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("model listener panicked",
				slog.Uint64("generation", state.Generation),
				slog.Any("error", utils.PanicError("model.notify", r)))
		}
	}()
	fn(state)
}

func (m *Manager) build() (*State, error) {
	artifact, err := os.ReadFile(m.opts.ArtifactPath)
	if err != nil {
		return nil, utils.NewAppError("model.load", "read artifact", err)
	}
	clf, err := m.opts.Parse(artifact)
	if err != nil {
		return nil, utils.NewAppError("model.load", "parse artifact", err)
	}

	meta, raw, derived, err := m.metadata(clf)
	if err != nil {
		return nil, err
	}

	digest := xxhash.New()
	_, _ = digest.Write(artifact)
	_, _ = digest.Write([]byte{0})
	_, _ = digest.Write(raw)

	return &State{
		Classifier:          clf,
		FeatureNames:        meta.FeatureColumns,
		CategoricalFeatures: meta.CategoricalFeatures,
		ClassNames:          meta.ClassNames,
		ModelType:           m.opts.ModelType,
		Generation:          m.generation + 1,
		Fingerprint:         fmt.Sprintf("%016x", digest.Sum64()),
		LoadedAt:            time.Now().UTC(),
		ArtifactPath:        m.opts.ArtifactPath,
		Derived:             derived,
	}, nil
}

// metadata returns the sidecar contents, deriving and persisting them from
// the default schema when the file does not exist.
func (m *Manager) metadata(clf Classifier) (models.Metadata, []byte, bool, error) {
	raw, err := os.ReadFile(m.opts.MetadataPath)
	if err == nil {
		meta, err := DecodeMetadata(raw)
		if err != nil {
			return models.Metadata{}, nil, false, utils.NewAppError("model.load", "decode metadata", err)
		}
		return meta, raw, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return models.Metadata{}, nil, false, utils.NewAppError("model.load", "read metadata", err)
	}

	def, err := schema.Default()
	if err != nil {
		return models.Metadata{}, nil, false, utils.NewAppError("model.load", "default schema", err)
	}
	classes := clf.Classes()
	if classes == nil {
		classes = []string{}
	}
	meta := models.Metadata{
		FeatureColumns:      def.FeatureColumns,
		CategoricalFeatures: def.CategoricalFeatures,
		ClassNames:          classes,
	}
	raw, err = EncodeMetadata(meta)
	if err != nil {
		return models.Metadata{}, nil, false, utils.NewAppError("model.load", "encode metadata", err)
	}
	if err := writeFileAtomic(m.opts.MetadataPath, raw); err != nil {
		return models.Metadata{}, nil, false, utils.NewAppError("model.load", "write metadata", err)
	}
	m.logger.Info("derived model metadata from default schema", slog.String("path", m.opts.MetadataPath))
	return meta, raw, true, nil
}

// DecodeMetadata parses and validates a sidecar document.
func DecodeMetadata(data []byte) (models.Metadata, error) {
	var doc struct {
		FeatureColumns      []string  `json:"feature_columns"`
		CategoricalFeatures []string  `json:"categorical_features"`
		ClassNames          *[]string `json:"class_names"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Metadata{}, err
	}
	if doc.ClassNames == nil {
		return models.Metadata{}, errors.New("class_names missing")
	}
	s := schema.Schema{FeatureColumns: doc.FeatureColumns, CategoricalFeatures: doc.CategoricalFeatures}
	if err := s.Validate(); err != nil {
		return models.Metadata{}, err
	}
	categorical := doc.CategoricalFeatures
	if categorical == nil {
		categorical = []string{}
	}
	return models.Metadata{
		FeatureColumns:      doc.FeatureColumns,
		CategoricalFeatures: categorical,
		ClassNames:          *doc.ClassNames,
	}, nil
}

// EncodeMetadata renders a sidecar document.
func EncodeMetadata(meta models.Metadata) ([]byte, error) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
