// Package watch reloads the model when its artifact changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Reloader is satisfied by model.Manager.
type Reloader interface {
	Reload() error
}

// Watcher triggers Reload after the artifact file is written or replaced.
// Bursts of events within the debounce window collapse into one reload.
type Watcher struct {
	path     string
	debounce time.Duration
	reloader Reloader
	logger   *slog.Logger
	fs       *fsnotify.Watcher
}

// New watches the directory holding path. The directory must exist.
func New(path string, debounce time.Duration, reloader Reloader, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		reloader: reloader,
		logger:   logger,
		fs:       fsw,
	}, nil
}

// Run processes events until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("watching model artifact", slog.String("path", w.path), slog.Duration("debounce", w.debounce))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.logger.Debug("model artifact changed", slog.String("op", event.Op.String()))
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("model watcher error", slog.Any("error", err))
		case <-timer.C:
			if err := w.reloader.Reload(); err != nil {
				w.logger.Warn("reload after artifact change failed", slog.Any("error", err))
				continue
			}
			w.logger.Info("model reloaded after artifact change", slog.String("path", w.path))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
