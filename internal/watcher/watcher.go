package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mgomes/resumefind/internal/models"
	"go.uber.org/zap"
)

const (
	defaultDebounce = 2 * time.Second
	tickInterval    = 500 * time.Millisecond
)

// BatchFunc receives absolute paths of resumes that have settled.
type BatchFunc func(paths []string)

// Watcher collects new or rewritten resumes in an inbox directory and hands
// them over in batches once they stop changing.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	pending  map[string]time.Time
	mu       sync.Mutex
	debounce time.Duration
	onBatch  BatchFunc
	logger   *zap.Logger
}

func New(dir string, onBatch BatchFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		dir:      dir,
		watcher:  fsw,
		pending:  make(map[string]time.Time),
		debounce: defaultDebounce,
		onBatch:  onBatch,
		logger:   logger,
	}, nil
}

func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start watches until ctx is done. Only the top level of dir is watched.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close() //nolint:errcheck

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching inbox", zap.String("dir", w.dir))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, time.Now())
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, now time.Time) {
	name := filepath.Base(event.Name)
	if isHidden(name) || !models.IsResumeFile(name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write,
		event.Op&fsnotify.Create == fsnotify.Create:
		w.pending[event.Name] = now
		w.logger.Debug("detected resume", zap.String("path", event.Name))

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		delete(w.pending, event.Name)
	}
}

// ready removes and returns the paths that have been quiet for the debounce window.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.debounce {
			out = append(out, path)
		}
	}
	for _, path := range out {
		delete(w.pending, path)
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) flush(now time.Time) {
	paths := w.ready(now)
	if len(paths) == 0 || w.onBatch == nil {
		return
	}
	w.logger.Info("resume batch ready", zap.Int("files", len(paths)))
	w.onBatch(paths)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
