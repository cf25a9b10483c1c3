package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"taskdeps/application/ports"
)

// DefaultLimits apply when no limits file is configured or until the
// first successful load.
var DefaultLimits = ports.Limits{
	MaxEdgesPerProject: 5000,
	MaxEdgesPerTask:    100,
}

// StaticLimits is the LimitsProvider used when no limits file is
// configured.
type StaticLimits struct {
	limits ports.Limits
}

func NewStaticLimits(limits ports.Limits) *StaticLimits {
	return &StaticLimits{limits: limits}
}

func (s *StaticLimits) Limits() ports.Limits {
	return s.limits
}

// limitsFile is the on-disk YAML shape of the runtime limits.
type limitsFile struct {
	Limits struct {
		MaxEdgesPerProject int `yaml:"maxEdgesPerProject"`
		MaxEdgesPerTask    int `yaml:"maxEdgesPerTask"`
	} `yaml:"limits"`
}

// LimitsWatcher reloads the edge limits whenever the file changes, so
// operators can tune them without a restart. A broken or invalid file
// keeps the current limits.
type LimitsWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	current ports.Limits
	mu      sync.RWMutex
	logger  *zap.Logger
	stopCh  chan struct{}
}

// NewLimitsWatcher loads the initial limits and prepares the file watcher.
func NewLimitsWatcher(path string, logger *zap.Logger) (*LimitsWatcher, error) {
	limits, err := loadLimitsFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial limits: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch limits file: %w", err)
	}

	// Also watch the directory for atomic saves (rename operations)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("Failed to watch limits directory", zap.Error(err))
	}

	return &LimitsWatcher{
		path:    path,
		watcher: watcher,
		current: limits,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Limits returns the most recently loaded limits.
func (w *LimitsWatcher) Limits() ports.Limits {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching for limits changes
func (w *LimitsWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Limits watcher started", zap.String("path", w.path))
}

// Stop stops watching for limits changes
func (w *LimitsWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.logger.Info("Limits watcher stopped")
}

func (w *LimitsWatcher) watchLoop() {
	// Debounce to avoid reloading mid-save
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					w.reload()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *LimitsWatcher) reload() {
	newLimits, err := loadLimitsFromFile(w.path)
	if err != nil {
		w.logger.Error("Failed to reload limits, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = newLimits
	w.mu.Unlock()

	if old != newLimits {
		w.logger.Info("Limits reloaded",
			zap.Int("maxEdgesPerProject", newLimits.MaxEdgesPerProject),
			zap.Int("maxEdgesPerTask", newLimits.MaxEdgesPerTask),
		)
	}
}

func loadLimitsFromFile(path string) (ports.Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ports.Limits{}, err
	}

	var file limitsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return ports.Limits{}, fmt.Errorf("failed to parse limits file: %w", err)
	}

	limits := ports.Limits{
		MaxEdgesPerProject: file.Limits.MaxEdgesPerProject,
		MaxEdgesPerTask:    file.Limits.MaxEdgesPerTask,
	}
	if err := validateLimits(limits); err != nil {
		return ports.Limits{}, err
	}
	return limits, nil
}

func validateLimits(limits ports.Limits) error {
	if limits.MaxEdgesPerProject < 0 {
		return fmt.Errorf("maxEdgesPerProject cannot be negative")
	}
	if limits.MaxEdgesPerTask < 0 {
		return fmt.Errorf("maxEdgesPerTask cannot be negative")
	}
	return nil
}
