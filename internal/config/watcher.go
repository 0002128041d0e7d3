package config

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls the YAML limits file for changes and drives a hot reload.
// Unlike a generic "call this closure on change" poller, it is typed
// directly to LimitsConfig.Reload's signature: check() logs the field-level
// diff Reload computes (which limiter windows/thresholds or the origin
// allowlist actually changed) instead of treating the reload as an opaque
// side effect the caller has to log itself.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	reload   func(path string) (*LimitsReloadResult, error)
	stop     chan struct{}
	once     sync.Once
	lastMod  time.Time
}

// NewWatcher creates a limits-file watcher. reload is called with path
// whenever the file's mtime advances; it is expected to apply the new
// values in place (as LimitsConfig.Reload does) and hand back which fields
// changed so the watcher can log them.
func NewWatcher(path string, interval time.Duration, logger *slog.Logger, reload func(path string) (*LimitsReloadResult, error)) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		interval: interval,
		logger:   logger,
		reload:   reload,
		stop:     make(chan struct{}),
	}
}

// Start begins polling for file changes in a goroutine.
func (w *Watcher) Start() {
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
	}

	go w.poll()
	w.logger.Info("limits watcher started", "path", w.path, "interval", w.interval)
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		w.logger.Info("limits watcher stopped")
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn("limits watcher: cannot stat file", "path", w.path, "error", err)
		return
	}

	modTime := info.ModTime()
	if !modTime.After(w.lastMod) {
		return
	}
	w.lastMod = modTime

	if w.reload == nil {
		return
	}

	result, err := w.reload(w.path)
	if err != nil {
		w.logger.Warn("limits reload failed", "path", w.path, "error", err)
		return
	}
	result.LogResult(w.logger)
}
