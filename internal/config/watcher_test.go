package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")

	cfg := DefaultLimitsConfig()
	if err := SaveLimits(path, cfg); err != nil {
		t.Fatal(err)
	}

	changed := make(chan *LimitsReloadResult, 1)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	w := NewWatcher(path, 50*time.Millisecond, logger, func(p string) (*LimitsReloadResult, error) {
		result, err := cfg.Reload(p)
		if err != nil {
			return nil, err
		}
		select {
		case changed <- result:
		default:
		}
		return result, nil
	})
	w.Start()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	updated := DefaultLimitsConfig()
	updated.ConnThreshold = 99
	if err := SaveLimits(path, updated); err != nil {
		t.Fatal(err)
	}

	select {
	case result := <-changed:
		if len(result.Changed) != 1 || result.Changed[0] != "Conn" {
			t.Errorf("expected only the Conn field to be reported changed, got %v", result.Changed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not detect change within timeout")
	}
}

func TestWatcherStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	if err := SaveLimits(path, DefaultLimitsConfig()); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, 50*time.Millisecond, nil, nil)
	w.Start()
	w.Stop()
	w.Stop()
}

func TestWatcherNoOnChangeDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	if err := SaveLimits(path, DefaultLimitsConfig()); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, 20*time.Millisecond, nil, nil)
	w.Start()
	time.Sleep(60 * time.Millisecond)
	w.Stop()
}
