package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/clawinfra/trustcore/internal/approval"
	"github.com/clawinfra/trustcore/internal/config"
	"github.com/clawinfra/trustcore/internal/permission"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadConfigNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.json")

	cfg, err := loadConfig(path, testLogger())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
}

func TestLoadConfigExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.json")

	cfg := config.DefaultConfig()
	cfg.Server.Port = 9999
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := loadConfig(path, testLogger())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", loaded.Server.Port)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path, testLogger()); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoadOrCreateLimitsNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")

	limits, err := loadOrCreateLimits(path, testLogger())
	if err != nil {
		t.Fatalf("loadOrCreateLimits: %v", err)
	}
	if limits.ConnThreshold != config.DefaultLimitsConfig().ConnThreshold {
		t.Errorf("expected default threshold, got %d", limits.ConnThreshold)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected limits file to be created: %v", err)
	}
}

func TestLoadOrCreateLimitsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")

	limits := config.DefaultLimitsConfig()
	limits.ConnThreshold = 42
	if err := config.SaveLimits(path, limits); err != nil {
		t.Fatalf("SaveLimits: %v", err)
	}

	loaded, err := loadOrCreateLimits(path, testLogger())
	if err != nil {
		t.Fatalf("loadOrCreateLimits: %v", err)
	}
	if loaded.ConnThreshold != 42 {
		t.Errorf("expected threshold 42, got %d", loaded.ConnThreshold)
	}
}

func TestLoadOrCreateAuthSecretGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, ".auth-secret")

	secret1, err := loadOrCreateAuthSecret(secretPath, dir)
	if err != nil {
		t.Fatalf("loadOrCreateAuthSecret: %v", err)
	}
	if len(secret1) != 32 {
		t.Errorf("expected 32-byte secret, got %d", len(secret1))
	}

	secret2, err := loadOrCreateAuthSecret(secretPath, dir)
	if err != nil {
		t.Fatalf("loadOrCreateAuthSecret (reload): %v", err)
	}
	if string(secret1) != string(secret2) {
		t.Error("expected the persisted secret to be reused across calls")
	}
}

func TestLoadOrCreateAuthSecretDefaultsUnderStateDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadOrCreateAuthSecret("", dir); err != nil {
		t.Fatalf("loadOrCreateAuthSecret: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".auth-secret")); err != nil {
		t.Errorf("expected secret under state dir: %v", err)
	}
}

func TestCombineEmittersFansOutToEveryEmitter(t *testing.T) {
	var calls []string
	first := func(approval.Event) { calls = append(calls, "first") }
	second := func(approval.Event) { calls = append(calls, "second") }

	combined := combineEmitters(first, second)
	combined(approval.Event{})

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("expected both emitters called in order, got %v", calls)
	}
}

func TestAtomicModeSetGet(t *testing.T) {
	var m atomicMode
	m.Set(permission.ModeAsk)
	if got := m.Get(); got != permission.ModeAsk {
		t.Errorf("expected ModeAsk, got %v", got)
	}

	m.Set(permission.ModeAuto)
	if got := m.Get(); got != permission.ModeAuto {
		t.Errorf("expected ModeAuto after flip, got %v", got)
	}
}

func TestAtomicModeZeroValueIsUnset(t *testing.T) {
	var m atomicMode
	if got := m.Get(); got != permission.ModeUnset {
		t.Errorf("expected zero-value mode to be ModeUnset, got %v", got)
	}
}
