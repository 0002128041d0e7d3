package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPatternConfigEmptyPathReturnsEmpty(t *testing.T) {
	cfg, err := LoadPatternConfig("")
	if err != nil {
		t.Fatalf("LoadPatternConfig: %v", err)
	}
	if len(cfg.Patterns) != 0 || len(cfg.Sandbox.ExtraSensitivePaths) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadPatternConfigMissingFileReturnsEmpty(t *testing.T) {
	cfg, err := LoadPatternConfig("/nonexistent/patterns.toml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(cfg.Patterns) != 0 {
		t.Errorf("expected empty patterns, got %+v", cfg.Patterns)
	}
}

func TestLoadPatternConfigParsesPatternsAndSandbox(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.toml")
	doc := `
[[patterns]]
label = "custom-exfil"
weight = 35
regex = '''\bexport\s+the\s+api\s+key\b'''

[sandbox]
extra_sensitive_paths = ["internal_secrets/", "vendor_keys.json"]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadPatternConfig(path)
	if err != nil {
		t.Fatalf("LoadPatternConfig: %v", err)
	}
	if len(cfg.Patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(cfg.Patterns))
	}
	if cfg.Patterns[0].Label != "custom-exfil" || cfg.Patterns[0].Weight != 35 {
		t.Errorf("unexpected pattern: %+v", cfg.Patterns[0])
	}
	if len(cfg.Sandbox.ExtraSensitivePaths) != 2 {
		t.Errorf("expected 2 extra sensitive paths, got %v", cfg.Sandbox.ExtraSensitivePaths)
	}
}

func TestLoadPatternConfigMalformedTOMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.toml")
	if err := os.WriteFile(path, []byte("[[patterns\nlabel = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPatternConfig(path); err == nil {
		t.Fatal("expected error for malformed TOML")
	}
}
