package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// PatternOverride is an operator-supplied addition to the detector's
// built-in pattern table, loaded from TOML. Grounded on the teacher's
// internal/orchestrator/tools.go skill.toml loader: a top-level array
// table unmarshalled with toml.Unmarshal into a small typed struct.
type PatternOverride struct {
	Label  string `toml:"label"`
	Weight int    `toml:"weight"`
	Regex  string `toml:"regex"`
}

// SandboxExtension is operator-supplied sandbox tuning loaded from the
// same TOML file: extra sensitive-path substrings blocked in addition to
// the built-in table.
type SandboxExtension struct {
	ExtraSensitivePaths []string `toml:"extra_sensitive_paths"`
}

// PatternConfig is the TOML document shape: `[[patterns]]` array tables
// plus a `[sandbox]` table.
type PatternConfig struct {
	Patterns []PatternOverride `toml:"patterns"`
	Sandbox  SandboxExtension  `toml:"sandbox"`
}

// LoadPatternConfig reads and parses a detector/sandbox extension file. A
// missing file is not an error — it means no operator overrides are
// configured — but a malformed one is.
func LoadPatternConfig(path string) (*PatternConfig, error) {
	if path == "" {
		return &PatternConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PatternConfig{}, nil
		}
		return nil, fmt.Errorf("config: read pattern config: %w", err)
	}

	var cfg PatternConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse pattern config: %w", err)
	}
	return &cfg, nil
}
