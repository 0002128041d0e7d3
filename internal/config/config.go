// Package config loads the trust core's own settings: the gateway's JSON
// config, the detector/sandbox TOML extension config, and the rate-limit/
// origin-allowlist YAML tunables, each in the format the teacher already
// uses for that kind of data rather than a single unified format.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the gateway's own settings. Adapted from the teacher's
// internal/config/config.go plain-JSON-struct convention, trimmed to the
// trust core's scope (no MQTT, no chains, no channel bridges — those are
// out-of-scope external collaborators).
type Config struct {
	Server     ServerConfig     `json:"server"`
	Sandbox    SandboxConfig    `json:"sandbox"`
	Approval   ApprovalConfig   `json:"approval"`
	Permission PermissionConfig `json:"permission"`
	Auth       AuthConfig       `json:"auth"`
}

// ServerConfig configures the gateway's HTTP+WS listener and where its
// persisted state (transcripts, audit trail, rate-limit tunables) lives.
type ServerConfig struct {
	Port             int    `json:"port"`
	StateDir         string `json:"stateDir,omitempty"`
	LogLevel         string `json:"logLevel"`
	LimitsPath       string `json:"limitsPath,omitempty"`
	TranscriptDBPath string `json:"transcriptDbPath,omitempty"`
}

// SandboxConfig holds the sandbox root and the path of the TOML file with
// detector pattern overrides and extra sensitive paths. The gateway reads
// PatternConfigPath; RootDir is not read by any component in this module.
type SandboxConfig struct {
	RootDir           string `json:"rootDir"`
	PatternConfigPath string `json:"patternConfigPath,omitempty"`
}

// ApprovalConfig holds an approval timeout in seconds. The gateway does not
// pass it to the coordinator; approval requests use approval.DefaultTimeout.
type ApprovalConfig struct {
	DefaultTimeoutSec int `json:"defaultTimeoutSec"`
}

// PermissionConfig sets the enforcer's initial mode. The mode can still be
// flipped at runtime by whatever UI holds the ModeFunc closure this seeds.
type PermissionConfig struct {
	InitialMode string `json:"initialMode"`
}

// AuthConfig configures the WS handshake challenge issuer.
type AuthConfig struct {
	SecretPath      string `json:"secretPath,omitempty"`
	ChallengeTTLSec int    `json:"challengeTtlSec"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8443,
			LogLevel:         "info",
			LimitsPath:       "limits.yaml",
			TranscriptDBPath: "transcript.db",
		},
		Sandbox: SandboxConfig{
			RootDir: ".",
		},
		Approval: ApprovalConfig{
			DefaultTimeoutSec: 1800,
		},
		Permission: PermissionConfig{
			InitialMode: "ask",
		},
		Auth: AuthConfig{
			ChallengeTTLSec: 30,
		},
	}
}

// Load reads the gateway config from a JSON file, applying defaults for
// anything the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
