package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// LimitsConfig holds the rate-limiter's tunables and the origin guard's
// allowlist. Kept in its own YAML file, separate from the JSON gateway
// config, so operators can tune it independently and it can be
// hot-reloaded without touching server settings that require a restart.
type LimitsConfig struct {
	ConnWindowSec   int      `yaml:"connWindowSec"`
	ConnThreshold   int      `yaml:"connThreshold"`
	RPCWindowSec    float64  `yaml:"rpcWindowSec"`
	RPCThreshold    int      `yaml:"rpcThreshold"`
	AuthWindowSec   int      `yaml:"authWindowSec"`
	AuthThreshold   int      `yaml:"authThreshold"`
	OriginAllowlist []string `yaml:"originAllowlist"`
}

// DefaultLimitsConfig mirrors internal/ratelimit's package defaults so a
// missing limits file still produces sane behavior.
func DefaultLimitsConfig() *LimitsConfig {
	return &LimitsConfig{
		ConnWindowSec:   60,
		ConnThreshold:   10,
		RPCWindowSec:    1,
		RPCThreshold:    100,
		AuthWindowSec:   60,
		AuthThreshold:   5,
		OriginAllowlist: nil,
	}
}

// ConnWindow, RPCWindow, and AuthWindow convert the YAML's second-based
// fields into time.Duration for internal/ratelimit.Config.
func (l *LimitsConfig) ConnWindow() time.Duration {
	return time.Duration(l.ConnWindowSec) * time.Second
}

func (l *LimitsConfig) RPCWindow() time.Duration {
	return time.Duration(l.RPCWindowSec * float64(time.Second))
}

func (l *LimitsConfig) AuthWindow() time.Duration {
	return time.Duration(l.AuthWindowSec) * time.Second
}

// LoadLimits reads the rate-limit/origin-allowlist YAML file, applying
// defaults for anything the file omits.
func LoadLimits(path string) (*LimitsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read limits: %w", err)
	}

	cfg := DefaultLimitsConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse limits: %w", err)
	}
	return cfg, nil
}

// SaveLimits writes cfg to path as YAML.
func SaveLimits(path string, cfg *LimitsConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal limits: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// limitsMu guards LimitsConfig during concurrent reloads, mirroring the
// teacher's package-level RLock/RUnlock pair for the JSON config.
var limitsMu sync.RWMutex

func LimitsRLock()   { limitsMu.RLock() }
func LimitsRUnlock() { limitsMu.RUnlock() }

// LimitsReloadResult describes what changed during a hot reload. Every
// field in LimitsConfig is hot-reloadable, so it lists only the changed
// field groups and has no list of skipped fields.
type LimitsReloadResult struct {
	Changed []string
}

// Reload re-reads l from path and applies any changes in place. Callers
// typically invoke this from a Watcher's onChange callback.
func (l *LimitsConfig) Reload(path string) (*LimitsReloadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read limits for reload: %w", err)
	}

	next := DefaultLimitsConfig()
	if err := yaml.Unmarshal(data, next); err != nil {
		return nil, fmt.Errorf("config: parse limits for reload: %w", err)
	}

	result := &LimitsReloadResult{}

	limitsMu.Lock()
	defer limitsMu.Unlock()

	if l.ConnWindowSec != next.ConnWindowSec || l.ConnThreshold != next.ConnThreshold {
		result.Changed = append(result.Changed, "Conn")
		l.ConnWindowSec, l.ConnThreshold = next.ConnWindowSec, next.ConnThreshold
	}
	if l.RPCWindowSec != next.RPCWindowSec || l.RPCThreshold != next.RPCThreshold {
		result.Changed = append(result.Changed, "RPC")
		l.RPCWindowSec, l.RPCThreshold = next.RPCWindowSec, next.RPCThreshold
	}
	if l.AuthWindowSec != next.AuthWindowSec || l.AuthThreshold != next.AuthThreshold {
		result.Changed = append(result.Changed, "Auth")
		l.AuthWindowSec, l.AuthThreshold = next.AuthWindowSec, next.AuthThreshold
	}
	if !slices.Equal(l.OriginAllowlist, next.OriginAllowlist) {
		result.Changed = append(result.Changed, "OriginAllowlist")
		l.OriginAllowlist = next.OriginAllowlist
	}

	return result, nil
}

// LogResult logs the reload outcome, matching the teacher's
// ReloadResult.LogResult convention.
func (r *LimitsReloadResult) LogResult(logger *slog.Logger) {
	if len(r.Changed) == 0 {
		logger.Info("limits reload: no changes detected")
		return
	}
	logger.Info("limits reload complete", "changed", r.Changed)
}
