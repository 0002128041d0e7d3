package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/clawinfra/trustcore/internal/approval"
	"github.com/clawinfra/trustcore/internal/authn"
	"github.com/clawinfra/trustcore/internal/config"
	"github.com/clawinfra/trustcore/internal/detector"
	"github.com/clawinfra/trustcore/internal/gateway"
	"github.com/clawinfra/trustcore/internal/permission"
	"github.com/clawinfra/trustcore/internal/ratelimit"
	"github.com/clawinfra/trustcore/internal/transcript"
	"github.com/clawinfra/trustcore/internal/vault"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

// App holds every wired-up component, the way the teacher's cmd/evoclaw
// App struct holds its own registries and engines.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Vault       *vault.Vault
	Store       *transcript.Store
	Limiter     *ratelimit.Limiter
	OriginGuard *ratelimit.OriginGuard
	Issuer      *authn.Issuer
	Coordinator *approval.Coordinator
	Bus         *gateway.EventBus
	Server      *gateway.Server
	Watcher     *config.Watcher

	// ExtraPatterns and SandboxExtras are the operator-supplied additions
	// loaded from the TOML pattern config; a business RPC handler outside
	// this reference gateway is expected to call detector.DetectWithExtra
	// and consult SandboxExtras itself, per spec.md §1's framing of
	// business handlers as external collaborators.
	ExtraPatterns []detector.Pattern
	SandboxExtras []string

	mode atomicMode

	serverCtx    context.Context
	serverCancel context.CancelFunc
}

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("gateway", flag.ExitOnError)
	configPath := fs.String("config", "gateway.json", "Path to config file")
	showVersion := fs.Bool("version", false, "Show version")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing arguments: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Printf("trustcore gateway v%s (built %s)\n", version, buildTime)
		return 0
	}

	app, err := setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		return 1
	}

	if err := startServices(app); err != nil {
		app.Logger.Error("failed to start services", "error", err)
		return 1
	}

	printBanner(app)

	if err := waitForShutdown(app); err != nil {
		app.Logger.Error("shutdown error", "error", err)
		return 1
	}
	return 0
}

// setup initializes every component named in SPEC_FULL.md §2-3, in the
// order the teacher's own setup() builds up its App: logger first, config
// next, then each subsystem in dependency order.
func setup(configPath string) (*App, error) {
	app := &App{}

	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	app.Logger.Info("starting trustcore gateway", "version", version, "config", configPath)

	cfg, err := loadConfig(configPath, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app.Config = cfg

	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}))

	stateDir := cfg.Server.StateDir
	if stateDir == "" {
		stateDir = vault.ResolveStateDir()
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	app.Vault = vault.New(stateDir, app.Logger)

	transcriptPath := cfg.Server.TranscriptDBPath
	if !filepath.IsAbs(transcriptPath) {
		transcriptPath = filepath.Join(stateDir, transcriptPath)
	}
	store, err := transcript.Open(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	app.Store = store

	patternCfg, err := config.LoadPatternConfig(cfg.Sandbox.PatternConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load pattern config: %w", err)
	}
	for _, p := range patternCfg.Patterns {
		pattern, err := detector.NewPattern(p.Label, p.Weight, p.Regex)
		if err != nil {
			app.Logger.Warn("skipping invalid pattern override", "label", p.Label, "error", err)
			continue
		}
		app.ExtraPatterns = append(app.ExtraPatterns, pattern)
	}
	app.SandboxExtras = patternCfg.Sandbox.ExtraSensitivePaths
	if n := len(app.ExtraPatterns); n > 0 {
		app.Logger.Info("loaded detector pattern overrides", "count", n)
	}

	limitsPath := cfg.Server.LimitsPath
	if !filepath.IsAbs(limitsPath) {
		limitsPath = filepath.Join(stateDir, limitsPath)
	}
	limits, err := loadOrCreateLimits(limitsPath, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("load limits config: %w", err)
	}

	app.Limiter = ratelimit.New(ratelimit.Config{
		ConnWindow:    limits.ConnWindow(),
		ConnThreshold: limits.ConnThreshold,
		RPCWindow:     limits.RPCWindow(),
		RPCThreshold:  limits.RPCThreshold,
		AuthWindow:    limits.AuthWindow(),
		AuthThreshold: limits.AuthThreshold,
	}, nil, app.Logger)
	app.OriginGuard = ratelimit.NewOriginGuard(limits.OriginAllowlist)

	app.Watcher = config.NewWatcher(limitsPath, 5*time.Second, app.Logger, func(path string) (*config.LimitsReloadResult, error) {
		result, err := limits.Reload(path)
		if err != nil {
			return nil, err
		}
		app.Limiter.SetConfig(ratelimit.Config{
			ConnWindow:    limits.ConnWindow(),
			ConnThreshold: limits.ConnThreshold,
			RPCWindow:     limits.RPCWindow(),
			RPCThreshold:  limits.RPCThreshold,
			AuthWindow:    limits.AuthWindow(),
			AuthThreshold: limits.AuthThreshold,
		})
		app.OriginGuard.SetAllowlist(limits.OriginAllowlist)
		return result, nil
	})

	secret, err := loadOrCreateAuthSecret(cfg.Auth.SecretPath, stateDir)
	if err != nil {
		return nil, fmt.Errorf("load auth secret: %w", err)
	}
	app.Issuer = authn.NewIssuer(secret, time.Duration(cfg.Auth.ChallengeTTLSec)*time.Second)

	app.Bus = gateway.NewEventBus(app.Logger)
	auditEmitter := app.Store.NewApprovalEmitter(func(err error) {
		app.Logger.Warn("audit emitter failed", "error", err)
	})
	app.Coordinator = approval.New(combineEmitters(app.Bus.Emitter(), auditEmitter), app.Logger)

	app.mode.Set(permission.Mode(cfg.Permission.InitialMode))

	app.Server = gateway.NewServer(
		gateway.Config{Port: cfg.Server.Port},
		app.Limiter,
		app.OriginGuard,
		app.Issuer,
		app.Coordinator,
		app.Bus,
		app.Store,
		permission.Context{Mode: app.mode.Get},
		app.Logger,
	)

	return app, nil
}

// combineEmitters fans one approval.Event out to every emitter in order,
// letting the coordinator publish to both the live event bus and the
// persisted audit trail without knowing either exists.
func combineEmitters(emitters ...approval.Emitter) approval.Emitter {
	return func(e approval.Event) {
		for _, emit := range emitters {
			emit(e)
		}
	}
}

// loadConfig loads the gateway's JSON config, writing out a default file
// on first run, mirroring the teacher's loadConfig.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no config found, creating default", "path", path)
			cfg = config.DefaultConfig()
			if err := config.Save(path, cfg); err != nil {
				return nil, fmt.Errorf("save default config: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// loadOrCreateLimits mirrors loadConfig for the YAML rate-limit tunables.
func loadOrCreateLimits(path string, logger *slog.Logger) (*config.LimitsConfig, error) {
	limits, err := config.LoadLimits(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no limits config found, creating default", "path", path)
			limits = config.DefaultLimitsConfig()
			if err := config.SaveLimits(path, limits); err != nil {
				return nil, fmt.Errorf("save default limits: %w", err)
			}
			return limits, nil
		}
		return nil, err
	}
	return limits, nil
}

// loadOrCreateAuthSecret reads the HS256 signing secret from secretPath
// (defaulting under stateDir), generating and persisting one on first run
// the way internal/vault persists its session key.
func loadOrCreateAuthSecret(secretPath, stateDir string) ([]byte, error) {
	if secretPath == "" {
		secretPath = filepath.Join(stateDir, ".auth-secret")
	}
	if data, err := os.ReadFile(secretPath); err == nil && len(data) > 0 {
		return data, nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate auth secret: %w", err)
	}
	if err := os.WriteFile(secretPath, secret, 0o600); err != nil {
		return nil, fmt.Errorf("persist auth secret: %w", err)
	}
	return secret, nil
}

// parseLogLevel converts a config string into a slog.Level, matching the
// teacher's own switch.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startServices launches the limiter's janitor, the limits watcher, and
// the HTTP+WS server in the background.
func startServices(app *App) error {
	app.serverCtx, app.serverCancel = context.WithCancel(context.Background())

	app.Limiter.Start(app.serverCtx)
	app.Watcher.Start()

	go func() {
		if err := app.Server.Start(app.serverCtx); err != nil {
			app.Logger.Error("gateway server error", "error", err)
		}
	}()

	return nil
}

func printBanner(app *App) {
	fmt.Println()
	fmt.Println("  trustcore gateway v" + version)
	fmt.Printf("  listening on :%d\n", app.Config.Server.Port)
	fmt.Printf("  permission mode: %s\n", app.mode.Get())
	fmt.Println()
}

// waitForShutdown blocks on SIGINT/SIGTERM, then tears every component
// down in reverse dependency order.
func waitForShutdown(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	app.Logger.Info("shutdown signal received")

	if app.serverCancel != nil {
		app.serverCancel()
	}
	app.Watcher.Stop()
	app.Limiter.Stop()

	if err := app.Store.Close(); err != nil {
		app.Logger.Error("failed to close transcript store", "error", err)
	}

	app.Logger.Info("trustcore gateway stopped")
	return nil
}
