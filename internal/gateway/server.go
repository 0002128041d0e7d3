package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clawinfra/trustcore/internal/approval"
	"github.com/clawinfra/trustcore/internal/authn"
	"github.com/clawinfra/trustcore/internal/permission"
	"github.com/clawinfra/trustcore/internal/ratelimit"
	"github.com/clawinfra/trustcore/internal/transcript"
)

// Config configures the gateway server. Fields mirror what
// cmd/gateway/main.go assembles from internal/config.
type Config struct {
	Port int
}

// Server is the trust core's reference HTTP+WS gateway. It owns no
// business logic of its own — every decision is delegated to the
// wired-in components — and exists to demonstrate how they compose,
// per spec.md §1's framing of business RPC handlers as external
// collaborators.
//
// Adapted from the teacher's internal/api.Server: same
// listen/serve/shutdown shape, trimmed of every handler that isn't
// named by a trust-core component.
type Server struct {
	cfg         Config
	limiter     *ratelimit.Limiter
	originGuard *ratelimit.OriginGuard
	issuer      *authn.Issuer
	coordinator *approval.Coordinator
	bus         *EventBus
	store       *transcript.Store
	permCtx     permission.Context
	logger      *slog.Logger
	httpServer  *http.Server
}

// NewServer wires the trust core's components into a Server.
func NewServer(
	cfg Config,
	limiter *ratelimit.Limiter,
	originGuard *ratelimit.OriginGuard,
	issuer *authn.Issuer,
	coordinator *approval.Coordinator,
	bus *EventBus,
	store *transcript.Store,
	permCtx permission.Context,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:         cfg,
		limiter:     limiter,
		originGuard: originGuard,
		issuer:      issuer,
		coordinator: coordinator,
		bus:         bus,
		store:       store,
		permCtx:     permCtx,
		logger:      logger.With("component", "gateway"),
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.loggingMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("gateway starting", "port", s.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}
