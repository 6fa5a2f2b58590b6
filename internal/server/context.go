package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/agentcourier/internal/authority"
	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/instrumentation"
	"github.com/teemow/agentcourier/internal/router"
	"github.com/teemow/agentcourier/internal/tokenstore"
)

// Config holds everything needed to assemble a server context.
type Config struct {
	// BackendURL is the base URL of the backend authority.
	BackendURL string

	// TokenDir is where consent tokens are persisted. Empty selects the
	// default per-user cache location.
	TokenDir string

	// TrustLinkSecret signs and verifies cross-agent trust links. Optional;
	// without it trust links are neither issued nor verified.
	TrustLinkSecret []byte

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// ServerContext is the composition root: it owns the single registry, backend
// client, and router instances shared by every tool and command. Nothing here
// is a global; consumers receive the context and ask it for what they need.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	registry *consent.Registry
	client   *authority.Client
	router   *router.Router
	store    *tokenstore.Store
	signer   *consent.Signer
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext builds the shared object graph: token store loaded into
// the registry, registry changes mirrored back to disk, backend client, and
// router wired on top.
func NewServerContext(ctx context.Context, cfg Config) (*ServerContext, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}
	if cfg.TokenDir == "" {
		cfg.TokenDir = tokenstore.DefaultDir()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	registry := consent.NewRegistry(cfg.Logger)

	store, err := tokenstore.New(cfg.TokenDir, cfg.Logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	if err := store.Load(registry); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load persisted consent tokens: %w", err)
	}
	registry.OnChange(store.Listener(registry))

	client, err := authority.NewClient(authority.Config{
		BaseURL: cfg.BackendURL,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	var signer *consent.Signer
	if len(cfg.TrustLinkSecret) > 0 {
		signer, err = consent.NewSigner(cfg.TrustLinkSecret)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create trust link signer: %w", err)
		}
	}

	rt, err := router.New(router.Config{
		Registry:  registry,
		Transport: client,
		Signer:    signer,
		Logger:    cfg.Logger,
		Metrics:   cfg.Metrics,
		Audit:     cfg.Audit,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		registry: registry,
		client:   client,
		router:   rt,
		store:    store,
		signer:   signer,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		audit:    cfg.Audit,
	}, nil
}

// Context returns the server's lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Registry returns the shared consent registry.
func (sc *ServerContext) Registry() *consent.Registry {
	return sc.registry
}

// Client returns the shared backend client.
func (sc *ServerContext) Client() *authority.Client {
	return sc.client
}

// Router returns the shared agent message router.
func (sc *ServerContext) Router() *router.Router {
	return sc.router
}

// TokenStore returns the persistent consent token store.
func (sc *ServerContext) TokenStore() *tokenstore.Store {
	return sc.store
}

// Signer returns the trust link signer, or nil when no secret is configured.
func (sc *ServerContext) Signer() *consent.Signer {
	return sc.signer
}

// Logger returns the server's logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the shared metrics recorder. Never nil; an unconfigured
// recorder is a no-op.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil when auditing is disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server's context. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
