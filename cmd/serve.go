package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentcourier/internal/instrumentation"
	"github.com/teemow/agentcourier/internal/server"
	"github.com/teemow/agentcourier/internal/tools/agent_tools"
	"github.com/teemow/agentcourier/internal/tools/inbox_tools"
	"github.com/teemow/agentcourier/internal/tools/schedule_tools"
)

// serveOptions holds the resolved configuration for the serve command.
type serveOptions struct {
	debug           bool
	backendURL      string
	tokenDir        string
	trustLinkSecret string
	healthAddr      string
	metricsEnabled  bool
	metricsAddr     string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the schedule,
inbox and agent messaging tools over stdio.

Every tool call is consent-gated: operations fail before any network
activity when the user has not granted the required scopes. Granted
tokens are persisted under the token directory and survive restarts.

Configuration:
  Backend authority (required):
    --backend-url https://authority.example.com OR AGENT_AUTHORITY_URL env var

  Trust links (optional):
    --trust-link-secret OR TRUST_LINK_SECRET env var
    Without a secret, cross-agent trust links are neither issued nor verified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Environment fallbacks apply only when the flag was not set
			if opts.backendURL == "" {
				opts.backendURL = os.Getenv("AGENT_AUTHORITY_URL")
			}
			if opts.backendURL == "" {
				return fmt.Errorf("backend authority URL is required; set --backend-url or AGENT_AUTHORITY_URL")
			}
			if opts.tokenDir == "" {
				opts.tokenDir = os.Getenv("AGENTCOURIER_TOKEN_DIR")
			}
			if opts.trustLinkSecret == "" {
				opts.trustLinkSecret = os.Getenv("TRUST_LINK_SECRET")
			}
			if !cmd.Flags().Changed("metrics-addr") {
				if addr := os.Getenv("METRICS_ADDR"); addr != "" {
					opts.metricsAddr = addr
				}
			}
			if !cmd.Flags().Changed("metrics-enabled") {
				if os.Getenv("METRICS_ENABLED") == "false" {
					opts.metricsEnabled = false
				}
			}
			if opts.healthAddr == "" {
				opts.healthAddr = os.Getenv("HEALTH_ADDR")
			}

			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.backendURL, "backend-url", "", "Base URL of the backend authority. Can also use AGENT_AUTHORITY_URL env var.")
	cmd.Flags().StringVar(&opts.tokenDir, "token-dir", "", "Directory for persisted consent tokens. Can also use AGENTCOURIER_TOKEN_DIR env var. Default: ~/.cache/agentcourier/consent")
	cmd.Flags().StringVar(&opts.trustLinkSecret, "trust-link-secret", "", "HMAC secret for signing cross-agent trust links. Can also use TRUST_LINK_SECRET env var.")
	cmd.Flags().StringVar(&opts.healthAddr, "health-addr", "", "Address for the health check endpoints (e.g. :8081). Disabled when empty. Can also use HEALTH_ADDR env var.")
	cmd.Flags().BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the MCP transport, so all logging goes to stderr
	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if opts.metricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	// Create the shared server context
	var audit *instrumentation.AuditLogger
	if instrConfig.AuditLogging.Enabled {
		audit = instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)
	}

	serverContext, err := server.NewServerContext(shutdownCtx, server.Config{
		BackendURL:      opts.backendURL,
		TokenDir:        opts.tokenDir,
		TrustLinkSecret: []byte(opts.trustLinkSecret),
		Logger:          logger,
		Metrics:         provider.Metrics(),
		Audit:           audit,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if metricsServer != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := metricsServer.Shutdown(stopCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("agentcourier", version,
		mcpserver.WithToolCapabilities(true),
	)

	// Register all tools
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	// Optional health endpoints on a dedicated listener
	if opts.healthAddr != "" {
		healthChecker := server.NewHealthChecker(serverContext)
		healthChecker.SetReady(true)

		mux := http.NewServeMux()
		healthChecker.RegisterHealthEndpoints(mux)
		healthServer := &http.Server{
			Addr:              opts.healthAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("starting health server", "addr", opts.healthAddr)
			if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server stopped", "error", err)
			}
		}()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := healthServer.Shutdown(stopCtx); err != nil {
				logger.Error("health server shutdown failed", "error", err)
			}
		}()
	}

	return runStdioServer(shutdownCtx, mcpSrv)
}

// registerAllTools registers every MCP tool family with the server.
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Schedule",
			register: func() error {
				return schedule_tools.RegisterScheduleTools(mcpSrv, sc)
			},
		},
		{
			name: "Inbox",
			register: func() error {
				return inbox_tools.RegisterInboxTools(mcpSrv, sc)
			},
		},
		{
			name: "Agent messaging",
			register: func() error {
				return agent_tools.RegisterAgentTools(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
