package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	syhttp "github.com/switchyardlabs/switchyard/internal/adapter/http"
	symcp "github.com/switchyardlabs/switchyard/internal/adapter/mcp"
	synats "github.com/switchyardlabs/switchyard/internal/adapter/nats"
	syotel "github.com/switchyardlabs/switchyard/internal/adapter/otel"
	"github.com/switchyardlabs/switchyard/internal/adapter/postgres"
	"github.com/switchyardlabs/switchyard/internal/adapter/ristretto"
	"github.com/switchyardlabs/switchyard/internal/adapter/ws"
	"github.com/switchyardlabs/switchyard/internal/config"
	"github.com/switchyardlabs/switchyard/internal/logger"
	"github.com/switchyardlabs/switchyard/internal/middleware"
	"github.com/switchyardlabs/switchyard/internal/service"
)

const serviceName = "switchyard"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"agents_dir", cfg.Registry.AgentsDir,
		"max_handoffs", cfg.Orchestrator.MaxHandoffs,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	// OpenTelemetry
	shutdownOtel, err := syotel.Init(ctx, cfg.Telemetry, serviceName)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := syotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := synats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Learned-confidence cache
	learnedCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer learnedCache.Close()

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)

	registry, err := service.NewRegistryService(cfg.Registry.AgentsDir)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	slog.Info("agent registry loaded", "agents", registry.Len())

	gate := service.NewGateService(store, learnedCache, &cfg.Gate)
	approvals := service.NewApprovalService(gate, hub, queue, metrics, cfg.Gate.ApprovalTimeout)
	agentInvoker := synats.NewInvoker(queue.Conn())
	orchestrator := service.NewOrchestratorService(
		registry, agentInvoker, store, queue, hub,
		service.NewBlockParser(), gate, approvals, metrics,
	)
	router := service.NewRouterService(
		service.NewClassifierService(),
		service.NewComplexityService(),
		registry, orchestrator, hub, metrics,
		cfg.Orchestrator.MaxHandoffs,
		cfg.Orchestrator.MaxConcurrentRuns,
	)

	// --- HTTP ---
	handlers := &syhttp.Handlers{
		Router:       router,
		Orchestrator: orchestrator,
		Registry:     registry,
		Gate:         gate,
		Approvals:    approvals,
		Store:        store,
		Hub:          hub,
	}

	r := chi.NewRouter()
	r.Use(syhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(syhttp.Logger)
	r.Use(syhttp.SecurityHeaders)
	r.Use(syotel.HTTPMiddleware(serviceName))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.APIKey(cfg.Auth.APIKeyHash))

	syhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Route executions block on approval pauses, so writes stay open
		// longer than a typical API response.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// --- MCP ---
	var mcpServer *symcp.Server
	if cfg.MCP.Enabled {
		mcpServer = symcp.NewServer(
			symcp.ServerConfig{Addr: cfg.MCP.Addr, Name: serviceName, Version: "0.1.0"},
			symcp.ServerDeps{
				Analyzer:         router,
				StatsReader:      orchestrator,
				ConfidenceReader: gate,
				AgentLister:      registry,
			},
		)
		if err := mcpServer.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mcpServer != nil {
		if err := mcpServer.Stop(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown failed", "error", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}
