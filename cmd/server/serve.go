package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"reqforge/internal/auth"
	"reqforge/internal/config"
	"reqforge/internal/handler"
	"reqforge/internal/metrics"
	"reqforge/internal/middleware"
	"reqforge/internal/realtime"
	"reqforge/internal/repository/postgres"
	postgresBRD "reqforge/internal/repository/postgres/brd"
	serviceAuth "reqforge/internal/service/auth"
	serviceBRD "reqforge/internal/service/brd"
	"reqforge/internal/service/brd/conversation"
	"reqforge/internal/service/brd/converter"
	"reqforge/internal/service/brd/parser"
	"reqforge/internal/service/brd/prompt"
	serviceLLM "reqforge/internal/service/llm"
	"reqforge/internal/service/scraper"
	"reqforge/internal/storage"
	"reqforge/internal/telemetry"
	"reqforge/internal/templates"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	migrate bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "Apply pending migrations before serving")
	return cmd
}

func runServe(parent context.Context, opts serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Generation, err = serviceLLM.ResolveGeneration(cfg.Generation); err != nil {
		return fmt.Errorf("invalid generation settings: %w", err)
	}

	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"generation_backend", cfg.Generation.Backend,
	)

	shutdownTracing, err := telemetry.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		return err
	}
	defer verifier.Close()

	if opts.migrate {
		if err := migrateUp(ctx, cfg, logger); err != nil {
			return err
		}
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	projectRepo := postgresBRD.NewProjectRepository(repoConfig)
	documentRepo := postgresBRD.NewDocumentRepository(repoConfig)
	turnRepo := postgresBRD.NewTurnRepository(repoConfig)
	uploadRepo := postgresBRD.NewUploadRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	// Templates
	catalog, err := templates.NewCatalog(logger)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	if cfg.TemplatesFile != "" {
		if err := catalog.LoadFile(cfg.TemplatesFile); err != nil {
			return fmt.Errorf("load %s: %w", cfg.TemplatesFile, err)
		}
		if err := catalog.Watch(ctx, cfg.TemplatesFile); err != nil {
			logger.Warn("template hot reload disabled", "error", err)
		}
	}

	// Generation
	backends, closeBackends, err := serviceLLM.BuildBackends(ctx, cfg.Generation, logger)
	if err != nil {
		return fmt.Errorf("build generation backends: %w", err)
	}
	defer closeBackends()
	if len(backends) == 0 {
		logger.Warn("no generation credentials configured, chat turns will fail")
	}
	generator := serviceLLM.NewClient(backends, cfg.Generation.BackoffBase, appMetrics, logger)

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("setup object storage: %w", err)
	}

	// Rooms
	hub := realtime.NewHub(appMetrics, logger)
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("reqforge"), nats.MaxReconnects(-1))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Drain()

		relay, err := realtime.NewRelay(nc, hub, logger)
		if err != nil {
			return fmt.Errorf("start room relay: %w", err)
		}
		defer relay.Close()
		hub.SetRelay(relay)
	}

	assembler := prompt.NewAssembler(config.ContextCharBudget, cfg.Conversation.HistoryWindow)
	responseParser := parser.New(config.FallbackMessageLimit)

	orchestrator := conversation.NewOrchestrator(conversation.Deps{
		Projects:  projectRepo,
		Documents: documentRepo,
		Turns:     turnRepo,
		Uploads:   uploadRepo,
		Tx:        txManager,
		Templates: catalog,
		Assembler: assembler,
		Generator: generator,
		Parser:    responseParser,
		Scraper:   scraper.New(cfg.Scrape, config.ContextCharBudget, logger),
		Rooms:     hub,
		Metrics:   appMetrics,
		Logger:    logger,
	}, conversation.Options{
		Model:          cfg.Generation.Model,
		MaxAttempts:    cfg.Generation.MaxAttempts,
		HistoryWindow:  cfg.Conversation.HistoryWindow,
		ConflictPolicy: cfg.Conversation.ConflictPolicy,
	})

	// Services
	projectService := serviceBRD.NewProjectService(projectRepo, documentRepo, uploadRepo, catalog, logger)
	documentService := serviceBRD.NewDocumentService(serviceBRD.DocumentDeps{
		Projects:    projectRepo,
		Documents:   documentRepo,
		Uploads:     uploadRepo,
		Tx:          txManager,
		Templates:   catalog,
		Assembler:   assembler,
		Generator:   generator,
		Parser:      responseParser,
		Rooms:       hub,
		Model:       cfg.Generation.Model,
		MaxAttempts: cfg.Generation.MaxAttempts,
		Logger:      logger,
	})
	uploadService := serviceBRD.NewUploadService(projectRepo, uploadRepo, converter.NewRegistry(), store, logger)
	conversationService := serviceBRD.NewConversationService(projectRepo, turnRepo, logger)
	authorizer := serviceAuth.NewOwnerBasedAuthorizer(projectRepo)

	origins := splitOrigins(cfg.CORSOrigins)
	realtimeHandler := handler.NewRealtimeHandler(hub, orchestrator, authorizer, origins, cfg.Conversation.TurnTimeout, logger)

	mux := newRouter(routes{
		health:       handler.NewHealthHandler(pool),
		projects:     handler.NewProjectHandler(projectService, logger),
		documents:    handler.NewDocumentHandler(documentService, projectService, logger),
		uploads:      handler.NewUploadHandler(uploadService, logger),
		conversation: handler.NewConversationHandler(conversationService, logger),
		realtime:     realtimeHandler,
		metrics:      registry,
	})

	// Build middleware chain
	// Order: CORS → Tracing → Recovery → Auth → Metrics → Routes
	var h http.Handler = mux
	h = httpMetrics.Handler(h)
	h = middleware.AuthMiddleware(verifier)(h)
	h = middleware.Recovery(logger)(h)
	h = otelhttp.NewHandler(h, "reqforge.http",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/metrics" && r.URL.Path != "/health" }),
	)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	h = cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}).Handler(h)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       0, // Upload bodies and sockets are bounded elsewhere
		WriteTimeout:      0, // Generation requests can take a minute
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := realtimeHandler.Wait(sctx); err != nil {
		logger.Warn("chat turns still running at shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// newVerifier uses the JWKS endpoint, or a fixed development user when no
// identity provider is configured.
func newVerifier(cfg *config.Config, logger *slog.Logger) (auth.JWTVerifier, error) {
	if cfg.JWKSURL == "" {
		logger.Warn("authentication disabled, all requests run as the development user", "user_id", cfg.DevUserID)
		return auth.StaticVerifier{UserID: cfg.DevUserID}, nil
	}

	verifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT verifier: %w", err)
	}
	return verifier, nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
