package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"wavecli/internal/colormap"
	"wavecli/internal/config"
	"wavecli/internal/errors"
	"wavecli/internal/infrastructure"
	customMiddleware "wavecli/internal/middleware"
	"wavecli/internal/services"
	handlers "wavecli/internal/transport/http"
	"wavecli/internal/waves"
	ws "wavecli/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const (
	VERSION = "1.2.0"
	AppName = "Wave Pulse - Longitudinal Survey Analytics"

	// Finished pipeline runs stay listable for a day, then an hourly
	// sweep drops them.
	runRetention     = 24 * time.Hour
	runSweepInterval = time.Hour
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	// Generate a deterministic build ID based on version and date
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Paths           *config.Paths
	Router          *chi.Mux
	Server          *http.Server
	WebSocketHub    *ws.Hub
	Registry        *waves.Registry
	ColorStore      *colormap.Store
	DatasetService  *services.DatasetService
	WaveService     *services.WaveService
	AnalysisService *services.AnalysisService
	PipelineService *services.PipelineService
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	Metrics         *infrastructure.BusinessMetrics
	SystemCollector *infrastructure.SystemMetricsCollector

	cleanupQuit chan struct{}
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize the single infrastructure logger
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.String("build_id", BuildID))

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}

	// Initialize OpenTelemetry
	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Initialize WebSocket OpenTelemetry metrics
	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	// Runtime gauges show up on /metrics next to the business metrics
	systemCollector, err := infrastructure.NewSystemMetricsCollector(otelProviders.Meter, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics collector: %w", err)
	}

	// Create application
	app := &Application{
		Config:          cfg,
		Paths:           paths,
		Logger:          logger,
		OTelProviders:   otelProviders,
		Metrics:         metrics,
		SystemCollector: systemCollector,
	}

	// Initialize services in order
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Setup router
	app.setupRouter()

	// Create HTTP server
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	// Initialize WebSocket hub
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	// Wave registry backed by the visualization settings file
	waveStore := waves.NewCSVStore(a.Paths.WaveDefinitionsCSV, a.Logger)
	registry, err := waves.NewRegistry(waveStore, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize wave registry: %w", err)
	}
	a.Registry = registry

	// Color mappings; a missing file just means every value colors
	// from the default palette
	colorStore := colormap.NewStore(a.Paths.ColorMappingsCSV, a.Logger)
	if err := colorStore.Load(); err != nil {
		return fmt.Errorf("failed to load color mappings: %w", err)
	}
	a.ColorStore = colorStore

	// Dataset service with read cache
	a.DatasetService = services.NewDatasetServiceWithPaths(
		a.Paths, a.Config.Analysis.DatasetCacheTTL, a.Logger)

	a.WaveService = services.NewWaveService(registry, a.Logger)

	a.AnalysisService = services.NewAnalysisService(
		a.DatasetService, registry, colorStore, a.Config.Analysis, a.Metrics, a.Logger)

	// Cleaning pipeline, reporting progress through the hub
	pipelineService, err := services.NewPipelineServiceWithPaths(a.Paths, hub, a.Metrics, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline service: %w", err)
	}
	a.PipelineService = pipelineService

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that does not wrap the ResponseWriter, so the
	// WebSocket upgrade still reaches the raw connection
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route with minimal middleware and tracing.
	// MUST be registered before the full middleware group.
	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Get("/ws", wsHandler.Handle)

	// Liveness probe and Prometheus metrics stay outside the full
	// middleware group as well
	healthHandler := handlers.NewHealthHandler(a.WebSocketHub, a.Paths, VERSION, a.Logger)
	r.Get("/healthz", healthHandler.Health)
	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	// Everything else gets the full middleware chain
	r.Group(func(r chi.Router) {
		if a.OTelProviders != nil {
			otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
			if err != nil {
				a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
			} else {
				r.Use(otelMiddleware.Handler)
			}
		}
		if a.Metrics != nil {
			r.Use(customMiddleware.BusinessMetricsMiddleware(a.Metrics))
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))

		secureHeaders := customMiddleware.DefaultSecureHeaders()
		secureHeaders.DevMode = a.Config.Logging.Development
		r.Use(secureHeaders.Handler)

		r.Use(customMiddleware.CORS(a.getCORSConfig()))
		r.Use(customMiddleware.Compress(5))

		// Rate limiting
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := errors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.ContentTypeValidator("application/json"))
		r.Use(validation.ValidateRequest)

		// Metadata endpoints answer from memory or small settings
		// files, so the standard read timeout applies
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			waveHandler := handlers.NewWaveHandler(a.WaveService, a.Logger, errorHandler)
			r.Mount("/waves", waveHandler.Routes())

			datasetHandler := handlers.NewDatasetHandler(a.DatasetService, a.Logger, errorHandler)
			r.Mount("/datasets", datasetHandler.Routes())

			colorHandler := handlers.NewColorHandler(a.ColorStore, a.Logger, errorHandler)
			r.Mount("/colors", colorHandler.Routes())
		})

		// Analysis and pipeline requests can chew through large
		// datasets, so they get the operation timeout instead
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout, a.Logger))

			analysisHandler := handlers.NewAnalysisHandler(a.AnalysisService, a.Logger, errorHandler)
			r.Mount("/analyze", analysisHandler.Routes())

			pipelineHandler := handlers.NewPipelineHandler(a.PipelineService, a.Logger, errorHandler)
			r.Mount("/pipeline", pipelineHandler.Routes())
		})
	})
}

// getCORSConfig returns CORS configuration based on environment
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	cfg.AllowedOrigins = []string{
		fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
	}
	if a.Config.Logging.Development {
		// Allow the frontend dev server during development
		cfg.AllowedOrigins = append(cfg.AllowedOrigins,
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		)
	}
	if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, a.Config.Security.AllowedOrigins...)
	}

	a.Logger.Info("CORS configured",
		slog.Bool("development", a.Config.Logging.Development),
		slog.Any("allowed_origins", cfg.AllowedOrigins))

	return cfg
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("executable_dir", a.Paths.ExecutableDir),
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("settings_dir", a.Paths.SettingsDir),
		slog.String("exports_dir", a.Paths.ExportsDir),
		slog.String("logs_dir", a.Paths.LogsDir))

	// Sweep finished pipeline runs in the background
	a.cleanupQuit = make(chan struct{})
	go a.sweepFinishedRuns()

	go a.SystemCollector.Start(ctx)

	// Start server
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	// Perform health check on critical paths
	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)),
		slog.Int("registered_waves", a.Registry.Count()))

	return nil
}

// sweepFinishedRuns drops finished pipeline runs past the retention
// window so the run list does not grow without bound.
func (a *Application) sweepFinishedRuns() {
	ticker := time.NewTicker(runSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.PipelineService.CleanupOldRuns(runRetention)
		case <-a.cleanupQuit:
			return
		}
	}
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Stop server first; hijacked WebSocket connections survive
	// Shutdown, so clients are still reachable below
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.cleanupQuit != nil {
		close(a.cleanupQuit)
		a.cleanupQuit = nil
	}

	a.SystemCollector.Stop()

	// Best-effort shutdown notice to connected clients before the hub
	// goes away
	a.WebSocketHub.BroadcastError("server_shutdown", "server is shutting down")
	a.WebSocketHub.Stop()

	// Cancel running pipeline work
	a.PipelineService.Stop()

	// Shutdown OpenTelemetry providers
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start application
	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	// Wait for interrupt or a fatal server error
	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	// Graceful shutdown on a fresh context; ctx may already be cancelled
	return a.Stop(context.Background())
}

// performStartupHealthCheck performs health checks on critical paths and resources
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	// Check critical directories are writable
	directories := map[string]string{
		"Data":     a.Paths.DataDir,
		"Cache":    a.Paths.CacheDir,
		"Settings": a.Paths.SettingsDir,
		"Exports":  a.Paths.ExportsDir,
		"Logs":     a.Paths.LogsDir,
	}

	for name, dir := range directories {
		// Try to create a test file to verify write access
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	if a.Config.Sheets.Enabled && !config.FileExists(a.Paths.CredentialsFile) {
		warnings = append(warnings, fmt.Sprintf("sheets export enabled but credentials missing: %s", a.Paths.CredentialsFile))
	}

	// A missing processed dataset is normal on first start
	if !config.FileExists(a.Paths.ProcessedDataCSV) {
		a.Logger.InfoContext(ctx, "No processed dataset yet",
			slog.String("path", a.Paths.ProcessedDataCSV),
			slog.String("action", "run the cleaning pipeline or place files under data/"))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
