// Package main is the entry point for the Ad Manager server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admanager/internal/cache"
	"admanager/internal/catalog"
	"admanager/internal/config"
	"admanager/internal/database"
	"admanager/internal/geo"
	"admanager/internal/handlers"
	"admanager/internal/kijiji"
	"admanager/internal/middleware"
	"admanager/internal/render"
	"admanager/internal/repost"
	"admanager/internal/router"
	"admanager/internal/session"
	"admanager/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Valkey (sessions + metadata cache).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	sessionStore := session.NewStore(valkeyClient)

	// Upstream API client. The base URLs default to the live endpoints and
	// are overridable for testing against a mock.
	api := kijiji.NewClient(kijiji.Config{
		BaseURL:   cfg.UpstreamBaseURL,
		UploadURL: cfg.UpstreamUploadURL,
	})

	// Postal-code geocoding from the GeoNames dataset. The payload degrades
	// to postal-code-only addresses when the file is missing.
	geoIndex, err := geo.Load(cfg.GeoDataPath)
	if err != nil {
		slog.Warn("geo data unavailable, ads will post without coordinates",
			"path", cfg.GeoDataPath, "error", err)
		geoIndex = geo.Empty()
	} else {
		slog.Info("geo data loaded", "path", cfg.GeoDataPath, "areas", geoIndex.Len())
	}

	// Category and location trees, cached in Valkey across sessions.
	metadataCache := cache.NewMetadataCache(valkeyClient, cache.DefaultMetadataTTL)
	catalogService := catalog.NewService(api, metadataCache)

	// Initialize the HTML template renderer.
	renderer, err := render.New(sessionStore)
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	records := store.NewAdStore(db)

	// Background repost workers. Each job waits out the cooldown between
	// delete and repost, so the queue holds more jobs than workers.
	scheduler := repost.NewScheduler(api, records, cfg.RepostWorkers, cfg.RepostWorkers*8)
	defer scheduler.Shutdown()

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	defer loginLimiter.Stop()

	// Create handler groups with their dependencies.
	h := router.Handlers{
		Auth:          handlers.NewAuth(renderer, sessionStore, api),
		Ads:           handlers.NewAds(renderer, sessionStore, api, records, scheduler, cfg.RepostDelay),
		Post:          handlers.NewPost(renderer, sessionStore, api, catalogService, records, geoIndex),
		Conversations: handlers.NewConversations(renderer, sessionStore, api),
		JSON:          handlers.NewJSON(sessionStore, api, catalogService),
	}

	r := router.New(sessionStore, h, loginLimiter)

	// WriteTimeout must accommodate the upstream conversation endpoints,
	// which routinely take tens of seconds to answer.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
