package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatrelay/internal/auth"
	"chatrelay/internal/blob"
	"chatrelay/internal/catalog"
	"chatrelay/internal/config"
	"chatrelay/internal/dispatch"
	"chatrelay/internal/domain/repositories"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/handler"
	"chatrelay/internal/metrics"
	"chatrelay/internal/middleware"
	"chatrelay/internal/repository/postgres"
	"chatrelay/internal/service/conversation"
	"chatrelay/internal/service/history"
	"chatrelay/internal/service/identity"
	"chatrelay/internal/service/settings"
	"chatrelay/internal/upstream"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.Log.Enabled() {
		logFile, err := cfg.Log.OpenLogFile(time.Now())
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"auth_enabled", cfg.AuthEnabled,
		"history_enabled", cfg.HistoryEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load deployment catalog: %v", err)
	}

	// History store (optional)
	var (
		conversationRepo repositories.ConversationRepository
		messageRepo      repositories.MessageRepository
		settingsRepo     repositories.UserSettingsRepository
	)
	if cfg.HistoryEnabled() {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		}
		conversationRepo = postgres.NewConversationRepository(repoConfig)
		messageRepo = postgres.NewMessageRepository(repoConfig)
		settingsRepo = postgres.NewUserSettingsRepository(repoConfig)
		logger.Info("history store connected")
	} else {
		logger.Warn("DATABASE_URL not set, history routes are disabled")
	}

	// Attachment storage (optional)
	var blobs services.BlobStore
	if cfg.Blob.Bucket != "" {
		store, err := blob.NewGCSStore(ctx, cfg.Blob, logger)
		if err != nil {
			log.Fatalf("Failed to create blob store: %v", err)
		}
		defer store.Close()
		blobs = store
	}

	// Identity
	var verifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		verifier, err = auth.NewJWTVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer verifier.Close()
	}
	allowSample := !cfg.AuthEnabled || cfg.Environment == "dev"
	if allowSample {
		logger.Warn("unauthenticated requests act as the sample user", "user_id", identity.SampleUserID)
	}
	resolver := identity.NewResolver(verifier, allowSample, logger)

	// Upstream clients. No client timeout: streamed turns are bounded by the request context.
	httpClient := &http.Client{}
	dispatcher := dispatch.New(cfg, dispatch.NewGraphGroupResolver(cfg.GraphBaseURL, logger), logger)
	plainClient := upstream.NewPlainClient(cfg.OpenAI, httpClient)
	retrievalClient := upstream.NewRetrievalClient(httpClient)

	// Services
	titleModel := cfg.OpenAI.Model
	if titleModel == "" {
		titleModel = cat.DefaultDeployment()
	}
	conversationService := conversation.NewService(dispatcher, retrievalClient, plainClient, logger)
	historyService := history.NewHistoryService(
		conversationRepo,
		messageRepo,
		conversationService,
		history.NewTitleGenerator(plainClient, titleModel, logger),
		history.Options{Blobs: blobs, EnableFeedback: cfg.EnableFeedback},
		logger,
	)
	settingsService := settings.NewSettingsService(cfg, cat, settingsRepo, logger)

	// Handlers
	conversationHandler := handler.NewConversationHandler(conversationService, logger)
	historyHandler := handler.NewHistoryHandler(historyService, logger)
	settingsHandler := handler.NewFrontendSettingsHandler(settingsService, logger)

	logger.Info("services initialized")

	authed := middleware.Auth(resolver, logger)
	identified := middleware.Identify(resolver, logger)
	limited := func(h http.Handler) http.Handler { return h }
	if cfg.RateLimitPerMinute > 0 {
		limited = middleware.RateLimit(middleware.NewUserLimiter(cfg.RateLimitPerMinute), logger)
	}
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }
	turn := func(mw func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler { return mw(limited(h)) }

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	// Turn routes
	mux.Handle("POST /conversation", turn(identified, conversationHandler.Converse))
	mux.Handle("POST /history/generate", turn(authed, historyHandler.Generate))

	// History routes
	mux.Handle("POST /history/update", protect(historyHandler.Update))
	mux.Handle("POST /history/message_feedback", protect(historyHandler.MessageFeedback))
	mux.Handle("DELETE /history/delete", protect(historyHandler.Delete))
	mux.Handle("GET /history/list", protect(historyHandler.List))
	mux.Handle("POST /history/read", protect(historyHandler.Read))
	mux.Handle("POST /history/rename", protect(historyHandler.Rename))
	mux.Handle("DELETE /history/delete_all", protect(historyHandler.DeleteAll))
	mux.Handle("POST /history/clear", protect(historyHandler.Clear))
	mux.HandleFunc("GET /history/ensure", historyHandler.Ensure)

	// Frontend settings routes
	mux.Handle("GET /frontend_settings/read", identified(http.HandlerFunc(settingsHandler.Read)))
	mux.Handle("POST /frontend_settings/write", protect(settingsHandler.Write))

	if cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(cfg.StaticDir)))
		logger.Info("serving static frontend", "dir", cfg.StaticDir)
	}

	// Build middleware chain
	// Order: CORS → Recovery → Routes (auth is applied per route)
	var root http.Handler = mux
	root = middleware.Recovery(logger)(root)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived streamed turns
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
