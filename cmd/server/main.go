package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/todoshare/server-go/internal/blob"
	"github.com/todoshare/server-go/internal/config"
	"github.com/todoshare/server-go/internal/database"
	"github.com/todoshare/server-go/internal/handler"
	"github.com/todoshare/server-go/internal/jobs"
	"github.com/todoshare/server-go/internal/metrics"
	"github.com/todoshare/server-go/internal/middleware"
	"github.com/todoshare/server-go/internal/redis"
	"github.com/todoshare/server-go/internal/repository"
	"github.com/todoshare/server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations applied")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	blobCtx, blobCancel := context.WithTimeout(context.Background(), 30*time.Second)
	blobClient, err := blob.NewClient(blobCtx, blob.Config{
		Endpoint:  cfg.BlobEndpoint,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
		Bucket:    cfg.BlobBucket,
		UseSSL:    cfg.BlobUseSSL,
	})
	blobCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to blob store")
	}
	log.Info().Str("bucket", cfg.BlobBucket).Msg("blob store connected")

	todoRepo := repository.NewTodoRepository(db)
	shareRepo := repository.NewShareRepository(db)

	sessionStore := service.NewSessionStore(redisClient, cfg.CookieSecret)
	oauthService := service.NewOAuthService(sessionStore, service.GitHubConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.OAuthRedirectBase + "/auth/github/callback",
	}, nil, cfg.PendingTTL(), cfg.SessionTTL())

	todoService := service.NewTodoService(todoRepo, shareRepo, log.Logger)
	tagService := service.NewTagService(redisClient)
	attachmentService := service.NewAttachmentService(blobClient)

	// Demo endpoints call external hosts with user-supplied parameters,
	// so their outbound requests go through an SSRF-guarded client.
	weatherService := service.NewWeatherService(newOutboundClient(10*time.Second), "")
	assistService := service.NewAssistService(nil, cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	demoState := service.NewDemoState()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	sessionMiddleware := middleware.NewSessionMiddleware(sessionStore)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, 0)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxRequestBodyBytes)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(oauthService, cfg, collector, isProduction)
	todoHandler := handler.NewTodoHandler(todoService, cfg, collector)
	tagHandler := handler.NewTagHandler(tagService)
	attachmentHandler := handler.NewAttachmentHandler(attachmentService, collector)
	demoHandler := handler.NewDemoHandler(weatherService, assistService, demoState)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(collector.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	r.Route("/auth", func(r chi.Router) {
		r.Use(sessionMiddleware.Attach)
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(sessionMiddleware.Attach)
		r.Use(rateLimitMiddleware.Handler)

		r.Get("/me", authHandler.Me)

		r.Mount("/todos", todoHandler.Routes())
		r.Mount("/tags", tagHandler.Routes())

		r.Post("/upload", attachmentHandler.Upload)
		r.Mount("/attachments", attachmentHandler.Routes())

		r.Get("/time", demoHandler.Time)
		r.Get("/weather", demoHandler.Weather)
		r.Get("/ai", demoHandler.Chat)
		r.Post("/ai/optimize", demoHandler.Optimize)
		r.Get("/counter", demoHandler.Counter)
		r.Get("/shorten", demoHandler.Shorten)
	})

	r.Get("/counter", demoHandler.CounterPage)
	r.Get("/s/{code}", demoHandler.Redirect)

	cleanupJob := jobs.NewCleanupJob(shareRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerRequestTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// newOutboundClient builds an HTTP client that refuses to dial private,
// loopback, link-local and metadata addresses. The check runs in the
// dialer after DNS resolution, which also covers DNS rebinding.
func newOutboundClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(cfg).Client
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
