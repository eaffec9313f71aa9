package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/config"
	"github.com/claude-afk/afk/internal/database"
	"github.com/claude-afk/afk/internal/handler"
	"github.com/claude-afk/afk/internal/jobs"
	"github.com/claude-afk/afk/internal/middleware"
	"github.com/claude-afk/afk/internal/push"
	"github.com/claude-afk/afk/internal/redis"
	"github.com/claude-afk/afk/internal/repository"
	"github.com/claude-afk/afk/internal/service"
	"github.com/claude-afk/afk/internal/sse"
	"github.com/claude-afk/afk/internal/util"
)

func main() {
	genVAPID := flag.Bool("gen-vapid", false, "print a new VAPID key pair and exit")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *genVAPID {
		privateKey, publicKey, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate VAPID keys")
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.StartupPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()
	log.Info().Str("driver", cfg.DatabaseDriver).Msg("database connected")

	healthChecks := map[string]handler.HealthCheck{"database": db.Ping}

	var redisClient *redis.Client
	var limiter middleware.Limiter = middleware.NewMemoryRateLimiter()
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.StartupPingTimeout)
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		limiter = service.NewRateLimiter(redisClient.Client)
		healthChecks["redis"] = redisClient.Check
		log.Info().Msg("redis connected")
	} else {
		log.Info().Msg("redis not configured, using in-process rate limiting and event fan-out")
	}

	pairingRepo := repository.NewPairingSessionRepository(db.DB)
	decisionRepo := repository.NewPendingDecisionRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	dispatcher := push.NewDispatcher(push.Credentials{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
	}, cfg.PushTTL(), nil)

	var sealer *util.Sealer
	if cfg.EncryptionKey != "" {
		sealer, err = util.NewSealer(cfg.EncryptionKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid encryption key")
		}
	}

	pairingService := service.NewPairingService(pairingRepo, sealer, cfg.PublicBaseURL)
	decisionService := service.NewDecisionService(decisionRepo, pairingService, dispatcher, broker)

	deviceAuth := middleware.NewDeviceAuthMiddleware()
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	pairingLimit := middleware.NewIPRateLimitMiddleware(limiter, cfg.PairingRateLimitPerMin, config.RateLimitWindow, "pairing")
	notifyLimit := middleware.NewDeviceRateLimitMiddleware(limiter, cfg.NotifyRateLimitPerMin, config.RateLimitWindow, "notify")

	pairingHandler := handler.NewPairingHandler(pairingService, pairingLimit.Handler)
	decisionHandler := handler.NewDecisionHandler(decisionService, broker, deviceAuth.Handler, notifyLimit.Handler)
	vapidHandler := handler.NewVapidHandler(dispatcher)
	healthHandler := handler.NewHealthHandler(healthChecks)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	// /decision carries its own timeouts so the events stream can stay open.
	r.Mount("/decision", decisionHandler.Routes())

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.Method(http.MethodGet, "/health", healthHandler)

		r.Mount("/pairing", pairingHandler.Routes())
		r.Mount("/notify", decisionHandler.NotifyRoutes())
		r.Method(http.MethodGet, "/vapid-public-key", vapidHandler)
	})

	r.With(chimiddleware.Timeout(config.ServerRequestTimeout), securityHeadersMiddleware.Handler).
		NotFound(handler.StaticFileServer(cfg.StaticDir).ServeHTTP)

	if retention := cfg.DecisionRetention(); retention > 0 {
		cleanupJob := jobs.NewCleanupJob(decisionRepo, retention, config.CleanupJobInterval)
		cleanupJob.Start(context.Background())
		defer cleanupJob.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
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
