package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"www.github.com/Wanderer0074348/MokabuLens/src/auth"
	"www.github.com/Wanderer0074348/MokabuLens/src/cache"
	"www.github.com/Wanderer0074348/MokabuLens/src/config"
	"www.github.com/Wanderer0074348/MokabuLens/src/logger"
	"www.github.com/Wanderer0074348/MokabuLens/src/metrics"
	"www.github.com/Wanderer0074348/MokabuLens/src/middleware"
	"www.github.com/Wanderer0074348/MokabuLens/src/router"
	"www.github.com/Wanderer0074348/MokabuLens/src/server"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	} else {
		log.Println("Loaded .env file")
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.SetupDefault(os.Stdout, cfg.Log.Level)
	appLogger.Info("config loaded", slog.String("environment", cfg.Environment))
	if cfg.Auth.UsingDevKey || cfg.Google.UsingPlaceholder {
		appLogger.Warn("using development fallback credentials; never deploy this configuration")
	}

	redisCache, err := cache.NewRedisCache(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer redisCache.Close()
	appLogger.Info("redis connected", slog.String("address", cfg.Redis.Address))

	codec, err := auth.NewTokenCodec(
		[]byte(cfg.Auth.Secret),
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithCodecLogger(appLogger),
	)
	if err != nil {
		log.Fatalf("Failed to initialize token codec: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	provider := auth.NewGoogleProvider(auth.GoogleProviderConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Scopes:       cfg.Google.Scopes,
	})

	sessions := auth.NewSessionService(
		codec,
		auth.NewStateStore(redisCache.GetClient()),
		auth.SessionConfig{
			SessionTTL:      cfg.Auth.SessionTTL,
			StateTTL:        cfg.Auth.StateTTL,
			ProviderTimeout: cfg.Auth.ProviderTimeout,
			SignInPath:      cfg.Auth.SignInPath,
			CookieName:      cfg.Auth.CookieName,
			CookieDomain:    cfg.Auth.CookieDomain,
			CookieSecure:    cfg.Auth.CookieSecure,
			CookieSameSite:  auth.ParseSameSite(cfg.Auth.CookieSameSite),
		},
		auth.WithProvider(provider),
		auth.WithLogger(appLogger),
		auth.WithRecorder(recorder),
	)

	policy := router.NewPolicy(cfg.Policy.Protected, cfg.Policy.Excluded)
	gate := router.NewAccessGate(policy, codec, cfg.Auth.SignInPath, cfg.Auth.CallbackPath)
	appLogger.Info("access gate ready",
		slog.Any("protected", gate.Policy().Protected),
		slog.Any("excluded", gate.Policy().Excluded),
	)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(
			middleware.PerMinute(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst, cfg.RateLimit.CleanupInterval),
			appLogger,
		)
		defer limiter.Stop()
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := server.NewEngine(server.Deps{
		Sessions:       sessions,
		Verifier:       codec,
		Gate:           gate,
		Health:         redisCache,
		Recorder:       recorder,
		Gatherer:       registry,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         appLogger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	appLogger.Info("server running", slog.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", slog.String("error", err.Error()))
		return
	}

	appLogger.Info("server exited")
}
