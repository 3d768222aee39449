package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	echoapi "go.pilab.hu/sessiongate/api/echo"
	"go.pilab.hu/sessiongate/cache"
	redisstore "go.pilab.hu/sessiongate/cache/redis"
	"go.pilab.hu/sessiongate/config"
	"go.pilab.hu/sessiongate/idp"
	"go.pilab.hu/sessiongate/internal/metrics"
	"go.pilab.hu/sessiongate/log"
	"go.pilab.hu/sessiongate/mongodb"
	"go.pilab.hu/sessiongate/services"
	"go.pilab.hu/sessiongate/tracing"
)

var (
	appLogger  log.Logger
	httpServer *http.Server
)

func main() {
	// Load configuration first
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize Logger
	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		fallbackLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		fallbackLogger.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting sessiongate server...")
	appLogger.Info(context.Background(), "Configuration loaded successfully", map[string]interface{}{
		"http_port":         cfg.HTTPPort,
		"provider_base_url": cfg.ProviderBaseURL,
		"mongo_db_name":     cfg.MongoDBName,
		"redis_addr":        cfg.RedisAddr,
		"cookie_name":       cfg.CookieName,
		"session_ttl_hours": cfg.SessionTTLHours,
		"dev_mode":          cfg.DevMode,
		"log_level":         cfg.LogLevel,
	})

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	tracerProvider, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err, nil)
	}

	// --- Initialize Dependencies ---
	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize UserRepository", err, nil)
	}

	// Verified-session cache: shared Redis when configured, in-process
	// otherwise. Both honor subject-wide invalidation on revoke.
	var sessionStore cache.SessionStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", pingErr, map[string]interface{}{
				"redis_addr": cfg.RedisAddr,
			})
		}
		sessionStore = redisstore.NewSessionStore(redisClient, cfg.RedisPrefix)
		appLogger.Info(ctx, "Using Redis session cache", map[string]interface{}{"redis_addr": cfg.RedisAddr})
	} else {
		memStore := cache.NewMemorySessionStore(time.Minute)
		defer memStore.Close()
		sessionStore = memStore
		appLogger.Info(ctx, "Using in-memory session cache")
	}

	// Provider gateway and services
	provider := idp.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout())
	sessionManager := services.NewSessionManager(provider, sessionStore, cfg.CookieName, cfg.SessionTTL())
	reconciler := services.NewAccountReconciler(userRepo)

	authAPI := echoapi.NewAuthAPI(provider, sessionManager, reconciler, cfg.DevMode)

	// --- End Dependency Initialization ---

	httpServer = echoapi.NewHTTPServer(cfg, authAPI, mongodb.Ping)
	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	appLogger.Info(context.Background(), "Server components initialized. Waiting for interrupt signal...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
		}
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
	}

	appLogger.Info(shutdownCtx, "Closing MongoDB connection...")
	mongodb.CloseMongoDB(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
