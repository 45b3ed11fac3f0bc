package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	chathandler "github.com/citmax/central-assinante-go/internal/chat/handler"
	chatservice "github.com/citmax/central-assinante-go/internal/chat/service"
	"github.com/citmax/central-assinante-go/internal/config"
	"github.com/citmax/central-assinante-go/internal/domain"
	"github.com/citmax/central-assinante-go/internal/handler"
	"github.com/citmax/central-assinante-go/internal/infra/cache"
	"github.com/citmax/central-assinante-go/internal/infra/gemini"
	"github.com/citmax/central-assinante-go/internal/infra/observability"
	"github.com/citmax/central-assinante-go/internal/infra/resilience"
	"github.com/citmax/central-assinante-go/internal/infra/sgp"
	"github.com/citmax/central-assinante-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("sgp_base_url", cfg.SGPBaseURL),
		zap.String("gemini_model", cfg.GeminiModel),
		zap.Bool("gemini_configured", cfg.GeminiAPIKey != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("conversation_ttl", cfg.ConversationTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("session_ttl", cfg.SessionTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "central-assinante")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- SGP gateway ---
	gateway := sgp.NewClient(sgp.Config{
		BaseURL:     cfg.SGPBaseURL,
		RadiusURL:   cfg.SGPRadiusURL,
		URABaseURL:  cfg.SGPURABaseURL,
		AppName:     cfg.SGPAppName,
		AppToken:    cfg.SGPAppToken,
		HTTPTimeout: cfg.HTTPTimeout,
		Resilience: resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		},
	}, logger)

	// --- Sessions & portal ---
	sessions := service.NewSessionManager(cfg.JWTSecret, cfg.SealKey, cfg.SessionTTL)
	contractCache := cache.New[[]domain.Contract](cfg.CacheTTL)
	portal := service.NewPortalService(gateway, sessions, contractCache, metrics, logger)

	// --- Chat ---
	model := gemini.NewModel(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	dispatcher := chatservice.NewToolDispatcher(gateway, metrics, logger)
	builder := chatservice.NewContextBuilder(gateway, logger)
	conversations := cache.NewWithEvict(cfg.ConversationTTL,
		func(id string, o *chatservice.Orchestrator) {
			o.Close()
			logger.Info("conversation expired", zap.String("conversation_id", id))
		})

	chat := chathandler.New(portal, conversations, func() *chatservice.Orchestrator {
		return chatservice.NewOrchestrator(model, dispatcher, builder, metrics, logger)
	}, handler.SessionFromContext, logger)

	// --- Router ---
	router := handler.NewRouter(portal, sessions, chat, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
