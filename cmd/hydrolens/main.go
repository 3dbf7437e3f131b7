package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hydrolens/hydrolens/internal/config"
	"github.com/hydrolens/hydrolens/internal/domain"
	logpkg "github.com/hydrolens/hydrolens/internal/logger"
	"github.com/hydrolens/hydrolens/internal/metrics"
	"github.com/hydrolens/hydrolens/internal/version"

	dbRedis "github.com/hydrolens/hydrolens/internal/db/redis"
	"github.com/hydrolens/hydrolens/internal/repository/embcache"
	passagesrepo "github.com/hydrolens/hydrolens/internal/repository/passages"
	recordsrepo "github.com/hydrolens/hydrolens/internal/repository/records"
	chiTransport "github.com/hydrolens/hydrolens/internal/transport/chi"
	openaiProv "github.com/hydrolens/hydrolens/internal/transport/openai"
	assembleuc "github.com/hydrolens/hydrolens/internal/usecase/assemble"
	explainuc "github.com/hydrolens/hydrolens/internal/usecase/explain"
	healthuc "github.com/hydrolens/hydrolens/internal/usecase/health"
	routeruc "github.com/hydrolens/hydrolens/internal/usecase/router"
	semanticuc "github.com/hydrolens/hydrolens/internal/usecase/semantic"
	sessionuc "github.com/hydrolens/hydrolens/internal/usecase/session"
	structureduc "github.com/hydrolens/hydrolens/internal/usecase/structured"
	synthesizeuc "github.com/hydrolens/hydrolens/internal/usecase/synthesize"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting hydrolens API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register orchestration metrics explicitly (no init())
	metrics.RegisterOrchestratorMetrics()

	// Embedder chain: OpenAI -> Cached -> Instruction. The instruction sits
	// outermost so the cache key includes it.
	baseEmbedder := openaiProv.NewEmbedder(&openaiProv.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	var embedder domain.Embedder = embcache.New(
		baseEmbedder, store,
		time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)
	if cfg.Embedding.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	generator := openaiProv.NewGenerator(&openaiProv.GeneratorConfig{
		APIKey:    cfg.Generation.APIKey,
		BaseURL:   cfg.Generation.BaseURL,
		Model:     cfg.Generation.Model,
		MaxTokens: cfg.Generation.MaxTokens,
		Provider:  cfg.Generation.Provider,
		Logger:    logger,
	})

	// Repositories over the registry store
	records := recordsrepo.New(store)
	passages := passagesrepo.New(store, cfg.Embedding.Dimensions).WithHNSW(passagesrepo.HNSWConfig{
		M:           cfg.Embedding.HNSWM,
		EFConstruct: cfg.Embedding.HNSWEFConstruct,
	})

	if err := records.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure records index", zap.Error(err))
	}
	if err := passages.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure passages index", zap.Error(err))
	}

	// Retrieval tools
	structuredTool := structureduc.New(records, logger)
	semanticTool := semanticuc.New(
		embedder, passages,
		time.Duration(cfg.Embedding.TimeoutSec)*time.Second,
		logger,
	)
	explainTool := explainuc.New(records, logger)

	// Orchestration pipeline
	route := routeruc.New(routeruc.Config{
		MaxTools:    cfg.Orchestrator.MaxTools,
		TopK:        cfg.Orchestrator.TopK,
		FilterLimit: cfg.Orchestrator.FilterLimit,
		Regions:     cfg.Orchestrator.Regions,
	})
	assembler := assembleuc.New(cfg.Orchestrator.ContextBudgetChars)
	synthesizer := synthesizeuc.New(
		generator,
		time.Duration(cfg.Generation.TimeoutSec)*time.Second,
		logger,
	)
	sessions := sessionuc.New(
		[]sessionuc.Tool{structuredTool, semanticTool, explainTool},
		route, assembler, synthesizer,
		time.Duration(cfg.Orchestrator.SessionBudgetSec)*time.Second,
		cfg.Orchestrator.MaxConcurrentSessions,
		logger,
	)

	healthSvc := healthuc.New(store, baseEmbedder)

	server := chiTransport.NewServer(sessions, explainTool, healthSvc)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
