package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leafwise/leafwise/api/handlers"
	"github.com/leafwise/leafwise/config"
	"github.com/leafwise/leafwise/detector"
	"github.com/leafwise/leafwise/embedding"
	"github.com/leafwise/leafwise/engine"
	"github.com/leafwise/leafwise/internal/metrics"
	"github.com/leafwise/leafwise/internal/server"
	"github.com/leafwise/leafwise/llm"
	"github.com/leafwise/leafwise/llm/tokenizer"
	"github.com/leafwise/leafwise/rag"
	"github.com/leafwise/leafwise/session"
)

// Server wires the conversation engine behind the HTTP surface.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	engine         *engine.Engine
	knowledge      *rag.InMemoryVectorStore
	redisClient    *redis.Client
	healthHandler  *handlers.HealthHandler
	sessionHandler *handlers.SessionHandler
	turnHandler    *handlers.TurnHandler
}

// NewServer creates a server from loaded configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start builds the engine and starts the HTTP and metrics servers.
func (s *Server) Start() error {
	if err := s.initEngine(); err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

func (s *Server) initEngine() error {
	knowledge, err := rag.LoadSnapshot(s.cfg.Knowledge.SnapshotPath, s.logger)
	if err != nil {
		return fmt.Errorf("load knowledge snapshot: %w", err)
	}
	s.knowledge = knowledge

	embedder := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:     s.cfg.Embedding.APIKey,
		BaseURL:    s.cfg.Embedding.BaseURL,
		Model:      s.cfg.Embedding.Model,
		Dimensions: s.cfg.Embedding.Dimensions,
		Timeout:    s.cfg.Embedding.Timeout,
	})

	retriever := rag.NewRetriever(embedder, knowledge, rag.RetrieverConfig{
		TopK:    s.cfg.Retrieval.TopK,
		FetchK:  s.cfg.Retrieval.FetchK,
		Timeout: s.cfg.Retrieval.Timeout,
	}, s.logger)

	provider := llm.NewOpenAICompat(llm.OpenAICompatConfig{
		ProviderName:      s.cfg.LLM.Provider,
		APIKey:            s.cfg.LLM.APIKey,
		BaseURL:           s.cfg.LLM.BaseURL,
		DefaultModel:      s.cfg.LLM.Model,
		Timeout:           s.cfg.LLM.Timeout,
		RequestsPerSecond: s.cfg.LLM.RequestsPerSecond,
	}, s.logger)

	sessions, err := s.initSessionStore()
	if err != nil {
		return err
	}

	var det detector.Detector
	if s.cfg.Detector.Enabled {
		det = detector.NewHTTPDetector(detector.HTTPConfig{
			BaseURL:       s.cfg.Detector.BaseURL,
			APIKey:        s.cfg.Detector.APIKey,
			Timeout:       s.cfg.Detector.Timeout,
			MinConfidence: s.cfg.Detector.MinConfidence,
		}, s.logger)
	} else {
		s.logger.Info("image detection disabled")
	}

	eng, err := engine.New(engine.Options{
		Sessions:  sessions,
		Detector:  det,
		Retriever: retriever,
		Provider:  provider,
		Tokenizer: tokenizer.New(s.cfg.LLM.Model),
		Assembler: engine.AssemblerConfig{
			MaxTokens:    s.cfg.Context.MaxTokens,
			HistoryLimit: s.cfg.Context.HistoryLimit,
			SystemPrompt: s.cfg.Context.SystemPrompt,
		},
		Orchestrator: engine.OrchestratorConfig{
			Model:           s.cfg.LLM.Model,
			Temperature:     float32(s.cfg.LLM.Temperature),
			MaxOutputTokens: s.cfg.LLM.MaxOutputTokens,
			Timeout:         s.cfg.LLM.Timeout,
		},
		Metrics: metrics.NewCollector("leafwise", prometheus.DefaultRegisterer),
		Logger:  s.logger,
	})
	if err != nil {
		return err
	}

	s.engine = eng
	return nil
}

func (s *Server) initSessionStore() (session.Store, error) {
	switch s.cfg.Session.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
			PoolSize: s.cfg.Redis.PoolSize,
		})
		s.redisClient = client
		s.logger.Info("using redis session store", zap.String("addr", s.cfg.Redis.Addr))
		return session.NewRedisStore(client, s.cfg.Session.TTL, s.logger), nil
	case "memory", "":
		return session.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", s.cfg.Session.Backend)
	}
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck("knowledge", func() error {
		count, err := s.knowledge.Count(context.Background())
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("knowledge store is empty")
		}
		return nil
	})
	if s.redisClient != nil {
		s.healthHandler.RegisterCheck("redis", func() error {
			return s.redisClient.Ping(context.Background()).Err()
		})
	}

	s.sessionHandler = handlers.NewSessionHandler(s.engine, s.logger)
	s.turnHandler = handlers.NewTurnHandler(s.engine, s.cfg.Server.MaxImageBytes, s.logger)
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /api/v1/sessions", s.sessionHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.sessionHandler.HandleGet)
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", s.sessionHandler.HandleHistory)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.sessionHandler.HandleDelete)
	mux.HandleFunc("POST /api/v1/sessions/{id}/turns", s.turnHandler.HandleSubmit)

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
	)

	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	return s.metricsManager.Start()
}

// WaitForShutdown blocks until the HTTP server stops, then cleans up.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown gracefully stops all components.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown failed", zap.Error(err))
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("redis close failed", zap.Error(err))
		}
	}

	s.logger.Info("Shutdown complete")
}
