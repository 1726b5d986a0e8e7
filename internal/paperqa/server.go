// Package paperqa provides the paperqa server implementation.
package paperqa

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/paperqa/internal/paperqa/biz"
	"github.com/kart-io/paperqa/internal/paperqa/handler"
	"github.com/kart-io/paperqa/internal/paperqa/router"
	"github.com/kart-io/paperqa/pkg/infra/app"
	"github.com/kart-io/paperqa/pkg/infra/pool"
	"github.com/kart-io/paperqa/pkg/infra/server"
	"github.com/kart-io/paperqa/pkg/infra/tracing"
	"github.com/kart-io/paperqa/pkg/llm"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/paperqa/pkg/llm/ollama"
	_ "github.com/kart-io/paperqa/pkg/llm/openai"

	llmopts "github.com/kart-io/paperqa/pkg/options/llm"
	logopts "github.com/kart-io/paperqa/pkg/options/logger"
	pipeopts "github.com/kart-io/paperqa/pkg/options/pipeline"
	httpopts "github.com/kart-io/paperqa/pkg/options/server/http"
	traceopts "github.com/kart-io/paperqa/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "paperqa"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	TracingOptions   *traceopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	PipelineOptions  *pipeopts.Options
}

// Server represents the paperqa server.
type Server struct {
	srv     *server.Manager
	tracing *tracing.Provider
	pools   *pool.Manager
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(_ context.Context) (*Server, error) {
	printBanner(cfg)

	// SSE 流必须活过整条流水线，固定写超时会截断长答案
	if wt := cfg.HTTPOptions.WriteTimeout; wt != 0 && wt <= cfg.PipelineOptions.OverallTimeout {
		return nil, fmt.Errorf("http.write-timeout (%s) must be 0 or exceed pipeline.overall-timeout (%s)",
			wt, cfg.PipelineOptions.OverallTimeout)
	}

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting paperqa service...")

	// 2. 初始化链路追踪
	tracingProvider, err := tracing.NewProvider(cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Infow("Tracing initialized",
		"enabled", cfg.TracingOptions.Enabled,
		"exporter", cfg.TracingOptions.ExporterType,
	)

	// 3. 初始化 LLM 供应商
	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	rawEmbedder, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	embedProvider := llm.NewCachedEmbeddingProvider(rawEmbedder, llm.DefaultEmbeddingCacheConfig())
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	// 4. 初始化工作池
	pools := pool.Default()
	stagePool := pools.MustGet(pool.StagePool)
	logger.Infow("Worker pools initialized", "stage.capacity", stagePool.Cap())

	// 5. 初始化 Biz 层
	qaService, err := biz.NewService(
		biz.NewTextSource(chatProvider),
		biz.NewAnalyzer(chatProvider),
		biz.NewRetriever(embedProvider, stagePool, &biz.RetrieverConfig{
			TopK: cfg.PipelineOptions.TopK,
		}),
		biz.NewEvidenceFilter(chatProvider, &biz.FilterConfig{
			MaxPassages:      cfg.PipelineOptions.MaxEvidencePassages,
			FallbackMaxChars: cfg.PipelineOptions.EvidenceFallbackMaxChars,
		}),
		biz.NewAnswerStreamer(chatProvider),
		&biz.Config{
			ChunkSize:                 cfg.PipelineOptions.ChunkSize,
			ChunkOverlap:              cfg.PipelineOptions.ChunkOverlap,
			TopK:                      cfg.PipelineOptions.TopK,
			MaxEvidencePassages:       cfg.PipelineOptions.MaxEvidencePassages,
			EvidenceFallbackMaxChars:  cfg.PipelineOptions.EvidenceFallbackMaxChars,
			HeartbeatInterval:         cfg.PipelineOptions.HeartbeatInterval,
			ParseHeartbeatInterval:    cfg.PipelineOptions.ParseHeartbeatInterval,
			AnalysisHeartbeatInterval: cfg.PipelineOptions.AnalysisHeartbeatInterval,
			ParseTimeout:              cfg.PipelineOptions.ParseTimeout,
			AnalysisTimeout:           cfg.PipelineOptions.AnalysisTimeout,
			RetrievalTimeout:          cfg.PipelineOptions.RetrievalTimeout,
			FilterTimeout:             cfg.PipelineOptions.FilterTimeout,
			AnswerTimeout:             cfg.PipelineOptions.AnswerTimeout,
			OverallTimeout:            cfg.PipelineOptions.OverallTimeout,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline service: %w", err)
	}
	logger.Infow("Pipeline service initialized",
		"chunk.size", cfg.PipelineOptions.ChunkSize,
		"chunk.overlap", cfg.PipelineOptions.ChunkOverlap,
		"top-k", cfg.PipelineOptions.TopK,
		"overall-timeout", cfg.PipelineOptions.OverallTimeout.String(),
	)

	// 6. 初始化 Handler 层
	qaHandler := handler.NewQAHandler(qaService)
	logger.Info("Handler layer initialized")

	// 7. 初始化服务器并注册路由
	httpServer := server.NewHTTPServer(cfg.HTTPOptions)
	router.Register(httpServer.Engine(), qaHandler)

	serverManager := server.NewManager(cfg.HTTPOptions)
	serverManager.Add(httpServer)

	logger.Info("paperqa service is ready")
	return &Server{
		srv:     serverManager,
		tracing: tracingProvider,
		pools:   pools,
	}, nil
}

// Run starts the server and blocks until a termination signal arrives.
func (s *Server) Run(_ context.Context) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("Failed to shut down tracing provider", "error", err.Error())
		}
		s.pools.ReleaseAll()
	}()
	return s.srv.Run()
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Listen: %s\n", cfg.HTTPOptions.Addr)
}
