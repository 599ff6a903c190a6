package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidsage-ai/internal/config"
	"vidsage-ai/internal/http"
	"vidsage-ai/internal/ingest"
	"vidsage-ai/internal/insights"
	"vidsage-ai/internal/llm"
	"vidsage-ai/internal/memory"
	"vidsage-ai/internal/retrieval"
	"vidsage-ai/internal/service"
	"vidsage-ai/internal/storage"
	"vidsage-ai/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	videoRepo := storage.NewVideoRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	conversationRepo := storage.NewConversationRepo(db)
	factRepo := storage.NewFactRepo(db)
	insightRepo := storage.NewInsightRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// Ingestion pipeline for pre-chunked transcripts
	ingestPipeline := ingest.NewPipeline(videoRepo, chunkRepo, embedder, vectorStore, cfg.QdrantCollection)

	// Create LLM clients (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	modelLoader := llm.NewModelLoader(cfg.LLMBaseURL)
	rerankClient := llm.NewRerankClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.RerankModelName)

	// Retrieval pipeline, constructed once and passed by handle
	rewriter := retrieval.NewRewriter(llmClient, retrieval.RewriterConfig{
		Enabled:         cfg.RewriteEnabled,
		HistoryTurns:    cfg.RewriteHistoryTurns,
		MaxMessageChars: cfg.RewriteMaxMessageChars,
		MinLength:       cfg.RewriteMinLength,
	})
	expander := retrieval.NewExpander(llmClient, retrieval.ExpanderConfig{
		Enabled:   cfg.ExpandEnabled,
		Variants:  cfg.ExpandVariants,
		MinLength: cfg.ExpandMinLength,
	})
	retriever := retrieval.NewRetriever(embedder, vectorStore, cfg.QdrantCollection)
	reranker := retrieval.NewReranker(modelLoader, rerankClient, cfg.RerankModelName, cfg.RerankEnabled)

	// Fact memory and insight generation
	factStore := memory.NewStore(llmClient, factRepo, memory.StoreConfig{
		Weights: memory.Weights{
			Importance: cfg.FactWeights.Importance,
			Confidence: cfg.FactWeights.Confidence,
			Recency:    cfg.FactWeights.Recency,
			Frequency:  cfg.FactWeights.Frequency,
		},
		RecencyHalfLifeHours: cfg.FactRecencyHalfLifeHours,
		TurnDecay:            cfg.FactTurnDecay,
	})
	insightGenerator := insights.NewGenerator(llmClient, insights.GeneratorConfig{
		BatchChunks: cfg.InsightBatchChunks,
		MaxTopics:   cfg.InsightMaxTopics,
	})
	insightService := insights.NewService(insightGenerator, chunkRepo, insightRepo)

	chatService := service.NewChatService(conversationRepo, rewriter, expander, retriever,
		reranker, factStore, llmClient, cfg.RetrieveTopK, cfg.FactRecallBudget)
	slog.Info("Retrieval pipeline initialized",
		"rewrite", cfg.RewriteEnabled, "expand", cfg.ExpandEnabled, "rerank", cfg.RerankEnabled)

	// Create router with dependencies
	router := http.NewRouter(&http.Deps{
		ChatService:    chatService,
		InsightService: insightService,
		Conversations:  conversationRepo,
		Videos:         videoRepo,
		Ingestor:       ingestPipeline,
		VectorStore:    vectorStore,
		CollectionName: cfg.QdrantCollection,
	})

	server := &nethttp.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start API server and shut down cleanly on SIGINT/SIGTERM
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("Shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		slog.Error("Shutdown did not complete cleanly", "error", err)
	}
}
