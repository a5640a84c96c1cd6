package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"auditflow-backend/config"
	"auditflow-backend/handlers"
	"auditflow-backend/llm"
	"auditflow-backend/repository"
	"auditflow-backend/service"
	"auditflow-backend/storage"
)

func main() {
	// Load .env from the working directory or the project root
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := initPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize Postgres", zap.Error(err))
	}
	defer db.Close()

	reportStorage, err := storage.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	claimRepo := repository.NewClaimRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	chunkRepo := repository.NewPolicyChunkRepository(db, cfg.EmbeddingDim)

	geminiClient, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
	}
	defer geminiClient.Close()

	gemini := llm.NewGemini(geminiClient, llm.GeminiConfig{
		APIKey:          cfg.GeminiAPIKey,
		CompletionModel: cfg.CompletionModel,
		EmbeddingModel:  cfg.EmbeddingModel,
		EmbeddingDim:    cfg.EmbeddingDim,
		MaxRetries:      cfg.MaxRetries,
		InitialBackoff:  cfg.InitialBackoff,
		RequestTimeout:  cfg.RequestTimeout,
	}, logger.Named("gemini"))

	var classifier service.Classifier
	if cfg.KeywordOnly || cfg.GeminiAPIKey == "" {
		classifier = service.NewKeywordClassifier(logger.Named("router"))
	} else {
		classifier = service.NewHybridClassifier(gemini, cfg.ConfidenceThreshold, logger.Named("router"))
	}

	retrievalService := service.NewRetrievalService(gemini, chunkRepo,
		service.RetrievalWithTopK(cfg.TopK),
		service.RetrievalWithMinScore(cfg.MinScore),
		service.RetrievalWithExclusionMinScore(cfg.ExclusionMinScore),
		service.RetrievalWithLogger(logger.Named("rag")),
	)

	analysisService := service.NewAnalysisService(
		service.AnalysisWithClaimStore(claimRepo),
		service.AnalysisWithAuditStore(auditRepo),
		service.AnalysisWithClassifier(classifier),
		service.AnalysisWithRetriever(retrievalService),
		service.AnalysisWithCompleter(gemini),
		service.AnalysisWithThreshold(cfg.ConfidenceThreshold),
		service.AnalysisWithMaxSteps(cfg.MaxSteps),
		service.AnalysisWithLogger(logger.Named("agent")),
	)

	reportService := service.NewReportService(
		service.ReportWithClaimStore(claimRepo),
		service.ReportWithAuditStore(auditRepo),
		service.ReportWithStorage(reportStorage),
		service.ReportWithLogger(logger.Named("reporter")),
	)

	claimHandler := handlers.NewClaimHandler(claimRepo, auditRepo, analysisService, reportService, logger.Named("http"))
	routerHandler := handlers.NewRouterHandler(classifier, retrievalService, logger.Named("http"))

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		// Claim lifecycle
		api.POST("/claims", claimHandler.CreateClaim)
		api.GET("/claims/:id", claimHandler.GetClaim)
		api.GET("/claims/:id/history", claimHandler.GetHistory)
		api.POST("/claims/:id/analyze", claimHandler.AnalyzeClaim)
		api.GET("/claims/:id/analyze/stream", claimHandler.StreamAnalysis)

		// Reports
		api.POST("/claims/:id/report", claimHandler.GenerateReport)
		api.GET("/claims/:id/report", claimHandler.DownloadReport)
		api.GET("/claims/:id/report/preview", claimHandler.PreviewReport)

		// Classification and corpus search
		api.POST("/classify", routerHandler.Classify)
		api.POST("/classify/batch", routerHandler.ClassifyBatch)
		api.POST("/search", routerHandler.Search)
		api.POST("/search/exclusions", routerHandler.SearchExclusions)
		api.POST("/search/limits", routerHandler.SearchLimits)
		api.GET("/stats", routerHandler.Stats)
	}

	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func initPostgres(cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	// pgvector must exist before any embedding column is touched
	if _, err := pool.Exec(context.Background(), "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
