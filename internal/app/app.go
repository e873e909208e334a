package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/markdave123-py/Extracta/internal/api/handlers"
	"github.com/markdave123-py/Extracta/internal/config"
	db "github.com/markdave123-py/Extracta/internal/core/database"
	"github.com/markdave123-py/Extracta/internal/core/extraction_engine"
	"github.com/markdave123-py/Extracta/internal/core/llm"
	objectclient "github.com/markdave123-py/Extracta/internal/core/object-client"
	"github.com/markdave123-py/Extracta/internal/core/progstore"
	"github.com/markdave123-py/Extracta/internal/core/vectorstore"
	"github.com/markdave123-py/Extracta/internal/services"
)

type App struct {
	DBClient  db.ChunkDB
	Store     *progstore.BadgerStore
	Embedder  *llm.GeminiEmbedder
	Extractor *extraction_engine.ExtractionService
	Server    *Server

	logger *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	logger.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	store, err := progstore.Open(filepath.Join(cfg.DataDir, "progress"), cfg.ResultTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("progress store: %w", err)
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	index := vectorstore.NewVectorStore(dbClient, embedder, logger)
	ocr := extraction_engine.NewOCRClient(cfg.OCRServiceURL, cfg.OCRPollInterval, logger)
	words := extraction_engine.NewWordExtractor(logger)
	chunker := extraction_engine.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)

	engCfg := &extraction_engine.ExtractConfig{
		ChunkSize:       cfg.ChunkSize,
		ChunkOverlap:    cfg.ChunkOverlap,
		BatchSize:       cfg.VectorStoreBatchSize,
		OCRBatchSize:    cfg.OCRBatchSize,
		PollInterval:    cfg.OCRPollInterval,
		Timeout:         cfg.OCRTimeout,
		MaxConcurrent:   cfg.MaxConcurrent,
		ExtractionRange: extraction_engine.DefaultExtractionRange,
	}

	extractor, err := extraction_engine.NewExtractionService(
		ocr, words, chunker, store, index, objClient, cfg.BucketName, engCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("extraction service: %w", err)
	}

	docService := services.NewDocumentService(objClient, store, cfg.BucketName)

	extractHandler := handlers.NewExtractHandler(extractor, logger)
	docHandler := handlers.NewDocumentHandler(docService, logger)

	server := NewServer(cfg, extractHandler, docHandler, logger)

	return &App{
		DBClient:  dbClient,
		Store:     store,
		Embedder:  embedder,
		Extractor: extractor,
		Server:    server,
		logger:    logger,
	}, nil
}

func (a *App) Close() {
	if a.Extractor != nil {
		a.Extractor.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
