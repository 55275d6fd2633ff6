package main

import (
	"context"
	"log"
	"time"

	"github.com/oyounis19/beyond-rag/internal/ai"
	"github.com/oyounis19/beyond-rag/internal/config"
	"github.com/oyounis19/beyond-rag/internal/crawler"
	"github.com/oyounis19/beyond-rag/internal/database"
	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/internal/queue"
	"github.com/oyounis19/beyond-rag/internal/storage"
	"github.com/oyounis19/beyond-rag/internal/vector"
	"github.com/oyounis19/beyond-rag/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()

	pool, err := config.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pool.Close()
	store := database.NewStore(pool)

	objects, err := storage.NewObjectStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to object store:", err)
	}

	index, err := vector.NewIndex(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to vector index:", err)
	}

	embedder := ai.NewEmbeddingClient(cfg.EmbedServiceURL)
	nli := ai.NewNLIClient(cfg.NLIServiceURL)
	if err := nli.CalibrateLabels(ctx); err != nil {
		log.Fatal("NLI label calibration failed:", err)
	}

	llm, err := ai.NewLLM(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize LLM provider:", err)
	}
	verifier := ai.NewVerifier(llm, time.Duration(cfg.VerifierTimeout)*time.Second)

	fetcher := crawler.NewFetcher(time.Duration(cfg.URLFetchTimeout) * time.Second)
	parser := services.NewParserService(fetcher)
	chunker, err := services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Failed to initialize chunker:", err)
	}

	conflictSvc := services.NewConflictService(store, index, nli, verifier,
		cfg.TopKNeighbors,
		services.ConflictThresholds{
			Duplicate:     cfg.DedupThreshold,
			Contradiction: cfg.ContradictionThreshold,
			Neutral:       cfg.NeutralThreshold,
		},
		int64(cfg.VerifierConcurrency))

	pipeline := services.NewPipelineService(store, objects, parser, chunker, embedder, index, conflictSvc)

	processor := queue.NewTaskProcessor(pipeline)
	server, mux := queue.NewServer(cfg, processor)

	logger.Info("Worker starting", "redis", cfg.RedisURL)
	if err := server.Run(mux); err != nil {
		log.Fatal("Worker stopped:", err)
	}
}
