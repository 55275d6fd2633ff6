package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/oyounis19/beyond-rag/internal/ai"
	"github.com/oyounis19/beyond-rag/internal/config"
	"github.com/oyounis19/beyond-rag/internal/crawler"
	"github.com/oyounis19/beyond-rag/internal/database"
	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/internal/queue"
	"github.com/oyounis19/beyond-rag/internal/storage"
	"github.com/oyounis19/beyond-rag/internal/telemetry"
	"github.com/oyounis19/beyond-rag/internal/vector"
	"github.com/oyounis19/beyond-rag/middleware"
	"github.com/oyounis19/beyond-rag/routes"
	"github.com/oyounis19/beyond-rag/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()

	// Relational store (source of truth).
	pool, err := config.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pool.Close()

	store := database.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Object store for raw uploads.
	objects, err := storage.NewObjectStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to object store:", err)
	}

	// Vector index.
	index, err := vector.NewIndex(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to vector index:", err)
	}

	// Model clients. NLI label calibration runs before serving: a model
	// with drifted label order must never classify production pairs.
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

	// Services.
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
	ingestion := services.NewIngestionService(store, objects, cfg.MaxFileSize, cfg.AllowedTypes)
	resolution := services.NewResolutionService(store, index)
	chat := services.NewChatService(store, embedder, index, llm, cfg.TopKNeighbors)

	// Enqueue side of the background publish queue; the worker binary drains it.
	tasks := queue.NewClient(cfg)
	defer tasks.Close()

	// HTTP surface.
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	// Uploads dominate request size; allow headroom over the file cap.
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize + 1024*1024))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	if rdb, err := config.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
	} else {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("beyond-rag", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing init failed, continuing without traces", "error", err)
		} else {
			defer shutdown()
			router.Use(otelgin.Middleware("beyond-rag"))
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupDocumentRoutes(router, routes.NewDocumentHandler(ingestion, pipeline, store, index, objects, tasks, cfg.SyncProcessingLimit))
	routes.SetupConflictRoutes(router, routes.NewConflictHandler(resolution, store))
	routes.SetupChatRoutes(router, routes.NewChatHandler(chat))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	logger.Info("Server exited")
}
