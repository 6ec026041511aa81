package main

import (
	"log"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/config"
	"github.com/screenpilot/screenpilot/internal/api/handlers"
	"github.com/screenpilot/screenpilot/internal/api/middleware"
	"github.com/screenpilot/screenpilot/internal/api/routes"
	"github.com/screenpilot/screenpilot/internal/cache"
	"github.com/screenpilot/screenpilot/internal/extract"
	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/index"
	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/providers/embeddings"
	"github.com/screenpilot/screenpilot/internal/providers/llm"
	"github.com/screenpilot/screenpilot/internal/services"
	"github.com/screenpilot/screenpilot/internal/storage"
)

func main() {
	l := logger.New()

	cfg, err := config.Load("settings.json")
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	snap := cfg.Snapshot()

	// Providers
	ats := greenhouse.NewClient(cfg, l)
	docs := extract.New(l)
	embedder := embeddings.New(cfg)
	claude := llm.NewClaude(cfg)

	// Index on local flat files under the data dir
	idx := index.New(storage.NewLocal(filepath.Join(snap.DataDir, "indexes")), embedder, l)

	// ATS list cache: Redis when configured, in-process otherwise.
	var listCache cache.Cache
	if snap.RedisAddr != "" {
		listCache, err = cache.Connect(snap.RedisAddr)
		if err != nil {
			log.Fatalf("redis connect error: %v", err)
		}
		l.WithField("addr", snap.RedisAddr).Info("redis cache connected")
	} else {
		listCache = cache.NewMemory()
		l.Warn("REDIS_ADDR not set, falling back to in-process cache")
	}

	// Services
	jobsSvc := services.NewJobsService(ats, listCache, l)
	appsSvc := services.NewApplicationsService(ats, l)
	screeningSvc := services.NewScreeningService(claude, docs, l)
	highlightsSvc := services.NewHighlightsService(ats, docs, claude, l)
	indexerSvc := services.NewIndexerService(ats, docs, idx, l)
	exportSvc := services.NewExportService(ats, func() string { return cfg.Snapshot().DataDir }, l)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Jobs:         handlers.NewJobsHandler(jobsSvc),
		Applications: handlers.NewApplicationsHandler(appsSvc),
		Screening:    handlers.NewScreeningHandler(screeningSvc),
		Highlights:   handlers.NewHighlightsHandler(highlightsSvc, jobsSvc),
		Index:        handlers.NewIndexHandler(indexerSvc),
		Export:       handlers.NewExportHandler(exportSvc, cfg),
		Settings:     handlers.NewSettingsHandler(cfg),
	})

	l.WithField("port", snap.Port).Info("server starting")
	if err := r.Run(":" + snap.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
