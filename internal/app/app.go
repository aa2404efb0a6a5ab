package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/markdave123-py/Discovera/internal/config"
	"github.com/markdave123-py/Discovera/internal/core"
	db "github.com/markdave123-py/Discovera/internal/core/database"
	"github.com/markdave123-py/Discovera/internal/core/discovery"
	"github.com/markdave123-py/Discovera/internal/core/extractor"
	"github.com/markdave123-py/Discovera/internal/core/llm"
	"github.com/markdave123-py/Discovera/internal/core/objectclient"
)

type App struct {
	DBClient *db.DatabaseClient
	Pipeline *discovery.Pipeline
	Jobs     core.JobStore
	Events   *discovery.CaseEvents
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	// Archival is optional; without AWS credentials the service still
	// processes productions, it just doesn't keep the raw bytes.
	var objClient core.ObjectClient
	if s3Client, err := objectclient.NewS3Client(appCtx, cfg); err != nil {
		log.Printf("Object storage disabled: %v", err)
	} else {
		objClient = s3Client
	}

	classifier, err := llm.NewGeminiClassifier(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the classifier, %w", err)
	}
	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	factExtractor, err := llm.NewGeminiFactExtractor(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the fact extractor, %w", err)
	}

	pageExtractor := extractor.NewDocconvExtractor(false)
	jobs := discovery.NewMemoryJobStore()
	events := discovery.NewCaseEvents()

	retry := discovery.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.OracleMaxAttempts
	retry.InitialBackoff = time.Duration(cfg.OracleBackoffMs) * time.Millisecond

	pipeline := discovery.NewPipeline(
		pageExtractor, classifier, embedder, factExtractor,
		dbClient, dbClient, jobs, events,
		discovery.PipelineConfig{
			Detector: discovery.DetectorConfig{
				WindowSize: cfg.WindowSize,
				Overlap:    cfg.WindowOverlap,
			},
			Chunker: discovery.ChunkerConfig{
				TargetTokens:  cfg.ChunkTargetTokens,
				OverlapTokens: cfg.ChunkOverlapTokens,
			},
			EmbedBatchSize:        cfg.EmbedBatchSize,
			MaxSegmentConcurrency: cfg.MaxSegmentConcurrency,
			Retry:                 retry,
		},
	)

	server := NewServer(cfg, pipeline, jobs, events, objClient)

	return &App{
		DBClient: dbClient,
		Pipeline: pipeline,
		Jobs:     jobs,
		Events:   events,
		Server:   server,
	}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
