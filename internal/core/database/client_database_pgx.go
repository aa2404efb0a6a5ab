package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/Discovera/internal/config"
	"github.com/markdave123-py/Discovera/internal/models"
)

// DatabaseClient implements core.VectorStore and core.DedupRegistry over
// Postgres with the pgvector extension.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := EnsureBootstrapped(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}

	return &DatabaseClient{db: sqlDB}, nil
}

func (c *DatabaseClient) Close() error {
	return c.db.Close()
}

// UpsertChunks replaces a document's chunks in one transaction, so a retried
// storage call never leaves duplicates behind.
func (c *DatabaseClient) UpsertChunks(ctx context.Context, caseID, documentID string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE case_id = $1 AND document_id = $2`,
		caseID, documentID,
	); err != nil {
		return fmt.Errorf("clear existing chunks: %w", err)
	}

	const insert = `
		INSERT INTO document_chunks (id, case_id, document_id, chunk_text, embedding, position, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	now := time.Now()
	for _, ch := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			uuid.NewString(), caseID, documentID, ch.Text,
			pgvector.NewVector(ch.Embedding), ch.Position, ch.TokenCount, now,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", ch.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// SegmentExists reports whether a segment identity was already registered
// for the case.
func (c *DatabaseClient) SegmentExists(ctx context.Context, caseID, segmentID string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM discovery_segments WHERE case_id = $1 AND segment_id = $2)`,
		caseID, segmentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("segment exists check: %w", err)
	}
	return exists, nil
}

// RegisterSegment records a processed segment's identity and metadata.
func (c *DatabaseClient) RegisterSegment(ctx context.Context, seg *models.DiscoverySegment) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO discovery_segments
			(segment_id, case_id, start_page, end_page, document_type, title, bates_range, confidence, production_batch, source_file, producing_party, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (case_id, segment_id) DO NOTHING`,
		seg.ID, seg.CaseID, seg.StartPage, seg.EndPage, seg.DocumentType,
		seg.Title, seg.BatesRange, seg.Confidence, seg.ProductionBatch, seg.SourceFile, seg.ProducingParty, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("register segment: %w", err)
	}
	return nil
}
