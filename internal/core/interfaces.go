package core

import (
	"context"
	"io"

	"github.com/markdave123-py/Discovera/internal/models"
)

// PageExtractor turns raw document bytes into per-page plain text.
// Implementations wrap an external extraction library; the pipeline treats
// extraction as a black box.
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte, contentType string) ([]string, error)
}

// BoundaryClassifier is the classification oracle. Given the page texts of one
// window it returns zero or more boundary candidates with window-local page
// indices (0 = first page of the window).
type BoundaryClassifier interface {
	ClassifyWindow(ctx context.Context, pages []string) ([]models.Boundary, error)
}

// EmbeddingProvider is the embedding oracle (Gemini/OpenAI/etc).
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// FactExtractor is the fact-extraction oracle: chunk text in, facts out.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, documentType, text string) ([]models.Fact, error)
}

// VectorStore persists embedded chunks under a segment's document identity.
type VectorStore interface {
	UpsertChunks(ctx context.Context, caseID, documentID string, chunks []models.Chunk) error
}

// DedupRegistry is the case-scoped registry of already-processed segments.
type DedupRegistry interface {
	SegmentExists(ctx context.Context, caseID, segmentID string) (bool, error)
	RegisterSegment(ctx context.Context, seg *models.DiscoverySegment) error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// EventEmitter publishes case-scoped progress events. The pipeline emits
// without knowing how many subscribers exist.
type EventEmitter interface {
	Emit(caseID string, event models.Event)
}

// JobStore is the concurrency-safe registry of job state. Update applies the
// mutator under a single-writer discipline so concurrent segment completions
// cannot lose counter updates.
type JobStore interface {
	Create(job *models.ProcessingJob) string
	Update(id string, mutate func(*models.ProcessingJob)) error
	Get(id string) (*models.ProcessingJob, bool)
}
