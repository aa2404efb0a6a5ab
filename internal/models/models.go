package models

import (
	"strings"
	"time"
)

// JobStatus tracks where a processing job is in its lifecycle.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobExtracting JobStatus = "extracting"
	JobSegmenting JobStatus = "segmenting"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// ProcessingJob represents one production-processing run.
// Mutated only through the job store; handlers read snapshots.
type ProcessingJob struct {
	ID                 string    `json:"processing_id"`
	CaseID             string    `json:"case_id"`
	CaseName           string    `json:"case_name"`
	ProductionBatch    string    `json:"production_batch"`
	ProducingParty     string    `json:"producing_party"`
	Status             JobStatus `json:"status"`
	TotalDocuments     int       `json:"total_documents"`
	ProcessedDocuments int       `json:"processed_documents"`
	TotalFacts         int       `json:"total_facts"`
	Errors             []string  `json:"errors"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Boundary is one claimed document span inside a production window.
// The detector translates these to absolute page coordinates before returning;
// Title and BatesRange are optional and may be filled later by the assembler.
type Boundary struct {
	StartPage    int      `json:"start_page"`
	EndPage      int      `json:"end_page"`
	Confidence   float64  `json:"confidence"`
	DocumentType string   `json:"document_type"`
	Indicators   []string `json:"indicators,omitempty"`
	Title        string   `json:"title,omitempty"`
	BatesRange   string   `json:"bates_range,omitempty"`
}

// WindowResult is the detector's output for one classification window.
type WindowResult struct {
	WindowIndex int        `json:"window_index"`
	WindowStart int        `json:"window_start"`
	WindowEnd   int        `json:"window_end"` // exclusive
	Boundaries  []Boundary `json:"boundaries"`
}

// DocumentBoundary is a merged, global boundary. The merger guarantees the
// returned list partitions [0, total_pages) with no gaps and no overlaps.
type DocumentBoundary struct {
	StartPage    int      `json:"start_page"`
	EndPage      int      `json:"end_page"`
	Confidence   float64  `json:"confidence"`
	DocumentType string   `json:"document_type"`
	Indicators   []string `json:"indicators,omitempty"`
	Title        string   `json:"title,omitempty"`
	BatesRange   string   `json:"bates_range,omitempty"`
}

// DiscoverySegment is the addressable unit of one constituent document
// after boundary merging. Immutable once assembled.
type DiscoverySegment struct {
	ID                         string   `json:"segment_id"`
	CaseID                     string   `json:"case_id"`
	StartPage                  int      `json:"start_page"`
	EndPage                    int      `json:"end_page"`
	DocumentType               string   `json:"document_type"`
	Title                      string   `json:"title,omitempty"`
	BatesRange                 string   `json:"bates_range,omitempty"`
	Confidence                 float64  `json:"confidence"`
	ProductionBatch            string   `json:"production_batch"`
	SourceFile                 string   `json:"source_file,omitempty"`
	ProducingParty             string   `json:"producing_party"`
	ResponsiveToRequests       []string `json:"responsive_to_requests,omitempty"`
	ConfidentialityDesignation string   `json:"confidentiality_designation,omitempty"`
	PageTexts                  []string `json:"-"`
}

// Text joins the segment's page texts into one body for chunking.
func (s *DiscoverySegment) Text() string {
	return strings.Join(s.PageTexts, "\n")
}

// PageCount returns the number of pages the segment spans.
func (s *DiscoverySegment) PageCount() int {
	return s.EndPage - s.StartPage + 1
}

// Chunk is one embeddable slice of a segment's text.
type Chunk struct {
	Position   int       `json:"position"`
	Text       string    `json:"text"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Fact is one extracted assertion tied to a segment's document identity.
type Fact struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ProductionFile is one uploaded production payload.
type ProductionFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ProcessRequest carries everything needed to run one discovery job.
type ProcessRequest struct {
	CaseID                     string
	CaseName                   string
	ProductionBatch            string
	ProducingParty             string
	ResponsiveToRequests       []string
	ConfidentialityDesignation string
	EnableFactExtraction       bool
	Files                      []ProductionFile
}

// Event is one progress notification pushed to case subscribers.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Progress event types emitted by the pipeline.
const (
	EventStarted           = "discovery:started"
	EventDocumentFound     = "discovery:document_found"
	EventSkipped           = "discovery:skipped"
	EventChunking          = "discovery:chunking"
	EventEmbedding         = "discovery:embedding"
	EventStored            = "discovery:stored"
	EventFactExtracted     = "discovery:fact_extracted"
	EventDocumentCompleted = "discovery:document_completed"
	EventCompleted         = "discovery:completed"
	EventError             = "discovery:error"
)
