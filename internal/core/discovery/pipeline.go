package discovery

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/markdave123-py/Discovera/internal/core"
	"github.com/markdave123-py/Discovera/internal/models"
)

// PipelineConfig carries the runtime tuning knobs for one pipeline instance.
type PipelineConfig struct {
	Detector              DetectorConfig
	Chunker               ChunkerConfig
	EmbedBatchSize        int
	MaxSegmentConcurrency int
	Retry                 RetryPolicy
}

// Pipeline orchestrates a discovery job end to end: extraction → boundary
// detection → merging → assembly → per-segment dedup/chunk/embed/store/facts.
// Submission is synchronous and fast; the pipeline runs as one background
// task per job and reports progress through the job store and event emitter.
//
// Failure isolation: a failing segment is recorded on the job and skipped;
// only total extraction failure moves the job to the error status.
type Pipeline struct {
	extractor core.PageExtractor
	detector  *WindowedDetector
	embedder  core.EmbeddingProvider
	facts     core.FactExtractor
	vectors   core.VectorStore
	dedup     core.DedupRegistry
	jobs      core.JobStore
	events    core.EventEmitter
	cfg       PipelineConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewPipeline(
	extractor core.PageExtractor,
	classifier core.BoundaryClassifier,
	embedder core.EmbeddingProvider,
	facts core.FactExtractor,
	vectors core.VectorStore,
	dedup core.DedupRegistry,
	jobs core.JobStore,
	events core.EventEmitter,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.EmbedBatchSize < 1 {
		cfg.EmbedBatchSize = 16
	}
	if cfg.MaxSegmentConcurrency < 1 {
		cfg.MaxSegmentConcurrency = 1
	}
	return &Pipeline{
		extractor: extractor,
		detector:  NewWindowedDetector(classifier, cfg.Retry, cfg.Detector),
		embedder:  embedder,
		facts:     facts,
		vectors:   vectors,
		dedup:     dedup,
		jobs:      jobs,
		events:    events,
		cfg:       cfg,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Submit validates the request, creates the job record and schedules the
// pipeline to run independently. It returns the processing ID immediately.
func (p *Pipeline) Submit(req *models.ProcessRequest) (string, error) {
	if req == nil || req.CaseID == "" {
		return "", fmt.Errorf("case_id is required")
	}
	if len(req.Files) == 0 {
		return "", fmt.Errorf("at least one production file is required")
	}

	job := &models.ProcessingJob{
		CaseID:          req.CaseID,
		CaseName:        req.CaseName,
		ProductionBatch: req.ProductionBatch,
		ProducingParty:  req.ProducingParty,
		Status:          models.JobPending,
		Errors:          []string{},
	}
	jobID := p.jobs.Create(job)

	// Jobs outlive the submitting request, so the run context is detached
	// from it; cancellation happens only through Cancel.
	runCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancels[jobID] = cancel
	p.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			p.mu.Lock()
			delete(p.cancels, jobID)
			p.mu.Unlock()
		}()
		p.run(runCtx, jobID, req)
	}()

	return jobID, nil
}

// Cancel requests an early stop for a running job. The pipeline checks the
// flag between segment-processing steps, so in-flight segment state is never
// corrupted. Returns false when the job is not running.
func (p *Pipeline) Cancel(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancel, ok := p.cancels[jobID]
	if ok {
		cancel()
	}
	return ok
}

func (p *Pipeline) run(ctx context.Context, jobID string, req *models.ProcessRequest) {
	p.setStatus(jobID, models.JobExtracting)
	p.events.Emit(req.CaseID, models.Event{Type: models.EventStarted, Data: map[string]any{
		"processing_id": jobID,
		"case_name":     req.CaseName,
		"total_files":   len(req.Files),
	}})

	// Extraction. Each file yields an independent page space; a file that
	// extracts nothing is skipped, but a job where no file extracts at all
	// is fatal. The file name travels with its pages because it is part of
	// every segment's identity.
	type production struct {
		fileName string
		pages    []string
	}
	var productions []production
	for _, f := range req.Files {
		pages, err := p.extractor.ExtractPages(ctx, f.Data, f.ContentType)
		if err != nil {
			log.Printf("DiscoveryPipeline: extraction failed for %s: %v", f.FileName, err)
			continue
		}
		if !hasText(pages) {
			log.Printf("DiscoveryPipeline: no text extracted from %s", f.FileName)
			continue
		}
		productions = append(productions, production{fileName: f.FileName, pages: pages})
	}
	if len(productions) == 0 {
		p.fail(jobID, req.CaseID, ErrExtractionFatal)
		return
	}

	// Boundary detection, merging and assembly per production file.
	p.setStatus(jobID, models.JobSegmenting)
	var segments []models.DiscoverySegment
	for _, prod := range productions {
		results, err := p.detector.Detect(ctx, prod.pages)
		if err != nil {
			p.fail(jobID, req.CaseID, err)
			return
		}
		boundaries := MergeBoundaries(results, len(prod.pages))
		segments = append(segments, AssembleSegments(boundaries, prod.pages, prod.fileName, req)...)
	}

	_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) {
		j.TotalDocuments = len(segments)
	})
	for i := range segments {
		seg := &segments[i]
		p.events.Emit(req.CaseID, models.Event{Type: models.EventDocumentFound, Data: map[string]any{
			"document_id": seg.ID,
			"title":       seg.Title,
			"type":        seg.DocumentType,
			"pages":       seg.PageCount(),
			"confidence":  seg.Confidence,
			"bates_range": seg.BatesRange,
			"source_file": seg.SourceFile,
		}})
	}

	// Per-segment processing with a bounded number of segments in flight.
	p.setStatus(jobID, models.JobProcessing)
	sem := semaphore.NewWeighted(int64(p.cfg.MaxSegmentConcurrency))
	var wg sync.WaitGroup
	for i := range segments {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		seg := segments[i]
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			p.processSegment(ctx, jobID, req, &seg)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) {
			j.Errors = append(j.Errors, "processing cancelled before all segments were attempted")
		})
	}

	// The job completes once every segment has been attempted; per-segment
	// failures live in job.Errors and do not change the terminal status.
	job := p.finish(jobID)
	p.events.Emit(req.CaseID, models.Event{Type: models.EventCompleted, Data: map[string]any{
		"processing_id":         jobID,
		"total_documents_found": job.TotalDocuments,
		"documents_processed":   job.ProcessedDocuments,
		"facts_extracted":       job.TotalFacts,
		"errors":                job.Errors,
	}})
}

// processSegment runs one segment through dedup → chunk → embed → store →
// facts. Every step is independently fallible; a failure marks this segment
// only and the job moves on.
func (p *Pipeline) processSegment(ctx context.Context, jobID string, req *models.ProcessRequest, seg *models.DiscoverySegment) {
	if ctx.Err() != nil {
		return
	}

	// Dedup: reprocessing the same production batch yields identical segment
	// IDs, so an existing registration means the chunks are already stored.
	exists, err := p.dedup.SegmentExists(ctx, seg.CaseID, seg.ID)
	if err != nil {
		log.Printf("DiscoveryPipeline: dedup check failed for %s, treating as new: %v", seg.ID, err)
	}
	if exists {
		p.events.Emit(seg.CaseID, models.Event{Type: models.EventSkipped, Data: map[string]any{
			"document_id": seg.ID,
		}})
		_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) { j.ProcessedDocuments++ })
		return
	}

	if ctx.Err() != nil {
		return
	}
	p.events.Emit(seg.CaseID, models.Event{Type: models.EventChunking, Data: map[string]any{
		"document_id": seg.ID,
	}})
	chunks := ChunkText(seg.Text(), p.cfg.Chunker)
	if len(chunks) == 0 {
		_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) { j.ProcessedDocuments++ })
		p.events.Emit(seg.CaseID, models.Event{Type: models.EventDocumentCompleted, Data: map[string]any{
			"document_id": seg.ID,
		}})
		return
	}

	if ctx.Err() != nil {
		return
	}
	p.events.Emit(seg.CaseID, models.Event{Type: models.EventEmbedding, Data: map[string]any{
		"document_id":  seg.ID,
		"total_chunks": len(chunks),
	}})
	embedded := p.embedChunks(ctx, seg.ID, chunks)
	if len(embedded) == 0 {
		p.segmentFailed(jobID, seg, fmt.Errorf("embedding produced no usable chunks"))
		return
	}

	if ctx.Err() != nil {
		return
	}
	err = p.cfg.Retry.Do(ctx, fmt.Sprintf("store segment %s", seg.ID), func(ctx context.Context) error {
		return p.vectors.UpsertChunks(ctx, seg.CaseID, seg.ID, embedded)
	})
	if err != nil {
		p.segmentFailed(jobID, seg, fmt.Errorf("storage: %w", err))
		return
	}
	p.events.Emit(seg.CaseID, models.Event{Type: models.EventStored, Data: map[string]any{
		"document_id": seg.ID,
	}})
	if err := p.dedup.RegisterSegment(ctx, seg); err != nil {
		log.Printf("DiscoveryPipeline: registering segment %s failed: %v", seg.ID, err)
	}

	if req.EnableFactExtraction && p.facts != nil {
		p.extractFacts(ctx, jobID, seg, embedded)
	}

	_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) { j.ProcessedDocuments++ })
	p.events.Emit(seg.CaseID, models.Event{Type: models.EventDocumentCompleted, Data: map[string]any{
		"document_id": seg.ID,
	}})
}

// embedChunks embeds in batches; a batch that keeps failing falls back to
// per-chunk embedding and persistently failing chunks are dropped. Partial
// chunk loss is logged, not fatal.
func (p *Pipeline) embedChunks(ctx context.Context, documentID string, chunks []models.Chunk) []models.Chunk {
	out := make([]models.Chunk, 0, len(chunks))

	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}

		var vecs [][]float32
		err := p.cfg.Retry.Do(ctx, fmt.Sprintf("embed batch for %s", documentID), func(ctx context.Context) error {
			got, err := p.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				return err
			}
			if len(got) != len(texts) {
				return fmt.Errorf("%w: got %d embeddings for %d texts", ErrMalformedResponse, len(got), len(texts))
			}
			vecs = got
			return nil
		})
		if err == nil {
			for i := range batch {
				c := batch[i]
				c.Embedding = vecs[i]
				out = append(out, c)
			}
			continue
		}

		// Batch exhausted its retries; salvage what we can chunk by chunk.
		log.Printf("DiscoveryPipeline: batch embed failed for %s, retrying per chunk: %v", documentID, err)
		for i := range batch {
			c := batch[i]
			err := p.cfg.Retry.Do(ctx, fmt.Sprintf("embed chunk %d of %s", c.Position, documentID), func(ctx context.Context) error {
				got, err := p.embedder.EmbedTexts(ctx, []string{c.Text})
				if err != nil {
					return err
				}
				if len(got) != 1 {
					return fmt.Errorf("%w: got %d embeddings for 1 text", ErrMalformedResponse, len(got))
				}
				c.Embedding = got[0]
				return nil
			})
			if err != nil {
				log.Printf("DiscoveryPipeline: dropping chunk %d of %s: %v", c.Position, documentID, err)
				continue
			}
			out = append(out, c)
		}
	}

	return out
}

// extractFacts runs the fact oracle over each stored chunk. Fact failures
// are logged and skipped; extracted facts update the job total and are
// emitted individually.
func (p *Pipeline) extractFacts(ctx context.Context, jobID string, seg *models.DiscoverySegment, chunks []models.Chunk) {
	for i := range chunks {
		if ctx.Err() != nil {
			return
		}
		chunk := chunks[i]

		var facts []models.Fact
		err := p.cfg.Retry.Do(ctx, fmt.Sprintf("extract facts from chunk %d of %s", chunk.Position, seg.ID), func(ctx context.Context) error {
			got, err := p.facts.ExtractFacts(ctx, seg.DocumentType, chunk.Text)
			if err != nil {
				return err
			}
			facts = got
			return nil
		})
		if err != nil {
			log.Printf("DiscoveryPipeline: fact extraction failed for chunk %d of %s: %v", chunk.Position, seg.ID, err)
			continue
		}

		for _, fact := range facts {
			fact.DocumentID = seg.ID
			_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) { j.TotalFacts++ })
			p.events.Emit(seg.CaseID, models.Event{Type: models.EventFactExtracted, Data: map[string]any{
				"document_id": seg.ID,
				"fact":        fact,
			}})
		}
	}
}

func (p *Pipeline) segmentFailed(jobID string, seg *models.DiscoverySegment, err error) {
	log.Printf("DiscoveryPipeline: segment %s failed: %v", seg.ID, err)
	_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) {
		j.Errors = append(j.Errors, fmt.Sprintf("segment %s: %v", seg.ID, err))
	})
	p.events.Emit(seg.CaseID, models.Event{Type: models.EventError, Data: map[string]any{
		"processing_id": jobID,
		"document_id":   seg.ID,
		"error":         err.Error(),
	}})
}

func (p *Pipeline) setStatus(jobID string, status models.JobStatus) {
	_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) { j.Status = status })
}

func (p *Pipeline) fail(jobID, caseID string, err error) {
	log.Printf("DiscoveryPipeline: job %s failed: %v", jobID, err)
	_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) {
		j.Status = models.JobError
		j.ErrorMessage = err.Error()
	})
	p.events.Emit(caseID, models.Event{Type: models.EventError, Data: map[string]any{
		"processing_id": jobID,
		"error":         err.Error(),
	}})
}

func (p *Pipeline) finish(jobID string) *models.ProcessingJob {
	_ = p.jobs.Update(jobID, func(j *models.ProcessingJob) { j.Status = models.JobCompleted })
	job, _ := p.jobs.Get(jobID)
	if job == nil {
		job = &models.ProcessingJob{ID: jobID}
	}
	return job
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if len(p) > 0 {
			return true
		}
	}
	return false
}
