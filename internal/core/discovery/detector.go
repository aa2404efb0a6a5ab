package discovery

import (
	"context"
	"fmt"
	"log"

	"github.com/markdave123-py/Discovera/internal/core"
	"github.com/markdave123-py/Discovera/internal/models"
)

// FallbackConfidence is assigned to boundaries synthesized when the
// classifier cannot be consulted (window fallback) or coverage gaps are
// filled by the merger.
const FallbackConfidence = 0.5

// FallbackDocumentType marks pages no classifier attributed to a document.
const FallbackDocumentType = "OTHER"

// DetectorConfig tunes the sliding classification window.
//
// WindowSize: pages per classifier call (e.g., 10).
// Overlap:    pages shared between consecutive windows (e.g., 2), so boundary
//             claims near window seams are seen twice and reconciled by the merger.
type DetectorConfig struct {
	WindowSize int
	Overlap    int
}

// WindowedDetector slides a page window across a production and asks the
// classification oracle for boundary candidates per window.
type WindowedDetector struct {
	classifier core.BoundaryClassifier
	retry      RetryPolicy
	cfg        DetectorConfig
}

func NewWindowedDetector(classifier core.BoundaryClassifier, retry RetryPolicy, cfg DetectorConfig) *WindowedDetector {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 10
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.WindowSize {
		cfg.Overlap = cfg.WindowSize - 1
	}
	return &WindowedDetector{classifier: classifier, retry: retry, cfg: cfg}
}

// Detect partitions [0, len(pages)) into windows of WindowSize advancing by
// WindowSize-Overlap and classifies each one. Boundaries come back in
// absolute page coordinates. A window whose classifier call fails after
// retries degrades to a single fallback boundary covering the whole window,
// so every page is attributed to some document even under total oracle
// failure.
func (d *WindowedDetector) Detect(ctx context.Context, pages []string) ([]models.WindowResult, error) {
	n := len(pages)
	if n == 0 {
		return nil, fmt.Errorf("detect: %w", ErrExtractionFatal)
	}

	step := d.cfg.WindowSize - d.cfg.Overlap

	var results []models.WindowResult
	idx := 0
	for start := 0; start < n; start += step {
		end := start + d.cfg.WindowSize
		if end > n {
			end = n
		}

		boundaries := d.classifyWindow(ctx, pages[start:end], idx, start, end)
		results = append(results, models.WindowResult{
			WindowIndex: idx,
			WindowStart: start,
			WindowEnd:   end,
			Boundaries:  boundaries,
		})
		idx++

		if end == n {
			break
		}
	}

	return results, nil
}

// classifyWindow runs one oracle call under the retry policy and translates
// the window-local candidates to absolute coordinates.
func (d *WindowedDetector) classifyWindow(ctx context.Context, window []string, idx, start, end int) []models.Boundary {
	var local []models.Boundary
	err := d.retry.Do(ctx, fmt.Sprintf("classify window %d", idx), func(ctx context.Context) error {
		out, err := d.classifier.ClassifyWindow(ctx, window)
		if err != nil {
			return err
		}
		local = out
		return nil
	})
	if err != nil {
		// Degrade to a single window-wide boundary rather than dropping
		// pages; the coverage invariant holds even under total failure.
		log.Printf("WindowedDetector: window %d [%d,%d) classification failed, using fallback: %v", idx, start, end, err)
		return []models.Boundary{{
			StartPage:    start,
			EndPage:      end - 1,
			Confidence:   FallbackConfidence,
			DocumentType: FallbackDocumentType,
			Indicators:   []string{"classification_failed"},
		}}
	}

	out := make([]models.Boundary, 0, len(local))
	for _, b := range local {
		b.StartPage += start
		b.EndPage += start

		// Discard candidates the oracle hallucinated outside the window.
		if b.StartPage < start {
			b.StartPage = start
		}
		if b.EndPage > end-1 {
			b.EndPage = end - 1
		}
		if b.EndPage < b.StartPage {
			continue
		}
		if b.Confidence < 0 {
			b.Confidence = 0
		}
		if b.Confidence > 1 {
			b.Confidence = 1
		}
		if b.DocumentType == "" {
			b.DocumentType = FallbackDocumentType
		}
		out = append(out, b)
	}
	return out
}
