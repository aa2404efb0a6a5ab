package discovery

import (
	"sort"

	"github.com/markdave123-py/Discovera/internal/models"
)

// candidate pairs a boundary claim with the window that produced it, so
// equal-confidence overlaps can be broken deterministically.
type candidate struct {
	models.Boundary
	window int
}

// MergeBoundaries reconciles overlapping window results into one gap-free,
// non-overlapping, ordered partition of [0, totalPages):
//
//   - candidates are ordered by start page (ties: earlier window first);
//   - overlapping candidates keep the higher confidence, equal confidence
//     keeps the earlier window;
//   - any uncovered span is filled with a synthesized OTHER boundary at
//     confidence 0.5.
//
// The result always starts at page 0 and ends at totalPages-1.
func MergeBoundaries(results []models.WindowResult, totalPages int) []models.DocumentBoundary {
	if totalPages <= 0 {
		return nil
	}

	var cands []candidate
	for _, wr := range results {
		for _, b := range wr.Boundaries {
			cands = append(cands, candidate{Boundary: b, window: wr.WindowIndex})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].StartPage != cands[j].StartPage {
			return cands[i].StartPage < cands[j].StartPage
		}
		return cands[i].window < cands[j].window
	})

	// Resolve overlaps at window seams by confidence.
	var kept []candidate
	for _, c := range cands {
		if c.EndPage >= totalPages {
			c.EndPage = totalPages - 1
		}
		if c.StartPage < 0 {
			c.StartPage = 0
		}
		if c.EndPage < c.StartPage {
			continue
		}
		if len(kept) == 0 {
			kept = append(kept, c)
			continue
		}
		last := &kept[len(kept)-1]
		if c.StartPage > last.EndPage {
			kept = append(kept, c)
			continue
		}
		// Overlap: keep the stronger claim; ties go to the earlier window.
		if c.Confidence > last.Confidence || (c.Confidence == last.Confidence && c.window < last.window) {
			*last = c
		}
	}

	// Fill coverage gaps and emit the final partition.
	out := make([]models.DocumentBoundary, 0, len(kept)+2)
	cursor := 0
	for _, c := range kept {
		if c.EndPage < cursor {
			continue // swallowed by a replacement above
		}
		if c.StartPage > cursor {
			out = append(out, synthesized(cursor, c.StartPage-1))
		}
		if c.StartPage < cursor {
			c.StartPage = cursor
		}
		out = append(out, models.DocumentBoundary{
			StartPage:    c.StartPage,
			EndPage:      c.EndPage,
			Confidence:   c.Confidence,
			DocumentType: c.DocumentType,
			Indicators:   c.Indicators,
			Title:        c.Title,
			BatesRange:   c.BatesRange,
		})
		cursor = c.EndPage + 1
	}
	if cursor < totalPages {
		out = append(out, synthesized(cursor, totalPages-1))
	}

	return out
}

func synthesized(start, end int) models.DocumentBoundary {
	return models.DocumentBoundary{
		StartPage:    start,
		EndPage:      end,
		Confidence:   FallbackConfidence,
		DocumentType: FallbackDocumentType,
		Indicators:   []string{"coverage_gap"},
	}
}
