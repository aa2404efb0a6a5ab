package discovery

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/markdave123-py/Discovera/internal/models"
)

// batesPattern matches conventional Bates stamps: an uppercase prefix of at
// least two letters followed by a zero-padded number, e.g. ABC0001, SMITH-000123.
var batesPattern = regexp.MustCompile(`\b([A-Z]{2,}[-_]?\d{3,})\b`)

// SegmentID derives a stable identity from the segment's provenance, so
// reprocessing the same production batch yields identical IDs and the dedup
// registry can skip already-stored segments. The source file is part of the
// identity: two files in one batch share a page coordinate space, and without
// the discriminator their segments would collide.
func SegmentID(caseID, productionBatch, sourceFile string, startPage, endPage int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d|%d", caseID, productionBatch, sourceFile, startPage, endPage)))
	return fmt.Sprintf("seg_%x", sum[:16])
}

// AssembleSegments turns merged boundaries into immutable DiscoverySegment
// records, carrying job-level provenance onto every segment and deriving
// title/Bates metadata from page text when the detector didn't supply them.
// sourceFile names the production file these pages were extracted from.
func AssembleSegments(boundaries []models.DocumentBoundary, pages []string, sourceFile string, req *models.ProcessRequest) []models.DiscoverySegment {
	segments := make([]models.DiscoverySegment, 0, len(boundaries))
	for _, b := range boundaries {
		start, end := b.StartPage, b.EndPage
		if start < 0 {
			start = 0
		}
		if end >= len(pages) {
			end = len(pages) - 1
		}
		if end < start {
			continue
		}

		pageTexts := make([]string, end-start+1)
		copy(pageTexts, pages[start:end+1])

		seg := models.DiscoverySegment{
			ID:                         SegmentID(req.CaseID, req.ProductionBatch, sourceFile, b.StartPage, b.EndPage),
			CaseID:                     req.CaseID,
			StartPage:                  b.StartPage,
			EndPage:                    b.EndPage,
			DocumentType:               b.DocumentType,
			Title:                      b.Title,
			BatesRange:                 b.BatesRange,
			Confidence:                 b.Confidence,
			ProductionBatch:            req.ProductionBatch,
			SourceFile:                 sourceFile,
			ProducingParty:             req.ProducingParty,
			ResponsiveToRequests:       req.ResponsiveToRequests,
			ConfidentialityDesignation: req.ConfidentialityDesignation,
			PageTexts:                  pageTexts,
		}

		if seg.BatesRange == "" {
			seg.BatesRange = extractBatesRange(pageTexts)
		}
		if seg.Title == "" {
			seg.Title = deriveTitle(pageTexts)
		}

		segments = append(segments, seg)
	}
	return segments
}

// extractBatesRange scans the segment's pages for Bates stamps and returns
// "FIRST-LAST" (or the single stamp if only one was found). Empty when no
// stamp is present.
func extractBatesRange(pages []string) string {
	var first, last string
	for _, page := range pages {
		matches := batesPattern.FindAllString(page, -1)
		for _, m := range matches {
			if first == "" {
				first = m
			}
			last = m
		}
	}
	if first == "" {
		return ""
	}
	if first == last {
		return first
	}
	return first + "-" + last
}

// deriveTitle falls back to the first non-empty line of the segment.
func deriveTitle(pages []string) string {
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			// Truncate on runes so a multibyte character is never split.
			if r := []rune(line); len(r) > 80 {
				line = string(r[:80])
			}
			return line
		}
	}
	return "Untitled Document"
}
