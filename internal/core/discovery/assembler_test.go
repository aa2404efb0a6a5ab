package discovery

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Discovera/internal/models"
)

func testRequest() *models.ProcessRequest {
	return &models.ProcessRequest{
		CaseID:                     "case-1",
		CaseName:                   "Smith v. Jones",
		ProductionBatch:            "PROD-003",
		ProducingParty:             "Acme Corp",
		ResponsiveToRequests:       []string{"RFP-12"},
		ConfidentialityDesignation: "CONFIDENTIAL",
	}
}

func TestSegmentID_Deterministic(t *testing.T) {
	a := SegmentID("case-1", "PROD-003", "vol1.pdf", 0, 4)
	b := SegmentID("case-1", "PROD-003", "vol1.pdf", 0, 4)
	assert.Equal(t, a, b, "reprocessing the same batch must yield identical identities")

	assert.NotEqual(t, a, SegmentID("case-2", "PROD-003", "vol1.pdf", 0, 4))
	assert.NotEqual(t, a, SegmentID("case-1", "PROD-004", "vol1.pdf", 0, 4))
	assert.NotEqual(t, a, SegmentID("case-1", "PROD-003", "vol2.pdf", 0, 4))
	assert.NotEqual(t, a, SegmentID("case-1", "PROD-003", "vol1.pdf", 0, 5))
}

func TestSegmentID_DistinctAcrossFilesInOneBatch(t *testing.T) {
	// Two files in the same batch share a page coordinate space: boundaries
	// landing on identical page ranges must still yield distinct documents.
	req := testRequest()
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 1, Confidence: 0.9, DocumentType: "EMAIL"},
	}

	fromA := AssembleSegments(boundaries, []string{"a one", "a two"}, "vol1.pdf", req)
	fromB := AssembleSegments(boundaries, []string{"b one", "b two"}, "vol2.pdf", req)

	require.Len(t, fromA, 1)
	require.Len(t, fromB, 1)
	assert.NotEqual(t, fromA[0].ID, fromB[0].ID)
	assert.Equal(t, "vol1.pdf", fromA[0].SourceFile)
	assert.Equal(t, "vol2.pdf", fromB[0].SourceFile)
}

func TestAssembleSegments_CarriesProvenance(t *testing.T) {
	pages := []string{"INVOICE\nAmount due: $500", "Terms and conditions", "Signature page"}
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 2, Confidence: 0.85, DocumentType: "FINANCIAL_RECORD", Title: "Invoice 233"},
	}

	segments := AssembleSegments(boundaries, pages, "vol1.pdf", testRequest())

	require.Len(t, segments, 1)
	seg := segments[0]
	assert.Equal(t, "case-1", seg.CaseID)
	assert.Equal(t, "PROD-003", seg.ProductionBatch)
	assert.Equal(t, "Acme Corp", seg.ProducingParty)
	assert.Equal(t, []string{"RFP-12"}, seg.ResponsiveToRequests)
	assert.Equal(t, "CONFIDENTIAL", seg.ConfidentialityDesignation)
	assert.Equal(t, "Invoice 233", seg.Title)
	assert.Equal(t, 3, seg.PageCount())
	assert.Equal(t, "INVOICE\nAmount due: $500\nTerms and conditions\nSignature page", seg.Text())
}

func TestAssembleSegments_BatesRangeFromPageText(t *testing.T) {
	pages := []string{
		"Dear counsel,\nACME000101",
		"body of the letter\nACME000102",
		"regards\nACME000103",
	}
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 2, Confidence: 0.9, DocumentType: "LETTER"},
	}

	segments := AssembleSegments(boundaries, pages, "vol1.pdf", testRequest())

	require.Len(t, segments, 1)
	assert.Equal(t, "ACME000101-ACME000103", segments[0].BatesRange)
}

func TestAssembleSegments_DetectorBatesWinsOverExtraction(t *testing.T) {
	pages := []string{"text\nZZZ0001"}
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 0, Confidence: 0.9, DocumentType: "OTHER", BatesRange: "ABC0001-ABC0001"},
	}

	segments := AssembleSegments(boundaries, pages, "vol1.pdf", testRequest())
	require.Len(t, segments, 1)
	assert.Equal(t, "ABC0001-ABC0001", segments[0].BatesRange)
}

func TestAssembleSegments_NoBatesStamp(t *testing.T) {
	pages := []string{"handwritten note", "no stamps anywhere"}
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 1, Confidence: 0.6, DocumentType: "OTHER"},
	}

	segments := AssembleSegments(boundaries, pages, "vol1.pdf", testRequest())
	require.Len(t, segments, 1)
	assert.Empty(t, segments[0].BatesRange)
}

func TestAssembleSegments_SingleStamp(t *testing.T) {
	pages := []string{"one page\nDEF00042"}
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 0, Confidence: 0.7, DocumentType: "OTHER"},
	}

	segments := AssembleSegments(boundaries, pages, "vol1.pdf", testRequest())
	require.Len(t, segments, 1)
	assert.Equal(t, "DEF00042", segments[0].BatesRange)
}

func TestAssembleSegments_TitleFallsBackToFirstLine(t *testing.T) {
	pages := []string{"\n\nMEMORANDUM OF UNDERSTANDING\nbetween the parties"}
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 0, Confidence: 0.8, DocumentType: "MEMO"},
	}

	segments := AssembleSegments(boundaries, pages, "vol1.pdf", testRequest())
	require.Len(t, segments, 1)
	assert.Equal(t, "MEMORANDUM OF UNDERSTANDING", segments[0].Title)
}

func TestAssembleSegments_TitleTruncationKeepsValidUTF8(t *testing.T) {
	// 79 ASCII characters followed by multibyte runes: a byte-offset cut at 80
	// would split the first é. The derived title must stay valid UTF-8.
	long := strings.Repeat("x", 79) + "ééééé"
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 0, Confidence: 0.8, DocumentType: "OTHER"},
	}

	segments := AssembleSegments(boundaries, []string{long}, "vol1.pdf", testRequest())
	require.Len(t, segments, 1)
	title := segments[0].Title
	assert.True(t, utf8.ValidString(title), "title must not contain a split rune")
	assert.Equal(t, 80, len([]rune(title)))
	assert.Equal(t, strings.Repeat("x", 79)+"é", title)
}

func TestAssembleSegments_PageTextsAreCopies(t *testing.T) {
	pages := []string{"original"}
	boundaries := []models.DocumentBoundary{
		{StartPage: 0, EndPage: 0, Confidence: 0.8, DocumentType: "OTHER"},
	}

	segments := AssembleSegments(boundaries, pages, "vol1.pdf", testRequest())
	require.Len(t, segments, 1)

	pages[0] = "mutated"
	assert.Equal(t, "original", segments[0].PageTexts[0], "segments are immutable value snapshots")
}

func TestAssembleSegments_BoundaryOutsidePageRangeSkipped(t *testing.T) {
	pages := []string{"only page"}
	boundaries := []models.DocumentBoundary{
		{StartPage: 5, EndPage: 9, Confidence: 0.8, DocumentType: "OTHER"},
	}
	assert.Empty(t, AssembleSegments(boundaries, pages, "vol1.pdf", testRequest()))
}
