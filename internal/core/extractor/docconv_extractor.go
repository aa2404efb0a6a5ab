package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/Discovera/internal/core"
)

var _ core.PageExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.PageExtractor using sajari/docconv.
// pdftotext separates pages with form feeds, which is what SplitPages keys on.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractPages converts the raw document bytes and splits the result into
// per-page plain text. Returns an error when nothing at all is recoverable.
func (e *DocconvExtractor) ExtractPages(ctx context.Context, data []byte, contentType string) ([]string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv: extraction failed for content type %q: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages := SplitPages(res.Body)
	if len(pages) == 0 {
		return nil, fmt.Errorf("docconv: extracted empty text for content type %q", contentType)
	}
	return pages, nil
}

// SplitPages breaks extracted text on form-feed page delimiters and
// normalizes each page's whitespace. Text without form feeds comes back as
// a single page. Pages that are entirely blank stay in place as empty
// strings so page indices still match the source document.
func SplitPages(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	raw := strings.Split(text, "\f")
	pages := make([]string, 0, len(raw))
	for _, p := range raw {
		var lines []string
		for _, line := range strings.Split(p, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			lines = append(lines, line)
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}

	// A trailing form feed leaves one empty page at the end; drop it.
	for len(pages) > 0 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
