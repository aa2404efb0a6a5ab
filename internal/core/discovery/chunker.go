package discovery

import (
	"strings"

	"github.com/markdave123-py/Discovera/internal/models"
)

// ChunkerConfig tunes segment chunking.
//
// TargetTokens:  approximate tokens per chunk (e.g., 500).
// OverlapTokens: tokens retained from the end of the previous chunk as seed
//                of the next, for context bleed across chunk boundaries.
type ChunkerConfig struct {
	TargetTokens  int
	OverlapTokens int
}

// ChunkText splits a segment's text into token-bounded, overlapping chunks.
// Chunk positions are stable and zero-based, so storage under the segment's
// document identity is reproducible run to run.
func ChunkText(text string, cfg ChunkerConfig) []models.Chunk {
	if cfg.TargetTokens < 1 {
		cfg.TargetTokens = 500
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}

	var chunks []models.Chunk
	var buf []string
	var tokSum int
	pos := 0
	fresh := 0 // lines added since the last flush

	// flush emits the current buffer and keeps an overlap tail for the next chunk.
	flush := func() {
		if tokSum == 0 {
			return
		}
		chunks = append(chunks, models.Chunk{
			Position:   pos,
			Text:       strings.Join(buf, "\n"),
			TokenCount: tokSum,
		})
		pos++
		fresh = 0

		if cfg.OverlapTokens > 0 {
			keep := []string{}
			remain := cfg.OverlapTokens
			for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
				keep = append([]string{buf[j]}, keep...) // prepend to keep original order
				remain -= approxTokens(buf[j])
			}
			buf = keep
			tokSum = 0
			for _, s := range buf {
				tokSum += approxTokens(s)
			}
		} else {
			buf = buf[:0]
			tokSum = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		buf = append(buf, line)
		tokSum += approxTokens(line)
		fresh++

		if tokSum >= cfg.TargetTokens {
			flush()
		}
	}

	// Emit the remaining tail only if it carries material beyond the overlap
	// seed; otherwise the last chunk would be duplicated.
	if fresh > 0 {
		flush()
	}

	return chunks
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
// Replace with a real tokenizer later to improve chunk boundaries.
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
