package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	assert.Empty(t, ChunkText("", ChunkerConfig{TargetTokens: 100}))
	assert.Empty(t, ChunkText("\n\n  \n", ChunkerConfig{TargetTokens: 100}))
}

func TestChunkText_SingleSmallChunk(t *testing.T) {
	chunks := ChunkText("a short line\nanother line", ChunkerConfig{TargetTokens: 100, OverlapTokens: 10})
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, "a short line\nanother line", chunks[0].Text)
	assert.Greater(t, chunks[0].TokenCount, 0)
}

func TestChunkText_SplitsAtTarget(t *testing.T) {
	// 40 lines of ~10 tokens each against a 100-token target must produce
	// several chunks with stable, increasing positions.
	line := strings.Repeat("word ", 8)
	text := strings.TrimSpace(strings.Repeat(line+"\n", 40))

	chunks := ChunkText(text, ChunkerConfig{TargetTokens: 100, OverlapTokens: 0})

	require.Greater(t, len(chunks), 2)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.NotEmpty(t, c.Text)
	}
}

func TestChunkText_OverlapCarriesTail(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, strings.Repeat("x", 40)) // ~10 tokens per line
	}
	text := strings.Join(lines, "\n")

	chunks := ChunkText(text, ChunkerConfig{TargetTokens: 100, OverlapTokens: 20})
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first must start with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prevLines := strings.Split(chunks[i-1].Text, "\n")
		carried := prevLines[len(prevLines)-1]
		assert.True(t, strings.HasPrefix(chunks[i].Text, carried),
			"chunk %d does not start with the previous chunk's tail", i)
	}
}

func TestChunkText_NoTrailingDuplicate(t *testing.T) {
	// Text that flushes exactly at the target: the leftover overlap seed
	// alone must not produce one extra, duplicated chunk.
	line := strings.Repeat("y", 400) // ~100 tokens
	chunks := ChunkText(line, ChunkerConfig{TargetTokens: 100, OverlapTokens: 50})
	require.Len(t, chunks, 1)
}

func TestChunkText_DefaultsApplied(t *testing.T) {
	chunks := ChunkText("some text", ChunkerConfig{})
	require.Len(t, chunks, 1)
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("abc"))
	assert.Equal(t, 1, approxTokens("abcd"))
	assert.Equal(t, 2, approxTokens("abcde"))
}
