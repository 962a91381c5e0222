package embedding

import (
	"strings"
	"unicode"

	"github.com/jonathan/resume-screener/internal/types"
)

// DefaultChunkSize is the window length in runes when none is configured
const DefaultChunkSize = 1000

// Chunk splits text into consecutive, non-overlapping windows of at most
// size runes. Start and End are rune offsets into text, End exclusive.
// Whitespace-only windows are dropped; the remaining ones keep their
// original offsets and are indexed densely from 0.
func Chunk(text string, size int) []types.CvEmbeddingChunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)

	var chunks []types.CvEmbeddingChunk
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		content := string(runes[start:end])
		if strings.TrimFunc(content, unicode.IsSpace) == "" {
			continue
		}
		chunks = append(chunks, types.CvEmbeddingChunk{
			Index:   len(chunks),
			Start:   start,
			End:     end,
			Content: content,
		})
	}
	return chunks
}
