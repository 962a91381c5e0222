package embedding

import (
	"math"

	"github.com/jonathan/resume-screener/internal/types"
)

// Similarity returns the cosine similarity of a and b clamped to [0, 1].
// Vectors of different length or zero magnitude score 0.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case math.IsNaN(cos) || cos < 0:
		return 0
	case cos > 1:
		return 1
	}
	return cos
}

// MaxChunkSimilarity returns the best similarity between query and any
// embedded chunk, and false when no chunk carries a vector.
func MaxChunkSimilarity(query []float32, chunks []types.CvEmbeddingChunk) (float64, bool) {
	best, found := 0.0, false
	for _, c := range chunks {
		if len(c.Vector) == 0 {
			continue
		}
		if s := Similarity(query, c.Vector); !found || s > best {
			best, found = s, true
		}
	}
	return best, found
}

// MaxPairSimilarity returns the best similarity over every pair of chunks
// from a and b, and false when either side has no embedded chunk.
func MaxPairSimilarity(a, b []types.CvEmbeddingChunk) (float64, bool) {
	best, found := 0.0, false
	for _, c := range a {
		if len(c.Vector) == 0 {
			continue
		}
		if s, ok := MaxChunkSimilarity(c.Vector, b); ok && (!found || s > best) {
			best, found = s, true
		}
	}
	return best, found
}
