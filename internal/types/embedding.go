package types

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingType tags what text a vector was computed from
type EmbeddingType string

const (
	EmbeddingFullText        EmbeddingType = "full_text"
	EmbeddingSkills          EmbeddingType = "skills"
	EmbeddingExperience      EmbeddingType = "experience"
	EmbeddingJobDescription  EmbeddingType = "job_description"
	EmbeddingJobRequirements EmbeddingType = "job_requirements"
)

// CvEmbedding is the document-level vector for one (application, type) pair
type CvEmbedding struct {
	ID            uuid.UUID          `json:"id"`
	ApplicationID uuid.UUID          `json:"application_id"`
	EmbeddingType EmbeddingType      `json:"embedding_type"`
	Model         string             `json:"model"`
	ContentHash   string             `json:"content_hash"`
	Vector        []float32          `json:"-"`
	Chunks        []CvEmbeddingChunk `json:"chunks,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// CvEmbeddingChunk is the vector of one fixed-size slice of the source text.
// Start and End are rune offsets; chunks are ordered and never overlap.
type CvEmbeddingChunk struct {
	Index   int       `json:"index"`
	Start   int       `json:"start"`
	End     int       `json:"end"`
	Content string    `json:"content"`
	Vector  []float32 `json:"-"`
}
