package types

import (
	"time"

	"github.com/google/uuid"
)

// ScreeningStatus is the state of a ScreeningResult
type ScreeningStatus string

const (
	ScreeningPending    ScreeningStatus = "PENDING"
	ScreeningProcessing ScreeningStatus = "PROCESSING"
	ScreeningCompleted  ScreeningStatus = "COMPLETED"
	ScreeningFailed     ScreeningStatus = "FAILED"
)

// IsTerminal reports whether no worker will touch the result again
func (s ScreeningStatus) IsTerminal() bool {
	return s == ScreeningCompleted || s == ScreeningFailed
}

// CanCancel reports whether a cancel request is allowed from this state
func (s ScreeningStatus) CanCancel() bool {
	return s == ScreeningPending || s == ScreeningProcessing
}

// CanRetry reports whether an operator retry is allowed from this state
func (s ScreeningStatus) CanRetry() bool {
	return s == ScreeningFailed
}

// FitTier names a band of the overall score
type FitTier string

const (
	FitStrong   FitTier = "strong_fit"
	FitGood     FitTier = "good_fit"
	FitModerate FitTier = "moderate_fit"
	FitPoor     FitTier = "poor_fit"
)

// ScreeningResult is the per-application screening record.
// Score fields are nil until computed; a nil sub-score after completion
// means that stage degraded.
type ScreeningResult struct {
	ID                  uuid.UUID         `json:"id"`
	ApplicationID       uuid.UUID         `json:"application_id"`
	Status              ScreeningStatus   `json:"status"`
	OverallScore        *float64          `json:"overall_score,omitempty"`
	SkillsScore         *float64          `json:"skills_score,omitempty"`
	ExperienceScore     *float64          `json:"experience_score,omitempty"`
	EducationScore      *float64          `json:"education_score,omitempty"`
	VectorSimilarity    *float64          `json:"vector_similarity,omitempty"`
	ChunkSimilarity     *float64          `json:"chunk_similarity,omitempty"`
	FitTier             FitTier           `json:"fit_tier,omitempty"`
	ExtractedSkills     []string          `json:"extracted_skills,omitempty"`
	ExtractedExperience []ExperienceEntry `json:"extracted_experience,omitempty"`
	ExtractedEducation  []EducationEntry  `json:"extracted_education,omitempty"`
	AISummary           string            `json:"ai_summary,omitempty"`
	KeyHighlights       []string          `json:"key_highlights,omitempty"`
	Concerns            []string          `json:"concerns,omitempty"`
	StageErrors         map[string]string `json:"stage_errors,omitempty"`
	ErrorMessage        *string           `json:"error_message,omitempty"`
	RetryCount          int               `json:"retry_count"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	StartedAt           *time.Time        `json:"started_at,omitempty"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`
	ProcessingTimeMs    *int64            `json:"processing_time_ms,omitempty"`
}

// ScreeningOutcome carries everything a worker writes when a run completes
type ScreeningOutcome struct {
	OverallScore        *float64
	SkillsScore         *float64
	ExperienceScore     *float64
	EducationScore      *float64
	VectorSimilarity    *float64
	ChunkSimilarity     *float64
	FitTier             FitTier
	ExtractedSkills     []string
	ExtractedExperience []ExperienceEntry
	ExtractedEducation  []EducationEntry
	AISummary           string
	KeyHighlights       []string
	Concerns            []string
	StageErrors         map[string]string
}
