package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-screener/internal/types"
)

const screeningColumns = `id, application_id, status, overall_score, skills_score, experience_score,
	education_score, vector_similarity, chunk_similarity, fit_tier, extracted_skills,
	extracted_experience, extracted_education, ai_summary, key_highlights, concerns,
	stage_errors, error_message, retry_count, created_at, updated_at, started_at,
	completed_at, processing_time_ms`

func (db *DB) scanScreeningResult(row pgx.Row) (*types.ScreeningResult, error) {
	var r types.ScreeningResult
	var skillsJSON, expJSON, eduJSON, highlightsJSON, concernsJSON, stageJSON []byte
	err := row.Scan(&r.ID, &r.ApplicationID, &r.Status, &r.OverallScore, &r.SkillsScore,
		&r.ExperienceScore, &r.EducationScore, &r.VectorSimilarity, &r.ChunkSimilarity,
		&r.FitTier, &skillsJSON, &expJSON, &eduJSON, &r.AISummary, &highlightsJSON,
		&concernsJSON, &stageJSON, &r.ErrorMessage, &r.RetryCount, &r.CreatedAt,
		&r.UpdatedAt, &r.StartedAt, &r.CompletedAt, &r.ProcessingTimeMs)
	if err != nil {
		return nil, err
	}

	db.decodeJSON("extracted_skills", r.ID, skillsJSON, &r.ExtractedSkills)
	db.decodeJSON("extracted_experience", r.ID, expJSON, &r.ExtractedExperience)
	db.decodeJSON("extracted_education", r.ID, eduJSON, &r.ExtractedEducation)
	db.decodeJSON("key_highlights", r.ID, highlightsJSON, &r.KeyHighlights)
	db.decodeJSON("concerns", r.ID, concernsJSON, &r.Concerns)
	db.decodeJSON("stage_errors", r.ID, stageJSON, &r.StageErrors)
	return &r, nil
}

// GetScreeningResult retrieves the result of an application, or nil
func (db *DB) GetScreeningResult(ctx context.Context, applicationID uuid.UUID) (*types.ScreeningResult, error) {
	r, err := db.scanScreeningResult(db.pool.QueryRow(ctx,
		`SELECT `+screeningColumns+` FROM screening_results WHERE application_id = $1`,
		applicationID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get screening result: %w", err)
	}
	return r, nil
}

// CreatePendingResult inserts a PENDING result unless the application
// already has one. It returns the stored row and whether it was created.
func (db *DB) CreatePendingResult(ctx context.Context, applicationID uuid.UUID) (*types.ScreeningResult, bool, error) {
	r, err := db.scanScreeningResult(db.pool.QueryRow(ctx,
		`INSERT INTO screening_results (application_id, status)
		 VALUES ($1, 'PENDING')
		 ON CONFLICT (application_id) DO NOTHING
		 RETURNING `+screeningColumns,
		applicationID))
	if err == nil {
		return r, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, fmt.Errorf("failed to create screening result: %w", err)
	}

	existing, err := db.GetScreeningResult(ctx, applicationID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("screening result for %s vanished during create", applicationID)
	}
	return existing, false, nil
}

// ClaimForProcessing moves a PENDING result to PROCESSING. A result left in
// PROCESSING with started_at before staleBefore is reclaimed, which covers
// redelivery after a worker crash. It reports whether the claim succeeded.
func (db *DB) ClaimForProcessing(ctx context.Context, applicationID uuid.UUID, staleBefore time.Time) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE screening_results
		 SET status = 'PROCESSING', started_at = NOW(), updated_at = NOW(), error_message = NULL
		 WHERE application_id = $1
		   AND (status = 'PENDING' OR (status = 'PROCESSING' AND started_at < $2))`,
		applicationID, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim screening result: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// CompleteResult writes the outcome of a run. The write only happens while
// the result is still PROCESSING; false means it was cancelled meanwhile.
func (db *DB) CompleteResult(ctx context.Context, applicationID uuid.UUID, o *types.ScreeningOutcome) (bool, error) {
	skillsJSON, err := json.Marshal(o.ExtractedSkills)
	if err != nil {
		return false, fmt.Errorf("failed to marshal extracted skills: %w", err)
	}
	expJSON, err := json.Marshal(o.ExtractedExperience)
	if err != nil {
		return false, fmt.Errorf("failed to marshal extracted experience: %w", err)
	}
	eduJSON, err := json.Marshal(o.ExtractedEducation)
	if err != nil {
		return false, fmt.Errorf("failed to marshal extracted education: %w", err)
	}
	highlightsJSON, err := json.Marshal(o.KeyHighlights)
	if err != nil {
		return false, fmt.Errorf("failed to marshal highlights: %w", err)
	}
	concernsJSON, err := json.Marshal(o.Concerns)
	if err != nil {
		return false, fmt.Errorf("failed to marshal concerns: %w", err)
	}
	var stageJSON []byte
	if len(o.StageErrors) > 0 {
		if stageJSON, err = json.Marshal(o.StageErrors); err != nil {
			return false, fmt.Errorf("failed to marshal stage errors: %w", err)
		}
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE screening_results SET
		   status = 'COMPLETED',
		   overall_score = $2, skills_score = $3, experience_score = $4, education_score = $5,
		   vector_similarity = $6, chunk_similarity = $7, fit_tier = $8,
		   extracted_skills = $9, extracted_experience = $10, extracted_education = $11,
		   ai_summary = $12, key_highlights = $13, concerns = $14, stage_errors = $15,
		   error_message = NULL, completed_at = NOW(), updated_at = NOW(),
		   processing_time_ms = (EXTRACT(EPOCH FROM (NOW() - COALESCE(started_at, NOW()))) * 1000)::BIGINT
		 WHERE application_id = $1 AND status = 'PROCESSING'`,
		applicationID, o.OverallScore, o.SkillsScore, o.ExperienceScore, o.EducationScore,
		o.VectorSimilarity, o.ChunkSimilarity, o.FitTier,
		skillsJSON, expJSON, eduJSON, o.AISummary, highlightsJSON, concernsJSON, stageJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete screening result: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// FailResult moves a PENDING or PROCESSING result to FAILED with message.
// It reports whether a row changed.
func (db *DB) FailResult(ctx context.Context, applicationID uuid.UUID, message string) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE screening_results
		 SET status = 'FAILED', error_message = $2, completed_at = NOW(), updated_at = NOW(),
		     processing_time_ms = CASE WHEN started_at IS NULL THEN NULL
		       ELSE (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::BIGINT END
		 WHERE application_id = $1 AND status IN ('PENDING', 'PROCESSING')`,
		applicationID, message,
	)
	if err != nil {
		return false, fmt.Errorf("failed to fail screening result: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ResetForRetry moves a FAILED result back to PENDING, clears its previous
// outcome and increments retry_count. It reports whether a row changed.
func (db *DB) ResetForRetry(ctx context.Context, applicationID uuid.UUID) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE screening_results SET
		   status = 'PENDING', retry_count = retry_count + 1,
		   overall_score = NULL, skills_score = NULL, experience_score = NULL,
		   education_score = NULL, vector_similarity = NULL, chunk_similarity = NULL,
		   fit_tier = '', ai_summary = '', key_highlights = NULL, concerns = NULL,
		   stage_errors = NULL, error_message = NULL, started_at = NULL,
		   completed_at = NULL, processing_time_ms = NULL, updated_at = NOW()
		 WHERE application_id = $1 AND status = 'FAILED'`,
		applicationID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reset screening result: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ReleaseClaim returns a PROCESSING result to PENDING so a later delivery
// can claim it again. It reports whether a row changed.
func (db *DB) ReleaseClaim(ctx context.Context, applicationID uuid.UUID, message string) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE screening_results
		 SET status = 'PENDING', error_message = $2, started_at = NULL, updated_at = NOW()
		 WHERE application_id = $1 AND status = 'PROCESSING'`,
		applicationID, message,
	)
	if err != nil {
		return false, fmt.Errorf("failed to release screening result: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
