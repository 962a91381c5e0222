package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-screener/internal/types"
)

// -----------------------------------------------------------------------------
// Job Posting Methods
// -----------------------------------------------------------------------------

// GetJobPosting retrieves a job posting by its ID
func (db *DB) GetJobPosting(ctx context.Context, id uuid.UUID) (*types.JobPosting, error) {
	var p types.JobPosting
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, description, requirements, min_years_experience,
		        min_education_level, status, deadline
		 FROM job_postings WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Title, &p.Description, &p.Requirements, &p.MinYearsExperience,
		&p.MinEducationLevel, &p.Status, &p.Deadline)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job posting: %w", err)
	}
	return &p, nil
}

// UpsertJobPosting creates or replaces a job posting
func (db *DB) UpsertJobPosting(ctx context.Context, p *types.JobPosting) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = types.JobPostingOpen
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_postings (id, title, description, requirements, min_years_experience,
		                           min_education_level, status, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   title = $2, description = $3, requirements = $4, min_years_experience = $5,
		   min_education_level = $6, status = $7, deadline = $8, updated_at = NOW()`,
		p.ID, p.Title, p.Description, p.Requirements, p.MinYearsExperience,
		p.MinEducationLevel, p.Status, p.Deadline,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job posting: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Candidate and Application Methods
// -----------------------------------------------------------------------------

// FindOrCreateCandidate returns the candidate with email, creating it when
// missing. A known candidate keeps its stored name unless it was empty.
func (db *DB) FindOrCreateCandidate(ctx context.Context, email, name string) (*types.Candidate, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("candidate email is required")
	}

	var c types.Candidate
	err := db.pool.QueryRow(ctx,
		`INSERT INTO candidates (email, name) VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET
		   name = CASE WHEN candidates.name = '' THEN EXCLUDED.name ELSE candidates.name END,
		   updated_at = NOW()
		 RETURNING id, name, email, phone, skills, created_at, updated_at`,
		email, strings.TrimSpace(name),
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Skills, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert candidate: %w", err)
	}
	return &c, nil
}

// FindOrCreateApplication returns the application of a candidate to a job,
// creating it when missing
func (db *DB) FindOrCreateApplication(ctx context.Context, candidateID, jobPostingID uuid.UUID) (*types.Application, error) {
	var a types.Application
	err := db.pool.QueryRow(ctx,
		`INSERT INTO applications (candidate_id, job_posting_id) VALUES ($1, $2)
		 ON CONFLICT (candidate_id, job_posting_id) DO UPDATE SET candidate_id = EXCLUDED.candidate_id
		 RETURNING id, candidate_id, job_posting_id, created_at`,
		candidateID, jobPostingID,
	).Scan(&a.ID, &a.CandidateID, &a.JobPostingID, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert application: %w", err)
	}
	return &a, nil
}

// GetApplication retrieves an application with its screening status, or nil
func (db *DB) GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error) {
	var a types.Application
	var status *string
	err := db.pool.QueryRow(ctx,
		`SELECT a.id, a.candidate_id, a.job_posting_id, a.created_at, s.status
		 FROM applications a
		 LEFT JOIN screening_results s ON s.application_id = a.id
		 WHERE a.id = $1`,
		id,
	).Scan(&a.ID, &a.CandidateID, &a.JobPostingID, &a.CreatedAt, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if status != nil {
		a.ScreeningStatus = *status
	}
	return &a, nil
}

// UpdateCandidateProfile fills in phone and skills found in a parsed résumé
func (db *DB) UpdateCandidateProfile(ctx context.Context, id uuid.UUID, phone string, skills []string) error {
	if skills == nil {
		skills = []string{}
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE candidates SET
		   phone = CASE WHEN $2 = '' THEN phone ELSE $2 END,
		   skills = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, phone, skills,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate profile: %w", err)
	}
	return nil
}
