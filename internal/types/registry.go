package types

import (
	"time"

	"github.com/google/uuid"
)

// JobPostingStatus is the publication state of a job posting
type JobPostingStatus string

const (
	JobPostingOpen   JobPostingStatus = "open"
	JobPostingClosed JobPostingStatus = "closed"
	JobPostingDraft  JobPostingStatus = "draft"
)

// JobPosting is the read view of a job posting owned by the registry
type JobPosting struct {
	ID                 uuid.UUID        `json:"id"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	Requirements       string           `json:"requirements"`
	MinYearsExperience float64          `json:"min_years_experience"`
	MinEducationLevel  string           `json:"min_education_level,omitempty"`
	Status             JobPostingStatus `json:"status"`
	Deadline           *time.Time       `json:"deadline,omitempty"`
}

// AcceptsApplications reports whether the posting is open at the given time
func (j *JobPosting) AcceptsApplications(now time.Time) bool {
	if j == nil || j.Status != JobPostingOpen {
		return false
	}
	return j.Deadline == nil || !now.After(*j.Deadline)
}

// FullText returns description and requirements joined for embedding
func (j *JobPosting) FullText() string {
	if j.Requirements == "" {
		return j.Title + "\n\n" + j.Description
	}
	return j.Title + "\n\n" + j.Description + "\n\n" + j.Requirements
}

// Candidate is the registry view of a candidate
type Candidate struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Skills    []string  `json:"skills,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Application links a candidate to a job posting
type Application struct {
	ID              uuid.UUID `json:"id"`
	CandidateID     uuid.UUID `json:"candidate_id"`
	JobPostingID    uuid.UUID `json:"job_posting_id"`
	ScreeningStatus string    `json:"screening_status,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
