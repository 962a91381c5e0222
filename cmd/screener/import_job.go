package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/types"
)

var importJobCmd = &cobra.Command{
	Use:   "import-job <file.json>",
	Short: "Create or replace a job posting",
	Long: `Load a job posting from JSON into the registry. Applications reach it at
job<ID>@<webhook.domain>. Fields: id (optional), title, description,
requirements, min_years_experience, min_education_level, status
(open|closed|draft, default open), deadline (any common date format).`,
	Args: cobra.ExactArgs(1),
	RunE: runImportJob,
}

func init() {
	rootCmd.AddCommand(importJobCmd)
}

// jobFile is the on-disk form of a job posting
type jobFile struct {
	ID                 string  `json:"id" validate:"omitempty,uuid"`
	Title              string  `json:"title" validate:"required,max=255"`
	Description        string  `json:"description" validate:"required"`
	Requirements       string  `json:"requirements"`
	MinYearsExperience float64 `json:"min_years_experience" validate:"gte=0,lte=50"`
	MinEducationLevel  string  `json:"min_education_level"`
	Status             string  `json:"status" validate:"omitempty,oneof=open closed draft"`
	Deadline           string  `json:"deadline"`
}

var jobValidator = validator.New()

// parseJobFile decodes and validates a job posting. A missing id gets a
// fresh one.
func parseJobFile(data []byte) (*types.JobPosting, error) {
	var f jobFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid job posting JSON: %w", err)
	}
	if err := jobValidator.Struct(&f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid job posting: %s failed %q validation", verrs[0].Field(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("invalid job posting: %w", err)
	}

	job := &types.JobPosting{
		ID:                 uuid.New(),
		Title:              strings.TrimSpace(f.Title),
		Description:        f.Description,
		Requirements:       f.Requirements,
		MinYearsExperience: f.MinYearsExperience,
		MinEducationLevel:  f.MinEducationLevel,
		Status:             types.JobPostingOpen,
	}
	if f.ID != "" {
		job.ID = uuid.MustParse(f.ID)
	}
	if f.Status != "" {
		job.Status = types.JobPostingStatus(f.Status)
	}
	if f.Deadline != "" {
		t, err := dateparse.ParseIn(f.Deadline, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid job posting deadline %q: %w", f.Deadline, err)
		}
		job.Deadline = &t
	}
	return job, nil
}

func runImportJob(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	job, err := parseJobFile(data)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	database, err := db.Connect(cmd.Context(), cfg.Database.URL, cfg.Database.MaxConns, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.UpsertJobPosting(cmd.Context(), job); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported job posting %s (%s)\n", job.ID, job.Title)
	if cfg.Webhook.Domain != "" {
		fmt.Fprintf(out, "Applications: job%s@%s\n", job.ID, cfg.Webhook.Domain)
	}
	return nil
}
