package screening

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-screener/internal/document"
	"github.com/jonathan/resume-screener/internal/embedding"
	"github.com/jonathan/resume-screener/internal/llm"
	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/parsing"
	"github.com/jonathan/resume-screener/internal/ranking"
	"github.com/jonathan/resume-screener/internal/skills"
	"github.com/jonathan/resume-screener/internal/types"
)

// Stage names used in progress events and StageErrors
const (
	StageLoad      = "load"
	StageRead      = "read"
	StageExtract   = "extract"
	StageEmbedding = "embedding"
	StageSkills    = "skills"
	StageScore     = "score"
	StageSummary   = "summary"
)

// ProgressEvent reports that a pipeline stage finished
type ProgressEvent struct {
	ApplicationID uuid.UUID
	Stage         string
	Message       string
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Blobs reads stored files
type Blobs interface {
	Read(ctx context.Context, rel string) ([]byte, error)
}

// DocumentReader turns a stored file into text
type DocumentReader interface {
	Read(ctx context.Context, data []byte, mimeType, filename string) (document.Text, error)
}

// Embedder produces vectors for the semantic sub-score
type Embedder interface {
	Embed(ctx context.Context, text string, typ types.EmbeddingType) ([]float32, error)
	EmbedDocument(ctx context.Context, applicationID uuid.UUID, text string, typ types.EmbeddingType) (*types.CvEmbedding, error)
	Model() string
}

// EmbeddingStore persists computed vectors
type EmbeddingStore interface {
	UpsertEmbedding(ctx context.Context, e *types.CvEmbedding) error
}

// PipelineDeps are the collaborators of a Pipeline. Embedder, Embeddings
// and LLM are optional: without them the vector sub-score is skipped and
// the summary is rule-based.
type PipelineDeps struct {
	Registry   Registry
	Documents  Documents
	Blobs      Blobs
	Reader     DocumentReader
	Extractor  *parsing.Extractor
	Scorer     *ranking.Scorer
	Embedder   Embedder
	Embeddings EmbeddingStore
	LLM        llm.Client
	LLMTier    llm.ModelTier
	// SpecificityWeight blends LLM-judged specificity into skill weights
	SpecificityWeight float64
	OnProgress        ProgressCallback
}

// Pipeline computes screening outcomes. It implements Runner.
type Pipeline struct {
	deps   PipelineDeps
	logger *zap.Logger
}

// NewPipeline creates a Pipeline
func NewPipeline(deps PipelineDeps, logger *zap.Logger) *Pipeline {
	if deps.Extractor == nil {
		deps.Extractor = parsing.NewExtractor(logger)
	}
	if deps.Scorer == nil {
		deps.Scorer = ranking.NewScorer(ranking.DefaultWeights(), ranking.DefaultThresholds())
	}
	if deps.LLMTier == "" {
		deps.LLMTier = llm.TierLite
	}
	return &Pipeline{deps: deps, logger: logging.OrNop(logger)}
}

// semanticResult holds the outputs of the embedding branch
type semanticResult struct {
	vector *float64
	chunk  *float64
	err    error
}

// targetsResult holds the outputs of the skill target branch
type targetsResult struct {
	targets *types.SkillTargets
	err     error
}

// Run screens one application. cancelled is polled between stages; once it
// reports true the run stops with ErrCancelled.
func (p *Pipeline) Run(ctx context.Context, applicationID uuid.UUID, cancelled func() bool) (*types.ScreeningOutcome, error) {
	log := p.logger.With(zap.String("application_id", applicationID.String()))
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	// Step 1: application and job posting
	app, posting, err := p.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	p.emit(applicationID, StageLoad, posting.Title)

	// Step 2: résumé text
	text, err := p.resumeText(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	p.emit(applicationID, StageRead, fmt.Sprintf("%d characters via %s", len([]rune(text.Content)), text.Source))
	if cancelled() {
		return nil, ErrCancelled
	}

	// Step 3: structured extraction
	cv := p.deps.Extractor.Extract(text.Content)
	p.emit(applicationID, StageExtract, fmt.Sprintf("%d skills, %.1f years", len(cv.AllSkills()), cv.TotalYearsOfExperience))

	// Step 4: embeddings and skill targets run concurrently
	var (
		semantic semanticResult
		targets  targetsResult
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		semantic = p.semanticBranch(gctx, applicationID, text.Content, cv, posting, log)
		return gctx.Err()
	})
	g.Go(func() error {
		targets = p.targetsBranch(gctx, posting, log)
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stageErrors := make(map[string]string)
	if semantic.err != nil {
		stageErrors[StageEmbedding] = semantic.err.Error()
	}
	if targets.err != nil {
		stageErrors[StageSkills] = targets.err.Error()
	}
	p.emit(applicationID, StageEmbedding, "semantic and skill branches done")
	if cancelled() {
		return nil, ErrCancelled
	}

	// Step 5: scoring
	in := ranking.Input{
		CV:               cv,
		Posting:          posting,
		Targets:          targets.targets,
		VectorSimilarity: semantic.vector,
		ChunkSimilarity:  semantic.chunk,
	}
	b := p.deps.Scorer.Score(in)
	if b.Overall != nil {
		p.emit(applicationID, StageScore, fmt.Sprintf("overall %.2f (%s)", *b.Overall, b.FitTier))
	}

	// Step 6: summary
	summary := ranking.SummarizeWithFallback(ctx, p.deps.LLM, p.deps.LLMTier, in, b, log)
	if p.deps.LLM != nil && !summary.Generated {
		stageErrors[StageSummary] = "AI summary unavailable, rule-based summary used"
	}
	p.emit(applicationID, StageSummary, "")
	if cancelled() {
		return nil, ErrCancelled
	}

	if err := p.deps.Registry.UpdateCandidateProfile(ctx, app.CandidateID, cv.Personal.Phone, cv.AllSkills()); err != nil {
		log.Warn("failed to update candidate profile", zap.Error(err))
	}

	outcome := &types.ScreeningOutcome{
		OverallScore:        b.Overall,
		SkillsScore:         b.Skills,
		ExperienceScore:     b.Experience,
		EducationScore:      b.Education,
		VectorSimilarity:    semantic.vector,
		ChunkSimilarity:     semantic.chunk,
		FitTier:             b.FitTier,
		ExtractedSkills:     extractedSkills(cv),
		ExtractedExperience: cv.Experience,
		ExtractedEducation:  cv.Education,
		AISummary:           summary.Summary,
		KeyHighlights:       summary.KeyHighlights,
		Concerns:            summary.Concerns,
	}
	if len(stageErrors) > 0 {
		outcome.StageErrors = stageErrors
		log.Warn("screening degraded", zap.Any("stage_errors", stageErrors))
	}
	return outcome, nil
}

func (p *Pipeline) load(ctx context.Context, applicationID uuid.UUID) (*types.Application, *types.JobPosting, error) {
	app, err := p.deps.Registry.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, &TransientError{Stage: "load application", Cause: err}
	}
	if app == nil {
		return nil, nil, &InputError{Message: "application " + applicationID.String(), Cause: ErrNotFound}
	}

	posting, err := p.deps.Registry.GetJobPosting(ctx, app.JobPostingID)
	if err != nil {
		return nil, nil, &TransientError{Stage: "load job posting", Cause: err}
	}
	if posting == nil {
		return nil, nil, &InputError{Message: "job posting " + app.JobPostingID.String(), Cause: ErrNotFound}
	}
	return app, posting, nil
}

// resumeText reads the newest résumé that yields text. Files are listed
// newest first, so an updated résumé wins over an older one.
func (p *Pipeline) resumeText(ctx context.Context, applicationID uuid.UUID) (document.Text, error) {
	files, err := p.deps.Documents.ListApplicationFiles(ctx, applicationID, types.KindResume)
	if err != nil {
		return document.Text{}, &TransientError{Stage: "list files", Cause: err}
	}
	if len(files) == 0 {
		return document.Text{}, &InputError{Message: "no résumé file", Cause: ErrNoResume}
	}

	var readErr, textErr error
	for _, f := range files {
		data, err := p.deps.Blobs.Read(ctx, f.FileURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return document.Text{}, ctxErr
			}
			p.logger.Warn("failed to read stored résumé",
				zap.String("file_url", f.FileURL), zap.Error(err))
			readErr = err
			continue
		}

		text, err := p.deps.Reader.Read(ctx, data, f.MIMEType, f.OriginalName)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return document.Text{}, ctxErr
			}
			p.logger.Warn("no text in résumé",
				zap.String("file_url", f.FileURL), zap.Error(err))
			textErr = err
			continue
		}
		return text, nil
	}

	if readErr != nil {
		return document.Text{}, &TransientError{Stage: "read résumé", Cause: readErr}
	}
	return document.Text{}, &InputError{Message: "no readable résumé text", Cause: textErr}
}

// semanticBranch embeds the résumé and the posting. Any failure leaves the
// similarities nil so the overall score redistributes the vector weight.
func (p *Pipeline) semanticBranch(ctx context.Context, applicationID uuid.UUID, text string, cv *types.ProcessedCvData, posting *types.JobPosting, log *zap.Logger) semanticResult {
	if p.deps.Embedder == nil {
		return semanticResult{err: errors.New("embedding provider not configured")}
	}

	doc, err := p.deps.Embedder.EmbedDocument(ctx, applicationID, text, types.EmbeddingFullText)
	if err != nil {
		log.Warn("résumé embedding failed", zap.Error(err))
		return semanticResult{err: err}
	}
	job, err := p.deps.Embedder.EmbedDocument(ctx, applicationID, posting.FullText(), types.EmbeddingJobDescription)
	if err != nil {
		log.Warn("job posting embedding failed", zap.Error(err))
		return semanticResult{err: err}
	}

	res := semanticResult{}
	sim := embedding.Similarity(doc.Vector, job.Vector)
	res.vector = &sim
	if chunk, ok := embedding.MaxPairSimilarity(doc.Chunks, job.Chunks); ok {
		res.chunk = &chunk
	}

	p.store(ctx, doc, log)
	p.store(ctx, job, log)

	// Section vectors are stored for search only; they do not feed the score
	for typ, s := range map[types.EmbeddingType]string{
		types.EmbeddingSkills:          strings.Join(extractedSkills(cv), ", "),
		types.EmbeddingExperience:      experienceText(cv),
		types.EmbeddingJobRequirements: posting.Requirements,
	} {
		if strings.TrimSpace(s) == "" {
			continue
		}
		vec, err := p.deps.Embedder.Embed(ctx, s, typ)
		if err != nil {
			log.Debug("section embedding skipped", zap.String("type", string(typ)), zap.Error(err))
			continue
		}
		p.store(ctx, &types.CvEmbedding{
			ApplicationID: applicationID,
			EmbeddingType: typ,
			Model:         p.deps.Embedder.Model(),
			ContentHash:   embedding.ContentHash(s),
			Vector:        vec,
		}, log)
	}
	return res
}

func (p *Pipeline) store(ctx context.Context, e *types.CvEmbedding, log *zap.Logger) {
	if p.deps.Embeddings == nil {
		return
	}
	if err := p.deps.Embeddings.UpsertEmbedding(ctx, e); err != nil {
		log.Warn("failed to save embedding",
			zap.String("type", string(e.EmbeddingType)), zap.Error(err))
	}
}

func (p *Pipeline) targetsBranch(ctx context.Context, posting *types.JobPosting, log *zap.Logger) targetsResult {
	var (
		targets *types.SkillTargets
		err     error
	)
	if p.deps.LLM != nil && p.deps.SpecificityWeight > 0 {
		targets, err = skills.BuildSkillTargetsWithSpecificity(ctx, skills.RequirementsFromPosting(posting), p.deps.LLM, p.deps.SpecificityWeight, log)
	} else {
		targets, err = skills.ForPosting(posting)
	}
	if err != nil {
		log.Warn("no skill targets for posting", zap.Error(err))
		return targetsResult{err: err}
	}
	return targetsResult{targets: targets}
}

func (p *Pipeline) emit(applicationID uuid.UUID, stage, message string) {
	if p.deps.OnProgress != nil {
		p.deps.OnProgress(ProgressEvent{ApplicationID: applicationID, Stage: stage, Message: message})
	}
}

// extractedSkills returns technical, programming and spoken language skills
func extractedSkills(cv *types.ProcessedCvData) []string {
	out := cv.AllSkills()
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s] = true
	}
	for _, s := range cv.LanguageSkills {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func experienceText(cv *types.ProcessedCvData) string {
	var sb strings.Builder
	for _, e := range cv.Experience {
		line := strings.TrimSpace(strings.Join([]string{e.Title, e.Company}, " "))
		if line != "" {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		if e.Description != "" {
			sb.WriteString(e.Description)
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String())
}
