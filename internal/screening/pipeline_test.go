package screening

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-screener/internal/parsing"
	"github.com/jonathan/resume-screener/internal/ranking"
	"github.com/jonathan/resume-screener/internal/types"
)

var pipelineNow = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

const backendCV = `TRAN MINH KHOA
Email: khoa.tran@example.com | Phone: 0903 111 222

WORK EXPERIENCE
Backend Engineer at Tiki
Jan 2020 - Present
- Built order services in Go and PostgreSQL
- Packaged services with Docker

EDUCATION
University of Science
Bachelor of Science in Computer Science, 2015 - 2019

SKILLS
Go, PostgreSQL, Docker
English (IELTS 7.0)`

func backendPosting() *types.JobPosting {
	return &types.JobPosting{
		Title:              "Backend Engineer",
		Description:        "We build Go services for retail.",
		Requirements:       "Go\nPostgreSQL\nNice to have:\nKubernetes",
		MinYearsExperience: 3,
		MinEducationLevel:  "bachelor",
		Status:             types.JobPostingOpen,
	}
}

type pipelineFixture struct {
	registry *fakeRegistry
	docs     *fakeDocuments
	blobs    *fakeBlobs
	embedder *fakeEmbedder
	events   []ProgressEvent
}

func newPipelineFixture() *pipelineFixture {
	return &pipelineFixture{
		registry: newFakeRegistry(),
		docs:     newFakeDocuments(),
		blobs:    &fakeBlobs{files: make(map[string][]byte)},
		embedder: &fakeEmbedder{},
	}
}

func (f *pipelineFixture) pipeline() *Pipeline {
	return NewPipeline(PipelineDeps{
		Registry:   f.registry,
		Documents:  f.docs,
		Blobs:      f.blobs,
		Reader:     plainReader{},
		Extractor:  parsing.NewExtractor(nil).WithClock(pipelineNow),
		Scorer:     ranking.NewScorer(ranking.DefaultWeights(), ranking.DefaultThresholds()).WithClock(pipelineNow),
		Embedder:   f.embedder,
		Embeddings: f.embedder,
		OnProgress: func(e ProgressEvent) { f.events = append(f.events, e) },
	}, nil)
}

func (f *pipelineFixture) application(posting *types.JobPosting, cv string) uuid.UUID {
	id := f.registry.addApplication(posting)
	url := "resume/" + id.String() + "_cv.txt"
	f.docs.addResume(id, "cv.txt", url)
	f.blobs.files[url] = []byte(cv)
	return id
}

func notCancelled() bool { return false }

func TestPipeline_Run(t *testing.T) {
	f := newPipelineFixture()
	id := f.application(backendPosting(), backendCV)

	out, err := f.pipeline().Run(context.Background(), id, notCancelled)
	require.NoError(t, err)

	require.NotNil(t, out.OverallScore)
	assert.Greater(t, *out.OverallScore, 50.0)
	assert.NotEmpty(t, out.FitTier)

	require.NotNil(t, out.VectorSimilarity)
	assert.InDelta(t, 1.0, *out.VectorSimilarity, 1e-9)
	require.NotNil(t, out.ChunkSimilarity, "a document in one window is its own chunk")
	assert.InDelta(t, 1.0, *out.ChunkSimilarity, 1e-9)

	require.NotNil(t, out.SkillsScore)
	assert.Greater(t, *out.SkillsScore, 0.5)
	require.NotNil(t, out.ExperienceScore)
	require.NotNil(t, out.EducationScore)
	assert.Equal(t, 1.0, *out.EducationScore)

	assert.Contains(t, out.ExtractedSkills, "Go")
	assert.Contains(t, out.ExtractedSkills, "English")
	assert.NotEmpty(t, out.ExtractedExperience)
	assert.NotEmpty(t, out.AISummary)
	assert.Nil(t, out.StageErrors)

	stored := f.embedder.storedTypes()
	for _, typ := range []types.EmbeddingType{
		types.EmbeddingFullText,
		types.EmbeddingJobDescription,
		types.EmbeddingSkills,
		types.EmbeddingExperience,
		types.EmbeddingJobRequirements,
	} {
		assert.True(t, stored[typ], "missing %s embedding", typ)
	}

	candidateID := f.registry.apps[id].CandidateID
	assert.Contains(t, f.registry.profiles[candidateID], "PostgreSQL")

	require.NotEmpty(t, f.events)
	assert.Equal(t, StageLoad, f.events[0].Stage)
	assert.Equal(t, StageSummary, f.events[len(f.events)-1].Stage)
}

func TestPipeline_ChunkSimilarityUsesBestPair(t *testing.T) {
	f := newPipelineFixture()
	f.embedder.chunkSize = 40
	posting := backendPosting()
	id := f.application(posting, "Experienced engineer with many years building services.\n\nSkills: Go")

	out, err := f.pipeline().Run(context.Background(), id, notCancelled)
	require.NoError(t, err)

	require.NotNil(t, out.ChunkSimilarity)
	assert.InDelta(t, 1.0, *out.ChunkSimilarity, 1e-9, "the Go chunks of both documents match")
}

func TestPipeline_EmbeddingFailureDegrades(t *testing.T) {
	f := newPipelineFixture()
	f.embedder.err = errors.New("quota exceeded")
	id := f.application(backendPosting(), backendCV)

	out, err := f.pipeline().Run(context.Background(), id, notCancelled)
	require.NoError(t, err)

	assert.Nil(t, out.VectorSimilarity)
	assert.Nil(t, out.ChunkSimilarity)
	require.NotNil(t, out.OverallScore, "remaining sub-scores still produce an overall score")
	assert.Contains(t, out.StageErrors[StageEmbedding], "quota exceeded")
}

func TestPipeline_NoEmbedder(t *testing.T) {
	f := newPipelineFixture()
	id := f.application(backendPosting(), backendCV)
	p := f.pipeline()
	p.deps.Embedder = nil

	out, err := p.Run(context.Background(), id, notCancelled)
	require.NoError(t, err)
	assert.Nil(t, out.VectorSimilarity)
	assert.Contains(t, out.StageErrors, StageEmbedding)
}

func TestPipeline_PostingWithoutSkills(t *testing.T) {
	f := newPipelineFixture()
	posting := &types.JobPosting{
		Title:        "Receptionist",
		Description:  "Greet visitors at the front desk.",
		Requirements: "Friendly attitude\nPunctual",
		Status:       types.JobPostingOpen,
	}
	id := f.application(posting, backendCV)

	out, err := f.pipeline().Run(context.Background(), id, notCancelled)
	require.NoError(t, err)
	assert.Nil(t, out.SkillsScore)
	assert.Contains(t, out.StageErrors, StageSkills)
	assert.NotNil(t, out.OverallScore)
}

func TestPipeline_UsesNewestReadableResume(t *testing.T) {
	f := newPipelineFixture()
	id := f.registry.addApplication(backendPosting())
	f.docs.addResume(id, "scan.txt", "resume/2_scan.txt")
	f.blobs.files["resume/2_scan.txt"] = nil
	f.docs.addResume(id, "cv.txt", "resume/1_cv.txt")
	f.blobs.files["resume/1_cv.txt"] = []byte(backendCV)

	out, err := f.pipeline().Run(context.Background(), id, notCancelled)
	require.NoError(t, err)
	assert.Contains(t, out.ExtractedSkills, "Docker")
}

func TestPipeline_Errors(t *testing.T) {
	t.Run("unknown application", func(t *testing.T) {
		f := newPipelineFixture()
		_, err := f.pipeline().Run(context.Background(), uuid.New(), notCancelled)
		var inputErr *InputError
		require.ErrorAs(t, err, &inputErr)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, IsRetryable(err))
	})

	t.Run("no résumé", func(t *testing.T) {
		f := newPipelineFixture()
		id := f.registry.addApplication(backendPosting())
		_, err := f.pipeline().Run(context.Background(), id, notCancelled)
		assert.ErrorIs(t, err, ErrNoResume)
		assert.False(t, IsRetryable(err))
	})

	t.Run("no readable text", func(t *testing.T) {
		f := newPipelineFixture()
		id := f.application(backendPosting(), "")
		_, err := f.pipeline().Run(context.Background(), id, notCancelled)
		var inputErr *InputError
		assert.ErrorAs(t, err, &inputErr)
		assert.False(t, IsRetryable(err))
	})

	t.Run("storage unavailable", func(t *testing.T) {
		f := newPipelineFixture()
		id := f.registry.addApplication(backendPosting())
		f.docs.addResume(id, "cv.txt", "resume/missing.txt")
		_, err := f.pipeline().Run(context.Background(), id, notCancelled)
		var transient *TransientError
		assert.ErrorAs(t, err, &transient)
		assert.True(t, IsRetryable(err))
	})

	t.Run("file listing fails", func(t *testing.T) {
		f := newPipelineFixture()
		id := f.application(backendPosting(), backendCV)
		f.docs.listErr = errors.New("connection reset")
		_, err := f.pipeline().Run(context.Background(), id, notCancelled)
		assert.True(t, IsRetryable(err))
	})
}

func TestPipeline_StopsWhenCancelled(t *testing.T) {
	f := newPipelineFixture()
	id := f.application(backendPosting(), backendCV)

	_, err := f.pipeline().Run(context.Background(), id, func() bool { return true })
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, f.embedder.storedTypes(), "no work after the first cancellation check")
}

func TestPipeline_ContextCancelled(t *testing.T) {
	f := newPipelineFixture()
	id := f.application(backendPosting(), backendCV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline().Run(ctx, id, notCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
