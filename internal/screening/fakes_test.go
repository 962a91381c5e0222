package screening

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-screener/internal/document"
	"github.com/jonathan/resume-screener/internal/embedding"
	"github.com/jonathan/resume-screener/internal/types"
)

// memStore mirrors the conditional updates of the database store
type memStore struct {
	mu      sync.Mutex
	results map[uuid.UUID]*types.ScreeningResult
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{results: make(map[uuid.UUID]*types.ScreeningResult)}
}

func (s *memStore) GetScreeningResult(_ context.Context, id uuid.UUID) (*types.ScreeningResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.results[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (s *memStore) CreatePendingResult(_ context.Context, id uuid.UUID) (*types.ScreeningResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.results[id]; ok {
		c := *r
		return &c, false, nil
	}
	r := &types.ScreeningResult{ID: uuid.New(), ApplicationID: id, Status: types.ScreeningPending, CreatedAt: time.Now()}
	s.results[id] = r
	c := *r
	return &c, true, nil
}

func (s *memStore) ClaimForProcessing(_ context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return false, nil
	}
	stale := r.Status == types.ScreeningProcessing && r.StartedAt != nil && r.StartedAt.Before(staleBefore)
	if r.Status != types.ScreeningPending && !stale {
		return false, nil
	}
	now := time.Now()
	r.Status = types.ScreeningProcessing
	r.StartedAt = &now
	return true, nil
}

func (s *memStore) ReleaseClaim(_ context.Context, id uuid.UUID, msg string) (bool, error) {
	return s.transition(id, []types.ScreeningStatus{types.ScreeningProcessing}, func(r *types.ScreeningResult) {
		r.Status = types.ScreeningPending
		r.ErrorMessage = &msg
		r.StartedAt = nil
	})
}

func (s *memStore) CompleteResult(_ context.Context, id uuid.UUID, o *types.ScreeningOutcome) (bool, error) {
	return s.transition(id, []types.ScreeningStatus{types.ScreeningProcessing}, func(r *types.ScreeningResult) {
		now := time.Now()
		r.Status = types.ScreeningCompleted
		r.CompletedAt = &now
		r.OverallScore = o.OverallScore
		r.FitTier = o.FitTier
		r.AISummary = o.AISummary
		r.StageErrors = o.StageErrors
	})
}

func (s *memStore) FailResult(_ context.Context, id uuid.UUID, msg string) (bool, error) {
	return s.transition(id, []types.ScreeningStatus{types.ScreeningPending, types.ScreeningProcessing}, func(r *types.ScreeningResult) {
		now := time.Now()
		r.Status = types.ScreeningFailed
		r.ErrorMessage = &msg
		r.CompletedAt = &now
	})
}

func (s *memStore) ResetForRetry(_ context.Context, id uuid.UUID) (bool, error) {
	return s.transition(id, []types.ScreeningStatus{types.ScreeningFailed}, func(r *types.ScreeningResult) {
		r.Status = types.ScreeningPending
		r.ErrorMessage = nil
		r.RetryCount++
		r.StartedAt = nil
		r.CompletedAt = nil
		r.OverallScore = nil
		r.FitTier = ""
	})
}

func (s *memStore) transition(id uuid.UUID, from []types.ScreeningStatus, apply func(*types.ScreeningResult)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return false, nil
	}
	for _, st := range from {
		if r.Status == st {
			apply(r)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) status(id uuid.UUID) types.ScreeningStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.results[id]; ok {
		return r.Status
	}
	return ""
}

func (s *memStore) set(id uuid.UUID, status types.ScreeningStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		r = &types.ScreeningResult{ID: uuid.New(), ApplicationID: id}
		s.results[id] = r
	}
	r.Status = status
}

type fakeRegistry struct {
	apps     map[uuid.UUID]*types.Application
	postings map[uuid.UUID]*types.JobPosting
	appErr   error

	mu       sync.Mutex
	profiles map[uuid.UUID][]string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		apps:     make(map[uuid.UUID]*types.Application),
		postings: make(map[uuid.UUID]*types.JobPosting),
		profiles: make(map[uuid.UUID][]string),
	}
}

func (r *fakeRegistry) addApplication(posting *types.JobPosting) uuid.UUID {
	if posting.ID == uuid.Nil {
		posting.ID = uuid.New()
	}
	r.postings[posting.ID] = posting
	app := &types.Application{ID: uuid.New(), CandidateID: uuid.New(), JobPostingID: posting.ID}
	r.apps[app.ID] = app
	return app.ID
}

func (r *fakeRegistry) GetApplication(_ context.Context, id uuid.UUID) (*types.Application, error) {
	if r.appErr != nil {
		return nil, r.appErr
	}
	return r.apps[id], nil
}

func (r *fakeRegistry) GetJobPosting(_ context.Context, id uuid.UUID) (*types.JobPosting, error) {
	return r.postings[id], nil
}

func (r *fakeRegistry) UpdateCandidateProfile(_ context.Context, id uuid.UUID, _ string, skills []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[id] = skills
	return nil
}

type fakeDocuments struct {
	resumes map[uuid.UUID][]types.StoredFile
	listErr error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{resumes: make(map[uuid.UUID][]types.StoredFile)}
}

func (d *fakeDocuments) addResume(appID uuid.UUID, name, url string) {
	d.resumes[appID] = append(d.resumes[appID], types.StoredFile{
		ID:            uuid.New(),
		OriginalName:  name,
		FileURL:       url,
		MIMEType:      "text/plain",
		Kind:          types.KindResume,
		Status:        types.FileStatusActive,
		ApplicationID: &appID,
	})
}

func (d *fakeDocuments) HasClassifiedResume(_ context.Context, appID uuid.UUID) (bool, error) {
	return len(d.resumes[appID]) > 0, nil
}

func (d *fakeDocuments) ListApplicationFiles(_ context.Context, appID uuid.UUID, kind types.FileKind) ([]types.StoredFile, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	if kind != types.KindResume {
		return nil, nil
	}
	return d.resumes[appID], nil
}

type fakeQueue struct {
	mu    sync.Mutex
	jobs  []uuid.UUID
	prios []Priority
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, id uuid.UUID, p Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, id)
	q.prios = append(q.prios, p)
	return nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// runnerFunc adapts a function to Runner
type runnerFunc func(ctx context.Context, id uuid.UUID, cancelled func() bool) (*types.ScreeningOutcome, error)

func (f runnerFunc) Run(ctx context.Context, id uuid.UUID, cancelled func() bool) (*types.ScreeningOutcome, error) {
	return f(ctx, id, cancelled)
}

type fakeBlobs struct {
	files map[string][]byte
}

func (b *fakeBlobs) Read(_ context.Context, rel string) ([]byte, error) {
	data, ok := b.files[rel]
	if !ok {
		return nil, errors.New("file not found: " + rel)
	}
	return data, nil
}

// plainReader returns the bytes as text; empty data has no text
type plainReader struct{}

func (plainReader) Read(_ context.Context, data []byte, _, filename string) (document.Text, error) {
	if len(data) == 0 {
		return document.Text{}, errors.New(filename + ": " + document.ErrNoText.Error())
	}
	return document.Text{Content: string(data), Source: document.SourceTextLayer}, nil
}

// fakeEmbedder maps texts to vectors: texts mentioning Go point along the
// first axis, everything else along the second
type fakeEmbedder struct {
	err       error
	chunkSize int

	mu     sync.Mutex
	calls  int
	stored []types.CvEmbedding
}

func (e *fakeEmbedder) vector(text string) []float32 {
	if containsWord(text, "Go") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func (e *fakeEmbedder) Embed(_ context.Context, text string, _ types.EmbeddingType) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *fakeEmbedder) EmbedDocument(ctx context.Context, appID uuid.UUID, text string, typ types.EmbeddingType) (*types.CvEmbedding, error) {
	vec, err := e.Embed(ctx, text, typ)
	if err != nil {
		return nil, err
	}
	chunks := embedding.Chunk(text, e.chunkSize)
	for i := range chunks {
		chunks[i].Vector = e.vector(chunks[i].Content)
	}
	return &types.CvEmbedding{ApplicationID: appID, EmbeddingType: typ, Model: e.Model(), Vector: vec, Chunks: chunks}, nil
}

func (e *fakeEmbedder) Model() string { return "fake-embedding" }

func (e *fakeEmbedder) UpsertEmbedding(_ context.Context, emb *types.CvEmbedding) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stored = append(e.stored, *emb)
	return nil
}

func (e *fakeEmbedder) storedTypes() map[types.EmbeddingType]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[types.EmbeddingType]bool)
	for _, s := range e.stored {
		out[s.EmbeddingType] = true
	}
	return out
}

func containsWord(text, word string) bool {
	for i := 0; i+len(word) <= len(text); i++ {
		if text[i:i+len(word)] != word {
			continue
		}
		before := i == 0 || !isWordByte(text[i-1])
		after := i+len(word) == len(text) || !isWordByte(text[i+len(word)])
		if before && after {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
