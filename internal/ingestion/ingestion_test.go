package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-screener/internal/document"
	"github.com/jonathan/resume-screener/internal/notify"
	"github.com/jonathan/resume-screener/internal/screening"
	"github.com/jonathan/resume-screener/internal/types"
)

var errDB = errors.New("connection refused")

type fakeFiles struct {
	mu        sync.Mutex
	files     []*types.StoredFile
	createErr error
}

func (f *fakeFiles) CreateStoredFile(_ context.Context, file *types.StoredFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	file.ID = uuid.New()
	f.files = append(f.files, file)
	return nil
}

func (f *fakeFiles) FindFileByHash(_ context.Context, appID uuid.UUID, hash string) (*types.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.ApplicationID != nil && *file.ApplicationID == appID && file.ContentHash == hash {
			return file, nil
		}
	}
	return nil, nil
}

func (f *fakeFiles) UpdateFileAnalysis(_ context.Context, id uuid.UUID, kind types.FileKind, meta *types.AnalysisMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.ID == id {
			file.Kind = kind
			file.AnalysisMetadata = meta
			return nil
		}
	}
	return errors.New("stored file not found")
}

func (f *fakeFiles) ListPendingAnalysis(_ context.Context, limit int) ([]types.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.StoredFile
	for _, file := range f.files {
		if file.AnalysisMetadata.Pending() && len(out) < limit {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (f *fakeFiles) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, file := range f.files {
		if file.AnalysisMetadata.Pending() {
			n++
		}
	}
	return n
}

// metadata returns the recorded analysis of a file
func (f *fakeFiles) metadata(id uuid.UUID) *types.AnalysisMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.ID == id {
			return file.AnalysisMetadata
		}
	}
	return nil
}

type fakeRegistry struct {
	postings     map[uuid.UUID]*types.JobPosting
	candidates   map[string]*types.Candidate
	applications map[uuid.UUID]*types.Application
	postingErr   error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		postings:     make(map[uuid.UUID]*types.JobPosting),
		candidates:   make(map[string]*types.Candidate),
		applications: make(map[uuid.UUID]*types.Application),
	}
}

func (r *fakeRegistry) addPosting(status types.JobPostingStatus, deadline *time.Time) *types.JobPosting {
	p := &types.JobPosting{ID: uuid.New(), Title: "Backend Engineer", Status: status, Deadline: deadline}
	r.postings[p.ID] = p
	return p
}

func (r *fakeRegistry) GetJobPosting(_ context.Context, id uuid.UUID) (*types.JobPosting, error) {
	if r.postingErr != nil {
		return nil, r.postingErr
	}
	return r.postings[id], nil
}

func (r *fakeRegistry) GetApplication(_ context.Context, id uuid.UUID) (*types.Application, error) {
	return r.applications[id], nil
}

func (r *fakeRegistry) FindOrCreateCandidate(_ context.Context, email, name string) (*types.Candidate, error) {
	if c, ok := r.candidates[email]; ok {
		return c, nil
	}
	c := &types.Candidate{ID: uuid.New(), Email: email, Name: name}
	r.candidates[email] = c
	return c, nil
}

func (r *fakeRegistry) FindOrCreateApplication(_ context.Context, candidateID, jobID uuid.UUID) (*types.Application, error) {
	for _, a := range r.applications {
		if a.CandidateID == candidateID && a.JobPostingID == jobID {
			return a, nil
		}
	}
	a := &types.Application{ID: uuid.New(), CandidateID: candidateID, JobPostingID: jobID}
	r.applications[a.ID] = a
	return a, nil
}

type fakeLedger struct {
	seen map[string]bool
}

func (l *fakeLedger) MarkMessageProcessed(_ context.Context, id string) (bool, error) {
	if l.seen[id] {
		return false, nil
	}
	l.seen[id] = true
	return true, nil
}

func (l *fakeLedger) ForgetMessage(_ context.Context, id string) error {
	delete(l.seen, id)
	return nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saveErr error
}

func (b *fakeBlobs) Save(_ context.Context, kind types.FileKind, name string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return "", b.saveErr
	}
	rel := kind.Directory() + "/1_" + name
	b.saved[rel] = data
	return rel, nil
}

func (b *fakeBlobs) Read(_ context.Context, rel string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.saved[rel]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (b *fakeBlobs) Delete(_ context.Context, rel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.saved, rel)
	return nil
}

// nameClassifier treats names containing "cv" as résumés
type nameClassifier struct{}

func (nameClassifier) ClassifyBatch(_ context.Context, atts []types.Attachment) []types.Classification {
	out := make([]types.Classification, len(atts))
	for i, a := range atts {
		if strings.Contains(strings.ToLower(a.Filename), "cv") {
			out[i] = types.Classification{Kind: types.KindResume, Confidence: 0.9, Reason: "filename", Decisive: true}
		} else {
			out[i] = types.Classification{Kind: types.KindCertificate, Confidence: 0.8, Reason: "filename", Decisive: true}
		}
	}
	return out
}

// fakeCertificates holds every analysis until release is closed, when set
type fakeCertificates struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (c *fakeCertificates) AnalyzeAttachment(ctx context.Context, _ types.Attachment, cls types.Classification) *types.AnalysisMetadata {
	c.calls.Add(1)
	if c.release != nil {
		c.started <- struct{}{}
		select {
		case <-c.release:
		case <-ctx.Done():
		}
	}
	return types.NewDocumentCertificateMetadata(cls, types.DocumentCertificateResult{Format: "txt"})
}

type textReader struct{}

func (textReader) Read(_ context.Context, data []byte, _, _ string) (document.Text, error) {
	if len(data) == 0 {
		return document.Text{}, errors.New("empty")
	}
	return document.Text{Content: string(data), Source: document.SourceTextLayer}, nil
}

type fakeDownloader struct {
	bodies map[string][]byte
}

func (d fakeDownloader) Download(_ context.Context, token string) ([]byte, string, error) {
	b, ok := d.bodies[token]
	if !ok {
		return nil, "", errors.New("404")
	}
	return b, "application/octet-stream", nil
}

type fakeTrigger struct {
	calls []uuid.UUID
	prios []screening.Priority
}

func (t *fakeTrigger) Trigger(_ context.Context, id uuid.UUID, p screening.Priority) (*types.ScreeningResult, error) {
	t.calls = append(t.calls, id)
	t.prios = append(t.prios, p)
	return &types.ScreeningResult{ApplicationID: id, Status: types.ScreeningPending}, nil
}

type fakeNotifier struct {
	sent []notify.ThankYou
	err  error
}

func (n *fakeNotifier) ThankYou(_ context.Context, t notify.ThankYou) error {
	n.sent = append(n.sent, t)
	return n.err
}

type fixture struct {
	svc      *Service
	files    *fakeFiles
	registry *fakeRegistry
	ledger   *fakeLedger
	blobs    *fakeBlobs
	certs    *fakeCertificates
	trigger  *fakeTrigger
	notifier *fakeNotifier
	bodies   map[string][]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		files:    &fakeFiles{},
		registry: newFakeRegistry(),
		ledger:   &fakeLedger{seen: make(map[string]bool)},
		blobs:    &fakeBlobs{saved: make(map[string][]byte)},
		certs:    &fakeCertificates{},
		trigger:  &fakeTrigger{},
		notifier: &fakeNotifier{},
		bodies:   make(map[string][]byte),
	}
	f.svc = NewService(Deps{
		Files:        f.files,
		Registry:     f.registry,
		Messages:     f.ledger,
		Blobs:        f.blobs,
		Classifier:   nameClassifier{},
		Certificates: f.certs,
		Reader:       textReader{},
		Downloader:   fakeDownloader{bodies: f.bodies},
		Trigger:      f.trigger,
		Notifier:     f.notifier,
	}, Options{Domain: "hire.example.com", MaxAttachment: 1 << 10, AnalysisWorkers: 2, AnalysisBacklog: 8}, nil)
	return f
}

// startAnalysis runs the analysis workers until the test ends
func (f *fixture) startAnalysis(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.RunAnalysis(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// drain runs the analysis workers until no stored file is pending
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.RunAnalysis(ctx) }()
	assert.Eventually(t, func() bool { return f.files.pendingCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

const cvText = "Jane Doe\njane.doe@example.com\n\nExperience\nBackend Engineer, Acme 2019 - 2023\n"

func (f *fixture) message(posting *types.JobPosting, id string, atts ...AttachmentRef) InboundMessage {
	return InboundMessage{
		ID:          id,
		From:        "Jane Doe <Jane.Doe@Example.com>",
		To:          "job" + posting.ID.String() + "@hire.example.com",
		Attachments: atts,
	}
}

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("hello"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashContent([]byte("hello")))
	assert.NotEqual(t, a, HashContent([]byte("hello!")))
}

func TestResolveMIMEType(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n")
	assert.Equal(t, "image/png", ResolveMIMEType("image/PNG; charset=binary", pdf))
	assert.Equal(t, "application/pdf", ResolveMIMEType("application/octet-stream", pdf))
	assert.Equal(t, "application/pdf", ResolveMIMEType("", pdf))
	assert.Equal(t, "text/plain", ResolveMIMEType("", []byte("plain words here")))
}

func TestParseJobAddress(t *testing.T) {
	id := uuid.New()
	got, err := ParseJobAddress("job"+id.String()+"@hire.example.com", "hire.example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = ParseJobAddress("Careers <JOB"+strings.ToUpper(id.String())+"@Hire.Example.com>", "hire.example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = ParseJobAddress("job"+id.String()+"@anything.test", "")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, to := range []string{
		"careers@hire.example.com",
		"job123@hire.example.com",
		"job" + id.String() + "@other.example.com",
		"",
	} {
		_, err := ParseJobAddress(to, "hire.example.com")
		assert.ErrorIs(t, err, ErrUnknownRecipient, to)
	}
}

func TestIngestUpload_DeclaredKind(t *testing.T) {
	f := newFixture(t)
	ref := uuid.New()

	res, err := f.svc.IngestUpload(context.Background(), UploadRequest{
		Filename:    "scan.pdf",
		MIMEType:    "application/pdf",
		Data:        []byte("certificate bytes"),
		Kind:        types.KindCertificate,
		ReferenceID: &ref,
	})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, types.KindCertificate, res.File.Kind)
	assert.Equal(t, types.FileStatusActive, res.File.Status)
	assert.Equal(t, "certificates/1_scan.pdf", res.File.FileURL)
	assert.Equal(t, &ref, res.File.ReferenceID)
	assert.Equal(t, HashContent([]byte("certificate bytes")), res.File.ContentHash)
	require.NotNil(t, res.File.AnalysisMetadata)
	assert.True(t, res.File.AnalysisMetadata.Pending())
	assert.Equal(t, "declared", res.File.AnalysisMetadata.Classification.Reason)
	assert.Zero(t, f.certs.calls.Load(), "analysis runs after the upload returns")

	f.drain(t)
	assert.EqualValues(t, 1, f.certs.calls.Load())
	meta := f.files.metadata(res.File.ID)
	require.NotNil(t, meta.Certificate())
	assert.Equal(t, "declared", meta.Classification.Reason)
}

func TestIngestUpload_ClassifiesResume(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.IngestUpload(context.Background(), UploadRequest{
		Filename: "jane_cv.txt",
		Data:     []byte(cvText),
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindResume, res.File.Kind)
	assert.Equal(t, "text/plain", res.File.MIMEType)
	assert.True(t, res.File.AnalysisMetadata.Pending())

	f.drain(t)
	meta := f.files.metadata(res.File.ID)
	require.NotNil(t, meta)
	require.NotNil(t, meta.Resume)
	assert.Equal(t, len([]rune(cvText)), meta.Resume.ExtractedChars)
	assert.Equal(t, "jane.doe@example.com", meta.Resume.CandidateEmail)
	assert.Zero(t, f.certs.calls.Load())
}

func TestIngestUpload_GeneralFilesAreNotAnalyzed(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.IngestUpload(context.Background(), UploadRequest{
		Filename: "notes.txt", Data: []byte("misc"), Kind: types.KindGeneral,
	})
	require.NoError(t, err)
	assert.Nil(t, res.File.AnalysisMetadata)
	assert.Zero(t, f.files.pendingCount())
}

func TestIngestUpload_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  UploadRequest
	}{
		{"missing filename", UploadRequest{Data: []byte("x")}},
		{"empty data", UploadRequest{Filename: "a.pdf"}},
		{"unknown kind", UploadRequest{Filename: "a.pdf", Data: []byte("x"), Kind: types.KindUnknown}},
		{"too large", UploadRequest{Filename: "a.pdf", Data: make([]byte, 2<<10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.IngestUpload(ctx, tt.req)
			assert.ErrorIs(t, err, ErrInvalidUpload)
		})
	}

	missing := uuid.New()
	_, err := f.svc.IngestUpload(ctx, UploadRequest{Filename: "a.pdf", Data: []byte("x"), ApplicationID: &missing})
	assert.ErrorIs(t, err, ErrInvalidUpload)
	assert.Empty(t, f.files.files)
}

func TestIngestUpload_DedupsPerApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	cand, _ := f.registry.FindOrCreateCandidate(ctx, "a@example.com", "A")
	app, _ := f.registry.FindOrCreateApplication(ctx, cand.ID, posting.ID)

	req := UploadRequest{Filename: "cv.txt", Data: []byte(cvText), ApplicationID: &app.ID}
	first, err := f.svc.IngestUpload(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, &cand.ID, first.File.ReferenceID)

	second, err := f.svc.IngestUpload(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.File.ID, second.File.ID)
	assert.Len(t, f.files.files, 1)
}

func TestIngestUpload_RemovesBlobWhenRecordFails(t *testing.T) {
	f := newFixture(t)
	f.files.createErr = errDB

	_, err := f.svc.IngestUpload(context.Background(), UploadRequest{
		Filename: "cert.png", Data: []byte("png"), Kind: types.KindCertificate,
	})
	assert.ErrorIs(t, err, errDB)
	assert.Empty(t, f.blobs.saved)
}

func TestIngestEmail_StoresBatchAndTriggers(t *testing.T) {
	f := newFixture(t)
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	f.bodies["t1"] = []byte(cvText)
	f.bodies["t2"] = []byte("TOEIC L:455 R:495 Total:950")

	results := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{
		f.message(posting, "m1",
			AttachmentRef{Name: "jane_cv.txt", ContentType: "text/plain", DownloadToken: "t1"},
			AttachmentRef{Name: "toeic.txt", DownloadToken: "t2"},
			AttachmentRef{Name: "lost.pdf", DownloadToken: "missing"}),
	}})

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, MessageProcessed, res.Status)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, 1, res.Dropped)
	require.NotNil(t, res.ApplicationID)

	cand := f.registry.candidates["jane.doe@example.com"]
	require.NotNil(t, cand)
	assert.Equal(t, "Jane Doe", cand.Name)
	for _, file := range f.files.files {
		assert.Equal(t, res.ApplicationID, file.ApplicationID)
		assert.Equal(t, &cand.ID, file.ReferenceID)
	}

	assert.Equal(t, []uuid.UUID{*res.ApplicationID}, f.trigger.calls)
	assert.Equal(t, []screening.Priority{screening.PriorityWebhook}, f.trigger.prios)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.ThankYou{Email: "jane.doe@example.com", Name: "Jane Doe", JobTitle: "Backend Engineer"}, f.notifier.sent[0])
}

func TestIngestEmail_DuplicateMessageSkipped(t *testing.T) {
	f := newFixture(t)
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	f.bodies["t1"] = []byte(cvText)
	msg := f.message(posting, "m1", AttachmentRef{Name: "cv.txt", DownloadToken: "t1"})

	first := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{msg}})
	second := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{msg}})

	assert.Equal(t, MessageProcessed, first[0].Status)
	assert.Equal(t, MessageDuplicate, second[0].Status)
	assert.Len(t, f.files.files, 1)
	assert.Len(t, f.notifier.sent, 1)
}

func TestIngestEmail_RedeliveredAttachmentsNotDuplicated(t *testing.T) {
	f := newFixture(t)
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	f.bodies["t1"] = []byte(cvText)

	f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{
		f.message(posting, "m1", AttachmentRef{Name: "cv.txt", DownloadToken: "t1"}),
	}})
	res := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{
		f.message(posting, "m2", AttachmentRef{Name: "cv-again.txt", DownloadToken: "t1"}),
	}})

	assert.Equal(t, MessageProcessed, res[0].Status)
	assert.Len(t, f.files.files, 1)
	assert.Len(t, f.notifier.sent, 1, "no thank-you for a résumé already on file")
	assert.Len(t, f.trigger.calls, 2)
}

func TestIngestEmail_Rejections(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)
	open := f.registry.addPosting(types.JobPostingOpen, nil)
	closed := f.registry.addPosting(types.JobPostingClosed, nil)
	expired := f.registry.addPosting(types.JobPostingOpen, &past)

	unknown := f.message(open, "m-unknown")
	unknown.To = "job" + uuid.NewString() + "@hire.example.com"
	badSender := f.message(open, "m-sender")
	badSender.From = "not an address"
	badRecipient := f.message(open, "m-recipient")
	badRecipient.To = "careers@hire.example.com"

	results := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{
		f.message(closed, "m-closed"),
		f.message(expired, "m-expired"),
		unknown,
		badSender,
		badRecipient,
		{ID: "", From: "a@example.com"},
	}})

	require.Len(t, results, 6)
	for _, r := range results {
		assert.Equal(t, MessageRejected, r.Status, r.MessageID)
		assert.NotEmpty(t, r.Reason)
	}
	assert.Empty(t, f.registry.candidates)
	assert.Empty(t, f.trigger.calls)
}

func TestIngestEmail_TransientFailureUnmarksMessage(t *testing.T) {
	f := newFixture(t)
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	f.bodies["t1"] = []byte(cvText)
	msg := f.message(posting, "m1", AttachmentRef{Name: "cv.txt", DownloadToken: "t1"})

	f.registry.postingErr = errDB
	res := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{msg}})
	assert.Equal(t, MessageFailed, res[0].Status)
	assert.False(t, f.ledger.seen["m1"])

	f.registry.postingErr = nil
	res = f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{msg}})
	assert.Equal(t, MessageProcessed, res[0].Status)
	assert.Len(t, f.files.files, 1)
}

func TestIngestEmail_StorageFailureUnmarksMessage(t *testing.T) {
	f := newFixture(t)
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	f.bodies["t1"] = []byte(cvText)
	f.blobs.saveErr = errors.New("disk full")

	res := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{
		f.message(posting, "m1", AttachmentRef{Name: "cv.txt", DownloadToken: "t1"}),
	}})
	assert.Equal(t, MessageFailed, res[0].Status)
	assert.False(t, f.ledger.seen["m1"])
	assert.Empty(t, f.trigger.calls)
	assert.Empty(t, f.notifier.sent)
}

func TestIngestEmail_NotifierFailureSwallowed(t *testing.T) {
	f := newFixture(t)
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	f.bodies["t1"] = []byte(cvText)
	f.notifier.err = errors.New("smtp down")

	res := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{
		f.message(posting, "m1", AttachmentRef{Name: "cv.txt", DownloadToken: "t1"}),
	}})
	assert.Equal(t, MessageProcessed, res[0].Status)
	assert.Len(t, f.trigger.calls, 1)
}

func TestIngestEmail_CertificatesOnlyDoNotTrigger(t *testing.T) {
	f := newFixture(t)
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	f.bodies["t1"] = []byte("certificate")
	f.bodies["big"] = make([]byte, 2<<10)

	res := f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{
		f.message(posting, "m1",
			AttachmentRef{Name: "award.png", DownloadToken: "t1"},
			AttachmentRef{Name: "huge.png", DownloadToken: "big"}),
	}})
	assert.Equal(t, MessageProcessed, res[0].Status)
	assert.Equal(t, 1, res[0].Stored)
	assert.Equal(t, 1, res[0].Dropped)
	assert.Empty(t, f.trigger.calls)
	assert.Empty(t, f.notifier.sent)
}

func TestIngestEmail_ReturnsBeforeCertificateAnalysis(t *testing.T) {
	f := newFixture(t)
	f.certs.started = make(chan struct{}, 1)
	f.certs.release = make(chan struct{})
	f.startAnalysis(t)
	posting := f.registry.addPosting(types.JobPostingOpen, nil)
	f.bodies["t1"] = []byte(cvText)
	f.bodies["t2"] = []byte("TOEIC Total:950")

	done := make(chan []MessageResult, 1)
	go func() {
		done <- f.svc.IngestEmail(context.Background(), InboundEmail{Messages: []InboundMessage{
			f.message(posting, "m1",
				AttachmentRef{Name: "jane_cv.txt", DownloadToken: "t1"},
				AttachmentRef{Name: "toeic.txt", DownloadToken: "t2"}),
		}})
	}()

	// certificate analysis is held; the webhook must still be acknowledged
	<-f.certs.started
	var res []MessageResult
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook waited for certificate analysis")
	}
	require.Len(t, res, 1)
	assert.Equal(t, MessageProcessed, res[0].Status)
	assert.Equal(t, 2, res[0].Stored)
	assert.Len(t, f.trigger.calls, 1)
	assert.GreaterOrEqual(t, f.files.pendingCount(), 1, "certificate still pending")

	close(f.certs.release)
	assert.Eventually(t, func() bool { return f.files.pendingCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunAnalysis_SweepsFilesLeftPending(t *testing.T) {
	f := newFixture(t)
	cls := types.Classification{Kind: types.KindCertificate, Confidence: 0.8, Reason: "filename"}
	f.blobs.saved["certificates/1_old.txt"] = []byte("IELTS 7.5")
	left := &types.StoredFile{
		ID:               uuid.New(),
		OriginalName:     "old.txt",
		FileURL:          "certificates/1_old.txt",
		MIMEType:         "text/plain",
		Kind:             types.KindCertificate,
		Status:           types.FileStatusActive,
		AnalysisMetadata: types.NewPendingMetadata(cls),
	}
	f.files.files = append(f.files.files, left)

	f.drain(t)
	assert.EqualValues(t, 1, f.certs.calls.Load())
	require.NotNil(t, f.files.metadata(left.ID).Certificate())
}

func TestRunAnalysis_FullBacklogLeavesFilePending(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.svc.deps, Options{
		MaxAttachment: 1 << 10, AnalysisWorkers: 1, AnalysisBacklog: 1, SweepInterval: 10 * time.Millisecond,
	}, nil)
	ctx := context.Background()

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		_, err := f.svc.IngestUpload(ctx, UploadRequest{Filename: name, Data: []byte(name), Kind: types.KindCertificate})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.files.pendingCount())
	assert.Len(t, f.svc.pending, 1, "only one file fits the backlog")

	// sweeps pick up what the backlog could not hold
	f.drain(t)
	assert.EqualValues(t, 3, f.certs.calls.Load())
}

func TestRunAnalysis_UnreadableBlobStaysPending(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.IngestUpload(context.Background(), UploadRequest{
		Filename: "cert.png", Data: []byte("png"), Kind: types.KindCertificate,
	})
	require.NoError(t, err)
	f.blobs.mu.Lock()
	delete(f.blobs.saved, res.File.FileURL)
	f.blobs.mu.Unlock()

	f.svc.analyzeStored(context.Background(), *res.File)
	assert.True(t, f.files.metadata(res.File.ID).Pending())
	assert.Zero(t, f.certs.calls.Load())
}
