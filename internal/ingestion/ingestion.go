// Package ingestion turns inbound files into classified and stored
// documents: single uploads from operators and attachment batches from the
// inbound-email webhook. Analysis of the stored files runs afterwards on a
// bounded set of background workers.
package ingestion

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/jonathan/resume-screener/internal/document"
	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/notify"
	"github.com/jonathan/resume-screener/internal/parsing"
	"github.com/jonathan/resume-screener/internal/screening"
	"github.com/jonathan/resume-screener/internal/types"
)

// FileStore persists stored file records
type FileStore interface {
	CreateStoredFile(ctx context.Context, f *types.StoredFile) error
	FindFileByHash(ctx context.Context, applicationID uuid.UUID, contentHash string) (*types.StoredFile, error)
	UpdateFileAnalysis(ctx context.Context, id uuid.UUID, kind types.FileKind, meta *types.AnalysisMetadata) error
	ListPendingAnalysis(ctx context.Context, limit int) ([]types.StoredFile, error)
}

// Registry resolves job postings, candidates and applications
type Registry interface {
	GetJobPosting(ctx context.Context, id uuid.UUID) (*types.JobPosting, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	FindOrCreateCandidate(ctx context.Context, email, name string) (*types.Candidate, error)
	FindOrCreateApplication(ctx context.Context, candidateID, jobPostingID uuid.UUID) (*types.Application, error)
}

// MessageLedger records webhook message ids so redeliveries are skipped
type MessageLedger interface {
	MarkMessageProcessed(ctx context.Context, messageID string) (bool, error)
	ForgetMessage(ctx context.Context, messageID string) error
}

// Blobs stores file bytes
type Blobs interface {
	Save(ctx context.Context, kind types.FileKind, name string, data []byte) (string, error)
	Read(ctx context.Context, rel string) ([]byte, error)
	Delete(ctx context.Context, rel string) error
}

// Classifier decides résumé or certificate
type Classifier interface {
	ClassifyBatch(ctx context.Context, atts []types.Attachment) []types.Classification
}

// CertificateAnalyzer produces certificate metadata; it never fails
type CertificateAnalyzer interface {
	AnalyzeAttachment(ctx context.Context, att types.Attachment, cls types.Classification) *types.AnalysisMetadata
}

// TextReader reads résumé text for the résumé metadata
type TextReader interface {
	Read(ctx context.Context, data []byte, mimeType, filename string) (document.Text, error)
}

// Trigger starts a screening
type Trigger interface {
	Trigger(ctx context.Context, applicationID uuid.UUID, priority screening.Priority) (*types.ScreeningResult, error)
}

// Deps are the collaborators of a Service. Reader, Certificates, Trigger
// and Notifier are optional.
type Deps struct {
	Files        FileStore
	Registry     Registry
	Messages     MessageLedger
	Blobs        Blobs
	Classifier   Classifier
	Certificates CertificateAnalyzer
	Reader       TextReader
	Downloader   Downloader
	Trigger      Trigger
	Notifier     notify.Notifier
}

// Options bound ingestion
type Options struct {
	// Domain, when set, is the only accepted recipient domain
	Domain        string
	MaxAttachment int64

	AnalysisWorkers int
	AnalysisBacklog int
	SweepInterval   time.Duration
}

// Service ingests uploads and inbound email
type Service struct {
	deps      Deps
	opts      Options
	extractor *parsing.Extractor
	now       func() time.Time
	logger    *zap.Logger

	pending   chan types.StoredFile
	mu        sync.Mutex
	scheduled map[uuid.UUID]bool
}

// NewService creates a Service
func NewService(deps Deps, opts Options, logger *zap.Logger) *Service {
	if opts.MaxAttachment <= 0 {
		opts.MaxAttachment = 20 << 20
	}
	if opts.AnalysisWorkers <= 0 {
		opts.AnalysisWorkers = 2
	}
	if opts.AnalysisBacklog <= 0 {
		opts.AnalysisBacklog = 64
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	return &Service{
		deps:      deps,
		opts:      opts,
		extractor: parsing.NewExtractor(logger),
		now:       time.Now,
		logger:    logging.OrNop(logger),
		pending:   make(chan types.StoredFile, opts.AnalysisBacklog),
		scheduled: make(map[uuid.UUID]bool),
	}
}

// HashContent returns the hex blake2b-256 digest of data
func HashContent(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// genericTypes are declared types that say nothing about the content
var genericTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/x-download":   true,
}

// ResolveMIMEType keeps a specific declared type and sniffs the content
// otherwise
func ResolveMIMEType(declared string, data []byte) string {
	declared = normalizeMIME(declared)
	if !genericTypes[declared] {
		return declared
	}
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

func normalizeMIME(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func isGeneric(t string) bool {
	return genericTypes[normalizeMIME(t)]
}

// storeRequest is one classified attachment ready to persist
type storeRequest struct {
	att           types.Attachment
	cls           types.Classification
	referenceID   *uuid.UUID
	applicationID *uuid.UUID
}

// store dedups by content hash, saves the blob, inserts the record and
// schedules its analysis. duplicate is true when an identical active file
// already exists.
func (s *Service) store(ctx context.Context, req storeRequest) (file *types.StoredFile, duplicate bool, err error) {
	hash := HashContent(req.att.Data)
	if req.applicationID != nil {
		existing, err := s.deps.Files.FindFileByHash(ctx, *req.applicationID, hash)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check duplicate: %w", err)
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	var meta *types.AnalysisMetadata
	if s.needsAnalysis(req.cls.Kind) {
		meta = types.NewPendingMetadata(req.cls)
	}

	path, err := s.deps.Blobs.Save(ctx, req.cls.Kind, req.att.Filename, req.att.Data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store file: %w", err)
	}

	f := &types.StoredFile{
		OriginalName:     req.att.Filename,
		FileURL:          path,
		MIMEType:         req.att.MIMEType,
		Size:             int64(len(req.att.Data)),
		Kind:             req.cls.Kind,
		Status:           types.FileStatusActive,
		ReferenceID:      req.referenceID,
		ApplicationID:    req.applicationID,
		ContentHash:      hash,
		AnalysisMetadata: meta,
	}
	if err := s.deps.Files.CreateStoredFile(ctx, f); err != nil {
		if derr := s.deps.Blobs.Delete(context.WithoutCancel(ctx), path); derr != nil {
			s.logger.Warn("failed to remove orphaned blob", zap.String("file_url", path), zap.Error(derr))
		}
		return nil, false, err
	}

	s.logger.Info("file stored",
		zap.String("file_id", f.ID.String()),
		zap.String("kind", string(f.Kind)),
		zap.String("reason", req.cls.Reason),
		zap.Float64("confidence", req.cls.Confidence))
	if meta != nil {
		s.schedule(*f)
	}
	return f, false, nil
}

// analyze builds the analysis metadata for the classified kind
func (s *Service) analyze(ctx context.Context, att types.Attachment, cls types.Classification) *types.AnalysisMetadata {
	switch cls.Kind {
	case types.KindCertificate:
		if s.deps.Certificates == nil {
			return nil
		}
		return s.deps.Certificates.AnalyzeAttachment(ctx, att, cls)
	case types.KindResume:
		res := types.ResumeResult{}
		if s.deps.Reader != nil {
			text, err := s.deps.Reader.Read(ctx, att.Data, att.MIMEType, att.Filename)
			if err != nil {
				s.logger.Warn("résumé has no readable text", zap.String("filename", att.Filename), zap.Error(err))
			} else {
				res.ExtractedChars = utf8.RuneCountInString(text.Content)
				cv := s.extractor.Extract(text.Content)
				res.CandidateName = cv.Personal.Name
				res.CandidateEmail = cv.Personal.Email
			}
		}
		return types.NewResumeMetadata(cls, res)
	default:
		return nil
	}
}
