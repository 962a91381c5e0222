package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/types"
)

var validate = validator.New()

// ErrInvalidUpload is returned for an upload that fails validation
var ErrInvalidUpload = errors.New("invalid upload")

// UploadRequest is one operator-submitted file. Kind is optional; without
// it the file is classified.
type UploadRequest struct {
	Filename      string         `validate:"required,max=255"`
	MIMEType      string         `validate:"max=255"`
	Data          []byte         `validate:"required,min=1"`
	Kind          types.FileKind `validate:"omitempty,oneof=resume certificate general"`
	ReferenceID   *uuid.UUID
	ApplicationID *uuid.UUID
}

// UploadResult is the stored file and whether it already existed
type UploadResult struct {
	File      *types.StoredFile
	Duplicate bool
}

// IngestUpload validates, classifies and stores one file, then schedules
// its analysis. A file identical to an active file of the same application
// is not stored again.
func (s *Service) IngestUpload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s failed %q validation", ErrInvalidUpload, verrs[0].Field(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	if int64(len(req.Data)) > s.opts.MaxAttachment {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, s.opts.MaxAttachment)
	}
	if req.ApplicationID != nil {
		app, err := s.deps.Registry.GetApplication(ctx, *req.ApplicationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load application: %w", err)
		}
		if app == nil {
			return nil, fmt.Errorf("%w: application %s not found", ErrInvalidUpload, req.ApplicationID)
		}
		if req.ReferenceID == nil {
			req.ReferenceID = &app.CandidateID
		}
	}

	att := types.Attachment{
		Data:     req.Data,
		Filename: req.Filename,
		MIMEType: ResolveMIMEType(req.MIMEType, req.Data),
		Size:     int64(len(req.Data)),
	}

	cls := types.Classification{Kind: req.Kind, Confidence: 1, Reason: "declared", Decisive: true}
	if req.Kind == "" {
		cls = s.deps.Classifier.ClassifyBatch(ctx, []types.Attachment{att})[0]
	}

	f, dup, err := s.store(ctx, storeRequest{
		att:           att,
		cls:           cls,
		referenceID:   req.ReferenceID,
		applicationID: req.ApplicationID,
	})
	if err != nil {
		return nil, err
	}
	if dup {
		s.logger.Info("upload matches an existing file",
			zap.String("file_id", f.ID.String()), zap.String("filename", req.Filename))
	}
	return &UploadResult{File: f, Duplicate: dup}, nil
}
