package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/ingestion"
	"github.com/jonathan/resume-screener/internal/schemas"
	"github.com/jonathan/resume-screener/internal/screening"
	"github.com/jonathan/resume-screener/internal/types"
)

// handleInboundEmail always acknowledges with 204 once authenticated.
// Failures are logged; the ledger makes provider redeliveries safe.
func (s *Server) handleInboundEmail(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusNoContent)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		s.logger.Error("failed to read webhook body", zap.Error(err))
		return
	}
	if err := schemas.ValidateInboundEmail(body); err != nil {
		s.logger.Warn("webhook payload rejected", zap.Error(err))
		return
	}
	var payload ingestion.InboundEmail
	if err := json.Unmarshal(body, &payload); err != nil {
		s.logger.Warn("webhook payload not decodable", zap.Error(err))
		return
	}

	// a provider disconnect must not abort a half-processed batch
	results := s.deps.Ingestor.IngestEmail(context.WithoutCancel(r.Context()), payload)
	counts := make(map[ingestion.MessageStatus]int)
	for _, res := range results {
		counts[res.Status]++
	}
	s.logger.Info("webhook handled",
		zap.Int("messages", len(results)),
		zap.Int("processed", counts[ingestion.MessageProcessed]),
		zap.Int("duplicate", counts[ingestion.MessageDuplicate]),
		zap.Int("rejected", counts[ingestion.MessageRejected]),
		zap.Int("failed", counts[ingestion.MessageFailed]))
}

func optionalUUID(r *http.Request, field string) (*uuid.UUID, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, &ErrValidation{Field: field, Message: "must be a UUID"}
	}
	return &id, nil
}

// handleUpload accepts multipart form fields file, kind, reference_id and
// application_id
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.writeError(w, r, &ErrValidation{Field: "body", Message: "must be multipart/form-data"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, &ErrValidation{Field: "file", Message: "is required"})
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	refID, err := optionalUUID(r, "reference_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	appID, err := optionalUUID(r, "application_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Ingestor.IngestUpload(r.Context(), ingestion.UploadRequest{
		Filename:      header.Filename,
		MIMEType:      header.Header.Get("Content-Type"),
		Data:          data,
		Kind:          types.FileKind(strings.ToLower(strings.TrimSpace(r.FormValue("kind")))),
		ReferenceID:   refID,
		ApplicationID: appID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	s.jsonResponse(w, status, res.File)
}

// resultStatus is 202 while the screening is queued or running
func resultStatus(r *types.ScreeningResult) int {
	if r.Status.IsTerminal() {
		return http.StatusOK
	}
	return http.StatusAccepted
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Screenings.Trigger(r.Context(), id, screening.PriorityManual)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, resultStatus(res), res)
}

func (s *Server) handleGetScreening(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Screenings.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Screenings.Cancel(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Screenings.Retry(r.Context(), id, screening.PriorityManual)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, resultStatus(res), res)
}

type bulkRequest struct {
	ApplicationIDs []string `json:"application_ids"`
}

func (s *Server) handleBulkTrigger(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, r, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if len(req.ApplicationIDs) == 0 || len(req.ApplicationIDs) > maxBulk {
		s.writeError(w, r, &ErrValidation{Field: "application_ids", Message: "must hold 1 to 500 ids"})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.ApplicationIDs))
	for _, raw := range req.ApplicationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, &ErrValidation{Field: "application_ids", Message: "invalid UUID " + raw})
			return
		}
		ids = append(ids, id)
	}

	s.jsonResponse(w, http.StatusOK, s.deps.Screenings.BulkTrigger(r.Context(), ids, screening.PriorityManual))
}
