package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/notify"
	"github.com/jonathan/resume-screener/internal/screening"
	"github.com/jonathan/resume-screener/internal/types"
)

// InboundEmail is the webhook payload of the mail provider
type InboundEmail struct {
	Messages []InboundMessage `json:"messages"`
}

// InboundMessage is one received email
type InboundMessage struct {
	ID          string          `json:"id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Subject     string          `json:"subject,omitempty"`
	Attachments []AttachmentRef `json:"attachments"`
}

// AttachmentRef points at an attachment held by the mail provider
type AttachmentRef struct {
	Name          string `json:"name"`
	ContentType   string `json:"contentType"`
	DownloadToken string `json:"downloadToken"`
}

// MessageStatus is the outcome of one inbound message
type MessageStatus string

const (
	MessageProcessed MessageStatus = "processed"
	MessageDuplicate MessageStatus = "duplicate"
	MessageRejected  MessageStatus = "rejected"
	MessageFailed    MessageStatus = "failed"
)

// MessageResult reports what happened to one message
type MessageResult struct {
	MessageID     string        `json:"message_id"`
	Status        MessageStatus `json:"status"`
	ApplicationID *uuid.UUID    `json:"application_id,omitempty"`
	Stored        int           `json:"stored"`
	Dropped       int           `json:"dropped"`
	Reason        string        `json:"reason,omitempty"`
}

var (
	// ErrUnknownRecipient is returned for a recipient that is not a job address
	ErrUnknownRecipient = errors.New("recipient is not a job address")
	// ErrInvalidSender is returned for an unparseable sender address
	ErrInvalidSender = errors.New("invalid sender address")
)

var jobAddressRe = regexp.MustCompile(`^job([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})@([a-z0-9.-]+)$`)

// ParseJobAddress extracts the job posting id from a job<ID>@domain
// recipient. When domain is non-empty the recipient must be on it.
func ParseJobAddress(to, domain string) (uuid.UUID, error) {
	addr := strings.TrimSpace(to)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}
	m := jobAddressRe.FindStringSubmatch(strings.ToLower(addr))
	if m == nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownRecipient, to)
	}
	if domain != "" && m[2] != strings.ToLower(domain) {
		return uuid.Nil, fmt.Errorf("%w: domain %q not accepted", ErrUnknownRecipient, m[2])
	}
	return uuid.Parse(m[1])
}

// parseSender returns the lowercased address and display name of from
func parseSender(from string) (email, name string, err error) {
	a, err := mail.ParseAddress(strings.TrimSpace(from))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}
	return strings.ToLower(a.Address), strings.TrimSpace(a.Name), nil
}

// IngestEmail processes every message of a webhook payload independently.
// A message id seen before is skipped; a message that fails on a transient
// error is unmarked so that a redelivery is processed again.
func (s *Service) IngestEmail(ctx context.Context, payload InboundEmail) []MessageResult {
	results := make([]MessageResult, 0, len(payload.Messages))
	for _, msg := range payload.Messages {
		res := s.ingestMessage(ctx, msg)
		log := s.logger.With(
			zap.String("message_id", msg.ID),
			zap.String("status", string(res.Status)))
		switch res.Status {
		case MessageFailed:
			log.Error("inbound email failed", zap.String("reason", res.Reason))
		case MessageRejected:
			log.Warn("inbound email rejected", zap.String("reason", res.Reason))
		default:
			log.Info("inbound email handled", zap.Int("stored", res.Stored), zap.Int("dropped", res.Dropped))
		}
		results = append(results, res)
	}
	return results
}

func (s *Service) ingestMessage(ctx context.Context, msg InboundMessage) MessageResult {
	res := MessageResult{MessageID: msg.ID}
	if strings.TrimSpace(msg.ID) == "" {
		res.Status, res.Reason = MessageRejected, "missing message id"
		return res
	}

	first, err := s.deps.Messages.MarkMessageProcessed(ctx, msg.ID)
	if err != nil {
		res.Status, res.Reason = MessageFailed, err.Error()
		return res
	}
	if !first {
		res.Status = MessageDuplicate
		return res
	}

	fail := func(err error) MessageResult {
		if ferr := s.deps.Messages.ForgetMessage(context.WithoutCancel(ctx), msg.ID); ferr != nil {
			s.logger.Error("failed to unmark message", zap.String("message_id", msg.ID), zap.Error(ferr))
		}
		res.Status, res.Reason = MessageFailed, err.Error()
		return res
	}
	reject := func(reason string) MessageResult {
		res.Status, res.Reason = MessageRejected, reason
		return res
	}

	jobID, err := ParseJobAddress(msg.To, s.opts.Domain)
	if err != nil {
		return reject(err.Error())
	}
	posting, err := s.deps.Registry.GetJobPosting(ctx, jobID)
	if err != nil {
		return fail(fmt.Errorf("failed to load job posting: %w", err))
	}
	if posting == nil {
		return reject(fmt.Sprintf("job posting %s not found", jobID))
	}
	if !posting.AcceptsApplications(s.now()) {
		return reject(fmt.Sprintf("job posting %s is not accepting applications", jobID))
	}

	email, name, err := parseSender(msg.From)
	if err != nil {
		return reject(err.Error())
	}
	candidate, err := s.deps.Registry.FindOrCreateCandidate(ctx, email, name)
	if err != nil {
		return fail(fmt.Errorf("failed to resolve candidate: %w", err))
	}
	app, err := s.deps.Registry.FindOrCreateApplication(ctx, candidate.ID, posting.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to resolve application: %w", err))
	}
	res.ApplicationID = &app.ID

	atts := s.download(ctx, msg)
	res.Dropped = len(msg.Attachments) - len(atts)
	if len(atts) == 0 {
		res.Status = MessageProcessed
		return res
	}

	classes := s.deps.Classifier.ClassifyBatch(ctx, atts)
	var newResume, anyResume bool
	for i, att := range atts {
		f, dup, err := s.store(ctx, storeRequest{
			att:           att,
			cls:           classes[i],
			referenceID:   &candidate.ID,
			applicationID: &app.ID,
		})
		if err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			s.logger.Error("failed to store attachment",
				zap.String("message_id", msg.ID), zap.String("filename", att.Filename), zap.Error(err))
			res.Dropped++
			continue
		}
		res.Stored++
		if f.Kind == types.KindResume {
			anyResume = true
			newResume = newResume || !dup
		}
	}
	if res.Stored == 0 {
		return fail(errors.New("no attachment could be stored"))
	}

	if newResume {
		s.thank(ctx, candidate, posting)
	}
	if anyResume && s.deps.Trigger != nil {
		if _, err := s.deps.Trigger.Trigger(ctx, app.ID, screening.PriorityWebhook); err != nil {
			s.logger.Warn("failed to trigger screening",
				zap.String("application_id", app.ID.String()), zap.Error(err))
		}
	}
	res.Status = MessageProcessed
	return res
}

// download fetches every attachment of msg; failures are logged and dropped
func (s *Service) download(ctx context.Context, msg InboundMessage) []types.Attachment {
	atts := make([]types.Attachment, 0, len(msg.Attachments))
	if s.deps.Downloader == nil {
		if len(msg.Attachments) > 0 {
			s.logger.Warn("no attachment downloader configured", zap.String("message_id", msg.ID))
		}
		return atts
	}
	for _, ref := range msg.Attachments {
		log := s.logger.With(zap.String("message_id", msg.ID), zap.String("filename", ref.Name))
		data, contentType, err := s.deps.Downloader.Download(ctx, ref.DownloadToken)
		if err != nil {
			log.Warn("attachment dropped: download failed", zap.Error(err))
			continue
		}
		if len(data) == 0 {
			log.Warn("attachment dropped: empty body")
			continue
		}
		if int64(len(data)) > s.opts.MaxAttachment {
			log.Warn("attachment dropped: too large", zap.Int("size", len(data)))
			continue
		}
		declared := ref.ContentType
		if isGeneric(declared) {
			declared = contentType
		}
		name := ref.Name
		if strings.TrimSpace(name) == "" {
			name = "attachment"
		}
		atts = append(atts, types.Attachment{
			Data:     data,
			Filename: name,
			MIMEType: ResolveMIMEType(declared, data),
			Size:     int64(len(data)),
		})
	}
	return atts
}

// thank sends the acknowledgement; failures never affect ingestion
func (s *Service) thank(ctx context.Context, c *types.Candidate, posting *types.JobPosting) {
	if s.deps.Notifier == nil {
		return
	}
	err := s.deps.Notifier.ThankYou(ctx, notify.ThankYou{Email: c.Email, Name: c.Name, JobTitle: posting.Title})
	if err != nil {
		s.logger.Warn("failed to send thank-you email",
			zap.String("candidate_id", c.ID.String()), zap.Error(err))
	}
}
