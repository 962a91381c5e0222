// Package notify sends candidate-facing notifications.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/logging"
)

// Notifier sends the acknowledgement for a received application
type Notifier interface {
	ThankYou(ctx context.Context, to ThankYou) error
}

// ThankYou is the data of one acknowledgement
type ThankYou struct {
	Email    string
	Name     string
	JobTitle string
}

// Noop drops every notification
type Noop struct{}

func (Noop) ThankYou(context.Context, ThankYou) error { return nil }

// dialer is the part of gomail.Dialer the notifier uses
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends notifications through an SMTP server
type SMTP struct {
	from   string
	dialer dialer
	logger *zap.Logger
}

// New returns an SMTP notifier, or Noop when SMTP is disabled
func New(cfg config.SMTPConfig, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return Noop{}
	}
	return &SMTP{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logging.OrNop(logger),
	}
}

// ThankYou sends the "application received" email
func (s *SMTP) ThankYou(ctx context.Context, t ThankYou) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Email) == "" {
		return fmt.Errorf("no recipient address")
	}

	m := BuildThankYou(s.from, t)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send thank-you email to %s: %w", t.Email, err)
	}
	s.logger.Info("thank-you email sent", zap.String("to", t.Email), zap.String("job_title", t.JobTitle))
	return nil
}

// BuildThankYou renders the acknowledgement message
func BuildThankYou(from string, t ThankYou) *gomail.Message {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		name = "candidate"
	}
	job := strings.TrimSpace(t.JobTitle)
	subject := "We received your application"
	if job != "" {
		subject += " for " + job
	}

	body := fmt.Sprintf("Dear %s,\n\nThank you for your application", name)
	if job != "" {
		body += fmt.Sprintf(" for the %s position", job)
	}
	body += ". We have received your documents and our team will review them shortly.\n\nBest regards,\nRecruitment Team\n"

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", t.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}
