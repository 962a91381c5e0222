package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/fetch"
	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/retry"
)

// Downloader resolves an attachment download token to its bytes
type Downloader interface {
	Download(ctx context.Context, token string) (data []byte, contentType string, err error)
}

// HTTPDownloader fetches attachments from the mail provider's download
// endpoint, retrying temporary failures
type HTTPDownloader struct {
	baseURL string
	opts    *fetch.Options
	policy  retry.Policy
	logger  *zap.Logger
}

// NewHTTPDownloader creates an HTTPDownloader for baseURL
func NewHTTPDownloader(baseURL string, timeout time.Duration, maxBytes int64, policy retry.Policy, logger *zap.Logger) *HTTPDownloader {
	opts := fetch.DefaultOptions()
	if timeout > 0 {
		opts.Timeout = timeout
	}
	if maxBytes > 0 {
		opts.MaxBytes = maxBytes
	}
	return &HTTPDownloader{baseURL: baseURL, opts: opts, policy: policy, logger: logging.OrNop(logger)}
}

func (d *HTTPDownloader) Download(ctx context.Context, token string) ([]byte, string, error) {
	u, err := fetch.AttachmentURL(d.baseURL, token)
	if err != nil {
		return nil, "", err
	}
	res, err := fetch.WithRetry(ctx, u, d.opts, d.policy, d.logger)
	if err != nil {
		return nil, "", err
	}
	return res.Data, res.ContentType, nil
}
