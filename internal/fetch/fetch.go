// Package fetch downloads attachment bytes from the mail provider's
// download endpoint.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/retry"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "resume-screener/1.0"

// DefaultMaxBytes caps a download when Options.MaxBytes is zero.
const DefaultMaxBytes = 20 << 20

// ErrTooLarge is returned when the body exceeds Options.MaxBytes.
var ErrTooLarge = errors.New("attachment exceeds size limit")

// Result holds a downloaded body.
type Result struct {
	URL         string
	Data        []byte
	ContentType string
	StatusCode  int
}

// Error represents an error during a download.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Temporary reports whether a later attempt may succeed: network failures,
// 5xx and 429 are temporary; other statuses and oversized bodies are not.
func (e *Error) Temporary() bool {
	if errors.Is(e.Cause, ErrTooLarge) {
		return false
	}
	if e.StatusCode == 0 {
		return e.Message == "HTTP request failed" || e.Message == "failed to read response body"
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	MaxBytes  int64
	Client    *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		MaxBytes:  DefaultMaxBytes,
	}
}

// AttachmentURL joins the download endpoint and an attachment token.
func AttachmentURL(base, token string) (string, error) {
	if base == "" {
		return "", errors.New("no attachment download endpoint configured")
	}
	if strings.TrimSpace(token) == "" {
		return "", errors.New("empty download token")
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(token), nil
}

// URL downloads the body at urlStr.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	// Validate URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	result := &Result{
		URL:         urlStr,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	// Read one byte past the limit to detect oversized bodies
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}
	if int64(len(data)) > maxBytes {
		return nil, &Error{URL: urlStr, Message: fmt.Sprintf("body over %d bytes", maxBytes), Cause: ErrTooLarge}
	}
	result.Data = data
	return result, nil
}

// WithRetry downloads urlStr, retrying temporary failures under policy.
func WithRetry(ctx context.Context, urlStr string, opts *Options, policy retry.Policy, logger *zap.Logger) (*Result, error) {
	logger = logging.OrNop(logger)
	return retry.DoValue(ctx, policy, func() (*Result, error) {
		res, err := URL(ctx, urlStr, opts)
		if err == nil {
			return res, nil
		}
		var fe *Error
		if errors.As(err, &fe) && !fe.Temporary() {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}, func(err error, wait time.Duration) {
		logger.Warn("attachment download failed, retrying",
			zap.Duration("wait", wait), zap.Error(err))
	})
}
