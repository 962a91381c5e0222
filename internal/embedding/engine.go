package embedding

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/retry"
	"github.com/jonathan/resume-screener/internal/types"
)

// maxInputRunes caps the text sent for a whole-document vector
const maxInputRunes = 8000

// ErrEmptyText is returned when there is nothing to embed
var ErrEmptyText = errors.New("no text to embed")

// ProviderError is returned when the provider keeps failing after retries
type ProviderError struct {
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s failed: %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Options tune an Engine
type Options struct {
	ChunkSize int
	MaxChunks int
	Timeout   time.Duration
	Retry     retry.Policy
}

// OptionsFromConfig maps embedding config onto engine options
func OptionsFromConfig(cfg config.EmbeddingConfig, policy retry.Policy) Options {
	return Options{
		ChunkSize: cfg.ChunkSize,
		MaxChunks: cfg.MaxChunks,
		Timeout:   cfg.Timeout,
		Retry:     policy,
	}
}

// Engine embeds text through a Provider with retries and chunking
type Engine struct {
	provider Provider
	opts     Options
	logger   *zap.Logger
}

// NewEngine creates an engine over provider
func NewEngine(provider Provider, opts Options, logger *zap.Logger) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = 20
	}
	return &Engine{provider: provider, opts: opts, logger: logging.OrNop(logger)}
}

// Model names the provider model
func (e *Engine) Model() string {
	return e.provider.Model()
}

// Embed returns the vector for text. Provider failures are retried with
// backoff and then returned as *ProviderError.
func (e *Engine) Embed(ctx context.Context, text string, typ types.EmbeddingType) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if r := []rune(text); len(r) > maxInputRunes {
		text = string(r[:maxInputRunes])
	}

	vectors, err := e.embedBatch(ctx, []string{text}, typ)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocument embeds text as a whole and as chunks. Text that fits one
// window gets a single chunk carrying the document vector. A chunk failure
// leaves Chunks empty; only a whole-document failure is an error.
func (e *Engine) EmbedDocument(ctx context.Context, applicationID uuid.UUID, text string, typ types.EmbeddingType) (*types.CvEmbedding, error) {
	vector, err := e.Embed(ctx, text, typ)
	if err != nil {
		return nil, err
	}

	doc := &types.CvEmbedding{
		ApplicationID: applicationID,
		EmbeddingType: typ,
		Model:         e.provider.Model(),
		ContentHash:   ContentHash(text),
		Vector:        vector,
	}

	chunks := Chunk(text, e.opts.ChunkSize)
	if len(chunks) > e.opts.MaxChunks {
		chunks = chunks[:e.opts.MaxChunks]
	}
	switch len(chunks) {
	case 0:
		return doc, nil
	case 1:
		// one window is the whole document
		chunks[0].Vector = vector
		doc.Chunks = chunks
		return doc, nil
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	vectors, err := e.embedBatch(ctx, contents, typ)
	if err != nil {
		e.logger.Warn("chunk embedding failed, keeping document vector only",
			zap.String("application_id", applicationID.String()),
			zap.String("embedding_type", string(typ)),
			zap.Error(err))
		return doc, nil
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}
	doc.Chunks = chunks
	return doc, nil
}

func (e *Engine) embedBatch(ctx context.Context, texts []string, typ types.EmbeddingType) ([][]float32, error) {
	attempt := 0
	vectors, err := retry.DoValue(ctx, e.opts.Retry, func() ([][]float32, error) {
		attempt++
		callCtx := ctx
		if e.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()
		}
		v, err := e.provider.EmbedBatch(callCtx, texts)
		if err == nil && len(v) != len(texts) {
			err = fmt.Errorf("provider returned %d vectors for %d inputs", len(v), len(texts))
		}
		return v, err
	}, func(err error, wait time.Duration) {
		e.logger.Warn("embedding attempt failed, retrying",
			zap.String("embedding_type", string(typ)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ProviderError{Model: e.provider.Model(), Err: err}
	}
	return vectors, nil
}

// ContentHash is the hex BLAKE2b-256 digest of text
func ContentHash(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
