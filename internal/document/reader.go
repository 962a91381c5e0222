// Package document turns a stored file into text: the native text layer
// for PDF, Word, HTML and plain text, preprocessing plus OCR for images.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/ocr"
	"github.com/jonathan/resume-screener/internal/preprocess"
	"github.com/jonathan/resume-screener/internal/textextract"
)

// ErrNoText is returned when neither the text layer nor OCR yields text
var ErrNoText = errors.New("no readable text")

// Source says where the text came from
type Source string

const (
	SourceTextLayer Source = "text_layer"
	SourceOCR       Source = "ocr"
)

// TextSource extracts native text from documents
type TextSource interface {
	Extract(ctx context.Context, data []byte, mimeType, filename string) (textextract.Result, error)
}

// Recognizer is the fail-soft OCR entry point
type Recognizer interface {
	RecognizeWithFallback(ctx context.Context, image []byte) ocr.Recognition
}

// ImagePreprocessor enhances images before recognition
type ImagePreprocessor interface {
	Process(ctx context.Context, data []byte) preprocess.Result
}

// Text is the outcome of reading one document
type Text struct {
	Content       string
	Source        Source
	OCRConfidence float64
}

// Reader picks the extraction path per format
type Reader struct {
	text   TextSource
	pre    ImagePreprocessor
	ocr    Recognizer
	pool   *ocr.Pool
	logger *zap.Logger
}

// NewReader creates a Reader. pre and rec may be nil, which disables OCR.
// pool bounds preprocessing and should be the pool the OCR adapter uses.
func NewReader(text TextSource, pre ImagePreprocessor, rec Recognizer, pool *ocr.Pool, logger *zap.Logger) *Reader {
	if pool == nil {
		pool = ocr.NewPool(1)
	}
	return &Reader{text: text, pre: pre, ocr: rec, pool: pool, logger: logging.OrNop(logger)}
}

// Read returns the text of a document. A PDF without a text layer is not
// rasterized; it fails with ErrNoText.
func (r *Reader) Read(ctx context.Context, data []byte, mimeType, filename string) (Text, error) {
	if textextract.IsImage(mimeType, filename) {
		return r.readImage(ctx, data, filename)
	}
	if r.text == nil {
		return Text{}, fmt.Errorf("%s: %w", filename, ErrNoText)
	}

	res, err := r.text.Extract(ctx, data, mimeType, filename)
	if err != nil {
		if ctx.Err() != nil {
			return Text{}, ctx.Err()
		}
		return Text{}, fmt.Errorf("%s: %w: %v", filename, ErrNoText, err)
	}
	return Text{Content: res.Text, Source: SourceTextLayer}, nil
}

func (r *Reader) readImage(ctx context.Context, data []byte, filename string) (Text, error) {
	if r.ocr == nil {
		return Text{}, fmt.Errorf("%s: %w: OCR disabled", filename, ErrNoText)
	}

	img := data
	if r.pre != nil {
		err := r.pool.Do(ctx, func(ctx context.Context) error {
			img = r.pre.Process(ctx, data).Data
			return nil
		})
		if err != nil {
			return Text{}, err
		}
	}

	rec := r.ocr.RecognizeWithFallback(ctx, img)
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}
	content := textextract.CleanText(rec.Text)
	if !rec.Success || strings.TrimSpace(content) == "" {
		return Text{}, fmt.Errorf("%s: %w: OCR failed", filename, ErrNoText)
	}
	r.logger.Debug("image text recognized",
		zap.String("filename", filename),
		zap.String("pass", rec.Pass),
		zap.Float64("confidence", rec.Confidence))
	return Text{Content: content, Source: SourceOCR, OCRConfidence: rec.Confidence}, nil
}
