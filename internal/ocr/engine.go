// Package ocr adapts a text recognition engine to the screening pipeline:
// multi-pass recognition, result scoring, bounded concurrency and a
// fail-soft fallback.
package ocr

import (
	"context"
	"errors"
)

// Pass is one execution of the engine with a specific language setup.
type Pass struct {
	Name        string
	Languages   string // tesseract style, e.g. "eng+vie"
	SingleBlock bool   // treat the page as one uniform block of text
}

// EngineResult is the raw output of one pass. Confidence is in 0..100.
type EngineResult struct {
	Text       string
	Confidence float64
}

// Engine runs a single recognition pass over an image.
type Engine interface {
	Recognize(ctx context.Context, image []byte, pass Pass) (EngineResult, error)
}

// ErrRecognitionFailed is returned when no pass produced viable text.
var ErrRecognitionFailed = errors.New("ocr: recognition failed")
