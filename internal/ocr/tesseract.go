package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs passes through libtesseract. A fresh client is used
// per pass since gosseract clients are not safe for concurrent use.
type TesseractEngine struct{}

// NewTesseractEngine creates a TesseractEngine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{}
}

// Recognize implements Engine. The cgo call cannot be interrupted, so ctx
// is only checked before it starts; Adapter runs passes through
// Pool.DoDetached to bound the wait.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, pass Pass) (EngineResult, error) {
	if err := ctx.Err(); err != nil {
		return EngineResult{}, err
	}
	return e.recognize(image, pass)
}

func (e *TesseractEngine) recognize(image []byte, pass Pass) (EngineResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(pass.Languages, "+")...); err != nil {
		return EngineResult{}, fmt.Errorf("failed to set languages %q: %w", pass.Languages, err)
	}
	if pass.SingleBlock {
		if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
			return EngineResult{}, fmt.Errorf("failed to set page segmentation: %w", err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return EngineResult{}, fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return EngineResult{}, fmt.Errorf("tesseract %s pass: %w", pass.Name, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return EngineResult{}, fmt.Errorf("tesseract %s pass confidence: %w", pass.Name, err)
	}
	return EngineResult{Text: text, Confidence: meanConfidence(boxes)}, nil
}

func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	var sum float64
	n := 0
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
