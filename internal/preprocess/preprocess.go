// Package preprocess enhances scanned or photographed documents before OCR.
//
// The full chain is: orientation, upscale to a working width, grayscale,
// contrast normalization, gamma, mild blur, sharpen and binarization with a
// threshold derived from the mean brightness. When any step fails the
// minimal fallback chain runs instead; when that fails too the original
// bytes are returned.
package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	// extra decoders for formats scanners and phones produce
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jonathan/resume-screener/internal/logging"
)

// Options tunes the enhancement chain.
type Options struct {
	MinWidth          int     // images narrower than this are upscaled
	MaxWidth          int     // hard cap on the working width
	Contrast          float64 // percentage, -100..100
	Gamma             float64 // >1 brightens midtones
	BlurSigma         float64
	SharpenSigma      float64
	FallbackThreshold uint8
}

// DefaultOptions returns the tuning used in production.
func DefaultOptions() Options {
	return Options{
		MinWidth:          1800,
		MaxWidth:          4000,
		Contrast:          25,
		Gamma:             1.2,
		BlurSigma:         0.5,
		SharpenSigma:      1.0,
		FallbackThreshold: 128,
	}
}

// Result describes what happened to an image.
type Result struct {
	Data      []byte
	Applied   bool // false when the original bytes were returned
	Fallback  bool // the minimal chain was used
	Threshold uint8
}

// Preprocessor runs the enhancement chain.
type Preprocessor struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Preprocessor. Zero-valued options fall back to DefaultOptions.
func New(opts Options, logger *zap.Logger) *Preprocessor {
	def := DefaultOptions()
	if opts.MinWidth <= 0 {
		opts.MinWidth = def.MinWidth
	}
	if opts.MaxWidth < opts.MinWidth {
		opts.MaxWidth = max(def.MaxWidth, opts.MinWidth)
	}
	if opts.Gamma <= 0 {
		opts.Gamma = def.Gamma
	}
	if opts.FallbackThreshold == 0 {
		opts.FallbackThreshold = def.FallbackThreshold
	}
	return &Preprocessor{opts: opts, logger: logging.OrNop(logger)}
}

// Preprocess returns the enhanced image as PNG, or data unchanged when
// nothing could be done. It never fails.
func (p *Preprocessor) Preprocess(ctx context.Context, data []byte) []byte {
	return p.Process(ctx, data).Data
}

// Process is Preprocess with a report of which chain ran.
func (p *Preprocessor) Process(ctx context.Context, data []byte) Result {
	original := Result{Data: data}
	if len(data) == 0 || ctx.Err() != nil {
		return original
	}

	src, err := decode(data)
	if err != nil {
		p.logger.Debug("preprocess: decode failed, using original", zap.Error(err))
		return original
	}

	img, threshold, err := p.fullChain(ctx, src)
	fallback := false
	if err != nil {
		p.logger.Info("preprocess: enhancement failed, using fallback chain", zap.Error(err))
		fallback = true
		threshold = p.opts.FallbackThreshold
		img, err = p.fallbackChain(ctx, src)
		if err != nil {
			p.logger.Warn("preprocess: fallback chain failed, using original", zap.Error(err))
			return original
		}
	}

	out, err := encode(img)
	if err != nil {
		p.logger.Warn("preprocess: encode failed, using original", zap.Error(err))
		return original
	}
	return Result{Data: out, Applied: true, Fallback: fallback, Threshold: threshold}
}

type step struct {
	name string
	fn   func(image.Image) image.Image
}

func (p *Preprocessor) fullChain(ctx context.Context, src image.Image) (image.Image, uint8, error) {
	var threshold uint8
	steps := []step{
		{"resize", p.resize},
		{"grayscale", func(img image.Image) image.Image { return imaging.Grayscale(img) }},
		{"contrast", func(img image.Image) image.Image { return imaging.AdjustContrast(img, p.opts.Contrast) }},
		{"gamma", func(img image.Image) image.Image { return imaging.AdjustGamma(img, p.opts.Gamma) }},
		{"blur", func(img image.Image) image.Image {
			if p.opts.BlurSigma <= 0 {
				return img
			}
			return imaging.Blur(img, p.opts.BlurSigma)
		}},
		{"sharpen", func(img image.Image) image.Image {
			if p.opts.SharpenSigma <= 0 {
				return img
			}
			return imaging.Sharpen(img, p.opts.SharpenSigma)
		}},
		{"binarize", func(img image.Image) image.Image {
			threshold = AdaptiveThreshold(MeanBrightness(img))
			return Binarize(img, threshold)
		}},
	}
	img, err := runSteps(ctx, src, steps)
	return img, threshold, err
}

func (p *Preprocessor) fallbackChain(ctx context.Context, src image.Image) (image.Image, error) {
	steps := []step{
		{"resize", p.resize},
		{"grayscale", func(img image.Image) image.Image { return imaging.Grayscale(img) }},
		{"normalize", func(img image.Image) image.Image { return imaging.AdjustContrast(img, 20) }},
		{"sharpen", func(img image.Image) image.Image { return imaging.Sharpen(img, 1.0) }},
		{"threshold", func(img image.Image) image.Image { return Binarize(img, p.opts.FallbackThreshold) }},
	}
	return runSteps(ctx, src, steps)
}

func runSteps(ctx context.Context, img image.Image, steps []step) (image.Image, error) {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := safeStep(s, img)
		if err != nil {
			return nil, err
		}
		img = next
	}
	return img, nil
}

// safeStep turns panics and empty outputs from an image operation into errors.
func safeStep(s step, img image.Image) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", s.name, r)
		}
	}()
	out = s.fn(img)
	if out == nil || out.Bounds().Empty() {
		return nil, fmt.Errorf("%s: produced an empty image", s.name)
	}
	return out, nil
}

// resize upscales narrow images to MinWidth and downscales wide ones to MaxWidth.
func (p *Preprocessor) resize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	target := w
	switch {
	case w < p.opts.MinWidth:
		target = p.opts.MinWidth
	case w > p.opts.MaxWidth:
		target = p.opts.MaxWidth
	}
	if target == w {
		return img
	}
	// keep the height under the same cap so tall scans do not explode memory
	newH := int(math.Round(float64(h) * float64(target) / float64(w)))
	if newH > 2*p.opts.MaxWidth {
		newH = 2 * p.opts.MaxWidth
		target = int(math.Round(float64(w) * float64(newH) / float64(h)))
	}
	if target < 1 || newH < 1 {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, target, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// MeanBrightness returns the average luminance of img in 0..255.
func MeanBrightness(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += luminance(color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA))
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

// AdaptiveThreshold maps mean brightness to a binarization threshold:
// darker images get a lower threshold, brighter ones a higher one.
func AdaptiveThreshold(mean float64) uint8 {
	t := mean * 0.85
	if t < 70 {
		t = 70
	}
	if t > 190 {
		t = 190
	}
	return uint8(math.Round(t))
}

// Binarize maps every pixel to black or white around threshold.
func Binarize(img image.Image, threshold uint8) image.Image {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if luminance(c) >= float64(threshold) {
			return color.NRGBA{R: 255, G: 255, B: 255, A: c.A}
		}
		return color.NRGBA{A: c.A}
	})
}

func luminance(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("image has no pixels")
	}
	return img, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
