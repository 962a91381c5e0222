// Package classify decides whether an inbound attachment is a résumé or a
// supporting certificate when neither the sender nor the metadata says so.
//
// Decision order, first decisive signal wins:
//  1. filename keywords (English and Vietnamese), exactly one set matching
//  2. PDF content scoring with a fixed margin
//  3. images are certificates unless the filename names a résumé
//  4. 500KB-5MB PDFs lean résumé
//  5. batch default (see ClassifyBatch)
package classify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

const (
	// ContentMargin is the minimum score difference for a content decision.
	ContentMargin = 2.0

	minResumeSize = 500 * 1024
	maxResumeSize = 5 * 1024 * 1024

	filenameConfidence     = 0.9
	imageConfidence        = 0.75
	sizeConfidence         = 0.55
	batchDefaultConfidence = 0.4
	unknownConfidence      = 0.2
)

// Reasons recorded on a Classification.
const (
	ReasonFilenameResume      = "filename_resume_keyword"
	ReasonFilenameCertificate = "filename_certificate_keyword"
	ReasonContent             = "pdf_content"
	ReasonImage               = "image_default_certificate"
	ReasonSize                = "pdf_size_range"
	ReasonBatchResume         = "batch_default_resume"
	ReasonBatchCertificate    = "batch_default_certificate"
	ReasonUndecided           = "no_decisive_signal"
)

// TextSource extracts text from a document.
type TextSource interface {
	Extract(ctx context.Context, data []byte, mimeType, filename string) (textextract.Result, error)
}

// Classifier is a pure function of its inputs: the same attachment always
// yields the same Classification.
type Classifier struct {
	text   TextSource
	logger *zap.Logger
}

// New creates a Classifier. text may be nil, which disables content scoring.
func New(text TextSource, logger *zap.Logger) *Classifier {
	return &Classifier{text: text, logger: logging.OrNop(logger)}
}

// Classify runs decision steps 1-4 on a single attachment. Attachments
// without a decisive signal come back with Decisive=false; a PDF in the
// résumé size range is reported as a résumé lean.
func (c *Classifier) Classify(ctx context.Context, att types.Attachment) types.Classification {
	hasResumeKw, hasCertKw := FilenameSignals(att.Filename)
	switch {
	case hasResumeKw && !hasCertKw:
		return decided(types.KindResume, filenameConfidence, ReasonFilenameResume)
	case hasCertKw && !hasResumeKw:
		return decided(types.KindCertificate, filenameConfidence, ReasonFilenameCertificate)
	}

	format := textextract.DetectFormat(att.MIMEType, att.Filename)

	if format == textextract.FormatPDF && c.text != nil {
		if cls, ok := c.classifyContent(ctx, att); ok {
			return cls
		}
	}

	if format == textextract.FormatImage && !hasResumeKw {
		return decided(types.KindCertificate, imageConfidence, ReasonImage)
	}

	size := att.Size
	if size == 0 {
		size = int64(len(att.Data))
	}
	if format == textextract.FormatPDF && size >= minResumeSize && size <= maxResumeSize {
		return types.Classification{Kind: types.KindResume, Confidence: sizeConfidence, Reason: ReasonSize}
	}

	return types.Classification{Kind: types.KindUnknown, Confidence: unknownConfidence, Reason: ReasonUndecided}
}

// ContentScores returns the résumé and certificate scores for extracted text.
func ContentScores(text string) (resume, certificate float64) {
	folded := textextract.Fold(text)
	resume = float64(countIndicators(folded, resumeContentIndicators))
	certificate = float64(countIndicators(folded, certificateContentIndicators))

	if emailPattern.MatchString(folded) {
		resume++
	}
	if phonePattern.MatchString(folded) {
		resume++
	}

	// longer documents lean résumé, one-pagers lean certificate
	words := len(strings.Fields(folded))
	switch {
	case words > 600:
		resume += 3
	case words > 300:
		resume += 2
	case words < 120:
		certificate += 1.5
	}
	return resume, certificate
}

func (c *Classifier) classifyContent(ctx context.Context, att types.Attachment) (types.Classification, bool) {
	res, err := c.text.Extract(ctx, att.Data, att.MIMEType, att.Filename)
	if err != nil {
		c.logger.Debug("classify: no pdf text, skipping content scoring",
			zap.String("filename", att.Filename), zap.Error(err))
		return types.Classification{}, false
	}

	r, cert := ContentScores(res.Text)
	margin := math.Abs(r - cert)
	if margin < ContentMargin {
		return types.Classification{}, false
	}
	conf := 0.5 + math.Min(margin/20, 0.4)
	conf = math.Round(conf*100) / 100
	reason := fmt.Sprintf("%s (resume %.1f, certificate %.1f)", ReasonContent, r, cert)
	if r > cert {
		return decided(types.KindResume, conf, reason), true
	}
	return decided(types.KindCertificate, conf, reason), true
}

func decided(kind types.FileKind, conf float64, reason string) types.Classification {
	return types.Classification{Kind: kind, Confidence: conf, Reason: reason, Decisive: true}
}

// ClassifyBatch classifies every attachment independently, then applies the
// batch default only if no file was decisively classified as a résumé:
// one undecided file becomes the résumé (the first résumé lean, else the
// first undecided file) and every other undecided file is a certificate.
// When a decisive résumé exists, undecided files become certificates.
func (c *Classifier) ClassifyBatch(ctx context.Context, atts []types.Attachment) []types.Classification {
	out := make([]types.Classification, len(atts))
	haveResume := false
	for i, att := range atts {
		out[i] = c.Classify(ctx, att)
		if out[i].Decisive && out[i].Kind == types.KindResume {
			haveResume = true
		}
	}
	return ApplyBatchDefault(out, haveResume, c.logger)
}

// ApplyBatchDefault is the second pass of ClassifyBatch. It does not mutate
// its input.
func ApplyBatchDefault(in []types.Classification, haveResume bool, logger *zap.Logger) []types.Classification {
	out := make([]types.Classification, len(in))
	copy(out, in)

	chosen := -1
	if !haveResume {
		for i, cls := range out {
			if !cls.Decisive && cls.Kind == types.KindResume {
				chosen = i
				break
			}
		}
		if chosen < 0 {
			for i, cls := range out {
				if !cls.Decisive {
					chosen = i
					break
				}
			}
		}
	}

	for i, cls := range out {
		if cls.Decisive {
			continue
		}
		if i == chosen {
			out[i] = types.Classification{Kind: types.KindResume, Confidence: batchDefaultConfidence, Reason: ReasonBatchResume}
		} else {
			out[i] = types.Classification{Kind: types.KindCertificate, Confidence: batchDefaultConfidence, Reason: ReasonBatchCertificate}
		}
		logging.OrNop(logger).Info("classify: low-confidence batch default",
			zap.Int("index", i),
			zap.String("kind", string(out[i].Kind)),
			zap.String("previous_reason", cls.Reason))
	}
	return out
}

// CountKind returns how many classifications have the given kind.
func CountKind(cls []types.Classification, kind types.FileKind) int {
	n := 0
	for _, c := range cls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
