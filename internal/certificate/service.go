package certificate

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/ocr"
	"github.com/jonathan/resume-screener/internal/preprocess"
	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

// Recognizer is the fail-soft OCR entry point.
type Recognizer interface {
	RecognizeWithFallback(ctx context.Context, image []byte) ocr.Recognition
}

// ImagePreprocessor enhances images before recognition.
type ImagePreprocessor interface {
	Process(ctx context.Context, data []byte) preprocess.Result
}

// TextSource extracts native text from documents.
type TextSource interface {
	Extract(ctx context.Context, data []byte, mimeType, filename string) (textextract.Result, error)
}

// Service runs the single certificate analysis over whatever text source
// fits the attachment: OCR for images, the text layer for PDFs and Word
// documents. Every method returns metadata; none fails.
type Service struct {
	pre    ImagePreprocessor
	ocr    Recognizer
	text   TextSource
	pool   *ocr.Pool
	logger *zap.Logger
}

// NewService creates a Service. pool bounds preprocessing and may be the
// same pool the OCR adapter uses.
func NewService(pre ImagePreprocessor, rec Recognizer, text TextSource, pool *ocr.Pool, logger *zap.Logger) *Service {
	if pool == nil {
		pool = ocr.NewPool(1)
	}
	return &Service{pre: pre, ocr: rec, text: text, pool: pool, logger: logging.OrNop(logger)}
}

// AnalyzeAttachment dispatches on the attachment format.
func (s *Service) AnalyzeAttachment(ctx context.Context, att types.Attachment, cls types.Classification) *types.AnalysisMetadata {
	switch format := textextract.DetectFormat(att.MIMEType, att.Filename); format {
	case textextract.FormatImage:
		return s.AnalyzeImage(ctx, att.Data, att.Filename, cls)
	case textextract.FormatPDF:
		return s.AnalyzePDF(ctx, att.Data, att.Filename, cls)
	default:
		return s.AnalyzeDocument(ctx, att.Data, att.MIMEType, att.Filename, cls)
	}
}

// AnalyzeImage preprocesses the image on the pool, runs OCR and analyzes
// the recognized text.
func (s *Service) AnalyzeImage(ctx context.Context, data []byte, filename string, cls types.Classification) *types.AnalysisMetadata {
	img := data
	preprocessed := false
	if s.pre != nil {
		err := s.pool.Do(ctx, func(ctx context.Context) error {
			res := s.pre.Process(ctx, data)
			img, preprocessed = res.Data, res.Applied
			return nil
		})
		if err != nil {
			s.logger.Debug("certificate: preprocessing skipped", zap.String("filename", filename), zap.Error(err))
		}
	}

	var rec ocr.Recognition
	if s.ocr != nil {
		rec = s.ocr.RecognizeWithFallback(ctx, img)
	}

	var analysis types.CertificateAnalysis
	if rec.Success {
		analysis = Analyze(rec.Text, filename, OCRInfo{Used: true, Success: true, Confidence: rec.Confidence})
	} else {
		s.logger.Info("certificate: OCR failed, using filename analysis", zap.String("filename", filename))
		analysis = AnalyzeBasic(filename)
	}

	s.logger.Debug("certificate analyzed",
		zap.String("filename", filename),
		zap.String("type", string(analysis.CertificateType)),
		zap.String("confidence", string(analysis.Confidence)),
		zap.Bool("ocr_success", analysis.OCRSuccess))

	return types.NewImageCertificateMetadata(cls, types.ImageCertificateResult{
		Certificate:  analysis,
		OCRElapsedMs: rec.ElapsedMs,
		OCRPass:      rec.Pass,
		Preprocessed: preprocessed,
	})
}

// AnalyzePDF analyzes the PDF text layer. Scanned PDFs without one get the
// filename-only analysis.
func (s *Service) AnalyzePDF(ctx context.Context, data []byte, filename string, cls types.Classification) *types.AnalysisMetadata {
	text := s.extract(ctx, data, "application/pdf", filename)
	return types.NewPDFCertificateMetadata(cls, types.PDFCertificateResult{
		Certificate:    s.analyzeText(text, filename),
		ExtractedChars: utf8.RuneCountInString(text),
	})
}

// AnalyzeDocument analyzes Word, HTML or plain-text certificates.
func (s *Service) AnalyzeDocument(ctx context.Context, data []byte, mimeType, filename string, cls types.Classification) *types.AnalysisMetadata {
	text := s.extract(ctx, data, mimeType, filename)
	return types.NewDocumentCertificateMetadata(cls, types.DocumentCertificateResult{
		Certificate: s.analyzeText(text, filename),
		Format:      string(textextract.DetectFormat(mimeType, filename)),
	})
}

func (s *Service) analyzeText(text, filename string) types.CertificateAnalysis {
	if text == "" {
		return AnalyzeBasic(filename)
	}
	return Analyze(text, filename, OCRInfo{})
}

func (s *Service) extract(ctx context.Context, data []byte, mimeType, filename string) string {
	if s.text == nil {
		return ""
	}
	res, err := s.text.Extract(ctx, data, mimeType, filename)
	if err != nil {
		s.logger.Info("certificate: no text layer", zap.String("filename", filename), zap.Error(err))
		return ""
	}
	return res.Text
}
