package types

import "fmt"

// AnalysisType discriminates the payload carried by AnalysisMetadata
type AnalysisType string

const (
	AnalysisImageCertificate    AnalysisType = "image_certificate_ocr"
	AnalysisPDFCertificate      AnalysisType = "pdf_certificate"
	AnalysisDocumentCertificate AnalysisType = "document_certificate"
	AnalysisResume              AnalysisType = "resume"
	// AnalysisPending marks a classified file whose analysis has not run yet
	AnalysisPending AnalysisType = "pending"
)

// ImageCertificateResult is produced by OCR over a photographed or scanned certificate
type ImageCertificateResult struct {
	Certificate  CertificateAnalysis `json:"certificate"`
	OCRElapsedMs int64               `json:"ocr_elapsed_ms"`
	OCRPass      string              `json:"ocr_pass,omitempty"`
	Preprocessed bool                `json:"preprocessed"`
}

// PDFCertificateResult is produced from text embedded in a native PDF certificate
type PDFCertificateResult struct {
	Certificate    CertificateAnalysis `json:"certificate"`
	ExtractedChars int                 `json:"extracted_chars"`
}

// DocumentCertificateResult is produced from Word or HTML certificates
type DocumentCertificateResult struct {
	Certificate CertificateAnalysis `json:"certificate"`
	Format      string              `json:"format"`
}

// ResumeResult records what was learned from a résumé at classification time
type ResumeResult struct {
	ExtractedChars int    `json:"extracted_chars"`
	CandidateName  string `json:"candidate_name,omitempty"`
	CandidateEmail string `json:"candidate_email,omitempty"`
}

// AnalysisMetadata is a tagged union: Type names exactly one populated payload.
// Use the New* constructors so producer and consumer agree on the variant.
type AnalysisMetadata struct {
	Type                AnalysisType               `json:"type"`
	Classification      Classification             `json:"classification"`
	ImageCertificate    *ImageCertificateResult    `json:"image_certificate,omitempty"`
	PDFCertificate      *PDFCertificateResult      `json:"pdf_certificate,omitempty"`
	DocumentCertificate *DocumentCertificateResult `json:"document_certificate,omitempty"`
	Resume              *ResumeResult              `json:"resume,omitempty"`
}

// NewImageCertificateMetadata builds metadata for an OCR-analyzed image certificate
func NewImageCertificateMetadata(c Classification, r ImageCertificateResult) *AnalysisMetadata {
	return &AnalysisMetadata{Type: AnalysisImageCertificate, Classification: c, ImageCertificate: &r}
}

// NewPDFCertificateMetadata builds metadata for a native PDF certificate
func NewPDFCertificateMetadata(c Classification, r PDFCertificateResult) *AnalysisMetadata {
	return &AnalysisMetadata{Type: AnalysisPDFCertificate, Classification: c, PDFCertificate: &r}
}

// NewDocumentCertificateMetadata builds metadata for a Word/HTML certificate
func NewDocumentCertificateMetadata(c Classification, r DocumentCertificateResult) *AnalysisMetadata {
	return &AnalysisMetadata{Type: AnalysisDocumentCertificate, Classification: c, DocumentCertificate: &r}
}

// NewResumeMetadata builds metadata for a résumé
func NewResumeMetadata(c Classification, r ResumeResult) *AnalysisMetadata {
	return &AnalysisMetadata{Type: AnalysisResume, Classification: c, Resume: &r}
}

// NewPendingMetadata records the classification of a file awaiting analysis
func NewPendingMetadata(c Classification) *AnalysisMetadata {
	return &AnalysisMetadata{Type: AnalysisPending, Classification: c}
}

// Pending reports whether the analysis of the file is still outstanding
func (m *AnalysisMetadata) Pending() bool {
	return m != nil && m.Type == AnalysisPending
}

// Certificate returns the certificate analysis of any certificate variant, or nil
func (m *AnalysisMetadata) Certificate() *CertificateAnalysis {
	if m == nil {
		return nil
	}
	switch m.Type {
	case AnalysisImageCertificate:
		if m.ImageCertificate != nil {
			return &m.ImageCertificate.Certificate
		}
	case AnalysisPDFCertificate:
		if m.PDFCertificate != nil {
			return &m.PDFCertificate.Certificate
		}
	case AnalysisDocumentCertificate:
		if m.DocumentCertificate != nil {
			return &m.DocumentCertificate.Certificate
		}
	}
	return nil
}

// Validate checks that exactly the payload named by Type is populated
func (m *AnalysisMetadata) Validate() error {
	if m == nil {
		return nil
	}
	populated := 0
	for _, set := range []bool{m.ImageCertificate != nil, m.PDFCertificate != nil, m.DocumentCertificate != nil, m.Resume != nil} {
		if set {
			populated++
		}
	}
	if m.Type == AnalysisPending {
		if populated != 0 {
			return fmt.Errorf("pending analysis metadata carries %d payloads", populated)
		}
		return nil
	}
	if populated != 1 {
		return fmt.Errorf("analysis metadata must carry exactly one payload, got %d", populated)
	}

	var ok bool
	switch m.Type {
	case AnalysisImageCertificate:
		ok = m.ImageCertificate != nil
	case AnalysisPDFCertificate:
		ok = m.PDFCertificate != nil
	case AnalysisDocumentCertificate:
		ok = m.DocumentCertificate != nil
	case AnalysisResume:
		ok = m.Resume != nil
	default:
		return fmt.Errorf("unknown analysis type %q", m.Type)
	}
	if !ok {
		return fmt.Errorf("analysis type %q does not match its payload", m.Type)
	}
	return nil
}
