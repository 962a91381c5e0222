package types

// CertificateType identifies the family of a supporting credential
type CertificateType string

const (
	CertTOEIC            CertificateType = "TOEIC"
	CertIELTS            CertificateType = "IELTS"
	CertTOEFL            CertificateType = "TOEFL"
	CertAWS              CertificateType = "AWS"
	CertAzure            CertificateType = "AZURE"
	CertGoogleCloud      CertificateType = "GOOGLE_CLOUD"
	CertCisco            CertificateType = "CISCO"
	CertOracle           CertificateType = "ORACLE"
	CertUniversityDegree CertificateType = "UNIVERSITY_DEGREE"
	CertMOOC             CertificateType = "MOOC"
	CertUnknown          CertificateType = "UNKNOWN"
)

// ConfidenceLevel is a bucketed confidence label
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// CertificateAnalysis is the structured result of analyzing certificate text.
// Every field except Confidence may be empty.
type CertificateAnalysis struct {
	CertificateType CertificateType `json:"certificate_type"`
	Score           string          `json:"score,omitempty"`
	IssueDate       string          `json:"issue_date,omitempty"`
	ExpiryDate      string          `json:"expiry_date,omitempty"`
	CandidateName   string          `json:"candidate_name,omitempty"`
	Confidence      ConfidenceLevel `json:"confidence"`
	ConfidenceScore int             `json:"confidence_score"`
	OCRSuccess      bool            `json:"ocr_success"`
	OCRConfidence   float64         `json:"ocr_confidence"`
	TextLength      int             `json:"text_length"`
	Basic           bool            `json:"basic,omitempty"` // filename-only analysis
}
