// Package certificate extracts structured facts from certificate text:
// credential type, score, issue and expiry dates, candidate name, and a
// bucketed confidence. Analysis never fails; with no usable text it
// degrades to a filename-only result.
package certificate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-screener/internal/classify"
	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

// Confidence point budget.
const (
	maxFilenamePoints = 20
	maxOCRPoints      = 30
	typePoints        = 25
	scorePoints       = 15
	issueDatePoints   = 10

	highThreshold   = 70
	mediumThreshold = 40
)

// OCRInfo describes how the text was obtained. Used is false for text
// read from a native text layer.
type OCRInfo struct {
	Used       bool
	Success    bool
	Confidence float64 // 0..100
}

var filenameTokens = regexp.MustCompile(`[^a-z0-9]+`)

func foldFilename(filename string) string {
	return " " + strings.TrimSpace(filenameTokens.ReplaceAllString(textextract.Fold(filename), " ")) + " "
}

// Analyze extracts certificate facts from text.
func Analyze(text, filename string, ocr OCRInfo) (result types.CertificateAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			result = AnalyzeBasic(filename)
			result.OCRSuccess = ocr.Success
			result.OCRConfidence = ocr.Confidence
		}
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		basic := AnalyzeBasic(filename)
		basic.OCRSuccess = ocr.Used && ocr.Success
		basic.OCRConfidence = ocr.Confidence
		return basic
	}

	folded := textextract.Fold(text)
	a := types.CertificateAnalysis{
		CertificateType: DetectType(folded),
		OCRSuccess:      !ocr.Used || ocr.Success,
		OCRConfidence:   ocr.Confidence,
		TextLength:      utf8.RuneCountInString(text),
	}
	if a.CertificateType == types.CertUnknown {
		// the filename often names the exam even when OCR missed the logo
		a.CertificateType = DetectType(foldFilename(filename))
	}

	a.Score = ExtractScore(text, folded, a.CertificateType)
	if dates := ExtractDates(folded); len(dates) > 0 {
		a.IssueDate = dates[0]
		if len(dates) > 1 {
			a.ExpiryDate = dates[1]
		}
	}
	a.CandidateName = ExtractName(text)

	a.ConfidenceScore = filenamePoints(filename, a.CertificateType) + ocrPoints(ocr) + contentPoints(a)
	a.Confidence = Bucket(a.ConfidenceScore)
	return a
}

// AnalyzeBasic is the filename-only analysis used when no text could be
// recovered.
func AnalyzeBasic(filename string) types.CertificateAnalysis {
	t := DetectType(foldFilename(filename))
	a := types.CertificateAnalysis{CertificateType: t, Basic: true}
	a.ConfidenceScore = filenamePoints(filename, t)
	a.Confidence = Bucket(a.ConfidenceScore)
	return a
}

// Bucket maps a 0..100 confidence score to a level.
func Bucket(score int) types.ConfidenceLevel {
	switch {
	case score >= highThreshold:
		return types.ConfidenceHigh
	case score >= mediumThreshold:
		return types.ConfidenceMedium
	}
	return types.ConfidenceLow
}

func filenamePoints(filename string, t types.CertificateType) int {
	pts := 0
	if t != types.CertUnknown && typeKeywordIn(foldFilename(filename), t) {
		pts += 15
	}
	if _, cert := classify.FilenameSignals(filename); cert {
		pts += 10
	}
	return min(pts, maxFilenamePoints)
}

func ocrPoints(ocr OCRInfo) int {
	switch {
	case !ocr.Used:
		return maxOCRPoints
	case !ocr.Success:
		return 0
	case ocr.Confidence >= 80:
		return maxOCRPoints
	case ocr.Confidence >= 60:
		return 22
	case ocr.Confidence >= 40:
		return 15
	}
	return 8
}

func contentPoints(a types.CertificateAnalysis) int {
	pts := 0
	if a.CertificateType != types.CertUnknown {
		pts += typePoints
	}
	if a.Score != "" {
		pts += scorePoints
	}
	if a.IssueDate != "" {
		pts += issueDatePoints
	}
	return pts
}
