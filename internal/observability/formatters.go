// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-screener/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to n runes, ending in "..."
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// writeList appends up to limit items of list under heading
func writeList(sb *strings.Builder, heading string, list []string, limit int) {
	if len(list) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	for _, item := range list[:min(len(list), limit)] {
		sb.WriteString(fmt.Sprintf("  • %s\n", truncate(item, 50)))
	}
	if len(list) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(list)-limit))
	}
}

// PrintClassifications outputs one line per classified file.
func (p *Printer) PrintClassifications(files []types.Attachment, classes []types.Classification) {
	if len(files) == 0 {
		return
	}

	var sb strings.Builder
	for i, f := range files {
		if i >= len(classes) {
			break
		}
		c := classes[i]
		sb.WriteString(fmt.Sprintf("%s\n", f.Filename))
		marker := ""
		if !c.Decisive {
			marker = " (default)"
		}
		sb.WriteString(fmt.Sprintf("  %s  %.0f%%  %s%s\n", c.Kind, c.Confidence*100, c.Reason, marker))
		if i < len(files)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("CLASSIFICATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCertificate outputs the extracted certificate fields.
func (p *Printer) PrintCertificate(filename string, meta *types.AnalysisMetadata) {
	cert := meta.Certificate()
	if cert == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File:       %s\n", filename))
	sb.WriteString(fmt.Sprintf("Type:       %s\n", cert.CertificateType))
	if cert.Score != "" {
		sb.WriteString(fmt.Sprintf("Score:      %s\n", cert.Score))
	}
	if cert.CandidateName != "" {
		sb.WriteString(fmt.Sprintf("Name:       %s\n", cert.CandidateName))
	}
	if cert.IssueDate != "" {
		sb.WriteString(fmt.Sprintf("Issued:     %s\n", cert.IssueDate))
	}
	if cert.ExpiryDate != "" {
		sb.WriteString(fmt.Sprintf("Expires:    %s\n", cert.ExpiryDate))
	}
	sb.WriteString(fmt.Sprintf("Confidence: %s (%d)\n", cert.Confidence, cert.ConfidenceScore))
	if meta.Type == types.AnalysisImageCertificate {
		ocr := "failed"
		if cert.OCRSuccess {
			ocr = fmt.Sprintf("%.0f%%", cert.OCRConfidence)
		}
		sb.WriteString(fmt.Sprintf("OCR:        %s\n", ocr))
	}
	if cert.Basic {
		sb.WriteString("\n⚠ filename-only analysis\n")
	}

	p.printBox("CERTIFICATE ANALYSIS", strings.TrimSuffix(sb.String(), "\n"))
}

func score(v *float64, scale float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v*scale)
}

// PrintScreeningResult outputs scores, tier, summary and stage errors.
func (p *Printer) PrintScreeningResult(r *types.ScreeningResult) {
	if r == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Application: %s\n", r.ApplicationID))
	sb.WriteString(fmt.Sprintf("Status:      %s\n", r.Status))
	if r.ErrorMessage != nil {
		sb.WriteString(fmt.Sprintf("Error:       %s\n", *r.ErrorMessage))
	}
	if r.Status == types.ScreeningCompleted {
		sb.WriteString(fmt.Sprintf("Overall:     %s  %s\n", score(r.OverallScore, 1), r.FitTier))
		sb.WriteString(fmt.Sprintf("Skills:      %s\n", score(r.SkillsScore, 100)))
		sb.WriteString(fmt.Sprintf("Experience:  %s\n", score(r.ExperienceScore, 100)))
		sb.WriteString(fmt.Sprintf("Education:   %s\n", score(r.EducationScore, 100)))
		sb.WriteString(fmt.Sprintf("Semantic:    %s\n", score(r.VectorSimilarity, 100)))
	}
	sb.WriteString("\n")

	writeList(&sb, "Highlights", r.KeyHighlights, maxItemsToShow)
	writeList(&sb, "Concerns", r.Concerns, maxItemsToShow)
	if len(r.StageErrors) > 0 {
		sb.WriteString("Degraded stages:\n")
		for _, stage := range slices.Sorted(maps.Keys(r.StageErrors)) {
			sb.WriteString(fmt.Sprintf("  ⚠ %s: %s\n", stage, r.StageErrors[stage]))
		}
	}

	p.printBox("SCREENING RESULT", strings.TrimRight(sb.String(), "\n"))
}
