// Package textextract pulls machine-readable text out of native PDF, Word
// (.docx), HTML and plain-text documents. Scanned documents have no text
// layer and go through OCR instead.
package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/nguyenthenguyen/docx"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/logging"
)

// Format is the document family a file was extracted as.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatDocx  Format = "docx"
	FormatHTML  Format = "html"
	FormatText  Format = "text"
	FormatImage Format = "image"
)

var (
	// ErrUnsupportedFormat is returned for MIME types with no text extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNoText is returned when a document parsed but has no text layer.
	ErrNoText = errors.New("document contains no extractable text")
)

// Result is the outcome of one extraction.
type Result struct {
	Text   string
	Format Format
	Pages  int
}

// Extractor dispatches on MIME type and file extension.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logging.OrNop(logger)}
}

// SetLicenseKey registers a UniDoc metered key. Call once at startup.
func SetLicenseKey(key string) error {
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("failed to set unidoc license: %w", err)
	}
	return nil
}

// DetectFormat maps a MIME type, falling back to the filename extension.
func DetectFormat(mimeType, filename string) Format {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch {
	case mt == "application/pdf":
		return FormatPDF
	case mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDocx
	case mt == "text/html" || mt == "application/xhtml+xml":
		return FormatHTML
	case mt == "text/plain":
		return FormatText
	case strings.HasPrefix(mt, "image/"):
		return FormatImage
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDocx
	case ".html", ".htm":
		return FormatHTML
	case ".txt", ".text":
		return FormatText
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return FormatImage
	}
	return ""
}

// IsImage reports whether the attachment should go through OCR.
func IsImage(mimeType, filename string) bool {
	return DetectFormat(mimeType, filename) == FormatImage
}

// IsPDF reports whether the attachment is a PDF.
func IsPDF(mimeType, filename string) bool {
	return DetectFormat(mimeType, filename) == FormatPDF
}

// Extract returns cleaned text for data.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType, filename string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%s: %w", filename, ErrNoText)
	}

	format := DetectFormat(mimeType, filename)
	var (
		text  string
		pages int
		err   error
	)
	switch format {
	case FormatPDF:
		text, pages, err = ExtractPDF(data)
	case FormatDocx:
		text, err = ExtractDocx(data)
	case FormatHTML:
		text, err = ExtractHTML(data)
	case FormatText:
		text, err = extractPlain(data)
	default:
		return Result{}, fmt.Errorf("%s (%s): %w", filename, mimeType, ErrUnsupportedFormat)
	}
	if err != nil {
		return Result{}, err
	}

	text = CleanText(text)
	if text == "" {
		return Result{}, fmt.Errorf("%s: %w", filename, ErrNoText)
	}
	e.logger.Debug("text extracted",
		zap.String("filename", filename),
		zap.String("format", string(format)),
		zap.Int("pages", pages),
		zap.Int("chars", utf8.RuneCountInString(text)))
	return Result{Text: text, Format: format, Pages: pages}, nil
}

// ExtractPDF reads the text layer of every page. Pages that fail are
// skipped; an error is returned only when no page yields text.
func ExtractPDF(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	if encrypted, _ := reader.IsEncrypted(); encrypted {
		if ok, derr := reader.Decrypt([]byte("")); derr != nil || !ok {
			return "", 0, fmt.Errorf("failed to read PDF: encrypted document")
		}
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if numPages == 0 {
		return "", 0, fmt.Errorf("PDF has no pages: %w", ErrNoText)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		pageText, err := ex.ExtractText()
		if err != nil || strings.TrimSpace(pageText) == "" {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", numPages, fmt.Errorf("no text in any of %d pages: %w", numPages, ErrNoText)
	}
	return sb.String(), numPages, nil
}

var (
	docxParagraph = regexp.MustCompile(`</w:p>|<w:br/>|<w:cr/>`)
	docxTab       = regexp.MustCompile(`<w:tab/>`)
	xmlTag        = regexp.MustCompile(`<[^>]+>`)
)

// ExtractDocx returns the body text of a Word document.
func ExtractDocx(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = docxParagraph.ReplaceAllString(content, "\n")
	content = docxTab.ReplaceAllString(content, "\t")
	content = xmlTag.ReplaceAllString(content, "")
	return html.UnescapeString(content), nil
}

// ExtractHTML returns the visible text of an HTML document with block
// elements on their own lines.
func ExtractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})
	return doc.Text(), nil
}

func extractPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), ""), nil
	}
	return string(data), nil
}
