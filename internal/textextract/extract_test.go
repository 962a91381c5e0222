package textextract

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText_NormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "Line with multiple spaces", CleanText("Line    with \t multiple    spaces"))
}

func TestCleanText_RemoveExcessiveBlankLines(t *testing.T) {
	result := CleanText("Line 1\n\n\n\n\nLine 2")
	assert.Equal(t, "Line 1\n\nLine 2", result)
}

func TestCleanText_NormalizeLineEndings(t *testing.T) {
	result := CleanText("Line 1\r\nLine 2\rLine 3\nLine 4")
	assert.Equal(t, "Line 1\nLine 2\nLine 3\nLine 4", result)
}

func TestCleanText_NormalizesBullets(t *testing.T) {
	result := CleanText("• Go\n▪ Docker\n- Kubernetes")
	assert.Equal(t, "- Go\n- Docker\n- Kubernetes", result)
}

func TestCleanText_StripsControlCharacters(t *testing.T) {
	assert.Equal(t, "Nguyễn Văn An", CleanText("Nguyễn\x00 Văn\x07 An"))
}

func TestCleanText_Empty(t *testing.T) {
	assert.Equal(t, "", CleanText(""))
	assert.Equal(t, "", CleanText("  \n\n\t "))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		mime     string
		filename string
		want     Format
	}{
		{"application/pdf", "cv.bin", FormatPDF},
		{"application/octet-stream", "CV_Nguyen.PDF", FormatPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "cv", FormatDocx},
		{"", "resume.docx", FormatDocx},
		{"text/html; charset=utf-8", "", FormatHTML},
		{"text/plain", "notes", FormatText},
		{"image/jpeg", "toeic_certificate.jpg", FormatImage},
		{"", "scan.tiff", FormatImage},
		{"application/zip", "archive.zip", ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename+"_"+tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.mime, tt.filename))
		})
	}
	assert.True(t, IsImage("image/png", "x.png"))
	assert.True(t, IsPDF("", "x.pdf"))
}

func TestExtract_PlainText(t *testing.T) {
	e := New(nil)
	res, err := e.Extract(context.Background(), []byte("John Doe\r\n\r\n\r\nSoftware   Engineer"), "text/plain", "cv.txt")
	require.NoError(t, err)
	assert.Equal(t, FormatText, res.Format)
	assert.Equal(t, "John Doe\n\nSoftware Engineer", res.Text)
}

func TestExtract_HTML(t *testing.T) {
	page := `<html><head><title>x</title><style>p{}</style></head><body>
<h1>Jane Smith</h1><p>Backend engineer</p><ul><li>Go</li><li>PostgreSQL</li></ul>
<script>alert(1)</script></body></html>`
	res, err := New(nil).Extract(context.Background(), []byte(page), "text/html", "cv.html")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Jane Smith")
	assert.Contains(t, res.Text, "- Go")
	assert.Contains(t, res.Text, "- PostgreSQL")
	assert.NotContains(t, res.Text, "alert")
}

func TestExtract_Docx(t *testing.T) {
	data := buildDocx(t, `<w:document><w:body>`+
		`<w:p><w:r><w:t>Nguyen Van An</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Skills:</w:t></w:r><w:r><w:tab/><w:t>Go &amp; Docker</w:t></w:r></w:p>`+
		`</w:body></w:document>`)

	res, err := New(nil).Extract(context.Background(), data, "", "cv.docx")
	require.NoError(t, err)
	assert.Equal(t, FormatDocx, res.Format)
	assert.Contains(t, res.Text, "Nguyen Van An")
	assert.Contains(t, res.Text, "Skills: Go & Docker")
}

func TestExtract_Errors(t *testing.T) {
	e := New(nil)

	_, err := e.Extract(context.Background(), nil, "application/pdf", "empty.pdf")
	assert.ErrorIs(t, err, ErrNoText)

	_, err = e.Extract(context.Background(), []byte("PK..."), "application/zip", "a.zip")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = e.Extract(context.Background(), []byte("not a pdf at all"), "application/pdf", "broken.pdf")
	assert.Error(t, err)

	_, err = e.Extract(context.Background(), []byte("   \n "), "text/plain", "blank.txt")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Extract(ctx, []byte("x"), "text/plain", "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0"?><Types/>`,
		"word/document.xml":            `<?xml version="1.0" encoding="UTF-8"?>` + documentXML,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships></Relationships>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
