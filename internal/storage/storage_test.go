package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-screener/internal/types"
)

func newTestStorage(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(0, 1700000000123456789) }
	return s
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CV Nguyễn Văn An.pdf", "cv_nguyen_van_an.pdf"},
		{"Chứng chỉ TOEIC (2023).JPG", "chung_chi_toeic_2023.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\an\Đơn xin việc.docx`, "don_xin_viec.docx"},
		{"???.pdf", "file.pdf"},
		{"", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}

	long := SanitizeName(strings.Repeat("a", 300) + ".pdf")
	assert.Equal(t, maxNameLength+len(".pdf"), len(long))
}

func TestPathFor_Layout(t *testing.T) {
	s := newTestStorage(t)
	assert.Equal(t, "resume/1700000000123456789_cv.pdf", s.PathFor(types.KindResume, "CV.pdf"))
	assert.Equal(t, "certificates/1700000000123456789_toeic.png", s.PathFor(types.KindCertificate, "toeic.png"))
	assert.Equal(t, "documents/1700000000123456789_notes.txt", s.PathFor(types.KindGeneral, "notes.txt"))
}

func TestSaveReadDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rel, err := s.Save(ctx, types.KindResume, "Hồ sơ.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "resume/1700000000123456789_ho_so.pdf", rel)

	data, err := s.Read(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, s.Delete(ctx, rel))
	require.NoError(t, s.Delete(ctx, rel), "deleting twice is fine")

	_, err = s.Read(ctx, rel)
	assert.Error(t, err, "deleted files cannot be read")

	entries, err := os.ReadDir(filepath.Join(s.root, "resume"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestResolve_RejectsEscapes(t *testing.T) {
	s := newTestStorage(t)
	for _, rel := range []string{"", "..", "../x", "resume/../../x", "/etc/passwd"} {
		_, err := s.Read(context.Background(), rel)
		assert.ErrorIs(t, err, ErrInvalidPath, rel)
	}
}

func TestSave_CancelledContext(t *testing.T) {
	s := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Save(ctx, types.KindResume, "cv.pdf", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
