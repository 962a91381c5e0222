// Package storage keeps uploaded files on the local filesystem under
// <kind-dir>/<unix-nanos>_<sanitized-name>.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

const maxNameLength = 120

var (
	// ErrInvalidPath is returned for paths that escape the storage root
	ErrInvalidPath = errors.New("invalid storage path")

	unsafeChars = regexp.MustCompile(`[^a-z0-9._-]+`)
)

// Local implements file storage on the local filesystem
type Local struct {
	root string
	now  func() time.Time
}

// NewLocal creates the storage root if needed
func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{root: root, now: time.Now}, nil
}

// SanitizeName folds diacritics, lowercases and replaces anything outside
// [a-z0-9._-] with underscores, keeping the extension
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		name = ""
	}
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	stem = unsafeChars.ReplaceAllString(textextract.Fold(stem), "_")
	stem = strings.Trim(stem, "._-")
	ext = unsafeChars.ReplaceAllString(ext, "")

	if stem == "" {
		stem = "file"
	}
	if r := []rune(stem); len(r) > maxNameLength {
		stem = string(r[:maxNameLength])
	}
	return stem + ext
}

// PathFor returns the relative path a new file of kind would be stored at
func (s *Local) PathFor(kind types.FileKind, name string) string {
	return kind.Directory() + "/" + strconv.FormatInt(s.now().UnixNano(), 10) + "_" + SanitizeName(name)
}

// Save writes data under the kind directory and returns its relative path
func (s *Local) Save(ctx context.Context, kind types.FileKind, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := s.PathFor(kind, name)
	full, err := s.resolve(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a sibling temp file so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return rel, nil
}

// Read returns the content stored at rel
func (s *Local) Read(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete removes the file at rel. Missing files are not an error.
func (s *Local) Delete(_ context.Context, rel string) error {
	full, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *Local) resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return filepath.Join(s.root, clean), nil
}
