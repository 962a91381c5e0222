package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-screener/internal/types"
)

const storedFileColumns = `id, original_name, file_url, mime_type, size, kind, status,
	reference_id, application_id, content_hash, analysis_metadata, created_at, updated_at`

func (db *DB) scanStoredFile(row pgx.Row) (*types.StoredFile, error) {
	var f types.StoredFile
	var metaJSON []byte
	if err := row.Scan(&f.ID, &f.OriginalName, &f.FileURL, &f.MIMEType, &f.Size, &f.Kind, &f.Status,
		&f.ReferenceID, &f.ApplicationID, &f.ContentHash, &metaJSON, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	var meta types.AnalysisMetadata
	if db.decodeJSON("analysis_metadata", f.ID, metaJSON, &meta) {
		f.AnalysisMetadata = &meta
	}
	return &f, nil
}

func marshalMetadata(m *types.AnalysisMetadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// CreateStoredFile inserts a file record and fills in its ID and timestamps
func (db *DB) CreateStoredFile(ctx context.Context, f *types.StoredFile) error {
	metaJSON, err := marshalMetadata(f.AnalysisMetadata)
	if err != nil {
		return fmt.Errorf("invalid analysis metadata: %w", err)
	}
	if f.Status == "" {
		f.Status = types.FileStatusActive
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO stored_files (id, original_name, file_url, mime_type, size, kind, status,
		                           reference_id, application_id, content_hash, analysis_metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		f.ID, f.OriginalName, f.FileURL, f.MIMEType, f.Size, f.Kind, f.Status,
		f.ReferenceID, f.ApplicationID, f.ContentHash, metaJSON,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create stored file: %w", err)
	}
	return nil
}

// GetStoredFile retrieves a file record by ID
func (db *DB) GetStoredFile(ctx context.Context, id uuid.UUID) (*types.StoredFile, error) {
	f, err := db.scanStoredFile(db.pool.QueryRow(ctx,
		`SELECT `+storedFileColumns+` FROM stored_files WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stored file: %w", err)
	}
	return f, nil
}

// FindFileByHash returns the live file of an application with the given
// content hash, or nil
func (db *DB) FindFileByHash(ctx context.Context, applicationID uuid.UUID, contentHash string) (*types.StoredFile, error) {
	f, err := db.scanStoredFile(db.pool.QueryRow(ctx,
		`SELECT `+storedFileColumns+` FROM stored_files
		 WHERE application_id = $1 AND content_hash = $2 AND status <> 'deleted'`,
		applicationID, contentHash))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find stored file by hash: %w", err)
	}
	return f, nil
}

// ListApplicationFiles returns the active files of an application, newest
// first. An empty kind lists every kind.
func (db *DB) ListApplicationFiles(ctx context.Context, applicationID uuid.UUID, kind types.FileKind) ([]types.StoredFile, error) {
	query := `SELECT ` + storedFileColumns + ` FROM stored_files
		WHERE application_id = $1 AND status = 'active'`
	args := []any{applicationID}
	if kind != "" {
		query += " AND kind = $2"
		args = append(args, kind)
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list application files: %w", err)
	}
	defer rows.Close()

	var files []types.StoredFile
	for rows.Next() {
		f, err := db.scanStoredFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stored file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// ListPendingAnalysis returns up to limit active files whose analysis has
// not run yet, oldest first
func (db *DB) ListPendingAnalysis(ctx context.Context, limit int) ([]types.StoredFile, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+storedFileColumns+` FROM stored_files
		 WHERE status = 'active' AND analysis_metadata->>'type' = $1
		 ORDER BY created_at LIMIT $2`,
		types.AnalysisPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list files pending analysis: %w", err)
	}
	defer rows.Close()

	var files []types.StoredFile
	for rows.Next() {
		f, err := db.scanStoredFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stored file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// HasClassifiedResume reports whether the application has an active résumé
// file whose classification completed
func (db *DB) HasClassifiedResume(ctx context.Context, applicationID uuid.UUID) (bool, error) {
	var ok bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM stored_files
		   WHERE application_id = $1 AND kind = 'resume' AND status = 'active'
		     AND analysis_metadata IS NOT NULL)`,
		applicationID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check for résumé: %w", err)
	}
	return ok, nil
}

// UpdateFileAnalysis records the classification outcome of a file
func (db *DB) UpdateFileAnalysis(ctx context.Context, id uuid.UUID, kind types.FileKind, meta *types.AnalysisMetadata) error {
	metaJSON, err := marshalMetadata(meta)
	if err != nil {
		return fmt.Errorf("invalid analysis metadata: %w", err)
	}
	result, err := db.pool.Exec(ctx,
		`UPDATE stored_files SET kind = $2, analysis_metadata = $3, updated_at = NOW() WHERE id = $1`,
		id, kind, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update file analysis: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("stored file not found: %s", id)
	}
	return nil
}

// SetFileStatus archives, soft-deletes or restores a file
func (db *DB) SetFileStatus(ctx context.Context, id uuid.UUID, status types.FileStatus) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE stored_files SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set file status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("stored file not found: %s", id)
	}
	return nil
}

// PurgeDeletedFiles hard-deletes files soft-deleted before olderThan and
// returns their storage paths so the blobs can be removed
func (db *DB) PurgeDeletedFiles(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`DELETE FROM stored_files WHERE status = 'deleted' AND updated_at < $1 RETURNING file_url`,
		olderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to purge deleted files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan purged file: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
