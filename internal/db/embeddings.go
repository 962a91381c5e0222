package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/jonathan/resume-screener/internal/types"
)

// UpsertEmbedding stores the single row for (application, embedding type)
// and replaces its chunks in one transaction
func (db *DB) UpsertEmbedding(ctx context.Context, e *types.CvEmbedding) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("embedding %s for %s has no vector", e.EmbeddingType, e.ApplicationID)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO cv_embeddings (id, application_id, embedding_type, model, content_hash, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (application_id, embedding_type) DO UPDATE SET
		   model = EXCLUDED.model, content_hash = EXCLUDED.content_hash,
		   embedding = EXCLUDED.embedding, updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		e.ID, e.ApplicationID, e.EmbeddingType, e.Model, e.ContentHash, pgvector.NewVector(e.Vector),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cv_embedding_chunks WHERE embedding_id = $1`, e.ID); err != nil {
		return fmt.Errorf("failed to clear embedding chunks: %w", err)
	}

	if len(e.Chunks) > 0 {
		batch := &pgx.Batch{}
		for _, c := range e.Chunks {
			var vec *pgvector.Vector
			if len(c.Vector) > 0 {
				v := pgvector.NewVector(c.Vector)
				vec = &v
			}
			batch.Queue(
				`INSERT INTO cv_embedding_chunks (embedding_id, chunk_index, start_offset, end_offset, content, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				e.ID, c.Index, c.Start, c.End, c.Content, vec,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert embedding chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit embedding: %w", err)
	}
	return nil
}

// GetEmbedding retrieves an embedding with its chunks in order, or nil
func (db *DB) GetEmbedding(ctx context.Context, applicationID uuid.UUID, typ types.EmbeddingType) (*types.CvEmbedding, error) {
	var e types.CvEmbedding
	var vec pgvector.Vector
	err := db.pool.QueryRow(ctx,
		`SELECT id, application_id, embedding_type, model, content_hash, embedding, created_at, updated_at
		 FROM cv_embeddings WHERE application_id = $1 AND embedding_type = $2`,
		applicationID, typ,
	).Scan(&e.ID, &e.ApplicationID, &e.EmbeddingType, &e.Model, &e.ContentHash, &vec, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	e.Vector = vec.Slice()

	rows, err := db.pool.Query(ctx,
		`SELECT chunk_index, start_offset, end_offset, content, embedding
		 FROM cv_embedding_chunks WHERE embedding_id = $1 ORDER BY chunk_index`,
		e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c types.CvEmbeddingChunk
		var cvec *pgvector.Vector
		if err := rows.Scan(&c.Index, &c.Start, &c.End, &c.Content, &cvec); err != nil {
			return nil, fmt.Errorf("failed to scan embedding chunk: %w", err)
		}
		if cvec != nil {
			c.Vector = cvec.Slice()
		}
		e.Chunks = append(e.Chunks, c)
	}
	return &e, rows.Err()
}
