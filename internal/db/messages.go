package db

import (
	"context"
	"fmt"
	"time"
)

// MarkMessageProcessed records an inbound message id. It returns false when
// the id was already recorded.
func (db *DB) MarkMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`INSERT INTO processed_messages (message_id) VALUES ($1) ON CONFLICT (message_id) DO NOTHING`,
		messageID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record processed message: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ForgetMessage removes a message id so a failed delivery can be replayed
func (db *DB) ForgetMessage(ctx context.Context, messageID string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM processed_messages WHERE message_id = $1`, messageID); err != nil {
		return fmt.Errorf("failed to forget processed message: %w", err)
	}
	return nil
}

// PurgeProcessedMessages drops ledger entries older than olderThan
func (db *DB) PurgeProcessedMessages(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := db.pool.Exec(ctx, `DELETE FROM processed_messages WHERE processed_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed messages: %w", err)
	}
	return result.RowsAffected(), nil
}
