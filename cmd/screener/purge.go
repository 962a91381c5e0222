package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/storage"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired files and webhook ledger entries",
	Long: "Hard-delete stored files that were soft-deleted longer ago than storage.retention_days, " +
		"remove their blobs, and drop processed webhook message ids of the same age.",
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

// retentionStore is the part of the database retention needs
type retentionStore interface {
	PurgeDeletedFiles(ctx context.Context, olderThan time.Time) ([]string, error)
	PurgeProcessedMessages(ctx context.Context, olderThan time.Time) (int64, error)
}

// blobDeleter removes stored file bytes
type blobDeleter interface {
	Delete(ctx context.Context, rel string) error
}

type purgeStats struct {
	Files    int
	Blobs    int
	Messages int64
}

// purgeExpired removes rows older than window, then their blobs. A blob
// that cannot be removed is logged; its row is already gone.
func purgeExpired(ctx context.Context, store retentionStore, blobs blobDeleter, window time.Duration, now time.Time, logger *zap.Logger) (purgeStats, error) {
	cutoff := now.Add(-window)
	var stats purgeStats

	paths, err := store.PurgeDeletedFiles(ctx, cutoff)
	if err != nil {
		return stats, err
	}
	stats.Files = len(paths)
	for _, p := range paths {
		if err := blobs.Delete(ctx, p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to delete blob", zap.String("path", p), zap.Error(err))
			continue
		}
		stats.Blobs++
	}

	stats.Messages, err = store.PurgeProcessedMessages(ctx, cutoff)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// purgeLoop runs purgeExpired every interval until ctx is done
func purgeLoop(ctx context.Context, store retentionStore, blobs blobDeleter, window, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			stats, err := purgeExpired(ctx, store, blobs, window, now, logger)
			if err != nil {
				logger.Error("retention purge failed", zap.Error(err))
				continue
			}
			logger.Info("retention purge done",
				zap.Int("files", stats.Files),
				zap.Int64("messages", stats.Messages))
		}
	}
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	database, err := db.Connect(cmd.Context(), cfg.Database.URL, cfg.Database.MaxConns, logger)
	if err != nil {
		return err
	}
	defer database.Close()
	blobs, err := storage.NewLocal(cfg.Storage.Root)
	if err != nil {
		return err
	}

	stats, err := purgeExpired(cmd.Context(), database, blobs, cfg.RetentionWindow(), time.Now(), logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d files (%d blobs removed) and %d processed messages\n",
		stats.Files, stats.Blobs, stats.Messages)
	return nil
}
