package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-screener/internal/types"
)

// needsAnalysis reports whether a file of kind gets analysis metadata
func (s *Service) needsAnalysis(kind types.FileKind) bool {
	switch kind {
	case types.KindResume:
		return true
	case types.KindCertificate:
		return s.deps.Certificates != nil
	default:
		return false
	}
}

// schedule hands a stored file to the analysis workers without blocking.
// When the backlog is full the file stays pending until the next sweep.
func (s *Service) schedule(f types.StoredFile) {
	s.mu.Lock()
	if s.scheduled[f.ID] {
		s.mu.Unlock()
		return
	}
	s.scheduled[f.ID] = true
	s.mu.Unlock()

	select {
	case s.pending <- f:
	default:
		s.unschedule(f.ID)
		s.logger.Warn("analysis backlog full, file left pending", zap.String("file_id", f.ID.String()))
	}
}

func (s *Service) unschedule(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, id)
}

// RunAnalysis analyzes stored files on a fixed number of workers until ctx
// is done. Files left pending by an earlier run, or dropped from a full
// backlog, are swept at start and then every SweepInterval.
func (s *Service) RunAnalysis(ctx context.Context) error {
	s.logger.Info("analysis workers started",
		zap.Int("workers", s.opts.AnalysisWorkers),
		zap.Int("backlog", cap(s.pending)))

	g, gctx := errgroup.WithContext(ctx)
	for range s.opts.AnalysisWorkers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case f := <-s.pending:
					s.analyzeStored(gctx, f)
					s.unschedule(f.ID)
				}
			}
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(s.opts.SweepInterval)
		defer ticker.Stop()
		for {
			s.sweep(gctx)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	_ = g.Wait()

	s.logger.Info("analysis workers stopped")
	return ctx.Err()
}

// sweep schedules files still marked pending in the store
func (s *Service) sweep(ctx context.Context) {
	files, err := s.deps.Files.ListPendingAnalysis(ctx, cap(s.pending))
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("failed to list files pending analysis", zap.Error(err))
		}
		return
	}
	for _, f := range files {
		s.schedule(f)
	}
	if len(files) > 0 {
		s.logger.Info("pending files scheduled for analysis", zap.Int("count", len(files)))
	}
}

// analyzeStored reads a stored file back and records its analysis. Any
// failure leaves the file pending for a later sweep.
func (s *Service) analyzeStored(ctx context.Context, f types.StoredFile) {
	log := s.logger.With(zap.String("file_id", f.ID.String()), zap.String("kind", string(f.Kind)))
	if !f.AnalysisMetadata.Pending() {
		return
	}

	data, err := s.deps.Blobs.Read(ctx, f.FileURL)
	if err != nil {
		log.Warn("failed to read stored file for analysis", zap.String("file_url", f.FileURL), zap.Error(err))
		return
	}

	start := time.Now()
	att := types.Attachment{Data: data, Filename: f.OriginalName, MIMEType: f.MIMEType, Size: f.Size}
	meta := s.analyze(ctx, att, f.AnalysisMetadata.Classification)
	if ctx.Err() != nil {
		return
	}
	if meta == nil {
		log.Warn("analysis produced no metadata")
	}

	if err := s.deps.Files.UpdateFileAnalysis(context.WithoutCancel(ctx), f.ID, f.Kind, meta); err != nil {
		log.Error("failed to record file analysis", zap.Error(err))
		return
	}
	log.Info("file analyzed", zap.Duration("elapsed", time.Since(start)))
}
