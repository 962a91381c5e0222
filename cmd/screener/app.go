package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/certificate"
	"github.com/jonathan/resume-screener/internal/classify"
	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/document"
	"github.com/jonathan/resume-screener/internal/embedding"
	"github.com/jonathan/resume-screener/internal/ingestion"
	"github.com/jonathan/resume-screener/internal/llm"
	"github.com/jonathan/resume-screener/internal/notify"
	"github.com/jonathan/resume-screener/internal/ocr"
	"github.com/jonathan/resume-screener/internal/preprocess"
	"github.com/jonathan/resume-screener/internal/queue"
	"github.com/jonathan/resume-screener/internal/ranking"
	"github.com/jonathan/resume-screener/internal/retry"
	"github.com/jonathan/resume-screener/internal/screening"
	"github.com/jonathan/resume-screener/internal/storage"
	"github.com/jonathan/resume-screener/internal/textextract"
)

// analysis is the document stack shared by ingestion, screening and the
// offline commands. It needs no database.
type analysis struct {
	text         *textextract.Extractor
	classifier   *classify.Classifier
	certificates *certificate.Service
	reader       *document.Reader
}

func newAnalysis(cfg *config.Config, logger *zap.Logger) (*analysis, error) {
	// UniDoc reads its metered key from the environment
	if err := textextract.SetLicenseKey(os.Getenv("UNIDOC_LICENSE_API_KEY")); err != nil {
		return nil, err
	}

	text := textextract.New(logger)
	pool := ocr.NewPool(cfg.OCR.PoolSize)
	pre := preprocess.New(preprocess.Options{
		MinWidth:          cfg.Preprocess.MinWidth,
		MaxWidth:          cfg.Preprocess.MaxWidth,
		Contrast:          cfg.Preprocess.Contrast,
		Gamma:             cfg.Preprocess.Gamma,
		BlurSigma:         cfg.Preprocess.BlurSigma,
		SharpenSigma:      cfg.Preprocess.SharpenSigma,
		FallbackThreshold: cfg.Preprocess.FallbackThreshold,
	}, logger)
	recognizer := ocr.NewAdapter(ocr.NewTesseractEngine(), ocr.Options{
		Languages:        cfg.OCR.Languages,
		FallbackLanguage: cfg.OCR.FallbackLanguage,
		MinTextLength:    cfg.OCR.MinTextLength,
		Timeout:          cfg.OCR.Timeout,
		PoolSize:         cfg.OCR.PoolSize,
	}, pool, logger)

	return &analysis{
		text:         text,
		classifier:   classify.New(text, logger),
		certificates: certificate.NewService(pre, recognizer, text, pool, logger),
		reader:       document.NewReader(text, pre, recognizer, pool, logger),
	}, nil
}

// app holds every long-lived component of serve and worker
type app struct {
	cfg          *config.Config
	db           *db.DB
	blobs        *storage.Local
	broker       queue.Broker
	orchestrator *screening.Orchestrator
	ingestion    *ingestion.Service
	closers      []func() error
	logger       *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	a.db, err = db.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.db.Close(); return nil })

	a.blobs, err = storage.NewLocal(cfg.Storage.Root)
	if err != nil {
		return nil, err
	}

	docs, err := newAnalysis(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.broker, err = queue.NewBroker(cfg.Queue, cfg.RabbitMQ, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.broker.Close)

	pipeline, err := a.newPipeline(ctx, docs)
	if err != nil {
		return nil, err
	}
	a.orchestrator = screening.NewOrchestrator(a.db, a.db, a.db, queue.New(a.broker), pipeline,
		2*cfg.Queue.JobTimeout, logger)

	var downloader ingestion.Downloader
	if cfg.Webhook.DownloadURL != "" {
		downloader = ingestion.NewHTTPDownloader(cfg.Webhook.DownloadURL, cfg.Webhook.DownloadTimeout,
			cfg.Webhook.MaxAttachment, retry.DefaultPolicy, logger)
	} else {
		logger.Warn("webhook.download_url not set, email attachments will be dropped")
	}

	a.ingestion = ingestion.NewService(ingestion.Deps{
		Files:        a.db,
		Registry:     a.db,
		Messages:     a.db,
		Blobs:        a.blobs,
		Classifier:   docs.classifier,
		Certificates: docs.certificates,
		Reader:       docs.reader,
		Downloader:   downloader,
		Trigger:      a.orchestrator,
		Notifier:     notify.New(cfg.SMTP, logger),
	}, ingestion.Options{
		Domain:          cfg.Webhook.Domain,
		MaxAttachment:   cfg.Webhook.MaxAttachment,
		AnalysisWorkers: cfg.Analysis.Workers,
		AnalysisBacklog: cfg.Analysis.Backlog,
		SweepInterval:   cfg.Analysis.SweepInterval,
	}, logger)

	ok = true
	return a, nil
}

// newPipeline builds the screening runner. Embeddings and the LLM summary
// are optional and degrade when their keys are missing.
func (a *app) newPipeline(ctx context.Context, docs *analysis) (*screening.Pipeline, error) {
	cfg := a.cfg
	deps := screening.PipelineDeps{
		Registry:  a.db,
		Documents: a.db,
		Blobs:     a.blobs,
		Reader:    docs.reader,
		Scorer: ranking.NewScorer(
			ranking.Weights{
				Vector:     cfg.Scoring.VectorWeight,
				Skills:     cfg.Scoring.SkillsWeight,
				Experience: cfg.Scoring.ExperienceWeight,
				Education:  cfg.Scoring.EducationWeight,
			},
			ranking.Thresholds{
				Strong:   cfg.Scoring.StrongFit,
				Good:     cfg.Scoring.GoodFit,
				Moderate: cfg.Scoring.ModerateFit,
			}),
		LLMTier:           llm.ModelTier(cfg.LLM.Tier),
		SpecificityWeight: cfg.Scoring.SpecificityWeight,
		OnProgress: func(e screening.ProgressEvent) {
			a.logger.Debug("screening progress",
				zap.String("application_id", e.ApplicationID.String()),
				zap.String("stage", e.Stage),
				zap.String("message", e.Message))
		},
	}

	if cfg.Embedding.APIKey != "" {
		provider, err := embedding.NewProvider(ctx, cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding provider: %w", err)
		}
		a.closers = append(a.closers, provider.Close)
		deps.Embedder = embedding.NewEngine(provider, embedding.OptionsFromConfig(cfg.Embedding, retry.DefaultPolicy), a.logger)
		deps.Embeddings = a.db
	} else {
		a.logger.Warn("embedding.api_key not set, vector similarity disabled")
	}

	if cfg.LLM.Enabled {
		client, err := llm.NewClient(ctx, llm.ConfigFor(llm.Provider(cfg.LLM.Provider)), cfg.LLM.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		deps.LLM = client
	}

	return screening.NewPipeline(deps, a.logger), nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// runPool consumes screening jobs until ctx is done
func (a *app) runPool(ctx context.Context) error {
	pool := queue.NewPool(a.broker, queue.ProcessWith(a.orchestrator), queue.PoolOptionsFromConfig(a.cfg.Queue), a.logger)
	if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker pool failed: %w", err)
	}
	return nil
}

// runAnalysis analyzes stored attachments until ctx is done
func (a *app) runAnalysis(ctx context.Context) error {
	if err := a.ingestion.RunAnalysis(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("analysis workers failed: %w", err)
	}
	return nil
}

// purgeInterval is how often serve runs retention
const purgeInterval = time.Hour
