package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-screener/internal/server"
)

var (
	serveAddr   string
	serveWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that receives the inbound-email webhook and uploads and
exposes screening control. Stored attachments are analyzed by background
workers in the same process. With --worker (implied by the memory queue backend)
the screening worker pool runs in the same process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWorker, "worker", false, "Also run the screening worker pool")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Webhook.Secret == "" {
		logger.Warn("webhook.secret not set, the inbound-email webhook accepts unauthenticated requests")
	}
	srv := server.New(cfg.Server, cfg.Webhook.Secret, server.Deps{
		Screenings: a.orchestrator,
		Ingestor:   a.ingestion,
		Health:     a.db,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return a.runAnalysis(gctx) })
	g.Go(func() error {
		purgeLoop(gctx, a.db, a.blobs, cfg.RetentionWindow(), purgeInterval, logger)
		return nil
	})
	// the memory broker only reaches consumers in this process
	if serveWorker || cfg.Queue.Backend == "memory" {
		g.Go(func() error { return a.runPool(gctx) })
	}

	logger.Info("screener started", zap.String("addr", cfg.Server.Addr), zap.String("queue", cfg.Queue.Backend))
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// withSignals returns a context cancelled on SIGINT or SIGTERM
func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
