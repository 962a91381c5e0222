package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the screening worker pool",
	Long:  "Consume screening jobs from the queue and run the screening pipeline with bounded concurrency.",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Queue.Backend == "memory" {
		logger.Warn("memory queue backend has no producers outside this process; use serve --worker instead")
	}

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("worker started", zap.Int("workers", cfg.Queue.Workers))
	return a.runPool(ctx)
}
