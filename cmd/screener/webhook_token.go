package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/server"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var webhookTokenCmd = &cobra.Command{
	Use:   "webhook-token",
	Short: "Issue a bearer token for the mail provider",
	Long:  "Sign an HS256 token with webhook.secret for the provider to send on the inbound-email webhook.",
	RunE:  runWebhookToken,
}

func init() {
	webhookTokenCmd.Flags().StringVar(&tokenSubject, "subject", "mail-provider", "Token subject")
	webhookTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime; 0 issues a token that never expires")
	rootCmd.AddCommand(webhookTokenCmd)
}

func runWebhookToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Webhook.Secret == "" {
		return errors.New("webhook.secret (SCREENER_WEBHOOK_SECRET) is required")
	}
	if tokenTTL < 0 {
		return errors.New("--ttl must not be negative")
	}

	token, err := server.NewJWTService(cfg.Webhook.Secret).GenerateToken(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
