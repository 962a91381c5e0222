package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-screener/internal/observability"
	"github.com/jonathan/resume-screener/internal/types"
)

var analyzeLanguages string

var analyzeCertificateCmd = &cobra.Command{
	Use:   "analyze-certificate <file>",
	Short: "Analyze one certificate",
	Long: "Preprocess and OCR an image certificate (or read the text layer of a PDF or Word document) " +
		"and print the detected type, score, dates, holder name and confidence.",
	Args: cobra.ExactArgs(1),
	RunE: runAnalyzeCertificate,
}

func init() {
	analyzeCertificateCmd.Flags().StringVar(&analyzeLanguages, "languages", "", "OCR languages, e.g. eng+vie (overrides ocr.languages)")
	rootCmd.AddCommand(analyzeCertificateCmd)
}

func runAnalyzeCertificate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if analyzeLanguages != "" {
		cfg.OCR.Languages = analyzeLanguages
	}

	att, err := readAttachment(args[0])
	if err != nil {
		return err
	}
	docs, err := newAnalysis(cfg, logger)
	if err != nil {
		return err
	}

	meta := docs.certificates.AnalyzeAttachment(cmd.Context(), att, types.Classification{
		Kind:       types.KindCertificate,
		Confidence: 1,
		Reason:     "declared",
		Decisive:   true,
	})
	observability.NewPrinter(cmd.OutOrStdout()).PrintCertificate(att.Filename, meta)
	return nil
}
