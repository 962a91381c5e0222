package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-screener/internal/classify"
	"github.com/jonathan/resume-screener/internal/ingestion"
	"github.com/jonathan/resume-screener/internal/observability"
	"github.com/jonathan/resume-screener/internal/textextract"
	"github.com/jonathan/resume-screener/internal/types"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file>...",
	Short: "Classify files as one application batch",
	Long: "Run the attachment classifier over the given files as if they arrived in one email, " +
		"including the batch default that makes exactly one file the résumé.",
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

// readAttachment loads a local file the way an upload would arrive
func readAttachment(path string) (types.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Attachment{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return types.Attachment{
		Data:     data,
		Filename: filepath.Base(path),
		MIMEType: ingestion.ResolveMIMEType("", data),
		Size:     int64(len(data)),
	}, nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	atts := make([]types.Attachment, 0, len(args))
	for _, path := range args {
		att, err := readAttachment(path)
		if err != nil {
			return err
		}
		atts = append(atts, att)
	}

	// content scoring only needs the text layer; no OCR or config required
	classifier := classify.New(textextract.New(nil), nil)
	classes := classifier.ClassifyBatch(cmd.Context(), atts)

	observability.NewPrinter(cmd.OutOrStdout()).PrintClassifications(atts, classes)
	return nil
}
