package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tagscan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "tagscan",
	Short: "Extract warehouse inventory tags from scanned documents",
	Long: `tagscan runs OCR on PDF pages and images and extracts warehouse
inventory tags such as WH-0601-PG-89-FSL32.

Two profiles are available:
  local   Tesseract on thresholded 200 DPI pages, strict whole-word matching,
          tag boxes drawn on the page
  remote  OCR.space on contrast-enhanced 300 DPI pages, lenient matching that
          also accepts underscores and CSL tags

Use "tagscan serve" for the web UI and "tagscan scan" for one-off files.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("profile", "", "Deployment profile: local or remote (env TAGSCAN_PROFILE)")
	rootCmd.PersistentFlags().String("engine", "", "OCR engine: tesseract, ocrspace, vision, documentai or openai (env OCR_ENGINE)")
	rootCmd.PersistentFlags().String("matcher", "", "Tag pattern: strict or lenient (env TAG_MATCHER)")
}
