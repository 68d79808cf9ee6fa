package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tagscan/internal/logger"
	"tagscan/internal/sheets"
	"tagscan/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tag extractor web UI",
	Long: `Start the web UI. Upload a PDF or image, pick a page, run OCR and see
the extracted tags. The same server exposes POST /api/scan for scripts.

Environment variables:
  LISTEN_ADDR          - Listen address (default :8501)
  MAX_UPLOAD_MB        - Upload limit in megabytes (default 20)
  SESSION_TTL          - Idle session lifetime (default 30m)
  OCR_SPACE_API_KEY    - Required for the ocrspace engine
  GOOGLE_SHEET_URL     - Enables "Export to Google Sheets" when set
  EXPORT_TIMEOUT       - Limit for one Sheets export (default 30s)`,
	Example: `  # Local Tesseract profile on the default port
  tagscan serve

  # Remote profile with OCR.space
  OCR_SPACE_API_KEY=... tagscan serve --profile remote --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (env LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ListenAddr = addr
	}

	ctx, cancel := signalContext(0, log)
	defer cancel()

	scanner, err := newScanner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := scanner.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	opts := web.Options{
		Scanner:        scanner,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		SessionTTL:     cfg.SessionTTL,
		ExportTimeout:  cfg.ExportTimeout,
	}
	if cfg.ExportEnabled() {
		exporter, err := sheets.NewSheetsService(context.Background(), cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
		if err != nil {
			return fmt.Errorf("failed to set up Google Sheets export: %w", err)
		}
		exporter.SetTimeout(cfg.ExportTimeout)
		opts.Exporter = exporter
		log.Info().Str("worksheet", cfg.GoogleSheetWorksheet).Msg("Google Sheets export enabled")
	}

	server, err := web.NewServer(opts)
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx, cfg.ListenAddr)
}
