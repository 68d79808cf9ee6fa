package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tagscan/internal/document"
	"tagscan/internal/logger"
	"tagscan/internal/ocr"
	"tagscan/internal/scan"
	"tagscan/internal/sheets"
	"tagscan/internal/tags"
)

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Extract tags from a PDF or image",
	Long: `Run OCR on one page (or every page) of a PDF, PNG or JPEG file and
print the inventory tags found.

The profile decides resolution, preprocessing, engine and tag pattern.
Pages are numbered from 1.`,
	Example: `  # First page with the local profile
  tagscan scan inventory.pdf

  # Page 3, annotated output
  tagscan scan inventory.pdf --page 3 --annotated page3.png

  # Every page through OCR.space, JSON output
  tagscan scan inventory.pdf --all --json --profile remote

  # Append the tags to the configured Google Sheet
  tagscan scan shelf.jpg --export`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

// ScanOutput is one page in --json output.
type ScanOutput struct {
	File      string     `json:"file"`
	Page      int        `json:"page"`
	PageCount int        `json:"page_count"`
	Engine    string     `json:"engine"`
	Tags      []string   `json:"tags"`
	Matches   []tags.Tag `json:"matches"`
	Text      string     `json:"text,omitempty"`
	Duration  string     `json:"duration"`
	Annotated string     `json:"annotated,omitempty"`
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntP("page", "p", 1, "Page to scan (1-based)")
	scanCmd.Flags().Bool("all", false, "Scan every page")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Bool("text", false, "Include recognized text in the output")
	scanCmd.Flags().StringP("annotated", "a", "", "Write the annotated page image to this PNG file")
	scanCmd.Flags().Bool("export", false, "Append the tags to GOOGLE_SHEET_URL")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	page, _ := cmd.Flags().GetInt("page")
	all, _ := cmd.Flags().GetBool("all")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	withText, _ := cmd.Flags().GetBool("text")
	annotatedPath, _ := cmd.Flags().GetString("annotated")
	export, _ := cmd.Flags().GetBool("export")

	path := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if export && !cfg.ExportEnabled() {
		return fmt.Errorf("--export needs GOOGLE_SHEET_URL to be set")
	}

	log.Info().
		Str("file", path).
		Int("page", page).
		Bool("all", all).
		Str("profile", cfg.Profile).
		Msg("Starting scan")

	data, err := readInput(path, cfg.MaxUploadBytes(), log)
	if err != nil {
		return err
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

	doc, err := scanner.Load(data, path, cfg.MaxUploadBytes())
	if err != nil {
		return handleScanError(err, log)
	}

	pages := []int{page}
	if all {
		pages = pages[:0]
		for n := 1; n <= doc.PageCount(); n++ {
			pages = append(pages, n)
		}
	}

	var exporter *sheets.Service
	if export {
		exporter, err = sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
		if err != nil {
			return fmt.Errorf("failed to set up Google Sheets export: %w", err)
		}
		exporter.SetTimeout(cfg.ExportTimeout)
	}

	var outputs []ScanOutput
	for _, n := range pages {
		res, err := scanner.ScanDocument(ctx, doc, n)
		if err != nil {
			return handleScanError(err, log)
		}

		out := ScanOutput{
			File:      doc.Name,
			Page:      res.Page,
			PageCount: doc.PageCount(),
			Engine:    res.Engine,
			Tags:      res.Values(),
			Matches:   res.Tags,
			Duration:  res.Duration.Round(time.Millisecond).String(),
		}
		if withText {
			out.Text = res.Text
		}

		if annotatedPath != "" {
			target := pageFileName(annotatedPath, n, len(pages) > 1)
			written, err := writeAnnotated(target, res, log)
			if err != nil {
				return err
			}
			if written {
				out.Annotated = target
			}
		}

		if exporter != nil {
			if err := exporter.ExportReport(ctx, scan.NewReport(doc.Name, res, time.Now())); err != nil {
				return fmt.Errorf("failed to export tags: %w", err)
			}
		}

		outputs = append(outputs, out)
	}

	return printResults(outputs, jsonOutput, withText)
}

// readInput checks that path is a readable regular file within the size limit
func readInput(path string, maxBytes int64, log zerolog.Logger) ([]byte, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("File not found")
			return nil, fmt.Errorf("file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing file")
			return nil, fmt.Errorf("permission denied accessing file: %s", path)
		}
		return nil, fmt.Errorf("error accessing file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() > maxBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", maxBytes).
			Msg("File exceeds maximum size limit")
		return nil, fmt.Errorf("file too large (%d bytes). Maximum size is %d bytes", fileInfo.Size(), maxBytes)
	}

	return os.ReadFile(path)
}

// pageFileName adds a page suffix when several pages are written.
func pageFileName(path string, page int, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-p%d%s", strings.TrimSuffix(path, ext), page, ext)
}

func writeAnnotated(path string, res *scan.Result, log zerolog.Logger) (bool, error) {
	if res.Annotated == nil {
		log.Warn().
			Int("page", res.Page).
			Msg("No tag boxes to draw; annotated image not written")
		return false, nil
	}
	if err := imaging.Save(res.Annotated, path); err != nil {
		log.Error().Err(err).Str("output_file", path).Msg("Failed to write annotated image")
		return false, fmt.Errorf("failed to write annotated image: %w", err)
	}
	log.Info().Str("output_file", path).Msg("Annotated image written")
	return true, nil
}

func printResults(outputs []ScanOutput, jsonOutput, withText bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	var b strings.Builder
	for _, out := range outputs {
		if len(outputs) > 1 {
			fmt.Fprintf(&b, "=== %s page %d/%d ===\n", out.File, out.Page, out.PageCount)
		}
		if len(out.Tags) == 0 {
			b.WriteString("No matching tags found.\n")
		}
		for _, tag := range out.Tags {
			b.WriteString(tag)
			b.WriteByte('\n')
		}
		if withText {
			b.WriteString("\n--- recognized text ---\n")
			b.WriteString(out.Text)
			b.WriteByte('\n')
		}
	}
	_, err := os.Stdout.WriteString(b.String())
	return err
}

// handleScanError provides user-friendly error messages for scan failures
func handleScanError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Scan failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR timed out. Try increasing OCR_TIMEOUT")
	case errors.Is(err, context.Canceled), errors.Is(err, ocr.ErrContextCanceled):
		return fmt.Errorf("scan was canceled")
	case errors.Is(err, document.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported file type. Use a PDF, PNG or JPEG file")
	case errors.Is(err, document.ErrDocumentTooLarge):
		return fmt.Errorf("file is too large. Raise MAX_UPLOAD_MB or split the file")
	case errors.Is(err, document.ErrEmptyDocument):
		return fmt.Errorf("the document has no pages")
	case errors.Is(err, document.ErrInvalidDocument):
		return fmt.Errorf("invalid or corrupted file: %w", err)
	case errors.Is(err, scan.ErrPageOutOfRange):
		return fmt.Errorf("%w. Use --page with a page that exists, or --all", err)
	case errors.Is(err, ocr.ErrRemoteStatus):
		return fmt.Errorf("the OCR service rejected the request. Check the API key and quota: %w", err)
	case errors.Is(err, ocr.ErrRemoteProcessing):
		return fmt.Errorf("the OCR service could not process the page: %w", err)
	case errors.Is(err, ocr.ErrMalformedResponse):
		return fmt.Errorf("the OCR service returned an unexpected response: %w", err)
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS and the service account roles: %w", err)
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR failed. This may be due to network issues or service unavailability: %w", err)
	default:
		return fmt.Errorf("scan failed: %w", err)
	}
}
