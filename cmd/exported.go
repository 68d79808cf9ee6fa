package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tagscan/internal/logger"
	"tagscan/internal/sheets"
)

var exportedCmd = &cobra.Command{
	Use:   "exported",
	Short: "List tags already exported to Google Sheets",
	Long: `Read back the rows written by "tagscan scan --export" and the web UI's
export button from GOOGLE_SHEET_URL (worksheet GOOGLE_SHEET_WORKSHEET).`,
	Example: `  # Table of exported tags
  tagscan exported

  # Only rows for one tag, as JSON
  tagscan exported --tag WH-0601-PG-89-FSL32 --json`,
	Args: cobra.NoArgs,
	RunE: runExported,
}

func init() {
	rootCmd.AddCommand(exportedCmd)

	exportedCmd.Flags().Bool("json", false, "Output as JSON")
	exportedCmd.Flags().String("tag", "", "Only show rows for this tag value")
}

func runExported(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("exported")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	tagFilter, _ := cmd.Flags().GetString("tag")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.ExportEnabled() {
		return fmt.Errorf("GOOGLE_SHEET_URL is not set")
	}

	ctx, cancel := signalContext(cfg.ExportTimeout, log)
	defer cancel()

	svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
	if err != nil {
		return fmt.Errorf("failed to set up Google Sheets access: %w", err)
	}
	svc.SetTimeout(cfg.ExportTimeout)

	values, err := svc.ReadTags(ctx)
	if err != nil {
		return fmt.Errorf("failed to read exported tags: %w", err)
	}

	rows := sheets.ParseRows(values)
	if tagFilter != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if row.Tag == tagFilter {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	log.Debug().Int("rows", len(rows)).Msg("Read exported tags")

	if jsonOutput {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(rows) == 0 {
		fmt.Println("No exported tags found.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{"SCANNED AT", "FILE", "PAGE", "TAG", "ENGINE"}, "\t"))
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", row.ScannedAt, row.File, row.Page, row.Tag, row.Engine)
	}
	return tw.Flush()
}
