package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"tagscan/internal/logger"
	"tagscan/internal/scan"
)

// Service appends scan reports to a Google Sheet
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	worksheet     string
	timeout       time.Duration
	log           zerolog.Logger
}

// DefaultTimeout bounds each export or read when SetTimeout is not called.
const DefaultTimeout = 30 * time.Second

// TagRow is one exported tag
type TagRow struct {
	ScannedAt string `json:"scanned_at"`
	File      string `json:"file"`
	Page      int    `json:"page"`
	Tag       string `json:"tag"`
	Engine    string `json:"engine"`
	Box       string `json:"box,omitempty"`
}

var headers = []interface{}{"Scanned At", "File", "Page", "Tag", "Engine", "Box"}

const lastColumn = "F"

// NewSheetsService creates a Sheets client from service account credentials
// in GOOGLE_APPLICATION_CREDENTIALS (file) or GOOGLE_CREDENTIALS (JSON).
func NewSheetsService(ctx context.Context, sheetURL, worksheet string) (*Service, error) {
	const op = "NewSheetsService"

	// Get Google credentials
	var creds []byte
	var err error
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	return NewSheetsServiceWithOptions(ctx, sheetURL, worksheet, option.WithHTTPClient(config.Client(ctx)))
}

// NewSheetsServiceWithOptions creates the service with explicit client options.
func NewSheetsServiceWithOptions(ctx context.Context, sheetURL, worksheet string, opts ...option.ClientOption) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}
	if worksheet == "" {
		worksheet = "Tags"
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Str("worksheet", worksheet).Msg("Extracted spreadsheet ID")

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		timeout:       DefaultTimeout,
		log:           log,
	}, nil
}

// SetTimeout changes the limit applied to each ExportReport and ReadTags call.
func (s *Service) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	re := regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	matches := re.FindStringSubmatch(url)

	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}

	return matches[1], nil
}

// ExportReport appends one row per tag. Reports without tags write nothing.
func (s *Service) ExportReport(ctx context.Context, report scan.Report) error {
	const op = "ExportReport"

	rows := ReportRows(report)
	if len(rows) == 0 {
		s.log.Info().Str("file", report.File).Msg("No tags to export")
		return nil
	}

	s.log.Info().
		Str("sheet", s.worksheet).
		Str("file", report.File).
		Int("rows", len(rows)).
		Msg("Writing tags to Google Sheet")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensureSheetWithHeaders(ctx); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	var values [][]interface{}
	for _, row := range rows {
		values = append(values, rowToValues(row))
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		s.worksheet+"!A:"+lastColumn,
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote tags to Google Sheet")

	return nil
}

// ReportRows converts a report into sheet rows.
func ReportRows(report scan.Report) []TagRow {
	scannedAt := report.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}

	rows := make([]TagRow, 0, len(report.Tags))
	for _, tag := range report.Tags {
		row := TagRow{
			ScannedAt: scannedAt.Format(time.RFC3339),
			File:      report.File,
			Page:      report.Page,
			Tag:       tag.Value,
			Engine:    report.Engine,
		}
		if tag.Box != nil {
			row.Box = fmt.Sprintf("%d,%d,%d,%d", tag.Box.X, tag.Box.Y, tag.Box.Width, tag.Box.Height)
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseRows converts values read by ReadTags back into rows. Missing trailing
// cells stay empty; rows without a tag are skipped.
func ParseRows(values [][]interface{}) []TagRow {
	rows := make([]TagRow, 0, len(values))
	for _, v := range values {
		cell := func(i int) string {
			if i < len(v) && v[i] != nil {
				return fmt.Sprint(v[i])
			}
			return ""
		}
		row := TagRow{
			ScannedAt: cell(0),
			File:      cell(1),
			Tag:       cell(3),
			Engine:    cell(4),
			Box:       cell(5),
		}
		if row.Tag == "" {
			continue
		}
		row.Page, _ = strconv.Atoi(cell(2))
		rows = append(rows, row)
	}
	return rows
}

func rowToValues(row TagRow) []interface{} {
	return []interface{}{
		row.ScannedAt, // A
		row.File,      // B
		row.Page,      // C
		row.Tag,       // D
		row.Engine,    // E
		row.Box,       // F
	}
}

// ensureSheetWithHeaders creates the worksheet and its header row if missing
func (s *Service) ensureSheetWithHeaders(ctx context.Context) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.worksheet {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", s.worksheet).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: s.worksheet}}},
			},
		}
		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
			sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		}
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", s.worksheet, lastColumn)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", s.worksheet).Msg("Adding headers to sheet")

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{headers}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and resizes the columns
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	columns := int64(len(headers))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}

// ReadTags reads previously exported rows, header excluded.
func (s *Service) ReadTags(ctx context.Context) ([][]interface{}, error) {
	const op = "ReadTags"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rangeSpec := fmt.Sprintf("%s!A2:%s", s.worksheet, lastColumn)
	s.log.Debug().Str("range", rangeSpec).Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}
	return resp.Values, nil
}
