package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"costtrack-backend/database"
	"costtrack-backend/logger"
	"costtrack-backend/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const syncLockTTL = 2 * time.Minute

// Service pushes project item records to a Google spreadsheet, one worksheet
// per project code.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	var creds []byte
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
	client := config.Client(ctx)
	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// SheetName is the worksheet a project syncs into.
func SheetName(project models.Project) string {
	if project.Code != "" {
		return project.Code
	}
	return fmt.Sprintf("project-%d", project.ID)
}

// Sync replaces the project's worksheet with a header row plus one row per
// record. Concurrent syncs of the same project are refused while Redis
// locking is available.
func (s *Service) Sync(ctx context.Context, project models.Project, records []models.ItemRecord) error {
	const op = "Sync"
	sheetName := SheetName(project)
	lockName := fmt.Sprintf("sheets-sync:%d", project.ID)

	return database.WithLock(ctx, lockName, syncLockTTL, func(ctx context.Context) error {
		if err := s.ensureSheet(ctx, sheetName); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		_, err := s.sheetsService.Spreadsheets.Values.Clear(s.spreadsheetID, sheetName, &sheets.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to clear sheet: %w", op, err)
		}

		valueRange := &sheets.ValueRange{Values: recordValues(records)}
		_, err = s.sheetsService.Spreadsheets.Values.Update(s.spreadsheetID, sheetName+"!A1", valueRange).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to write values: %w", op, err)
		}

		s.log.Info().
			Str("sheet", sheetName).
			Int("rows", len(records)).
			Msg("Synced project items to Google Sheet")
		return nil
	})
}

// recordValues renders the header row followed by the records.
func recordValues(records []models.ItemRecord) [][]interface{} {
	header := make([]interface{}, len(models.ItemRecordHeader))
	for i, h := range models.ItemRecordHeader {
		header[i] = h
	}
	values := make([][]interface{}, 0, len(records)+1)
	values = append(values, header)
	for _, r := range records {
		values = append(values, r.Values())
	}
	return values
}

func (s *Service) ensureSheet(ctx context.Context, sheetName string) error {
	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return nil
		}
	}

	s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
		},
	}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	return nil
}
