package google

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"courtbook/internal/events"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var headerRow = []interface{}{"Slot ID", "Date", "Time", "Booked by", "Booked at", "Synced at"}

// SheetsService mirrors bookings into a Google Sheets tab, one row per slot.
type SheetsService struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        *zerolog.Logger

	mu       sync.Mutex
	rowCache map[string]int
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	creds, err := googleoauth.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsService{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		rowCache:      make(map[string]int),
	}, nil
}

// EnsureHeader writes the header row when the first row is empty.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", s.sheetName)
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = s.srv.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{headerRow},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// AppendBooking adds a row for slot unless this process already wrote one.
func (s *SheetsService) AppendBooking(ctx context.Context, slot models.Slot) error {
	if _, ok := s.getCachedRow(slot.ID); ok {
		return nil
	}

	rng := fmt.Sprintf("%s!A:F", s.sheetName)
	resp, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{append(bookingRowValues(slot), time.Now().UTC().Format("2006-01-02 15:04:05"))},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append booking %s: %w", slot.ID, err)
	}

	if resp.Updates != nil {
		if row, ok := parseRowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(slot.ID, row)
		}
	}
	s.logger.Debug().Str("slot_id", slot.ID).Msg("Booking mirrored to sheet")
	return nil
}

// HandleSlotBooked is an events.EventHandler for events.SlotBooked.
func (s *SheetsService) HandleSlotBooked(ctx context.Context, event events.Event) error {
	var slot models.Slot
	if err := event.Decode(&slot); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}
	return s.AppendBooking(ctx, slot)
}

func bookingRowValues(slot models.Slot) []interface{} {
	bookedAt := ""
	if slot.BookedAt != nil {
		bookedAt = slot.BookedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		slot.ID,
		slot.Date,
		slot.Time,
		slot.BookedBy,
		bookedAt,
	}
}

var rangeRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// parseRowFromRange extracts the first row number from "Sheet!A12:F12".
func parseRowFromRange(rng string) (int, bool) {
	m := rangeRowRe.FindStringSubmatch(rng)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}

func (s *SheetsService) getCachedRow(slotID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rowCache[slotID]
	return row, ok
}

func (s *SheetsService) setCachedRow(slotID string, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[slotID] = row
}

// ClearCache forgets which slots were already written.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[string]int)
}
