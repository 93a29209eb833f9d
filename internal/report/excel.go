package report

import (
	"fmt"
	"io"
	"time"

	"courtbook/internal/ledger"
	"courtbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SlotsSheet   = "Slots"
	SummarySheet = "Summary"
)

var (
	slotColumns    = []string{"Date", "Time", "Status", "Booked by", "Booked at"}
	summaryColumns = []string{"Date", "Total", "Available", "Booked"}
)

// Workbook writes rows sheet by sheet into an XLSX file.
type Workbook struct {
	file  *excelize.File
	sheet string
	row   int
}

func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// AddSheet starts a new sheet; the first call renames the default one.
func (w *Workbook) AddSheet(name string) error {
	// Excel limit.
	if len(name) > 31 {
		name = name[:31]
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.row = 1
	return nil
}

// WriteHeader writes bold column headers on the current row.
func (w *Workbook) WriteHeader(columns []string) error {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := w.writeCells(values); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		start, _ := excelize.CoordinatesToCellName(1, w.row)
		end, _ := excelize.CoordinatesToCellName(len(columns), w.row)
		_ = w.file.SetCellStyle(w.sheet, start, end, style)
	}

	w.row++
	return nil
}

func (w *Workbook) WriteRow(values []any) error {
	if err := w.writeCells(values); err != nil {
		return err
	}
	w.row++
	return nil
}

func (w *Workbook) writeCells(values []any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) Write(out io.Writer) error {
	return w.file.Write(out)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// BuildSlotsWorkbook renders slots and a per-day summary. With bookedOnly
// the slot sheet lists booked slots only; the summary always covers all.
func BuildSlotsWorkbook(slots []models.Slot, bookedOnly bool) (*Workbook, error) {
	wb := NewWorkbook()

	if err := wb.AddSheet(SlotsSheet); err != nil {
		wb.Close()
		return nil, err
	}
	if err := wb.WriteHeader(slotColumns); err != nil {
		wb.Close()
		return nil, err
	}
	for _, s := range slots {
		if bookedOnly && !s.Booked {
			continue
		}
		if err := wb.WriteRow(slotRow(s)); err != nil {
			wb.Close()
			return nil, err
		}
	}

	if err := wb.AddSheet(SummarySheet); err != nil {
		wb.Close()
		return nil, err
	}
	if err := wb.WriteHeader(summaryColumns); err != nil {
		wb.Close()
		return nil, err
	}
	for _, day := range ledger.Summarize(slots).Days {
		if err := wb.WriteRow([]any{day.Date, day.Total, day.Available, day.Total - day.Available}); err != nil {
			wb.Close()
			return nil, err
		}
	}

	return wb, nil
}

func slotRow(s models.Slot) []any {
	status := "available"
	bookedAt := ""
	if s.Booked {
		status = "booked"
		if s.BookedAt != nil {
			bookedAt = s.BookedAt.UTC().Format(time.RFC3339)
		}
	}
	return []any{s.Date, s.Time, status, s.BookedBy, bookedAt}
}
