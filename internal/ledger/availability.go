package ledger

import (
	"context"

	"courtbook/internal/models"
)

// DaySummary counts the slots of one open day.
type DaySummary struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
}

// Summary is the availability overview of the whole window.
type Summary struct {
	Days      []DaySummary `json:"days"`
	Total     int          `json:"total"`
	Available int          `json:"available"`
}

// Availability regenerates the window and groups it per day.
func (l *Ledger) Availability(ctx context.Context) (Summary, error) {
	slots, err := l.ListSlots(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(slots), nil
}

// Summarize groups slots by date. Slots are expected in (date, time) order.
func Summarize(slots []models.Slot) Summary {
	sum := Summary{Days: []DaySummary{}}
	for _, s := range slots {
		n := len(sum.Days)
		if n == 0 || sum.Days[n-1].Date != s.Date {
			sum.Days = append(sum.Days, DaySummary{Date: s.Date})
			n++
		}
		day := &sum.Days[n-1]
		day.Total++
		sum.Total++
		if !s.Booked {
			day.Available++
			sum.Available++
		}
	}
	return sum
}
