package models

import (
	"fmt"
	"strings"
	"time"

	"courtbook/internal/calendar"
)

// Slot is one bookable hour on the court.
type Slot struct {
	ID       string     `json:"id"`
	Date     string     `json:"date"` // YYYY-MM-DD, civil
	Time     string     `json:"time"` // HH:MM
	Booked   bool       `json:"booked"`
	BookedBy string     `json:"bookedBy,omitempty"`
	BookedAt *time.Time `json:"bookedAt,omitempty"`
}

// SlotID derives the stable identifier for a (date, time) pair,
// e.g. 2024-03-04 09:00 -> slot_20240304_0900.
func SlotID(date, timeLabel string) string {
	return fmt.Sprintf("slot_%s_%s",
		strings.ReplaceAll(date, "-", ""),
		strings.ReplaceAll(timeLabel, ":", ""),
	)
}

// NewSlot returns a fresh unbooked slot.
func NewSlot(date calendar.Date, timeLabel string) Slot {
	key := calendar.FormatKey(date)
	return Slot{
		ID:   SlotID(key, timeLabel),
		Date: key,
		Time: timeLabel,
	}
}

// Book marks the slot as claimed by name at instant at.
func (s *Slot) Book(name string, at time.Time) {
	s.Booked = true
	s.BookedBy = name
	s.BookedAt = &at
}

// CivilDate parses the slot's date key.
func (s Slot) CivilDate() (calendar.Date, error) {
	return calendar.ParseKey(s.Date)
}

// Less orders slots by (date, time); both keys are fixed width.
func (s Slot) Less(other Slot) bool {
	if s.Date != other.Date {
		return s.Date < other.Date
	}
	return s.Time < other.Time
}
