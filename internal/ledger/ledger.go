package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"courtbook/internal/calendar"
	"courtbook/internal/clock"
	"courtbook/internal/database"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	DefaultWindowDays   = 30
	DefaultCustomerName = "Guest"
)

// DocumentStore is the slice of database.Store the ledger needs.
// Update must hold the store's write lock across read, fn and write.
type DocumentStore interface {
	Update(ctx context.Context, fn database.UpdateFunc) error
}

// EventPublisher receives domain events after they are committed.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// Ledger maintains the rolling slot inventory and books slots in it.
type Ledger struct {
	store         DocumentStore
	clock         clock.Clock
	logger        *zerolog.Logger
	publisher     EventPublisher
	windowDays    int
	closedWeekday time.Weekday
	defaultName   string
}

type Option func(*Ledger)

// WithWindowDays sets how many days, starting today, carry slots.
func WithWindowDays(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.windowDays = n
		}
	}
}

// WithClosedWeekday sets the weekday that never gets slots.
func WithClosedWeekday(w time.Weekday) Option {
	return func(l *Ledger) { l.closedWeekday = w }
}

// WithDefaultCustomerName sets the name recorded when a booking has none.
func WithDefaultCustomerName(name string) Option {
	return func(l *Ledger) {
		if name = strings.TrimSpace(name); name != "" {
			l.defaultName = name
		}
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(store DocumentStore, clk clock.Clock, opts ...Option) *Ledger {
	nop := zerolog.Nop()
	l := &Ledger{
		store:         store,
		clock:         clk,
		logger:        &nop,
		windowDays:    DefaultWindowDays,
		closedWeekday: calendar.DefaultClosedWeekday,
		defaultName:   DefaultCustomerName,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListSlots regenerates the window for the current day, persists it and
// returns the slots ordered by date and time. Booked slots still inside the
// window keep their booking; slots that left the window are dropped.
func (l *Ledger) ListSlots(ctx context.Context) ([]models.Slot, error) {
	today := calendar.Today(l.clock.Now())

	var out []models.Slot
	err := l.store.Update(ctx, func(doc *models.Document) error {
		doc.Slots = l.regenerate(doc.Slots, today)
		out = make([]models.Slot, len(doc.Slots))
		copy(out, doc.Slots)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncRegeneration()
	booked := 0
	for _, s := range out {
		if s.Booked {
			booked++
		}
	}
	metrics.SetSlotCounts(len(out)-booked, booked)

	return out, nil
}

func (l *Ledger) regenerate(persisted []models.Slot, today calendar.Date) []models.Slot {
	end := today.AddDays(l.windowDays)

	existing := make(map[string]models.Slot, len(persisted))
	for _, s := range persisted {
		d, err := s.CivilDate()
		if err != nil {
			l.logger.Warn().Str("slot_id", s.ID).Str("date", s.Date).Msg("dropping slot with unparsable date")
			continue
		}
		if !d.In(today, end) {
			if s.Booked {
				l.logger.Info().Str("slot_id", s.ID).Str("booked_by", s.BookedBy).Msg("booked slot left the window")
			}
			continue
		}
		existing[s.ID] = s
	}

	labels := calendar.TimeLabels()
	slots := make([]models.Slot, 0, l.windowDays*len(labels))
	for _, day := range calendar.EnumerateWindow(today, l.windowDays) {
		if calendar.IsClosedDay(day, l.closedWeekday) {
			continue
		}
		for _, label := range labels {
			fresh := models.NewSlot(day, label)
			if prev, ok := existing[fresh.ID]; ok {
				slots = append(slots, prev)
				continue
			}
			slots = append(slots, fresh)
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Less(slots[j]) })
	return slots
}

// BookSlot claims the slot with id for customerName. It fails with
// ErrSlotNotFound when the id is not in the persisted document and with
// ErrAlreadyBooked when someone else got there first.
func (l *Ledger) BookSlot(ctx context.Context, slotID, customerName string) (models.Slot, error) {
	name := customerName
	if strings.TrimSpace(name) == "" {
		name = l.defaultName
	}

	var booked models.Slot
	err := l.store.Update(ctx, func(doc *models.Document) error {
		slot := doc.Find(slotID)
		if slot == nil {
			return ErrSlotNotFound
		}
		if slot.Booked {
			return ErrAlreadyBooked
		}
		slot.Book(name, l.clock.Now().UTC())
		booked = *slot
		return nil
	})

	switch {
	case errors.Is(err, ErrSlotNotFound):
		metrics.IncBooking(metrics.ResultNotFound)
		return models.Slot{}, err
	case errors.Is(err, ErrAlreadyBooked):
		metrics.IncBooking(metrics.ResultAlreadyBooked)
		return models.Slot{}, err
	case err != nil:
		metrics.IncBooking(metrics.ResultError)
		l.logger.Error().Err(err).Str("slot_id", slotID).Msg("booking not committed")
		return models.Slot{}, err
	}

	metrics.IncBooking(metrics.ResultBooked)
	l.logger.Info().
		Str("slot_id", booked.ID).
		Str("date", booked.Date).
		Str("time", booked.Time).
		Str("booked_by", booked.BookedBy).
		Msg("slot booked")

	if l.publisher != nil {
		if err := l.publisher.PublishJSON(events.SlotBooked, booked); err != nil {
			l.logger.Warn().Err(err).Str("slot_id", booked.ID).Msg("failed to publish booking event")
		}
	}

	return booked, nil
}
