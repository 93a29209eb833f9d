package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"courtbook/internal/events"
	"courtbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func bookedEvent(t *testing.T) events.Event {
	payload, err := json.Marshal(models.Slot{
		ID: "slot_20240305_0900", Date: "2024-03-05", Time: "09:00", Booked: true, BookedBy: "Alice",
	})
	require.NoError(t, err)
	return events.Event{Type: events.SlotBooked, Payload: payload}
}

func TestHandleSlotBooked(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 42, nil)

	require.NoError(t, n.HandleSlotBooked(context.Background(), bookedEvent(t)))
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "New booking: 2024-03-05 at 09:00 by Alice (slot_20240305_0900)", msg.Text)
}

func TestHandleSlotBooked_Errors(t *testing.T) {
	n := NewNotifier(&fakeSender{err: errors.New("blocked")}, 42, nil)
	assert.Error(t, n.HandleSlotBooked(context.Background(), bookedEvent(t)))

	bad := events.Event{Type: events.SlotBooked, Payload: []byte("{")}
	assert.Error(t, NewNotifier(&fakeSender{}, 42, nil).HandleSlotBooked(context.Background(), bad))
}

func TestSendDocument(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 7, nil)

	require.NoError(t, n.SendDocument(context.Background(), "bookings.xlsx", strings.NewReader("xlsx"), "report"))
	require.Len(t, sender.sent, 1)

	doc, ok := sender.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(7), doc.ChatID)
	assert.Equal(t, "report", doc.Caption)
	file, ok := doc.File.(tgbotapi.FileReader)
	require.True(t, ok)
	assert.Equal(t, "bookings.xlsx", file.Name)
}
