package models

import (
	"encoding/json"
	"testing"
	"time"

	"courtbook/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotID(t *testing.T) {
	assert.Equal(t, "slot_20240304_0900", SlotID("2024-03-04", "09:00"))
	assert.Equal(t, SlotID("2024-03-04", "09:00"), SlotID("2024-03-04", "09:00"))
	assert.NotEqual(t, SlotID("2024-03-04", "09:00"), SlotID("2024-03-04", "10:00"))

	s := NewSlot(calendar.NewDate(2024, 3, 4), "09:00")
	assert.Equal(t, "slot_20240304_0900", s.ID)
	assert.Equal(t, "2024-03-04", s.Date)
	assert.False(t, s.Booked)
}

func TestSlot_Book(t *testing.T) {
	s := NewSlot(calendar.NewDate(2024, 3, 5), "07:00")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Book("Alice", at)

	assert.True(t, s.Booked)
	assert.Equal(t, "Alice", s.BookedBy)
	require.NotNil(t, s.BookedAt)
	assert.Equal(t, at, *s.BookedAt)
}

func TestSlot_JSON(t *testing.T) {
	t.Run("unbooked omits optional fields", func(t *testing.T) {
		data, err := json.Marshal(NewSlot(calendar.NewDate(2024, 3, 5), "07:00"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"slot_20240305_0700","date":"2024-03-05","time":"07:00","booked":false}`, string(data))
	})

	t.Run("documents without booking fields decode as unbooked", func(t *testing.T) {
		var doc Document
		require.NoError(t, json.Unmarshal([]byte(`{"slots":[{"id":"slot_20240305_0700","date":"2024-03-05","time":"07:00"}]}`), &doc))
		require.Len(t, doc.Slots, 1)
		assert.False(t, doc.Slots[0].Booked)
		assert.Empty(t, doc.Slots[0].BookedBy)
		assert.Nil(t, doc.Slots[0].BookedAt)
	})
}

func TestSlot_Less(t *testing.T) {
	a := Slot{Date: "2024-03-05", Time: "18:00"}
	b := Slot{Date: "2024-03-06", Time: "07:00"}
	c := Slot{Date: "2024-03-06", Time: "08:00"}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
}

func TestDocument_FindAndClone(t *testing.T) {
	doc := &Document{Slots: []Slot{
		NewSlot(calendar.NewDate(2024, 3, 5), "07:00"),
		NewSlot(calendar.NewDate(2024, 3, 5), "08:00"),
	}}

	found := doc.Find("slot_20240305_0800")
	require.NotNil(t, found)
	assert.Nil(t, doc.Find("nonexistent-id"))

	found.Book("Bob", time.Now())
	clone := doc.Clone()
	clone.Slots[1].BookedBy = "Mallory"
	*clone.Slots[1].BookedAt = time.Time{}

	assert.Equal(t, "Bob", doc.Slots[1].BookedBy)
	assert.False(t, doc.Slots[1].BookedAt.IsZero())
}
