package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"courtbook/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestHandleEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: "courtbook.events"}

	created := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	err := p.HandleEvent(context.Background(), events.Event{
		ID:        "evt-1",
		Type:      events.SlotBooked,
		Payload:   []byte(`{"id":"slot_20240305_0900"}`),
		CreatedAt: created,
	})
	require.NoError(t, err)

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, "courtbook.events", got.exchange)
	assert.Equal(t, events.SlotBooked, got.key)
	assert.Equal(t, "evt-1", got.msg.MessageId)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, created, got.msg.Timestamp)
	assert.JSONEq(t, `{"id":"slot_20240305_0900"}`, string(got.msg.Body))
}

func TestPublishError(t *testing.T) {
	p := &Publisher{ch: &fakeChannel{err: errors.New("closed")}, exchange: "x"}
	assert.Error(t, p.HandleEvent(context.Background(), events.Event{Type: events.SlotBooked}))
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch}
	assert.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
