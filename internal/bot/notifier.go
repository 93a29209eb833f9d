package bot

import (
	"context"
	"fmt"
	"io"
	"time"

	"courtbook/internal/events"
	"courtbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TelegramSender is the part of tgbotapi.BotAPI the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts booking notices and reports to a single Telegram chat.
type Notifier struct {
	sender  TelegramSender
	chatID  int64
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewTelegramNotifier connects to the Bot API with token.
func NewTelegramNotifier(token string, chatID int64, debug bool, logger *zerolog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	api.Debug = debug
	if logger != nil {
		logger.Info().Str("bot", api.Self.UserName).Int64("chat_id", chatID).Msg("Telegram notifier authorized")
	}
	return NewNotifier(api, chatID, logger), nil
}

func NewNotifier(sender TelegramSender, chatID int64, logger *zerolog.Logger) *Notifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Notifier{
		sender: sender,
		chatID: chatID,
		// Telegram allows about one message per second to a single chat.
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		logger:  logger,
	}
}

// HandleSlotBooked is an events.EventHandler for events.SlotBooked.
func (n *Notifier) HandleSlotBooked(ctx context.Context, event events.Event) error {
	var slot models.Slot
	if err := event.Decode(&slot); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, formatBookingMessage(slot))
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send booking notice: %w", err)
	}
	n.logger.Debug().Str("slot_id", slot.ID).Msg("Booking notice sent")
	return nil
}

// SendDocument uploads a file with caption to the chat.
func (n *Notifier) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(n.chatID, tgbotapi.FileReader{Name: filename, Reader: data})
	doc.Caption = caption
	if _, err := n.sender.Send(doc); err != nil {
		return fmt.Errorf("send document %s: %w", filename, err)
	}
	return nil
}

func formatBookingMessage(s models.Slot) string {
	return fmt.Sprintf("New booking: %s at %s by %s (%s)", s.Date, s.Time, s.BookedBy, s.ID)
}
