// Package telegram hosts the provider API client and the two update sources:
// the long-poll fetch loop and the webhook receiver. Both normalize raw
// provider updates into Events and hand them to the same dispatch entry point.
package telegram

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Event is one normalized inbound message, immutable once constructed.
type Event struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Text      string
	Time      time.Time
}

// Outbound is one reply to deliver through the provider. ReplyMarkup, when
// set, is JSON-encoded into the send request.
type Outbound struct {
	ChatID      int64
	Text        string
	ReplyMarkup models.ReplyMarkup
	ParseMode   models.ParseMode
}

// NormalizeUpdate converts a raw provider update into an Event. Updates
// without a message body carry nothing to dispatch and report false.
func NormalizeUpdate(update *models.Update) (Event, bool) {
	if update == nil || update.Message == nil {
		return Event{}, false
	}

	msg := update.Message
	event := Event{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
		Time:      time.Now().UTC(),
	}

	if msg.From != nil {
		event.UserID = msg.From.ID
		event.Username = msg.From.Username
	}
	if msg.Date > 0 {
		event.Time = time.Unix(int64(msg.Date), 0).UTC()
	}

	return event, true
}
