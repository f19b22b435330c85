package telegram

import (
	"encoding/json"
	"net/http"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_subscription_bot/internal/logging"
)

// WebhookHandler accepts provider push deliveries. Each request carries one
// raw update; it is normalized synchronously and handed to the same dispatch
// entry point the poller uses. The response is always an empty 200 so the
// provider never retries a delivery, whatever happened downstream.
type WebhookHandler struct {
	sink   EventSink
	logger *logrus.Entry
}

// NewWebhookHandler constructs a WebhookHandler feeding the given sink.
func NewWebhookHandler(sink EventSink, logger *logrus.Entry) *WebhookHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &WebhookHandler{
		sink:   sink,
		logger: logger,
	}
}

// ServeHTTP implements http.Handler for POST /webhook.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var update models.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.WithField("event", "webhook_decode_error").WithError(err).Error("failed to decode webhook payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	event, ok := NormalizeUpdate(&update)
	if !ok {
		h.logger.WithFields(logging.Fields{
			"event":     "webhook_no_message",
			"update_id": update.ID,
		}).Warn("webhook payload carries no message")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.logger.WithFields(logging.Fields{
		"event":      "webhook_update",
		"update_id":  update.ID,
		"chat_id":    event.ChatID,
		"message_id": event.MessageID,
	}).Info("webhook update received")

	h.sink.Dispatch(r.Context(), event)

	w.WriteHeader(http.StatusOK)
}
