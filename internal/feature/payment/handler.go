// Package payment hosts the tariff-selection handler and the deferred
// payment-status checker.
package payment

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_subscription_bot/internal/domain"
	"tg_subscription_bot/internal/logging"
	"tg_subscription_bot/internal/payment"
	"tg_subscription_bot/internal/telegram"
)

// Sender delivers outbound messages through the provider.
type Sender interface {
	SendMessage(ctx context.Context, msg telegram.Outbound) error
}

type checkoutCreator interface {
	CreatePayment(ctx context.Context, amount, currency, description string) (payment.Checkout, error)
}

type orderCreator interface {
	Create(ctx context.Context, userID, chatID int64, tariff, paymentID string) (domain.Order, error)
}

// Handler processes tariff-selection messages: it opens a checkout session,
// records a pending order, and sends the payment link. The status of the
// payment is settled later by the Checker; nothing here blocks on it.
type Handler struct {
	sender  Sender
	gateway checkoutCreator
	orders  orderCreator
	logger  *logrus.Entry
}

// NewHandler constructs the tariff-selection handler.
func NewHandler(sender Sender, gateway checkoutCreator, orders orderCreator, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handler{
		sender:  sender,
		gateway: gateway,
		orders:  orders,
		logger:  logger,
	}
}

// SelectTariff handles one tariff-selection event. Each step failing
// abandons the interaction: the error is surfaced to the dispatcher and no
// cleanup of earlier steps is attempted.
func (h *Handler) SelectTariff(ctx context.Context, event telegram.Event) error {
	label := domain.ParseTariffLabel(event.Text)
	tariff, ok := domain.TariffByLabel(label)
	if !ok {
		return fmt.Errorf("unknown tariff %q", label)
	}

	checkout, err := h.gateway.CreatePayment(ctx,
		tariff.Amount(),
		tariff.Currency,
		fmt.Sprintf("Оплата подписки на тариф '%s'", tariff.Label),
	)
	if err != nil {
		return fmt.Errorf("create checkout: %w", err)
	}

	order, err := h.orders.Create(ctx, event.UserID, event.ChatID, tariff.Label, checkout.PaymentID)
	if err != nil {
		return fmt.Errorf("persist order: %w", err)
	}

	h.logger.WithFields(logging.Fields{
		"event":      "order_created",
		"order_id":   order.OrderID,
		"user_id":    event.UserID,
		"tariff":     tariff.Label,
		"payment_id": checkout.PaymentID,
	}).Info("created pending order")

	text := fmt.Sprintf("Оплатите подписку на тариф '%s'\n"+
		"После оплаты, платеж будет обработан в течении 10 минут\n"+
		"Спасибо!", tariff.Label)

	return h.sender.SendMessage(ctx, telegram.Outbound{
		ChatID: event.ChatID,
		Text:   text,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "Оплатить", URL: checkout.ConfirmationURL}},
			},
		},
	})
}
