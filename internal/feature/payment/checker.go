package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"tg_subscription_bot/internal/domain"
	"tg_subscription_bot/internal/logging"
	"tg_subscription_bot/internal/payment"
	"tg_subscription_bot/internal/telegram"
)

const sweepTimeout = 30 * time.Second

type statusFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (payment.Info, error)
}

type orderStore interface {
	ListPending(ctx context.Context) ([]domain.Order, error)
	MarkStatus(ctx context.Context, orderID int64, status string) error
	IncrementChecks(ctx context.Context, orderID int64) error
}

// Checker settles pending orders off the ingestion path. A scheduled sweep
// queries the gateway for every pending order and, on a terminal status,
// transitions the order and sends its follow-up message. Each order gets
// exactly one terminal message: the guarded status transition decides which
// sweep owns it.
//
// An absent or in-flight gateway status leaves the order pending for the next
// sweep; it is never treated as paid. Orders exhausting the check budget are
// marked failed so every order eventually terminates.
type Checker struct {
	gateway  statusFetcher
	orders   orderStore
	sender   Sender
	logger   *logrus.Entry
	interval time.Duration
	limit    int
	cron     *cron.Cron
}

// NewChecker constructs a Checker sweeping at the given interval with the
// given per-order check budget.
func NewChecker(gateway statusFetcher, orders orderStore, sender Sender, interval time.Duration, limit int, logger *logrus.Entry) (*Checker, error) {
	if interval <= 0 {
		return nil, errors.New("check interval must be positive")
	}
	if limit <= 0 {
		return nil, errors.New("check limit must be positive")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Checker{
		gateway:  gateway,
		orders:   orders,
		sender:   sender,
		logger:   logger,
		interval: interval,
		limit:    limit,
		cron:     cron.New(),
	}, nil
}

// Start schedules the sweep and begins running it.
func (c *Checker) Start() error {
	if _, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		c.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule payment sweep: %w", err)
	}

	c.cron.Start()
	c.logger.WithFields(logging.Fields{
		"event":    "checker_started",
		"interval": c.interval.String(),
	}).Info("payment status checker started")

	return nil
}

// Stop halts the schedule; the returned context is done once an in-flight
// sweep finishes.
func (c *Checker) Stop() context.Context {
	c.logger.WithField("event", "checker_stopped").Info("payment status checker stopped")
	return c.cron.Stop()
}

// Sweep settles what it can of the pending orders. Failures on one order do
// not stop the sweep.
func (c *Checker) Sweep(ctx context.Context) {
	pending, err := c.orders.ListPending(ctx)
	if err != nil {
		c.logger.WithField("event", "sweep_list_error").WithError(err).Error("failed to list pending orders")
		return
	}

	for _, order := range pending {
		c.checkOrder(ctx, order)
	}
}

func (c *Checker) checkOrder(ctx context.Context, order domain.Order) {
	entry := logging.WithContext(logging.Context{
		UserID:    order.UserID,
		OrderID:   order.OrderID,
		PaymentID: order.PaymentID,
	})

	info, err := c.gateway.GetPayment(ctx, order.PaymentID)
	if err != nil {
		entry.WithField("event", "status_fetch_error").WithError(err).Warn("failed to fetch payment status")
		c.recheckLater(ctx, order)
		return
	}

	switch {
	case info.Status == payment.StatusSucceeded && info.Paid:
		c.settle(ctx, order, domain.StatusPaid,
			fmt.Sprintf("Ваш ID: %s\nСпасибо за подписку!", order.PaymentID))
	case info.Status == payment.StatusCanceled:
		c.settle(ctx, order, domain.StatusFailed,
			"Платеж не подтвержден. Пожалуйста, проверьте статус оплаты позже.")
	default:
		// Still in flight, or the gateway answered ambiguously. Recheck on
		// the next sweep rather than assume an outcome.
		entry.WithFields(logging.Fields{
			"event":  "payment_in_flight",
			"status": info.Status,
		}).Debug("payment not settled yet")
		c.recheckLater(ctx, order)
	}
}

// recheckLater spends one unit of the order's check budget, failing the order
// once the budget is gone.
func (c *Checker) recheckLater(ctx context.Context, order domain.Order) {
	if order.Checks+1 >= c.limit {
		c.settle(ctx, order, domain.StatusFailed,
			"Платеж не подтвержден. Пожалуйста, проверьте статус оплаты позже.")
		return
	}

	if err := c.orders.IncrementChecks(ctx, order.OrderID); err != nil {
		logging.WithContext(logging.Context{OrderID: order.OrderID}).
			WithField("event", "check_count_error").WithError(err).Error("failed to record status check")
	}
}

// settle transitions the order and sends its terminal message. When the
// transition reports the order already settled, the message belongs to
// whoever won the transition, so none is sent here.
func (c *Checker) settle(ctx context.Context, order domain.Order, status, text string) {
	entry := logging.WithContext(logging.Context{
		UserID:    order.UserID,
		OrderID:   order.OrderID,
		PaymentID: order.PaymentID,
	})

	if err := c.orders.MarkStatus(ctx, order.OrderID, status); err != nil {
		if errors.Is(err, domain.ErrAlreadyFinal) {
			return
		}
		entry.WithField("event", "status_update_error").WithError(err).Error("failed to update order status")
		return
	}

	entry.WithFields(logging.Fields{
		"event":  "order_settled",
		"status": status,
	}).Info("settled order")

	if err := c.sender.SendMessage(ctx, telegram.Outbound{
		ChatID: order.ChatID,
		Text:   text,
	}); err != nil {
		entry.WithField("event", "settle_notify_error").WithError(err).Error("failed to send settlement message")
	}
}
