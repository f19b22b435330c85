// Package menu provides the static command handlers: main menu, help,
// profile, payment menu, payment history, and the unknown-command fallback.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_subscription_bot/internal/domain"
	"tg_subscription_bot/internal/logging"
	"tg_subscription_bot/internal/telegram"
)

// Command texts routed to the handlers in this package. "Главное меню" and
// "Другие функции" are bound to the initial menu as well: re-entry is
// idempotent, not a distinct state.
const (
	CmdStart       = "/start"
	CmdHelp        = "/help"
	CmdProfile     = "Мой профиль"
	CmdPay         = "Оплатить подписку"
	CmdHistory     = "История платежей"
	CmdUnsubscribe = "Отписаться от бота"
	CmdMainMenu    = "Главное меню"
	CmdOther       = "Другие функции"
)

const unknownCommandText = "Извините, не могу понять вашу команду. Пожалуйста, попробуйте другую команду."

const helpText = `<b>Справочная информация о командах бота</b>

Команда <code>/help</code> выводит справочную информацию о доступных командах бота и их использовании.

<b>Доступные команды:</b>

1. <i>Мой профиль:</i> Просмотреть информацию о своем профиле.
2. <i>Оплатить подписку:</i> Перейти к оплате подписки на сервис.
3. <i>История платежей:</i> Просмотреть историю всех прошлых платежей.
4. <i>Отписаться от бота:</i> Отменить подписку и отписаться от бота.
5. <i>Главное меню:</i> Вернуться в главное меню.
6. <i>Другие функции:</i> Посмотреть другие доступные функции (в разработке).`

// Sender delivers outbound messages through the provider.
type Sender interface {
	SendMessage(ctx context.Context, msg telegram.Outbound) error
}

type orderLister interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

// Handlers bundles the static command handlers and their dependencies.
type Handlers struct {
	sender Sender
	orders orderLister
	logger *logrus.Entry
}

// NewHandlers constructs the static handler set.
func NewHandlers(sender Sender, orders orderLister, logger *logrus.Entry) *Handlers {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handlers{
		sender: sender,
		orders: orders,
		logger: logger,
	}
}

// Initial sends the greeting and the main reply keyboard. It serves /start
// and the main-menu and other-features re-entry commands alike.
func (h *Handlers) Initial(ctx context.Context, event telegram.Event) error {
	greeting := fmt.Sprintf("Привет, %s!\n\n"+
		"Я - ваш персональный бот. Вот что я могу:\n\n"+
		"- Показать ваш профиль\n"+
		"- Помочь вам с оплатой подписки\n"+
		"- Показать историю ваших платежей по подпискам\n"+
		"- И многое другое (в разработке)", event.Username)

	return h.sender.SendMessage(ctx, telegram.Outbound{
		ChatID:      event.ChatID,
		Text:        greeting,
		ReplyMarkup: mainKeyboard(),
	})
}

// Help sends the HTML-formatted command reference.
func (h *Handlers) Help(ctx context.Context, event telegram.Event) error {
	return h.sender.SendMessage(ctx, telegram.Outbound{
		ChatID:    event.ChatID,
		Text:      helpText,
		ParseMode: models.ParseModeHTML,
	})
}

// Profile sends the profile menu stub.
func (h *Handlers) Profile(ctx context.Context, event telegram.Event) error {
	return h.sender.SendMessage(ctx, telegram.Outbound{
		ChatID: event.ChatID,
		Text:   "Это меню профиля. В разработке.",
	})
}

// PaymentMenu offers the tariff-selection keyboard.
func (h *Handlers) PaymentMenu(ctx context.Context, event telegram.Event) error {
	rows := make([][]models.KeyboardButton, 0, len(domain.Tariffs)+1)
	for _, tariff := range domain.Tariffs {
		rows = append(rows, []models.KeyboardButton{{Text: tariff.Button()}})
	}
	rows = append(rows, []models.KeyboardButton{{Text: CmdMainMenu}})

	return h.sender.SendMessage(ctx, telegram.Outbound{
		ChatID: event.ChatID,
		Text:   "Добро пожаловать! Выберите тариф для оплаты.",
		ReplyMarkup: &models.ReplyKeyboardMarkup{
			Keyboard:       rows,
			ResizeKeyboard: true,
		},
	})
}

// History lists the user's past orders with their payment status.
func (h *Handlers) History(ctx context.Context, event telegram.Event) error {
	if h.orders == nil {
		return errors.New("order lister is not configured")
	}

	orders, err := h.orders.ListByUser(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	if len(orders) == 0 {
		return h.sender.SendMessage(ctx, telegram.Outbound{
			ChatID: event.ChatID,
			Text:   "У вас пока нет платежей.",
		})
	}

	var b strings.Builder
	b.WriteString("История платежей:\n")
	for _, order := range orders {
		fmt.Fprintf(&b, "\nЗаказ %d: %s — %s", order.OrderID, order.Tariff, statusText(order.Status))
	}

	return h.sender.SendMessage(ctx, telegram.Outbound{
		ChatID: event.ChatID,
		Text:   b.String(),
	})
}

// Unsubscribe sends the unsubscribe stub.
func (h *Handlers) Unsubscribe(ctx context.Context, event telegram.Event) error {
	return h.sender.SendMessage(ctx, telegram.Outbound{
		ChatID: event.ChatID,
		Text:   "Отписка от бота. В разработке.",
	})
}

// Unknown is the fallback for unrecognized commands.
func (h *Handlers) Unknown(ctx context.Context, event telegram.Event) error {
	h.logger.WithFields(logging.Fields{
		"event":   "unknown_command",
		"chat_id": event.ChatID,
		"text":    event.Text,
	}).Info("received unrecognized command")

	return h.sender.SendMessage(ctx, telegram.Outbound{
		ChatID: event.ChatID,
		Text:   unknownCommandText,
	})
}

func mainKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: CmdProfile}},
			{{Text: CmdPay}, {Text: CmdHistory}},
			{{Text: CmdUnsubscribe}},
			{{Text: CmdOther}},
		},
		ResizeKeyboard: true,
	}
}

func statusText(status string) string {
	switch status {
	case domain.StatusPaid:
		return "оплачен"
	case domain.StatusFailed:
		return "не подтвержден"
	default:
		return "ожидает оплаты"
	}
}
