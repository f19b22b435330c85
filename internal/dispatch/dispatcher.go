// Package dispatch routes normalized events to command handlers.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_subscription_bot/internal/logging"
	"tg_subscription_bot/internal/telegram"
)

// Handler is one unit of command logic bound to a routing rule.
type Handler interface {
	Handle(ctx context.Context, event telegram.Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event telegram.Event) error

// Handle invokes the function.
func (f HandlerFunc) Handle(ctx context.Context, event telegram.Event) error {
	return f(ctx, event)
}

// Dispatcher resolves each event to exactly one handler: the prefix rule is
// checked first, then the exact-match table, then the fallback. Handler
// failures (errors and panics) are contained at this boundary so one bad
// handler cannot stop update ingestion.
type Dispatcher struct {
	exact         map[string]Handler
	prefix        string
	prefixHandler Handler
	fallback      Handler
	logger        *logrus.Entry
}

// New constructs an empty Dispatcher; routes are registered at startup.
func New(logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dispatcher{
		exact:  make(map[string]Handler),
		logger: logger,
	}
}

// Register binds a handler to an exact command text.
func (d *Dispatcher) Register(text string, handler Handler) {
	d.exact[text] = handler
}

// RegisterPrefix binds a handler to all texts starting with the given prefix.
// The prefix rule wins over exact matches.
func (d *Dispatcher) RegisterPrefix(prefix string, handler Handler) {
	d.prefix = prefix
	d.prefixHandler = handler
}

// RegisterFallback binds the handler invoked when no rule matches.
func (d *Dispatcher) RegisterFallback(handler Handler) {
	d.fallback = handler
}

// Dispatch routes one event to its handler. It never panics and never
// returns an error: failures are logged with the event identifiers and
// swallowed so the caller's ingestion loop continues unaffected.
func (d *Dispatcher) Dispatch(ctx context.Context, event telegram.Event) {
	if ctx == nil {
		ctx = context.Background()
	}

	handler := d.resolve(event.Text)
	if handler == nil {
		d.logger.WithFields(logging.Fields{
			"event":   "dispatch_unrouted",
			"chat_id": event.ChatID,
			"text":    event.Text,
		}).Warn("no handler registered for event")
		return
	}

	if err := invoke(ctx, handler, event); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":      "handler_error",
			"chat_id":    event.ChatID,
			"user_id":    event.UserID,
			"message_id": event.MessageID,
			"text":       event.Text,
		}).WithError(err).Error("command handler failed")
	}
}

func (d *Dispatcher) resolve(text string) Handler {
	if d.prefixHandler != nil && d.prefix != "" && strings.HasPrefix(text, d.prefix) {
		return d.prefixHandler
	}
	if handler, ok := d.exact[text]; ok {
		return handler
	}
	return d.fallback
}

// invoke runs the handler, converting a panic into an error so it stops at
// the dispatch boundary.
func invoke(ctx context.Context, handler Handler, event telegram.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler.Handle(ctx, event)
}
