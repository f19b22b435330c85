package telegram

import (
	"context"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_subscription_bot/internal/logging"
)

// defaultBackoff spaces fetch cycles after a failed or empty poll.
const defaultBackoff = time.Second

type updateFetcher interface {
	GetUpdates(ctx context.Context, offset int64) ([]models.Update, error)
}

// EventSink is the single dispatch entry point both update sources feed.
type EventSink interface {
	Dispatch(ctx context.Context, event Event)
}

// Poller runs the long-poll fetch loop and owns the update offset cursor.
// The cursor is the next update id to request; it advances exactly once per
// non-empty batch, to the highest observed id plus one, before the batch is
// handed downstream. Once advanced it never decreases, so an id acknowledged
// to the provider is never requested again even if handling fails.
type Poller struct {
	fetcher updateFetcher
	sink    EventSink
	logger  *logrus.Entry
	backoff time.Duration
	cursor  int64
}

// NewPoller constructs a Poller. The cursor starts unset; the first fetch
// omits the offset parameter.
func NewPoller(fetcher updateFetcher, sink EventSink, logger *logrus.Entry) *Poller {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Poller{
		fetcher: fetcher,
		sink:    sink,
		logger:  logger,
		backoff: defaultBackoff,
	}
}

// Cursor returns the next update id the poller will request; 0 means unset.
func (p *Poller) Cursor() int64 {
	return p.cursor
}

// Run polls for updates until the context is canceled. Fetch failures are
// logged and retried after a fixed backoff; they never stop the loop. An
// in-flight fetch is allowed to finish or time out before Run returns.
func (p *Poller) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.logger.WithField("event", "poll_start").Info("started long polling for updates")

	for {
		if ctx.Err() != nil {
			p.logger.WithField("event", "poll_stop").Info("long polling stopped")
			return
		}

		updates, err := p.fetcher.GetUpdates(ctx, p.cursor)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.WithField("event", "poll_error").WithError(err).Error("failed to fetch updates")
			}
			if !sleep(ctx, p.backoff) {
				p.logger.WithField("event", "poll_stop").Info("long polling stopped")
				return
			}
			continue
		}

		if len(updates) == 0 {
			if !sleep(ctx, p.backoff) {
				p.logger.WithField("event", "poll_stop").Info("long polling stopped")
				return
			}
			continue
		}

		// Advance before handoff: the provider treats the new offset as an
		// acknowledgment of the whole batch.
		p.cursor = updates[len(updates)-1].ID + 1

		p.logger.WithFields(logging.Fields{
			"event":       "updates_fetched",
			"count":       len(updates),
			"next_offset": p.cursor,
		}).Info("fetched update batch")

		for i := range updates {
			event, ok := NormalizeUpdate(&updates[i])
			if !ok {
				continue
			}
			p.sink.Dispatch(ctx, event)
		}
	}
}

// sleep waits for the duration or the context, whichever ends first, and
// reports whether the caller should keep running.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
