package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/richhabits/richhabits-os/internal/jobs"
)

// QuoteExpirer moves stale sent quotes to expired and reports how many changed.
type QuoteExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// QuoteExpiryJob runs the expiry sweep.
type QuoteExpiryJob struct {
	Quotes  QuoteExpirer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewQuoteExpiryJob wires dependencies for the sweep handler.
func NewQuoteExpiryJob(quotes QuoteExpirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteExpiryJob {
	return &QuoteExpiryJob{
		Quotes:  quotes,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskQuotesExpire tasks.
func (j *QuoteExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Quotes == nil {
		return errors.New("quote expiry: handler not configured")
	}
	var payload QuotesExpirePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.clock()
	}

	tracker := j.Metrics.Track(TaskQuotesExpire)
	expired, err := j.Quotes.ExpireStale(ctx, asOf)
	if err != nil {
		j.Logger.Error("expire quotes", slog.Time("as_of", asOf), slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddProcessed(TaskQuotesExpire, expired)
	j.Logger.Info("quote expiry sweep finished", slog.Int("expired", expired), slog.Time("as_of", asOf))
	return tracker.End(nil)
}
