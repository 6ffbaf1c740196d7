package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/richhabits/richhabits-os/internal/activity"
	jobmetrics "github.com/richhabits/richhabits-os/internal/jobs"
)

// Enqueuer is the slice of asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ActivityEnqueuer is an activity.Recorder that defers the insert to the worker. When the queue is
// unreachable the entry is written through fallback instead of being lost.
type ActivityEnqueuer struct {
	client   Enqueuer
	fallback activity.Recorder
	logger   *slog.Logger
}

// NewActivityEnqueuer wires the enqueuer. fallback may be nil.
func NewActivityEnqueuer(client Enqueuer, fallback activity.Recorder, logger *slog.Logger) *ActivityEnqueuer {
	return &ActivityEnqueuer{client: client, fallback: fallback, logger: logger}
}

// Record enqueues e.
func (a *ActivityEnqueuer) Record(ctx context.Context, e activity.Entry) error {
	task, err := NewActivityRecordTask(e)
	if err != nil {
		return err
	}
	if _, err := a.client.EnqueueContext(ctx, task); err != nil {
		if a.fallback == nil {
			return err
		}
		a.logger.Warn("enqueue activity failed, writing inline",
			slog.String("entity_type", e.EntityType), slog.Int64("entity_id", e.EntityID), slog.Any("error", err))
		return a.fallback.Record(ctx, e)
	}
	return nil
}

// ActivityWriterJob drains TaskActivityRecord into the store.
type ActivityWriterJob struct {
	Store   activity.Recorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewActivityWriterJob wires the handler.
func NewActivityWriterJob(store activity.Recorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ActivityWriterJob {
	return &ActivityWriterJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle writes one entry. Malformed payloads are dropped without retry.
func (j *ActivityWriterJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("activity writer: handler not configured")
	}
	var e activity.Entry
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskActivityRecord)
	if err := j.Store.Record(ctx, e); err != nil {
		j.Logger.Error("write activity", slog.String("entity_type", e.EntityType), slog.Int64("entity_id", e.EntityID), slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}
