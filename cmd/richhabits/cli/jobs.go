package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hibiken/asynq"

	"github.com/richhabits/richhabits-os/jobs"
)

// Enqueuer submits tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Inspector reads queue state.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis options.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	client := asynq.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{client, inspector}}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, cl := range c.closers {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name with its default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var (
		task *asynq.Task
		err  error
	)
	switch name {
	case jobs.TaskQuotesExpire:
		task, err = jobs.NewQuotesExpireTask(jobs.QuotesExpirePayload{})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Failed    int
}

// InspectQueues reports metrics for every queue the worker consumes.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, 2)
	for _, queue := range []string{jobs.QueueDefault, jobs.QueueLow} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := c.inspector.GetQueueInfo(queue)
		if err != nil {
			return nil, fmt.Errorf("jobs cli: queue %s: %w", queue, err)
		}
		stats := QueueStats{Queue: queue}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Failed = info.Failed
		}
		out = append(out, stats)
	}
	return out, nil
}

// Run executes "jobs trigger <name>" or "jobs stats" and prints the outcome to w.
func (c *JobsCLI) Run(ctx context.Context, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: jobs trigger <name> | jobs stats")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: jobs trigger <name>")
		}
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return err
	case "stats":
		stats, err := c.InspectQueues(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tFAILED")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Failed)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("jobs cli: unknown command %q", args[0])
	}
}
