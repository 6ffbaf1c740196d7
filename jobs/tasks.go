package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/richhabits/richhabits-os/internal/activity"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueLow carries housekeeping such as activity writes.
	QueueLow = "low"

	// TaskActivityRecord persists one activity entry.
	TaskActivityRecord = "activity:record"
	// TaskQuotesExpire moves sent quotes past their validity date to expired.
	TaskQuotesExpire = "quotes:expire"
)

// QuotesExpirePayload optionally pins the sweep's reference time. A zero time means "now".
type QuotesExpirePayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewActivityRecordTask constructs an Asynq task carrying e.
func NewActivityRecordTask(e activity.Entry) (*asynq.Task, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActivityRecord, data, asynq.Queue(QueueLow), asynq.MaxRetry(5)), nil
}

// NewQuotesExpireTask constructs the sweep task.
func NewQuotesExpireTask(payload QuotesExpirePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotesExpire, data, asynq.Queue(QueueDefault)), nil
}
