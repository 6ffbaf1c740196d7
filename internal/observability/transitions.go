package observability

import (
	"context"
	"encoding/json"

	"github.com/richhabits/richhabits-os/internal/activity"
)

// TransitionRecorder decorates an activity.Recorder and counts entries whose snapshots show a status
// change. The count happens only after the inner recorder accepted the entry.
type TransitionRecorder struct {
	next    activity.Recorder
	metrics *Metrics
}

// CountTransitions wraps next. With nil metrics next is returned unchanged.
func (m *Metrics) CountTransitions(next activity.Recorder) activity.Recorder {
	if m == nil {
		return next
	}
	return &TransitionRecorder{next: next, metrics: m}
}

// Record forwards e and counts a status edge when one is present.
func (t *TransitionRecorder) Record(ctx context.Context, e activity.Entry) error {
	if err := t.next.Record(ctx, e); err != nil {
		return err
	}
	from, to := statusOf(e.PreviousState), statusOf(e.NewState)
	if from != "" && to != "" && from != to {
		t.metrics.transitions.WithLabelValues(e.EntityType, from, to).Inc()
	}
	return nil
}

func statusOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var snap struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return ""
	}
	return snap.Status
}
