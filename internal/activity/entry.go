// Package activity records and queries the per-entity activity trail.
package activity

import (
	"context"
	"encoding/json"
	"time"
)

// Actions written to the trail.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionStatusChanged = "status_changed"
	ActionArchived      = "archived"
	ActionDeleted       = "deleted"
	ActionPayment       = "payment_recorded"
	ActionItemAdded     = "item_added"
	ActionItemUpdated   = "item_updated"
	ActionItemRemoved   = "item_removed"
)

// Entry is one activity record.
type Entry struct {
	ID            int64           `json:"id,omitempty"`
	EntityType    string          `json:"entity_type"`
	EntityID      int64           `json:"entity_id"`
	Action        string          `json:"action"`
	UserID        int64           `json:"user_id"`
	PreviousState json.RawMessage `json:"previous_state,omitempty"`
	NewState      json.RawMessage `json:"new_state,omitempty"`
	At            time.Time       `json:"at"`
}

// Recorder is the activity log collaborator used by domain services.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// New builds an entry, encoding the before and after snapshots. Nil snapshots are left empty.
func New(entityType string, entityID int64, action string, userID int64, previous, next any) Entry {
	return Entry{
		EntityType:    entityType,
		EntityID:      entityID,
		Action:        action,
		UserID:        userID,
		PreviousState: snapshot(previous),
		NewState:      snapshot(next),
		At:            time.Now().UTC(),
	}
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// Filter narrows a trail query.
type Filter struct {
	EntityType string
	EntityID   int64
	UserID     int64
	Page       int
	PageSize   int
}

// PagingInfo describes a trail page.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}

// Result is one page of the trail.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
