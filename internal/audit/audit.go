// Package audit publishes mutation events for external consumers. The change
// rows in storage are the durable audit trail; these events are best-effort
// fan-out for downstream systems.
package audit

import (
	"context"
	"time"
)

// Action identifies what mutated.
type Action string

const (
	ActionSetCreated     Action = "set.created"
	ActionVersionCreated Action = "set.version_created"
	ActionSetDeleted     Action = "set.deleted"
	ActionRestored       Action = "store.restored"
)

// Event is one mutation record.
type Event struct {
	ID                string    `json:"id"`
	Action            Action    `json:"action"`
	SetName           string    `json:"set_name,omitempty"`
	Version           int       `json:"version,omitempty"`
	ChangeDescription string    `json:"change_description,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Publisher emits events after a mutation commits. Implementations must not
// fail the mutation: publishing is fire-and-forget from the caller's view.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}
