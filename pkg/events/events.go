// Package events defines the typed domain events distributed to dashboard
// streams. The same Event value is produced by emitters on the server and
// decoded by the client router.
package events

import (
	"encoding/json"
	"time"

	"github.com/agentstation/boardstream/pkg/errors"
)

// Type is the discriminant of an Event.
type Type string

// Event types. The set is closed; Valid rejects anything else.
const (
	ConnectionEstablished Type = "connection.established"

	TaskCreated       Type = "task.created"
	TaskUpdated       Type = "task.updated"
	TaskDeleted       Type = "task.deleted"
	TaskStatusChanged Type = "task.status_changed"

	CommentCreated Type = "comment.created"

	CronJobStarted   Type = "cron_job.started"
	CronJobCompleted Type = "cron_job.completed"
	CronJobFailed    Type = "cron_job.failed"

	ActivityCreated Type = "activity.created"
)

// Wildcard matches every event type in a subscription.
const Wildcard = "*"

var known = map[Type]struct{}{
	ConnectionEstablished: {},
	TaskCreated:           {},
	TaskUpdated:           {},
	TaskDeleted:           {},
	TaskStatusChanged:     {},
	CommentCreated:        {},
	CronJobStarted:        {},
	CronJobCompleted:      {},
	CronJobFailed:         {},
	ActivityCreated:       {},
}

// Valid reports whether t is one of the known event types.
func (t Type) Valid() bool {
	_, ok := known[t]
	return ok
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// Types returns every known event type.
func Types() []Type {
	return []Type{
		ConnectionEstablished,
		TaskCreated, TaskUpdated, TaskDeleted, TaskStatusChanged,
		CommentCreated,
		CronJobStarted, CronJobCompleted, CronJobFailed,
		ActivityCreated,
	}
}

// Event is an immutable domain event. Data holds the type-specific payload
// already encoded as JSON so every recipient sees the same bytes.
type Event struct {
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// New builds an event stamped with the current UTC time.
func New(t Type, data any) (Event, error) {
	return NewAt(t, time.Now(), data)
}

// NewAt builds an event with an explicit timestamp.
func NewAt(t Type, ts time.Time, data any) (Event, error) {
	if !t.Valid() {
		return Event{}, errors.NewValidationError("type", t, "unknown event type")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, errors.WrapValidation("data", err)
	}
	return Event{
		Type:      t,
		Timestamp: ts.UTC().Truncate(time.Millisecond),
		Data:      raw,
	}, nil
}

// WithID returns a copy of the event carrying a correlation id.
func (e Event) WithID(id string) Event {
	e.ID = id
	return e
}

// Validate checks an event received from an untrusted caller.
func (e Event) Validate() error {
	if !e.Type.Valid() {
		return errors.NewValidationError("type", e.Type, "unknown event type")
	}
	if e.Timestamp.IsZero() {
		return errors.NewValidationError("timestamp", nil, "timestamp is required")
	}
	return nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return errors.NewValidationError("data", nil, "event has no payload")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.WrapValidation("data", err)
	}
	return nil
}
