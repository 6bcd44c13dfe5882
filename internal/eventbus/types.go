package eventbus

import (
	"encoding/json"
	"time"
)

// EventType discriminates the runtime occurrences a monitor daemon's event
// bus dispatches to handlers: the two kinds of input a slice tree consumes
// (regular, action) and the lifecycle notifications its scheduler raises
// as slices are spawned and retired.
type EventType string

const (
	EventRegular       EventType = "Regular"
	EventAction        EventType = "Action"
	EventSliceSpawned  EventType = "SliceSpawned"
	EventSliceRetired  EventType = "SliceRetired"
	EventEntityDropped EventType = "EntityDropped"
	EventStreamFinished EventType = "StreamFinished"
)

// Event represents a single occurrence flowing through the bus.
type Event struct {
	Type        EventType       `json:"type"`
	EntityID    string          `json:"entity_id,omitempty"`
	State       string          `json:"state,omitempty"`
	Action      string          `json:"action,omitempty"`
	Fields      json.RawMessage `json:"fields,omitempty"`
	Verdict     string          `json:"verdict,omitempty"`
	Raw         json.RawMessage `json:"-"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// IsEntityScopedEvent reports whether eventType carries a single entity's
// identity and should therefore be published to a subject scoped by that
// entity, so a consumer tracking one entity's slices never has to filter
// every other entity's traffic out of a shared feed.
func (t EventType) IsEntityScopedEvent() bool {
	switch t {
	case EventSliceRetired, EventEntityDropped:
		return true
	default:
		return false
	}
}

// Result aggregates handler responses for an event.
type Result struct {
	Suppress    bool     `json:"suppress,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}
