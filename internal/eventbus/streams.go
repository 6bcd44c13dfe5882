package eventbus

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

const (
	// StreamMonitorEvents is the JetStream stream for every event published
	// under SubjectMonitorPrefix: regular/action input events, slices
	// spawned, stream-finished notifications, and entity-scoped events that
	// carry no EntityID.
	StreamMonitorEvents = "MONITOR_EVENTS"

	// StreamEntityEvents is the JetStream stream for per-entity lifecycle
	// events published under SubjectEntityPrefix: slices retiring with a
	// verdict, entities dropped on an invalid transition.
	StreamEntityEvents = "ENTITY_EVENTS"

	// SubjectMonitorPrefix is the subject prefix SubjectForEvent uses for
	// every event type.
	SubjectMonitorPrefix = "monitor."

	// SubjectEntityPrefix is the subject prefix for entity-scoped events.
	SubjectEntityPrefix = "entities."
)

// SubjectForEvent returns the NATS subject for a given event type.
// Entity-scoped event types are published under SubjectForEntity instead
// once an EntityID is known; this is the fallback used when one isn't
// (diagnostic or aggregate publishing).
func SubjectForEvent(eventType EventType) string {
	return SubjectMonitorPrefix + string(eventType)
}

// SubjectForEntity returns the NATS subject for an entity-scoped event,
// letting a consumer subscribe to only the entities it cares about
// instead of the whole monitor feed.
func SubjectForEntity(eventType EventType, entityID string) string {
	return SubjectEntityPrefix + entityID + "." + string(eventType)
}

// EnsureStreams creates the required JetStream streams if they don't
// already exist.
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(StreamMonitorEvents); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     StreamMonitorEvents,
			Subjects: []string{SubjectMonitorPrefix + ">"},
			Storage:  nats.FileStorage,
			MaxMsgs:  10000,
			MaxBytes: 100 << 20,
		})
		if err != nil {
			return fmt.Errorf("create %s stream: %w", StreamMonitorEvents, err)
		}
	}

	if _, err := js.StreamInfo(StreamEntityEvents); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     StreamEntityEvents,
			Subjects: []string{SubjectEntityPrefix + ">"},
			Storage:  nats.FileStorage,
			MaxMsgs:  10000,
			MaxBytes: 100 << 20,
		})
		if err != nil {
			return fmt.Errorf("create %s stream: %w", StreamEntityEvents, err)
		}
	}

	return nil
}
