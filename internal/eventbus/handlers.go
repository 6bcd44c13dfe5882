package eventbus

import (
	"context"
	"log"
)

// LogHandler logs every slice lifecycle transition at priority 10 (runs
// before anything else, so its record of what happened is never shadowed
// by a later handler's suppression).
type LogHandler struct{}

func (h *LogHandler) ID() string          { return "log" }
func (h *LogHandler) Priority() int       { return 10 }
func (h *LogHandler) Handles() []EventType {
	return []EventType{EventSliceSpawned, EventSliceRetired, EventEntityDropped}
}

func (h *LogHandler) Handle(_ context.Context, event *Event, _ *Result) error {
	switch event.Type {
	case EventSliceSpawned:
		log.Printf("eventbus: entity %s slice spawned in state %s", event.EntityID, event.State)
	case EventSliceRetired:
		log.Printf("eventbus: entity %s slice in state %s retired %s", event.EntityID, event.State, event.Verdict)
	case EventEntityDropped:
		log.Printf("eventbus: entity %s dropped on invalid transition %s from %s", event.EntityID, event.Action, event.State)
	}
	return nil
}

// AlertHandler flags a FALSE verdict as an alert-worthy event, priority 20
// (runs after logging, so the log line for a violation is always present
// even if a later handler suppresses the alert).
type AlertHandler struct{}

func (h *AlertHandler) ID() string           { return "alert" }
func (h *AlertHandler) Priority() int        { return 20 }
func (h *AlertHandler) Handles() []EventType { return []EventType{EventSliceRetired} }

func (h *AlertHandler) Handle(_ context.Context, event *Event, result *Result) error {
	if event.Verdict != "False" {
		return nil
	}
	result.Reason = "entity " + event.EntityID + " violated its hypernode invariant in state " + event.State
	result.Warnings = append(result.Warnings, result.Reason)
	return nil
}

// DefaultHandlers returns the standard set of event bus handlers for
// daemon registration.
func DefaultHandlers() []Handler {
	return []Handler{
		&LogHandler{},
		&AlertHandler{},
	}
}
