package eventbus

import (
	"context"
	"testing"
)

func TestLogHandlerHandlesLifecycleEvents(t *testing.T) {
	h := &LogHandler{}
	want := []EventType{EventSliceSpawned, EventSliceRetired, EventEntityDropped}
	got := h.Handles()
	if len(got) != len(want) {
		t.Fatalf("Handles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Handles()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	result := &Result{}
	if err := h.Handle(context.Background(), &Event{Type: EventSliceRetired, EntityID: "e1", Verdict: "True"}, result); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestAlertHandlerFlagsFalseVerdict(t *testing.T) {
	h := &AlertHandler{}
	result := &Result{}
	err := h.Handle(context.Background(), &Event{Type: EventSliceRetired, EntityID: "e1", State: "ShareLoc", Verdict: "False"}, result)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Reason == "" {
		t.Error("expected a non-empty Reason for a False verdict")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected exactly one warning, got %v", result.Warnings)
	}
}

func TestAlertHandlerIgnoresTrueVerdict(t *testing.T) {
	h := &AlertHandler{}
	result := &Result{}
	if err := h.Handle(context.Background(), &Event{Type: EventSliceRetired, Verdict: "True"}, result); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Reason != "" || len(result.Warnings) != 0 {
		t.Errorf("expected no reason/warnings for a True verdict, got %+v", result)
	}
}

func TestDefaultHandlersAreRegisteredInPriorityOrder(t *testing.T) {
	bus := New()
	for _, h := range DefaultHandlers() {
		bus.Register(h)
	}
	matched := bus.matchingHandlers(EventSliceRetired)
	if len(matched) != 2 {
		t.Fatalf("expected 2 handlers for SliceRetired, got %d", len(matched))
	}
	if matched[0].ID() != "log" || matched[1].ID() != "alert" {
		t.Errorf("expected log before alert, got %s then %s", matched[0].ID(), matched[1].ID())
	}
}
