package eventbus

import "testing"

func TestSubjectForEventUsesMonitorPrefix(t *testing.T) {
	got := SubjectForEvent(EventRegular)
	want := "monitor.Regular"
	if got != want {
		t.Errorf("SubjectForEvent(Regular) = %q, want %q", got, want)
	}
}

func TestSubjectForEntityScopesByEntityID(t *testing.T) {
	got := SubjectForEntity(EventSliceRetired, "e1")
	want := "entities.e1.SliceRetired"
	if got != want {
		t.Errorf("SubjectForEntity = %q, want %q", got, want)
	}
}

func TestIsEntityScopedEvent(t *testing.T) {
	scoped := []EventType{EventSliceRetired, EventEntityDropped}
	for _, et := range scoped {
		if !et.IsEntityScopedEvent() {
			t.Errorf("expected %s.IsEntityScopedEvent() = true", et)
		}
	}
	unscoped := []EventType{EventRegular, EventAction, EventSliceSpawned, EventStreamFinished}
	for _, et := range unscoped {
		if et.IsEntityScopedEvent() {
			t.Errorf("expected %s.IsEntityScopedEvent() = false", et)
		}
	}
}
