package eventbus

import (
	"context"
	"testing"
)

func TestExternalHandlerRunsCommandAndParsesResult(t *testing.T) {
	cfg := ExternalHandlerConfig{
		ID:      "reactor",
		Command: `echo '{"warnings":["seen"]}'`,
		Events:  []string{string(EventSliceRetired)},
	}
	h := NewExternalHandler(cfg)
	if h.Priority() != 50 {
		t.Errorf("expected default priority 50, got %d", h.Priority())
	}

	result := &Result{}
	ev := &Event{Type: EventSliceRetired, EntityID: "e1", Verdict: "False"}
	if err := h.Handle(context.Background(), ev, result); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(result.Warnings) != 1 || result.Warnings[0] != "seen" {
		t.Errorf("expected warnings [seen], got %v", result.Warnings)
	}
}

func TestExternalHandlerReportsNonZeroExit(t *testing.T) {
	cfg := ExternalHandlerConfig{
		ID:      "failer",
		Command: `echo boom 1>&2; exit 1`,
		Events:  []string{string(EventEntityDropped)},
	}
	h := NewExternalHandler(cfg)
	result := &Result{}
	err := h.Handle(context.Background(), &Event{Type: EventEntityDropped}, result)
	if err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}
}

func TestExternalHandlerIgnoresNonJSONStdout(t *testing.T) {
	cfg := ExternalHandlerConfig{ID: "noisy", Command: `echo "just a log line"`, Events: []string{string(EventRegular)}}
	h := NewExternalHandler(cfg)
	result := &Result{}
	if err := h.Handle(context.Background(), &Event{Type: EventRegular}, result); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Suppress {
		t.Error("plain-text stdout should not be parsed into the result")
	}
}
