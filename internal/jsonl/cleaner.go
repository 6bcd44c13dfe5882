// Package jsonl reads and cleans event-fixture files: the JSONL streams
// used to replay a recorded run through a monitor without a live producer.
package jsonl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hna-go/hnamon/internal/hna"
)

// CleanerOptions controls how the cleaner processes an event fixture.
type CleanerOptions struct {
	// RemoveConsecutiveDuplicates drops an event whose kind, action and
	// field values equal those of the immediately preceding event for the
	// same entity.
	RemoveConsecutiveDuplicates bool

	// RemoveTestPollution removes events from entities carrying a
	// scratch/test-only id prefix.
	RemoveTestPollution bool

	// RepairUndeclaredActions drops action events whose action the
	// automaton spec doesn't declare on any edge.
	RepairUndeclaredActions bool

	// Verbose enables detailed output.
	Verbose bool
}

// DefaultCleanerOptions returns a CleanerOptions with all cleaning enabled.
func DefaultCleanerOptions() CleanerOptions {
	return CleanerOptions{
		RemoveConsecutiveDuplicates: true,
		RemoveTestPollution:         true,
		RepairUndeclaredActions:     true,
		Verbose:                     false,
	}
}

// RejectedEvent tracks a single rejected event with the reason for
// rejection.
type RejectedEvent struct {
	Event  Event
	Reason string
}

// CleanResult contains statistics about the cleaning operation.
type CleanResult struct {
	OriginalCount int

	DuplicateCount int

	TestPollutionCount int

	UndeclaredActionCount int

	FinalCount int

	RejectedDuplicates      []*RejectedEvent
	RejectedTestPollution   []*RejectedEvent
	RejectedUndeclaredActions []*RejectedEvent
}

// CleanEvents applies all cleaning steps to an event-fixture stream. spec
// is consulted only when opts.RepairUndeclaredActions is set; pass nil to
// skip action-declaration checking.
func CleanEvents(events []Event, spec *hna.Spec, opts CleanerOptions) (*CleanResult, []Event, error) {
	result := &CleanResult{
		OriginalCount:             len(events),
		RejectedDuplicates:        []*RejectedEvent{},
		RejectedTestPollution:     []*RejectedEvent{},
		RejectedUndeclaredActions: []*RejectedEvent{},
	}

	cleaned := events

	if opts.RemoveConsecutiveDuplicates {
		var rejected []*RejectedEvent
		cleaned, rejected = dedupeConsecutive(cleaned)
		result.DuplicateCount = len(rejected)
		result.RejectedDuplicates = rejected
	}

	if opts.RemoveTestPollution {
		var rejected []*RejectedEvent
		cleaned, rejected = filterTestPollution(cleaned)
		result.TestPollutionCount = len(rejected)
		result.RejectedTestPollution = rejected
	}

	if opts.RepairUndeclaredActions && spec != nil {
		var rejected []*RejectedEvent
		cleaned, rejected = repairUndeclaredActions(cleaned, spec)
		result.UndeclaredActionCount = len(rejected)
		result.RejectedUndeclaredActions = rejected
	}

	result.FinalCount = len(cleaned)

	return result, cleaned, nil
}

// dedupeConsecutive drops an event that repeats, field-for-field, the
// immediately preceding event recorded for the same entity -- the fixture
// equivalent of a producer that retried a send and got recorded twice.
func dedupeConsecutive(events []Event) ([]Event, []*RejectedEvent) {
	last := make(map[string]Event)
	cleaned := make([]Event, 0, len(events))
	rejected := make([]*RejectedEvent, 0)

	for _, ev := range events {
		if prev, ok := last[ev.EntityID]; ok && sameEvent(prev, ev) {
			rejected = append(rejected, &RejectedEvent{
				Event:  ev,
				Reason: fmt.Sprintf("repeats the previous event recorded for entity %s", ev.EntityID),
			})
			continue
		}
		last[ev.EntityID] = ev
		cleaned = append(cleaned, ev)
	}

	return cleaned, rejected
}

func sameEvent(a, b Event) bool {
	if a.Kind != b.Kind || a.Action != b.Action || len(a.Fields) != len(b.Fields) {
		return false
	}
	for k, v := range a.Fields {
		if bv, ok := b.Fields[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// testPrefixes mark entity ids known to be scratch data from development
// fixtures rather than a recorded run worth replaying.
var testPrefixes = []string{"test-", "tmp-", "temp-", "scratch-", "baseline-"}

// filterTestPollution removes events from entities whose id carries a
// known scratch/test prefix.
func filterTestPollution(events []Event) ([]Event, []*RejectedEvent) {
	cleaned := make([]Event, 0, len(events))
	rejected := make([]*RejectedEvent, 0)

	for _, ev := range events {
		prefix := matchingTestPrefix(ev.EntityID)
		if prefix == "" {
			cleaned = append(cleaned, ev)
			continue
		}
		rejected = append(rejected, &RejectedEvent{
			Event:  ev,
			Reason: fmt.Sprintf("entity id matches test prefix %q", prefix),
		})
	}

	return cleaned, rejected
}

func matchingTestPrefix(entityID string) string {
	lower := strings.ToLower(entityID)
	for _, prefix := range testPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return prefix
		}
	}
	return ""
}

// repairUndeclaredActions drops action events naming an action no edge in
// spec declares -- the event-fixture analogue of a dependency pointing to
// an issue that no longer exists.
func repairUndeclaredActions(events []Event, spec *hna.Spec) ([]Event, []*RejectedEvent) {
	declared := make(map[string]bool)
	for _, a := range spec.Actions() {
		declared[string(a)] = true
	}

	cleaned := make([]Event, 0, len(events))
	rejected := make([]*RejectedEvent, 0)

	for _, ev := range events {
		if ev.Kind == KindAction && !declared[ev.Action] {
			rejected = append(rejected, &RejectedEvent{
				Event:  ev,
				Reason: fmt.Sprintf("action %q is not declared on any edge", ev.Action),
			})
			continue
		}
		cleaned = append(cleaned, ev)
	}

	return cleaned, rejected
}

// HasRejections reports whether any cleaning phase removed an event.
func (r *CleanResult) HasRejections() bool {
	return len(r.RejectedDuplicates) > 0 ||
		len(r.RejectedTestPollution) > 0 ||
		len(r.RejectedUndeclaredActions) > 0
}

// Summary returns a human-readable summary of the cleaning run.
func (r *CleanResult) Summary() string {
	lines := []string{
		fmt.Sprintf("event fixture cleaning report (%d events in, %d out)", r.OriginalCount, r.FinalCount),
	}
	if r.DuplicateCount > 0 {
		lines = append(lines, fmt.Sprintf("  consecutive duplicates removed: %d", r.DuplicateCount))
	}
	if r.TestPollutionCount > 0 {
		lines = append(lines, fmt.Sprintf("  test-pollution events removed: %d", r.TestPollutionCount))
	}
	if r.UndeclaredActionCount > 0 {
		lines = append(lines, fmt.Sprintf("  undeclared-action events removed: %d", r.UndeclaredActionCount))
	}
	if !r.HasRejections() {
		lines = append(lines, "  no issues found")
	}
	return strings.Join(lines, "\n")
}

// SaveRejectionManifest writes every rejected event to a JSONL file for an
// audit trail, one JSON object per line carrying the event and the reason
// it was dropped.
func SaveRejectionManifest(dir string, result *CleanResult) error {
	if dir == "" {
		return fmt.Errorf("jsonl: rejection manifest directory not specified")
	}

	manifestPath := filepath.Join(dir, "cleaning-rejects.jsonl")
	file, err := os.Create(manifestPath) // #nosec G304 - dir from app context
	if err != nil {
		return fmt.Errorf("failed to create rejection manifest: %w", err)
	}
	defer file.Close()

	all := append(append(append([]*RejectedEvent{}, result.RejectedDuplicates...),
		result.RejectedTestPollution...), result.RejectedUndeclaredActions...)

	for _, r := range all {
		line, err := marshalEventWithReason(r.Event, r.Reason)
		if err != nil {
			continue
		}
		if _, err := file.WriteString(line + "\n"); err != nil {
			return err
		}
	}

	return nil
}

func marshalEventWithReason(ev Event, reason string) (string, error) {
	wrapper := map[string]any{
		"event":            ev,
		"rejection_reason": reason,
		"cleaned_at":       time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(wrapper)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
