package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hna-go/hnamon/internal/hna"
	"github.com/hna-go/hnamon/internal/schema"
)

// Event is one line of an event-fixture file: either a regular event
// (fields observed on entityID's current trace) or an action event
// (entityID crossing a hypernode edge). Exactly one of Fields or Action
// is populated, selected by Kind.
type Event struct {
	Kind     EventKind      `json:"kind"`
	EntityID string         `json:"entity_id"`
	Fields   schema.Record  `json:"fields,omitempty"`
	Action   string         `json:"action,omitempty"`
}

// EventKind distinguishes a regular event line from an action event line.
type EventKind string

const (
	KindRegular EventKind = "regular"
	KindAction  EventKind = "action"
)

// ReadEventsFromFile reads an event-fixture JSONL file: one JSON object per
// line, each decoding to an Event.
func ReadEventsFromFile(path string) ([]Event, error) {
	// #nosec G304 - controlled path from caller
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close JSONL file: %v\n", err)
		}
	}()
	return scanEvents(file)
}

// ReadEventsFromData reads event-fixture JSONL data already in memory.
func ReadEventsFromData(data []byte) ([]Event, error) {
	return scanEvents(bytes.NewReader(data))
}

func scanEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	// Increase buffer size to handle large JSONL lines (e.g. wide records).
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event at line %d: %w", lineNum, err)
		}
		if ev.EntityID == "" {
			return nil, fmt.Errorf("event at line %d has no entity_id", lineNum)
		}
		switch ev.Kind {
		case KindRegular, KindAction:
		default:
			return nil, fmt.Errorf("event at line %d has unknown kind %q", lineNum, ev.Kind)
		}
		events = append(events, ev)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan JSONL data: %w", err)
	}

	return events, nil
}

// Replay feeds a sequence of events, in order, into tree: regular events
// append fields to the issuing entity's current slice, action events drive
// a hypernode transition. Replay stops at the first error so a malformed
// fixture never leaves the tree in a partially-applied state for the
// triggering line.
func Replay(tree *hna.SlicesTree, events []Event) error {
	for i, ev := range events {
		var err error
		switch ev.Kind {
		case KindRegular:
			err = tree.RegularEvent(ev.EntityID, ev.Fields)
		case KindAction:
			err = tree.ActionEvent(ev.EntityID, hna.Action(ev.Action))
		}
		if err != nil {
			return fmt.Errorf("jsonl: replaying event %d (entity %q): %w", i, ev.EntityID, err)
		}
	}
	return nil
}
