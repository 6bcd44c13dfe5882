// Package rpc is the daemon protocol: newline-delimited JSON requests and
// responses exchanged with the running monitor daemon over a Unix domain
// socket, so a short-lived CLI invocation can submit events and read
// verdicts without paying the cost of rebuilding the BDD plans and
// automaton spec on every call.
package rpc

import (
	"encoding/json"

	"github.com/hna-go/hnamon/internal/schema"
)

// Operation names for all daemon RPC calls.
const (
	OpPing         = "ping"
	OpStatus       = "status"
	OpRegularEvent = "regular_event"
	OpActionEvent  = "action_event"
	OpFinish       = "finish"
	OpVerdict      = "verdict"
	OpShutdown     = "shutdown"
)

// Request is a single RPC call from client to daemon.
type Request struct {
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Response is the daemon's reply to a Request.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PingResponse is the response payload for OpPing.
type PingResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// StatusResponse is the response payload for OpStatus.
type StatusResponse struct {
	Version       string  `json:"version"`
	SessionID     string  `json:"session_id"`
	SocketPath    string  `json:"socket_path"`
	PID           int     `json:"pid"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	SliceCount    int     `json:"slice_count"`
	LiveCount     int     `json:"live_count"`
}

// RegularEventArgs is the argument payload for OpRegularEvent.
type RegularEventArgs struct {
	EntityID string        `json:"entity_id"`
	Fields   schema.Record `json:"fields"`
}

// ActionEventArgs is the argument payload for OpActionEvent.
type ActionEventArgs struct {
	EntityID string `json:"entity_id"`
	Action   string `json:"action"`
}

// FinishArgs is the (empty) argument payload for OpFinish.
type FinishArgs struct{}

// VerdictArgs is the argument payload for OpVerdict.
type VerdictArgs struct{}

// SliceVerdict reports one slice's current status for OpVerdict.
type SliceVerdict struct {
	NodeID  string `json:"node_id"`
	State   string `json:"state"`
	Verdict string `json:"verdict"` // "TRUE", "FALSE", or "UNKNOWN"
	Retired bool   `json:"retired"`
}

// VerdictResponse is the response payload for OpVerdict.
type VerdictResponse struct {
	Overall string         `json:"overall"` // atommon.Verdict.String(), the tree-wide acceptance verdict
	Slices  []SliceVerdict `json:"slices"`
}
