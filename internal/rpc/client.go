package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ClientVersion is the client's version string; unlike ServerVersion,
// nothing in cmd/hnamon overrides it.
var ClientVersion = "0.0.0"

// Client is a connection to a running daemon's RPC socket.
type Client struct {
	conn       net.Conn
	socketPath string
	timeout    time.Duration
}

// dialMaxElapsed bounds how long Dial's reconnect loop retries a daemon
// that is still finishing startup (building its BDD plans, opening its
// event-fixture watch) before giving up.
const dialMaxElapsed = 10 * time.Second

// Dial connects to the daemon's socket, retrying with exponential backoff
// while the socket doesn't exist or refuses connections yet -- a daemon
// freshly spawned by `cmd/hnamon daemon` may still be building its BDD
// plans when the client's first dial attempt lands.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var conn net.Conn
	op := func() error {
		c, err := dialRPC(socketPath, 500*time.Millisecond)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = dialMaxElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDaemonUnavailable, err)
	}

	return &Client{conn: conn, socketPath: socketPath, timeout: 30 * time.Second}, nil
}

// Close releases the client's connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Execute sends a single request and returns the daemon's response.
// args is marshaled to JSON as the request's Args payload; pass nil for
// operations that take none.
func (c *Client) Execute(operation string, args any) (*Response, error) {
	var argsJSON json.RawMessage
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("rpc: marshaling args: %w", err)
		}
		argsJSON = encoded
	}

	req := Request{Operation: operation, Args: argsJSON}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshaling request: %w", err)
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("rpc: setting deadline: %w", err)
		}
	}

	writer := bufio.NewWriter(c.conn)
	if _, err := writer.Write(reqJSON); err != nil {
		return nil, fmt.Errorf("rpc: writing request: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return nil, fmt.Errorf("rpc: writing newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("rpc: flushing request: %w", err)
	}

	reader := bufio.NewReader(c.conn)
	respLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("rpc: reading response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return nil, fmt.Errorf("rpc: unmarshaling response: %w", err)
	}
	if !resp.Success {
		return &resp, fmt.Errorf("rpc: operation %q failed: %s", operation, resp.Error)
	}
	return &resp, nil
}

// Ping verifies the daemon is alive and responding.
func (c *Client) Ping() error {
	_, err := c.Execute(OpPing, nil)
	return err
}

// Status retrieves the daemon's current status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.Execute(OpStatus, nil)
	if err != nil {
		return nil, err
	}
	var status StatusResponse
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("rpc: unmarshaling status: %w", err)
	}
	return &status, nil
}

// RegularEvent submits a regular event for entityID.
func (c *Client) RegularEvent(args RegularEventArgs) error {
	_, err := c.Execute(OpRegularEvent, args)
	return err
}

// ActionEvent submits an action event for entityID.
func (c *Client) ActionEvent(args ActionEventArgs) error {
	_, err := c.Execute(OpActionEvent, args)
	return err
}

// Finish signals the daemon that no further events will ever arrive.
func (c *Client) Finish() error {
	_, err := c.Execute(OpFinish, nil)
	return err
}

// Verdict retrieves the tree's current verdict.
func (c *Client) Verdict() (*VerdictResponse, error) {
	resp, err := c.Execute(OpVerdict, nil)
	if err != nil {
		return nil, err
	}
	var verdict VerdictResponse
	if err := json.Unmarshal(resp.Data, &verdict); err != nil {
		return nil, fmt.Errorf("rpc: unmarshaling verdict: %w", err)
	}
	return &verdict, nil
}

// Shutdown asks the daemon to exit after responding.
func (c *Client) Shutdown() error {
	_, err := c.Execute(OpShutdown, nil)
	return err
}
