package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hna-go/hnamon/internal/hna"
)

// ServerVersion is the version of this RPC server, overridden by the
// daemon's own main package at startup.
var ServerVersion = "0.0.0"

// Server is the daemon-side RPC endpoint: it owns the live SlicesTree and
// answers requests from short-lived CLI invocations over a Unix socket.
type Server struct {
	socketPath string
	tree       *hna.SlicesTree

	// sessionID is a daemon-lifetime-stable external handle, distinct
	// from any internal slice id: it survives across the tree's slices
	// retiring and new ones spawning, so a client can tell "same daemon
	// process, tree has moved on" apart from "different daemon process".
	sessionID string

	mu       sync.RWMutex
	listener net.Listener
	shutdown bool

	startTime       time.Time
	requestTimeout  time.Duration
	readyChan       chan struct{}
	doneChan        chan struct{}
	shutdownChan    chan struct{}
	stopOnce        sync.Once
	pendingShutdown atomic.Bool

	maxConns      int
	activeConns   int32
	connSemaphore chan struct{}
}

// NewServer builds a Server that answers RPC requests against tree.
func NewServer(socketPath string, tree *hna.SlicesTree) *Server {
	const defaultMaxConns = 64
	return &Server{
		socketPath:     socketPath,
		tree:           tree,
		sessionID:      uuid.NewString(),
		startTime:      time.Now(),
		requestTimeout: 30 * time.Second,
		readyChan:      make(chan struct{}),
		doneChan:       make(chan struct{}),
		shutdownChan:   make(chan struct{}),
		maxConns:       defaultMaxConns,
		connSemaphore:  make(chan struct{}, defaultMaxConns),
	}
}

// WaitReady returns a channel closed once the server is listening.
func (s *Server) WaitReady() <-chan struct{} {
	return s.readyChan
}

// Start begins listening on the daemon's Unix socket and serving
// connections until Stop is called. It blocks until the listener closes.
func (s *Server) Start() error {
	if err := s.ensureSocketDir(); err != nil {
		return fmt.Errorf("rpc: ensuring socket directory: %w", err)
	}
	if err := s.removeStaleSocket(); err != nil {
		return fmt.Errorf("rpc: removing stale socket: %w", err)
	}

	listener, err := listenRPC(s.socketPath)
	if err != nil {
		return fmt.Errorf("rpc: listening on %s: %w", s.socketPath, err)
	}

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("rpc: setting socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	close(s.readyChan)
	defer close(s.doneChan)

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.RLock()
			shutdown := s.shutdown
			s.mu.RUnlock()
			if shutdown {
				return nil
			}
			return fmt.Errorf("rpc: accepting connection: %w", err)
		}

		select {
		case s.connSemaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-s.connSemaphore }()
				atomic.AddInt32(&s.activeConns, 1)
				defer atomic.AddInt32(&s.activeConns, -1)
				s.handleConnection(c)
			}(conn)
		default:
			_ = conn.Close()
		}
	}
}

// Stop closes the listener and removes the socket file. Idempotent.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.shutdown = true
		listener := s.listener
		s.listener = nil
		s.mu.Unlock()

		close(s.shutdownChan)

		if listener != nil {
			if closeErr := listener.Close(); closeErr != nil {
				err = fmt.Errorf("rpc: closing listener: %w", closeErr)
			}
		}
		if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
			err = fmt.Errorf("rpc: removing socket: %w", removeErr)
		}
	})

	select {
	case <-s.doneChan:
	case <-time.After(5 * time.Second):
	}
	return err
}

func (s *Server) ensureSocketDir() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return nil
}

func (s *Server) removeStaleSocket() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := dialRPC(s.socketPath, 500*time.Millisecond)
		if dialErr == nil {
			_ = conn.Close()
			return fmt.Errorf("socket %s is in use by another daemon", s.socketPath)
		}
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "rpc: panic in handleConnection: %v\n%s\n", r, debug.Stack())
		}
	}()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.requestTimeout)); err != nil {
			return
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := s.writeResponse(writer, Response{Success: false, Error: fmt.Sprintf("invalid request: %v", err)}); writeErr != nil {
				return
			}
			continue
		}

		if err := conn.SetWriteDeadline(time.Now().Add(s.requestTimeout)); err != nil {
			return
		}
		resp := s.handleRequest(&req)
		if err := s.writeResponse(writer, resp); err != nil {
			return
		}

		if s.pendingShutdown.Load() {
			go func() {
				if err := s.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "rpc: error during shutdown: %v\n", err)
				}
			}()
			return
		}
	}
}

func (s *Server) writeResponse(writer *bufio.Writer, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("rpc: marshaling response: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return err
	}
	if err := writer.WriteByte('\n'); err != nil {
		return err
	}
	return writer.Flush()
}

// handleRequest dispatches a decoded Request to the operation it names.
func (s *Server) handleRequest(req *Request) Response {
	switch req.Operation {
	case OpPing:
		return s.handlePing()
	case OpStatus:
		return s.handleStatus()
	case OpRegularEvent:
		return s.handleRegularEvent(req)
	case OpActionEvent:
		return s.handleActionEvent(req)
	case OpFinish:
		return s.handleFinish()
	case OpVerdict:
		return s.handleVerdict()
	case OpShutdown:
		return s.handleShutdown()
	default:
		return errResponse(fmt.Errorf("unknown operation %q", req.Operation))
	}
}

func (s *Server) handlePing() Response {
	return dataResponse(PingResponse{Message: "pong", Version: ServerVersion})
}

func (s *Server) handleStatus() Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := s.tree.Nodes()
	live := 0
	for _, n := range nodes {
		if _, retired := n.Verdict(); !retired {
			live++
		}
	}
	return dataResponse(StatusResponse{
		Version:       ServerVersion,
		SessionID:     s.sessionID,
		SocketPath:    s.socketPath,
		PID:           os.Getpid(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		SliceCount:    len(nodes),
		LiveCount:     live,
	})
}

func (s *Server) handleRegularEvent(req *Request) Response {
	var args RegularEventArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return errResponse(fmt.Errorf("decoding args: %w", err))
	}
	if err := s.tree.RegularEvent(args.EntityID, args.Fields); err != nil {
		return errResponse(err)
	}
	return dataResponse(struct{}{})
}

func (s *Server) handleActionEvent(req *Request) Response {
	var args ActionEventArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return errResponse(fmt.Errorf("decoding args: %w", err))
	}
	if err := s.tree.ActionEvent(args.EntityID, hna.Action(args.Action)); err != nil {
		return errResponse(err)
	}
	return dataResponse(struct{}{})
}

func (s *Server) handleFinish() Response {
	s.tree.Finish()
	return dataResponse(struct{}{})
}

func (s *Server) handleVerdict() Response {
	overall := s.tree.Step()
	nodes := s.tree.Nodes()
	slices := make([]SliceVerdict, 0, len(nodes))
	for _, n := range nodes {
		v, retired := n.Verdict()
		slices = append(slices, SliceVerdict{
			NodeID:  n.ID(),
			State:   n.State(),
			Verdict: v.String(),
			Retired: retired,
		})
	}
	return dataResponse(VerdictResponse{Overall: overall.String(), Slices: slices})
}

func (s *Server) handleShutdown() Response {
	s.pendingShutdown.Store(true)
	return dataResponse(struct{ Message string }{"daemon shutting down"})
}

func errResponse(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

func dataResponse(v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return errResponse(fmt.Errorf("marshaling response data: %w", err))
	}
	return Response{Success: true, Data: data}
}
