package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	natsserver "github.com/nats-io/nats-server/v2/server"
)

type recordingHandler struct {
	id       string
	priority int
	handles  []EventType
	calls    *[]string
}

func (h *recordingHandler) ID() string           { return h.id }
func (h *recordingHandler) Handles() []EventType { return h.handles }
func (h *recordingHandler) Priority() int        { return h.priority }
func (h *recordingHandler) Handle(_ context.Context, _ *Event, _ *Result) error {
	*h.calls = append(*h.calls, h.id)
	return nil
}

func TestDispatchCallsHandlersInPriorityOrder(t *testing.T) {
	var calls []string
	bus := New()
	bus.Register(&recordingHandler{id: "second", priority: 20, handles: []EventType{EventRegular}, calls: &calls})
	bus.Register(&recordingHandler{id: "first", priority: 10, handles: []EventType{EventRegular}, calls: &calls})

	_, err := bus.Dispatch(context.Background(), &Event{Type: EventRegular})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("expected [first second], got %v", calls)
	}
}

func TestDispatchSkipsNonMatchingHandlers(t *testing.T) {
	var calls []string
	bus := New()
	bus.Register(&recordingHandler{id: "only-action", priority: 10, handles: []EventType{EventAction}, calls: &calls})

	bus.Dispatch(context.Background(), &Event{Type: EventRegular})
	if len(calls) != 0 {
		t.Errorf("expected no calls, got %v", calls)
	}
}

func TestDispatchRejectsNilEvent(t *testing.T) {
	bus := New()
	if _, err := bus.Dispatch(context.Background(), nil); err == nil {
		t.Error("expected an error for a nil event")
	}
}

func TestUnregisterRemovesHandler(t *testing.T) {
	bus := New()
	bus.Register(&LogHandler{})
	if !bus.Unregister("log") {
		t.Fatal("expected Unregister to find the log handler")
	}
	if bus.Unregister("log") {
		t.Error("expected a second Unregister to report not-found")
	}
}

func TestDispatchStopsOnCanceledContext(t *testing.T) {
	var calls []string
	bus := New()
	bus.Register(&recordingHandler{id: "h", priority: 10, handles: []EventType{EventRegular}, calls: &calls})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bus.Dispatch(ctx, &Event{Type: EventRegular}); err == nil {
		t.Error("expected an error for a canceled context")
	}
}

// startTestNATS starts an embedded NATS server with JetStream for testing.
func startTestNATS(t *testing.T) (nats.JetStreamContext, func()) {
	t.Helper()
	dir := t.TempDir()
	opts := &natsserver.Options{
		Port:               -1,
		JetStream:          true,
		JetStreamMaxMemory: 256 << 20,
		JetStreamMaxStore:  256 << 20,
		StoreDir:           dir,
		NoLog:              true,
		NoSigs:             true,
	}
	ns, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("create test NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("test NATS server failed to start")
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		t.Fatalf("connect to test NATS: %v", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		ns.Shutdown()
		t.Fatalf("get JetStream context: %v", err)
	}

	if err := EnsureStreams(js); err != nil {
		nc.Close()
		ns.Shutdown()
		t.Fatalf("create streams: %v", err)
	}

	return js, func() {
		nc.Drain()
		nc.Close()
		ns.Shutdown()
	}
}

func TestDispatchPublishesEntityScopedEventToJetStream(t *testing.T) {
	js, cleanup := startTestNATS(t)
	defer cleanup()

	sub, err := js.SubscribeSync(SubjectForEntity(EventSliceRetired, "e1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus := New()
	bus.SetJetStream(js)
	if !bus.JetStreamEnabled() {
		t.Fatal("expected JetStreamEnabled() true")
	}

	_, err = bus.Dispatch(context.Background(), &Event{Type: EventSliceRetired, EntityID: "e1", Verdict: "True"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("expected a published message: %v", err)
	}
	if len(msg.Data) == 0 {
		t.Error("expected non-empty published payload")
	}
}
