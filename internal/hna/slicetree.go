package hna

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/hna-go/hnamon/internal/atommon"
	"github.com/hna-go/hnamon/internal/hnl"
	"github.com/hna-go/hnamon/internal/idgen"
	"github.com/hna-go/hnamon/internal/schema"
	"github.com/hna-go/hnamon/internal/telemetry"
	"github.com/hna-go/hnamon/internal/trace"
)

// SliceTreeNode is a runtime node of the slice tree (§3.8): the hypernode
// state it was spawned for, the HNL monitor for that state's formula, the
// one shared trace set every entity currently in this state appends its
// current slice to, and the children reached by observing an action on a
// live entity's trace.
type SliceTreeNode struct {
	id       string
	typ      *HypernodeState
	set      *trace.Set
	monitor  *hnl.Monitor
	children map[Action]*SliceTreeNode
	retired  bool
	verdict  atommon.Verdict
}

// SlicesTree owns the root slice and every slice spawned from it, and
// schedules stepping across all of them in the fair order §4.9
// leaves unspecified: insertion (discovery) order.
//
// This implementation restricts a hypernode's formula to quantifying over
// a single shared population per state: every entity currently occupying
// a hypernode state registers its current-slice trace into that state's
// one SliceTreeNode.set, and the node's monitor's quantified variables
// (one or two, per internal/hnl's own arity restriction) all range over
// that same set. A formula like the "OD" scenario's `forall t1, t2` fits
// this directly: both variables quantify over every entity sharing the
// state.
type SlicesTree struct {
	spec     *Spec
	schema   *schema.Schema
	alphabet []string

	root  *SliceTreeNode
	nodes []*SliceTreeNode // every node ever spawned, in discovery order

	entityNode  map[string]*SliceTreeNode
	entityTrace map[string]*trace.Trace

	ids  *idgen.SliceIDGenerator
	used []string // every SliceTreeNode.id assigned so far, for collision checks

	noMoreEntities bool
}

// NewSlicesTree constructs the tree with a freshly spawned root slice for
// spec's initial hypernode state.
func NewSlicesTree(spec *Spec, sc *schema.Schema, alphabet []string) (*SlicesTree, error) {
	t := &SlicesTree{
		spec:        spec,
		schema:      sc,
		alphabet:    alphabet,
		entityNode:  make(map[string]*SliceTreeNode),
		entityTrace: make(map[string]*trace.Trace),
		ids:         idgen.NewSliceIDGenerator(),
	}
	root, err := t.newNode(spec.States[spec.Initial], "root")
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

// newNode spawns a fresh SliceTreeNode for typ: a private trace set and an
// HNL monitor whose quantified variables all range over it. via names the
// action that spawned it ("root" for the tree's own root slice), used to
// derive the node's readable id.
func (t *SlicesTree) newNode(typ *HypernodeState, via string) (*SliceTreeNode, error) {
	set := trace.NewSet(t.schema)
	sources := make(map[string]*trace.View, len(typ.Formula.Prefix))
	for _, q := range typ.Formula.Prefix {
		sources[q.Var] = trace.NewView(set, nil)
	}
	m, err := hnl.BuildMonitor(typ.Formula, sources, t.alphabet)
	if err != nil {
		return nil, fmt.Errorf("hna: building monitor for state %q: %w", typ.ID, err)
	}
	id := t.ids.GenerateSliceID(typ.ID, via, t.used)
	t.used = append(t.used, id)
	n := &SliceTreeNode{id: id, typ: typ, set: set, monitor: m, children: make(map[Action]*SliceTreeNode)}
	t.nodes = append(t.nodes, n)
	return n, nil
}

// currentNode returns the slice an entity currently belongs to, spawning
// it at the root with a fresh trace on first sight.
func (t *SlicesTree) currentNode(entityID string) *SliceTreeNode {
	if n, ok := t.entityNode[entityID]; ok {
		return n
	}
	tr := t.root.set.NewTrace()
	t.entityNode[entityID] = t.root
	t.entityTrace[entityID] = tr
	return t.root
}

// RegularEvent appends fields to entityID's current slice trace (§4.9: "a
// regular event routes to every live slice whose monitor is responsible
// for the trace the event belongs to" -- since that trace object is
// shared by pointer with whatever view the owning node's monitor reads
// through, a single append is all routing requires).
func (t *SlicesTree) RegularEvent(entityID string, fields schema.Record) error {
	t.currentNode(entityID)
	return t.entityTrace[entityID].Append(fields)
}

// ActionEvent observes action on entityID's trace (§4.9): the current
// slice trace is finished, δ(current state, action) decides the target
// hypernode state, a child slice for that action is spawned on first use,
// and a fresh trace for entityID begins there. An INVALID transition
// retires the entity: its trace is not covered by the automaton, and it
// stops being tracked.
func (t *SlicesTree) ActionEvent(entityID string, action Action) error {
	node := t.currentNode(entityID)
	t.entityTrace[entityID].Finish()

	nextID, ok := t.spec.Step(node.typ.ID, action)
	if !ok {
		delete(t.entityNode, entityID)
		delete(t.entityTrace, entityID)
		return nil
	}

	child, ok := node.children[action]
	if !ok {
		var err error
		child, err = t.newNode(t.spec.States[nextID], string(action))
		if err != nil {
			return err
		}
		node.children[action] = child
	}

	tr := child.set.NewTrace()
	t.entityNode[entityID] = child
	t.entityTrace[entityID] = tr
	return nil
}

// Finish signals that no further entities, regular events, or action
// events will ever arrive, propagating end-of-stream to every live
// slice's monitor (§4.7's Finish, driving §4.9's acceptance condition to a
// definite verdict once every reachable slice has one).
func (t *SlicesTree) Finish() {
	t.noMoreEntities = true
	for _, tr := range t.entityTrace {
		tr.Finish()
	}
	for _, n := range t.nodes {
		n.monitor.Finish()
	}
}

// Step runs one fair-order scheduling round: every live (non-retired)
// node's monitor advances once, and the whole tree's verdict is
// recomputed per §4.9's acceptance condition -- the HNA accepts iff every
// reachable slice yields TRUE.
//
// Each live node owns a private trace set and monitor that nothing else
// touches during a round (new nodes are only spawned from ActionEvent,
// never mid-Step), so the per-node monitor.Step() calls below have no
// shared mutable state to race on. An errgroup fans them out across
// goroutines -- "parallel slices" mode -- while the verdict aggregation
// after the group completes stays single-threaded, the same
// cooperative-per-slice/independent-across-slices split described for
// the HNA's scheduling domain.
func (t *SlicesTree) Step() atommon.Verdict {
	ctx, span := telemetry.Tracer().Start(context.Background(), "hna.SlicesTree.Step")
	defer span.End()

	live := make([]*SliceTreeNode, 0, len(t.nodes))
	for _, n := range t.nodes {
		if !n.retired {
			live = append(live, n)
		}
	}
	verdicts := make([]atommon.Verdict, len(live))

	var g errgroup.Group
	for i, n := range live {
		i, n := i, n
		g.Go(func() error {
			verdicts[i] = n.monitor.Step()
			return nil
		})
	}
	_ = g.Wait() // per-node Step() never returns an error

	anyFalse, anyUnknown := false, false
	for i, n := range live {
		switch verdicts[i] {
		case atommon.True:
			n.retired = true
			n.verdict = atommon.True
			recordVerdict(ctx, n.id, atommon.True)
		case atommon.False:
			n.retired = true
			n.verdict = atommon.False
			anyFalse = true
			recordVerdict(ctx, n.id, atommon.False)
		default:
			anyUnknown = true
		}
	}
	recordLive(ctx, int64(len(live)))
	span.SetAttributes(attribute.Int("hna.live_slices", len(live)), attribute.Int("hna.total_slices", len(t.nodes)))

	if anyFalse {
		return atommon.False
	}
	if anyUnknown || !t.noMoreEntities {
		return atommon.Unknown
	}
	return atommon.True
}

// recordVerdict and recordLive fetch their instrument from the global
// meter on every call rather than caching it on SlicesTree: the
// OpenTelemetry SDK memoizes instrument creation per (name, unit,
// description) internally, so this stays cheap while keeping SlicesTree
// itself free of telemetry-specific fields.
func recordVerdict(ctx context.Context, nodeID string, v atommon.Verdict) {
	counter, err := telemetry.Meter().Int64Counter("hna.verdicts_emitted",
		metric.WithDescription("verdicts emitted by slice monitors"))
	if err != nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hna.node_id", nodeID),
		attribute.String("hna.verdict", v.String()),
	))
}

func recordLive(ctx context.Context, live int64) {
	gauge, err := telemetry.Meter().Int64Gauge("hna.live_slices",
		metric.WithDescription("slices not yet retired"))
	if err != nil {
		return
	}
	gauge.Record(ctx, live)
}

// Nodes returns every slice spawned so far, in discovery order -- test and
// diagnostic access to the tree's current shape.
func (t *SlicesTree) Nodes() []*SliceTreeNode {
	return append([]*SliceTreeNode(nil), t.nodes...)
}

// State returns the hypernode state id a node was spawned for.
func (n *SliceTreeNode) State() string {
	return n.typ.ID
}

// ID returns the node's readable, collision-resolved slice id.
func (n *SliceTreeNode) ID() string {
	return n.id
}

// Verdict returns the node's own retired verdict and whether it has
// retired yet -- ok is false while the node's monitor is still Unknown.
func (n *SliceTreeNode) Verdict() (v atommon.Verdict, ok bool) {
	return n.verdict, n.retired
}
