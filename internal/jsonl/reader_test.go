package jsonl

import (
	"testing"

	"github.com/hna-go/hnamon/internal/hna"
	"github.com/hna-go/hnamon/internal/hnl"
	"github.com/hna-go/hnamon/internal/schema"
	"github.com/stretchr/testify/require"
)

func trivialFormula() *hnl.PrenexFormula {
	return &hnl.PrenexFormula{
		Prefix: []hnl.Quantifier{{Kind: hnl.ForAll, Var: "t1"}},
		Body:   hnl.IsPrefix("in", "t1", "t1"),
	}
}

func TestReadEventsFromDataParsesRegularAndActionLines(t *testing.T) {
	data := []byte(`
{"kind":"regular","entity_id":"p1","fields":{"loc":"kitchen"}}
{"kind":"action","entity_id":"p1","action":"share"}
`)
	events, err := ReadEventsFromData(data)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, KindRegular, events[0].Kind)
	require.Equal(t, "p1", events[0].EntityID)
	require.Equal(t, "kitchen", events[0].Fields["loc"])
	require.Equal(t, KindAction, events[1].Kind)
	require.Equal(t, "share", events[1].Action)
}

func TestReadEventsFromDataSkipsBlankLines(t *testing.T) {
	data := []byte("\n{\"kind\":\"regular\",\"entity_id\":\"p1\",\"fields\":{}}\n\n")
	events, err := ReadEventsFromData(data)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestReadEventsFromDataRejectsMissingEntityID(t *testing.T) {
	_, err := ReadEventsFromData([]byte(`{"kind":"regular","fields":{}}`))
	require.Error(t, err)
}

func TestReadEventsFromDataRejectsUnknownKind(t *testing.T) {
	_, err := ReadEventsFromData([]byte(`{"kind":"bogus","entity_id":"p1"}`))
	require.Error(t, err)
}

func TestReadEventsFromDataRejectsMalformedJSON(t *testing.T) {
	_, err := ReadEventsFromData([]byte(`{not json`))
	require.Error(t, err)
}

func TestReplayDrivesSlicesTreeThroughRegularAndActionEvents(t *testing.T) {
	sc, err := schema.New(schema.Field{Name: "loc", Type: schema.FieldString})
	require.NoError(t, err)

	clear := &hna.HypernodeState{ID: "Clear", Formula: trivialFormula()}
	shared := &hna.HypernodeState{ID: "ShareLoc", Formula: trivialFormula()}
	spec, err := hna.NewSpec(
		[]*hna.HypernodeState{clear, shared},
		"Clear",
		[]hna.Edge{{From: "Clear", Action: "share", To: "ShareLoc"}},
	)
	require.NoError(t, err)

	tree, err := hna.NewSlicesTree(spec, sc, []string{"in"})
	require.NoError(t, err)

	events, err := ReadEventsFromData([]byte(`
{"kind":"regular","entity_id":"p1","fields":{"loc":"kitchen"}}
{"kind":"action","entity_id":"p1","action":"share"}
{"kind":"regular","entity_id":"p1","fields":{"loc":"kitchen"}}
`))
	require.NoError(t, err)

	require.NoError(t, Replay(tree, events))

	var sawShareLoc bool
	for _, n := range tree.Nodes() {
		if n.State() == "ShareLoc" {
			sawShareLoc = true
		}
	}
	require.True(t, sawShareLoc, "replaying the action event should have spawned a ShareLoc slice")
}

func TestReplayStopsAtFirstError(t *testing.T) {
	sc, err := schema.New(schema.Field{Name: "loc", Type: schema.FieldString})
	require.NoError(t, err)
	clear := &hna.HypernodeState{ID: "Clear", Formula: trivialFormula()}
	spec, err := hna.NewSpec([]*hna.HypernodeState{clear}, "Clear", nil)
	require.NoError(t, err)
	tree, err := hna.NewSlicesTree(spec, sc, []string{"in"})
	require.NoError(t, err)

	events := []Event{{Kind: KindRegular, EntityID: "p1", Fields: schema.Record{"unknown": "x"}}}
	require.Error(t, Replay(tree, events))
}
