package automaton

import (
	"fmt"
	"sort"
	"strings"
)

// DumpMermaid renders a Priority automaton as a Mermaid stateDiagram-v2
// string, for ad-hoc debugging of compiled atoms -- never part of the
// evaluation path itself. Grounded on the state-diagram generator in the
// kripke-ctl example pack (GenerateStateDiagram): initial-state arrows
// first, then one line per edge labelled with the pair label and priority.
func (p *Priority) DumpMermaid() string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString(fmt.Sprintf("    [*] --> q%d\n", p.Init))

	froms := make([]int, 0, len(p.Transitions))
	for s := range p.Transitions {
		froms = append(froms, s)
	}
	sort.Ints(froms)

	for _, from := range froms {
		labels := make([]PairLabel, 0, len(p.Transitions[from]))
		for l := range p.Transitions[from] {
			labels = append(labels, l)
		}
		sort.Slice(labels, func(i, j int) bool { return labels[i].String() < labels[j].String() })
		for _, label := range labels {
			for _, edge := range p.Transitions[from][label] {
				sb.WriteString(fmt.Sprintf("    q%d --> q%d: %s [p%d]\n", from, edge.To, label, edge.Priority))
			}
		}
	}

	for s, accept := range p.Accept {
		if accept {
			sb.WriteString(fmt.Sprintf("    q%d --> [*]\n", s))
		}
	}
	return sb.String()
}
