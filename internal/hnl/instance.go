package hnl

import (
	"strconv"
	"strings"

	"github.com/hna-go/hnamon/internal/atommon"
	"github.com/hna-go/hnamon/internal/bdd"
	"github.com/hna-go/hnamon/internal/trace"
)

// Instance is one HNL instance (§3.6/§4.7): a binding of every quantified
// variable of one monitor level to a concrete trace, a cursor into the
// compiled BDD plan, and the atom monitor currently evaluating that
// cursor's atom.
type Instance struct {
	bindings map[string]*trace.Trace
	cursor   bdd.VarID
	atom     *atommon.AtomMonitor
	done     bool
	verdict  atommon.Verdict
}

// identityKey is the per-instance-identity de-duplication key (§4.7,
// §8's "instance de-duplication" property): two tuples with the same
// bindings, regardless of discovery order, must resolve to the same key.
// varOrder is fixed by the owning monitor so the key is stable.
func identityKey(bindings map[string]*trace.Trace, varOrder []string) string {
	parts := make([]string, len(varOrder))
	for i, v := range varOrder {
		parts[i] = strconv.Itoa(bindings[v].ID())
	}
	return strings.Join(parts, ",")
}
