package bdd

// node is a hash-consed ROBDD node. var_ == terminalVar marks a leaf;
// hi/lo are nil for leaves. Two nodes with the same (var_, hi, lo) triple
// are always the same *node pointer -- Builder.mkNode enforces this, which
// is what lets Compile recognize isomorphic atoms by pointer identity
// alone (§4.5's "assign them the same automaton id" case).
type node struct {
	var_        VarID
	terminalVar bool
	terminalVal bool
	hi, lo      *node
}

// Builder owns the unique table and memoized operator cache for one BDD
// construction. Not safe for concurrent use; a formula compiles on one
// goroutine during planning.
type Builder struct {
	trueNode, falseNode *node
	unique               map[uniqueKey]*node
	nextVar              VarID
	memo                 map[opKey]*node
}

type uniqueKey struct {
	v      VarID
	hi, lo *node
}

type opKind int

const (
	opAnd opKind = iota
	opOr
	opNot
)

type opKey struct {
	op   opKind
	a, b *node
}

// NewBuilder returns an empty Builder ready to compile one BoolExpr tree.
func NewBuilder() *Builder {
	b := &Builder{
		unique: make(map[uniqueKey]*node),
		memo:   make(map[opKey]*node),
	}
	b.trueNode = &node{terminalVar: true, terminalVal: true}
	b.falseNode = &node{terminalVar: true, terminalVal: false}
	return b
}

// mkNode returns the canonical node for (v, hi, lo), collapsing the
// standard ROBDD redundant-test rule (hi == lo) and reusing any existing
// node with the same triple.
func (b *Builder) mkNode(v VarID, hi, lo *node) *node {
	if hi == lo {
		return hi
	}
	key := uniqueKey{v: v, hi: hi, lo: lo}
	if n, ok := b.unique[key]; ok {
		return n
	}
	n := &node{var_: v, hi: hi, lo: lo}
	b.unique[key] = n
	return n
}

func (b *Builder) varNode(v VarID) *node {
	return b.mkNode(v, b.trueNode, b.falseNode)
}

// order picks which of two nodes' variables to branch on first; terminals
// sort last since they have no variable to branch on.
func order(a, b *node) VarID {
	switch {
	case a.terminalVar && b.terminalVar:
		return 0
	case a.terminalVar:
		return b.var_
	case b.terminalVar:
		return a.var_
	case a.var_ < b.var_:
		return a.var_
	default:
		return b.var_
	}
}

func restrict(n *node, v VarID, val bool) *node {
	if n.terminalVar || n.var_ != v {
		return n
	}
	if val {
		return n.hi
	}
	return n.lo
}

func (b *Builder) and(a, c *node) *node {
	if a.terminalVar {
		if a.terminalVal {
			return c
		}
		return b.falseNode
	}
	if c.terminalVar {
		return b.and(c, a)
	}
	key := opKey{op: opAnd, a: a, b: c}
	if n, ok := b.memo[key]; ok {
		return n
	}
	v := order(a, c)
	hi := b.and(restrict(a, v, true), restrict(c, v, true))
	lo := b.and(restrict(a, v, false), restrict(c, v, false))
	n := b.mkNode(v, hi, lo)
	b.memo[key] = n
	return n
}

func (b *Builder) or(a, c *node) *node {
	if a.terminalVar {
		if a.terminalVal {
			return b.trueNode
		}
		return c
	}
	if c.terminalVar {
		return b.or(c, a)
	}
	key := opKey{op: opOr, a: a, b: c}
	if n, ok := b.memo[key]; ok {
		return n
	}
	v := order(a, c)
	hi := b.or(restrict(a, v, true), restrict(c, v, true))
	lo := b.or(restrict(a, v, false), restrict(c, v, false))
	n := b.mkNode(v, hi, lo)
	b.memo[key] = n
	return n
}

func (b *Builder) not(a *node) *node {
	if a.terminalVar {
		if a.terminalVal {
			return b.falseNode
		}
		return b.trueNode
	}
	key := opKey{op: opNot, a: a}
	if n, ok := b.memo[key]; ok {
		return n
	}
	n := b.mkNode(a.var_, b.not(a.hi), b.not(a.lo))
	b.memo[key] = n
	return n
}

// Compile builds the ROBDD for expr, matching gen_bdd's bottom-up
// substitution (IsPrefix -> bddvar, And/Or/Not -> the BDD operator).
func (b *Builder) Compile(expr *BoolExpr) *node {
	switch expr.Kind {
	case BoolVar:
		return b.varNode(expr.Var)
	case BoolAnd:
		return b.and(b.Compile(expr.Left), b.Compile(expr.Right))
	case BoolOr:
		return b.or(b.Compile(expr.Left), b.Compile(expr.Right))
	case BoolNot:
		return b.not(b.Compile(expr.Left))
	default:
		panic("bdd: unknown BoolExpr kind")
	}
}
