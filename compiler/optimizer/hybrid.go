package optimizer

import (
	"github.com/brimdata/conclave/compiler/dag"
	"go.uber.org/zap"
)

// selectHybrid replaces MPC joins and aggregates whose keys some party
// may learn in the clear with their hybrid variants and moves filters
// on such columns out of MPC.
func (o *Optimizer) selectHybrid() error {
	ids, err := o.order()
	if err != nil {
		return err
	}
	for _, id := range ids {
		n := o.node(id)
		if !n.MPC {
			continue
		}
		switch op := n.Op.(type) {
		case *dag.Join:
			o.selectJoin(id, op)
		case *dag.Aggregate:
			o.selectAggregate(id, op)
		case *dag.Filter:
			o.trustedFilter(id, op)
		}
	}
	return nil
}

func (o *Optimizer) selectJoin(id dag.ID, join *dag.Join) {
	n := o.node(id)
	keys := dag.TrustFromColumns(n.Out.Columns[:len(join.Left)]...)
	if keys.TrustsAll(o.allPIDs) && o.publicJoinable(id, join) {
		n.Op = &dag.PublicJoin{Join: *join}
		for _, p := range n.Parents {
			c := o.node(p)
			c.MPC = false
			c.Skip = true
		}
		o.rewrote("public_join", id)
		return
	}
	if p, ok := keys.Singleton(); ok {
		n.Op = &dag.HybridJoin{Join: *join, TrustedParty: p}
		o.rewrote("hybrid_join", id, zap.Int("trusted", p))
	}
}

// publicJoinable reports whether the join id is on a single key at the
// front of both inputs and each input is a Concat that stacks one
// relation from each of exactly two parties.
func (o *Optimizer) publicJoinable(id dag.ID, join *dag.Join) bool {
	if len(join.Left) != 1 || join.Left[0].Idx != 0 || join.Right[0].Idx != 0 {
		return false
	}
	owners := o.dag.ParentStoredWith(id)
	if len(owners) != 2 {
		return false
	}
	n := o.node(id)
	if len(n.Parents) != 2 || n.Parents[0] == n.Parents[1] {
		return false
	}
	for _, p := range n.Parents {
		if _, ok := o.parts(p, owners); !ok {
			return false
		}
	}
	return true
}

// parts returns the inputs of the Concat id keyed by owner when id feeds
// a single child and stacks exactly one relation owned by each party of
// owners.
func (o *Optimizer) parts(id dag.ID, owners dag.PartySet) (map[int]dag.ID, bool) {
	n := o.node(id)
	if n.Kind() != dag.KindConcat || len(n.Children) != 1 || len(n.Parents) != len(owners) {
		return nil, false
	}
	parts := make(map[int]dag.ID)
	for _, p := range n.Parents {
		sw := o.node(p).Out.StoredWith
		if len(sw) != 1 || !owners.Contains(sw[0]) {
			return nil, false
		}
		if _, ok := parts[sw[0]]; ok {
			return nil, false
		}
		parts[sw[0]] = p
	}
	return parts, true
}

func (o *Optimizer) selectAggregate(id dag.ID, agg *dag.Aggregate) {
	if len(agg.Group) != 1 {
		return
	}
	n := o.node(id)
	if p, ok := n.Out.Columns[0].Trust.Singleton(); ok {
		n.Op = &dag.HybridAggregate{Aggregate: *agg, TrustedParty: p}
		o.rewrote("hybrid_aggregate", id, zap.Int("trusted", p))
	}
}

// trustedFilter moves an MPC filter whose result goes to a single party
// out of MPC when that party may learn the filter column.  The parent
// then reveals its rows to the party, which filters them locally.
func (o *Optimizer) trustedFilter(id dag.ID, filter *dag.Filter) {
	n := o.node(id)
	sw := n.Out.StoredWith
	if len(sw) != 1 || !o.dag.IsLowerBoundary(id) {
		return
	}
	p, ok := o.dag.InRel(id).Columns[filter.Col.Idx].Trust.Singleton()
	if !ok || p != sw[0] {
		return
	}
	parent := n.Parents[0]
	if !o.liftable(parent) {
		return
	}
	o.node(parent).Out.StoredWith = sw
	n.MPC = false
	o.rewrote("trusted_filter", id, zap.Int("trusted", p))
}
