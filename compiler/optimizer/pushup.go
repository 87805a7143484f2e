package optimizer

import "github.com/brimdata/conclave/compiler/dag"

// pushUp moves reversible operators whose output was narrowed to a single
// party out of MPC.  Their parent reveals its result to that party
// instead and the operator runs locally.
func (o *Optimizer) pushUp() error {
	ids, err := o.reverseOrder()
	if err != nil {
		return err
	}
	for _, id := range ids {
		switch o.node(id).Op.(type) {
		case *dag.Project, *dag.Filter, *dag.Multiply, *dag.Divide:
			o.pushUpUnary(id)
		case *dag.Concat:
			o.pushUpConcat(id)
		}
	}
	return nil
}

// liftable reports whether the parent p may take over the ownership of
// its only child.
func (o *Optimizer) liftable(p dag.ID) bool {
	n := o.node(p)
	switch n.Kind() {
	case dag.KindOpen, dag.KindClose:
		return false
	}
	return n.MPC && !n.IsRoot() && len(n.Children) == 1
}

func (o *Optimizer) narrowed(id dag.ID) bool {
	n := o.node(id)
	return n.MPC && o.dag.IsLowerBoundary(id) && !n.Out.IsShared()
}

func (o *Optimizer) pushUpUnary(id dag.ID) {
	n := o.node(id)
	if !o.narrowed(id) || !o.dag.IsReversible(id) {
		return
	}
	p := n.Parents[0]
	if !o.liftable(p) {
		return
	}
	o.node(p).Out.StoredWith = n.Out.StoredWith
	n.MPC = false
	o.rewrote("lift", id)
}

func (o *Optimizer) pushUpConcat(id dag.ID) {
	n := o.node(id)
	if !o.narrowed(id) {
		return
	}
	for _, p := range n.Parents {
		if !o.liftable(p) {
			return
		}
	}
	for _, p := range n.Parents {
		o.node(p).Out.StoredWith = n.Out.StoredWith
	}
	n.MPC = false
	o.rewrote("lift", id)
}
