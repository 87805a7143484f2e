package optimizer

import (
	"fmt"

	"github.com/brimdata/conclave/compiler/dag"
	"go.uber.org/zap"
)

// pushDown decides which nodes run under MPC and moves local work above
// the Concats at which shared data first comes together.
func (o *Optimizer) pushDown() error {
	ids, err := o.order()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !o.attached(id) {
			continue
		}
		n := o.node(id)
		switch op := n.Op.(type) {
		case *dag.Create:
		case *dag.Aggregate:
			err = o.pushDownAggregate(id, op)
		case *dag.Project, *dag.Multiply, *dag.Divide:
			err = o.pushDownUnary(id)
		case *dag.Concat:
			err = o.pushDownConcat(id)
		default:
			switch k := n.Kind(); {
			case k.IsHybrid():
				err = opError(n, ErrUnexpandedHybrid)
			case !k.FixedMPC():
				n.MPC = o.dag.RequiresMPC(id)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// mpcParent reports whether id hands shares to its children.
func (o *Optimizer) mpcParent(id dag.ID) bool {
	return o.dag.ProducesShares(id)
}

// pushable reports whether id is a Concat through which operators may be
// pushed toward the data owners: it runs under MPC, it is where shared
// data first comes together, and none of its inputs has been closed.
func (o *Optimizer) pushable(id dag.ID) bool {
	n := o.node(id)
	if n.Kind() != dag.KindConcat || !n.MPC || !o.dag.IsUpperBoundary(id) {
		return false
	}
	for _, p := range n.Parents {
		if o.node(p).Kind() == dag.KindClose {
			return false
		}
	}
	return true
}

func (o *Optimizer) pushDownUnary(id dag.ID) error {
	n := o.node(id)
	parent := n.Parents[0]
	if !o.mpcParent(parent) {
		return nil
	}
	if n.IsLeaf() || len(n.Children) > 1 {
		n.MPC = true
		return nil
	}
	if o.pushable(parent) {
		return o.pushAbove(parent, id)
	}
	// Unary operators stay below an aggregate: floor(s1/c) + floor(s2/c)
	// need not equal floor((s1+s2)/c).
	n.MPC = true
	return nil
}

func (o *Optimizer) pushAbove(concat, id dag.ID) error {
	if _, err := o.pushDownThrough(concat, id); err != nil {
		return err
	}
	return o.updateConcat(concat)
}

// pushDownThrough moves the unary node id from below parent to above it
// by placing a clone of id on each edge into parent.  The clone on the
// edge from the k-th parent of parent (by name) is suffixed with _k.
// Id is left detached.
func (o *Optimizer) pushDownThrough(parent, id dag.ID) ([]dag.ID, error) {
	n := o.node(id)
	child := dag.None
	if len(n.Children) != 0 {
		child = n.Children[0]
	}
	if err := o.dag.RemoveBetween(parent, child, id); err != nil {
		return nil, err
	}
	var clones []dag.ID
	for k, gp := range o.dag.SortedParents(parent) {
		clone, err := o.builder.Clone(id, fmt.Sprintf("%s_%d", n.Name(), k))
		if err != nil {
			return nil, err
		}
		if err := o.dag.InsertBetween(gp, parent, clone); err != nil {
			return nil, err
		}
		o.dag.UpdateStoredWith(clone)
		o.node(clone).MPC = o.dag.RequiresMPC(clone)
		clones = append(clones, clone)
	}
	o.rewrote("push", id, zap.String("below", o.node(parent).Name()))
	return clones, nil
}

// updateConcat re-derives the schema of concat from its first input and
// rebinds its children.
func (o *Optimizer) updateConcat(concat dag.ID) error {
	o.dag.UpdateConcatColumns(concat)
	for _, c := range o.node(concat).Children {
		if err := o.dag.UpdateOpSpecificCols(c); err != nil {
			return err
		}
	}
	return nil
}

func (o *Optimizer) pushDownAggregate(id dag.ID, agg *dag.Aggregate) error {
	n := o.node(id)
	parent := n.Parents[0]
	if !o.mpcParent(parent) {
		return nil
	}
	splittable := agg.Aggregator == dag.Sum || agg.Aggregator == dag.Count
	if !o.pushable(parent) || !splittable || len(n.Children) > 1 {
		n.MPC = true
		return nil
	}
	if err := o.splitAggregate(id); err != nil {
		return err
	}
	return o.pushAbove(parent, id)
}

// splitAggregate places below id an MPC aggregate, suffixed _obl, that
// sums the partial results of id by the group columns of id.
func (o *Optimizer) splitAggregate(id dag.ID) error {
	n := o.node(id)
	child := dag.None
	if len(n.Children) != 0 {
		child = n.Children[0]
	}
	clone, err := o.builder.Clone(id, n.Name()+"_obl")
	if err != nil {
		return err
	}
	c := o.node(clone)
	agg := c.Op.(*dag.Aggregate)
	k := len(agg.Group)
	for i := range agg.Group {
		agg.Group[i] = dag.Ref(n.Out.Columns[i])
	}
	total := dag.Ref(n.Out.Columns[k])
	agg.Agg = &total
	agg.Aggregator = dag.Sum
	c.MPC = true
	if err := o.dag.InsertBetween(id, child, clone); err != nil {
		return err
	}
	o.rewrote("split", id)
	return nil
}

// pushDownConcat runs a Concat under MPC when its inputs are spread
// across parties and forks a Concat that feeds several children so that
// each child can be pushed through its own copy.
func (o *Optimizer) pushDownConcat(id dag.ID) error {
	n := o.node(id)
	n.MPC = o.dag.RequiresMPC(id)
	if len(n.Children) > 1 && o.dag.IsUpperBoundary(id) {
		return o.fork(id)
	}
	return nil
}

func (o *Optimizer) fork(id dag.ID) error {
	n := o.node(id)
	children := o.dag.SortedChildren(id)
	for k, child := range children[1:] {
		clone, err := o.builder.Clone(id, fmt.Sprintf("%s_%d", n.Name(), k+1))
		if err != nil {
			return err
		}
		for _, p := range n.Parents {
			o.dag.Link(p, clone)
		}
		o.dag.Reparent(child, id, clone)
		if err := o.dag.UpdateOpSpecificCols(child); err != nil {
			return err
		}
	}
	o.rewrote("fork", id)
	return nil
}
