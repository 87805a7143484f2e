package optimizer

import (
	"errors"
	"fmt"

	"github.com/brimdata/conclave/compiler/dag"
	"go.uber.org/zap"
)

var errStoredWith = errors.New("different stored_with on non-lower-boundary op")

// insertOpenClose makes every change of ownership explicit.  Data entering
// MPC is secret-shared by a Close and results leaving MPC are revealed by
// an Open.
func (o *Optimizer) insertOpenClose() error {
	ids, err := o.order()
	if err != nil {
		return err
	}
	for _, id := range ids {
		n := o.node(id)
		if n.Skip {
			continue
		}
		switch n.Kind() {
		case dag.KindCreate, dag.KindOpen, dag.KindClose:
			continue
		}
		if n.MPC {
			err = o.boundMPC(id)
		} else {
			err = o.checkLocal(id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Optimizer) boundMPC(id dag.ID) error {
	n := o.node(id)
	in := o.dag.ParentStoredWith(id)
	for _, p := range o.dag.SortedParents(id) {
		parent := o.node(p)
		if o.dag.ProducesShares(p) || parent.Kind() == dag.KindClose || parent.Out.StoredWith.Equal(in) {
			continue
		}
		if err := o.closeEdge(p, id, in); err != nil {
			return err
		}
	}
	out := n.Out.StoredWith
	if out.Equal(in) {
		return nil
	}
	if len(out) != 1 {
		return opError(n, fmt.Errorf("cannot reveal to %s", out))
	}
	var local []dag.ID
	for _, c := range o.dag.SortedChildren(id) {
		if !o.node(c).MPC {
			local = append(local, c)
		}
	}
	if !n.IsLeaf() && len(local) == 0 {
		return opError(n, errStoredWith)
	}
	n.Out.StoredWith = in
	open, err := o.builder.Open(id, o.builder.Unique(n.Name()+"_open"), out[0])
	if err != nil {
		return err
	}
	for _, c := range local {
		o.dag.Reparent(c, id, open)
		if err := o.dag.UpdateOpSpecificCols(c); err != nil {
			return err
		}
	}
	o.rewrote("open", id, zap.Stringer("to", out))
	return nil
}

// closeEdge secret-shares the output of parent among the parties of to
// on its edge into child, reusing a Close of parent to the same parties.
func (o *Optimizer) closeEdge(parent, child dag.ID, to dag.PartySet) error {
	cl := dag.None
	for _, c := range o.dag.SortedChildren(parent) {
		n := o.node(c)
		if n.Kind() == dag.KindClose && n.Out.StoredWith.Equal(to) {
			cl = c
			break
		}
	}
	if cl == dag.None {
		var err error
		cl, err = o.builder.Close(parent, o.builder.Unique(o.node(parent).Name()+"_close"), to)
		if err != nil {
			return err
		}
		o.rewrote("close", parent, zap.Stringer("to", to))
	}
	o.dag.Reparent(child, parent, cl)
	return o.dag.UpdateOpSpecificCols(child)
}

func (o *Optimizer) checkLocal(id dag.ID) error {
	n := o.node(id)
	for _, p := range n.Parents {
		if !o.node(p).Out.StoredWith.Equal(n.Out.StoredWith) {
			return opError(n, errStoredWith)
		}
	}
	return nil
}
