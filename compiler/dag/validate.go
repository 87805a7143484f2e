package dag

import "fmt"

// Validate checks the schema consistency of every reachable node: the
// operator has enough inputs, its output relation has the width implied
// by its payload, every column is labeled with the relation name and its
// position, and every payload column reference is in range.
func (d *DAG) Validate() error {
	for _, id := range d.Nodes() {
		if err := d.validateNode(id); err != nil {
			n := d.Node(id)
			return fmt.Errorf("%s %q: %w", n.Kind(), n.Name(), err)
		}
	}
	return nil
}

func (d *DAG) validateNode(id ID) error {
	n := d.Node(id)
	for k, c := range n.Out.Columns {
		if c.RelName != n.Out.Name {
			return fmt.Errorf("column %q belongs to relation %q", c.Name, c.RelName)
		}
		if c.Idx != k {
			return fmt.Errorf("column %q has index %d at position %d", c.Name, c.Idx, k)
		}
	}
	need := map[Arity]int{Nullary: 0, Unary: 1, Binary: 2, Nary: 1}[n.Kind().Arity()]
	if len(n.Parents) < need {
		return fmt.Errorf("expected at least %d inputs, found %d", need, len(n.Parents))
	}
	if n.Kind().Arity() == Nullary && len(n.Parents) != 0 {
		return fmt.Errorf("input relation has %d parents", len(n.Parents))
	}
	if err := d.rebind(id, n.Op.copyOp()); err != nil {
		return err
	}
	want, ok := d.width(id)
	if ok && want != len(n.Out.Columns) {
		return fmt.Errorf("expected %d output columns, found %d", want, len(n.Out.Columns))
	}
	return nil
}

// width returns the number of output columns that the payload of id
// implies or false when the operator does not constrain it.
func (d *DAG) width(id ID) (int, bool) {
	n := d.Node(id)
	if n.Kind().Arity() == Nullary {
		return 0, false
	}
	in := len(d.InRel(id).Columns)
	switch op := n.Op.(type) {
	case *Create, *Blackbox:
		return 0, false
	case *Store, *Persist, *Open, *Close, *Filter, *SortBy, *Shuffle, *Limit, *FilterBy, *Concat:
		return in, true
	case *Project:
		return len(op.Selected), true
	case *Distinct:
		return len(op.Selected), true
	case *Multiply:
		if op.NewTarget {
			return in + 1, true
		}
		return in, true
	case *Divide:
		if op.NewTarget {
			return in + 1, true
		}
		return in, true
	case *Aggregate, *IndexAggregate, *LeakyIndexAggregate, *HybridAggregate:
		agg, _ := AggregateOf(op)
		return len(agg.Group) + 1, true
	case *JoinFlags, *DistinctCount, *NumRows, *CompNeighs, *Union, *PubIntersect, *IndexesToFlags:
		return 1, true
	case *Join, *IndexJoin, *FlagJoin, *PublicJoin, *HybridJoin:
		join, _ := JoinOf(op)
		right := len(d.Node(n.Parents[1]).Out.Columns)
		return in + right - len(join.Left), true
	case *ConcatCols:
		if op.UseMult {
			return in, true
		}
		var total int
		for _, p := range n.Parents {
			total += len(d.Node(p).Out.Columns)
		}
		return total, true
	case *Index:
		return in + 1, true
	case *PubJoin:
		if len(n.Parents) > 1 {
			return in + len(d.Node(n.Parents[1]).Out.Columns) - 1, true
		}
		return in, true
	}
	return 0, false
}
