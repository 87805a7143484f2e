package optimizer

import (
	"fmt"

	"github.com/brimdata/conclave/compiler/dag"
)

// propagateTrust derives the trust set of every output column from the
// trust sets of the input columns it is computed from.
func (o *Optimizer) propagateTrust() error {
	ids, err := o.order()
	if err != nil {
		return err
	}
	for _, id := range ids {
		n := o.node(id)
		if n.Kind() == dag.KindCreate || n.Kind() == dag.KindBlackbox {
			continue
		}
		trust, err := o.trustOf(id)
		if err != nil {
			return opError(n, err)
		}
		if len(trust) != len(n.Out.Columns) {
			return opError(n, fmt.Errorf("internal error: %d trust sets for %d columns", len(trust), len(n.Out.Columns)))
		}
		for k := range n.Out.Columns {
			n.Out.Columns[k].Trust = trust[k]
		}
	}
	return nil
}

func (o *Optimizer) inputCols(id dag.ID, k int) []dag.Column {
	return o.node(o.node(id).Parents[k]).Out.Columns
}

func trustOf(cols []dag.Column) []dag.TrustSet {
	out := make([]dag.TrustSet, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Trust)
	}
	return out
}

func selected(cols []dag.Column, refs []dag.ColRef) []dag.TrustSet {
	out := make([]dag.TrustSet, 0, len(refs))
	for _, r := range refs {
		out = append(out, cols[r.Idx].Trust)
	}
	return out
}

func (o *Optimizer) trustOf(id dag.ID) ([]dag.TrustSet, error) {
	n := o.node(id)
	in := o.inputCols(id, 0)
	switch op := n.Op.(type) {
	case *dag.Store, *dag.Persist, *dag.Open, *dag.Close, *dag.Filter, *dag.SortBy,
		*dag.Shuffle, *dag.Limit:
		return trustOf(in), nil
	case *dag.Project:
		return selected(in, op.Selected), nil
	case *dag.Distinct:
		return selected(in, op.Selected), nil
	case *dag.Multiply:
		return arithTrust(in, op.Target, op.NewTarget, op.Operands), nil
	case *dag.Divide:
		return arithTrust(in, op.Target, op.NewTarget, op.Operands), nil
	case *dag.Aggregate, *dag.IndexAggregate, *dag.LeakyIndexAggregate, *dag.HybridAggregate:
		agg, _ := dag.AggregateOf(op)
		group := selected(in, agg.Group)
		over := dag.MergeAll(group...)
		if agg.Agg != nil {
			over = over.Merge(in[agg.Agg.Idx].Trust)
		}
		return append(group, over), nil
	case *dag.Join, *dag.IndexJoin, *dag.FlagJoin, *dag.PublicJoin, *dag.HybridJoin:
		join, _ := dag.JoinOf(op)
		return joinTrust(in, o.inputCols(id, 1), join), nil
	case *dag.JoinFlags:
		keys := joinTrust(in, o.inputCols(id, 1), &op.Join)[:len(op.Left)]
		return []dag.TrustSet{dag.MergeAll(keys...)}, nil
	case *dag.Concat:
		return o.mergeInputs(id), nil
	case *dag.ConcatCols:
		if op.UseMult {
			return o.mergeInputs(id), nil
		}
		var out []dag.TrustSet
		for k := range n.Parents {
			out = append(out, trustOf(o.inputCols(id, k))...)
		}
		return out, nil
	case *dag.Union:
		right := o.inputCols(id, 1)
		return []dag.TrustSet{in[op.Left.Idx].Trust.Merge(right[op.Right.Idx].Trust)}, nil
	case *dag.PubIntersect:
		return []dag.TrustSet{in[op.Col.Idx].Trust}, nil
	case *dag.CompNeighs:
		return []dag.TrustSet{in[op.Col.Idx].Trust}, nil
	case *dag.DistinctCount:
		return []dag.TrustSet{in[op.Col.Idx].Trust}, nil
	case *dag.Index:
		return append([]dag.TrustSet{dag.TrustFromColumns(in...)}, trustOf(in)...), nil
	case *dag.NumRows:
		return []dag.TrustSet{dag.TrustFromColumns(in...)}, nil
	case *dag.FilterBy:
		by := o.inputCols(id, 1)
		key := in[op.Col.Idx].Trust.Merge(by[0].Trust)
		out := trustOf(in)
		for k := range out {
			out[k] = out[k].Merge(key)
		}
		return out, nil
	case *dag.IndexesToFlags:
		return []dag.TrustSet{o.inputCols(id, 1)[0].Trust}, nil
	case *dag.PubJoin:
		if len(n.Parents) == 1 {
			return trustOf(in), nil
		}
		right := o.inputCols(id, 1)
		return joinTrust(in, right, &dag.Join{
			Left:  []dag.ColRef{dag.Ref(in[0])},
			Right: []dag.ColRef{dag.Ref(right[0])},
		}), nil
	}
	return nil, fmt.Errorf("internal error: no trust rule for %T", n.Op)
}

func arithTrust(in []dag.Column, target dag.ColRef, newTarget bool, operands []dag.Operand) []dag.TrustSet {
	sets := make([]dag.TrustSet, 0, len(operands))
	for _, o := range operands {
		if o.Col != nil {
			sets = append(sets, in[o.Col.Idx].Trust)
		}
	}
	merged := dag.MergeAll(sets...)
	out := trustOf(in)
	if newTarget {
		return append(out, merged)
	}
	out[target.Idx] = merged
	return out
}

// joinTrust returns the trust sets of the output of a join: each key is
// the merge of its two sides and every other column is also merged with
// all of the keys.
func joinTrust(left, right []dag.Column, join *dag.Join) []dag.TrustSet {
	keys := make([]dag.TrustSet, 0, len(join.Left))
	for k := range join.Left {
		keys = append(keys, left[join.Left[k].Idx].Trust.Merge(right[join.Right[k].Idx].Trust))
	}
	allKeys := dag.MergeAll(keys...)
	out := append([]dag.TrustSet(nil), keys...)
	for _, side := range []struct {
		cols []dag.Column
		keys []dag.ColRef
	}{{left, join.Left}, {right, join.Right}} {
		for _, c := range side.cols {
			if isKey(c, side.keys) {
				continue
			}
			out = append(out, c.Trust.Merge(allKeys))
		}
	}
	return out
}

func isKey(c dag.Column, keys []dag.ColRef) bool {
	for _, k := range keys {
		if k.Idx == c.Idx {
			return true
		}
	}
	return false
}

// mergeInputs merges the trust sets of the inputs of id position by
// position.
func (o *Optimizer) mergeInputs(id dag.ID) []dag.TrustSet {
	n := o.node(id)
	out := trustOf(o.inputCols(id, 0))
	for k := 1; k < len(n.Parents); k++ {
		cols := o.inputCols(id, k)
		for i := range out {
			if i < len(cols) {
				out[i] = out[i].Merge(cols[i].Trust)
			}
		}
	}
	return out
}
