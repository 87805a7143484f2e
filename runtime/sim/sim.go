// Package sim evaluates a DAG in the clear.  It gives every operator,
// including the ones that only exist after rewriting, its meaning over
// plaintext int64 relations, so a DAG can be checked against its
// rewritten form.
package sim

import (
	"errors"
	"fmt"
	"slices"

	"github.com/brimdata/conclave/compiler/dag"
)

// Relations maps relation names to their rows.
type Relations map[string][][]int64

var ErrNoPeer = errors.New("no peer for public operator")

type evaluator struct {
	d       *dag.DAG
	inputs  Relations
	results map[dag.ID][][]int64
	peers   map[dag.ID]dag.ID
}

// Eval evaluates every node of d reachable from its roots.  Create nodes
// read their rows from inputs by relation name.  The result holds the
// rows of every evaluated relation.
func Eval(d *dag.DAG, inputs Relations) (Relations, error) {
	ids, err := d.TopSort()
	if err != nil {
		return nil, err
	}
	e := &evaluator{
		d:       d,
		inputs:  inputs,
		results: make(map[dag.ID][][]int64),
		peers:   peers(d, ids),
	}
	out := make(Relations)
	for _, id := range ids {
		rows, err := e.eval(id)
		if err != nil {
			return nil, err
		}
		out[d.Node(id).Name()] = rows
	}
	return out, nil
}

// Outputs returns the rows of the leaves of d held by a single party,
// ordered by relation name.
func Outputs(d *dag.DAG, res Relations) ([]string, [][][]int64) {
	var names []string
	for _, id := range d.Nodes() {
		n := d.Node(id)
		if n.IsLeaf() && len(n.Out.StoredWith) == 1 {
			names = append(names, n.Name())
		}
	}
	slices.Sort(names)
	rels := make([][][]int64, 0, len(names))
	for _, name := range names {
		rels = append(rels, res[name])
	}
	return names, rels
}

type endpoint struct {
	kind dag.Kind
	host string
	port int
}

// peers pairs each pub_join and pub_intersect server with the client
// that talks to the same endpoint.
func peers(d *dag.DAG, ids []dag.ID) map[dag.ID]dag.ID {
	servers := make(map[endpoint]dag.ID)
	clients := make(map[endpoint]dag.ID)
	for _, id := range ids {
		var ep endpoint
		var server bool
		switch op := d.Node(id).Op.(type) {
		case *dag.PubJoin:
			ep, server = endpoint{dag.KindPubJoin, op.Host, op.Port}, op.Server
		case *dag.PubIntersect:
			ep, server = endpoint{dag.KindPubIntersect, op.Host, op.Port}, op.Server
		default:
			continue
		}
		if server {
			servers[ep] = id
		} else {
			clients[ep] = id
		}
	}
	out := make(map[dag.ID]dag.ID)
	for ep, s := range servers {
		if c, ok := clients[ep]; ok {
			out[s], out[c] = c, s
		}
	}
	return out
}

func (e *evaluator) eval(id dag.ID) ([][]int64, error) {
	if rows, ok := e.results[id]; ok {
		return rows, nil
	}
	n := e.d.Node(id)
	ins, err := e.parentRows(n)
	if err != nil {
		return nil, err
	}
	rows, err := e.apply(n, ins)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", n.Kind(), n.Name(), err)
	}
	e.results[id] = rows
	return rows, nil
}

func (e *evaluator) apply(n *dag.Node, ins [][][]int64) ([][]int64, error) {
	switch op := n.Op.(type) {
	case *dag.Create:
		rows, ok := e.inputs[n.Name()]
		if !ok {
			return nil, errors.New("no input rows")
		}
		return rows, nil
	case *dag.Store, *dag.Persist, *dag.Open, *dag.Close, *dag.Shuffle:
		return ins[0], nil
	case *dag.Project:
		return project(ins[0], op.Selected), nil
	case *dag.Filter:
		return filter(ins[0], op)
	case *dag.Multiply:
		return arith(ins[0], op.Target, op.NewTarget, op.Operands, multiply)
	case *dag.Divide:
		return arith(ins[0], op.Target, op.NewTarget, op.Operands, floorDiv)
	case *dag.Aggregate:
		return aggregate(ins[0], op)
	case *dag.HybridAggregate:
		return aggregate(ins[0], &op.Aggregate)
	case *dag.IndexAggregate:
		return indexAggregate(ins[0], ins[1], ins[2], &op.Aggregate)
	case *dag.LeakyIndexAggregate:
		return leakyIndexAggregate(ins[0], ins[1], ins[2], &op.Aggregate)
	case *dag.Join:
		return join(ins[0], ins[1], op), nil
	case *dag.PublicJoin:
		return join(ins[0], ins[1], &op.Join), nil
	case *dag.HybridJoin:
		return join(ins[0], ins[1], &op.Join), nil
	case *dag.JoinFlags:
		return joinFlags(ins[0], ins[1], &op.Join), nil
	case *dag.FlagJoin:
		return flagJoin(ins[0], ins[1], ins[2], &op.Join)
	case *dag.IndexJoin:
		return indexJoin(ins[0], ins[1], ins[2], &op.Join)
	case *dag.Concat:
		return concat(ins), nil
	case *dag.ConcatCols:
		return concatCols(ins, op.UseMult)
	case *dag.Distinct:
		return distinct(project(ins[0], op.Selected)), nil
	case *dag.DistinctCount:
		return [][]int64{{int64(len(distinct(project(ins[0], []dag.ColRef{op.Col}))))}}, nil
	case *dag.SortBy:
		return sortBy(ins[0], op.Col.Idx), nil
	case *dag.Index:
		return index(ins[0]), nil
	case *dag.NumRows:
		return [][]int64{{int64(len(ins[0]))}}, nil
	case *dag.CompNeighs:
		return compNeighs(ins[0], op.Col.Idx), nil
	case *dag.Union:
		return union(ins[0], ins[1], op.Left.Idx, op.Right.Idx), nil
	case *dag.FilterBy:
		return filterBy(ins[0], ins[1], op.Col.Idx, op.NotIn), nil
	case *dag.IndexesToFlags:
		return indexesToFlags(ins[0], ins[1]), nil
	case *dag.Limit:
		return ins[0][:min(op.Num, len(ins[0]))], nil
	case *dag.PubJoin, *dag.PubIntersect:
		return e.public(n)
	case *dag.Blackbox:
		return nil, errors.New("blackbox code cannot be simulated")
	}
	return nil, fmt.Errorf("internal error: unknown operator %T", n.Op)
}
