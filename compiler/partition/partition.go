// Package partition carves a rewritten DAG into an ordered sequence of
// sub-DAGs.  Each sub-DAG is run by a single framework on behalf of a
// single set of parties, and running the sub-DAGs in order runs the
// whole graph.
package partition

import (
	"errors"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/brimdata/conclave/compiler/dag"
	"go.uber.org/zap"
)

// IterationLimit bounds the number of partitions carved from one DAG.
const IterationLimit = 100

var (
	ErrIterationLimit = errors.New("reached iteration limit while partitioning")
	ErrNoHoldingParty = errors.New("found no roots to partition on")
)

// A Partition is a sub-DAG together with the framework that runs it and
// the parties that hold its data.
type Partition struct {
	Framework string
	DAG       *dag.DAG
	Owners    dag.PartySet
}

// MPC reports whether the partition runs under an MPC framework.
func (p Partition) MPC() bool {
	return len(p.Owners) > 1
}

type Partitioner struct {
	mpc    string
	local  string
	logger *zap.Logger
}

// New returns a Partitioner that assigns mpc to partitions held by more
// than one party and local to the rest.
func New(mpc, local string, logger *zap.Logger) *Partitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Partitioner{
		mpc:    mpc,
		local:  local,
		logger: logger.Named("partition"),
	}
}

// Partition splits d into partitions.  It cuts the edges of d at each
// partition boundary and splices in Create nodes that stand for the
// materialized output of the previous partition, so d no longer reaches
// past its first partition afterwards.
func (p *Partitioner) Partition(d *dag.DAG) ([]Partition, error) {
	next := d.Sub(d.Roots())
	available := roaring.New()
	var partitions []Partition
	for k := 0; len(next.Roots()) != 0; k++ {
		if k == IterationLimit {
			return nil, ErrIterationLimit
		}
		holding, err := holdingParties(next, available)
		if err != nil {
			return nil, err
		}
		framework := p.local
		if len(holding) > 1 {
			framework = p.mpc
		}
		roots, err := newRoots(next, available, holding)
		if err != nil {
			return nil, err
		}
		rest := disconnect(next, available, roots)
		partitions = append(partitions, Partition{
			Framework: framework,
			DAG:       next,
			Owners:    holding,
		})
		p.logger.Debug("partition",
			zap.Int("index", k),
			zap.String("framework", framework),
			zap.Stringer("owners", holding),
			zap.Strings("roots", names(next, next.Roots())),
		)
		next = rest
	}
	return MergeNeighbors(partitions), nil
}

// storedWith returns the parties that hold the data of id for the
// purpose of partitioning.  An Open belongs with its shared input and an
// input relation belongs with its first consumer.
func storedWith(d *dag.DAG, id dag.ID) dag.PartySet {
	n := d.Node(id)
	switch n.Kind() {
	case dag.KindOpen:
		return d.InRel(id).StoredWith
	case dag.KindCreate:
		if children := d.SortedChildren(id); len(children) != 0 {
			return storedWith(d, children[0])
		}
	}
	return n.Out.StoredWith
}

func contains(b *roaring.Bitmap, id dag.ID) bool {
	return b.Contains(uint32(id))
}

// correctMode reports whether id can join the partition held by holding
// given the nodes already assigned to a partition.
func correctMode(d *dag.DAG, id dag.ID, available *roaring.Bitmap, holding dag.PartySet) bool {
	if !storedWith(d, id).Equal(holding) {
		return false
	}
	for _, p := range d.Node(id).Parents {
		if !contains(available, p) {
			return false
		}
	}
	return true
}

// canPartition reports whether holding can hold the next partition of d.
// It fails when a node held by holding would be cut off from an input
// that is computed now and not persisted.
func canPartition(d *dag.DAG, holding dag.PartySet, assigned *roaring.Bitmap) (bool, error) {
	ids, err := d.TopSort()
	if err != nil {
		return false, err
	}
	available := assigned.Clone()
	unavailable := roaring.New()
	for _, id := range ids {
		if contains(unavailable, id) && storedWith(d, id).Equal(holding) {
			for _, p := range d.Node(id).Parents {
				if contains(available, p) && d.Node(p).Kind() != dag.KindPersist {
					return false, nil
				}
			}
		}
		if correctMode(d, id, available, holding) {
			available.Add(uint32(id))
			continue
		}
		for _, desc := range d.Descendants(id) {
			unavailable.Add(uint32(desc))
		}
	}
	return true, nil
}

// holdingParties picks the owners of the next partition from the roots
// of d in name order.
func holdingParties(d *dag.DAG, available *roaring.Bitmap) (dag.PartySet, error) {
	for _, r := range d.Roots() {
		holding := storedWith(d, r)
		ok, err := canPartition(d, holding, available)
		if err != nil {
			return nil, err
		}
		if ok {
			return holding, nil
		}
	}
	return nil, ErrNoHoldingParty
}

// newRoots adds the nodes of the partition held by holding to available
// and returns the nodes where the following partition begins.
func newRoots(d *dag.DAG, available *roaring.Bitmap, holding dag.PartySet) ([]dag.ID, error) {
	ids, err := d.TopSort()
	if err != nil {
		return nil, err
	}
	var roots []dag.ID
	for _, id := range ids {
		if correctMode(d, id, available, holding) {
			available.Add(uint32(id))
			continue
		}
		n := d.Node(id)
		if n.IsRoot() || slices.ContainsFunc(n.Parents, func(p dag.ID) bool { return contains(available, p) }) {
			if !slices.Contains(roots, id) {
				roots = append(roots, id)
			}
		}
	}
	return roots, nil
}

// disconnect cuts every edge from an available node into one of roots and
// feeds the root from a Create of the same relation instead.  Roots that
// share a parent share its Create.  The roots are removed from d and the
// remainder of the graph is returned.
func disconnect(d *dag.DAG, available *roaring.Bitmap, roots []dag.ID) *dag.DAG {
	rest := d.Sub(nil)
	creates := make(map[dag.ID]dag.ID)
	for _, r := range roots {
		for _, p := range d.SortedParents(r) {
			if !contains(available, p) {
				continue
			}
			c, ok := creates[p]
			if !ok {
				c = rest.NewNode(&dag.Create{}, d.Node(p).Out.Copy())
				rest.Node(c).MPC = d.Node(r).MPC
				creates[p] = c
			}
			d.Reparent(r, p, c)
		}
		d.RemoveRoot(r)
	}
	for _, r := range roots {
		n := d.Node(r)
		for _, p := range n.Parents {
			rest.AddRoot(p)
		}
		if n.Kind() == dag.KindCreate {
			rest.AddRoot(r)
		}
	}
	return rest
}

// MergeNeighbors combines adjacent partitions that run on the same
// framework for the same owners.
func MergeNeighbors(partitions []Partition) []Partition {
	var merged []Partition
	for _, p := range partitions {
		if k := len(merged) - 1; k >= 0 && merged[k].Framework == p.Framework && merged[k].Owners.Equal(p.Owners) {
			prev := merged[k]
			merged[k] = Partition{
				Framework: prev.Framework,
				DAG:       prev.DAG.Sub(append(prev.DAG.Roots(), p.DAG.Roots()...)),
				Owners:    prev.Owners,
			}
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

func names(d *dag.DAG, ids []dag.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.Node(id).Name())
	}
	return out
}
