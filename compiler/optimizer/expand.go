package optimizer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/brimdata/conclave/compiler/dag"
	"go.uber.org/zap"
)

// expand rewrites each hybrid operator into primitive operators.
func (o *Optimizer) expand() error {
	ids, err := o.order()
	if err != nil {
		return err
	}
	for _, id := range ids {
		n := o.node(id)
		switch op := n.Op.(type) {
		case *dag.HybridJoin:
			err = o.expandHybridJoin(id, op)
		case *dag.HybridAggregate:
			if o.cfg.UseLeakyOps {
				err = o.expandLeakyHybridAggregate(id, op)
			} else {
				err = o.expandHybridAggregate(id, op)
			}
		case *dag.PublicJoin:
			err = o.expandPublicJoin(id)
		}
		if err != nil {
			return opError(n, err)
		}
	}
	if o.nrewrite == 0 {
		return nil
	}
	// Expansion adds nodes whose trust sets are not yet derived.
	return o.propagateTrust()
}

// steps accumulates the nodes of an expansion so that the first error
// short-circuits the remaining builder calls.  On failure, undo restores
// the graph as it was before the expansion began.
type steps struct {
	o       *Optimizer
	suffix  string
	err     error
	created []dag.ID
	cut     []cutEdges
	retired []dag.ID
}

type cutEdges struct {
	child   dag.ID
	parents []dag.ID
}

func (s *steps) name(role string) string {
	return role + s.suffix
}

func (s *steps) add(build func() (dag.ID, error)) dag.ID {
	if s.err != nil {
		return dag.None
	}
	id, err := build()
	if err != nil {
		s.err = err
		return dag.None
	}
	s.created = append(s.created, id)
	return id
}

// detach removes every input edge of id.
func (s *steps) detach(id dag.ID) {
	d := s.o.dag
	parents := slices.Clone(d.Node(id).Parents)
	s.cut = append(s.cut, cutEdges{id, parents})
	for _, p := range d.SortedParents(id) {
		d.Unlink(p, id)
	}
}

// retire releases the name of id so that its replacement can take it.
func (s *steps) retire(id dag.ID) {
	s.o.builder.Retire(id)
	s.retired = append(s.retired, id)
}

// undo detaches the nodes the expansion created, restores the edges it
// cut, and returns err.
func (s *steps) undo(err error) error {
	d := s.o.dag
	b := s.o.builder
	for _, id := range slices.Backward(s.created) {
		for _, p := range d.SortedParents(id) {
			d.Unlink(p, id)
		}
		b.Retire(id)
	}
	for _, c := range slices.Backward(s.cut) {
		for _, p := range c.parents {
			d.Link(p, c.child)
		}
	}
	for _, id := range s.retired {
		b.Reclaim(id)
	}
	return err
}

// mpc is like add and also marks the new node to run under MPC.
func (s *steps) mpc(build func() (dag.ID, error)) dag.ID {
	id := s.add(build)
	if id != dag.None {
		s.o.mark(id)
	}
	return id
}

// expandHybridJoin lets the trusted party compute which rows of the two
// inputs match.  Both inputs are shuffled and their keys revealed to the
// trusted party, which joins the row indexes in the clear.  The closed
// index pairs then drive an IndexJoin over the shuffled inputs.
func (o *Optimizer) expandHybridJoin(id dag.ID, join *dag.HybridJoin) error {
	n := o.node(id)
	s := &steps{o: o, suffix: fmt.Sprintf("_hybrid_join_%d", o.nhybridJoin)}
	o.nhybridJoin++
	b := o.builder
	left, right := n.Parents[0], n.Parents[1]
	in := o.dag.ParentStoredWith(id)
	tp := join.TrustedParty
	leftKeys, rightKeys := dag.RefNames(join.Left), dag.RefNames(join.Right)
	s.detach(id)

	ls := s.mpc(func() (dag.ID, error) { return b.Shuffle(left, s.name("left_shuffled")) })
	rs := s.mpc(func() (dag.ID, error) { return b.Shuffle(right, s.name("right_shuffled")) })
	lp := s.mpc(func() (dag.ID, error) { return b.Persist(ls, s.name("left_persisted")) })
	rp := s.mpc(func() (dag.ID, error) { return b.Persist(rs, s.name("right_persisted")) })
	lk := s.mpc(func() (dag.ID, error) { return b.Project(ls, s.name("left_keys_closed"), leftKeys) })
	rk := s.mpc(func() (dag.ID, error) { return b.Project(rs, s.name("right_keys_closed"), rightKeys) })
	lo := s.add(func() (dag.ID, error) { return b.Open(lk, s.name("left_keys_open"), tp) })
	ro := s.add(func() (dag.ID, error) { return b.Open(rk, s.name("right_keys_open"), tp) })
	li := s.add(func() (dag.ID, error) { return b.Index(lo, s.name("left_indexed"), "lidx") })
	ri := s.add(func() (dag.ID, error) { return b.Index(ro, s.name("right_indexed"), "ridx") })
	ji := s.add(func() (dag.ID, error) { return b.Join(li, ri, s.name("joined_indexes"), leftKeys, rightKeys) })
	ix := s.add(func() (dag.ID, error) { return b.Project(ji, s.name("indexes"), []string{"lidx", "ridx"}) })
	ic := s.add(func() (dag.ID, error) { return b.Close(ix, s.name("indexes_closed"), in) })
	if s.err != nil {
		return s.undo(s.err)
	}
	s.retire(id)
	res, err := b.IndexJoin(lp, rp, n.Name(), leftKeys, rightKeys, ic)
	if err != nil {
		return s.undo(err)
	}
	o.rewrote("expand", id, zap.Int("trusted", tp))
	return o.replace(id, res)
}

// expandHybridAggregate lets the trusted party sort the group keys in
// the clear and flag equal neighbours.  The closed flags and sorted keys
// drive an IndexAggregate over the shuffled input.
func (o *Optimizer) expandHybridAggregate(id dag.ID, agg *dag.HybridAggregate) error {
	s := o.hybridAggregateSteps()
	b := o.builder
	key := agg.Group[0].Name
	shared := o.dag.ParentStoredWith(id)
	ps, keys := o.openKeys(s, id, key, agg.TrustedParty)
	ix := s.add(func() (dag.ID, error) { return b.Index(keys, s.name("indexed"), "row_index") })
	sorted := s.add(func() (dag.ID, error) { return b.SortBy(ix, s.name("sorted_by_key"), key) })
	eq := s.add(func() (dag.ID, error) { return b.CompNeighs(sorted, s.name("eq_flags"), key) })
	sk := s.add(func() (dag.ID, error) {
		return b.Project(sorted, s.name("sorted_keys"), []string{"row_index", key})
	})
	eqc := s.add(func() (dag.ID, error) { return b.Close(eq, s.name("eq_flags_closed"), shared) })
	skc := s.add(func() (dag.ID, error) { return b.Close(sk, s.name("sorted_keys_closed"), shared) })
	if s.err != nil {
		return s.undo(s.err)
	}
	n := o.node(id)
	group, over, out := o.aggregateArgs(id, &agg.Aggregate)
	s.retire(id)
	res, err := b.IndexAggregate(ps, n.Name(), group, over, agg.Aggregator, out, eqc, skc)
	if err != nil {
		return s.undo(err)
	}
	o.rewrote("expand", id, zap.Int("trusted", agg.TrustedParty))
	return o.replace(id, res)
}

// expandLeakyHybridAggregate is like expandHybridAggregate but has the
// trusted party map every row to the index of its distinct key.  This
// reveals the number of distinct keys.
func (o *Optimizer) expandLeakyHybridAggregate(id dag.ID, agg *dag.HybridAggregate) error {
	s := o.hybridAggregateSteps()
	b := o.builder
	key := agg.Group[0].Name
	shared := o.dag.ParentStoredWith(id)
	ps, keys := o.openKeys(s, id, key, agg.TrustedParty)
	ix := s.add(func() (dag.ID, error) { return b.Index(keys, s.name("indexed"), "row_index") })
	dk := s.add(func() (dag.ID, error) { return b.Distinct(keys, s.name("distinct_keys"), []string{key}) })
	dki := s.add(func() (dag.ID, error) { return b.Index(dk, s.name("indexed_distinct_keys"), "key_index") })
	kj := s.add(func() (dag.ID, error) {
		return b.Join(ix, dki, s.name("keys_to_index_join"), []string{key}, []string{key})
	})
	km := s.add(func() (dag.ID, error) {
		return b.Project(kj, s.name("keys_to_index"), []string{"row_index", "key_index"})
	})
	dkc := s.add(func() (dag.ID, error) { return b.Close(dki, s.name("distinct_keys_closed"), shared) })
	kmc := s.add(func() (dag.ID, error) { return b.Close(km, s.name("keys_to_index_closed"), shared) })
	if s.err != nil {
		return s.undo(s.err)
	}
	n := o.node(id)
	group, over, out := o.aggregateArgs(id, &agg.Aggregate)
	s.retire(id)
	res, err := b.LeakyIndexAggregate(ps, n.Name(), group, over, agg.Aggregator, out, dkc, kmc)
	if err != nil {
		return s.undo(err)
	}
	o.rewrote("expand", id, zap.Int("trusted", agg.TrustedParty), zap.Bool("leaky", true))
	return o.replace(id, res)
}

func (o *Optimizer) hybridAggregateSteps() *steps {
	s := &steps{o: o, suffix: fmt.Sprintf("_hybrid_agg_%d", o.nhybridAgg)}
	o.nhybridAgg++
	return s
}

// openKeys detaches the aggregate id from its input, shuffles and
// persists the input under MPC, and reveals the key column of the
// shuffled rows to the trusted party tp.  It returns the persisted input
// and the revealed keys.
func (o *Optimizer) openKeys(s *steps, id dag.ID, key string, tp int) (dag.ID, dag.ID) {
	b := o.builder
	in := o.node(id).Parents[0]
	s.detach(id)
	sh := s.mpc(func() (dag.ID, error) { return b.Shuffle(in, s.name("shuffled")) })
	ps := s.mpc(func() (dag.ID, error) { return b.Persist(sh, s.name("persisted")) })
	kc := s.mpc(func() (dag.ID, error) { return b.Project(sh, s.name("keys_closed"), []string{key}) })
	keys := s.add(func() (dag.ID, error) { return b.Open(kc, s.name("keys_open"), tp) })
	return ps, keys
}

// aggregateArgs recovers the builder arguments of the aggregate id.
func (o *Optimizer) aggregateArgs(id dag.ID, agg *dag.Aggregate) ([]string, string, string) {
	n := o.node(id)
	var over string
	if agg.Agg != nil {
		over = agg.Agg.Name
	}
	return dag.RefNames(agg.Group), over, n.Out.Columns[len(agg.Group)].Name
}

// expandPublicJoin joins the two parties' rows in the clear with the
// pub_join protocol.  Each party joins its own parts of the two inputs
// with the other party's, the two results are secret-shared, and their
// element-wise product is the join.
func (o *Optimizer) expandPublicJoin(id dag.ID) error {
	n := o.node(id)
	owners := o.dag.ParentStoredWith(id)
	lc, rc := n.Parents[0], n.Parents[1]
	left, lok := o.parts(lc, owners)
	right, rok := o.parts(rc, owners)
	if !lok || !rok || len(owners) != 2 {
		return errors.New("internal error: public join inputs are not per-party concats")
	}
	server, client := owners[0], owners[1]
	party, err := o.cfg.Party(server)
	if err != nil {
		return err
	}
	s := &steps{o: o, suffix: fmt.Sprintf("_public_join_%d", o.npublicJoin)}
	o.npublicJoin++
	b := o.builder
	s.detach(lc)
	s.detach(rc)
	s.detach(id)
	keyOf := func(in dag.ID) string {
		return o.node(in).Out.Columns[0].Name
	}
	sj := s.add(func() (dag.ID, error) {
		return b.PubJoin(left[server], s.name("server_join"), keyOf(left[server]), party.Host, party.Port, true, right[server])
	})
	cj := s.add(func() (dag.ID, error) {
		return b.PubJoin(left[client], s.name("client_join"), keyOf(left[client]), party.Host, party.Port, false, right[client])
	})
	sc := s.add(func() (dag.ID, error) { return b.Close(sj, s.name("server_join_closed"), owners) })
	cc := s.add(func() (dag.ID, error) { return b.Close(cj, s.name("client_join_closed"), owners) })
	if s.err != nil {
		return s.undo(s.err)
	}
	s.retire(id)
	res, err := b.ConcatCols([]dag.ID{sc, cc}, n.Name(), true)
	if err != nil {
		return s.undo(err)
	}
	o.mark(res)
	o.rewrote("expand", id, zap.String("server", party.Addr()))
	return o.replace(id, res)
}
