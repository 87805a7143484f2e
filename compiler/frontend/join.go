package frontend

import (
	"errors"
	"fmt"
	"slices"

	"github.com/brimdata/conclave/compiler/dag"
)

const (
	DefaultHost = "ca-spark-node-0"
	DefaultPort = 8042
)

type joinKeys struct {
	left, right       *dag.Relation
	leftKey, rightKey []dag.Column
}

func (b *Builder) joinKeys(left, right dag.ID, leftCols, rightCols []string) (*joinKeys, error) {
	if len(leftCols) == 0 || len(leftCols) != len(rightCols) {
		return nil, fmt.Errorf("mismatched join keys %v and %v", leftCols, rightCols)
	}
	l, err := b.rel(left)
	if err != nil {
		return nil, err
	}
	r, err := b.rel(right)
	if err != nil {
		return nil, err
	}
	lk, err := b.resolve(l, leftCols...)
	if err != nil {
		return nil, err
	}
	rk, err := b.resolve(r, rightCols...)
	if err != nil {
		return nil, err
	}
	return &joinKeys{left: l, right: r, leftKey: lk, rightKey: rk}, nil
}

func (j *joinKeys) payload() dag.Join {
	return dag.Join{Left: refs(j.leftKey), Right: refs(j.rightKey)}
}

// columns returns the key columns followed by the non-key columns of the
// left input and then those of the right input.
func (j *joinKeys) columns() []dag.Column {
	cols := derived(j.leftKey...)
	cols = append(cols, derived(nonKeys(j.left, j.leftKey)...)...)
	return append(cols, derived(nonKeys(j.right, j.rightKey)...)...)
}

func nonKeys(rel *dag.Relation, keys []dag.Column) []dag.Column {
	var out []dag.Column
	for _, c := range rel.Columns {
		if !slices.ContainsFunc(keys, func(k dag.Column) bool { return k.Idx == c.Idx }) {
			out = append(out, c)
		}
	}
	return out
}

func (j *joinKeys) storedWith() dag.PartySet {
	return j.left.StoredWith.Union(j.right.StoredWith)
}

// Join computes the equi-join of left and right on the paired key columns.
func (b *Builder) Join(left, right dag.ID, name string, leftCols, rightCols []string) (dag.ID, error) {
	j, err := b.joinKeys(left, right, leftCols, rightCols)
	if err != nil {
		return dag.None, wrap(dag.KindJoin, name, err)
	}
	op := j.payload()
	return b.add(&op, name, j.columns(), j.storedWith(), left, right)
}

// JoinFlags computes, in row-major order over left and right, a flag
// column that marks the pairs of rows whose keys match.
func (b *Builder) JoinFlags(left, right dag.ID, name string, leftCols, rightCols []string) (dag.ID, error) {
	j, err := b.joinKeys(left, right, leftCols, rightCols)
	if err != nil {
		return dag.None, wrap(dag.KindJoinFlags, name, err)
	}
	op := &dag.JoinFlags{Join: j.payload()}
	return b.add(op, name, []dag.Column{newColumn("flags")}, j.storedWith(), left, right)
}

// FlagJoin computes the join of left and right selected by flags.
func (b *Builder) FlagJoin(left, right dag.ID, name string, leftCols, rightCols []string, flags dag.ID) (dag.ID, error) {
	j, err := b.joinKeys(left, right, leftCols, rightCols)
	if err != nil {
		return dag.None, wrap(dag.KindFlagJoin, name, err)
	}
	op := &dag.FlagJoin{Join: j.payload()}
	return b.add(op, name, j.columns(), j.storedWith(), left, right, flags)
}

// IndexJoin computes the join of left and right from the pairs of row
// indexes of index.
func (b *Builder) IndexJoin(left, right dag.ID, name string, leftCols, rightCols []string, index dag.ID) (dag.ID, error) {
	j, err := b.joinKeys(left, right, leftCols, rightCols)
	if err != nil {
		return dag.None, wrap(dag.KindIndexJoin, name, err)
	}
	op := &dag.IndexJoin{Join: j.payload()}
	return b.add(op, name, j.columns(), j.storedWith(), left, right, index)
}

// Union outputs the distinct values of leftCol and rightCol as a single
// column named after leftCol.
func (b *Builder) Union(left, right dag.ID, name, leftCol, rightCol string) (dag.ID, error) {
	l, err := b.rel(left)
	if err != nil {
		return dag.None, wrap(dag.KindUnion, name, err)
	}
	r, err := b.rel(right)
	if err != nil {
		return dag.None, wrap(dag.KindUnion, name, err)
	}
	lc, err := l.Column(leftCol)
	if err != nil {
		return dag.None, wrap(dag.KindUnion, name, err)
	}
	rc, err := r.Column(rightCol)
	if err != nil {
		return dag.None, wrap(dag.KindUnion, name, err)
	}
	op := &dag.Union{Left: dag.Ref(lc), Right: dag.Ref(rc)}
	return b.add(op, name, []dag.Column{newColumn(leftCol)}, l.StoredWith.Union(r.StoredWith), left, right)
}

// FilterBy keeps the rows of in whose value of col appears (or, with
// notIn, does not appear) in the single-column relation by.
func (b *Builder) FilterBy(in, by dag.ID, name, col string, notIn bool) (dag.ID, error) {
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindFilterBy, name, err)
	}
	c, err := rel.Column(col)
	if err != nil {
		return dag.None, wrap(dag.KindFilterBy, name, err)
	}
	byRel, err := b.rel(by)
	if err != nil {
		return dag.None, wrap(dag.KindFilterBy, name, err)
	}
	if len(byRel.Columns) != 1 {
		return dag.None, wrap(dag.KindFilterBy, name, fmt.Errorf("relation %q must have exactly one column", byRel.Name))
	}
	op := &dag.FilterBy{Col: dag.Ref(c), NotIn: notIn}
	return b.add(op, name, derived(rel.Columns...), rel.StoredWith, in, by)
}

// IndexesToFlags converts the row indexes of lookup into a flag column
// over the rows of in.
func (b *Builder) IndexesToFlags(in, lookup dag.ID, name string, stage int) (dag.ID, error) {
	if _, err := b.rel(in); err != nil {
		return dag.None, wrap(dag.KindIndexesToFlags, name, err)
	}
	l, err := b.rel(lookup)
	if err != nil {
		return dag.None, wrap(dag.KindIndexesToFlags, name, err)
	}
	op := &dag.IndexesToFlags{Stage: stage}
	return b.add(op, name, derived(l.Columns[0]), l.StoredWith, in, lookup)
}

func hostPort(host string, port int) (string, int) {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return host, port
}

// PubIntersect computes, together with a peer PubIntersect at another
// party, the intersection of the values of col in the clear.
func (b *Builder) PubIntersect(in dag.ID, name, col, host string, port int, server bool) (dag.ID, error) {
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindPubIntersect, name, err)
	}
	c, err := rel.Column(col)
	if err != nil {
		return dag.None, wrap(dag.KindPubIntersect, name, err)
	}
	host, port = hostPort(host, port)
	op := &dag.PubIntersect{Col: dag.Ref(c), Host: host, Port: port, Server: server}
	return b.add(op, name, []dag.Column{newColumn(col)}, rel.StoredWith, in)
}

// PubJoin computes, together with a peer PubJoin at another party, a join
// on the key column key, which must be the first column of in.  When
// other is not None, the non-key columns of other are appended.
func (b *Builder) PubJoin(in dag.ID, name, key, host string, port int, server bool, other dag.ID) (dag.ID, error) {
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindPubJoin, name, err)
	}
	c, err := rel.Column(key)
	if err != nil {
		return dag.None, wrap(dag.KindPubJoin, name, err)
	}
	if c.Idx != 0 {
		return dag.None, wrap(dag.KindPubJoin, name, fmt.Errorf("key column %q must be the first column", key))
	}
	cols := derived(rel.Columns...)
	parents := []dag.ID{in}
	if other != dag.None {
		o, err := b.rel(other)
		if err != nil {
			return dag.None, wrap(dag.KindPubJoin, name, err)
		}
		cols = append(cols, derived(o.Columns[1:]...)...)
		parents = append(parents, other)
	}
	host, port = hostPort(host, port)
	op := &dag.PubJoin{Key: dag.Ref(c), Host: host, Port: port, Server: server}
	return b.add(op, name, cols, rel.StoredWith, parents...)
}

// Concat stacks the rows of inputs, which must have the same width.  The
// output columns are named after those of the first input unless names
// is given.
func (b *Builder) Concat(inputs []dag.ID, name string, names []string) (dag.ID, error) {
	if len(inputs) < 2 {
		return dag.None, wrap(dag.KindConcat, name, errors.New("at least two inputs required"))
	}
	rels, err := b.rels(inputs)
	if err != nil {
		return dag.None, wrap(dag.KindConcat, name, err)
	}
	width := len(rels[0].Columns)
	for _, r := range rels[1:] {
		if len(r.Columns) != width {
			return dag.None, wrap(dag.KindConcat, name, fmt.Errorf("relation %q has %d columns, expected %d", r.Name, len(r.Columns), width))
		}
	}
	cols := derived(rels[0].Columns...)
	if names != nil {
		if len(names) != width {
			return dag.None, wrap(dag.KindConcat, name, fmt.Errorf("%d column names given for %d columns", len(names), width))
		}
		for k := range cols {
			cols[k].Name = names[k]
		}
	}
	return b.add(&dag.Concat{}, name, cols, b.storedWith(inputs...), inputs...)
}

// ConcatCols places the columns of inputs side by side.  With useMult,
// the inputs must have the same schema and the output is their
// element-wise product.
func (b *Builder) ConcatCols(inputs []dag.ID, name string, useMult bool) (dag.ID, error) {
	if len(inputs) < 2 {
		return dag.None, wrap(dag.KindConcatCols, name, errors.New("at least two inputs required"))
	}
	rels, err := b.rels(inputs)
	if err != nil {
		return dag.None, wrap(dag.KindConcatCols, name, err)
	}
	var cols []dag.Column
	if useMult {
		for _, r := range rels[1:] {
			if len(r.Columns) != len(rels[0].Columns) {
				return dag.None, wrap(dag.KindConcatCols, name, fmt.Errorf("relation %q has %d columns, expected %d", r.Name, len(r.Columns), len(rels[0].Columns)))
			}
		}
		cols = derived(rels[0].Columns...)
	} else {
		for _, r := range rels {
			cols = append(cols, derived(r.Columns...)...)
		}
	}
	return b.add(&dag.ConcatCols{UseMult: useMult}, name, cols, b.storedWith(inputs...), inputs...)
}

// Blackbox runs opaque code for backend over inputs producing the
// columns cols.
func (b *Builder) Blackbox(inputs []dag.ID, name string, cols []string, backend, code string) (dag.ID, error) {
	if len(inputs) == 0 {
		return dag.None, wrap(dag.KindBlackbox, name, errors.New("no inputs"))
	}
	if len(cols) == 0 {
		return dag.None, wrap(dag.KindBlackbox, name, errors.New("no columns"))
	}
	if _, err := b.rels(inputs); err != nil {
		return dag.None, wrap(dag.KindBlackbox, name, err)
	}
	out := make([]dag.Column, 0, len(cols))
	for _, c := range cols {
		out = append(out, newColumn(c))
	}
	op := &dag.Blackbox{Backend: backend, Code: code}
	return b.add(op, name, out, b.storedWith(inputs...), inputs...)
}

func (b *Builder) rels(ids []dag.ID) ([]*dag.Relation, error) {
	rels := make([]*dag.Relation, 0, len(ids))
	for _, id := range ids {
		r, err := b.rel(id)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, nil
}
