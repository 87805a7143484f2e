// Package frontend provides the builders that construct a protocol's DAG.
// Each builder resolves its column arguments against the relations of its
// inputs, derives the output relation, wires the new node below its
// inputs, and returns the handle of the new node.
package frontend

import (
	"errors"
	"fmt"
	"slices"

	"github.com/brimdata/conclave/compiler/dag"
)

type Builder struct {
	dag   *dag.DAG
	names map[string]bool
}

// New returns a Builder for a new, empty DAG.
func New() *Builder {
	return NewBuilder(dag.New())
}

// NewBuilder returns a Builder that adds nodes to d.
func NewBuilder(d *dag.DAG) *Builder {
	b := &Builder{dag: d, names: make(map[string]bool)}
	for _, id := range d.Nodes() {
		b.names[d.Node(id).Name()] = true
	}
	return b
}

func (b *Builder) DAG() *dag.DAG {
	return b.dag
}

// ColumnDef declares a column of an input relation.
type ColumnDef struct {
	Name string
	// Type defaults to INTEGER.
	Type  string
	Trust dag.TrustSet
}

// An Operand of Filter, Multiply, or Divide is a column or a scalar.
type Operand struct {
	col    string
	scalar int64
}

func Col(name string) Operand {
	return Operand{col: name}
}

func Scalar(v int64) Operand {
	return Operand{scalar: v}
}

func (o Operand) IsCol() bool {
	return o.col != ""
}

func (b *Builder) node(id dag.ID) (*dag.Node, error) {
	n := b.dag.Node(id)
	if n == nil {
		return nil, fmt.Errorf("no such operator (id %d)", id)
	}
	return n, nil
}

func (b *Builder) rel(id dag.ID) (*dag.Relation, error) {
	n, err := b.node(id)
	if err != nil {
		return nil, err
	}
	return n.Out, nil
}

func (b *Builder) resolve(rel *dag.Relation, names ...string) ([]dag.Column, error) {
	cols := make([]dag.Column, 0, len(names))
	for _, name := range names {
		c, err := rel.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func refs(cols []dag.Column) []dag.ColRef {
	out := make([]dag.ColRef, 0, len(cols))
	for _, c := range cols {
		out = append(out, dag.Ref(c))
	}
	return out
}

// derived copies cols for use in an output relation with their trust
// sets cleared.  Propagation fills them in later.
func derived(cols ...dag.Column) []dag.Column {
	out := slices.Clone(cols)
	for k := range out {
		out[k].Trust = dag.TrustSet{}
	}
	return out
}

func newColumn(name string) dag.Column {
	return dag.Column{Name: name, Type: dag.TypeInteger}
}

func (b *Builder) storedWith(parents ...dag.ID) dag.PartySet {
	var sets []dag.PartySet
	for _, p := range parents {
		sets = append(sets, b.dag.Node(p).Out.StoredWith)
	}
	return dag.UnionAll(sets...)
}

func (b *Builder) add(op dag.Op, name string, cols []dag.Column, storedWith dag.PartySet, parents ...dag.ID) (dag.ID, error) {
	if name == "" {
		return dag.None, fmt.Errorf("%s: relation name required", op.Kind())
	}
	if b.names[name] {
		return dag.None, fmt.Errorf("%s %q: relation already exists", op.Kind(), name)
	}
	b.names[name] = true
	return b.dag.NewNode(op, dag.NewRelation(name, cols, storedWith), parents...), nil
}

func wrap(kind dag.Kind, name string, err error) error {
	return fmt.Errorf("%s %q: %w", kind, name, err)
}

// Create declares an input relation stored with the given parties.
func (b *Builder) Create(name string, cols []ColumnDef, storedWith dag.PartySet) (dag.ID, error) {
	if len(cols) == 0 {
		return dag.None, wrap(dag.KindCreate, name, errors.New("no columns"))
	}
	if len(storedWith) == 0 {
		return dag.None, wrap(dag.KindCreate, name, errors.New("no owners"))
	}
	out := make([]dag.Column, 0, len(cols))
	for _, c := range cols {
		typ := c.Type
		if typ == "" {
			typ = dag.TypeInteger
		}
		out = append(out, dag.Column{Name: c.Name, Type: typ, Trust: c.Trust})
	}
	return b.add(&dag.Create{}, name, out, storedWith)
}

// Collect pins the output of id to party pid.
func (b *Builder) Collect(id dag.ID, pid int) error {
	n, err := b.node(id)
	if err != nil {
		return err
	}
	n.Out.StoredWith = dag.NewPartySet(pid)
	return nil
}

// identity adds a node whose output is its input.  The output columns
// keep the trust sets of the input columns.
func (b *Builder) identity(op dag.Op, in dag.ID, name string, storedWith dag.PartySet) (dag.ID, error) {
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(op.Kind(), name, err)
	}
	if storedWith == nil {
		storedWith = rel.StoredWith
	}
	return b.add(op, name, rel.Columns, storedWith, in)
}

func (b *Builder) Store(in dag.ID, name string) (dag.ID, error) {
	return b.identity(&dag.Store{}, in, name, nil)
}

func (b *Builder) Persist(in dag.ID, name string) (dag.ID, error) {
	return b.identity(&dag.Persist{}, in, name, nil)
}

func (b *Builder) Shuffle(in dag.ID, name string) (dag.ID, error) {
	return b.identity(&dag.Shuffle{}, in, name, nil)
}

// Open reveals the shared relation in to party target.
func (b *Builder) Open(in dag.ID, name string, target int) (dag.ID, error) {
	return b.identity(&dag.Open{}, in, name, dag.NewPartySet(target))
}

// Close secret-shares in among the parties of target.
func (b *Builder) Close(in dag.ID, name string, target dag.PartySet) (dag.ID, error) {
	if len(target) == 0 {
		return dag.None, wrap(dag.KindClose, name, errors.New("no target parties"))
	}
	return b.identity(&dag.Close{}, in, name, target)
}

func (b *Builder) Limit(in dag.ID, name string, num int) (dag.ID, error) {
	if num < 0 {
		return dag.None, wrap(dag.KindLimit, name, fmt.Errorf("negative limit %d", num))
	}
	return b.identity(&dag.Limit{Num: num}, in, name, nil)
}

// Clone copies node id into a detached node whose relation is called name.
func (b *Builder) Clone(id dag.ID, name string) (dag.ID, error) {
	n, err := b.node(id)
	if err != nil {
		return dag.None, err
	}
	if b.names[name] {
		return dag.None, fmt.Errorf("%s %q: relation already exists", n.Kind(), name)
	}
	b.names[name] = true
	cid := b.dag.Clone(id)
	b.dag.Node(cid).Out.Rename(name)
	return cid, nil
}

// Retire releases the name of the detached node id for reuse.
func (b *Builder) Retire(id dag.ID) {
	if n := b.dag.Node(id); n != nil {
		delete(b.names, n.Name())
	}
}

// Reclaim takes back the name of node id after Retire.
func (b *Builder) Reclaim(id dag.ID) {
	if n := b.dag.Node(id); n != nil {
		b.names[n.Name()] = true
	}
}

// Unique returns base if no relation is called base and otherwise the
// first of base_1, base_2, ... that is free.
func (b *Builder) Unique(base string) string {
	if !b.names[base] {
		return base
	}
	for k := 1; ; k++ {
		name := fmt.Sprintf("%s_%d", base, k)
		if !b.names[name] {
			return name
		}
	}
}
