package dag

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrCycle    = errors.New("cycle detected")
	ErrNotUnary = errors.New("operator is not unary")
	ErrHasEdges = errors.New("operator already has edges")
)

type arena struct {
	nodes []*Node
}

// DAG is a view of the nodes of an arena reachable from a set of roots.
// Views created with Sub share the arena of their parent so that the
// partitioner can carve a graph into sub-DAGs without copying nodes.
type DAG struct {
	arena *arena
	roots []ID
}

func New() *DAG {
	return &DAG{arena: &arena{}}
}

// Sub returns a view of d's arena rooted at roots.
func (d *DAG) Sub(roots []ID) *DAG {
	return &DAG{arena: d.arena, roots: slices.Clone(roots)}
}

func (d *DAG) Node(id ID) *Node {
	if id < 0 || int(id) >= len(d.arena.nodes) {
		return nil
	}
	return d.arena.nodes[id]
}

// Roots returns the roots of d ordered by relation name.
func (d *DAG) Roots() []ID {
	return d.sortByName(slices.Clone(d.roots))
}

func (d *DAG) HasRoot(id ID) bool {
	return slices.Contains(d.roots, id)
}

func (d *DAG) AddRoot(id ID) {
	if !d.HasRoot(id) {
		d.roots = append(d.roots, id)
	}
}

func (d *DAG) RemoveRoot(id ID) {
	d.roots = slices.DeleteFunc(d.roots, func(r ID) bool { return r == id })
}

// NewNode allocates a node in the arena and links it below parents.
// A node without parents becomes a root of d.
func (d *DAG) NewNode(op Op, out *Relation, parents ...ID) ID {
	id := ID(len(d.arena.nodes))
	n := &Node{
		ID:    id,
		Op:    op,
		Out:   out,
		MPC:   op.Kind().FixedMPC(),
		Local: op.Kind().local(),
	}
	d.arena.nodes = append(d.arena.nodes, n)
	for _, p := range parents {
		d.Link(p, id)
	}
	if len(parents) == 0 {
		d.roots = append(d.roots, id)
	}
	return id
}

// Clone allocates a copy of node id with the same payload, relation,
// and flags but no edges.
func (d *DAG) Clone(id ID) ID {
	n := d.Node(id)
	cid := ID(len(d.arena.nodes))
	d.arena.nodes = append(d.arena.nodes, &Node{
		ID:    cid,
		Op:    n.Op.copyOp(),
		Out:   n.Out.Copy(),
		MPC:   n.MPC,
		Local: n.Local,
		Skip:  n.Skip,
	})
	return cid
}

// Link appends parent to the parents of child and adds child to the
// children of parent.
func (d *DAG) Link(parent, child ID) {
	c := d.Node(child)
	c.Parents = append(c.Parents, parent)
	d.addChild(parent, child)
}

// Unlink removes every edge from parent to child.
func (d *DAG) Unlink(parent, child ID) {
	c := d.Node(child)
	c.Parents = slices.DeleteFunc(c.Parents, func(p ID) bool { return p == parent })
	d.RemoveChild(parent, child)
}

func (d *DAG) addChild(parent, child ID) {
	p := d.Node(parent)
	if !p.hasChild(child) {
		p.Children = append(p.Children, child)
	}
}

// RemoveChild removes child from the child set of parent without
// touching the parents of child.
func (d *DAG) RemoveChild(parent, child ID) {
	p := d.Node(parent)
	p.Children = slices.DeleteFunc(p.Children, func(c ID) bool { return c == child })
}

// ReplaceParent substitutes newParent for every occurrence of oldParent
// among the parents of child, preserving position.
func (d *DAG) ReplaceParent(child, oldParent, newParent ID) {
	c := d.Node(child)
	for k, p := range c.Parents {
		if p == oldParent {
			c.Parents[k] = newParent
		}
	}
}

// ReplaceChild substitutes newChild for oldChild in the child set of parent.
func (d *DAG) ReplaceChild(parent, oldChild, newChild ID) {
	d.RemoveChild(parent, oldChild)
	d.addChild(parent, newChild)
}

// Reparent moves the edge from oldParent to child so that it leaves
// newParent instead, keeping its position among the parents of child.
func (d *DAG) Reparent(child, oldParent, newParent ID) {
	d.ReplaceParent(child, oldParent, newParent)
	d.RemoveChild(oldParent, child)
	d.addChild(newParent, child)
}

func (d *DAG) sortByName(ids []ID) []ID {
	slices.SortFunc(ids, func(a, b ID) int {
		if c := cmp.Compare(d.Node(a).Out.Name, d.Node(b).Out.Name); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

// SortedChildren returns the children of id ordered by relation name.
func (d *DAG) SortedChildren(id ID) []ID {
	return d.sortByName(slices.Clone(d.Node(id).Children))
}

// SortedParents returns the distinct parents of id ordered by relation name.
func (d *DAG) SortedParents(id ID) []ID {
	return slices.Compact(d.sortByName(slices.Clone(d.Node(id).Parents)))
}

// InRel returns the relation of the primary input of a unary node.
func (d *DAG) InRel(id ID) *Relation {
	n := d.Node(id)
	if len(n.Parents) == 0 {
		return nil
	}
	return d.Node(n.Parents[0]).Out
}

// ParentStoredWith returns the union of the ownership of the parents of id.
func (d *DAG) ParentStoredWith(id ID) PartySet {
	var out PartySet
	for _, p := range d.Node(id).Parents {
		out = out.Union(d.Node(p).Out.StoredWith)
	}
	return out
}

// ProducesShares reports whether the output of id is in secret-shared
// form, i.e., the node runs under MPC and does not reveal its result.
func (d *DAG) ProducesShares(id ID) bool {
	n := d.Node(id)
	return n.MPC && n.Kind() != KindOpen
}

// IsUpperBoundary reports whether id is an MPC node none of whose parents
// is an MPC node other than a Close.
func (d *DAG) IsUpperBoundary(id ID) bool {
	n := d.Node(id)
	if !n.MPC {
		return false
	}
	for _, pid := range n.Parents {
		p := d.Node(pid)
		if p.MPC && p.Kind() != KindClose {
			return false
		}
	}
	return true
}

// IsLowerBoundary reports whether id is an MPC node none of whose children
// is an MPC node other than an Open.
func (d *DAG) IsLowerBoundary(id ID) bool {
	n := d.Node(id)
	if !n.MPC {
		return false
	}
	for _, cid := range n.Children {
		c := d.Node(cid)
		if c.MPC && c.Kind() != KindOpen {
			return false
		}
	}
	return true
}

// RequiresMPC reports whether the inputs of id are spread across parties
// in a way that forces MPC execution.
func (d *DAG) RequiresMPC(id ID) bool {
	n := d.Node(id)
	switch n.Kind().Arity() {
	case Nullary:
		return false
	case Unary:
		in := d.InRel(id)
		return in != nil && in.IsShared() && !n.Local
	default:
		return len(d.ParentStoredWith(id)) > 1 && !n.Local
	}
}

// IsReversible reports whether the output of id determines its input so
// that the operator can be moved across a lower MPC boundary.
func (d *DAG) IsReversible(id ID) bool {
	n := d.Node(id)
	switch op := n.Op.(type) {
	case *Store, *Persist, *Open, *Close, *Concat, *Shuffle, *Index, *NumRows, *Divide:
		return true
	case *Project:
		in := d.InRel(id)
		return in != nil && len(op.Selected) == len(in.Columns)
	case *Multiply:
		for _, o := range op.Operands {
			if o.Col == nil && o.Const == 0 {
				return false
			}
		}
		return true
	}
	return false
}

// UpdateStoredWith recomputes the ownership of id from its parents.
// Open, Close, and inputs own their ownership.
func (d *DAG) UpdateStoredWith(id ID) {
	n := d.Node(id)
	switch n.Kind() {
	case KindCreate, KindOpen, KindClose:
		return
	}
	if len(n.Parents) == 0 {
		return
	}
	if n.Kind().Arity() == Unary {
		n.Out.StoredWith = slices.Clone(d.InRel(id).StoredWith)
		return
	}
	n.Out.StoredWith = d.ParentStoredWith(id)
}

// UpdateConcatColumns resets the schema of a Concat to a copy of the
// schema of its first input.
func (d *DAG) UpdateConcatColumns(id ID) {
	n := d.Node(id)
	in := d.InRel(id)
	n.Out.Columns = slices.Clone(in.Columns)
	n.Out.ClearTrust()
	n.Out.UpdateColumns()
}

// UpdateOpSpecificCols rebinds the column references held by the payload
// of id to the current relations of its parents.
func (d *DAG) UpdateOpSpecificCols(id ID) error {
	if err := d.rebind(id, d.Node(id).Op); err != nil {
		return fmt.Errorf("%s %q: %w", d.Node(id).Kind(), d.Node(id).Name(), err)
	}
	return nil
}

func (d *DAG) input(id ID, k int) (*Relation, error) {
	n := d.Node(id)
	if k >= len(n.Parents) {
		return nil, fmt.Errorf("internal error: missing input %d", k)
	}
	return d.Node(n.Parents[k]).Out, nil
}

func (d *DAG) rebind(id ID, op Op) error {
	if op.Kind().Arity() == Nullary {
		return nil
	}
	left, err := d.input(id, 0)
	if err != nil {
		return err
	}
	switch op := op.(type) {
	case *Project:
		return rebindAll(op.Selected, left)
	case *Distinct:
		return rebindAll(op.Selected, left)
	case *Filter:
		if op.Other != nil {
			if err := op.Other.rebind(left); err != nil {
				return err
			}
		}
		return op.Col.rebind(left)
	case *Multiply:
		return rebindArith(&op.Target, op.NewTarget, op.Operands, left)
	case *Divide:
		return rebindArith(&op.Target, op.NewTarget, op.Operands, left)
	case *Aggregate, *IndexAggregate, *LeakyIndexAggregate, *HybridAggregate:
		agg, _ := AggregateOf(op)
		if agg.Agg != nil {
			if err := agg.Agg.rebind(left); err != nil {
				return err
			}
		}
		return rebindAll(agg.Group, left)
	case *Join, *JoinFlags, *IndexJoin, *FlagJoin, *PublicJoin, *HybridJoin:
		join, _ := JoinOf(op)
		right, err := d.input(id, 1)
		if err != nil {
			return err
		}
		if err := rebindAll(join.Left, left); err != nil {
			return err
		}
		return rebindAll(join.Right, right)
	case *Union:
		right, err := d.input(id, 1)
		if err != nil {
			return err
		}
		if err := op.Left.rebind(left); err != nil {
			return err
		}
		return op.Right.rebind(right)
	case *DistinctCount:
		return op.Col.rebind(left)
	case *SortBy:
		return op.Col.rebind(left)
	case *CompNeighs:
		return op.Col.rebind(left)
	case *PubIntersect:
		return op.Col.rebind(left)
	case *PubJoin:
		return op.Key.rebind(left)
	case *FilterBy:
		return op.Col.rebind(left)
	case *Create, *Store, *Persist, *Open, *Close, *Concat, *ConcatCols, *Blackbox,
		*Shuffle, *Index, *NumRows, *IndexesToFlags, *Limit:
		return nil
	}
	return fmt.Errorf("internal error: unknown operator %T", op)
}

func rebindArith(target *ColRef, newTarget bool, operands []Operand, in *Relation) error {
	for _, o := range operands {
		if o.Col != nil {
			if err := o.Col.rebind(in); err != nil {
				return err
			}
		}
	}
	if newTarget {
		target.Idx = len(in.Columns)
		return nil
	}
	return target.rebind(in)
}

func (d *DAG) checkUnary(id ID) error {
	n := d.Node(id)
	if n.Kind().Arity() != Unary || len(n.Parents) > 1 || len(n.Children) > 1 {
		return fmt.Errorf("%s %q: %w", n.Kind(), n.Name(), ErrNotUnary)
	}
	return nil
}

func (d *DAG) checkDetached(id ID) error {
	n := d.Node(id)
	if len(n.Parents) != 0 || len(n.Children) != 0 {
		return fmt.Errorf("%s %q: %w", n.Kind(), n.Name(), ErrHasEdges)
	}
	return d.checkUnary(id)
}

// RemoveBetween excises the unary node other from between parent and
// child, restitching parent to child.  Child may be None when other is
// a leaf.
func (d *DAG) RemoveBetween(parent, child, other ID) error {
	if err := d.checkUnary(other); err != nil {
		return err
	}
	if child != None {
		d.ReplaceParent(child, other, parent)
		d.ReplaceChild(parent, other, child)
	} else {
		d.RemoveChild(parent, other)
	}
	o := d.Node(other)
	o.Parents = nil
	o.Children = nil
	return nil
}

// InsertBetween splices the detached unary node other onto the edge from
// parent to child.  Child may be None to append other below parent.
func (d *DAG) InsertBetween(parent, child, other ID) error {
	if err := d.checkDetached(other); err != nil {
		return err
	}
	d.Link(parent, other)
	if err := d.UpdateOpSpecificCols(other); err != nil {
		return err
	}
	if child == None {
		return nil
	}
	d.ReplaceParent(child, parent, other)
	d.RemoveChild(parent, child)
	d.addChild(other, child)
	return d.UpdateOpSpecificCols(child)
}

// InsertBetweenChildren makes the detached unary node other the sole
// child of parent, adopting all of the previous children of parent.
func (d *DAG) InsertBetweenChildren(parent, other ID) error {
	if err := d.checkDetached(other); err != nil {
		return err
	}
	return d.InsertAbove(parent, other, d.SortedChildren(parent))
}

// InsertAbove splices the detached unary node other between parent and
// the given subset of its children.  Other always becomes a child of
// parent.
func (d *DAG) InsertAbove(parent, other ID, children []ID) error {
	if err := d.checkDetached(other); err != nil {
		return err
	}
	o := d.Node(other)
	for _, c := range children {
		d.ReplaceParent(c, parent, other)
		d.RemoveChild(parent, c)
		o.Children = append(o.Children, c)
	}
	d.Link(parent, other)
	if err := d.UpdateOpSpecificCols(other); err != nil {
		return err
	}
	for _, c := range children {
		if err := d.UpdateOpSpecificCols(c); err != nil {
			return err
		}
	}
	return nil
}

// Nodes returns the nodes reachable from the roots of d in arena order.
func (d *DAG) Nodes() []ID {
	seen := make(map[ID]bool)
	var ids []ID
	var walk func(ID)
	walk = func(id ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
		for _, c := range d.Node(id).Children {
			walk(c)
		}
	}
	for _, r := range d.roots {
		walk(r)
	}
	slices.Sort(ids)
	return ids
}

// TopSort returns the reachable nodes of d in a topological order that
// depends only on relation names: unvisited nodes are taken in reverse
// name order and children are visited in name order.
func (d *DAG) TopSort() ([]ID, error) {
	unmarked := d.sortByName(d.Nodes())
	marked := make(map[ID]bool)
	temp := make(map[ID]bool)
	ordered := make([]ID, 0, len(unmarked))
	var visit func(ID) error
	visit = func(id ID) error {
		if temp[id] {
			return fmt.Errorf("%w at %q", ErrCycle, d.Node(id).Name())
		}
		if marked[id] {
			return nil
		}
		temp[id] = true
		for _, c := range d.SortedChildren(id) {
			if err := visit(c); err != nil {
				return err
			}
		}
		delete(temp, id)
		marked[id] = true
		ordered = append(ordered, id)
		return nil
	}
	for k := len(unmarked) - 1; k >= 0; k-- {
		if err := visit(unmarked[k]); err != nil {
			return nil, err
		}
	}
	slices.Reverse(ordered)
	return ordered, nil
}

// Descendants returns id and every node reachable from it.
func (d *DAG) Descendants(id ID) []ID {
	return d.Sub([]ID{id}).Nodes()
}
