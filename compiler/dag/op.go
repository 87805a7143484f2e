package dag

import (
	"fmt"
	"slices"
)

// Op is the operator-specific payload of a node.  The set of Op
// implementations is closed; each corresponds to exactly one Kind.
type Op interface {
	Kind() Kind
	copyOp() Op
}

// A ColRef refers to a column of an operator's input relation by
// position.  The name is a cached copy that is refreshed whenever the
// node is rebound to its (possibly replaced) input.
type ColRef struct {
	Name string
	Idx  int
}

func Ref(c Column) ColRef {
	return ColRef{Name: c.Name, Idx: c.Idx}
}

func (r *ColRef) rebind(rel *Relation) error {
	if r.Idx < 0 || r.Idx >= len(rel.Columns) {
		return fmt.Errorf("column %q (index %d) out of range for relation %q", r.Name, r.Idx, rel.Name)
	}
	r.Name = rel.Columns[r.Idx].Name
	return nil
}

func rebindAll(refs []ColRef, rel *Relation) error {
	for k := range refs {
		if err := refs[k].rebind(rel); err != nil {
			return err
		}
	}
	return nil
}

func RefNames(refs []ColRef) []string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names
}

// An Operand of an arithmetic operator is either a column or a constant.
type Operand struct {
	Col   *ColRef
	Const int64
}

func (o Operand) String() string {
	if o.Col != nil {
		return o.Col.Name
	}
	return fmt.Sprint(o.Const)
}

func copyOperands(ops []Operand) []Operand {
	out := make([]Operand, 0, len(ops))
	for _, o := range ops {
		if o.Col != nil {
			c := *o.Col
			o.Col = &c
		}
		out = append(out, o)
	}
	return out
}

type Aggregator string

const (
	Sum    Aggregator = "sum"
	Count  Aggregator = "count"
	Mean   Aggregator = "mean"
	StdDev Aggregator = "std_dev"
)

func (a Aggregator) Valid() bool {
	switch a {
	case Sum, Count, Mean, StdDev:
		return true
	}
	return false
}

type (
	Create  struct{}
	Store   struct{}
	Persist struct{}
	// Open reveals shares to the parties of its output relation.
	Open struct{}
	// Close secret-shares its input among the parties of its output relation.
	Close   struct{}
	Project struct {
		Selected []ColRef
	}
	Filter struct {
		Col      ColRef
		Operator string
		// Other is nil when the predicate compares with Scalar.
		Other  *ColRef
		Scalar int64
	}
	// Multiply writes the product of Operands into Target.  When
	// NewTarget is set, Target is appended to the input columns.
	Multiply struct {
		Target    ColRef
		NewTarget bool
		Operands  []Operand
	}
	Divide struct {
		Target    ColRef
		NewTarget bool
		Operands  []Operand
	}
	Aggregate struct {
		Group []ColRef
		// Agg is nil for Count.
		Agg        *ColRef
		Aggregator Aggregator
	}
	IndexAggregate struct {
		Aggregate
	}
	LeakyIndexAggregate struct {
		Aggregate
	}
	HybridAggregate struct {
		Aggregate
		TrustedParty int
	}
	Join struct {
		Left  []ColRef
		Right []ColRef
	}
	JoinFlags struct {
		Join
	}
	IndexJoin struct {
		Join
	}
	FlagJoin struct {
		Join
	}
	PublicJoin struct {
		Join
	}
	HybridJoin struct {
		Join
		TrustedParty int
	}
	Concat     struct{}
	ConcatCols struct {
		UseMult bool
	}
	Blackbox struct {
		Backend string
		Code    string
	}
	Distinct struct {
		Selected []ColRef
	}
	DistinctCount struct {
		Col     ColRef
		UseSort bool
	}
	SortBy struct {
		Col ColRef
	}
	Shuffle struct{}
	Index   struct {
		IdxCol string
	}
	NumRows struct {
		LenCol string
	}
	CompNeighs struct {
		Col ColRef
	}
	Union struct {
		Left  ColRef
		Right ColRef
	}
	PubIntersect struct {
		Col    ColRef
		Host   string
		Port   int
		Server bool
	}
	PubJoin struct {
		Key    ColRef
		Host   string
		Port   int
		Server bool
	}
	FilterBy struct {
		Col   ColRef
		NotIn bool
	}
	IndexesToFlags struct {
		Stage int
	}
	Limit struct {
		Num int
	}
)

func (*Create) Kind() Kind              { return KindCreate }
func (*Store) Kind() Kind               { return KindStore }
func (*Persist) Kind() Kind             { return KindPersist }
func (*Open) Kind() Kind                { return KindOpen }
func (*Close) Kind() Kind               { return KindClose }
func (*Project) Kind() Kind             { return KindProject }
func (*Filter) Kind() Kind              { return KindFilter }
func (*Multiply) Kind() Kind            { return KindMultiply }
func (*Divide) Kind() Kind              { return KindDivide }
func (*Aggregate) Kind() Kind           { return KindAggregate }
func (*IndexAggregate) Kind() Kind      { return KindIndexAggregate }
func (*LeakyIndexAggregate) Kind() Kind { return KindLeakyIndexAggregate }
func (*HybridAggregate) Kind() Kind     { return KindHybridAggregate }
func (*Join) Kind() Kind                { return KindJoin }
func (*JoinFlags) Kind() Kind           { return KindJoinFlags }
func (*IndexJoin) Kind() Kind           { return KindIndexJoin }
func (*FlagJoin) Kind() Kind            { return KindFlagJoin }
func (*PublicJoin) Kind() Kind          { return KindPublicJoin }
func (*HybridJoin) Kind() Kind          { return KindHybridJoin }
func (*Concat) Kind() Kind              { return KindConcat }
func (*ConcatCols) Kind() Kind          { return KindConcatCols }
func (*Blackbox) Kind() Kind            { return KindBlackbox }
func (*Distinct) Kind() Kind            { return KindDistinct }
func (*DistinctCount) Kind() Kind       { return KindDistinctCount }
func (*SortBy) Kind() Kind              { return KindSortBy }
func (*Shuffle) Kind() Kind             { return KindShuffle }
func (*Index) Kind() Kind               { return KindIndex }
func (*NumRows) Kind() Kind             { return KindNumRows }
func (*CompNeighs) Kind() Kind          { return KindCompNeighs }
func (*Union) Kind() Kind               { return KindUnion }
func (*PubIntersect) Kind() Kind        { return KindPubIntersect }
func (*PubJoin) Kind() Kind             { return KindPubJoin }
func (*FilterBy) Kind() Kind            { return KindFilterBy }
func (*IndexesToFlags) Kind() Kind      { return KindIndexesToFlags }
func (*Limit) Kind() Kind               { return KindLimit }

func (o *Create) copyOp() Op  { return &Create{} }
func (o *Store) copyOp() Op   { return &Store{} }
func (o *Persist) copyOp() Op { return &Persist{} }
func (o *Open) copyOp() Op    { return &Open{} }
func (o *Close) copyOp() Op   { return &Close{} }

func (o *Project) copyOp() Op {
	return &Project{Selected: slices.Clone(o.Selected)}
}

func (o *Filter) copyOp() Op {
	c := *o
	if o.Other != nil {
		other := *o.Other
		c.Other = &other
	}
	return &c
}

func (o *Multiply) copyOp() Op {
	return &Multiply{Target: o.Target, NewTarget: o.NewTarget, Operands: copyOperands(o.Operands)}
}

func (o *Divide) copyOp() Op {
	return &Divide{Target: o.Target, NewTarget: o.NewTarget, Operands: copyOperands(o.Operands)}
}

func (o *Aggregate) copyAggregate() Aggregate {
	c := Aggregate{Group: slices.Clone(o.Group), Aggregator: o.Aggregator}
	if o.Agg != nil {
		agg := *o.Agg
		c.Agg = &agg
	}
	return c
}

func (o *Aggregate) copyOp() Op {
	c := o.copyAggregate()
	return &c
}

func (o *IndexAggregate) copyOp() Op {
	return &IndexAggregate{Aggregate: o.copyAggregate()}
}

func (o *LeakyIndexAggregate) copyOp() Op {
	return &LeakyIndexAggregate{Aggregate: o.copyAggregate()}
}

func (o *HybridAggregate) copyOp() Op {
	return &HybridAggregate{Aggregate: o.copyAggregate(), TrustedParty: o.TrustedParty}
}

func (o *Join) copyJoin() Join {
	return Join{Left: slices.Clone(o.Left), Right: slices.Clone(o.Right)}
}

func (o *Join) copyOp() Op {
	c := o.copyJoin()
	return &c
}

func (o *JoinFlags) copyOp() Op  { return &JoinFlags{Join: o.copyJoin()} }
func (o *IndexJoin) copyOp() Op  { return &IndexJoin{Join: o.copyJoin()} }
func (o *FlagJoin) copyOp() Op   { return &FlagJoin{Join: o.copyJoin()} }
func (o *PublicJoin) copyOp() Op { return &PublicJoin{Join: o.copyJoin()} }

func (o *HybridJoin) copyOp() Op {
	return &HybridJoin{Join: o.copyJoin(), TrustedParty: o.TrustedParty}
}

func (o *Concat) copyOp() Op     { return &Concat{} }
func (o *ConcatCols) copyOp() Op { c := *o; return &c }
func (o *Blackbox) copyOp() Op   { c := *o; return &c }

func (o *Distinct) copyOp() Op {
	return &Distinct{Selected: slices.Clone(o.Selected)}
}

func (o *DistinctCount) copyOp() Op  { c := *o; return &c }
func (o *SortBy) copyOp() Op         { c := *o; return &c }
func (o *Shuffle) copyOp() Op        { return &Shuffle{} }
func (o *Index) copyOp() Op          { c := *o; return &c }
func (o *NumRows) copyOp() Op        { c := *o; return &c }
func (o *CompNeighs) copyOp() Op     { c := *o; return &c }
func (o *Union) copyOp() Op          { c := *o; return &c }
func (o *PubIntersect) copyOp() Op   { c := *o; return &c }
func (o *PubJoin) copyOp() Op        { c := *o; return &c }
func (o *FilterBy) copyOp() Op       { c := *o; return &c }
func (o *IndexesToFlags) copyOp() Op { c := *o; return &c }
func (o *Limit) copyOp() Op          { c := *o; return &c }

// AggregateOf returns the aggregate payload shared by the aggregate family.
func AggregateOf(op Op) (*Aggregate, bool) {
	switch op := op.(type) {
	case *Aggregate:
		return op, true
	case *IndexAggregate:
		return &op.Aggregate, true
	case *LeakyIndexAggregate:
		return &op.Aggregate, true
	case *HybridAggregate:
		return &op.Aggregate, true
	}
	return nil, false
}

// JoinOf returns the key payload shared by the join family.
func JoinOf(op Op) (*Join, bool) {
	switch op := op.(type) {
	case *Join:
		return op, true
	case *JoinFlags:
		return &op.Join, true
	case *IndexJoin:
		return &op.Join, true
	case *FlagJoin:
		return &op.Join, true
	case *PublicJoin:
		return &op.Join, true
	case *HybridJoin:
		return &op.Join, true
	}
	return nil, false
}
