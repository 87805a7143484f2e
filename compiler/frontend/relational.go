package frontend

import (
	"errors"
	"fmt"

	"github.com/brimdata/conclave/compiler/dag"
)

// Project selects cols from in in the given order.
func (b *Builder) Project(in dag.ID, name string, cols []string) (dag.ID, error) {
	return b.selection(&dag.Project{}, in, name, cols)
}

// Distinct outputs the distinct tuples of cols.
func (b *Builder) Distinct(in dag.ID, name string, cols []string) (dag.ID, error) {
	return b.selection(&dag.Distinct{}, in, name, cols)
}

func (b *Builder) selection(op dag.Op, in dag.ID, name string, names []string) (dag.ID, error) {
	if len(names) == 0 {
		return dag.None, wrap(op.Kind(), name, errors.New("no columns selected"))
	}
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(op.Kind(), name, err)
	}
	cols, err := b.resolve(rel, names...)
	if err != nil {
		return dag.None, wrap(op.Kind(), name, err)
	}
	switch op := op.(type) {
	case *dag.Project:
		op.Selected = refs(cols)
	case *dag.Distinct:
		op.Selected = refs(cols)
	}
	return b.add(op, name, derived(cols...), rel.StoredWith, in)
}

// Filter keeps the rows of in where col compares with other under
// operator, which is "==" or "<".
func (b *Builder) Filter(in dag.ID, name, col, operator string, other Operand) (dag.ID, error) {
	if operator != "==" && operator != "<" {
		return dag.None, wrap(dag.KindFilter, name, fmt.Errorf("unsupported operator %q", operator))
	}
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindFilter, name, err)
	}
	c, err := rel.Column(col)
	if err != nil {
		return dag.None, wrap(dag.KindFilter, name, err)
	}
	op := &dag.Filter{Col: dag.Ref(c), Operator: operator, Scalar: other.scalar}
	if other.IsCol() {
		oc, err := rel.Column(other.col)
		if err != nil {
			return dag.None, wrap(dag.KindFilter, name, err)
		}
		ref := dag.Ref(oc)
		op.Other = &ref
	}
	return b.add(op, name, derived(rel.Columns...), rel.StoredWith, in)
}

// Multiply stores the product of operands in target.  If target names
// the first operand, the column is overwritten in place.  Otherwise a new
// column called target is appended.
func (b *Builder) Multiply(in dag.ID, name, target string, operands ...Operand) (dag.ID, error) {
	op := &dag.Multiply{}
	id, err := b.arith(op, &op.Target, &op.NewTarget, &op.Operands, in, name, target, operands)
	if err != nil {
		return dag.None, wrap(dag.KindMultiply, name, err)
	}
	return id, nil
}

// Divide is like Multiply but divides the first operand by the rest.
func (b *Builder) Divide(in dag.ID, name, target string, operands ...Operand) (dag.ID, error) {
	op := &dag.Divide{}
	id, err := b.arith(op, &op.Target, &op.NewTarget, &op.Operands, in, name, target, operands)
	if err != nil {
		return dag.None, wrap(dag.KindDivide, name, err)
	}
	return id, nil
}

func (b *Builder) arith(op dag.Op, target *dag.ColRef, newTarget *bool, ops *[]dag.Operand, in dag.ID, name, targetName string, operands []Operand) (dag.ID, error) {
	if len(operands) == 0 {
		return dag.None, errors.New("no operands")
	}
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, err
	}
	for _, o := range operands {
		if !o.IsCol() {
			*ops = append(*ops, dag.Operand{Const: o.scalar})
			continue
		}
		c, err := rel.Column(o.col)
		if err != nil {
			return dag.None, err
		}
		ref := dag.Ref(c)
		*ops = append(*ops, dag.Operand{Col: &ref})
	}
	cols := derived(rel.Columns...)
	if operands[0].col == targetName {
		*target = *(*ops)[0].Col
	} else {
		if _, err := rel.Column(targetName); err == nil {
			return dag.None, fmt.Errorf("target column %q exists but is not the first operand", targetName)
		}
		*newTarget = true
		*target = dag.ColRef{Name: targetName, Idx: len(cols)}
		cols = append(cols, newColumn(targetName))
	}
	return b.add(op, name, cols, rel.StoredWith, in)
}

// Aggregate groups in by group and aggregates over with agg into a
// column called out.  Over must be empty for Count.
func (b *Builder) Aggregate(in dag.ID, name string, group []string, over string, agg dag.Aggregator, out string) (dag.ID, error) {
	a, cols, err := b.aggregate(in, group, over, agg, out)
	if err != nil {
		return dag.None, wrap(dag.KindAggregate, name, err)
	}
	return b.add(&a, name, cols, b.storedWith(in), in)
}

// IndexAggregate is an aggregation driven by equality flags and the
// sorted keys computed under MPC.
func (b *Builder) IndexAggregate(in dag.ID, name string, group []string, over string, agg dag.Aggregator, out string, eqFlags, sortedKeys dag.ID) (dag.ID, error) {
	a, cols, err := b.aggregate(in, group, over, agg, out)
	if err != nil {
		return dag.None, wrap(dag.KindIndexAggregate, name, err)
	}
	op := &dag.IndexAggregate{Aggregate: a}
	return b.add(op, name, cols, b.storedWith(in), in, eqFlags, sortedKeys)
}

// LeakyIndexAggregate is an aggregation driven by the revealed distinct
// keys and the map from keys to their indexes.
func (b *Builder) LeakyIndexAggregate(in dag.ID, name string, group []string, over string, agg dag.Aggregator, out string, distKeys, keysToIdx dag.ID) (dag.ID, error) {
	a, cols, err := b.aggregate(in, group, over, agg, out)
	if err != nil {
		return dag.None, wrap(dag.KindLeakyIndexAggregate, name, err)
	}
	op := &dag.LeakyIndexAggregate{Aggregate: a}
	return b.add(op, name, cols, b.storedWith(in), in, distKeys, keysToIdx)
}

func (b *Builder) aggregate(in dag.ID, group []string, over string, agg dag.Aggregator, out string) (dag.Aggregate, []dag.Column, error) {
	if !agg.Valid() {
		return dag.Aggregate{}, nil, fmt.Errorf("unknown aggregator %q", agg)
	}
	if len(group) == 0 {
		return dag.Aggregate{}, nil, errors.New("no group-by columns")
	}
	rel, err := b.rel(in)
	if err != nil {
		return dag.Aggregate{}, nil, err
	}
	groupCols, err := b.resolve(rel, group...)
	if err != nil {
		return dag.Aggregate{}, nil, err
	}
	a := dag.Aggregate{Group: refs(groupCols), Aggregator: agg}
	outCol := newColumn(out)
	switch {
	case agg == dag.Count && over != "":
		return dag.Aggregate{}, nil, errors.New("count takes no aggregate column")
	case agg != dag.Count:
		overCol, err := rel.Column(over)
		if err != nil {
			return dag.Aggregate{}, nil, err
		}
		ref := dag.Ref(overCol)
		a.Agg = &ref
		outCol.Type = overCol.Type
	}
	return a, append(derived(groupCols...), outCol), nil
}

// DistinctCount counts the distinct values of col.
func (b *Builder) DistinctCount(in dag.ID, name, col string, useSort bool) (dag.ID, error) {
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindDistinctCount, name, err)
	}
	c, err := rel.Column(col)
	if err != nil {
		return dag.None, wrap(dag.KindDistinctCount, name, err)
	}
	return b.add(&dag.DistinctCount{Col: dag.Ref(c), UseSort: useSort}, name, []dag.Column{newColumn(col)}, rel.StoredWith, in)
}

func (b *Builder) SortBy(in dag.ID, name, col string) (dag.ID, error) {
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindSortBy, name, err)
	}
	c, err := rel.Column(col)
	if err != nil {
		return dag.None, wrap(dag.KindSortBy, name, err)
	}
	return b.add(&dag.SortBy{Col: dag.Ref(c)}, name, derived(rel.Columns...), rel.StoredWith, in)
}

// Index prepends a column called idxCol holding the row number.
func (b *Builder) Index(in dag.ID, name, idxCol string) (dag.ID, error) {
	if idxCol == "" {
		idxCol = "index"
	}
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindIndex, name, err)
	}
	cols := append([]dag.Column{newColumn(idxCol)}, derived(rel.Columns...)...)
	return b.add(&dag.Index{IdxCol: idxCol}, name, cols, rel.StoredWith, in)
}

// NumRows outputs the row count of in in a column called lenCol.
func (b *Builder) NumRows(in dag.ID, name, lenCol string) (dag.ID, error) {
	if lenCol == "" {
		lenCol = "len"
	}
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindNumRows, name, err)
	}
	return b.add(&dag.NumRows{LenCol: lenCol}, name, []dag.Column{newColumn(lenCol)}, rel.StoredWith, in)
}

// CompNeighs outputs for each adjacent pair of rows whether their
// values of col are equal.
func (b *Builder) CompNeighs(in dag.ID, name, col string) (dag.ID, error) {
	rel, err := b.rel(in)
	if err != nil {
		return dag.None, wrap(dag.KindCompNeighs, name, err)
	}
	c, err := rel.Column(col)
	if err != nil {
		return dag.None, wrap(dag.KindCompNeighs, name, err)
	}
	return b.add(&dag.CompNeighs{Col: dag.Ref(c)}, name, derived(c), rel.StoredWith, in)
}
