package sim

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/brimdata/conclave/compiler/dag"
)

var ErrDivideByZero = errors.New("division by zero")

func project(rel [][]int64, cols []dag.ColRef) [][]int64 {
	out := make([][]int64, 0, len(rel))
	for _, row := range rel {
		r := make([]int64, 0, len(cols))
		for _, c := range cols {
			r = append(r, row[c.Idx])
		}
		out = append(out, r)
	}
	return out
}

func filter(rel [][]int64, op *dag.Filter) ([][]int64, error) {
	var out [][]int64
	for _, row := range rel {
		other := op.Scalar
		if op.Other != nil {
			other = row[op.Other.Idx]
		}
		var keep bool
		switch op.Operator {
		case "==":
			keep = row[op.Col.Idx] == other
		case "<":
			keep = row[op.Col.Idx] < other
		default:
			return nil, fmt.Errorf("unsupported operator %q", op.Operator)
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func multiply(a, b int64) (int64, error) {
	return a * b, nil
}

// floorDiv rounds toward negative infinity.
func floorDiv(a, b int64) (int64, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q, nil
}

func arith(rel [][]int64, target dag.ColRef, newTarget bool, operands []dag.Operand, fn func(a, b int64) (int64, error)) ([][]int64, error) {
	out := make([][]int64, 0, len(rel))
	for _, row := range rel {
		var acc int64
		for k, o := range operands {
			v := o.Const
			if o.Col != nil {
				v = row[o.Col.Idx]
			}
			if k == 0 {
				acc = v
				continue
			}
			var err error
			if acc, err = fn(acc, v); err != nil {
				return nil, err
			}
		}
		r := slices.Clone(row)
		if newTarget {
			r = append(r, acc)
		} else {
			r[target.Idx] = acc
		}
		out = append(out, r)
	}
	return out, nil
}

// summarize applies aggregator to the values of one group.  Mean and
// standard deviation are floored.
func summarize(values []int64, aggregator dag.Aggregator) (int64, error) {
	var sum int64
	for _, v := range values {
		sum += v
	}
	switch aggregator {
	case dag.Sum:
		return sum, nil
	case dag.Count:
		return int64(len(values)), nil
	case dag.Mean:
		return floorDiv(sum, int64(len(values)))
	case dag.StdDev:
		mean := float64(sum) / float64(len(values))
		var variance float64
		for _, v := range values {
			d := float64(v) - mean
			variance += d * d
		}
		return int64(math.Floor(math.Sqrt(variance / float64(len(values))))), nil
	}
	return 0, fmt.Errorf("unknown aggregator %q", aggregator)
}

type group struct {
	key    []int64
	values []int64
}

func value(row []int64, agg *dag.Aggregate) int64 {
	if agg.Agg == nil {
		return 1
	}
	return row[agg.Agg.Idx]
}

// summarizeGroups emits one row per group, the key followed by the
// aggregate, in ascending key order.
func summarizeGroups(groups []*group, aggregator dag.Aggregator) ([][]int64, error) {
	slices.SortFunc(groups, func(a, b *group) int {
		return slices.Compare(a.key, b.key)
	})
	out := make([][]int64, 0, len(groups))
	for _, g := range groups {
		v, err := summarize(g.values, aggregator)
		if err != nil {
			return nil, err
		}
		out = append(out, append(slices.Clone(g.key), v))
	}
	return out, nil
}

func aggregate(rel [][]int64, agg *dag.Aggregate) ([][]int64, error) {
	index := make(map[string]*group)
	var groups []*group
	for _, row := range rel {
		key := project([][]int64{row}, agg.Group)[0]
		s := fmt.Sprint(key)
		g, ok := index[s]
		if !ok {
			g = &group{key: key}
			index[s] = g
			groups = append(groups, g)
		}
		g.values = append(g.values, value(row, agg))
	}
	return summarizeGroups(groups, agg.Aggregator)
}

func at(rel [][]int64, k int64) ([]int64, error) {
	if k < 0 || k >= int64(len(rel)) {
		return nil, fmt.Errorf("row index %d out of range for %d rows", k, len(rel))
	}
	return rel[k], nil
}

// indexAggregate aggregates rel over runs of equal keys.  sortedKeys
// lists [row index, key] in key order and eqFlags marks each adjacent
// pair of sortedKeys with equal keys.
func indexAggregate(rel, eqFlags, sortedKeys [][]int64, agg *dag.Aggregate) ([][]int64, error) {
	if len(sortedKeys) != 0 && len(eqFlags) != len(sortedKeys)-1 {
		return nil, fmt.Errorf("%d flags for %d keys", len(eqFlags), len(sortedKeys))
	}
	var groups []*group
	for k, sk := range sortedKeys {
		row, err := at(rel, sk[0])
		if err != nil {
			return nil, err
		}
		if k == 0 || eqFlags[k-1][0] == 0 {
			groups = append(groups, &group{key: project([][]int64{row}, agg.Group)[0]})
		}
		g := groups[len(groups)-1]
		g.values = append(g.values, value(row, agg))
	}
	return summarizeGroups(groups, agg.Aggregator)
}

// leakyIndexAggregate aggregates rel by the key index of each row.
// distKeys lists [key index, key] and keysToIdx maps [row index, key
// index].
func leakyIndexAggregate(rel, distKeys, keysToIdx [][]int64, agg *dag.Aggregate) ([][]int64, error) {
	groups := make([]*group, len(distKeys))
	for k := range groups {
		groups[k] = &group{}
	}
	for _, m := range keysToIdx {
		row, err := at(rel, m[0])
		if err != nil {
			return nil, err
		}
		if m[1] < 0 || m[1] >= int64(len(groups)) {
			return nil, fmt.Errorf("key index %d out of range for %d keys", m[1], len(groups))
		}
		g := groups[m[1]]
		if g.key == nil {
			g.key = project([][]int64{row}, agg.Group)[0]
		}
		g.values = append(g.values, value(row, agg))
	}
	groups = slices.DeleteFunc(groups, func(g *group) bool { return g.key == nil })
	return summarizeGroups(groups, agg.Aggregator)
}

func keyOf(row []int64, cols []dag.ColRef) string {
	return fmt.Sprint(project([][]int64{row}, cols)[0])
}

// joinRow returns the left keys followed by the non-key columns of l and
// then those of r.
func joinRow(l, r []int64, join *dag.Join) []int64 {
	out := project([][]int64{l}, join.Left)[0]
	out = appendNonKeys(out, l, join.Left)
	return appendNonKeys(out, r, join.Right)
}

func appendNonKeys(dst, row []int64, keys []dag.ColRef) []int64 {
	for k, v := range row {
		if !slices.ContainsFunc(keys, func(c dag.ColRef) bool { return c.Idx == k }) {
			dst = append(dst, v)
		}
	}
	return dst
}

// join emits, for each right row in order, its matches among the left
// rows in order.
func join(left, right [][]int64, join *dag.Join) [][]int64 {
	rows := make(map[string][][]int64)
	for _, l := range left {
		k := keyOf(l, join.Left)
		rows[k] = append(rows[k], l)
	}
	var out [][]int64
	for _, r := range right {
		for _, l := range rows[keyOf(r, join.Right)] {
			out = append(out, joinRow(l, r, join))
		}
	}
	return out
}

// joinFlags flags every pair of left and right rows, left-major, with
// whether their keys match.
func joinFlags(left, right [][]int64, join *dag.Join) [][]int64 {
	out := make([][]int64, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			var flag int64
			if keyOf(l, join.Left) == keyOf(r, join.Right) {
				flag = 1
			}
			out = append(out, []int64{flag})
		}
	}
	return out
}

func flagJoin(left, right, flags [][]int64, join *dag.Join) ([][]int64, error) {
	if len(flags) != len(left)*len(right) {
		return nil, fmt.Errorf("%d flags for %d row pairs", len(flags), len(left)*len(right))
	}
	var out [][]int64
	for i, l := range left {
		for j, r := range right {
			if flags[i*len(right)+j][0] != 0 {
				out = append(out, joinRow(l, r, join))
			}
		}
	}
	return out, nil
}

// indexJoin joins the rows of left and right paired by the [left index,
// right index] rows of index.
func indexJoin(left, right, index [][]int64, join *dag.Join) ([][]int64, error) {
	out := make([][]int64, 0, len(index))
	for _, ix := range index {
		l, err := at(left, ix[0])
		if err != nil {
			return nil, err
		}
		r, err := at(right, ix[1])
		if err != nil {
			return nil, err
		}
		out = append(out, joinRow(l, r, join))
	}
	return out, nil
}

func concat(rels [][][]int64) [][]int64 {
	var out [][]int64
	for _, rel := range rels {
		out = append(out, rel...)
	}
	return out
}

func concatCols(rels [][][]int64, useMult bool) ([][]int64, error) {
	n := len(rels[0])
	for _, rel := range rels[1:] {
		if len(rel) != n {
			return nil, fmt.Errorf("inputs have %d and %d rows", n, len(rel))
		}
	}
	out := make([][]int64, 0, n)
	for k := 0; k < n; k++ {
		row := slices.Clone(rels[0][k])
		for _, rel := range rels[1:] {
			if !useMult {
				row = append(row, rel[k]...)
				continue
			}
			if len(rel[k]) != len(row) {
				return nil, fmt.Errorf("rows of width %d and %d", len(row), len(rel[k]))
			}
			for j, v := range rel[k] {
				row[j] *= v
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func distinct(rel [][]int64) [][]int64 {
	out := slices.Clone(rel)
	slices.SortFunc(out, slices.Compare[[]int64])
	return slices.CompactFunc(out, slices.Equal[[]int64])
}

func sortBy(rel [][]int64, col int) [][]int64 {
	out := slices.Clone(rel)
	slices.SortStableFunc(out, func(a, b []int64) int {
		return cmp.Compare(a[col], b[col])
	})
	return out
}

func index(rel [][]int64) [][]int64 {
	out := make([][]int64, 0, len(rel))
	for k, row := range rel {
		out = append(out, append([]int64{int64(k)}, row...))
	}
	return out
}

func compNeighs(rel [][]int64, col int) [][]int64 {
	var out [][]int64
	for k := 1; k < len(rel); k++ {
		var eq int64
		if rel[k-1][col] == rel[k][col] {
			eq = 1
		}
		out = append(out, []int64{eq})
	}
	return out
}

func column(rel [][]int64, col int) []int64 {
	out := make([]int64, 0, len(rel))
	for _, row := range rel {
		out = append(out, row[col])
	}
	return out
}

func rows(vals []int64) [][]int64 {
	out := make([][]int64, 0, len(vals))
	for _, v := range vals {
		out = append(out, []int64{v})
	}
	return out
}

func union(left, right [][]int64, lcol, rcol int) [][]int64 {
	keys := append(column(left, lcol), column(right, rcol)...)
	slices.Sort(keys)
	return rows(slices.Compact(keys))
}

func filterBy(rel, by [][]int64, col int, notIn bool) [][]int64 {
	keys := make(map[int64]bool)
	for _, row := range by {
		keys[row[0]] = true
	}
	var out [][]int64
	for _, row := range rel {
		if keys[row[col]] != notIn {
			out = append(out, row)
		}
	}
	return out
}

// indexesToFlags flags each row of lookup whose index appears in the
// first column of in.
func indexesToFlags(in, lookup [][]int64) [][]int64 {
	idx := make(map[int64]bool)
	for _, row := range in {
		idx[row[0]] = true
	}
	out := make([][]int64, 0, len(lookup))
	for k := range lookup {
		var flag int64
		if idx[int64(k)] {
			flag = 1
		}
		out = append(out, []int64{flag})
	}
	return out
}
