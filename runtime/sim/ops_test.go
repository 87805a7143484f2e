package sim

import (
	"testing"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloorDiv(t *testing.T) {
	for _, c := range []struct{ a, b, q int64 }{
		{7, 2, 3},
		{-7, 2, -4},
		{7, -2, -4},
		{-8, 2, -4},
	} {
		q, err := floorDiv(c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.q, q, "%d // %d", c.a, c.b)
	}
	_, err := floorDiv(1, 0)
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestSummarize(t *testing.T) {
	values := []int64{2, 4, 4, 4, 5, 5, 7, 9}
	for agg, expected := range map[dag.Aggregator]int64{
		dag.Sum:    40,
		dag.Count:  8,
		dag.Mean:   5,
		dag.StdDev: 2,
	} {
		v, err := summarize(values, agg)
		require.NoError(t, err)
		assert.Equal(t, expected, v, string(agg))
	}
	v, err := summarize([]int64{-3, -4}, dag.Mean)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), v)
}

func TestArith(t *testing.T) {
	a := dag.ColRef{Name: "a", Idx: 0}
	b := dag.ColRef{Name: "b", Idx: 1}
	rel := [][]int64{{7, 2}, {-7, 2}}
	out, err := arith(rel, a, false, []dag.Operand{{Col: &a}, {Col: &b}}, floorDiv)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{3, 2}, {-4, 2}}, out)
	out, err = arith(rel, dag.ColRef{Name: "c", Idx: 2}, true, []dag.Operand{{Col: &b}, {Const: 3}}, multiply)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{7, 2, 6}, {-7, 2, 6}}, out)
	assert.Equal(t, [][]int64{{7, 2}, {-7, 2}}, rel)
}

func TestRowOperators(t *testing.T) {
	rel := [][]int64{{3, 1}, {1, 2}, {3, 1}, {2, 2}}
	assert.Equal(t, [][]int64{{1, 2}, {2, 2}, {3, 1}}, distinct(rel))
	assert.Equal(t, [][]int64{{1, 2}, {2, 2}, {3, 1}, {3, 1}}, sortBy(rel, 0))
	assert.Equal(t, [][]int64{{0}, {0}, {1}}, compNeighs(sortBy(rel, 0), 0))
	assert.Equal(t, [][]int64{{0, 3, 1}, {1, 1, 2}}, index(rel[:2]))
	assert.Equal(t, [][]int64{{1}, {2}, {3}, {5}}, union(rel, [][]int64{{5}, {1}}, 0, 0))
	assert.Equal(t, [][]int64{{3, 1}, {3, 1}}, filterBy(rel, [][]int64{{3}}, 0, false))
	assert.Equal(t, [][]int64{{1, 2}, {2, 2}}, filterBy(rel, [][]int64{{3}}, 0, true))
	assert.Equal(t, [][]int64{{0}, {1}, {0}}, indexesToFlags([][]int64{{1}}, rel[:3]))
}

func TestJoinVariants(t *testing.T) {
	j := &dag.Join{Left: []dag.ColRef{{Name: "a", Idx: 0}}, Right: []dag.ColRef{{Name: "c", Idx: 0}}}
	left := [][]int64{{1, 10}, {2, 20}}
	right := [][]int64{{2, 200}, {1, 100}, {2, 201}}
	joined := join(left, right, j)
	assert.Equal(t, [][]int64{{2, 20, 200}, {1, 10, 100}, {2, 20, 201}}, joined)

	flags := joinFlags(left, right, j)
	assert.Equal(t, [][]int64{{0}, {1}, {0}, {1}, {0}, {1}}, flags)
	fj, err := flagJoin(left, right, flags, j)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 10, 100}, {2, 20, 200}, {2, 20, 201}}, fj)

	ij, err := indexJoin(left, right, [][]int64{{1, 2}, {0, 1}}, j)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{2, 20, 201}, {1, 10, 100}}, ij)
	_, err = indexJoin(left, right, [][]int64{{5, 0}}, j)
	assert.EqualError(t, err, "row index 5 out of range for 2 rows")

	mult, err := concatCols([][][]int64{{{1, 2}}, {{3, 4}}}, true)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{3, 8}}, mult)
	side, err := concatCols([][][]int64{{{1, 2}}, {{3}}}, false)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 2, 3}}, side)
}

func TestIndexAggregates(t *testing.T) {
	agg := &dag.Aggregate{
		Group:      []dag.ColRef{{Name: "a", Idx: 0}},
		Agg:        &dag.ColRef{Name: "b", Idx: 1},
		Aggregator: dag.Sum,
	}
	rel := [][]int64{{2, 5}, {1, 1}, {2, 7}}
	sortedKeys := [][]int64{{1, 1}, {0, 2}, {2, 2}}
	eqFlags := [][]int64{{0}, {1}}
	out, err := indexAggregate(rel, eqFlags, sortedKeys, agg)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 1}, {2, 12}}, out)

	distKeys := [][]int64{{0, 1}, {1, 2}}
	keysToIdx := [][]int64{{0, 1}, {1, 0}, {2, 1}}
	out, err = leakyIndexAggregate(rel, distKeys, keysToIdx, agg)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 1}, {2, 12}}, out)
}
