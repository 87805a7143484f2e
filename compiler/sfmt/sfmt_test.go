package sfmt_test

import (
	"testing"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/compiler/sfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T) *dag.DAG {
	b := frontend.New()
	in1, err := b.Create("in1", []frontend.ColumnDef{
		{Name: "a", Trust: dag.NewTrustSet(dag.NewPartySet(1))},
		{Name: "b"},
	}, dag.NewPartySet(1))
	require.NoError(t, err)
	in2, err := b.Create("in2", []frontend.ColumnDef{{Name: "a"}, {Name: "b"}}, dag.NewPartySet(2))
	require.NoError(t, err)
	rel, err := b.Concat([]dag.ID{in1, in2}, "rel", nil)
	require.NoError(t, err)
	agg, err := b.Aggregate(rel, "agg", []string{"a"}, "b", dag.Sum, "total")
	require.NoError(t, err)
	require.NoError(t, b.Collect(agg, 1))
	b.DAG().Node(agg).MPC = true
	return b.DAG()
}

func TestScotch(t *testing.T) {
	s, err := sfmt.Scotch(build(t))
	require.NoError(t, err)
	expected := `CREATE RELATION in1([a {1}, b]) {1} WITH COLUMNS (INTEGER, INTEGER)
CREATE RELATION in2([a, b]) {2} WITH COLUMNS (INTEGER, INTEGER)
CONCAT [in1([a {1}, b]) {1}, in2([a, b]) {2}] AS rel([a, b]) {1, 2}
AGGMPC [b, sum] FROM (rel([a, b]) {1, 2}) GROUP BY [a] AS agg([a, total]) {1}
`
	assert.Equal(t, expected, s)
}

func TestScotchDeterministic(t *testing.T) {
	s1, err := sfmt.Scotch(build(t))
	require.NoError(t, err)
	s2, err := sfmt.Scotch(build(t))
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestDOT(t *testing.T) {
	s, err := sfmt.DOT(build(t))
	require.NoError(t, err)
	expected := `digraph conclave {
  "in1" [label="create\nin1([a {1}, b]) {1}" shape=box]
  "in2" [label="create\nin2([a, b]) {2}" shape=box]
  "rel" [label="concat\nrel([a, b]) {1, 2}" shape=box]
  "agg" [label="aggregate\nagg([a, total]) {1}" shape=box style=filled fillcolor="#d0e0ff"]
  "in1" -> "rel"
  "in2" -> "rel"
  "rel" -> "agg"
}
`
	assert.Equal(t, expected, s)
}

func TestScotchVerbs(t *testing.T) {
	b := frontend.New()
	_, err := b.Create("in%d", []frontend.ColumnDef{{Name: "a%s"}}, dag.NewPartySet(1))
	require.NoError(t, err)
	s, err := sfmt.Scotch(b.DAG())
	require.NoError(t, err)
	assert.Equal(t, "CREATE RELATION in%d([a%s]) {1} WITH COLUMNS (INTEGER)\n", s)
}
