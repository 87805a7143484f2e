package frontend_test

import (
	"testing"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func create(t *testing.T, b *frontend.Builder, name string, cols []string, pids ...int) dag.ID {
	t.Helper()
	var defs []frontend.ColumnDef
	for _, c := range cols {
		defs = append(defs, frontend.ColumnDef{Name: c})
	}
	id, err := b.Create(name, defs, dag.NewPartySet(pids...))
	require.NoError(t, err)
	return id
}

func columns(b *frontend.Builder, id dag.ID) []string {
	return b.DAG().Node(id).Out.ColumnNames()
}

func TestAggregate(t *testing.T) {
	b := frontend.New()
	in1 := create(t, b, "in1", []string{"a", "b"}, 1)
	in2 := create(t, b, "in2", []string{"a", "b"}, 2)
	cat, err := b.Concat([]dag.ID{in1, in2}, "rel", nil)
	require.NoError(t, err)
	agg, err := b.Aggregate(cat, "agg", []string{"a"}, "b", dag.Sum, "total")
	require.NoError(t, err)
	require.NoError(t, b.Collect(agg, 1))

	n := b.DAG().Node(agg)
	assert.Equal(t, []string{"a", "total"}, columns(b, agg))
	assert.Equal(t, dag.NewPartySet(1), n.Out.StoredWith)
	assert.Equal(t, dag.NewPartySet(1, 2), b.DAG().Node(cat).Out.StoredWith)
	op := n.Op.(*dag.Aggregate)
	assert.Equal(t, []string{"a"}, dag.RefNames(op.Group))
	assert.Equal(t, "b", op.Agg.Name)
	assert.Equal(t, 1, op.Agg.Idx)
	require.NoError(t, b.DAG().Validate())
}

func TestCount(t *testing.T) {
	b := frontend.New()
	in := create(t, b, "in", []string{"a", "b"}, 1)
	agg, err := b.Aggregate(in, "cnt", []string{"b"}, "", dag.Count, "n")
	require.NoError(t, err)
	assert.Nil(t, b.DAG().Node(agg).Op.(*dag.Aggregate).Agg)
	assert.Equal(t, []string{"b", "n"}, columns(b, agg))

	_, err = b.Aggregate(in, "bad", []string{"b"}, "a", dag.Count, "n")
	assert.Error(t, err)
	_, err = b.Aggregate(in, "bad", []string{"b"}, "a", dag.Aggregator("max"), "n")
	assert.EqualError(t, err, `aggregate "bad": unknown aggregator "max"`)
}

func TestJoinSchema(t *testing.T) {
	b := frontend.New()
	left := create(t, b, "left", []string{"a", "b", "c"}, 1)
	right := create(t, b, "right", []string{"d", "e"}, 2)
	j, err := b.Join(left, right, "j", []string{"b"}, []string{"e"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c", "d"}, columns(b, j))
	assert.Equal(t, dag.NewPartySet(1, 2), b.DAG().Node(j).Out.StoredWith)

	_, err = b.Join(left, right, "bad", []string{"a", "b"}, []string{"e"})
	assert.Error(t, err)

	flags, err := b.JoinFlags(left, right, "flags", []string{"b"}, []string{"e"})
	require.NoError(t, err)
	assert.Equal(t, []string{"flags"}, columns(b, flags))
	fj, err := b.FlagJoin(left, right, "fj", []string{"b"}, []string{"e"}, flags)
	require.NoError(t, err)
	assert.Equal(t, []dag.ID{left, right, flags}, b.DAG().Node(fj).Parents)
	require.NoError(t, b.DAG().Validate())
}

func TestMultiply(t *testing.T) {
	b := frontend.New()
	in := create(t, b, "in", []string{"a", "b"}, 1)
	inPlace, err := b.Multiply(in, "m1", "a", frontend.Col("a"), frontend.Col("b"), frontend.Scalar(3))
	require.NoError(t, err)
	op := b.DAG().Node(inPlace).Op.(*dag.Multiply)
	assert.False(t, op.NewTarget)
	assert.Equal(t, dag.ColRef{Name: "a", Idx: 0}, op.Target)
	assert.Equal(t, []string{"a", "b"}, columns(b, inPlace))

	appended, err := b.Divide(in, "d1", "c", frontend.Col("a"), frontend.Scalar(2))
	require.NoError(t, err)
	div := b.DAG().Node(appended).Op.(*dag.Divide)
	assert.True(t, div.NewTarget)
	assert.Equal(t, dag.ColRef{Name: "c", Idx: 2}, div.Target)
	assert.Equal(t, []string{"a", "b", "c"}, columns(b, appended))

	_, err = b.Multiply(in, "m2", "b", frontend.Col("a"))
	assert.Error(t, err)
	require.NoError(t, b.DAG().Validate())
}

func TestFilter(t *testing.T) {
	b := frontend.New()
	in := create(t, b, "in", []string{"a", "b"}, 1)
	f, err := b.Filter(in, "f", "a", "<", frontend.Col("b"))
	require.NoError(t, err)
	op := b.DAG().Node(f).Op.(*dag.Filter)
	require.NotNil(t, op.Other)
	assert.Equal(t, "b", op.Other.Name)

	_, err = b.Filter(in, "g", "a", ">", frontend.Scalar(1))
	assert.EqualError(t, err, `filter "g": unsupported operator ">"`)
}

func TestColumnSuggestion(t *testing.T) {
	b := frontend.New()
	in := create(t, b, "in", []string{"price", "qty"}, 1)
	_, err := b.Project(in, "p", []string{"prize"})
	assert.EqualError(t, err, `project "p": column "prize" not found in relation "in" (did you mean "price"?)`)
}

func TestDuplicateName(t *testing.T) {
	b := frontend.New()
	in := create(t, b, "in", []string{"a"}, 1)
	_, err := b.Store(in, "in")
	assert.EqualError(t, err, `store "in": relation already exists`)
}

func TestIndexAndNumRows(t *testing.T) {
	b := frontend.New()
	in := create(t, b, "in", []string{"a", "b"}, 1)
	idx, err := b.Index(in, "idx", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "a", "b"}, columns(b, idx))
	n, err := b.NumRows(in, "n", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"len"}, columns(b, n))
}

func TestPubJoin(t *testing.T) {
	b := frontend.New()
	left := create(t, b, "left", []string{"a", "b"}, 1)
	right := create(t, b, "right", []string{"a", "c"}, 1)
	pj, err := b.PubJoin(left, "pj", "a", "", 0, true, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, columns(b, pj))
	op := b.DAG().Node(pj).Op.(*dag.PubJoin)
	assert.Equal(t, frontend.DefaultHost, op.Host)
	assert.Equal(t, frontend.DefaultPort, op.Port)

	_, err = b.PubJoin(left, "bad", "b", "", 0, true, dag.None)
	assert.EqualError(t, err, `pub_join "bad": key column "b" must be the first column`)
	require.NoError(t, b.DAG().Validate())
}

func TestConcat(t *testing.T) {
	b := frontend.New()
	in1 := create(t, b, "in1", []string{"a", "b"}, 1)
	in2 := create(t, b, "in2", []string{"c", "d"}, 2)
	in3 := create(t, b, "in3", []string{"e"}, 3)
	cat, err := b.Concat([]dag.ID{in1, in2}, "cat", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, columns(b, cat))
	_, err = b.Concat([]dag.ID{in1, in3}, "bad", nil)
	assert.EqualError(t, err, `concat "bad": relation "in3" has 1 columns, expected 2`)
	_, err = b.Concat([]dag.ID{in1}, "bad", nil)
	assert.Error(t, err)

	cc, err := b.ConcatCols([]dag.ID{in1, in3}, "cc", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "e"}, columns(b, cc))
	assert.Equal(t, dag.NewPartySet(1, 3), b.DAG().Node(cc).Out.StoredWith)
	require.NoError(t, b.DAG().Validate())
}

const protocolYAML = `
statements:
  - op: create
    name: in1
    columns: [{name: a, trust: [[1]]}, {name: b}]
    stored_with: [1]
  - op: create
    name: in2
    columns: [{name: a}, {name: b}]
    stored_with: [2]
  - op: concat
    name: rel
    inputs: [in1, in2]
  - op: multiply
    name: mult
    input: rel
    target: c
    operands: [b, 2]
  - op: aggregate
    name: agg
    input: mult
    group: [a]
    over: c
    aggregator: sum
    out: total
  - op: collect
    input: agg
    party: 1
`

func TestParseProtocol(t *testing.T) {
	p, err := frontend.ParseProtocol([]byte(protocolYAML))
	require.NoError(t, err)
	d, err := frontend.Build(p)
	require.NoError(t, err)
	ids, err := d.TopSort()
	require.NoError(t, err)
	var names []string
	for _, id := range ids {
		names = append(names, d.Node(id).Name())
	}
	assert.Equal(t, []string{"in1", "in2", "rel", "mult", "agg"}, names)
	leaf := d.Node(ids[len(ids)-1])
	assert.Equal(t, dag.NewPartySet(1), leaf.Out.StoredWith)
	in1 := d.Node(ids[0])
	assert.Equal(t, "{1}", in1.Out.Columns[0].Trust.String())
	mult := d.Node(ids[3]).Op.(*dag.Multiply)
	assert.Equal(t, int64(2), mult.Operands[1].Const)
}

func TestParseProtocolErrors(t *testing.T) {
	_, err := frontend.ParseProtocol([]byte("statements: []"))
	assert.EqualError(t, err, "protocol has no statements")

	p, err := frontend.ParseProtocol([]byte(`
statements:
  - op: project
    name: p
    input: nope
    cols: [a]
`))
	require.NoError(t, err)
	_, err = frontend.Build(p)
	assert.EqualError(t, err, `statement 1 (project): no such relation "nope"`)
}

func TestCloneAndUnique(t *testing.T) {
	b := frontend.New()
	in := create(t, b, "in", []string{"a", "b"}, 1)
	p, err := b.Project(in, "p", []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, "q", b.Unique("q"))
	assert.Equal(t, "p_1", b.Unique("p"))

	c, err := b.Clone(p, "p_0")
	require.NoError(t, err)
	n := b.DAG().Node(c)
	assert.Equal(t, "p_0", n.Name())
	assert.Empty(t, n.Parents)
	assert.Equal(t, []string{"b"}, n.Out.ColumnNames())
	assert.Equal(t, "p_0", n.Out.Columns[0].RelName)
	_, err = b.Clone(p, "p_0")
	assert.EqualError(t, err, `project "p_0": relation already exists`)

	b.Retire(c)
	assert.Equal(t, "p_0", b.Unique("p_0"))
}

func TestIdentityKeepsTrust(t *testing.T) {
	b := frontend.New()
	in, err := b.Create("in", []frontend.ColumnDef{
		{Name: "a", Trust: dag.NewTrustSet(dag.NewPartySet(1))},
		{Name: "b"},
	}, dag.NewPartySet(1))
	require.NoError(t, err)
	cl, err := b.Close(in, "in_close", dag.NewPartySet(1, 2))
	require.NoError(t, err)
	sh, err := b.Shuffle(cl, "shuffled")
	require.NoError(t, err)
	op, err := b.Open(sh, "opened", 1)
	require.NoError(t, err)
	for _, id := range []dag.ID{cl, sh, op} {
		n := b.DAG().Node(id)
		assert.Equal(t, "{1}", n.Out.Columns[0].Trust.String(), n.Name())
		assert.True(t, n.Out.Columns[1].Trust.IsEmpty(), n.Name())
		assert.Equal(t, n.Name(), n.Out.Columns[0].RelName)
	}
	assert.Equal(t, dag.NewPartySet(1, 2), b.DAG().Node(cl).Out.StoredWith)
	assert.Equal(t, dag.NewPartySet(1), b.DAG().Node(op).Out.StoredWith)
}
