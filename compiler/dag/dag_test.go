package dag_test

import (
	"testing"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relation(name string, storedWith dag.PartySet, cols ...string) *dag.Relation {
	var columns []dag.Column
	for _, c := range cols {
		columns = append(columns, dag.Column{Name: c, Type: dag.TypeInteger})
	}
	return dag.NewRelation(name, columns, storedWith)
}

func store(d *dag.DAG, name string, parents ...dag.ID) dag.ID {
	return d.NewNode(&dag.Store{}, relation(name, dag.NewPartySet(1), "a", "b"), parents...)
}

func names(d *dag.DAG, ids []dag.ID) []string {
	var out []string
	for _, id := range ids {
		out = append(out, d.Node(id).Name())
	}
	return out
}

func TestRelation(t *testing.T) {
	r := relation("r", dag.NewPartySet(2, 1), "alpha", "beta")
	assert.True(t, r.IsShared())
	r.Rename("s")
	for k, c := range r.Columns {
		assert.Equal(t, "s", c.RelName)
		assert.Equal(t, k, c.Idx)
	}
	assert.Equal(t, "s([alpha, beta]) {1, 2}", r.String())
	cp := r.Copy()
	cp.Columns[0].Name = "gamma"
	assert.Equal(t, "alpha", r.Columns[0].Name)
}

func TestColumnNotFound(t *testing.T) {
	r := relation("r", dag.NewPartySet(1), "alpha", "beta")
	c, err := r.Column("beta")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Idx)
	_, err = r.Column("alpah")
	assert.EqualError(t, err, `column "alpah" not found in relation "r" (did you mean "alpha"?)`)
	_, err = r.Column("zzzzzz")
	assert.EqualError(t, err, `column "zzzzzz" not found in relation "r"`)
}

func TestTopSortDeterministic(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x"))
	b := d.NewNode(&dag.Create{}, relation("b", dag.NewPartySet(2), "x"))
	c := d.NewNode(&dag.Concat{}, relation("c", dag.NewPartySet(1, 2), "x"), b, a)
	store(d, "d", c)
	order, err := d.TopSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(d, order))
	again, err := d.TopSort()
	require.NoError(t, err)
	assert.Equal(t, order, again)
}

func TestTopSortCycle(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x"))
	b := store(d, "b", a)
	c := store(d, "c", b)
	d.Link(c, b)
	_, err := d.TopSort()
	assert.ErrorIs(t, err, dag.ErrCycle)
}

func TestInsertAndRemoveBetween(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x", "y"))
	b := store(d, "b", a)
	x := d.NewNode(&dag.Project{Selected: []dag.ColRef{{Idx: 1}}}, relation("x", dag.NewPartySet(1), "y"))
	d.RemoveRoot(x)

	require.NoError(t, d.InsertBetween(a, b, x))
	assert.Equal(t, []dag.ID{x}, d.Node(a).Children)
	assert.Equal(t, []dag.ID{a}, d.Node(x).Parents)
	assert.Equal(t, []dag.ID{b}, d.Node(x).Children)
	assert.Equal(t, []dag.ID{x}, d.Node(b).Parents)
	// The payload was rebound to the new input.
	assert.Equal(t, "y", d.Node(x).Op.(*dag.Project).Selected[0].Name)

	err := d.InsertBetween(a, b, x)
	assert.ErrorIs(t, err, dag.ErrHasEdges)

	require.NoError(t, d.RemoveBetween(a, b, x))
	assert.Equal(t, []dag.ID{b}, d.Node(a).Children)
	assert.Equal(t, []dag.ID{a}, d.Node(b).Parents)
	assert.Empty(t, d.Node(x).Parents)
	assert.Empty(t, d.Node(x).Children)
}

func TestInsertBetweenLeaf(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x"))
	x := d.NewNode(&dag.Store{}, relation("x", dag.NewPartySet(1), "x"))
	d.RemoveRoot(x)
	require.NoError(t, d.InsertBetween(a, dag.None, x))
	assert.Equal(t, []dag.ID{x}, d.Node(a).Children)
	require.NoError(t, d.RemoveBetween(a, dag.None, x))
	assert.Empty(t, d.Node(a).Children)
}

func TestInsertBetweenChildren(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x", "y"))
	b := store(d, "b", a)
	c := store(d, "c", a)
	x := d.NewNode(&dag.Store{}, relation("x", dag.NewPartySet(1), "x", "y"))
	d.RemoveRoot(x)
	require.NoError(t, d.InsertBetweenChildren(a, x))
	assert.Equal(t, []dag.ID{x}, d.Node(a).Children)
	assert.Equal(t, []dag.ID{b, c}, d.Node(x).Children)
	assert.Equal(t, []dag.ID{x}, d.Node(b).Parents)
	assert.Equal(t, []dag.ID{x}, d.Node(c).Parents)
}

func TestRemoveBetweenRejectsBinary(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "k", "x"))
	b := d.NewNode(&dag.Create{}, relation("b", dag.NewPartySet(2), "k", "y"))
	j := d.NewNode(&dag.Join{
		Left:  []dag.ColRef{{Name: "k", Idx: 0}},
		Right: []dag.ColRef{{Name: "k", Idx: 0}},
	}, relation("j", dag.NewPartySet(1, 2), "k", "x", "y"), a, b)
	err := d.RemoveBetween(a, dag.None, j)
	assert.ErrorIs(t, err, dag.ErrNotUnary)
}

func TestBoundaries(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x"))
	cl := d.NewNode(&dag.Close{}, relation("cl", dag.NewPartySet(1, 2), "x"), a)
	s := store(d, "s", cl)
	op := d.NewNode(&dag.Open{}, relation("op", dag.NewPartySet(1), "a", "b"), s)
	d.Node(s).MPC = true
	assert.True(t, d.IsUpperBoundary(s))
	assert.True(t, d.IsLowerBoundary(s))
	assert.True(t, d.ProducesShares(s))
	assert.False(t, d.ProducesShares(op))
	assert.True(t, d.RequiresMPC(s))
	assert.False(t, d.RequiresMPC(a))
}

func TestValidate(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x", "y"))
	p := d.NewNode(&dag.Project{Selected: []dag.ColRef{{Name: "y", Idx: 1}}}, relation("p", dag.NewPartySet(1), "y"), a)
	require.NoError(t, d.Validate())
	d.Node(p).Out.Columns = append(d.Node(p).Out.Columns, dag.Column{Name: "z", RelName: "p", Idx: 1})
	assert.EqualError(t, d.Validate(), `project "p": expected 1 output columns, found 2`)
	d.Node(p).Op.(*dag.Project).Selected[0].Idx = 5
	assert.Error(t, d.Validate())
}

func TestClone(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x", "y"))
	p := d.NewNode(&dag.Project{Selected: []dag.ColRef{{Name: "y", Idx: 1}}}, relation("p", dag.NewPartySet(1), "y"), a)
	c := d.Clone(p)
	assert.Empty(t, d.Node(c).Parents)
	d.Node(c).Op.(*dag.Project).Selected[0].Idx = 0
	d.Node(c).Out.Rename("q")
	assert.Equal(t, 1, d.Node(p).Op.(*dag.Project).Selected[0].Idx)
	assert.Equal(t, "p", d.Node(p).Name())
}

func TestReparent(t *testing.T) {
	d := dag.New()
	a := d.NewNode(&dag.Create{}, relation("a", dag.NewPartySet(1), "x"))
	b := d.NewNode(&dag.Create{}, relation("b", dag.NewPartySet(2), "x"))
	c := d.NewNode(&dag.Concat{}, relation("c", dag.NewPartySet(1, 2), "x"), a, b)
	cl := d.NewNode(&dag.Close{}, relation("a_close", dag.NewPartySet(1, 2), "x"), a)
	d.Reparent(c, a, cl)
	assert.Equal(t, []string{"a_close", "b"}, names(d, d.Node(c).Parents))
	assert.Equal(t, []string{"a_close"}, names(d, d.Node(a).Children))
	assert.Equal(t, []string{"c"}, names(d, d.Node(cl).Children))
}
