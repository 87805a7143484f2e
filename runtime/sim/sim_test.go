package sim_test

import (
	"fmt"
	"slices"
	"testing"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/compiler/optimizer"
	"github.com/brimdata/conclave/config"
	"github.com/brimdata/conclave/runtime/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyed(name string, pid int) frontend.ColumnDef {
	return frontend.ColumnDef{Name: name, Trust: dag.NewTrustSet(dag.NewPartySet(pid))}
}

func aggregateAcrossParties(agg dag.Aggregator, trusted bool) frontend.Protocol {
	return func(b *frontend.Builder) error {
		key := frontend.ColumnDef{Name: "a"}
		if trusted {
			key = keyed("a", 1)
		}
		var ins []dag.ID
		for pid := 1; pid <= 2; pid++ {
			in, err := b.Create(fmt.Sprintf("in%d", pid), []frontend.ColumnDef{key, {Name: "b"}}, dag.NewPartySet(pid))
			if err != nil {
				return err
			}
			ins = append(ins, in)
		}
		rel, err := b.Concat(ins, "rel", nil)
		if err != nil {
			return err
		}
		id, err := b.Aggregate(rel, "agg", []string{"a"}, "b", agg, "total")
		if err != nil {
			return err
		}
		return b.Collect(id, 1)
	}
}

func hybridJoin(b *frontend.Builder) error {
	left, err := b.Create("left", []frontend.ColumnDef{keyed("a", 1), {Name: "b"}}, dag.NewPartySet(1))
	if err != nil {
		return err
	}
	right, err := b.Create("right", []frontend.ColumnDef{keyed("c", 1), {Name: "d"}}, dag.NewPartySet(2))
	if err != nil {
		return err
	}
	j, err := b.Join(left, right, "j", []string{"a"}, []string{"c"})
	if err != nil {
		return err
	}
	return b.Collect(j, 1)
}

func publicJoin(b *frontend.Builder) error {
	key := frontend.ColumnDef{Name: "a", Trust: dag.Public()}
	var lefts, rights []dag.ID
	for pid := 1; pid <= 2; pid++ {
		l, err := b.Create(fmt.Sprintf("left%d", pid), []frontend.ColumnDef{key, {Name: "b"}}, dag.NewPartySet(pid))
		if err != nil {
			return err
		}
		r, err := b.Create(fmt.Sprintf("right%d", pid), []frontend.ColumnDef{key, {Name: "c"}}, dag.NewPartySet(pid))
		if err != nil {
			return err
		}
		lefts, rights = append(lefts, l), append(rights, r)
	}
	lc, err := b.Concat(lefts, "left", nil)
	if err != nil {
		return err
	}
	rc, err := b.Concat(rights, "right", nil)
	if err != nil {
		return err
	}
	j, err := b.Join(lc, rc, "j", []string{"a"}, []string{"a"})
	if err != nil {
		return err
	}
	return b.Collect(j, 1)
}

func canonical(rels [][][]int64) [][][]int64 {
	out := make([][][]int64, 0, len(rels))
	for _, rel := range rels {
		rel = slices.Clone(rel)
		slices.SortFunc(rel, slices.Compare[[]int64])
		out = append(out, rel)
	}
	return out
}

// outputs evaluates p before and after rewriting and returns the party
// outputs of both.
func outputs(t *testing.T, p frontend.Protocol, leaky bool, inputs sim.Relations) ([][][]int64, [][][]int64) {
	t.Helper()
	before, err := frontend.Build(p)
	require.NoError(t, err)
	res, err := sim.Eval(before, inputs)
	require.NoError(t, err)
	_, want := sim.Outputs(before, res)

	after, err := frontend.Build(p)
	require.NoError(t, err)
	cfg, err := config.New("test")
	require.NoError(t, err)
	cfg.UseLeakyOps = leaky
	require.NoError(t, optimizer.New(cfg, nil, nil).Rewrite(after))
	res, err = sim.Eval(after, inputs)
	require.NoError(t, err)
	_, got := sim.Outputs(after, res)
	return canonical(want), canonical(got)
}

var aggInputs = sim.Relations{
	"in1": {{1, 10}, {2, 20}, {1, 5}},
	"in2": {{2, 7}, {3, 1}},
}

func TestAggregateAcrossParties(t *testing.T) {
	want, got := outputs(t, aggregateAcrossParties(dag.Sum, false), false, aggInputs)
	assert.Equal(t, [][][]int64{{{1, 15}, {2, 27}, {3, 1}}}, want)
	assert.Equal(t, want, got)
}

func TestHybridAggregate(t *testing.T) {
	for _, leaky := range []bool{false, true} {
		t.Run(fmt.Sprintf("leaky=%t", leaky), func(t *testing.T) {
			want, got := outputs(t, aggregateAcrossParties(dag.Mean, true), leaky, aggInputs)
			assert.Equal(t, [][][]int64{{{1, 7}, {2, 13}, {3, 1}}}, want)
			assert.Equal(t, want, got)
		})
	}
}

func TestHybridJoin(t *testing.T) {
	inputs := sim.Relations{
		"left":  {{1, 10}, {2, 20}, {2, 21}},
		"right": {{2, 200}, {3, 300}, {1, 100}},
	}
	want, got := outputs(t, hybridJoin, false, inputs)
	assert.Equal(t, [][][]int64{{{1, 10, 100}, {2, 20, 200}, {2, 21, 200}}}, want)
	assert.Equal(t, want, got)
}

func TestPublicJoin(t *testing.T) {
	inputs := sim.Relations{
		"left1":  {{1, 10}, {2, 20}},
		"right1": {{1, 100}},
		"left2":  {{1, 11}},
		"right2": {{2, 200}, {1, 101}},
	}
	want, got := outputs(t, publicJoin, false, inputs)
	expected := [][][]int64{{
		{1, 10, 100},
		{1, 10, 101},
		{1, 11, 100},
		{1, 11, 101},
		{2, 20, 200},
	}}
	assert.Equal(t, expected, want)
	assert.Equal(t, want, got)
}

func TestUnpairedPubJoin(t *testing.T) {
	d, err := frontend.Build(func(b *frontend.Builder) error {
		in, err := b.Create("in", []frontend.ColumnDef{{Name: "a"}}, dag.NewPartySet(1))
		if err != nil {
			return err
		}
		_, err = b.PubJoin(in, "pj", "a", "", 0, true, dag.None)
		return err
	})
	require.NoError(t, err)
	_, err = sim.Eval(d, sim.Relations{"in": {{1}}})
	assert.ErrorIs(t, err, sim.ErrNoPeer)
}

func TestMissingInput(t *testing.T) {
	d, err := frontend.Build(aggregateAcrossParties(dag.Sum, false))
	require.NoError(t, err)
	_, err = sim.Eval(d, sim.Relations{"in1": {{1, 2}}})
	assert.EqualError(t, err, `create "in2": no input rows`)
}

// divideAggregate divides the aggregate of two parties' rows by two.
func divideAggregate(agg dag.Aggregator) frontend.Protocol {
	return func(b *frontend.Builder) error {
		var ins []dag.ID
		for pid := 1; pid <= 2; pid++ {
			in, err := b.Create(fmt.Sprintf("in%d", pid), []frontend.ColumnDef{{Name: "a"}, {Name: "b"}}, dag.NewPartySet(pid))
			if err != nil {
				return err
			}
			ins = append(ins, in)
		}
		rel, err := b.Concat(ins, "rel", nil)
		if err != nil {
			return err
		}
		id, err := b.Aggregate(rel, "agg", []string{"a"}, "b", agg, "total")
		if err != nil {
			return err
		}
		div, err := b.Divide(id, "div", "total", frontend.Col("total"), frontend.Scalar(2))
		if err != nil {
			return err
		}
		p, err := b.Project(div, "p", []string{"a", "total"})
		if err != nil {
			return err
		}
		return b.Collect(p, 1)
	}
}

func TestDivideAfterAggregate(t *testing.T) {
	inputs := sim.Relations{
		"in1": {{1, 1}},
		"in2": {{1, 1}},
	}
	for _, agg := range []dag.Aggregator{dag.Sum, dag.Count} {
		t.Run(string(agg), func(t *testing.T) {
			want, got := outputs(t, divideAggregate(agg), false, inputs)
			assert.Equal(t, [][][]int64{{{1, 1}}}, want)
			assert.Equal(t, want, got)
		})
	}
}
