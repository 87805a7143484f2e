package partition

import (
	"testing"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNeighbors(t *testing.T) {
	d := dag.New()
	var ids []dag.ID
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, d.NewNode(&dag.Create{}, dag.NewRelation(name, nil, dag.NewPartySet(1))))
	}
	one, shared := dag.NewPartySet(1), dag.NewPartySet(1, 2)
	parts := []Partition{
		{Framework: "python", DAG: d.Sub(ids[0:1]), Owners: one},
		{Framework: "python", DAG: d.Sub(ids[1:2]), Owners: one},
		{Framework: "python", DAG: d.Sub(ids[2:3]), Owners: one},
		{Framework: "sharemind", DAG: d.Sub(ids[3:4]), Owners: shared},
		{Framework: "python", DAG: d.Sub(ids[4:5]), Owners: dag.NewPartySet(2)},
	}
	merged := MergeNeighbors(parts)
	require.Len(t, merged, 3)
	assert.Equal(t, []string{"a", "b", "c"}, names(d, merged[0].DAG.Roots()))
	assert.Equal(t, []string{"d"}, names(d, merged[1].DAG.Roots()))
	assert.Equal(t, dag.NewPartySet(2), merged[2].Owners)
}
