package conclave_test

import (
	"context"
	"testing"

	"github.com/brimdata/conclave"
	"github.com/brimdata/conclave/codegen/python"
	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/config"
	"github.com/brimdata/conclave/dispatch"
	"github.com/brimdata/conclave/dispatch/mock"
	"github.com/brimdata/conclave/ztest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestZTest(t *testing.T) { ztest.Run(t, "testdata/ztest") }

func aggregate(b *frontend.Builder) error {
	in1, err := b.Create("in1", []frontend.ColumnDef{{Name: "a"}, {Name: "b"}}, dag.NewPartySet(1))
	if err != nil {
		return err
	}
	in2, err := b.Create("in2", []frontend.ColumnDef{{Name: "a"}, {Name: "b"}}, dag.NewPartySet(2))
	if err != nil {
		return err
	}
	rel, err := b.Concat([]dag.ID{in1, in2}, "rel", nil)
	if err != nil {
		return err
	}
	agg, err := b.Aggregate(rel, "agg", []string{"a"}, "b", dag.Sum, "total")
	if err != nil {
		return err
	}
	return b.Collect(agg, 1)
}

func testConfig(t *testing.T) *config.Config {
	cfg, err := config.New("test")
	require.NoError(t, err)
	cfg.CodePath = t.TempDir()
	return cfg
}

func TestDAGOnly(t *testing.T) {
	d, err := conclave.DAGOnly(aggregate)
	require.NoError(t, err)
	assert.Len(t, d.Nodes(), 4)
	for _, id := range d.Nodes() {
		assert.False(t, d.Node(id).MPC)
	}
}

func TestScotchIsDeterministic(t *testing.T) {
	cfg := testConfig(t)
	s1, err := conclave.Scotch(aggregate, cfg)
	require.NoError(t, err)
	s2, err := conclave.Scotch(aggregate, cfg)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Contains(t, s1, "AGGMPC [total, sum] FROM (rel(")
}

func TestMPC(t *testing.T) {
	cfg := testConfig(t)
	backends, err := conclave.DefaultBackends(cfg)
	require.NoError(t, err)
	ctrl := gomock.NewController(t)
	local := mock.NewMockDispatcher(ctrl)
	mpc := mock.NewMockDispatcher(ctrl)
	// Party 1 runs its local aggregate and the MPC job.  The local
	// aggregate of party 2 is skipped.
	gomock.InOrder(
		local.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(nil),
		mpc.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(nil),
	)
	jobs, err := conclave.MPC(context.Background(), aggregate, cfg, backends, dispatch.Dispatchers{
		"python":    local,
		"sharemind": mpc,
	}, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	var frameworks []string
	for _, j := range jobs {
		frameworks = append(frameworks, j.Framework)
	}
	assert.Equal(t, []string{"python", "python", "sharemind"}, frameworks)
	assert.False(t, jobs[0].Skip)
	assert.True(t, jobs[1].Skip)
	assert.DirExists(t, jobs[0].CodeDir)
	assert.FileExists(t, jobs[0].CodeDir+"/"+python.File)
	assert.NoDirExists(t, jobs[1].CodeDir)
}
