package plan

import (
	"strings"
	"testing"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/job"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobs(skip ...bool) []*job.Job {
	return []*job.Job{
		{Name: "wf-python-job-0", Framework: "python", Owners: dag.NewPartySet(1), Inputs: dag.NewPartySet(1), Skip: skip[0]},
		{Name: "wf-sharemind-job-1", Framework: "sharemind", Owners: dag.NewPartySet(1, 2), Inputs: dag.NewPartySet(1, 2), Skip: skip[1]},
	}
}

func TestRender(t *testing.T) {
	color.NoColor = true
	var b strings.Builder
	require.NoError(t, render(&b, [][]*job.Job{jobs(false, false), jobs(true, false)}, []int{1, 2}))
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "PARTY 2")
	assert.Regexp(t, `wf-python-job-0 +\| +python +\| +\{1\} +\| +\{1\} +\| +run +\| +skip`, lines[2])
	assert.Regexp(t, `wf-sharemind-job-1 +\| +sharemind +\| +\{1, 2\} +\| +\{1, 2\} +\| +run +\| +run`, lines[3])
}

func TestAgree(t *testing.T) {
	assert.NoError(t, agree(jobs(false, false), jobs(true, false)))
	other := jobs(false, false)
	other[1].Owners = dag.NewPartySet(1, 3)
	assert.EqualError(t, agree(jobs(false, false), other), "job 1 is wf-sharemind-job-1 (sharemind, owners {1, 2}) and wf-sharemind-job-1 (sharemind, owners {1, 3})")
	assert.EqualError(t, agree(jobs(false, false), other[:1]), "2 jobs and 1 jobs")
}
