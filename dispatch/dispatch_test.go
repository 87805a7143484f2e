package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brimdata/conclave/dispatch"
	"github.com/brimdata/conclave/dispatch/mock"
	"github.com/brimdata/conclave/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	python := mock.NewMockDispatcher(ctrl)
	sharemind := mock.NewMockDispatcher(ctrl)
	jobs := []*job.Job{
		{Name: "w-python-job-0", Framework: "python"},
		{Name: "w-python-job-1", Framework: "python", Skip: true},
		{Name: "w-sharemind-job-2", Framework: "sharemind"},
	}
	ctx := context.Background()
	gomock.InOrder(
		python.EXPECT().Dispatch(ctx, jobs[0]).Return(nil),
		sharemind.EXPECT().Dispatch(ctx, jobs[2]).Return(nil),
	)
	core, logs := observer.New(zap.InfoLevel)
	dispatchers := dispatch.Dispatchers{"python": python, "sharemind": sharemind}
	require.NoError(t, dispatch.Run(ctx, jobs, dispatchers, zap.New(core)))
	skipped := logs.FilterMessage("skipping job").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "w-python-job-1", skipped[0].ContextMap()["job"])
}

func TestRunStopsAtFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	python := mock.NewMockDispatcher(ctrl)
	jobs := []*job.Job{
		{Name: "w-python-job-0", Framework: "python"},
		{Name: "w-python-job-1", Framework: "python"},
	}
	python.EXPECT().Dispatch(gomock.Any(), jobs[0]).Return(errors.New("exit status 1"))
	err := dispatch.Run(context.Background(), jobs, dispatch.Dispatchers{"python": python}, nil)
	assert.EqualError(t, err, "job w-python-job-0: exit status 1")
}

func TestMissingDispatcher(t *testing.T) {
	ctrl := gomock.NewController(t)
	python := mock.NewMockDispatcher(ctrl)
	jobs := []*job.Job{{Name: "w-obliv-c-job-0", Framework: "obliv-c"}}
	err := dispatch.Run(context.Background(), jobs, dispatch.Dispatchers{"python": python}, nil)
	assert.EqualError(t, err, `job w-obliv-c-job-0: no dispatcher for framework "obliv-c" (have python)`)
}
