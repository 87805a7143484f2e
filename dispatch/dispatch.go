// Package dispatch runs the jobs of a plan.
package dispatch

//go:generate mockgen -destination=./mock/mock.go -package=mock github.com/brimdata/conclave/dispatch Dispatcher

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/brimdata/conclave/job"
	"go.uber.org/zap"
)

// A Dispatcher runs jobs of one framework.
type Dispatcher interface {
	Dispatch(context.Context, *job.Job) error
}

// Dispatchers maps framework names to their dispatchers.
type Dispatchers map[string]Dispatcher

func (d Dispatchers) Lookup(framework string) (Dispatcher, error) {
	if dispatcher, ok := d[framework]; ok {
		return dispatcher, nil
	}
	names := slices.Sorted(maps.Keys(d))
	return nil, fmt.Errorf("no dispatcher for framework %q (have %s)", framework, strings.Join(names, ", "))
}

// Run runs jobs in order and stops at the first failure.  Jobs this
// party does not take part in are skipped.
func Run(ctx context.Context, jobs []*job.Job, dispatchers Dispatchers, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, j := range jobs {
		if j.Skip {
			logger.Info("skipping job", zap.String("job", j.Name), zap.Stringer("owners", j.Owners))
			continue
		}
		d, err := dispatchers.Lookup(j.Framework)
		if err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
		logger.Info("dispatching job", zap.String("job", j.Name), zap.Stringer("id", j.ID))
		if err := d.Dispatch(ctx, j); err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
	}
	return nil
}
