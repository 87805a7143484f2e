// Package conclave compiles protocols over data held by several parties
// into workflows.  Work that needs no secure computation runs in the
// clear at the parties holding the data and the rest runs under MPC.
package conclave

import (
	"context"
	"fmt"
	"strings"

	"github.com/brimdata/conclave/codegen"
	"github.com/brimdata/conclave/codegen/python"
	"github.com/brimdata/conclave/codegen/scotch"
	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/compiler/optimizer"
	"github.com/brimdata/conclave/compiler/partition"
	"github.com/brimdata/conclave/compiler/sfmt"
	"github.com/brimdata/conclave/config"
	"github.com/brimdata/conclave/dispatch"
	"github.com/brimdata/conclave/job"
	"go.uber.org/zap"
)

// DAGOnly builds the DAG of p without rewriting it.
func DAGOnly(p frontend.Protocol) (*dag.DAG, error) {
	return frontend.Build(p)
}

// Rewrite builds the DAG of p and runs the optimizer over it for the
// parties of cfg.
func Rewrite(p frontend.Protocol, cfg *config.Config, logger *zap.Logger) (*dag.DAG, error) {
	d, err := frontend.Build(p)
	if err != nil {
		return nil, err
	}
	if err := optimizer.New(cfg, logger, nil).Rewrite(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Scotch returns the scotch text of the rewritten DAG of p.
func Scotch(p frontend.Protocol, cfg *config.Config) (string, error) {
	d, err := Rewrite(p, cfg, nil)
	if err != nil {
		return "", err
	}
	return sfmt.Scotch(d)
}

type CompileOptions struct {
	// Optimize runs the rewrite passes.
	Optimize bool
	// Partition splits the rewritten DAG and prints every partition
	// under a header naming its framework and owners.  It implies
	// Optimize.
	Partition bool
	// DOT prints Graphviz instead of scotch.
	DOT bool
}

// Compile returns the text form of p after the stages selected by opts.
func Compile(p frontend.Protocol, cfg *config.Config, opts CompileOptions, logger *zap.Logger) (string, error) {
	var d *dag.DAG
	var err error
	if opts.Optimize || opts.Partition {
		d, err = Rewrite(p, cfg, logger)
	} else {
		d, err = DAGOnly(p)
	}
	if err != nil {
		return "", err
	}
	format := sfmt.Scotch
	if opts.DOT {
		format = sfmt.DOT
	}
	if !opts.Partition {
		return format(d)
	}
	parts, err := partition.New(cfg.MPCFramework, cfg.LocalFramework, logger).Partition(d)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for k, part := range parts {
		s, err := format(part.DAG)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "# partition %d: %s %s\n%s", k, part.Framework, part.Owners, s)
	}
	return b.String(), nil
}

// DefaultBackends returns the code generators built into conclave.  The
// MPC frameworks are served by scotch stand-ins.
func DefaultBackends(cfg *config.Config) (codegen.Backends, error) {
	py, err := python.New(cfg)
	if err != nil {
		return nil, err
	}
	return codegen.NewBackends(
		py,
		scotch.New(),
		scotch.For(job.Sharemind),
		scotch.For(job.OblivC),
		scotch.For(job.JIFF),
		scotch.For("spark"),
	), nil
}

// DefaultDispatchers returns the dispatchers that can run jobs on this
// host.
func DefaultDispatchers(logger *zap.Logger) dispatch.Dispatchers {
	return dispatch.Dispatchers{job.Python: dispatch.NewPython(logger)}
}

// Plan rewrites p and returns the jobs of party cfg.PID.  Single-party
// frameworks plan the DAG as written.
func Plan(p frontend.Protocol, cfg *config.Config, backends codegen.Backends, logger *zap.Logger) ([]*job.Job, error) {
	var d *dag.DAG
	var err error
	if job.IsSingleParty(cfg.MPCFramework) {
		d, err = DAGOnly(p)
	} else {
		d, err = Rewrite(p, cfg, logger)
	}
	if err != nil {
		return nil, err
	}
	return job.NewPlanner(cfg, backends, logger).Plan(d)
}

// MPC plans p for party cfg.PID, writes the code of its jobs, and runs
// them in order.
func MPC(ctx context.Context, p frontend.Protocol, cfg *config.Config, backends codegen.Backends, dispatchers dispatch.Dispatchers, logger *zap.Logger) ([]*job.Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	jobs, err := Plan(p, cfg, backends, logger)
	if err != nil {
		return nil, err
	}
	if err := job.Write(jobs); err != nil {
		return nil, err
	}
	return jobs, dispatch.Run(ctx, jobs, dispatchers, logger)
}
