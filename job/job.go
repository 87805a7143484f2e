// Package job turns a rewritten DAG into the plan of jobs that the
// parties run in order.
package job

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/brimdata/conclave/codegen"
	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/partition"
	"github.com/brimdata/conclave/config"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const (
	Sharemind         = "sharemind"
	OblivC            = "obliv-c"
	JIFF              = "jiff"
	Python            = "python"
	SinglePartySpark  = "single-party-spark"
	SinglePartyPython = "single-party-python"
	singlePartyPrefix = "single-party-"
	oblivCSubmit      = 1
	oblivCEvaluator   = 2
)

type Job struct {
	ID        ksuid.KSUID
	Name      string
	Framework string
	CodeDir   string
	Owners    dag.PartySet
	// Skip is set when this party does not take part in the job.
	Skip bool
	Code *codegen.Code

	// Controller is the Sharemind party that launches the job.
	Controller int
	// Submit and Evaluator are the Obliv-C garbler and evaluator.
	Submit    int
	Evaluator int
	// Compute is the party that runs a single-party job.
	Compute int
	Inputs  dag.PartySet
}

func (j *Job) String() string {
	return fmt.Sprintf("%s (%s, owners %s)", j.Name, j.Framework, j.Owners)
}

// IsSingleParty reports whether framework runs a whole workflow at one
// party without partitioning.
func IsSingleParty(framework string) bool {
	return strings.HasPrefix(framework, singlePartyPrefix)
}

func newJob(cfg *config.Config, n int, framework string, owners dag.PartySet) *Job {
	name := fmt.Sprintf("%s-%s-job-%d", cfg.Name, framework, n)
	j := &Job{
		ID:        ksuid.New(),
		Name:      name,
		Framework: framework,
		CodeDir:   filepath.Join(cfg.CodePath, name),
		Owners:    owners,
		Skip:      !owners.Contains(cfg.PID),
	}
	switch framework {
	case Sharemind:
		j.Controller = owners[0]
		j.Inputs = owners
	case OblivC:
		j.Submit, j.Evaluator = oblivCSubmit, oblivCEvaluator
		j.Inputs = dag.NewPartySet(oblivCSubmit, oblivCEvaluator)
	case JIFF:
		j.Inputs = owners
	default:
		if IsSingleParty(framework) {
			j.Compute = owners[0]
			j.Inputs = dag.NewPartySet(cfg.AllPIDs...)
			j.Owners = dag.NewPartySet(j.Compute)
			j.Skip = cfg.PID != j.Compute
		}
	}
	return j
}

type Planner struct {
	cfg      *config.Config
	backends codegen.Backends
	logger   *zap.Logger
}

func NewPlanner(cfg *config.Config, backends codegen.Backends, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		cfg:      cfg,
		backends: backends,
		logger:   logger.Named("plan"),
	}
}

// Plan partitions d and generates the code of every partition.  The
// partitioner cuts the edges of d, so d is consumed.  A single-party
// framework bypasses partitioning and yields one job for all of d.
func (p *Planner) Plan(d *dag.DAG) ([]*Job, error) {
	if IsSingleParty(p.cfg.MPCFramework) {
		return p.singleParty(d)
	}
	parts, err := partition.New(p.cfg.MPCFramework, p.cfg.LocalFramework, p.logger).Partition(d)
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(parts))
	for k, part := range parts {
		j := newJob(p.cfg, k, part.Framework, part.Owners)
		if err := p.generate(j, part.Framework, part.DAG); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (p *Planner) singleParty(d *dag.DAG) ([]*Job, error) {
	pids := dag.NewPartySet(p.cfg.AllPIDs...)
	if len(pids) == 0 {
		return nil, fmt.Errorf("%s: no parties", p.cfg.MPCFramework)
	}
	j := newJob(p.cfg, 0, p.cfg.MPCFramework, pids)
	backend := strings.TrimPrefix(p.cfg.MPCFramework, singlePartyPrefix)
	if err := p.generate(j, backend, d); err != nil {
		return nil, err
	}
	return []*Job{j}, nil
}

func (p *Planner) generate(j *Job, framework string, d *dag.DAG) error {
	b, err := p.backends.Lookup(framework)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	code, err := codegen.Generate(b, d, j.Name)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	j.Code = code
	p.logger.Debug("job",
		zap.String("name", j.Name),
		zap.Stringer("id", j.ID),
		zap.Stringer("owners", j.Owners),
		zap.Bool("skip", j.Skip),
	)
	return nil
}

// Write writes the code of every job this party runs under its code
// directory.
func Write(jobs []*Job) error {
	for _, j := range jobs {
		if j.Skip || j.Code == nil {
			continue
		}
		if err := j.Code.Write(j.CodeDir); err != nil {
			return err
		}
	}
	return nil
}
