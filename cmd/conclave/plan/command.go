package plan

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brimdata/conclave"
	"github.com/brimdata/conclave/cli/configflags"
	"github.com/brimdata/conclave/cmd/conclave/root"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/config"
	"github.com/brimdata/conclave/job"
	"github.com/brimdata/conclave/pkg/charm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var spec = &charm.Spec{
	Name:  "plan",
	Usage: "plan [ options ] protocol.yaml",
	Short: "show the jobs a protocol compiles to",
	Long: `
This command rewrites and partitions a protocol and prints its jobs as a
markdown table.  Each job runs one partition on one framework for the
parties that own it.

With -o the code of every job the party takes part in is written under
the given directory.  With -all the protocol is planned for every party
of the workflow at once.  The command fails if the parties would not
agree on the plan.
`,
	New: New,
}

func init() {
	root.Conclave.Add(spec)
}

type Command struct {
	*root.Command
	configFlags configflags.Flags
	outDir      string
	all         bool
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{Command: parent.(*root.Command)}
	c.configFlags.SetFlags(f)
	f.StringVar(&c.outDir, "o", "", "write the code of the jobs under this directory")
	f.BoolVar(&c.all, "all", false, "plan for every party")
	return c, nil
}

func (c *Command) Run(args []string) error {
	_, cleanup, err := c.Init(&c.configFlags)
	if err != nil {
		return err
	}
	defer cleanup()
	p, err := root.LoadProtocol(args)
	if err != nil {
		return err
	}
	cfg := c.configFlags.Config
	pids := []int{cfg.PID}
	if c.all {
		pids = cfg.AllPIDs
	}
	plans := make([][]*job.Job, len(pids))
	var g errgroup.Group
	for k, pid := range pids {
		g.Go(func() error {
			var err error
			plans[k], err = c.plan(p, cfg.WithPID(pid), len(pids) > 1)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for k := 1; k < len(plans); k++ {
		if err := agree(plans[0], plans[k]); err != nil {
			return fmt.Errorf("parties %d and %d disagree: %w", pids[0], pids[k], err)
		}
	}
	return render(os.Stdout, plans, pids)
}

func (c *Command) plan(p frontend.Protocol, cfg *config.Config, perParty bool) ([]*job.Job, error) {
	if c.outDir != "" {
		cfg.CodePath = c.outDir
		if perParty {
			cfg.CodePath = filepath.Join(c.outDir, fmt.Sprintf("party-%d", cfg.PID))
		}
	}
	logger := c.Logger.With(zap.Int("pid", cfg.PID))
	backends, err := conclave.DefaultBackends(cfg)
	if err != nil {
		return nil, err
	}
	jobs, err := conclave.Plan(p, cfg, backends, logger)
	if err != nil {
		return nil, err
	}
	if c.outDir != "" {
		if err := job.Write(jobs); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}
