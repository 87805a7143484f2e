package run

import (
	"flag"

	"github.com/brimdata/conclave"
	"github.com/brimdata/conclave/cli/configflags"
	"github.com/brimdata/conclave/cmd/conclave/root"
	"github.com/brimdata/conclave/pkg/charm"
	"go.uber.org/zap"
)

var spec = &charm.Spec{
	Name:  "run",
	Usage: "run [ options ] protocol.yaml",
	Short: "plan a protocol and run this party's jobs",
	Long: `
This command plans a protocol for the party given by the workflow
configuration, writes the code of the jobs the party takes part in under
the configured code path, and runs them in order.  Jobs held by other
parties are skipped.  The run stops at the first failing job.
`,
	New: New,
}

func init() {
	root.Conclave.Add(spec)
}

type Command struct {
	*root.Command
	configFlags configflags.Flags
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{Command: parent.(*root.Command)}
	c.configFlags.SetFlags(f)
	return c, nil
}

func (c *Command) Run(args []string) error {
	ctx, cleanup, err := c.Init(&c.configFlags)
	if err != nil {
		return err
	}
	defer cleanup()
	p, err := root.LoadProtocol(args)
	if err != nil {
		return err
	}
	cfg := c.configFlags.Config
	backends, err := conclave.DefaultBackends(cfg)
	if err != nil {
		return err
	}
	jobs, err := conclave.MPC(ctx, p, cfg, backends, conclave.DefaultDispatchers(c.Logger), c.Logger)
	if err != nil {
		return err
	}
	c.Logger.Info("workflow done", zap.String("workflow", cfg.Name), zap.Int("jobs", len(jobs)))
	return nil
}
