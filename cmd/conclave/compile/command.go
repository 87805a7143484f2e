package compile

import (
	"flag"
	"fmt"

	"github.com/brimdata/conclave"
	"github.com/brimdata/conclave/cli/configflags"
	"github.com/brimdata/conclave/cmd/conclave/root"
	"github.com/brimdata/conclave/pkg/charm"
)

var spec = &charm.Spec{
	Name:  "compile",
	Usage: "compile [ options ] protocol.yaml",
	Short: "compile a protocol for inspection and debugging",
	Long: `
This command builds the DAG of a protocol and prints it one operator per
line.  Operators that run under MPC carry an MPC suffix.

With -O the DAG is rewritten for the parties of the workflow
configuration.  With -P the rewritten DAG is also partitioned and each
partition is printed under a header naming its framework and owners.
The -dot flag prints Graphviz instead.
`,
	New: New,
}

func init() {
	root.Conclave.Add(spec)
}

type Command struct {
	*root.Command
	configFlags configflags.Flags
	opts        conclave.CompileOptions
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{Command: parent.(*root.Command)}
	c.configFlags.SetFlags(f)
	f.BoolVar(&c.opts.Optimize, "O", false, "rewrite the DAG")
	f.BoolVar(&c.opts.Partition, "P", false, "rewrite and partition the DAG")
	f.BoolVar(&c.opts.DOT, "dot", false, "print Graphviz DOT")
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
	s, err := conclave.Compile(p, c.configFlags.Config, c.opts, c.Logger)
	if err != nil {
		return err
	}
	fmt.Print(s)
	return nil
}
