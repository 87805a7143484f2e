package root

import (
	"errors"
	"flag"

	"github.com/brimdata/conclave/cli"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/pkg/charm"
)

var Conclave = &charm.Spec{
	Name:  "conclave",
	Usage: "conclave <command> [options] [arguments...]",
	Short: "compile protocols over data held by several parties",
	Long: `
The "conclave" command compiles a protocol over relations held by several
parties into a workflow.  Operators that need no secure computation run
in the clear at the parties holding the data and the rest runs under MPC.

A protocol is a YAML file listing the input relations of each party and
the operators applied to them.  The parties, the frameworks and where
code and data live come from a workflow configuration file given with -c.
`,
	New: New,
}

type Command struct {
	cli.Flags
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{}
	c.SetFlags(f)
	return c, nil
}

func (c *Command) Run(args []string) error {
	_, cleanup, err := c.Init()
	if err != nil {
		return err
	}
	defer cleanup()
	if len(args) == 0 {
		return charm.NeedHelp
	}
	return charm.ErrNoRun
}

// LoadProtocol reads the protocol named by the single argument of a
// command.
func LoadProtocol(args []string) (frontend.Protocol, error) {
	if len(args) != 1 {
		return nil, errors.New("a single protocol file is required")
	}
	return frontend.LoadProtocol(args[0])
}
