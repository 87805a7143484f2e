// Package charm is a minimal command framework.  A Spec tree describes
// the commands; each command parses its own flags and hands the
// remaining arguments to a child or runs.
package charm

import (
	"errors"
	"flag"
	"io"
	"os"
)

var (
	NeedHelp = errors.New("help")
	ErrNoRun = errors.New("no run method")
)

// A Constructor creates a command below parent and registers its flags
// on fs.  parent is nil for the root command.
type Constructor func(parent Command, fs *flag.FlagSet) (Command, error)

type Command interface {
	Run([]string) error
}

type Spec struct {
	Name  string
	Usage string
	Short string
	Long  string
	New   Constructor
	// Hidden hides this command from help.
	Hidden bool
	// HiddenFlags is a comma-separated list of flags left out of help
	// unless -hidden is given.
	HiddenFlags string
	children    []*Spec
}

func (s *Spec) Add(child *Spec) {
	s.children = append(s.children, child)
}

func (s *Spec) lookupSub(name string) *Spec {
	for _, child := range s.children {
		if name == child.Name {
			return child
		}
	}
	return nil
}

// Exec runs the command named by args and writes help to standard
// output when it is asked for.
func (s *Spec) Exec(args []string) error {
	return s.ExecTo(os.Stdout, args)
}

// ExecTo is like Exec but writes help to w.
func (s *Spec) ExecTo(w io.Writer, args []string) error {
	path, rest, showHidden, err := parse(s, args, nil)
	if err == nil {
		err = path.run(rest)
	}
	if errors.Is(err, NeedHelp) {
		return displayHelp(w, parseHelp(s, args), showHidden)
	}
	return err
}

// NoRun is the Run method of a command that only groups subcommands.
func NoRun(args []string) error {
	if len(args) == 0 {
		return NeedHelp
	}
	return ErrNoRun
}
