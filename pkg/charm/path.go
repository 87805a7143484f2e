package charm

import (
	"errors"
	"flag"
	"io"
	"strings"
)

type instance struct {
	command Command
	spec    *Spec
}

type path []instance

func (p path) run(args []string) error {
	return p[len(p)-1].command.Run(args)
}

func newFlagSet(spec *Spec) *flag.FlagSet {
	fs := flag.NewFlagSet(spec.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse builds the commands named by args starting at spec and returns
// them with the arguments left for the last one.
func parse(spec *Spec, args []string, parent Command) (path, []string, bool, error) {
	fs := newFlagSet(spec)
	var help, hidden bool
	fs.BoolVar(&help, "h", false, "display help")
	fs.BoolVar(&help, "help", false, "display help")
	fs.BoolVar(&hidden, "hidden", false, "show hidden options")
	cmd, err := spec.New(parent, fs)
	if err != nil {
		return nil, nil, false, err
	}
	p := path{{command: cmd, spec: spec}}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return p, nil, hidden, NeedHelp
		}
		return nil, nil, false, err
	}
	rest := fs.Args()
	if help {
		return p, rest, hidden, NeedHelp
	}
	if len(rest) > 0 {
		if child := spec.lookupSub(rest[0]); child != nil {
			sub, rest, subHidden, err := parse(child, rest[1:], cmd)
			return append(p, sub...), rest, hidden || subHidden, err
		}
	}
	return p, rest, hidden, nil
}

// parseHelp returns the specs named by the non-flag words of args.
func parseHelp(spec *Spec, args []string) []*Spec {
	specs := []*Spec{spec}
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		child := specs[len(specs)-1].lookupSub(arg)
		if child == nil {
			break
		}
		specs = append(specs, child)
	}
	return specs
}
