// Package configflags loads the workflow configuration named on the
// command line.
package configflags

import (
	"flag"

	"github.com/brimdata/conclave/config"
)

type Flags struct {
	Path   string
	PID    int
	Config *config.Config
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.Path, "c", "", "workflow configuration file (default: built-in three party configuration)")
	fs.IntVar(&f.PID, "pid", 0, "party to plan for (overrides the configuration)")
}

func (f *Flags) Init() error {
	var err error
	if f.Path == "" {
		f.Config, err = config.New("")
	} else {
		f.Config, err = config.Load(f.Path)
	}
	if err != nil {
		return err
	}
	if f.PID != 0 {
		f.Config.PID = f.PID
	}
	return f.Config.Validate()
}
