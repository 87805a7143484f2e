// Package cli holds the flags and setup shared by the conclave commands.
package cli

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/brimdata/conclave/cli/logflags"
	"go.uber.org/zap"
)

// An Initializer is a flag set that finishes its setup once the command
// line is parsed.
type Initializer interface {
	Init() error
}

type Flags struct {
	logflags logflags.Flags
	Logger   *zap.Logger
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	f.logflags.SetFlags(fs)
}

// Init runs the Init method of each of all, opens the logger, and returns
// a context that is canceled on interrupt.  The caller must run cleanup
// when it is done.
func (f *Flags) Init(all ...Initializer) (context.Context, func(), error) {
	for _, i := range all {
		if err := i.Init(); err != nil {
			return nil, nil, err
		}
	}
	logger, closeLog, err := f.logflags.Open()
	if err != nil {
		return nil, nil, err
	}
	f.Logger = logger
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cleanup := func() {
		cancel()
		logger.Sync()
		closeLog()
	}
	return ctx, cleanup, nil
}
