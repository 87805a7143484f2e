package logflags

import (
	"flag"
	"fmt"

	"github.com/alecthomas/units"
	"github.com/brimdata/conclave/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Flags struct {
	Config logger.Config
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	f.Config.Level = zapcore.InfoLevel
	f.Config.Mode = logger.FileModeAppend
	f.Config.MaxSizeMB = 100
	fs.Var(&f.Config.Level, "log.level", "logging level")
	fs.StringVar(&f.Config.Path, "log.path", "stderr", "path to send logs (values: stderr, stdout, path in file system)")
	fs.Var(&f.Config.Mode, "log.filemode", "logger file write mode (values: append, truncate, rotate)")
	fs.Var((*maxSize)(&f.Config.MaxSizeMB), "log.maxsize", "size at which a rotated log file is rotated (e.g., 100MiB)")
	fs.BoolVar(&f.Config.DevMode, "log.devmode", false, "development mode (if enabled dpanic level logs will cause a panic)")
}

// Open returns the configured logger and a function that closes its
// destination.
func (f *Flags) Open() (*zap.Logger, func() error, error) {
	return logger.New(f.Config)
}

// maxSize is a size in mebibytes set from a string like "1GiB".
type maxSize int

func (m maxSize) String() string {
	return (units.Base2Bytes(m) * units.MiB).String()
}

func (m *maxSize) Set(s string) error {
	b, err := units.ParseBase2Bytes(s)
	if err != nil {
		return err
	}
	if b < units.MiB {
		return fmt.Errorf("log file size %s is less than 1MiB", s)
	}
	*m = maxSize(b / units.MiB)
	return nil
}
