// Package logger builds zap loggers that write to standard error,
// standard output, or a file.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileMode int

const (
	FileModeUnset FileMode = iota
	FileModeAppend
	FileModeTruncate
	FileModeRotate
)

func (m FileMode) String() string {
	switch m {
	case FileModeAppend:
		return "append"
	case FileModeTruncate:
		return "truncate"
	case FileModeRotate:
		return "rotate"
	}
	return "unset"
}

func (m *FileMode) Set(s string) error {
	switch s {
	case "append":
		*m = FileModeAppend
	case "truncate":
		*m = FileModeTruncate
	case "rotate":
		*m = FileModeRotate
	default:
		return fmt.Errorf("unknown file mode %q (want append, truncate or rotate)", s)
	}
	return nil
}

type Config struct {
	Path      string
	Mode      FileMode
	Level     zapcore.Level
	DevMode   bool
	MaxSizeMB int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenFile opens the log destination path.  The names "stderr" and
// "stdout" and the empty string refer to the standard streams, which are
// never closed.
func OpenFile(path string, mode FileMode, maxSizeMB int) (zapcore.WriteSyncer, io.Closer, error) {
	switch path {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), nopCloser{}, nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nopCloser{}, nil
	}
	switch mode {
	case FileModeRotate:
		l := &lumberjack.Logger{Filename: path, MaxSize: maxSizeMB}
		return zapcore.AddSync(l), l, nil
	case FileModeTruncate:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, nil, err
		}
		return zapcore.Lock(f), f, nil
	default:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		return zapcore.Lock(f), f, nil
	}
}

func NewCore(conf Config) (zapcore.Core, io.Closer, error) {
	w, closer, err := OpenFile(conf.Path, conf.Mode, conf.MaxSizeMB)
	if err != nil {
		return nil, nil, err
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	if conf.DevMode {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	return zapcore.NewCore(encoder, w, conf.Level), closer, nil
}

// New returns a logger for conf and a function that releases its
// destination.
func New(conf Config) (*zap.Logger, func() error, error) {
	core, closer, err := NewCore(conf)
	if err != nil {
		return nil, nil, err
	}
	logger := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	if conf.DevMode {
		logger = logger.WithOptions(zap.Development(), zap.AddCaller())
	}
	return logger, func() error {
		logger.Sync()
		return closer.Close()
	}, nil
}
