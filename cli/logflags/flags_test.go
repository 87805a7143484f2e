package logflags

import (
	"flag"
	"testing"

	"github.com/brimdata/conclave/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFlags(t *testing.T) {
	var f Flags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.SetFlags(fs)
	require.NoError(t, fs.Parse([]string{"-log.level", "debug", "-log.filemode", "rotate", "-log.maxsize", "2GiB"}))
	assert.Equal(t, zapcore.DebugLevel, f.Config.Level)
	assert.Equal(t, logger.FileModeRotate, f.Config.Mode)
	assert.Equal(t, 2048, f.Config.MaxSizeMB)
	assert.Equal(t, "stderr", f.Config.Path)
}

func TestMaxSizeTooSmall(t *testing.T) {
	var m maxSize
	assert.EqualError(t, m.Set("10KiB"), "log file size 10KiB is less than 1MiB")
}
