package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestFileModes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conclave.log")
	write := func(mode FileMode, msg string) {
		l, done, err := New(Config{Path: path, Mode: mode, Level: zapcore.InfoLevel})
		require.NoError(t, err)
		l.Info(msg, zap.String("job", "j"))
		l.Debug("hidden")
		require.NoError(t, done())
	}
	write(FileModeAppend, "first")
	write(FileModeAppend, "second")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"first"`)
	assert.Contains(t, string(b), `"msg":"second"`)
	assert.NotContains(t, string(b), "hidden")

	write(FileModeTruncate, "third")
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "first")
	assert.Contains(t, string(b), `"msg":"third"`)

	write(FileModeRotate, "fourth")
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"fourth"`)
}

func TestFileModeFlag(t *testing.T) {
	var m FileMode
	require.NoError(t, m.Set("rotate"))
	assert.Equal(t, FileModeRotate, m)
	assert.Equal(t, "rotate", m.String())
	assert.EqualError(t, m.Set("bogus"), `unknown file mode "bogus" (want append, truncate or rotate)`)
}
