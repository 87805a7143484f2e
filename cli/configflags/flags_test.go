package configflags

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return &f, f.Init()
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conclave.yaml")
	conf := `
user_config:
  pid: 1
  workflow_name: wf
  all_pids: [2, 1]
net:
  parties:
    1: {host: ca-spark-node-0, port: 9001}
    2: {host: ca-spark-node-1, port: 9001}
`
	require.NoError(t, os.WriteFile(path, []byte(conf), 0644))
	f, err := parse(t, "-c", path, "-pid", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, f.Config.PID)
	assert.Equal(t, "wf", f.Config.Name)
	assert.Equal(t, []int{1, 2}, f.Config.AllPIDs)
}

func TestBadPID(t *testing.T) {
	_, err := parse(t, "-pid", "7")
	assert.EqualError(t, err, "pid 7 is not one of the parties [1 2 3]")
}
