package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := New("agg")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/agg-code", c.CodePath)
	assert.Equal(t, ",", c.Delimiter)
	assert.Equal(t, []int{1, 2, 3}, c.AllPIDs)
	assert.Equal(t, 1, c.PID)
	p, err := c.Party(2)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9002", p.Addr())
	_, err = c.Party(4)
	assert.EqualError(t, err, "no network configuration for party 4")
}

func TestTempCodePath(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(c.CodePath) })
	assert.DirExists(t, c.CodePath)
	assert.Equal(t, filepath.Base(c.CodePath), c.Name)
}

func TestWithPID(t *testing.T) {
	c, err := New("agg")
	require.NoError(t, err)
	c2 := c.WithPID(2)
	assert.Equal(t, 1, c.PID)
	assert.Equal(t, 2, c2.PID)
}

const workflow = `
user_config:
  pid: 2
  workflow_name: ssn
  all_pids: [3, 1, 2]
  leaky_ops: true
  paths:
    input_path: /data/in
    output_path: /data/out
  frameworks:
    mpc: obliv-c
net:
  parties:
    1: {host: ca-node, port: 8020}
    2: {host: cb-node, port: 8020}
    3: {host: cc-node, port: 8020}
backends:
  oblivc:
    oc_path: /opt/obliv-c
    ip_port: "10.0.0.1:9000"
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(workflow))
	require.NoError(t, err)
	assert.Equal(t, "ssn", c.Name)
	assert.Equal(t, 2, c.PID)
	assert.Equal(t, []int{1, 2, 3}, c.AllPIDs)
	assert.True(t, c.UseLeakyOps)
	assert.Equal(t, "/data/in", c.InputPath)
	assert.Equal(t, "/data/out", c.OutputPath)
	assert.Equal(t, "/tmp/ssn-code", c.CodePath)
	assert.Equal(t, "obliv-c", c.MPCFramework)
	assert.Equal(t, "python", c.LocalFramework)
	assert.Equal(t, Party{Host: "cb-node", Port: 8020}, c.Parties[2])
	require.NotNil(t, c.OblivC)
	assert.Equal(t, "/opt/obliv-c", c.OblivC.Path)
	assert.Nil(t, c.Spark)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("user_config:\n  workflow_name: x\n  colour: red\n"))
	assert.ErrorContains(t, err, "field colour not found")
	_, err = Parse([]byte("user_config:\n  workflow_name: x\n  pid: 4\n"))
	assert.EqualError(t, err, "workflow configuration: pid 4 is not one of the parties [1 2 3]")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(workflow), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ssn", c.Name)
}
