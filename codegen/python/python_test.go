package python_test

import (
	"testing"

	"github.com/brimdata/conclave/codegen"
	"github.com/brimdata/conclave/codegen/python"
	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backend(t *testing.T) *python.Backend {
	cfg, err := config.New("test")
	require.NoError(t, err)
	cfg.InputPath, cfg.OutputPath = "/data/in", "/data/out"
	b, err := python.New(cfg)
	require.NoError(t, err)
	return b
}

func TestWorkflow(t *testing.T) {
	d, err := frontend.Build(func(b *frontend.Builder) error {
		in, err := b.Create("in", []frontend.ColumnDef{{Name: "a"}, {Name: "b"}}, dag.NewPartySet(1))
		if err != nil {
			return err
		}
		f, err := b.Filter(in, "f", "b", "<", frontend.Scalar(5))
		if err != nil {
			return err
		}
		m, err := b.Multiply(f, "m", "c", frontend.Col("a"), frontend.Scalar(3))
		if err != nil {
			return err
		}
		agg, err := b.Aggregate(m, "agg", []string{"a"}, "c", dag.Sum, "total")
		if err != nil {
			return err
		}
		return b.Collect(agg, 1)
	})
	require.NoError(t, err)
	code, err := codegen.Generate(backend(t), d, "test-python-job-0")
	require.NoError(t, err)
	body, ok := code.File(python.File)
	require.True(t, ok)
	expected := `#!/usr/bin/env python3
# Job test-python-job-0, generated by conclave.
import os
import sys

sys.path.insert(0, os.path.dirname(os.path.abspath(__file__)))

from conclave_runtime import *

INPUT_PATH = "/data/in"
OUTPUT_PATH = "/data/out"
DELIMITER = ","


def main():
    rel_in = read_rel(os.path.join(INPUT_PATH, "in.csv"), DELIMITER)
    rel_f = cc_filter(lambda row: row[1] < 5, rel_in)
    rel_m = arithmetic_project(rel_f, 2, True, lambda row: row[0] * 3)
    rel_agg = aggregate(rel_m, [0], 2, "sum")
    write_rel(os.path.join(OUTPUT_PATH, "agg.csv"), rel_agg, ["a", "total"], DELIMITER)


if __name__ == "__main__":
    main()
`
	assert.Equal(t, expected, body)
	runtime, ok := code.File(python.RuntimeFile)
	require.True(t, ok)
	assert.Contains(t, runtime, "def pub_join_part(")
}

func TestUnsupported(t *testing.T) {
	d := dag.New()
	rel := func(name string, pids ...int) *dag.Relation {
		return dag.NewRelation(name, []dag.Column{{Name: "a", Type: dag.TypeInteger}}, dag.NewPartySet(pids...))
	}
	in := d.NewNode(&dag.Create{}, rel("in", 1))
	d.NewNode(&dag.Close{}, rel("in_close", 1, 2), in)
	_, err := codegen.Generate(backend(t), d, "job")
	assert.ErrorIs(t, err, codegen.ErrUnsupported)
	assert.EqualError(t, err, `python: close "in_close": unsupported operator`)
}
