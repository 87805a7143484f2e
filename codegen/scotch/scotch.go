// Package scotch is the code generator for the scotch debugging
// language.  It accepts every operator and is used to inspect the
// partitions of a plan.
package scotch

import (
	"strings"

	"github.com/brimdata/conclave/codegen"
	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/sfmt"
)

const (
	Framework = "scotch"
	File      = "workflow.scotch"
)

type Backend struct {
	name string
}

func New() *Backend {
	return For(Framework)
}

// For returns a scotch backend registered under framework.  It stands in
// for an MPC framework whose generator runs outside this module.
func For(framework string) *Backend {
	return &Backend{name: framework}
}

func (b *Backend) Name() string {
	return b.name
}

func (*Backend) Node(d *dag.DAG, id dag.ID) (string, error) {
	return sfmt.Node(d, id)
}

func (*Backend) Job(_ string, ops []string) (*codegen.Code, error) {
	var sb strings.Builder
	for _, op := range ops {
		sb.WriteString(op)
		sb.WriteByte('\n')
	}
	return &codegen.Code{Files: []codegen.File{{Name: File, Body: sb.String()}}}, nil
}
