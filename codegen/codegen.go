// Package codegen turns the sub-DAGs of a job plan into code for the
// frameworks that run them.  A Backend renders one operator at a time
// and then wraps the rendered operators into the files of a job.
package codegen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/brimdata/conclave/compiler/dag"
)

var ErrUnsupported = errors.New("unsupported operator")

type Backend interface {
	// Name is the framework the backend generates code for.
	Name() string
	Node(d *dag.DAG, id dag.ID) (string, error)
	Job(name string, ops []string) (*Code, error)
}

// Unsupported reports that backend b cannot run node n.
func Unsupported(b Backend, n *dag.Node) error {
	return fmt.Errorf("%s: %s %q: %w", b.Name(), n.Kind(), n.Name(), ErrUnsupported)
}

type File struct {
	Name string
	Body string
}

// Code is the generated code of a job: a set of files to be written
// into the job's directory.
type Code struct {
	Files []File
}

func (c *Code) File(name string) (string, bool) {
	for _, f := range c.Files {
		if f.Name == name {
			return f.Body, true
		}
	}
	return "", false
}

// Write writes the files of c into dir, creating dir if needed.
func (c *Code) Write(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, f := range c.Files {
		if err := os.WriteFile(filepath.Join(dir, f.Name), []byte(f.Body), 0644); err != nil {
			return err
		}
	}
	return nil
}

// Generate renders the nodes of d in topological order with b, leaving
// out nodes marked Skip, and returns the job called name.  It does not
// modify d.
func Generate(b Backend, d *dag.DAG, name string) (*Code, error) {
	ids, err := d.TopSort()
	if err != nil {
		return nil, err
	}
	var ops []string
	for _, id := range ids {
		if d.Node(id).Skip {
			continue
		}
		op, err := b.Node(d, id)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return b.Job(name, ops)
}

// Backends maps framework names to their backends.
type Backends map[string]Backend

func NewBackends(backends ...Backend) Backends {
	m := make(Backends)
	for _, b := range backends {
		m[b.Name()] = b
	}
	return m
}

func (b Backends) Lookup(framework string) (Backend, error) {
	if backend, ok := b[framework]; ok {
		return backend, nil
	}
	var names []string
	for name := range b {
		names = append(names, name)
	}
	slices.Sort(names)
	return nil, fmt.Errorf("no code generator for framework %q (have %s)", framework, strings.Join(names, ", "))
}
