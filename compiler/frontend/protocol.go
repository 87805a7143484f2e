package frontend

import (
	"errors"
	"fmt"
	"os"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/goccy/go-yaml"
)

// A Protocol declares its inputs and operators with a Builder.
type Protocol func(b *Builder) error

// Build runs p against a new Builder and validates the resulting DAG.
func Build(p Protocol) (*dag.DAG, error) {
	b := New()
	if err := p(b); err != nil {
		return nil, err
	}
	if len(b.dag.Roots()) == 0 {
		return nil, errors.New("protocol declares no input relations")
	}
	if err := b.dag.Validate(); err != nil {
		return nil, err
	}
	return b.dag, nil
}

// ProtocolFile is the YAML form of a protocol: a list of statements, each
// naming a builder with its op field.  Inputs are referred to by relation
// name.
//
//	statements:
//	  - op: create
//	    name: in1
//	    columns: [{name: a, trust: [[1]]}, {name: b}]
//	    stored_with: [1]
//	  - op: aggregate
//	    name: agg
//	    input: in1
//	    group: [a]
//	    over: b
//	    aggregator: sum
//	    out: total
//	  - op: collect
//	    input: agg
//	    party: 1
type ProtocolFile struct {
	Statements []Statement `yaml:"statements"`
}

type Statement struct {
	Op         string       `yaml:"op"`
	Name       string       `yaml:"name,omitempty"`
	Input      string       `yaml:"input,omitempty"`
	Inputs     []string     `yaml:"inputs,omitempty"`
	Left       string       `yaml:"left,omitempty"`
	Right      string       `yaml:"right,omitempty"`
	By         string       `yaml:"by,omitempty"`
	Other      string       `yaml:"other,omitempty"`
	Columns    []ColumnDecl `yaml:"columns,omitempty"`
	StoredWith []int        `yaml:"stored_with,omitempty"`
	Cols       []string     `yaml:"cols,omitempty"`
	Col        string       `yaml:"col,omitempty"`
	Operator   string       `yaml:"operator,omitempty"`
	OtherCol   string       `yaml:"other_col,omitempty"`
	Scalar     int64        `yaml:"scalar,omitempty"`
	Target     string       `yaml:"target,omitempty"`
	Operands   []any        `yaml:"operands,omitempty"`
	Group      []string     `yaml:"group,omitempty"`
	Over       string       `yaml:"over,omitempty"`
	Aggregator string       `yaml:"aggregator,omitempty"`
	Out        string       `yaml:"out,omitempty"`
	LeftOn     []string     `yaml:"left_on,omitempty"`
	RightOn    []string     `yaml:"right_on,omitempty"`
	Party      int          `yaml:"party,omitempty"`
	Num        int          `yaml:"num,omitempty"`
	UseMult    bool         `yaml:"use_mult,omitempty"`
	UseSort    *bool        `yaml:"use_sort,omitempty"`
	NotIn      bool         `yaml:"not_in,omitempty"`
	Host       string       `yaml:"host,omitempty"`
	Port       int          `yaml:"port,omitempty"`
	Server     bool         `yaml:"server,omitempty"`
	Backend    string       `yaml:"backend,omitempty"`
	Code       string       `yaml:"code,omitempty"`
}

type ColumnDecl struct {
	Name  string  `yaml:"name"`
	Type  string  `yaml:"type,omitempty"`
	Trust [][]int `yaml:"trust,omitempty"`
}

// ParseProtocol decodes a YAML protocol.
func ParseProtocol(b []byte) (Protocol, error) {
	var file ProtocolFile
	if err := yaml.UnmarshalWithOptions(b, &file, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	if len(file.Statements) == 0 {
		return nil, errors.New("protocol has no statements")
	}
	return file.Protocol, nil
}

// LoadProtocol reads and decodes the YAML protocol in path.
func LoadProtocol(path string) (Protocol, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := ParseProtocol(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Protocol runs the statements of f against b.
func (f *ProtocolFile) Protocol(b *Builder) error {
	env := make(map[string]dag.ID)
	for k, s := range f.Statements {
		id, err := s.build(b, env)
		if err != nil {
			return fmt.Errorf("statement %d (%s): %w", k+1, s.Op, err)
		}
		if id != dag.None {
			env[s.Name] = id
		}
	}
	return nil
}

func lookup(env map[string]dag.ID, name string) (dag.ID, error) {
	if name == "" {
		return dag.None, errors.New("missing input")
	}
	id, ok := env[name]
	if !ok {
		return dag.None, fmt.Errorf("no such relation %q", name)
	}
	return id, nil
}

func lookupAll(env map[string]dag.ID, names []string) ([]dag.ID, error) {
	ids := make([]dag.ID, 0, len(names))
	for _, name := range names {
		id, err := lookup(env, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Statement) build(b *Builder, env map[string]dag.ID) (dag.ID, error) {
	switch s.Op {
	case "create":
		cols := make([]ColumnDef, 0, len(s.Columns))
		for _, c := range s.Columns {
			cols = append(cols, c.def())
		}
		return b.Create(s.Name, cols, dag.NewPartySet(s.StoredWith...))
	case "concat":
		ids, err := lookupAll(env, s.Inputs)
		if err != nil {
			return dag.None, err
		}
		return b.Concat(ids, s.Name, s.Cols)
	case "concat_cols":
		ids, err := lookupAll(env, s.Inputs)
		if err != nil {
			return dag.None, err
		}
		return b.ConcatCols(ids, s.Name, s.UseMult)
	case "blackbox":
		ids, err := lookupAll(env, s.Inputs)
		if err != nil {
			return dag.None, err
		}
		return b.Blackbox(ids, s.Name, s.Cols, s.Backend, s.Code)
	case "join", "union":
		left, err := lookup(env, s.Left)
		if err != nil {
			return dag.None, err
		}
		right, err := lookup(env, s.Right)
		if err != nil {
			return dag.None, err
		}
		if s.Op == "union" {
			if len(s.LeftOn) != 1 || len(s.RightOn) != 1 {
				return dag.None, errors.New("union takes one left_on and one right_on column")
			}
			return b.Union(left, right, s.Name, s.LeftOn[0], s.RightOn[0])
		}
		return b.Join(left, right, s.Name, s.LeftOn, s.RightOn)
	}
	in, err := lookup(env, s.Input)
	if err != nil {
		return dag.None, err
	}
	switch s.Op {
	case "collect":
		return dag.None, b.Collect(in, s.Party)
	case "store":
		return b.Store(in, s.Name)
	case "shuffle":
		return b.Shuffle(in, s.Name)
	case "limit":
		return b.Limit(in, s.Name, s.Num)
	case "project":
		return b.Project(in, s.Name, s.Cols)
	case "distinct":
		return b.Distinct(in, s.Name, s.Cols)
	case "filter":
		other := Scalar(s.Scalar)
		if s.OtherCol != "" {
			other = Col(s.OtherCol)
		}
		return b.Filter(in, s.Name, s.Col, s.Operator, other)
	case "multiply", "divide":
		operands, err := s.operands()
		if err != nil {
			return dag.None, err
		}
		if s.Op == "multiply" {
			return b.Multiply(in, s.Name, s.Target, operands...)
		}
		return b.Divide(in, s.Name, s.Target, operands...)
	case "aggregate":
		return b.Aggregate(in, s.Name, s.Group, s.Over, dag.Aggregator(s.Aggregator), s.Out)
	case "distinct_count":
		useSort := true
		if s.UseSort != nil {
			useSort = *s.UseSort
		}
		return b.DistinctCount(in, s.Name, s.Col, useSort)
	case "sort_by":
		return b.SortBy(in, s.Name, s.Col)
	case "index":
		return b.Index(in, s.Name, s.Col)
	case "num_rows":
		return b.NumRows(in, s.Name, s.Col)
	case "filter_by":
		by, err := lookup(env, s.By)
		if err != nil {
			return dag.None, err
		}
		return b.FilterBy(in, by, s.Name, s.Col, s.NotIn)
	case "pub_intersect":
		return b.PubIntersect(in, s.Name, s.Col, s.Host, s.Port, s.Server)
	case "pub_join":
		other := dag.None
		if s.Other != "" {
			if other, err = lookup(env, s.Other); err != nil {
				return dag.None, err
			}
		}
		return b.PubJoin(in, s.Name, s.Col, s.Host, s.Port, s.Server, other)
	}
	return dag.None, fmt.Errorf("unknown op %q", s.Op)
}

func (s *Statement) operands() ([]Operand, error) {
	var out []Operand
	for _, o := range s.Operands {
		switch o := o.(type) {
		case string:
			out = append(out, Col(o))
		case int:
			out = append(out, Scalar(int64(o)))
		case int64:
			out = append(out, Scalar(o))
		case uint64:
			out = append(out, Scalar(int64(o)))
		default:
			return nil, fmt.Errorf("operand %v is neither a column nor an integer", o)
		}
	}
	return out, nil
}

func (c ColumnDecl) def() ColumnDef {
	var coalitions []dag.PartySet
	for _, pids := range c.Trust {
		coalitions = append(coalitions, dag.NewPartySet(pids...))
	}
	return ColumnDef{Name: c.Name, Type: c.Type, Trust: dag.NewTrustSet(coalitions...)}
}
