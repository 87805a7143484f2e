// Package python generates a self-contained Python program for a local
// partition.  Inputs and outputs are CSV files with a header row.
package python

import (
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"text/template"

	"github.com/brimdata/conclave/codegen"
	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/config"
)

const (
	Framework   = "python"
	File        = "workflow.py"
	RuntimeFile = "conclave_runtime.py"
)

//go:embed templates
var templates embed.FS

var funcs = template.FuncMap{
	"v": func(name string) string {
		return "rel_" + name
	},
	"py": func(b bool) string {
		if b {
			return "True"
		}
		return "False"
	},
	"quote": strconv.Quote,
	"list": func(vals []int) string {
		s := make([]string, 0, len(vals))
		for _, v := range vals {
			s = append(s, strconv.Itoa(v))
		}
		return "[" + strings.Join(s, ", ") + "]"
	},
	"strings": func(vals []string) string {
		s := make([]string, 0, len(vals))
		for _, v := range vals {
			s = append(s, strconv.Quote(v))
		}
		return "[" + strings.Join(s, ", ") + "]"
	},
	"indent": func(s string) string {
		lines := strings.Split(s, "\n")
		for k, l := range lines {
			if l != "" {
				lines[k] = "    " + l
			}
		}
		return strings.Join(lines, "\n")
	},
}

type Backend struct {
	cfg       *config.Config
	catalogue *codegen.Catalogue
}

func New(cfg *config.Config) (*Backend, error) {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		return nil, err
	}
	c, err := codegen.NewCatalogue(sub, funcs, codegen.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Backend{cfg: cfg, catalogue: c}, nil
}

func (*Backend) Name() string {
	return Framework
}

type op struct {
	Out        string
	File       string
	In         []string
	In0        string
	In1        string
	Cols       []int
	Col        int
	Operator   string
	Other      string
	Target     int
	NewTarget  bool
	Expr       string
	Aggregator string
	LeftCols   []int
	RightCols  []int
	LeftWidth  int
	RightWidth int
	Host       string
	Port       int
	Server     bool
	NotIn      bool
	Num        int
	Code       string
	Header     []string
}

func idxs(refs []dag.ColRef) []int {
	out := make([]int, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Idx)
	}
	return out
}

func expr(operands []dag.Operand, sep string) string {
	terms := make([]string, 0, len(operands))
	for _, o := range operands {
		if o.Col != nil {
			terms = append(terms, fmt.Sprintf("row[%d]", o.Col.Idx))
		} else {
			terms = append(terms, strconv.FormatInt(o.Const, 10))
		}
	}
	return strings.Join(terms, sep)
}

func (b *Backend) Node(d *dag.DAG, id dag.ID) (string, error) {
	n := d.Node(id)
	if n.MPC {
		return "", codegen.Unsupported(b, n)
	}
	data := op{Out: n.Name(), File: n.Name() + ".csv", Header: n.Out.ColumnNames()}
	for _, p := range n.Parents {
		data.In = append(data.In, d.Node(p).Name())
	}
	if len(data.In) > 0 {
		data.In0 = data.In[0]
	}
	if len(data.In) > 1 {
		data.In1 = data.In[1]
	}
	switch o := n.Op.(type) {
	case *dag.Create, *dag.Store, *dag.Persist, *dag.Concat, *dag.Index, *dag.NumRows:
	case *dag.Limit:
		data.Num = o.Num
	case *dag.Project:
		data.Cols = idxs(o.Selected)
	case *dag.Distinct:
		data.Cols = idxs(o.Selected)
	case *dag.DistinctCount:
		data.Col = o.Col.Idx
	case *dag.Filter:
		data.Col = o.Col.Idx
		data.Operator = o.Operator
		data.Other = strconv.FormatInt(o.Scalar, 10)
		if o.Other != nil {
			data.Other = fmt.Sprintf("row[%d]", o.Other.Idx)
		}
	case *dag.Multiply:
		data.Target, data.NewTarget, data.Expr = o.Target.Idx, o.NewTarget, expr(o.Operands, " * ")
	case *dag.Divide:
		data.Target, data.NewTarget, data.Expr = o.Target.Idx, o.NewTarget, expr(o.Operands, " // ")
	case *dag.Aggregate:
		data.Cols = idxs(o.Group)
		data.Col = -1
		if o.Agg != nil {
			data.Col = o.Agg.Idx
		}
		data.Aggregator = string(o.Aggregator)
	case *dag.Join:
		data.LeftCols, data.RightCols = idxs(o.Left), idxs(o.Right)
	case *dag.SortBy:
		data.Col = o.Col.Idx
	case *dag.CompNeighs:
		data.Col = o.Col.Idx
	case *dag.Union:
		data.LeftCols, data.RightCols = []int{o.Left.Idx}, []int{o.Right.Idx}
	case *dag.FilterBy:
		data.Col, data.NotIn = o.Col.Idx, o.NotIn
	case *dag.PubIntersect:
		data.Col, data.Host, data.Port, data.Server = o.Col.Idx, o.Host, o.Port, o.Server
	case *dag.PubJoin:
		data.Col, data.Host, data.Port, data.Server = o.Key.Idx, o.Host, o.Port, o.Server
		if len(n.Parents) > 1 {
			data.LeftWidth = len(d.Node(n.Parents[0]).Out.Columns)
			data.RightWidth = len(d.Node(n.Parents[1]).Out.Columns)
		}
	case *dag.Blackbox:
		if o.Backend != Framework {
			return "", codegen.Unsupported(b, n)
		}
		data.Code = o.Code
	default:
		return "", codegen.Unsupported(b, n)
	}
	line, err := b.catalogue.Render("ops.tmpl", n.Kind().String(), data)
	if err != nil {
		return "", fmt.Errorf("%s %q: %w", n.Kind(), n.Name(), err)
	}
	if n.IsLeaf() {
		out, err := b.catalogue.Render("ops.tmpl", "output", data)
		if err != nil {
			return "", err
		}
		line += "\n" + out
	}
	return line, nil
}

type job struct {
	Name       string
	InputPath  string
	OutputPath string
	Delimiter  string
	Ops        []string
}

func (b *Backend) Job(name string, ops []string) (*codegen.Code, error) {
	body, err := b.catalogue.Render("workflow.py.tmpl", "", job{
		Name:       name,
		InputPath:  b.cfg.InputPath,
		OutputPath: b.cfg.OutputPath,
		Delimiter:  b.cfg.Delimiter,
		Ops:        ops,
	})
	if err != nil {
		return nil, err
	}
	runtime, err := b.catalogue.Raw(RuntimeFile)
	if err != nil {
		return nil, err
	}
	return &codegen.Code{Files: []codegen.File{
		{Name: File, Body: body},
		{Name: RuntimeFile, Body: runtime},
	}}, nil
}
