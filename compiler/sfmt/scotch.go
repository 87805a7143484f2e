// Package sfmt renders DAGs as text: the line-per-operator "scotch"
// debugging language and Graphviz DOT.
package sfmt

import (
	"fmt"
	"strings"

	"github.com/brimdata/conclave/compiler/dag"
)

// Scotch serializes d one operator per line in topological order.  The
// output depends only on relation names and payloads, so compiling the
// same protocol twice yields identical text.
func Scotch(d *dag.DAG) (string, error) {
	ids, err := d.TopSort()
	if err != nil {
		return "", err
	}
	var f formatter
	for _, id := range ids {
		s, err := Node(d, id)
		if err != nil {
			return "", err
		}
		f.write("%s", s)
		f.ret()
	}
	return f.String(), nil
}

type canon struct {
	formatter
	dag *dag.DAG
	n   *dag.Node
}

// Node formats the single operator id.
func Node(d *dag.DAG, id dag.ID) (string, error) {
	c := &canon{dag: d, n: d.Node(id)}
	if err := c.node(); err != nil {
		return "", err
	}
	return c.String(), nil
}

func (c *canon) mpc() string {
	if c.n.MPC {
		return "MPC"
	}
	return ""
}

func (c *canon) in(k int) string {
	if k >= len(c.n.Parents) {
		return "?"
	}
	return c.dag.Node(c.n.Parents[k]).Out.String()
}

func (c *canon) ins() string {
	var rels []string
	for k := range c.n.Parents {
		rels = append(rels, c.in(k))
	}
	return strings.Join(rels, ", ")
}

func (c *canon) out() string {
	return c.n.Out.String()
}

func names(refs []dag.ColRef) string {
	return strings.Join(dag.RefNames(refs), ", ")
}

func operands(ops []dag.Operand, sep string) string {
	var s []string
	for _, o := range ops {
		s = append(s, o.String())
	}
	return strings.Join(s, sep)
}

func role(server bool) string {
	if server {
		return "SERVER"
	}
	return "CLIENT"
}

func (c *canon) node() error {
	switch op := c.n.Op.(type) {
	case *dag.Create:
		var types []string
		for _, col := range c.n.Out.Columns {
			types = append(types, col.Type)
		}
		c.write("CREATE RELATION %s WITH COLUMNS (%s)", c.out(), strings.Join(types, ", "))
	case *dag.Store:
		c.write("STORE%s %s INTO %s", c.mpc(), c.in(0), c.out())
	case *dag.Persist:
		c.write("PERSIST%s %s INTO %s", c.mpc(), c.in(0), c.out())
	case *dag.Open:
		c.write("OPEN%s %s INTO %s", c.mpc(), c.in(0), c.out())
	case *dag.Close:
		c.write("CLOSE%s %s INTO %s", c.mpc(), c.in(0), c.out())
	case *dag.Project:
		c.write("PROJECT%s [%s] FROM (%s) AS %s", c.mpc(), names(op.Selected), c.in(0), c.out())
	case *dag.Distinct:
		c.write("DISTINCT%s [%s] FROM (%s) AS %s", c.mpc(), names(op.Selected), c.in(0), c.out())
	case *dag.Filter:
		other := fmt.Sprint(op.Scalar)
		if op.Other != nil {
			other = op.Other.Name
		}
		c.write("FILTER%s [%s %s %s] FROM (%s) AS %s", c.mpc(), op.Col.Name, op.Operator, other, c.in(0), c.out())
	case *dag.Multiply:
		c.write("MULTIPLY%s [%s -> %s] FROM (%s) AS %s", c.mpc(), op.Target.Name, operands(op.Operands, " * "), c.in(0), c.out())
	case *dag.Divide:
		c.write("DIVIDE%s [%s -> %s] FROM (%s) AS %s", c.mpc(), op.Target.Name, operands(op.Operands, " / "), c.in(0), c.out())
	case *dag.Aggregate:
		c.aggregate("AGG", op)
	case *dag.IndexAggregate:
		c.aggregate("IDXAGG", &op.Aggregate)
		c.write(" WITH FLAGS (%s) AND KEYS (%s)", c.in(1), c.in(2))
	case *dag.LeakyIndexAggregate:
		c.aggregate("LEAKYIDXAGG", &op.Aggregate)
		c.write(" WITH KEYS (%s) AND INDEXES (%s)", c.in(1), c.in(2))
	case *dag.HybridAggregate:
		c.aggregate("HYBRIDAGG", &op.Aggregate)
		c.write(" TRUSTED %d", op.TrustedParty)
	case *dag.Join:
		c.join("JOIN", op)
	case *dag.JoinFlags:
		c.join("JOINFLAGS", &op.Join)
	case *dag.FlagJoin:
		c.join("FLAGJOIN", &op.Join)
		c.write(" WITH FLAGS (%s)", c.in(2))
	case *dag.IndexJoin:
		c.join("IDXJOIN", &op.Join)
		c.write(" WITH INDEXES (%s)", c.in(2))
	case *dag.PublicJoin:
		c.join("PUBLICJOIN", &op.Join)
	case *dag.HybridJoin:
		c.join("HYBRIDJOIN", &op.Join)
		c.write(" TRUSTED %d", op.TrustedParty)
	case *dag.Concat:
		c.write("CONCAT%s [%s] AS %s", c.mpc(), c.ins(), c.out())
	case *dag.ConcatCols:
		var mult string
		if op.UseMult {
			mult = " MULT"
		}
		c.write("CONCATCOLS%s%s [%s] AS %s", c.mpc(), mult, c.ins(), c.out())
	case *dag.Blackbox:
		c.write("BLACKBOX%s %s [%s] AS %s", c.mpc(), op.Backend, c.ins(), c.out())
	case *dag.DistinctCount:
		c.write("DISTINCTCOUNT%s %s FROM (%s) AS %s", c.mpc(), op.Col.Name, c.in(0), c.out())
		if op.UseSort {
			c.write(" USING SORT")
		}
	case *dag.SortBy:
		c.write("SORTBY%s %s FROM (%s) AS %s", c.mpc(), op.Col.Name, c.in(0), c.out())
	case *dag.Shuffle:
		c.write("SHUFFLE%s (%s) AS %s", c.mpc(), c.in(0), c.out())
	case *dag.Index:
		c.write("INDEX%s (%s) AS %s", c.mpc(), c.in(0), c.out())
	case *dag.NumRows:
		c.write("NUMROWS%s (%s) AS %s", c.mpc(), c.in(0), c.out())
	case *dag.CompNeighs:
		c.write("COMPNEIGHS%s %s FROM (%s) AS %s", c.mpc(), op.Col.Name, c.in(0), c.out())
	case *dag.Union:
		c.write("(%s) UNION%s (%s) ON %s AND %s AS %s", c.in(0), c.mpc(), c.in(1), op.Left.Name, op.Right.Name, c.out())
	case *dag.PubIntersect:
		c.write("PUBINTERSECT%s %s FROM (%s) AT %s:%d %s AS %s", c.mpc(), op.Col.Name, c.in(0), op.Host, op.Port, role(op.Server), c.out())
	case *dag.PubJoin:
		c.write("PUBJOIN%s %s FROM (%s)", c.mpc(), op.Key.Name, c.in(0))
		if len(c.n.Parents) > 1 {
			c.write(" WITH (%s)", c.in(1))
		}
		c.write(" AT %s:%d %s AS %s", op.Host, op.Port, role(op.Server), c.out())
	case *dag.FilterBy:
		var not string
		if op.NotIn {
			not = "NOT "
		}
		c.write("FILTERBY%s [%s %sIN (%s)] FROM (%s) AS %s", c.mpc(), op.Col.Name, not, c.in(1), c.in(0), c.out())
	case *dag.IndexesToFlags:
		c.write("INDEXESTOFLAGS%s (%s) WITH (%s) STAGE %d AS %s", c.mpc(), c.in(0), c.in(1), op.Stage, c.out())
	case *dag.Limit:
		c.write("LIMIT%s %d FROM (%s) AS %s", c.mpc(), op.Num, c.in(0), c.out())
	default:
		return fmt.Errorf("internal error: unknown operator %T", op)
	}
	return nil
}

func (c *canon) aggregate(name string, op *dag.Aggregate) {
	over := "*"
	if op.Agg != nil {
		over = op.Agg.Name
	}
	c.write("%s%s [%s, %s] FROM (%s) GROUP BY [%s] AS %s", name, c.mpc(), over, op.Aggregator, c.in(0), names(op.Group), c.out())
}

func (c *canon) join(name string, op *dag.Join) {
	c.write("(%s) %s%s (%s) ON [%s] AND [%s] AS %s", c.in(0), name, c.mpc(), c.in(1), names(op.Left), names(op.Right), c.out())
}
