package sfmt

import "github.com/brimdata/conclave/compiler/dag"

// DOT renders d as a Graphviz digraph.  MPC operators are filled.
func DOT(d *dag.DAG) (string, error) {
	ids, err := d.TopSort()
	if err != nil {
		return "", err
	}
	f := formatter{tab: 2}
	f.write("digraph conclave {")
	f.open()
	f.ret()
	for _, id := range ids {
		n := d.Node(id)
		style := ""
		if n.MPC {
			style = ` style=filled fillcolor="#d0e0ff"`
		}
		f.write("%q [label=\"%s\\n%s\" shape=box%s]", n.Name(), n.Kind(), n.Out, style)
		f.ret()
	}
	for _, id := range ids {
		for _, c := range d.SortedChildren(id) {
			f.write("%q -> %q", d.Node(id).Name(), d.Node(c).Name())
			f.ret()
		}
	}
	f.close()
	f.write("}")
	f.ret()
	return f.String(), nil
}
