package optimizer

import (
	"github.com/brimdata/conclave/compiler/dag"
	"go.uber.org/zap"
)

// eliminateSorts tracks the column on which the output of each node is
// known to be sorted and drops the sort from MPC distinct counts whose
// input is already in order.
func (o *Optimizer) eliminateSorts() error {
	ids, err := o.order()
	if err != nil {
		return err
	}
	sortedOn := make(map[dag.ID]string)
	for _, id := range ids {
		n := o.node(id)
		var in string
		if len(n.Parents) != 0 {
			in = sortedOn[n.Parents[0]]
		}
		switch op := n.Op.(type) {
		case *dag.PubJoin:
			sortedOn[id] = n.Out.Columns[0].Name
		case *dag.SortBy:
			sortedOn[id] = op.Col.Name
		case *dag.Filter, *dag.ConcatCols, *dag.Persist, *dag.Store, *dag.Open, *dag.Close, *dag.Limit:
			sortedOn[id] = in
		case *dag.DistinctCount:
			if n.MPC && op.UseSort && in != "" && in == op.Col.Name {
				op.UseSort = false
				o.rewrote("drop_sort", id, zap.String("column", in))
			}
		}
	}
	return nil
}
