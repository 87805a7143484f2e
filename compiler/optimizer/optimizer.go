// Package optimizer rewrites a protocol's DAG so that as much work as
// possible runs locally at the data owners and only the rest runs under
// MPC.  The rewrite is a fixed sequence of passes, each a single
// traversal of the graph in topological order.
package optimizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/config"
	"go.uber.org/zap"
)

// ErrUnexpandedHybrid is returned when a pass that runs before composite
// expansion meets a hybrid operator.
var ErrUnexpandedHybrid = errors.New("hybrid operator before composite expansion")

type Optimizer struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *Metrics
	allPIDs dag.PartySet

	dag      *dag.DAG
	builder  *frontend.Builder
	pass     string
	nrewrite int

	nhybridJoin int
	nhybridAgg  int
	npublicJoin int
}

// New returns an Optimizer for the parties of cfg.  A nil logger discards
// log output and nil metrics are not recorded.
func New(cfg *config.Config, logger *zap.Logger, metrics *Metrics) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		cfg:     cfg,
		logger:  logger.Named("optimizer"),
		metrics: metrics,
		allPIDs: dag.NewPartySet(cfg.AllPIDs...),
	}
}

type pass struct {
	name string
	run  func() error
}

// Rewrite runs every pass over d, mutating it in place.  The schema of
// every node is validated after each pass.
func (o *Optimizer) Rewrite(d *dag.DAG) error {
	o.dag = d
	o.builder = frontend.NewBuilder(d)
	o.nhybridJoin, o.nhybridAgg, o.npublicJoin = 0, 0, 0
	passes := []pass{
		{"push_down", o.pushDown},
		{"update_columns", o.updateColumns},
		{"push_up", o.pushUp},
		{"trust", o.propagateTrust},
		{"hybrid", o.selectHybrid},
		{"open_close", o.insertOpenClose},
		{"expand", o.expand},
		{"simplify_stored_with", o.simplifyStoredWith},
		{"eliminate_sorts", o.eliminateSorts},
	}
	for _, p := range passes {
		o.pass = p.name
		o.nrewrite = 0
		start := time.Now()
		if err := p.run(); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		o.metrics.observe(p.name, o.nrewrite, time.Since(start))
		o.logger.Debug("pass done", zap.String("pass", p.name), zap.Int("rewrites", o.nrewrite))
	}
	return nil
}

// order returns the nodes of the DAG in topological order.  A rewrite
// may detach nodes that the traversal has yet to visit; see attached.
func (o *Optimizer) order() ([]dag.ID, error) {
	return o.dag.TopSort()
}

func (o *Optimizer) reverseOrder() ([]dag.ID, error) {
	ids, err := o.dag.TopSort()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

func (o *Optimizer) attached(id dag.ID) bool {
	n := o.dag.Node(id)
	return len(n.Parents) != 0 || o.dag.HasRoot(id)
}

func (o *Optimizer) node(id dag.ID) *dag.Node {
	return o.dag.Node(id)
}

func (o *Optimizer) rewrote(action string, id dag.ID, fields ...zap.Field) {
	o.nrewrite++
	fields = append([]zap.Field{
		zap.String("pass", o.pass),
		zap.String("action", action),
		zap.String("relation", o.node(id).Name()),
	}, fields...)
	o.logger.Debug("rewrite", fields...)
}

func opError(n *dag.Node, err error) error {
	return fmt.Errorf("%s %q: %w", n.Kind(), n.Name(), err)
}

// mark sets the MPC flag of every node in ids.
func (o *Optimizer) mark(ids ...dag.ID) {
	for _, id := range ids {
		o.node(id).MPC = true
	}
}

// replace moves every child of old below repl, copies the trust sets of
// old's output columns to repl, and leaves old detached.
func (o *Optimizer) replace(old, repl dag.ID) error {
	n := o.node(old)
	r := o.node(repl)
	if len(r.Out.Columns) == len(n.Out.Columns) {
		for k := range r.Out.Columns {
			r.Out.Columns[k].Trust = n.Out.Columns[k].Trust
		}
	}
	for _, c := range o.dag.SortedChildren(old) {
		o.dag.Reparent(c, old, repl)
		if err := o.dag.UpdateOpSpecificCols(c); err != nil {
			return err
		}
	}
	for _, p := range o.dag.SortedParents(old) {
		o.dag.Unlink(p, old)
	}
	return nil
}

func (o *Optimizer) updateColumns() error {
	ids, err := o.order()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := o.dag.UpdateOpSpecificCols(id); err != nil {
			return err
		}
	}
	return nil
}

// simplifyStoredWith widens the ownership of every shared relation to all
// parties so that every MPC job runs among the same coalition.
func (o *Optimizer) simplifyStoredWith() error {
	for _, id := range o.dag.Nodes() {
		n := o.node(id)
		if n.Out.IsShared() && !n.Out.StoredWith.Equal(o.allPIDs) {
			n.Out.StoredWith = o.allPIDs
			o.rewrote("widen", id)
		}
	}
	return nil
}
