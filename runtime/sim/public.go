package sim

import (
	"github.com/brimdata/conclave/compiler/dag"
	"github.com/brimdata/conclave/pubjoin"
)

// public evaluates n together with its peer using the same matching as
// the network protocol.  The peer's result is recorded as well.
func (e *evaluator) public(n *dag.Node) ([][]int64, error) {
	peer, ok := e.peers[n.ID]
	if !ok {
		return nil, ErrNoPeer
	}
	server, client := n, e.d.Node(peer)
	if !isServer(n) {
		server, client = client, server
	}
	sins, err := e.parentRows(server)
	if err != nil {
		return nil, err
	}
	cins, err := e.parentRows(client)
	if err != nil {
		return nil, err
	}
	var sout, cout [][]int64
	switch op := server.Op.(type) {
	case *dag.PubIntersect:
		keys := pubjoin.Intersect(column(sins[0], op.Col.Idx), column(cins[0], client.Op.(*dag.PubIntersect).Col.Idx))
		sout, cout = rows(keys), rows(keys)
	case *dag.PubJoin:
		if len(sins) == 2 {
			sout, cout, err = e.partJoin(server, sins, cins)
		} else {
			sout, cout, err = simpleJoin(sins[0], cins[0], op.Key.Idx, client.Op.(*dag.PubJoin).Key.Idx)
		}
		if err != nil {
			return nil, err
		}
	}
	e.results[server.ID], e.results[client.ID] = sout, cout
	if n == server {
		return sout, nil
	}
	return cout, nil
}

func isServer(n *dag.Node) bool {
	switch op := n.Op.(type) {
	case *dag.PubJoin:
		return op.Server
	case *dag.PubIntersect:
		return op.Server
	}
	return false
}

func (e *evaluator) parentRows(n *dag.Node) ([][][]int64, error) {
	ins := make([][][]int64, 0, len(n.Parents))
	for _, p := range n.Parents {
		rel, err := e.eval(p)
		if err != nil {
			return nil, err
		}
		ins = append(ins, rel)
	}
	return ins, nil
}

func simpleJoin(server, client [][]int64, skey, ckey int) ([][]int64, [][]int64, error) {
	var sout, cout [][]int64
	for _, m := range pubjoin.Matches(column(server, skey), column(client, ckey)) {
		s, err := at(server, int64(m.Server))
		if err != nil {
			return nil, nil, err
		}
		c, err := at(client, int64(m.Client))
		if err != nil {
			return nil, nil, err
		}
		sout, cout = append(sout, s), append(cout, c)
	}
	return sout, cout, nil
}

func (e *evaluator) partJoin(server *dag.Node, sins, cins [][][]int64) ([][]int64, [][]int64, error) {
	if len(cins) != 2 {
		return nil, nil, ErrNoPeer
	}
	lw := len(e.d.Node(server.Parents[0]).Out.Columns)
	rw := len(e.d.Node(server.Parents[1]).Out.Columns)
	matches := pubjoin.PartMatches(column(sins[0], 0), column(sins[1], 0), column(cins[0], 0), column(cins[1], 0))
	sout, err := pubjoin.Reconstruct(sins[0], sins[1], 0, 0, lw, rw, matches, pubjoin.ServerOwner)
	if err != nil {
		return nil, nil, err
	}
	cout, err := pubjoin.Reconstruct(cins[0], cins[1], 0, 0, lw, rw, matches, pubjoin.ClientOwner)
	if err != nil {
		return nil, nil, err
	}
	return sout, cout, nil
}
