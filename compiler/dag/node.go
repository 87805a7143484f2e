package dag

// ID is a handle to a node in a DAG's arena.
type ID int

// None stands for a missing node, e.g., the absent child of a leaf.
const None ID = -1

type Node struct {
	ID  ID
	Op  Op
	Out *Relation
	// Parents is ordered: primary inputs come first (left before right
	// for binary kinds) followed by any auxiliary inputs.
	Parents []ID
	// Children is a set; use DAG.SortedChildren for a deterministic order.
	Children []ID
	// MPC is set when the node executes under MPC.
	MPC bool
	// Local is set when the node never requires cross-party data.
	Local bool
	// Skip is set when this node does not take part in code generation.
	Skip bool
}

func (n *Node) Kind() Kind {
	return n.Op.Kind()
}

func (n *Node) Name() string {
	return n.Out.Name
}

func (n *Node) IsRoot() bool {
	return len(n.Parents) == 0
}

func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

func (n *Node) hasChild(id ID) bool {
	for _, c := range n.Children {
		if c == id {
			return true
		}
	}
	return false
}

func (n *Node) hasParent(id ID) bool {
	for _, p := range n.Parents {
		if p == id {
			return true
		}
	}
	return false
}
