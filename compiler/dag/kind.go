package dag

import "fmt"

// Kind enumerates the operator variants.  Every switch over Kind (or over
// the corresponding Op types) must handle all of them.
type Kind int

const (
	KindCreate Kind = iota
	KindStore
	KindPersist
	KindOpen
	KindClose
	KindProject
	KindFilter
	KindMultiply
	KindDivide
	KindAggregate
	KindIndexAggregate
	KindLeakyIndexAggregate
	KindHybridAggregate
	KindJoin
	KindJoinFlags
	KindIndexJoin
	KindFlagJoin
	KindPublicJoin
	KindHybridJoin
	KindConcat
	KindConcatCols
	KindBlackbox
	KindDistinct
	KindDistinctCount
	KindSortBy
	KindShuffle
	KindIndex
	KindNumRows
	KindCompNeighs
	KindUnion
	KindPubIntersect
	KindPubJoin
	KindFilterBy
	KindIndexesToFlags
	KindLimit
	numKinds
)

var kindNames = [numKinds]string{
	KindCreate:              "create",
	KindStore:               "store",
	KindPersist:             "persist",
	KindOpen:                "open",
	KindClose:               "close",
	KindProject:             "project",
	KindFilter:              "filter",
	KindMultiply:            "multiply",
	KindDivide:              "divide",
	KindAggregate:           "aggregate",
	KindIndexAggregate:      "index_aggregate",
	KindLeakyIndexAggregate: "leaky_index_aggregate",
	KindHybridAggregate:     "hybrid_aggregate",
	KindJoin:                "join",
	KindJoinFlags:           "join_flags",
	KindIndexJoin:           "index_join",
	KindFlagJoin:            "flag_join",
	KindPublicJoin:          "public_join",
	KindHybridJoin:          "hybrid_join",
	KindConcat:              "concat",
	KindConcatCols:          "concat_cols",
	KindBlackbox:            "blackbox",
	KindDistinct:            "distinct",
	KindDistinctCount:       "distinct_count",
	KindSortBy:              "sort_by",
	KindShuffle:             "shuffle",
	KindIndex:               "index",
	KindNumRows:             "num_rows",
	KindCompNeighs:          "comp_neighs",
	KindUnion:               "union",
	KindPubIntersect:        "pub_intersect",
	KindPubJoin:             "pub_join",
	KindFilterBy:            "filter_by",
	KindIndexesToFlags:      "indexes_to_flags",
	KindLimit:               "limit",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every operator kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

type Arity int

const (
	Nullary Arity = iota
	Unary
	Binary
	Nary
)

// Arity returns the number of primary inputs of k.  Some unary and
// binary kinds take auxiliary parents after their primary inputs:
// IndexAggregate and LeakyIndexAggregate take two, IndexJoin and
// FlagJoin take one, and PubJoin optionally takes the other side.
func (k Kind) Arity() Arity {
	switch k {
	case KindCreate:
		return Nullary
	case KindJoin, KindJoinFlags, KindIndexJoin, KindFlagJoin, KindPublicJoin,
		KindHybridJoin, KindUnion, KindFilterBy, KindIndexesToFlags:
		return Binary
	case KindConcat, KindConcatCols, KindBlackbox:
		return Nary
	default:
		return Unary
	}
}

// local reports whether nodes of kind k never need cross-party data.
func (k Kind) local() bool {
	switch k {
	case KindCreate, KindProject, KindMultiply, KindDivide, KindPubJoin, KindPubIntersect:
		return true
	}
	return false
}

// FixedMPC reports whether nodes of kind k always execute under MPC
// regardless of the ownership of their inputs.
func (k Kind) FixedMPC() bool {
	switch k {
	case KindOpen, KindClose, KindIndexJoin, KindFlagJoin, KindJoinFlags,
		KindIndexAggregate, KindLeakyIndexAggregate:
		return true
	}
	return false
}

// IsHybrid reports whether k is a placeholder that composite expansion
// must rewrite into primitive operators.
func (k Kind) IsHybrid() bool {
	return k == KindHybridJoin || k == KindPublicJoin || k == KindHybridAggregate
}
