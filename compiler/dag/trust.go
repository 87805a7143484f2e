package dag

import (
	"slices"
	"strings"
)

// A TrustSet is the set of coalitions permitted to learn a column in
// the clear.  The empty trust set admits no one while the public trust
// set {∅} admits everyone.  TrustSet values are immutable and compare
// by value.
type TrustSet struct {
	coalitions []PartySet
}

func NewTrustSet(coalitions ...PartySet) TrustSet {
	if len(coalitions) == 0 {
		return TrustSet{}
	}
	cs := make([]PartySet, 0, len(coalitions))
	for _, c := range coalitions {
		cs = append(cs, NewPartySet(c...))
	}
	slices.SortFunc(cs, func(a, b PartySet) int {
		return slices.Compare(a, b)
	})
	cs = slices.CompactFunc(cs, func(a, b PartySet) bool {
		return a.Equal(b)
	})
	return TrustSet{coalitions: cs}
}

// Public returns the trust set {∅}, the identity of Merge.
func Public() TrustSet {
	return NewTrustSet(PartySet{})
}

// Merge combines two trust sets with the union-of-crossproducts rule:
// a coalition may learn the result only if it is the union of a
// coalition from each operand.
func (t TrustSet) Merge(o TrustSet) TrustSet {
	var cs []PartySet
	for _, a := range t.coalitions {
		for _, b := range o.coalitions {
			cs = append(cs, a.Union(b))
		}
	}
	return NewTrustSet(cs...)
}

// MergeAll reduces Merge over sets.  It returns Public for no sets.
func MergeAll(sets ...TrustSet) TrustSet {
	out := Public()
	for _, s := range sets {
		out = out.Merge(s)
	}
	return out
}

// TrustFromColumns merges the trust sets of cols.
func TrustFromColumns(cols ...Column) TrustSet {
	sets := make([]TrustSet, 0, len(cols))
	for _, c := range cols {
		sets = append(sets, c.Trust)
	}
	return MergeAll(sets...)
}

func (t TrustSet) IsEmpty() bool {
	return len(t.coalitions) == 0
}

func (t TrustSet) Coalitions() []PartySet {
	return slices.Clone(t.coalitions)
}

func (t TrustSet) Equal(o TrustSet) bool {
	return slices.EqualFunc(t.coalitions, o.coalitions, func(a, b PartySet) bool {
		return a.Equal(b)
	})
}

// Parties returns the union of all coalitions.
func (t TrustSet) Parties() PartySet {
	return UnionAll(t.coalitions...)
}

// Singleton returns the party p if p is the only party that t admits on
// its own.  Larger coalitions that contain p do not widen the set.
func (t TrustSet) Singleton() (int, bool) {
	var admitted PartySet
	for _, c := range t.coalitions {
		switch len(c) {
		case 0:
			return 0, false
		case 1:
			admitted = admitted.Union(c)
		}
	}
	if len(admitted) != 1 {
		return 0, false
	}
	return admitted[0], true
}

// Admits reports whether party pid may learn the column on its own.
func (t TrustSet) Admits(pid int) bool {
	for _, c := range t.coalitions {
		if len(c) == 0 || (len(c) == 1 && c[0] == pid) {
			return true
		}
	}
	return false
}

// TrustsAll reports whether every party in pids is admitted individually.
func (t TrustSet) TrustsAll(pids PartySet) bool {
	for _, pid := range pids {
		if !t.Admits(pid) {
			return false
		}
	}
	return true
}

// String formats t as space-separated coalitions like "{1,2} {3}".
func (t TrustSet) String() string {
	elems := make([]string, 0, len(t.coalitions))
	for _, c := range t.coalitions {
		elems = append(elems, "{"+c.join(",")+"}")
	}
	return strings.Join(elems, " ")
}
