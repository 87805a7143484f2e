package dag

import (
	"slices"
	"strconv"
	"strings"
)

// A PartySet is a sorted set of party identifiers.  It is used both for
// relation ownership (stored_with) and for the coalitions that make up
// a trust set.  PartySets are treated as immutable values.
type PartySet []int

func NewPartySet(pids ...int) PartySet {
	if len(pids) == 0 {
		return nil
	}
	s := slices.Clone(pids)
	slices.Sort(s)
	return slices.Compact(s)
}

func (s PartySet) Len() int {
	return len(s)
}

func (s PartySet) Contains(pid int) bool {
	_, ok := slices.BinarySearch(s, pid)
	return ok
}

func (s PartySet) Equal(o PartySet) bool {
	return slices.Equal(s, o)
}

func (s PartySet) SubsetOf(o PartySet) bool {
	for _, pid := range s {
		if !o.Contains(pid) {
			return false
		}
	}
	return true
}

func (s PartySet) Union(o PartySet) PartySet {
	out := make([]int, 0, len(s)+len(o))
	out = append(out, s...)
	out = append(out, o...)
	return NewPartySet(out...)
}

// UnionAll returns the union of sets.
func UnionAll(sets ...PartySet) PartySet {
	var out PartySet
	for _, s := range sets {
		out = out.Union(s)
	}
	return out
}

// Min returns the smallest party in s or false if s is empty.
func (s PartySet) Min() (int, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[0], true
}

// String formats s like "{1, 2}".
func (s PartySet) String() string {
	return "{" + s.join(", ") + "}"
}

func (s PartySet) join(sep string) string {
	elems := make([]string, 0, len(s))
	for _, pid := range s {
		elems = append(elems, strconv.Itoa(pid))
	}
	return strings.Join(elems, sep)
}
