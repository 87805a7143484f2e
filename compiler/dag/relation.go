package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

const TypeInteger = "INTEGER"

type Column struct {
	RelName string
	Name    string
	Idx     int
	Type    string
	Trust   TrustSet
}

// String formats c with its trust set, e.g., "a {1} {2,3}".
func (c Column) String() string {
	if c.Trust.IsEmpty() {
		return c.Name
	}
	return c.Name + " " + c.Trust.String()
}

type Relation struct {
	Name       string
	Columns    []Column
	StoredWith PartySet
}

// NewRelation returns a relation whose columns are renumbered and
// relabeled to belong to it.
func NewRelation(name string, cols []Column, storedWith PartySet) *Relation {
	r := &Relation{
		Name:       name,
		Columns:    slices.Clone(cols),
		StoredWith: storedWith,
	}
	r.UpdateColumns()
	return r
}

// UpdateColumns renumbers the columns of r and sets their relation name.
func (r *Relation) UpdateColumns() {
	for k := range r.Columns {
		r.Columns[k].Idx = k
		r.Columns[k].RelName = r.Name
	}
}

func (r *Relation) Rename(name string) {
	r.Name = name
	r.UpdateColumns()
}

func (r *Relation) IsShared() bool {
	return len(r.StoredWith) > 1
}

func (r *Relation) Copy() *Relation {
	return &Relation{
		Name:       r.Name,
		Columns:    slices.Clone(r.Columns),
		StoredWith: slices.Clone(r.StoredWith),
	}
}

func (r *Relation) ColumnNames() []string {
	names := make([]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		names = append(names, c.Name)
	}
	return names
}

// ClearTrust resets the trust set of every column.
func (r *Relation) ClearTrust() {
	for k := range r.Columns {
		r.Columns[k].Trust = TrustSet{}
	}
}

// Column looks up the column called name.
func (r *Relation) Column(name string) (Column, error) {
	c, err := Find(r.Columns, name)
	if err != nil {
		return Column{}, fmt.Errorf("%w in relation %q%s", err, r.Name, suggest(r.Columns, name))
	}
	return c, nil
}

// String formats r like "rel([a {1}, b]) {1, 2}".
func (r *Relation) String() string {
	cols := make([]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		cols = append(cols, c.String())
	}
	return fmt.Sprintf("%s([%s]) %s", r.Name, strings.Join(cols, ", "), r.StoredWith)
}

// Find returns the column of cols called name.
func Find(cols []Column, name string) (Column, error) {
	for _, c := range cols {
		if c.Name == name {
			return c, nil
		}
	}
	return Column{}, fmt.Errorf("column %q not found", name)
}

func suggest(cols []Column, name string) string {
	best, bestDist := "", -1
	for _, c := range cols {
		d := levenshtein.ComputeDistance(name, c.Name)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c.Name, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(name)/2) {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}
