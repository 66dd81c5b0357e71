// model.go defines the catalog's data model (spec.md §3): columns,
// foreign keys, rows and the equality-multimap index.
package catalog

import "rustql/internal/types"

// FKAction is the action a foreign key takes when the referenced row
// is deleted or its referenced column is updated.
type FKAction int

const (
	NoAction FKAction = iota
	Cascade
	Restrict
	SetNull
)

func (a FKAction) String() string {
	switch a {
	case Cascade:
		return "CASCADE"
	case Restrict:
		return "RESTRICT"
	case SetNull:
		return "SET NULL"
	default:
		return "NO ACTION"
	}
}

// ForeignKey is attached to a Column and points at exactly one parent
// table/column.
type ForeignKey struct {
	ParentTable  string
	ParentColumn string
	OnDelete     FKAction
	OnUpdate     FKAction
}

// Column is one entry of a Table's schema.
type Column struct {
	Name       string
	Type       types.Kind
	ForeignKey *ForeignKey
}

// RowID is a stable, monotonically assigned row identifier (spec.md
// §9 design notes: positions must survive deletes mid-statement, so
// RustQL uses an identifier rather than a slice index).
type RowID uint64

// Row is a fixed-arity tuple of values, keyed by its RowID.
type Row struct {
	ID     RowID
	Values []types.Value
}

func (r *Row) clone() *Row {
	values := make([]types.Value, len(r.Values))
	copy(values, r.Values)
	return &Row{ID: r.ID, Values: values}
}

// Index is an equality multimap over one column's values, mapping
// each distinct Value to the set of RowIDs that hold it (spec.md
// §3, §9). Range/IN/BETWEEN access iterates Lookup candidates via
// Scan, filtered by the caller's predicate.
type Index struct {
	Name    string
	Table   string
	Column  string
	entries map[types.Value]map[RowID]struct{}
}

func newIndex(name, table, column string) *Index {
	return &Index{Name: name, Table: table, Column: column, entries: map[types.Value]map[RowID]struct{}{}}
}

func (ix *Index) insert(v types.Value, id RowID) {
	set, ok := ix.entries[v]
	if !ok {
		set = map[RowID]struct{}{}
		ix.entries[v] = set
	}
	set[id] = struct{}{}
}

func (ix *Index) remove(v types.Value, id RowID) {
	set, ok := ix.entries[v]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(ix.entries, v)
	}
}

// Lookup returns the RowIDs recorded for an exact value (equality
// access path).
func (ix *Index) Lookup(v types.Value) []RowID {
	set, ok := ix.entries[v]
	if !ok {
		return nil
	}
	out := make([]RowID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Scan calls fn for every distinct (value, RowIDs) pair the index
// holds, the access path range/IN/BETWEEN pushdown uses to filter
// candidates without a full table scan's per-row predicate cost.
func (ix *Index) Scan(fn func(v types.Value, ids []RowID)) {
	for v, set := range ix.entries {
		ids := make([]RowID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		fn(v, ids)
	}
}

// DistinctCount is the planner statistic spec.md §4.4 uses for
// selectivity estimation.
func (ix *Index) DistinctCount() int64 { return int64(len(ix.entries)) }

func (ix *Index) clone() *Index {
	c := newIndex(ix.Name, ix.Table, ix.Column)
	for v, set := range ix.entries {
		newSet := make(map[RowID]struct{}, len(set))
		for id := range set {
			newSet[id] = struct{}{}
		}
		c.entries[v] = newSet
	}
	return c
}
