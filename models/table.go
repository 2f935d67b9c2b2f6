package models

import "sort"

// Table is an ordered snapshot of records, unique by URL.
type Table struct {
	Mode Mode
	Rows []Record
}

// NewTable builds a table from rows, keeping the first row seen for each URL.
func NewTable(mode Mode, rows []Record) *Table {
	seen := make(map[DetailLink]struct{}, len(rows))
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
	}
	return &Table{Mode: mode, Rows: out}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// URLSet returns the set of URLs present in the table.
func (t *Table) URLSet() map[DetailLink]struct{} {
	set := make(map[DetailLink]struct{}, t.Len())
	if t == nil {
		return set
	}
	for _, r := range t.Rows {
		set[r.URL] = struct{}{}
	}
	return set
}

// SortByAvailability orders rows by AvailableFrom, newest first, with the
// sentinel last. Equal dates keep their relative order.
func (t *Table) SortByAvailability() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].AvailableFrom.After(t.Rows[j].AvailableFrom)
	})
}
