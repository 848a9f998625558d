// Package ordering computes dense item positions for a batch edit of a
// conversation thread.
//
// The final order is always recomputed from the surviving rows and their
// submitted positions; it is never patched incrementally. Feeding the
// output positions back into Assign yields the same result.
package ordering

import "sort"

// Row is one submitted item row.
type Row struct {
	// Index is the row's position in the submitted batch. It breaks ties
	// between rows with equal Position.
	Index int
	// Position is the submitted screen position. Zero means unset, which
	// places the row after every positioned row.
	Position int
	// Remove marks the row for deletion.
	Remove bool
}

// Placement is the final position assigned to a surviving row.
type Placement struct {
	Index int
	Order int
}

// Assign returns placements for every row not marked for removal,
// numbered 1..n in display order.
func Assign(rows []Row) []Placement {
	kept := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !r.Remove {
			kept = append(kept, r)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if (a.Position > 0) != (b.Position > 0) {
			return a.Position > 0
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Index < b.Index
	})

	out := make([]Placement, len(kept))
	for i, r := range kept {
		out[i] = Placement{Index: r.Index, Order: i + 1}
	}
	return out
}

// Next returns the position for an item appended after the current maximum.
func Next(last int) int {
	if last < 1 {
		return 1
	}
	return last + 1
}
