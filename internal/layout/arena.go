// Package layout assigns stable spatial slots to tasks.
package layout

import (
	"maps"
	"slices"
)

// Arena is an append-only slot table keyed by task ID.
// Slots are dense (0..Len()-1) and never reordered. Extend returns a new
// Arena, so a value held by a previous state or projection never changes.
// The zero value is an empty arena.
type Arena struct {
	order []string
	index map[string]int
}

// Extend appends the IDs that do not have a slot yet, in the given order.
// Duplicates and empty IDs are ignored.
func (a Arena) Extend(ids ...string) Arena {
	var fresh []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := a.index[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return a
	}

	next := Arena{
		order: append(slices.Clip(a.order), fresh...),
		index: make(map[string]int, len(a.order)+len(fresh)),
	}
	maps.Copy(next.index, a.index)
	for i, id := range fresh {
		next.index[id] = len(a.order) + i
	}
	return next
}

// Slot returns the slot of id.
func (a Arena) Slot(id string) (int, bool) {
	slot, ok := a.index[id]
	return slot, ok
}

// Len returns the number of assigned slots.
func (a Arena) Len() int {
	return len(a.order)
}

// IDs returns the task IDs in slot order.
func (a Arena) IDs() []string {
	return slices.Clone(a.order)
}
