// Package reconcile computes and applies the minimal set of grant mutations
// needed to move a user's permissions from their current state to the
// desired end-state produced by an administrative editing session.
package reconcile

import "sort"

// Changes is the minimal mutation set produced by Diff
type Changes struct {
	ToAdd    []int64 `json:"to_add"`
	ToRemove []int64 `json:"to_remove"`
}

// Empty reports whether the changes contain no mutations
func (c Changes) Empty() bool {
	return len(c.ToAdd) == 0 && len(c.ToRemove) == 0
}

// Diff compares the current grant set against a full desired-state map and
// returns the minimal add/remove sets, sorted ascending for deterministic
// request payloads.
//
// Idempotent: diffing an already-applied desired state yields two empty
// sets. Entries absent from desired are left untouched, so select-all and
// select-none over the whole catalog are single Diff calls, with network
// cost proportional to the actual change rather than the catalog size.
func Diff(current []int64, desired map[int64]bool) Changes {
	granted := make(map[int64]struct{}, len(current))
	for _, id := range current {
		granted[id] = struct{}{}
	}

	var ch Changes
	for id, want := range desired {
		_, has := granted[id]
		switch {
		case want && !has:
			ch.ToAdd = append(ch.ToAdd, id)
		case !want && has:
			ch.ToRemove = append(ch.ToRemove, id)
		}
	}

	sort.Slice(ch.ToAdd, func(i, j int) bool { return ch.ToAdd[i] < ch.ToAdd[j] })
	sort.Slice(ch.ToRemove, func(i, j int) bool { return ch.ToRemove[i] < ch.ToRemove[j] })
	return ch
}
