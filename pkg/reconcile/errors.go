package reconcile

import (
	"fmt"
	"strings"
)

// PartialError reports an apply where exactly one of the remove/add halves
// failed. It names which ids are in which state so the caller can retry the
// missing half.
type PartialError struct {
	UserID    int64
	ToAdd     []int64
	ToRemove  []int64
	AddErr    error
	RemoveErr error
}

func (e *PartialError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial apply for user %d:", e.UserID)
	if e.RemoveErr != nil {
		fmt.Fprintf(&b, " remove of %v failed (%v), add of %v succeeded", e.ToRemove, e.RemoveErr, e.ToAdd)
	} else {
		fmt.Fprintf(&b, " remove of %v succeeded, add of %v failed (%v)", e.ToRemove, e.ToAdd, e.AddErr)
	}
	return b.String()
}

// Applied returns the ids whose half succeeded
func (e *PartialError) Applied() (added, removed []int64) {
	if e.AddErr == nil {
		added = e.ToAdd
	}
	if e.RemoveErr == nil {
		removed = e.ToRemove
	}
	return added, removed
}

// Failed returns the ids whose half failed
func (e *PartialError) Failed() (added, removed []int64) {
	if e.AddErr != nil {
		added = e.ToAdd
	}
	if e.RemoveErr != nil {
		removed = e.ToRemove
	}
	return added, removed
}
