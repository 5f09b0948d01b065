package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		current    []int64
		desired    map[int64]bool
		wantAdd    []int64
		wantRemove []int64
	}{
		{
			name:       "spec scenario",
			current:    []int64{2},
			desired:    map[int64]bool{1: true, 2: false, 3: true},
			wantAdd:    []int64{1, 3},
			wantRemove: []int64{2},
		},
		{
			name:    "no change produces no operations",
			current: []int64{1, 3},
			desired: map[int64]bool{1: true, 2: false, 3: true},
		},
		{
			name:       "select none",
			current:    []int64{1, 2, 3},
			desired:    map[int64]bool{1: false, 2: false, 3: false},
			wantRemove: []int64{1, 2, 3},
		},
		{
			name:    "select all adds only the missing",
			current: []int64{2},
			desired: map[int64]bool{1: true, 2: true, 3: true},
			wantAdd: []int64{1, 3},
		},
		{
			name:    "empty desired state is a no-op",
			current: []int64{1, 2},
			desired: map[int64]bool{},
		},
		{
			name:    "unmentioned grants are untouched",
			current: []int64{1, 2},
			desired: map[int64]bool{3: true},
			wantAdd: []int64{3},
		},
		{
			name:    "desired false for ungranted id is a no-op",
			current: nil,
			desired: map[int64]bool{5: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := Diff(tt.current, tt.desired)
			assert.Equal(t, tt.wantAdd, ch.ToAdd)
			assert.Equal(t, tt.wantRemove, ch.ToRemove)
			assert.Equal(t, len(tt.wantAdd)+len(tt.wantRemove) == 0, ch.Empty())
		})
	}
}

// applying a desired state and diffing again against the resulting grants
// must yield empty sets
func TestDiffIdempotence(t *testing.T) {
	current := []int64{2, 4}
	desired := map[int64]bool{1: true, 2: false, 3: true, 4: true}

	ch := Diff(current, desired)
	assert.Equal(t, []int64{1, 3}, ch.ToAdd)
	assert.Equal(t, []int64{2}, ch.ToRemove)

	// simulate the authority applying the changes
	after := map[int64]struct{}{}
	for _, id := range current {
		after[id] = struct{}{}
	}
	for _, id := range ch.ToRemove {
		delete(after, id)
	}
	for _, id := range ch.ToAdd {
		after[id] = struct{}{}
	}
	var next []int64
	for id := range after {
		next = append(next, id)
	}

	again := Diff(next, desired)
	assert.True(t, again.Empty())
}

func TestDiffIsDeterministic(t *testing.T) {
	desired := map[int64]bool{9: true, 1: true, 5: true, 3: false}
	for i := 0; i < 10; i++ {
		ch := Diff([]int64{3}, desired)
		assert.Equal(t, []int64{1, 5, 9}, ch.ToAdd)
		assert.Equal(t, []int64{3}, ch.ToRemove)
	}
}
