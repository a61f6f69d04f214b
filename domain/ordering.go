package domain

import "fmt"

// AppendPosition returns the position for an item appended to a sibling set:
// one past the current maximum, or 0 for an empty set. Gaps left by earlier
// moves are preserved, never compacted here.
func AppendPosition(positions []int) int {
	next := 0
	for _, p := range positions {
		if p >= next {
			next = p + 1
		}
	}
	return next
}

// ValidateReorderSet checks that proposed is a permutation of current:
// extra, missing or duplicate ids all reject the reorder, so a stale client
// can never silently drop a sibling.
func ValidateReorderSet(current, proposed []string) error {
	if len(proposed) != len(current) {
		return fmt.Errorf("%w: got %d ids, parent has %d", ErrInvalidArgument, len(proposed), len(current))
	}
	members := make(map[string]bool, len(current))
	for _, id := range current {
		members[id] = true
	}
	for _, id := range proposed {
		if !members[id] {
			return fmt.Errorf("%w: id %s is not a member or repeats", ErrInvalidArgument, id)
		}
		members[id] = false
	}
	return nil
}

