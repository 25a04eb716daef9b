package viewer

import "fmt"

// NavState is the current position in a document. 1 <= Current <= Total.
type NavState struct {
	Current int
	Total   int
}

// Navigator is the pagination state machine. The zero value is not ready
// until Reset is called with the page count.
type Navigator struct {
	state NavState
	ready bool
}

// Reset starts navigation at index 1 of total
func (n *Navigator) Reset(total int) error {
	if total < 1 {
		return fmt.Errorf("navigator: total %d < 1", total)
	}
	n.state = NavState{Current: 1, Total: total}
	n.ready = true
	return nil
}

// Ready reports whether Reset has been called
func (n *Navigator) Ready() bool { return n.ready }

// State returns the current position
func (n *Navigator) State() NavState { return n.state }

// Next moves forward one index, staying put on the last one
func (n *Navigator) Next() (bool, error) {
	return n.GoTo(n.state.Current + 1)
}

// Prev moves back one index, staying put on the first one
func (n *Navigator) Prev() (bool, error) {
	return n.GoTo(n.state.Current - 1)
}

// GoTo moves to index clamped into [1, Total] and reports whether the
// current index changed.
func (n *Navigator) GoTo(index int) (bool, error) {
	if !n.ready {
		return false, ErrNotReady
	}
	index = min(max(index, 1), n.state.Total)
	if index == n.state.Current {
		return false, nil
	}
	n.state.Current = index
	return true, nil
}
