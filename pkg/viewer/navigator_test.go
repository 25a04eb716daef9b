package viewer

import (
	"errors"
	"testing"
)

func TestNavigatorNotReady(t *testing.T) {
	var n Navigator
	if n.Ready() {
		t.Fatal("zero Navigator should not be ready")
	}
	for name, op := range map[string]func() (bool, error){
		"next": n.Next,
		"prev": n.Prev,
		"goto": func() (bool, error) { return n.GoTo(3) },
	} {
		if _, err := op(); !errors.Is(err, ErrNotReady) {
			t.Errorf("%s: error = %v, want ErrNotReady", name, err)
		}
	}
	if err := n.Reset(0); err == nil {
		t.Error("Reset(0) should fail")
	}
	if n.Ready() {
		t.Error("failed Reset should leave the navigator not ready")
	}
}

func TestNavigatorClamping(t *testing.T) {
	for _, total := range []int{1, 2, 10} {
		for target := -3; target <= total+3; target++ {
			var n Navigator
			if err := n.Reset(total); err != nil {
				t.Fatalf("Reset(%d): %v", total, err)
			}
			if _, err := n.GoTo(target); err != nil {
				t.Fatalf("GoTo(%d): %v", target, err)
			}
			want := min(max(target, 1), total)
			if got := n.State(); got != (NavState{Current: want, Total: total}) {
				t.Errorf("total %d: GoTo(%d) -> %+v, want current %d", total, target, got, want)
			}
		}
	}
}

func TestNavigatorBounds(t *testing.T) {
	var n Navigator
	n.Reset(3)

	if changed, _ := n.Prev(); changed || n.State().Current != 1 {
		t.Errorf("Prev at 1: changed=%v current=%d", changed, n.State().Current)
	}
	steps := []struct {
		op      func() (bool, error)
		current int
		changed bool
	}{
		{n.Next, 2, true},
		{n.Next, 3, true},
		{n.Next, 3, false},
		{n.Next, 3, false},
		{n.Prev, 2, true},
		{func() (bool, error) { return n.GoTo(2) }, 2, false},
		{func() (bool, error) { return n.GoTo(99) }, 3, true},
	}
	for i, s := range steps {
		changed, err := s.op()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if changed != s.changed || n.State().Current != s.current {
			t.Errorf("step %d: changed=%v current=%d, want %v %d", i, changed, n.State().Current, s.changed, s.current)
		}
	}
}
