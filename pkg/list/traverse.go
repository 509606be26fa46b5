package list

import (
	"fmt"
	"iter"
	"strings"
)

// Build creates a list out of `values` by repeated tail appends, tracking a running tail. O(n).
func (a *Arena[V]) Build(values []V) Handle {
	head, tail := absent, absent
	for _, v := range values {
		if tail == absent {
			head = a.pushFront(absent, v)
			tail = head
			continue
		}
		tail = a.linkAfter(tail, v)
	}
	return a.handle(head)
}

// walk visits the forward chain from `head`, verifying every back-reference on the way.
// It stops early (without an error) when `visit` returns false.
func (a *Arena[V]) walk(head Handle, visit func(s slot, n *node[V]) bool) error {
	if err := a.validate(head); err != nil {
		return err
	}
	steps, prev := 0, absent
	for s := head.slot; s != absent; {
		if !a.validSlot(s) {
			return fmt.Errorf("%w: node %d links to freed slot %d", ErrCorruptState, prev, s)
		}
		if steps++; steps > a.live {
			return fmt.Errorf("%w: forward chain has a cycle", ErrCorruptState)
		}
		n := a.at(s)
		if n.prev != prev { // Covers both `prev.next != self` and `next.prev != self`.
			return fmt.Errorf("%w: node %d points back to %d instead of %d", ErrCorruptState, s, n.prev, prev)
		}
		if !visit(s, n) {
			return nil
		}
		prev, s = s, n.next
	}
	return nil
}

// Check verifies the two-way link consistency of the list starting at `head`.
func (a *Arena[V]) Check(head Handle) error {
	return a.walk(head, func(slot, *node[V]) bool { return true })
}

// Render returns the values of the list in forward order, or ErrCorruptState if the links are broken.
func (a *Arena[V]) Render(head Handle) ([]V, error) {
	values := make([]V, 0)
	if err := a.walk(head, func(_ slot, n *node[V]) bool {
		values = append(values, n.value)
		return true
	}); err != nil {
		return nil, err
	}
	return values, nil
}

// Format renders the list as `10 <-> 20 <-> 30`.
func (a *Arena[V]) Format(head Handle) string {
	values, err := a.Render(head)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	if len(values) == 0 {
		return "empty"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " <-> ")
}

// Len counts the nodes of the list. O(n).
func (a *Arena[V]) Len(head Handle) (int, error) {
	length := 0
	err := a.walk(head, func(slot, *node[V]) bool {
		length++
		return true
	})
	return length, err
}

// Front returns the first value of the list.
func (a *Arena[V]) Front(head Handle) (V, error) {
	var zero V
	if err := a.validate(head); err != nil {
		return zero, err
	}
	if head.IsEmpty() {
		return zero, ErrEmptyList
	}
	return a.at(head.slot).value, nil
}

// Back returns the last value of the list. O(n).
func (a *Arena[V]) Back(head Handle) (V, error) {
	var zero V
	if err := a.validate(head); err != nil {
		return zero, err
	}
	if head.IsEmpty() {
		return zero, ErrEmptyList
	}
	return a.at(a.tailOf(head.slot)).value, nil
}

// At returns the value at position `index` (0-based). O(n).
func (a *Arena[V]) At(head Handle, index int) (V, error) {
	var zero V
	if index < 0 {
		return zero, fmt.Errorf("%w: negative index %d", ErrInvalidArgument, index)
	}
	if err := a.validate(head); err != nil {
		return zero, err
	}
	if head.IsEmpty() {
		return zero, fmt.Errorf("%w: index %d exceeds empty list", ErrInvalidArgument, index)
	}
	s := head.slot
	for step := 0; step < index; step++ {
		if s = a.at(s).next; s == absent {
			return zero, fmt.Errorf("%w: index %d exceeds list length", ErrInvalidArgument, index)
		}
	}
	return a.at(s).value, nil
}

// Values iterates the list from head to tail. Iteration stops at the first broken link.
func (a *Arena[V]) Values(head Handle) iter.Seq[V] {
	return func(yield func(V) bool) {
		_ = a.walk(head, func(_ slot, n *node[V]) bool { return yield(n.value) })
	}
}

// Backward iterates the list from tail to head following back-references.
func (a *Arena[V]) Backward(head Handle) iter.Seq[V] {
	return func(yield func(V) bool) {
		tail := absent
		if err := a.walk(head, func(s slot, _ *node[V]) bool {
			tail = s
			return true
		}); err != nil {
			return
		}
		for s := tail; s != absent; s = a.at(s).prev {
			if !yield(a.at(s).value) {
				return
			}
		}
	}
}

// Release frees every node of the list and returns how many were freed. Only the forward chain is followed.
func (a *Arena[V]) Release(head Handle) (int, error) {
	if err := a.Check(head); err != nil {
		return 0, err
	}
	freed := 0
	for s := head.slot; s != absent; {
		next := a.at(s).next
		a.release(s)
		freed++
		s = next
	}
	return freed, nil
}
