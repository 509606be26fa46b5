package list

import "fmt"

// DeleteAtHead removes the first node and returns the new head. Deleting from an empty list is a no-op that
// returns the empty list without an error. O(1).
func (a *Arena[V]) DeleteAtHead(head Handle) (Handle, error) {
	if err := a.validate(head); err != nil {
		return head, err
	}
	if head.IsEmpty() {
		return Handle{}, nil
	}
	next := a.at(head.slot).next
	a.release(head.slot)
	if next != absent {
		a.at(next).prev = absent
	}
	return a.handle(next), nil
}

// DeleteAtTail removes the last node and returns the head, which is empty if the list had a single node. O(n).
func (a *Arena[V]) DeleteAtTail(head Handle) (Handle, error) {
	if err := a.validate(head); err != nil {
		return head, err
	}
	if head.IsEmpty() {
		return head, fmt.Errorf("%w: cannot delete the tail", ErrEmptyList)
	}
	if a.at(head.slot).next == absent { // Single node.
		a.release(head.slot)
		return Handle{}, nil
	}
	tail := a.tailOf(head.slot)
	a.at(a.at(tail).prev).next = absent
	a.release(tail)
	return head, nil
}

// DeleteAtIndex removes the node at position `index` (0-based) and returns the new head. O(n).
func (a *Arena[V]) DeleteAtIndex(head Handle, index int) (Handle, error) {
	if index < 0 {
		return head, fmt.Errorf("%w: negative index %d", ErrInvalidArgument, index)
	}
	if err := a.validate(head); err != nil {
		return head, err
	}
	if head.IsEmpty() {
		return head, fmt.Errorf("%w: cannot delete index %d", ErrEmptyList, index)
	}
	if index == 0 {
		return a.DeleteAtHead(head)
	}

	target := head.slot
	for step := 0; step < index; step++ {
		target = a.at(target).next
		if target == absent {
			return head, fmt.Errorf("%w: index %d exceeds list length", ErrInvalidArgument, index)
		}
	}
	a.unlink(target) // Never the head here, so the head handle stays valid.
	return head, nil
}

// DeleteFirstMatch removes the first node holding `v` and returns the new head. O(n).
func (a *Arena[V]) DeleteFirstMatch(head Handle, v V) (Handle, error) {
	if err := a.validate(head); err != nil {
		return head, err
	}
	if head.IsEmpty() {
		return head, fmt.Errorf("%w: cannot delete %v", ErrEmptyList, v)
	}
	for s := head.slot; s != absent; s = a.at(s).next {
		n := a.at(s)
		if n.value != v {
			continue
		}
		if n.prev == absent { // Match is the head.
			return a.DeleteAtHead(head)
		}
		a.unlink(s)
		return head, nil
	}
	return head, fmt.Errorf("%w: %v", ErrNotFound, v)
}
