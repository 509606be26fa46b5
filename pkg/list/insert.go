package list

import "fmt"

// InsertAtHead adds `v` in front of the list and returns the new head. O(1).
func (a *Arena[V]) InsertAtHead(head Handle, v V) (Handle, error) {
	if err := a.validate(head); err != nil {
		return head, err
	}
	return a.handle(a.pushFront(head.slot, v)), nil
}

// pushFront links a new node for `v` before `first` (which may be absent) and returns its slot.
func (a *Arena[V]) pushFront(first slot, v V) slot {
	s := a.alloc(v)
	a.at(s).next = first
	if first != absent {
		a.at(first).prev = s
	}
	return s
}

// InsertAtTail appends `v` after the last node and returns the head. An empty list degrades to InsertAtHead. O(n).
func (a *Arena[V]) InsertAtTail(head Handle, v V) (Handle, error) {
	if err := a.validate(head); err != nil {
		return head, err
	}
	if head.IsEmpty() {
		return a.handle(a.pushFront(absent, v)), nil
	}
	a.linkAfter(a.tailOf(head.slot), v)
	return head, nil
}

// InsertAtIndex places `v` so that it ends up at position `index` (0-based) and returns the new head.
// An index equal to the list length appends; anything beyond fails with ErrInvalidArgument. O(n).
func (a *Arena[V]) InsertAtIndex(head Handle, index int, v V) (Handle, error) {
	if index < 0 {
		return head, fmt.Errorf("%w: negative index %d", ErrInvalidArgument, index)
	}
	if err := a.validate(head); err != nil {
		return head, err
	}
	if index == 0 {
		return a.handle(a.pushFront(head.slot, v)), nil
	}
	if head.IsEmpty() {
		return head, fmt.Errorf("%w: index %d exceeds empty list", ErrInvalidArgument, index)
	}

	// Find the predecessor at index-1 before touching anything.
	pred := head.slot
	for position := 0; position < index-1; position++ {
		pred = a.at(pred).next
		if pred == absent {
			return head, fmt.Errorf("%w: index %d exceeds list length", ErrInvalidArgument, index)
		}
	}
	a.linkAfter(pred, v)
	return head, nil
}
