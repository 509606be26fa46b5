// Package list implements a doubly linked list whose nodes live in an arena.
//
// Nodes are addressed by slot indices instead of pointers: `next` is the forward chain and `prev` is a back-reference
// used only for relinking, never for ownership. A list is represented solely by its head Handle; there is no tail or
// length field, so both are computed by traversal. Every mutating operation takes the current head and returns the
// new one; callers must keep using only the most recently returned Handle.
//
// A Handle carries the generation of its slot. Freeing a slot bumps its generation, so a head handle that went stale
// (e.g. after deleting or inserting at the head) is rejected with ErrStaleHandle instead of aliasing recycled nodes.
//
// An Arena is not safe for concurrent use; callers sharing one must serialize access.
package list

import "fmt"

// slot is a 1-based position in the arena; 0 means "absent".
type slot uint32

const absent slot = 0

// node is a single arena entry.
type node[V comparable] struct {
	value V
	next  slot
	prev  slot
	gen   uint32 // Bumped every time the slot is freed.
	live  bool
}

// Handle refers to the head node of a list. The zero Handle is the empty list.
type Handle struct {
	slot slot
	gen  uint32
}

// IsEmpty returns true if the handle refers to an empty list.
func (h Handle) IsEmpty() bool {
	return h.slot == absent
}

// String is used by logs and test failure messages.
func (h Handle) String() string {
	if h.IsEmpty() {
		return "list.Handle(empty)"
	}
	return fmt.Sprintf("list.Handle(%d@%d)", h.slot, h.gen)
}

// Arena owns the nodes of any number of lists holding values of type V.
type Arena[V comparable] struct {
	nodes []node[V]
	free  []slot
	live  int
}

// NewArena creates an arena with room for `capacity` nodes before growing.
func NewArena[V comparable](capacity int) *Arena[V] {
	if capacity < 0 {
		capacity = 0
	}
	return &Arena[V]{nodes: make([]node[V], 0, capacity)}
}

// Live returns the number of allocated nodes across all lists of the arena.
func (a *Arena[V]) Live() int {
	return a.live
}

// at returns the node stored in slot `s`. The pointer is only valid until the next alloc.
func (a *Arena[V]) at(s slot) *node[V] {
	return &a.nodes[s-1]
}

// handle builds the head handle of slot `s`; absent gives the empty list.
func (a *Arena[V]) handle(s slot) Handle {
	if s == absent {
		return Handle{}
	}
	return Handle{slot: s, gen: a.at(s).gen}
}

// alloc returns a fresh unlinked node holding `v`, reusing a freed slot when possible.
func (a *Arena[V]) alloc(v V) slot {
	var s slot
	if freeCount := len(a.free); freeCount > 0 {
		s = a.free[freeCount-1]
		a.free = a.free[:freeCount-1]
	} else {
		a.nodes = append(a.nodes, node[V]{})
		s = slot(len(a.nodes))
	}
	n := a.at(s)
	n.value = v
	n.next, n.prev = absent, absent
	n.live = true
	a.live++
	return s
}

// release frees slot `s`. Outstanding handles to it become stale.
func (a *Arena[V]) release(s slot) {
	n := a.at(s)
	var zero V
	n.value = zero
	n.next, n.prev = absent, absent
	n.live = false
	n.gen++
	a.free = append(a.free, s)
	a.live--
}

// validSlot returns true if `s` points at a live node of this arena.
func (a *Arena[V]) validSlot(s slot) bool {
	return s != absent && int(s) <= len(a.nodes) && a.at(s).live
}

// validate makes sure `head` is either empty or the current head of a list in this arena.
func (a *Arena[V]) validate(head Handle) error {
	if head.IsEmpty() {
		return nil
	}
	if !a.validSlot(head.slot) || a.at(head.slot).gen != head.gen {
		return fmt.Errorf("%w: %s refers to a freed node", ErrStaleHandle, head)
	}
	if a.at(head.slot).prev != absent {
		if a.reachesHead(head.slot) {
			return fmt.Errorf("%w: %s is no longer the head of its list", ErrStaleHandle, head)
		}
		return fmt.Errorf("%w: head %d has a broken back-reference", ErrCorruptState, head.slot)
	}
	return nil
}

// reachesHead follows back-references from `s` and reports whether they lead to a head node,
// with every predecessor pointing forward at the node it was reached from.
func (a *Arena[V]) reachesHead(s slot) bool {
	for steps := 0; steps <= a.live; steps++ {
		prev := a.at(s).prev
		if prev == absent {
			return true
		}
		if !a.validSlot(prev) || a.at(prev).next != s {
			return false
		}
		s = prev
	}
	return false // Cycle.
}

// tailOf walks the forward chain from `s` to the node without a successor.
func (a *Arena[V]) tailOf(s slot) slot {
	for next := a.at(s).next; next != absent; next = a.at(s).next {
		s = next
	}
	return s
}

// linkAfter allocates a node for `v` and splices it right after `pred`.
func (a *Arena[V]) linkAfter(pred slot, v V) slot {
	s := a.alloc(v) // Allocate first; it may move the backing array.
	n, p := a.at(s), a.at(pred)
	n.prev = pred
	n.next = p.next
	if p.next != absent {
		a.at(p.next).prev = s
	}
	p.next = s
	return s
}

// unlink detaches slot `s` from its neighbors and frees it.
func (a *Arena[V]) unlink(s slot) {
	n := a.at(s)
	if n.prev != absent {
		a.at(n.prev).next = n.next
	}
	if n.next != absent {
		a.at(n.next).prev = n.prev
	}
	a.release(s)
}
