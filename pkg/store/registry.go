// This module keeps named lists and distributes them uniformly across shards. Lists never span shards; each shard
// owns one arena and one mutex, so goroutines working on lists of different shards don't block each other. The list
// arena itself has no locking, the shard mutex is the external serialization it requires.

package store

import (
	"encoding/binary"
	"flag"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/nobletooth/twine/pkg/list"
	"github.com/nobletooth/twine/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	shardCount    = flag.Int("shard_count", runtime.NumCPU(), "The number of shards to distribute named lists over.")
	arenaCapacity = flag.Int("arena_capacity", 64, "Initial node capacity of each shard's arena.")
	bloomItems    = flag.Uint("bloom_expected_items", 1024,
		"Expected number of distinct values per list; sizes the per-list bloom filter.")
	bloomFalsePositiveRate = flag.Float64("bloom_false_positive_rate", 0.01,
		"Target false positive rate of the per-list bloom filter.")
	verifyLinks = flag.Bool("verify_list_links", false,
		"Check the two-way link consistency of a list after every mutation; costs O(n) per write.")

	filterShortcuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twine_bloom_shortcuts_total",
		Help: "Total number of value deletions answered by the bloom filter without scanning the list.",
	})
	liveNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "twine_live_nodes",
		Help: "Number of allocated list nodes per shard.",
	}, []string{"shard"})
)

// entry is a single named list.
type entry struct {
	head list.Handle
	// filter remembers every value ever inserted. Deletions don't remove values, so a negative answer is exact.
	filter *bloom.BloomFilter
}

// remember records `v` in the entry's filter.
func (e *entry) remember(v int64) {
	if e.filter == nil {
		e.filter = bloom.NewWithEstimates(*bloomItems, *bloomFalsePositiveRate)
	}
	e.filter.Add(filterKey(v))
}

// mayContain returns false only if `v` was never inserted into the list.
func (e *entry) mayContain(v int64) bool {
	return e.filter == nil || e.filter.Test(filterKey(v))
}

func filterKey(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

type shard struct {
	mux   sync.Mutex
	label string // Prometheus label.
	arena *list.Arena[int64]
	lists map[string]*entry
}

// Registry holds named lists of int64 values.
type Registry struct {
	shards []*shard
}

// NewRegistry creates a registry with `-shard_count` shards.
func NewRegistry() *Registry {
	return newRegistryWith(*shardCount)
}

func newRegistryWith(count int) *Registry {
	// Ensure there is at least one shard.
	if count <= 0 {
		utils.RaiseInvariant("store", "negative_shard_count",
			"Invalid shard count has been given to the list registry.", "shardCount", count)
		count = 1
	}
	registry := &Registry{shards: make([]*shard, count)}
	for i := range count {
		registry.shards[i] = &shard{
			label: fmt.Sprint(i),
			arena: list.NewArena[int64](*arenaCapacity),
			lists: make(map[string]*entry),
		}
	}
	return registry
}

// getShard hashes the list name to pick its shard.
func (r *Registry) getShard(name string) *shard {
	return r.shards[xxhash.Sum64String(name)%uint64(len(r.shards))]
}

// update runs `mutate` on list `name` while holding its shard lock. The returned head replaces the stored one only
// if `mutate` succeeds; a list that becomes empty is dropped. Missing lists are handed over as empty lists.
func (r *Registry) update(name string, mutate func(arena *list.Arena[int64], e *entry) (list.Handle, error)) error {
	sh := r.getShard(name)
	sh.mux.Lock()
	defer sh.mux.Unlock()

	e, exists := sh.lists[name]
	if !exists {
		e = &entry{}
	}
	newHead, err := mutate(sh.arena, e)
	if err != nil {
		return err
	}
	e.head = newHead
	if newHead.IsEmpty() {
		delete(sh.lists, name)
	} else {
		sh.lists[name] = e
	}
	liveNodes.WithLabelValues(sh.label).Set(float64(sh.arena.Live()))

	if *verifyLinks {
		if checkErr := sh.arena.Check(newHead); checkErr != nil {
			utils.RaiseInvariant("store", "corrupt_list", "List links are corrupt after a mutation.",
				"list", name, "error", checkErr)
		}
	}
	return nil
}

// view runs `read` on list `name` while holding its shard lock.
func (r *Registry) view(name string, read func(arena *list.Arena[int64], head list.Handle) error) error {
	sh := r.getShard(name)
	sh.mux.Lock()
	defer sh.mux.Unlock()

	var head list.Handle
	if e, exists := sh.lists[name]; exists {
		head = e.head
	}
	return read(sh.arena, head)
}

// insert applies one of the arena insert operations and returns the resulting list length.
func (r *Registry) insert(name string, v int64,
	insertFn func(arena *list.Arena[int64], head list.Handle) (list.Handle, error)) (int, error) {
	length := 0
	var lengthErr error
	err := r.update(name, func(arena *list.Arena[int64], e *entry) (list.Handle, error) {
		newHead, err := insertFn(arena, e.head)
		if err != nil {
			return newHead, err
		}
		e.remember(v)
		// The node is already linked in; a failed count must not drop the new head.
		length, lengthErr = arena.Len(newHead)
		return newHead, nil
	})
	if err != nil {
		return 0, err
	}
	return length, lengthErr
}

// InsertAtHead adds `v` in front of list `name` and returns the new length.
func (r *Registry) InsertAtHead(name string, v int64) (int, error) {
	return r.insert(name, v, func(arena *list.Arena[int64], head list.Handle) (list.Handle, error) {
		return arena.InsertAtHead(head, v)
	})
}

// InsertAtTail appends `v` to list `name` and returns the new length.
func (r *Registry) InsertAtTail(name string, v int64) (int, error) {
	return r.insert(name, v, func(arena *list.Arena[int64], head list.Handle) (list.Handle, error) {
		return arena.InsertAtTail(head, v)
	})
}

// InsertAtIndex places `v` at position `index` of list `name` and returns the new length.
func (r *Registry) InsertAtIndex(name string, index int, v int64) (int, error) {
	return r.insert(name, v, func(arena *list.Arena[int64], head list.Handle) (list.Handle, error) {
		return arena.InsertAtIndex(head, index, v)
	})
}

// DeleteAtHead removes the first value of list `name`. Removing from an empty list is a no-op reported through
// `removed` being false.
func (r *Registry) DeleteAtHead(name string) (value int64, removed bool, err error) {
	err = r.update(name, func(arena *list.Arena[int64], e *entry) (list.Handle, error) {
		if e.head.IsEmpty() {
			return e.head, nil
		}
		front, err := arena.Front(e.head)
		if err != nil {
			return e.head, err
		}
		value, removed = front, true
		return arena.DeleteAtHead(e.head)
	})
	return value, removed, err
}

// DeleteAtTail removes and returns the last value of list `name`.
func (r *Registry) DeleteAtTail(name string) (int64, error) {
	var value int64
	err := r.update(name, func(arena *list.Arena[int64], e *entry) (list.Handle, error) {
		if !e.head.IsEmpty() {
			back, err := arena.Back(e.head)
			if err != nil {
				return e.head, err
			}
			value = back
		}
		return arena.DeleteAtTail(e.head)
	})
	return value, err
}

// DeleteAtIndex removes and returns the value at position `index` of list `name`.
func (r *Registry) DeleteAtIndex(name string, index int) (int64, error) {
	var value int64
	err := r.update(name, func(arena *list.Arena[int64], e *entry) (list.Handle, error) {
		if index >= 0 && !e.head.IsEmpty() {
			// Out of range indices are reported by DeleteAtIndex below.
			if at, err := arena.At(e.head, index); err == nil {
				value = at
			}
		}
		return arena.DeleteAtIndex(e.head, index)
	})
	return value, err
}

// DeleteFirstMatch removes the first occurrence of `v` from list `name`.
func (r *Registry) DeleteFirstMatch(name string, v int64) error {
	return r.update(name, func(arena *list.Arena[int64], e *entry) (list.Handle, error) {
		if !e.head.IsEmpty() && !e.mayContain(v) {
			filterShortcuts.Inc()
			return e.head, fmt.Errorf("%w: %d", list.ErrNotFound, v)
		}
		return arena.DeleteFirstMatch(e.head, v)
	})
}

// Render returns the values of list `name` from head to tail.
func (r *Registry) Render(name string) ([]int64, error) {
	var values []int64
	err := r.view(name, func(arena *list.Arena[int64], head list.Handle) error {
		var err error
		values, err = arena.Render(head)
		return err
	})
	return values, err
}

// Len returns the number of values in list `name`.
func (r *Registry) Len(name string) (int, error) {
	length := 0
	err := r.view(name, func(arena *list.Arena[int64], head list.Handle) error {
		var err error
		length, err = arena.Len(head)
		return err
	})
	return length, err
}

// Check verifies the link consistency of list `name`.
func (r *Registry) Check(name string) error {
	return r.view(name, func(arena *list.Arena[int64], head list.Handle) error {
		return arena.Check(head)
	})
}

// Delete drops the given lists and returns how many of them existed.
func (r *Registry) Delete(names ...string) int {
	deleted := 0
	for _, name := range names {
		err := r.update(name, func(arena *list.Arena[int64], e *entry) (list.Handle, error) {
			if e.head.IsEmpty() {
				return e.head, list.ErrEmptyList
			}
			if _, err := arena.Release(e.head); err != nil {
				return e.head, err
			}
			return list.Handle{}, nil
		})
		if err == nil {
			deleted++
		}
	}
	return deleted
}

// Names returns the names of all non-empty lists, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0)
	for _, sh := range r.shards {
		sh.mux.Lock()
		for name := range sh.lists {
			names = append(names, name)
		}
		sh.mux.Unlock()
	}
	slices.Sort(names)
	return names
}
