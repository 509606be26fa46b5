package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/nobletooth/twine/pkg/list"
	"github.com/nobletooth/twine/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertListValues makes sure the list `name` renders to `expected`.
func assertListValues(t *testing.T, registry *Registry, name string, expected []int64) {
	t.Helper()
	values, err := registry.Render(name)
	require.NoError(t, err)
	assert.Equal(t, expected, values)
	require.NoError(t, registry.Check(name))
}

func TestRegistry_Insert(t *testing.T) {
	registry := newRegistryWith(4)

	length, err := registry.InsertAtTail("l", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, length)
	length, err = registry.InsertAtTail("l", 40)
	require.NoError(t, err)
	assert.Equal(t, 2, length)
	length, err = registry.InsertAtIndex("l", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, length)
	length, err = registry.InsertAtHead("l", 5)
	require.NoError(t, err)
	assert.Equal(t, 4, length)
	assertListValues(t, registry, "l", []int64{5, 10, 20, 40})

	_, err = registry.InsertAtIndex("l", 9, 1)
	assert.ErrorIs(t, err, list.ErrInvalidArgument)
	_, err = registry.InsertAtIndex("missing", 1, 1)
	assert.ErrorIs(t, err, list.ErrInvalidArgument)
	assert.Equal(t, []string{"l"}, registry.Names(), "Failed inserts must not create lists")
}

func TestRegistry_Delete(t *testing.T) {
	registry := newRegistryWith(2)
	for _, v := range []int64{10, 20, 30, 20, 50} {
		_, err := registry.InsertAtTail("l", v)
		require.NoError(t, err)
	}

	value, removed, err := registry.DeleteAtHead("l")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, int64(10), value)

	value, err = registry.DeleteAtTail("l")
	require.NoError(t, err)
	assert.Equal(t, int64(50), value)

	require.NoError(t, registry.DeleteFirstMatch("l", 20))
	assertListValues(t, registry, "l", []int64{30, 20})

	value, err = registry.DeleteAtIndex("l", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), value)

	_, err = registry.DeleteAtIndex("l", 1)
	assert.ErrorIs(t, err, list.ErrInvalidArgument)
	assertListValues(t, registry, "l", []int64{30})

	value, err = registry.DeleteAtTail("l")
	require.NoError(t, err)
	assert.Equal(t, int64(30), value)
	assert.Empty(t, registry.Names(), "Empty lists must be dropped")

	_, removed, err = registry.DeleteAtHead("l")
	assert.NoError(t, err)
	assert.False(t, removed)
	_, err = registry.DeleteAtTail("l")
	assert.ErrorIs(t, err, list.ErrEmptyList)
	_, err = registry.DeleteAtIndex("l", 0)
	assert.ErrorIs(t, err, list.ErrEmptyList)
	assert.ErrorIs(t, registry.DeleteFirstMatch("l", 1), list.ErrEmptyList)
}

func TestRegistry_BloomShortcut(t *testing.T) {
	utils.SetTestFlags(t, map[string]string{"bloom_expected_items": "1024", "bloom_false_positive_rate": "0.0001"})
	registry := newRegistryWith(1)
	for _, v := range []int64{1, 2, 3} {
		_, err := registry.InsertAtTail("l", v)
		require.NoError(t, err)
	}

	before := testutil.ToFloat64(filterShortcuts)
	assert.ErrorIs(t, registry.DeleteFirstMatch("l", 1_000_000), list.ErrNotFound)
	assert.Equal(t, before+1, testutil.ToFloat64(filterShortcuts))

	// A value that was inserted then removed passes the filter and is reported by the scan.
	require.NoError(t, registry.DeleteFirstMatch("l", 2))
	assert.ErrorIs(t, registry.DeleteFirstMatch("l", 2), list.ErrNotFound)
	assert.Equal(t, before+1, testutil.ToFloat64(filterShortcuts))
	assertListValues(t, registry, "l", []int64{1, 3})
}

func TestRegistry_DeleteLists(t *testing.T) {
	registry := newRegistryWith(3)
	for i := range 5 {
		_, err := registry.InsertAtHead(fmt.Sprintf("list-%d", i), int64(i))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"list-0", "list-1", "list-2", "list-3", "list-4"}, registry.Names())
	assert.Equal(t, 2, registry.Delete("list-1", "list-3", "missing"))
	assert.Equal(t, []string{"list-0", "list-2", "list-4"}, registry.Names())

	length, err := registry.Len("list-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, length)
	values, err := registry.Render("list-1")
	assert.NoError(t, err)
	assert.Empty(t, values)
}

func TestRegistry_VerifyLinks(t *testing.T) {
	utils.SetTestFlag(t, "verify_list_links", "true")
	registry := newRegistryWith(1)
	before := utils.GetMetricValue("store", "corrupt_list")
	for _, v := range []int64{1, 2, 3} {
		_, err := registry.InsertAtHead("l", v)
		require.NoError(t, err)
	}
	assert.Equal(t, before, utils.GetMetricValue("store", "corrupt_list"))
	assertListValues(t, registry, "l", []int64{3, 2, 1})
}

func TestRegistry_CorruptList(t *testing.T) {
	utils.SetTestFlag(t, "verify_list_links", "true")
	registry := newRegistryWith(1)
	for _, v := range []int64{1, 2, 3} {
		_, err := registry.InsertAtTail("l", v)
		require.NoError(t, err)
	}
	sh := registry.getShard("l")
	require.NoError(t, sh.arena.BreakBackLink(sh.lists["l"].head))

	assert.ErrorIs(t, registry.Check("l"), list.ErrCorruptState)
	_, err := registry.Render("l")
	assert.ErrorIs(t, err, list.ErrCorruptState)

	before := utils.GetMetricValue("store", "corrupt_list")
	_, err = registry.InsertAtHead("l", 0)
	assert.ErrorIs(t, err, list.ErrCorruptState, "The new length cannot be counted on a corrupt list")
	assert.Equal(t, before+1, utils.GetMetricValue("store", "corrupt_list"))
	assert.Equal(t, 4, sh.arena.Live(), "The inserted node stays linked in")

	// Other lists of the same shard are unaffected.
	_, err = registry.InsertAtTail("other", 7)
	require.NoError(t, err)
	assertListValues(t, registry, "other", []int64{7})
	assert.Equal(t, before+1, utils.GetMetricValue("store", "corrupt_list"))
}

func TestRegistry_NonPositiveShardCount(t *testing.T) {
	registry := newRegistryWith(0)
	assert.Len(t, registry.shards, 1)
	assert.Equal(t, 1, utils.GetMetricValue("store", "negative_shard_count"))
}

func TestRegistry_ConcurrentLists(t *testing.T) {
	registry := newRegistryWith(4)
	const lists, values = 8, 200
	var wg sync.WaitGroup
	for i := range lists {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for v := range values {
				_, err := registry.InsertAtTail(name, int64(v))
				assert.NoError(t, err)
			}
			for range values / 2 {
				_, _, err := registry.DeleteAtHead(name)
				assert.NoError(t, err)
			}
		}(fmt.Sprintf("list-%d", i))
	}
	wg.Wait()

	for i := range lists {
		name := fmt.Sprintf("list-%d", i)
		length, err := registry.Len(name)
		require.NoError(t, err)
		assert.Equal(t, values/2, length)
		require.NoError(t, registry.Check(name))
	}
}
