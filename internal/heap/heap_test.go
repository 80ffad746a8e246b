package heap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"btreedb/internal/cache"
	"btreedb/internal/codec"
	"btreedb/internal/freelist"
	"btreedb/internal/pagestore"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	store, err := pagestore.Open(filepath.Join(dir, "data.dat"), codec.HeapPageSize)
	require.NoError(t, err)
	under, err := freelist.Open(filepath.Join(dir, "metadata.dat"))
	require.NoError(t, err)
	require.NoError(t, under.InsertSortedUnique(0)) // the bootstrap empty page
	return New(store, under, 4, cache.Hooks{})
}

func rec(key int32) codec.Record {
	return codec.Record{Key: key, PA: 0.1, PB: 0.2, PAUB: 0.3}
}

func TestInsertUsesUnderutilizedPageFirst(t *testing.T) {
	m := newManager(t)
	idx, err := m.Insert(rec(1))
	require.NoError(t, err)
	require.EqualValues(t, 0, idx)
}

func TestInsertFillsPageThenAllocatesNext(t *testing.T) {
	m := newManager(t)
	var last int32
	for k := int32(1); k <= int32(m.Capacity()); k++ {
		idx, err := m.Insert(rec(k))
		require.NoError(t, err)
		last = idx
	}
	require.EqualValues(t, 0, last)

	page, err := m.GetPage(0)
	require.NoError(t, err)
	require.Len(t, page.Records, m.Capacity())
	require.False(t, m.under.Contains(0)) // full page leaves U

	idx, err := m.Insert(rec(100))
	require.NoError(t, err)
	require.EqualValues(t, 1, idx) // spills to a freshly appended page
}

func TestRemoveReinstatesUnderutilized(t *testing.T) {
	m := newManager(t)
	for k := int32(1); k <= int32(m.Capacity()); k++ {
		_, err := m.Insert(rec(k))
		require.NoError(t, err)
	}
	require.False(t, m.under.Contains(0))

	require.NoError(t, m.Remove(0, 1))
	require.True(t, m.under.Contains(0))

	page, err := m.GetPage(0)
	require.NoError(t, err)
	require.Len(t, page.Records, m.Capacity()-1)
}

func TestUpdateRewritesFieldsNotKey(t *testing.T) {
	m := newManager(t)
	idx, err := m.Insert(rec(7))
	require.NoError(t, err)

	require.NoError(t, m.Update(idx, 7, 0.9, 0.8, 0.7))
	page, err := m.GetPage(idx)
	require.NoError(t, err)
	require.Equal(t, int32(7), page.Records[0].Key)
	require.Equal(t, 0.9, page.Records[0].PA)
}

func TestScanVisitsAllPagesInOrder(t *testing.T) {
	m := newManager(t)
	for k := int32(1); k <= int32(m.Capacity())+1; k++ {
		_, err := m.Insert(rec(k))
		require.NoError(t, err)
	}

	var seen []int32
	require.NoError(t, m.Scan(func(idx int32, page codec.HeapPage) error {
		seen = append(seen, idx)
		return nil
	}))
	require.Equal(t, []int32{0, 1}, seen)
}

func TestRebuildUnderutilizedMatchesScan(t *testing.T) {
	m := newManager(t)
	for k := int32(1); k <= int32(m.Capacity())+2; k++ {
		_, err := m.Insert(rec(k))
		require.NoError(t, err)
	}
	require.NoError(t, m.RebuildUnderutilized())
	require.True(t, m.under.Contains(1))
	require.False(t, m.under.Contains(0))
}
