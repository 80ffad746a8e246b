// Package heap implements the Heap Manager: placement and removal of fixed
// records into the paged heap file, and maintenance of the underutilized
// page set that drives placement.
package heap

import (
	"fmt"

	"btreedb/internal/cache"
	"btreedb/internal/codec"
	"btreedb/internal/dberrors"
	"btreedb/internal/freelist"
	"btreedb/internal/pagestore"
)

// Manager owns the heap store, its page cache, and the underutilized-page
// side list.
type Manager struct {
	store *pagestore.Store
	pages *cache.Cache[codec.HeapPage]
	under *freelist.List
}

// New builds a Manager over an already-open store and underutilized list,
// wiring a page cache of the given capacity through hit/miss/save hooks.
func New(store *pagestore.Store, under *freelist.List, capacity int, hooks cache.Hooks) *Manager {
	m := &Manager{store: store, under: under}
	m.pages = cache.New[codec.HeapPage](capacity, m.readPage, m.writePage, hooks)
	return m
}

func (m *Manager) readPage(idx int32) (codec.HeapPage, error) {
	b, err := m.store.ReadBlock(idx)
	if err != nil {
		return codec.HeapPage{}, err
	}
	return codec.DecodeHeapPage(b)
}

func (m *Manager) writePage(idx int32, p codec.HeapPage) error {
	return m.store.WriteBlock(idx, p.Encode())
}

// Capacity reports C, the maximum live record count per page.
func (m *Manager) Capacity() int { return codec.HeapCapacity() }

// GetPage returns the decoded page at idx.
func (m *Manager) GetPage(idx int32) (codec.HeapPage, error) {
	return m.pages.Get(idx)
}

// Insert places rec on a target page chosen from the underutilized list (or
// a freshly appended page if none is underutilized), and returns that
// page's index.
func (m *Manager) Insert(rec codec.Record) (int32, error) {
	idx, ok, err := m.under.PopSmallest()
	if err != nil {
		return 0, err
	}
	if !ok {
		n, err := m.store.BlockCount()
		if err != nil {
			return 0, err
		}
		idx = n
		if err := m.pages.Put(idx, codec.HeapPage{}); err != nil {
			return 0, err
		}
		// A freshly allocated page is immediately underutilized until it
		// fills; reinstate it below along with the ordinary insert path.
	}

	page, err := m.pages.Get(idx)
	if err != nil {
		return 0, err
	}
	page.InsertSorted(rec)
	if err := m.pages.Put(idx, page); err != nil {
		return 0, err
	}

	if len(page.Records) < m.Capacity() {
		if err := m.under.InsertSortedUnique(idx); err != nil {
			return 0, err
		}
	}
	return idx, nil
}

// Remove deletes the record with key from page idx. If the page was full
// before removal, it re-enters the underutilized list; an already
// underutilized page simply stays there.
func (m *Manager) Remove(idx int32, key int32) error {
	page, err := m.pages.Get(idx)
	if err != nil {
		return err
	}
	i := page.IndexOf(key)
	if i < 0 {
		return dberrors.New(dberrors.KindInvariantViolation, "heap.Remove",
			fmt.Errorf("key %d not present on page %d", key, idx))
	}
	wasFull := len(page.Records) == m.Capacity()
	page.RemoveAt(i)
	if err := m.pages.Put(idx, page); err != nil {
		return err
	}
	if wasFull {
		return m.under.InsertSortedUnique(idx)
	}
	return nil
}

// Update rewrites the three probability fields of the record with key on
// page idx in place. Keys are never rewritten.
func (m *Manager) Update(idx int32, key int32, pa, pb, paub float64) error {
	page, err := m.pages.Get(idx)
	if err != nil {
		return err
	}
	i := page.IndexOf(key)
	if i < 0 {
		return dberrors.New(dberrors.KindInvariantViolation, "heap.Update",
			fmt.Errorf("key %d not present on page %d", key, idx))
	}
	page.Records[i].PA = pa
	page.Records[i].PB = pb
	page.Records[i].PAUB = paub
	return m.pages.Put(idx, page)
}

// Scan visits every page in the heap file in ascending index order, calling
// fn with the page index and its decoded contents.
func (m *Manager) Scan(fn func(idx int32, page codec.HeapPage) error) error {
	n, err := m.store.BlockCount()
	if err != nil {
		return err
	}
	for i := int32(0); i < n; i++ {
		page, err := m.pages.Get(i)
		if err != nil {
			return err
		}
		if err := fn(i, page); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes back every dirty cached page.
func (m *Manager) Flush() error { return m.pages.Flush() }

// RebuildUnderutilized resets U by scanning every page for n < C, used by
// LOAD.
func (m *Manager) RebuildUnderutilized() error {
	var under []int32
	if err := m.Scan(func(idx int32, page codec.HeapPage) error {
		if len(page.Records) < m.Capacity() {
			under = append(under, idx)
		}
		return nil
	}); err != nil {
		return err
	}
	return m.under.Reset(under)
}
