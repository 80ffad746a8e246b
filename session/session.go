// Package session implements the Session Façade: it bundles the four
// currently active file paths, dispatches the operation vocabulary, and
// owns the process-wide counters and caches.
package session

import (
	"math/rand"
	"os"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"btreedb/internal/btree"
	"btreedb/internal/cache"
	"btreedb/internal/codec"
	"btreedb/internal/config"
	"btreedb/internal/dberrors"
	"btreedb/internal/dblog"
	"btreedb/internal/freelist"
	"btreedb/internal/heap"
	"btreedb/internal/pagestore"
)

// Files holds the four on-disk paths derived from a database's base name.
type Files struct {
	Data          string // B_data.dat: heap file
	Nodes         string // B_nodes.dat: node file
	Metadata      string // B_metadata.dat: underutilized heap pages
	NodesMetadata string // B_nodes_metadata.dat: free node ids
}

// PathsFor derives the four standard file paths from base.
func PathsFor(base string) Files {
	return Files{
		Data:          base + "_data.dat",
		Nodes:         base + "_nodes.dat",
		Metadata:      base + "_metadata.dat",
		NodesMetadata: base + "_nodes_metadata.dat",
	}
}

// Counters tracks every I/O event the session performs, snapshot-readable
// for the PRINT/STATS collaborators.
type Counters struct {
	NodesSavedToDisk     int64
	NodesLoadedFromDisk  int64
	NodesLoadedFromCache int64
	PagesSavedToDisk     int64
	PagesLoadedFromDisk  int64
	PagesLoadedFromCache int64
	MetadataLoaded       int64
	MetadataSaved        int64
}

// OpStats is the difference between two Counters snapshots, letting a
// caller see exactly what one operation cost in I/O.
type OpStats struct {
	Counters
}

func diff(after, before Counters) OpStats {
	return OpStats{Counters{
		NodesSavedToDisk:     after.NodesSavedToDisk - before.NodesSavedToDisk,
		NodesLoadedFromDisk:  after.NodesLoadedFromDisk - before.NodesLoadedFromDisk,
		NodesLoadedFromCache: after.NodesLoadedFromCache - before.NodesLoadedFromCache,
		PagesSavedToDisk:     after.PagesSavedToDisk - before.PagesSavedToDisk,
		PagesLoadedFromDisk:  after.PagesLoadedFromDisk - before.PagesLoadedFromDisk,
		PagesLoadedFromCache: after.PagesLoadedFromCache - before.PagesLoadedFromCache,
		MetadataLoaded:       after.MetadataLoaded - before.MetadataLoaded,
		MetadataSaved:        after.MetadataSaved - before.MetadataSaved,
	}}
}

// Session is the single owner of the four files, the caches, and the
// counters for one open database.
type Session struct {
	files   Files
	cfg     config.Config
	log     *zap.SugaredLogger
	counter Counters

	nodeStore *pagestore.Store
	heapStore *pagestore.Store
	under     *freelist.List
	free      *freelist.List

	heapMgr *heap.Manager
	tree    *btree.Tree
}

// Counters returns a point-in-time snapshot of the I/O counters.
func (s *Session) Counters() Counters { return s.counter }

func (s *Session) heapHooks() cache.Hooks {
	return cache.Hooks{
		OnCacheHit: func() { s.counter.PagesLoadedFromCache++ },
		OnDiskLoad: func() { s.counter.PagesLoadedFromDisk++ },
		OnDiskSave: func() { s.counter.PagesSavedToDisk++ },
	}
}

func (s *Session) nodeHooks() cache.Hooks {
	return cache.Hooks{
		OnCacheHit: func() { s.counter.NodesLoadedFromCache++ },
		OnDiskLoad: func() { s.counter.NodesLoadedFromDisk++ },
		OnDiskSave: func() { s.counter.NodesSavedToDisk++ },
	}
}

func (s *Session) metadataHook() func() {
	return func() { s.counter.MetadataSaved++ }
}

// removeFiles deletes every path in files, tolerating paths that don't
// exist (a base that has never been CREATEd before).
func removeFiles(files Files) error {
	for _, path := range []string{files.Data, files.Nodes, files.Metadata, files.NodesMetadata} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return dberrors.New(dberrors.KindIOFailure, "session.Create", pkgerrors.Wrap(err, path))
		}
	}
	return nil
}

// Create overwrites the four files for base and initializes an empty tree
// with a single empty root node and a single empty heap page. Any prior
// contents at base are discarded first, so a stale node or heap page from
// an earlier CREATE can never leak into the fresh database.
func Create(base string, cfg config.Config, log *zap.SugaredLogger) (*Session, error) {
	if log == nil {
		log = dblog.Nop()
	}
	s := &Session{files: PathsFor(base), cfg: cfg, log: log}

	if err := removeFiles(s.files); err != nil {
		return nil, err
	}

	var err error
	if s.heapStore, err = pagestore.Open(s.files.Data, codec.HeapPageSize); err != nil {
		return nil, err
	}
	if s.nodeStore, err = pagestore.Open(s.files.Nodes, codec.NodeSize); err != nil {
		return nil, err
	}
	if s.under, err = freelist.Open(s.files.Metadata); err != nil {
		return nil, err
	}
	if s.free, err = freelist.Open(s.files.NodesMetadata); err != nil {
		return nil, err
	}
	s.under.OnChange(s.metadataHook())
	s.free.OnChange(s.metadataHook())

	if err := s.under.Reset([]int32{0}); err != nil {
		return nil, err
	}
	if err := s.free.Reset(nil); err != nil {
		return nil, err
	}

	s.heapMgr = heap.New(s.heapStore, s.under, cfg.PageCache, s.heapHooks())

	s.tree, err = btree.Create(s.nodeStore, s.free, s.heapMgr, cfg.D, cfg.NodeCache, s.nodeHooks())
	if err != nil {
		return nil, err
	}
	log.Infow("created database", "base", base, "d", cfg.D)
	return s, nil
}

// Load reopens base's files as-is, without rebuilding anything. Use
// RebuildIndex for the LOAD operation's full rescan semantics.
func Load(base string, cfg config.Config, log *zap.SugaredLogger) (*Session, error) {
	if log == nil {
		log = dblog.Nop()
	}
	s := &Session{files: PathsFor(base), cfg: cfg, log: log}

	var err error
	if s.heapStore, err = pagestore.Open(s.files.Data, codec.HeapPageSize); err != nil {
		return nil, err
	}
	if s.nodeStore, err = pagestore.Open(s.files.Nodes, codec.NodeSize); err != nil {
		return nil, err
	}
	if s.under, err = freelist.Open(s.files.Metadata); err != nil {
		return nil, err
	}
	if s.free, err = freelist.Open(s.files.NodesMetadata); err != nil {
		return nil, err
	}
	s.counter.MetadataLoaded += 2
	s.under.OnChange(s.metadataHook())
	s.free.OnChange(s.metadataHook())

	s.heapMgr = heap.New(s.heapStore, s.under, cfg.PageCache, s.heapHooks())
	s.tree, err = btree.Open(s.nodeStore, s.free, s.heapMgr, cfg.D, cfg.NodeCache, s.nodeHooks())
	if err != nil {
		return nil, err
	}
	log.Infow("loaded database", "base", base)
	return s, nil
}

// RebuildIndex implements LOAD's rescan: reset caches, rescan every heap
// page, re-insert each record into a fresh tree, and rebuild U by scanning
// for underutilized pages. F is re-initialized empty.
func RebuildIndex(base string, cfg config.Config, log *zap.SugaredLogger) (*Session, error) {
	if log == nil {
		log = dblog.Nop()
	}
	s := &Session{files: PathsFor(base), cfg: cfg, log: log}

	var err error
	if s.heapStore, err = pagestore.Open(s.files.Data, codec.HeapPageSize); err != nil {
		return nil, err
	}
	if s.nodeStore, err = pagestore.Open(s.files.Nodes, codec.NodeSize); err != nil {
		return nil, err
	}
	if s.under, err = freelist.Open(s.files.Metadata); err != nil {
		return nil, err
	}
	if s.free, err = freelist.Open(s.files.NodesMetadata); err != nil {
		return nil, err
	}
	s.counter.MetadataLoaded += 2
	s.under.OnChange(s.metadataHook())
	s.free.OnChange(s.metadataHook())

	if err := s.free.Reset(nil); err != nil {
		return nil, err
	}

	s.heapMgr = heap.New(s.heapStore, s.under, cfg.PageCache, s.heapHooks())
	s.tree, err = btree.Create(s.nodeStore, s.free, s.heapMgr, cfg.D, cfg.NodeCache, s.nodeHooks())
	if err != nil {
		return nil, err
	}

	if err := s.heapMgr.Scan(func(idx int32, page codec.HeapPage) error {
		for _, rec := range page.Records {
			if err := s.tree.InsertKey(rec.Key, idx); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.heapMgr.RebuildUnderutilized(); err != nil {
		return nil, err
	}
	log.Infow("rebuilt index", "base", base)
	return s, nil
}

// Insert places a new record. Returns dberrors.KindAlreadyExists if key is
// already present.
func (s *Session) Insert(key int32, pa, pb, paub float64) error {
	return s.tree.Insert(key, pa, pb, paub)
}

// Delete removes a record. Returns dberrors.KindNotFound if key is absent.
func (s *Session) Delete(key int32) error {
	return s.tree.Delete(key)
}

// Update rewrites a record's probability fields in place.
func (s *Session) Update(key int32, pa, pb, paub float64) error {
	return s.tree.Update(key, pa, pb, paub)
}

// Search reports the node id holding key, if any.
func (s *Session) Search(key int32) (nodeID int32, found bool, err error) {
	return s.tree.Search(key)
}

// Print dumps every record, page by page, in ascending page order.
func (s *Session) Print(fn func(page int32, rec codec.Record) error) error {
	return s.heapMgr.Scan(func(idx int32, page codec.HeapPage) error {
		for _, rec := range page.Records {
			if err := fn(idx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddRandom inserts up to n unique random keys with random probability
// fields, skipping any key that already exists, and returns how many were
// actually inserted.
func (s *Session) AddRandom(n int, rng *rand.Rand) (int, error) {
	inserted := 0
	for i := 0; i < n; i++ {
		key := rng.Int31()
		err := s.tree.Insert(key, rng.Float64(), rng.Float64(), rng.Float64())
		if err == nil {
			inserted++
			continue
		}
		if dberrors.Is(err, dberrors.KindAlreadyExists) {
			continue
		}
		return inserted, err
	}
	return inserted, nil
}

// Flush writes back all dirty cache entries in both stores.
func (s *Session) Flush() error {
	if err := s.tree.Flush(); err != nil {
		return err
	}
	return s.heapMgr.Flush()
}

// Close flushes and releases the underlying file handles.
func (s *Session) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if err := s.nodeStore.Close(); err != nil {
		return err
	}
	return s.heapStore.Close()
}

// WithStats runs fn and returns the I/O delta it incurred, for collaborators
// that want per-operation cost reporting.
func (s *Session) WithStats(fn func() error) (OpStats, error) {
	before := s.counter
	err := fn()
	return diff(s.counter, before), err
}

