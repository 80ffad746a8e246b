// Package btree implements the B-tree engine: search, insert with
// compensation-before-split, delete with compensation-before-merge, and the
// node-id bookkeeping that backs it.
package btree

import (
	"fmt"
	"sort"

	"btreedb/internal/cache"
	"btreedb/internal/codec"
	"btreedb/internal/dberrors"
	"btreedb/internal/freelist"
	"btreedb/internal/heap"
	"btreedb/internal/pagestore"
)

// noParent marks the root's parent_id.
const noParent = int32(-1)

// Tree is one B-tree index over one heap file, parameterized by branching
// factor d.
type Tree struct {
	store  *pagestore.Store
	nodes  *cache.Cache[codec.Node]
	free   *freelist.List
	heap   *heap.Manager
	d      int
	kmax   int
	kmin   int
	rootID int32
}

func newTree(store *pagestore.Store, free *freelist.List, heapMgr *heap.Manager, d, capacity int, hooks cache.Hooks) *Tree {
	t := &Tree{store: store, free: free, heap: heapMgr, d: d, kmax: codec.KMax(d), kmin: codec.KMin(d)}
	t.nodes = cache.New[codec.Node](capacity, t.readNode, t.writeNode, hooks)
	return t
}

func (t *Tree) readNode(id int32) (codec.Node, error) {
	b, err := t.store.ReadBlock(id)
	if err != nil {
		return codec.Node{}, err
	}
	return codec.DecodeNode(b, t.kmax)
}

func (t *Tree) writeNode(id int32, n codec.Node) error {
	return t.store.WriteBlock(id, n.Encode(t.kmax))
}

func (t *Tree) getNode(id int32) (codec.Node, error) { return t.nodes.Get(id) }
func (t *Tree) putNode(n codec.Node) error            { return t.nodes.Put(n.NodeID, n) }

// Create initializes a brand-new tree: a single empty root leaf at node id 0.
func Create(store *pagestore.Store, free *freelist.List, heapMgr *heap.Manager, d, capacity int, hooks cache.Hooks) (*Tree, error) {
	t := newTree(store, free, heapMgr, d, capacity, hooks)
	root := codec.Node{NodeID: 0, Leaf: true, ParentID: noParent}
	if err := t.putNode(root); err != nil {
		return nil, err
	}
	t.rootID = 0
	return t, nil
}

// Open reopens an existing tree, recovering the root by scanning for the
// unique node whose parent_id is -1.
func Open(store *pagestore.Store, free *freelist.List, heapMgr *heap.Manager, d, capacity int, hooks cache.Hooks) (*Tree, error) {
	t := newTree(store, free, heapMgr, d, capacity, hooks)
	id, err := t.findRoot()
	if err != nil {
		return nil, err
	}
	t.rootID = id
	return t, nil
}

func (t *Tree) findRoot() (int32, error) {
	n, err := t.store.BlockCount()
	if err != nil {
		return 0, err
	}
	for i := int32(0); i < n; i++ {
		node, err := t.getNode(i)
		if err != nil {
			return 0, err
		}
		if node.ParentID == noParent {
			return i, nil
		}
	}
	return 0, dberrors.New(dberrors.KindStorageCorruption, "btree.findRoot",
		fmt.Errorf("no node with parent_id=-1 in %d slots", n))
}

// RootID reports the current root node id.
func (t *Tree) RootID() int32 { return t.rootID }

// Flush writes back every dirty cached node.
func (t *Tree) Flush() error { return t.nodes.Flush() }

func (t *Tree) allocNode() (int32, error) {
	id, ok, err := t.free.PopSmallest()
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}
	return t.store.BlockCount()
}

func (t *Tree) freeNode(id int32) error {
	if err := t.free.InsertSortedUnique(id); err != nil {
		return err
	}
	t.nodes.Invalidate(id)
	return nil
}

func childIndex(parent codec.Node, childID int32) int {
	for i, c := range parent.Children {
		if c == childID {
			return i
		}
	}
	return -1
}

func indexOfKey(n codec.Node, key int32) int {
	i := sort.Search(len(n.Keys), func(i int) bool { return n.Keys[i].Key >= key })
	if i < len(n.Keys) && n.Keys[i].Key == key {
		return i
	}
	return -1
}

func (t *Tree) reparent(children []int32, parentID int32) error {
	for _, cid := range children {
		c, err := t.getNode(cid)
		if err != nil {
			return err
		}
		if c.ParentID != parentID {
			c.ParentID = parentID
			if err := t.putNode(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// search descends from the root, returning the node holding key if present,
// or the leaf where it would be inserted otherwise.
func (t *Tree) search(key int32) (codec.Node, bool, error) {
	id := t.rootID
	for {
		n, err := t.getNode(id)
		if err != nil {
			return codec.Node{}, false, err
		}
		if len(n.Keys) == 0 {
			return n, false, nil
		}
		i := sort.Search(len(n.Keys), func(i int) bool { return n.Keys[i].Key >= key })
		if i < len(n.Keys) && n.Keys[i].Key == key {
			return n, true, nil
		}
		if n.Leaf {
			return n, false, nil
		}
		id = n.Children[i]
	}
}

// Search reports the id of the node holding key, if any.
func (t *Tree) Search(key int32) (nodeID int32, found bool, err error) {
	n, found, err := t.search(key)
	if err != nil {
		return 0, false, err
	}
	return n.NodeID, found, nil
}

// Walk performs an in-order traversal of every live key entry, a diagnostic
// counterpart to the heap-page-ordered PRINT dump.
func (t *Tree) Walk(fn func(codec.KeyEntry) error) error {
	return t.walk(t.rootID, fn)
}

func (t *Tree) walk(id int32, fn func(codec.KeyEntry) error) error {
	n, err := t.getNode(id)
	if err != nil {
		return err
	}
	if n.Leaf {
		for _, k := range n.Keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		return nil
	}
	for i, k := range n.Keys {
		if err := t.walk(n.Children[i], fn); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return t.walk(n.Children[len(n.Children)-1], fn)
}
