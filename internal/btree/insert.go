package btree

import (
	"fmt"

	"btreedb/internal/codec"
	"btreedb/internal/dberrors"
)

// Insert places a new record via the heap manager and splices its key entry
// into the tree, fixing any resulting overflow.
func (t *Tree) Insert(key int32, pa, pb, paub float64) error {
	leaf, found, err := t.search(key)
	if err != nil {
		return err
	}
	if found {
		return dberrors.New(dberrors.KindAlreadyExists, "btree.Insert", fmt.Errorf("key %d", key))
	}
	heapPage, err := t.heap.Insert(codec.Record{Key: key, PA: pa, PB: pb, PAUB: paub})
	if err != nil {
		return err
	}
	return t.spliceIntoLeaf(leaf.NodeID, codec.KeyEntry{Key: key, HeapPage: heapPage})
}

// InsertKey splices a (key, heap_page) pair into the tree without touching
// the heap manager, used by LOAD to rebuild the index from a heap scan that
// has already placed every record.
func (t *Tree) InsertKey(key, heapPage int32) error {
	leaf, found, err := t.search(key)
	if err != nil {
		return err
	}
	if found {
		return dberrors.New(dberrors.KindAlreadyExists, "btree.InsertKey", fmt.Errorf("key %d", key))
	}
	return t.spliceIntoLeaf(leaf.NodeID, codec.KeyEntry{Key: key, HeapPage: heapPage})
}

func insertKeyEntry(keys []codec.KeyEntry, e codec.KeyEntry) []codec.KeyEntry {
	i := 0
	for i < len(keys) && keys[i].Key < e.Key {
		i++
	}
	keys = append(keys, codec.KeyEntry{})
	copy(keys[i+1:], keys[i:])
	keys[i] = e
	return keys
}

func insertChild(children []int32, i int, child int32) []int32 {
	children = append(children, 0)
	copy(children[i+1:], children[i:])
	children[i] = child
	return children
}

func (t *Tree) spliceIntoLeaf(nodeID int32, entry codec.KeyEntry) error {
	n, err := t.getNode(nodeID)
	if err != nil {
		return err
	}
	n.Keys = insertKeyEntry(n.Keys, entry)
	if err := t.putNode(n); err != nil {
		return err
	}
	if len(n.Keys) > t.kmax {
		return t.fixOverflow(n.NodeID)
	}
	return nil
}

// fixOverflow repairs a node with more than kmax keys: compensation with a
// sibling first, split as the last resort.
func (t *Tree) fixOverflow(nodeID int32) error {
	n, err := t.getNode(nodeID)
	if err != nil {
		return err
	}
	if len(n.Keys) <= t.kmax {
		return nil
	}
	if n.ParentID == noParent {
		return t.split(n)
	}

	parent, err := t.getNode(n.ParentID)
	if err != nil {
		return err
	}
	idx := childIndex(parent, n.NodeID)

	if idx > 0 {
		left, err := t.getNode(parent.Children[idx-1])
		if err != nil {
			return err
		}
		if len(left.Keys) < t.kmax {
			return t.compensateLeft(left, n, parent, idx)
		}
	}
	if idx < len(parent.Children)-1 {
		right, err := t.getNode(parent.Children[idx+1])
		if err != nil {
			return err
		}
		if len(right.Keys) < t.kmax {
			return t.compensateRight(n, right, parent, idx)
		}
	}
	return t.split(n)
}

func combinedChildrenOf(a, b codec.Node) []int32 {
	out := make([]int32, 0, len(a.Children)+len(b.Children))
	out = append(out, a.Children...)
	out = append(out, b.Children...)
	return out
}

// compensateLeft redistributes keys/children between left and n through the
// parent's divider key at idx-1, with no node allocated.
func (t *Tree) compensateLeft(left, n, parent codec.Node, idx int) error {
	combined := make([]codec.KeyEntry, 0, len(left.Keys)+1+len(n.Keys))
	combined = append(combined, left.Keys...)
	combined = append(combined, parent.Keys[idx-1])
	combined = append(combined, n.Keys...)
	m := len(combined) / 2

	var combinedChildren []int32
	if !n.Leaf {
		combinedChildren = combinedChildrenOf(left, n)
	}

	left.Keys = append([]codec.KeyEntry(nil), combined[:m]...)
	parent.Keys[idx-1] = combined[m]
	n.Keys = append([]codec.KeyEntry(nil), combined[m+1:]...)

	if !n.Leaf {
		left.Children = append([]int32(nil), combinedChildren[:m+1]...)
		n.Children = append([]int32(nil), combinedChildren[m+1:]...)
		if err := t.reparent(left.Children, left.NodeID); err != nil {
			return err
		}
		if err := t.reparent(n.Children, n.NodeID); err != nil {
			return err
		}
	}

	if err := t.putNode(left); err != nil {
		return err
	}
	if err := t.putNode(n); err != nil {
		return err
	}
	return t.putNode(parent)
}

// compensateRight redistributes keys/children between n and right through
// the parent's divider key at idx, with no node allocated.
func (t *Tree) compensateRight(n, right, parent codec.Node, idx int) error {
	combined := make([]codec.KeyEntry, 0, len(n.Keys)+1+len(right.Keys))
	combined = append(combined, n.Keys...)
	combined = append(combined, parent.Keys[idx])
	combined = append(combined, right.Keys...)
	m := len(combined) / 2

	var combinedChildren []int32
	if !n.Leaf {
		combinedChildren = combinedChildrenOf(n, right)
	}

	n.Keys = append([]codec.KeyEntry(nil), combined[:m]...)
	parent.Keys[idx] = combined[m]
	right.Keys = append([]codec.KeyEntry(nil), combined[m+1:]...)

	if !n.Leaf {
		n.Children = append([]int32(nil), combinedChildren[:m+1]...)
		right.Children = append([]int32(nil), combinedChildren[m+1:]...)
		if err := t.reparent(n.Children, n.NodeID); err != nil {
			return err
		}
		if err := t.reparent(right.Children, right.NodeID); err != nil {
			return err
		}
	}

	if err := t.putNode(n); err != nil {
		return err
	}
	if err := t.putNode(right); err != nil {
		return err
	}
	return t.putNode(parent)
}

// split is the last resort on overflow: the middle key ascends to the
// parent (or seeds a fresh root), the right half becomes a newly allocated
// node.
func (t *Tree) split(n codec.Node) error {
	m := len(n.Keys) / 2
	midKey := n.Keys[m]

	newID, err := t.allocNode()
	if err != nil {
		return err
	}

	rightKeys := append([]codec.KeyEntry(nil), n.Keys[m+1:]...)
	leftKeys := append([]codec.KeyEntry(nil), n.Keys[:m]...)

	var leftChildren, rightChildren []int32
	if !n.Leaf {
		leftChildren = append([]int32(nil), n.Children[:m+1]...)
		rightChildren = append([]int32(nil), n.Children[m+1:]...)
	}

	right := codec.Node{NodeID: newID, Leaf: n.Leaf, ParentID: n.ParentID, Keys: rightKeys, Children: rightChildren}
	n.Keys = leftKeys
	n.Children = leftChildren

	if !n.Leaf {
		if err := t.reparent(right.Children, right.NodeID); err != nil {
			return err
		}
	}

	wasRoot := n.ParentID == noParent
	if err := t.putNode(n); err != nil {
		return err
	}
	if err := t.putNode(right); err != nil {
		return err
	}

	if wasRoot {
		return t.splitRoot(n, right, midKey)
	}

	parent, err := t.getNode(n.ParentID)
	if err != nil {
		return err
	}
	idx := childIndex(parent, n.NodeID)
	parent.Keys = insertKeyEntry(parent.Keys, midKey)
	parent.Children = insertChild(parent.Children, idx+1, right.NodeID)
	if err := t.putNode(parent); err != nil {
		return err
	}
	if len(parent.Keys) > t.kmax {
		return t.fixOverflow(parent.NodeID)
	}
	return nil
}

// splitRoot builds a fresh root over left and right after the old root
// split, since the root has no parent to push the middle key into.
func (t *Tree) splitRoot(left, right codec.Node, midKey codec.KeyEntry) error {
	newRootID, err := t.allocNode()
	if err != nil {
		return err
	}
	left.ParentID = newRootID
	right.ParentID = newRootID
	if err := t.putNode(left); err != nil {
		return err
	}
	if err := t.putNode(right); err != nil {
		return err
	}
	root := codec.Node{
		NodeID:   newRootID,
		Leaf:     false,
		ParentID: noParent,
		Keys:     []codec.KeyEntry{midKey},
		Children: []int32{left.NodeID, right.NodeID},
	}
	if err := t.putNode(root); err != nil {
		return err
	}
	t.rootID = newRootID
	return nil
}
