package btree

import (
	"fmt"

	"btreedb/internal/codec"
	"btreedb/internal/dberrors"
)

// Delete removes key, relocating an internal-node delete to the leaf level
// via predecessor replacement, then fixes any resulting underflow.
func (t *Tree) Delete(key int32) error {
	n, found, err := t.search(key)
	if err != nil {
		return err
	}
	if !found {
		return dberrors.New(dberrors.KindNotFound, "btree.Delete", fmt.Errorf("key %d", key))
	}
	if n.Leaf {
		return t.deleteFromLeaf(n, key)
	}
	return t.deleteFromInternal(n, key)
}

func removeKeyAt(keys []codec.KeyEntry, i int) []codec.KeyEntry {
	return append(keys[:i], keys[i+1:]...)
}

func removeChildAt(children []int32, i int) []int32 {
	return append(children[:i], children[i+1:]...)
}

func (t *Tree) deleteFromLeaf(n codec.Node, key int32) error {
	i := indexOfKey(n, key)
	if i < 0 {
		return dberrors.New(dberrors.KindInvariantViolation, "btree.deleteFromLeaf",
			fmt.Errorf("key %d not present in node %d", key, n.NodeID))
	}
	heapPage := n.Keys[i].HeapPage
	return t.removeLeafEntry(n, i, key, heapPage)
}

// removeLeafEntry splices the entry at index i out of leaf n's key array
// and removes the heap record for (heapKey, heapPage). For an ordinary
// leaf delete these name the same record; for a predecessor-replacement
// delete (see deleteFromInternal) they differ — the array slot spliced out
// belongs to the predecessor, but the heap record freed belongs to the
// original key being deleted, since the predecessor's record stays on disk
// and is now addressed by the separator that took its place.
func (t *Tree) removeLeafEntry(n codec.Node, i int, heapKey, heapPage int32) error {
	n.Keys = removeKeyAt(n.Keys, i)
	if err := t.putNode(n); err != nil {
		return err
	}
	if err := t.heap.Remove(heapPage, heapKey); err != nil {
		return err
	}
	if n.NodeID == t.rootID {
		// The root leaf may empty out entirely; it stays in place rather
		// than becoming a sentinel, and simply grows again on next insert.
		return nil
	}
	if len(n.Keys) < t.kmin {
		return t.fixUnderflow(n.NodeID)
	}
	return nil
}

// deleteFromInternal replaces the entry at key with its in-order
// predecessor (the rightmost key of the left child's subtree — always
// present, since every internal node has n+1 live children). The
// predecessor's record stays where it is on the heap and becomes the new
// separator; the record physically removed from the heap is the original
// key's, not the predecessor's.
func (t *Tree) deleteFromInternal(n codec.Node, key int32) error {
	i := indexOfKey(n, key)
	if i < 0 {
		return dberrors.New(dberrors.KindInvariantViolation, "btree.deleteFromInternal",
			fmt.Errorf("key %d not present in node %d", key, n.NodeID))
	}
	origHeapPage := n.Keys[i].HeapPage

	predLeaf, err := t.rightmostLeaf(n.Children[i])
	if err != nil {
		return err
	}
	predIdx := len(predLeaf.Keys) - 1
	pred := predLeaf.Keys[predIdx]

	n.Keys[i] = pred
	if err := t.putNode(n); err != nil {
		return err
	}
	return t.removeLeafEntry(predLeaf, predIdx, key, origHeapPage)
}

func (t *Tree) rightmostLeaf(id int32) (codec.Node, error) {
	for {
		n, err := t.getNode(id)
		if err != nil {
			return codec.Node{}, err
		}
		if n.Leaf {
			return n, nil
		}
		id = n.Children[len(n.Children)-1]
	}
}

// fixUnderflow repairs a non-root node with fewer than kmin keys: rotation
// through a sibling with slack first, merge as the last resort.
func (t *Tree) fixUnderflow(nodeID int32) error {
	n, err := t.getNode(nodeID)
	if err != nil {
		return err
	}
	if n.NodeID == t.rootID || len(n.Keys) >= t.kmin {
		return nil
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
		if len(left.Keys) > t.kmin {
			return t.rotateFromLeft(left, n, parent, idx)
		}
	}
	if idx < len(parent.Children)-1 {
		right, err := t.getNode(parent.Children[idx+1])
		if err != nil {
			return err
		}
		if len(right.Keys) > t.kmin {
			return t.rotateFromRight(n, right, parent, idx)
		}
	}

	if idx > 0 {
		return t.merge(parent.Children[idx-1], n.NodeID, parent, idx-1)
	}
	return t.merge(n.NodeID, parent.Children[idx+1], parent, idx)
}

// rotateFromLeft takes the left sibling's last key through the parent
// divider at idx-1.
func (t *Tree) rotateFromLeft(left, n, parent codec.Node, idx int) error {
	divider := parent.Keys[idx-1]
	n.Keys = append([]codec.KeyEntry{divider}, n.Keys...)
	lastLeft := left.Keys[len(left.Keys)-1]
	left.Keys = left.Keys[:len(left.Keys)-1]
	parent.Keys[idx-1] = lastLeft

	if !n.Leaf {
		moved := left.Children[len(left.Children)-1]
		left.Children = left.Children[:len(left.Children)-1]
		n.Children = append([]int32{moved}, n.Children...)
		if err := t.reparent([]int32{moved}, n.NodeID); err != nil {
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

// rotateFromRight takes the right sibling's first key through the parent
// divider at idx.
func (t *Tree) rotateFromRight(n, right, parent codec.Node, idx int) error {
	divider := parent.Keys[idx]
	n.Keys = append(n.Keys, divider)
	firstRight := right.Keys[0]
	right.Keys = right.Keys[1:]
	parent.Keys[idx] = firstRight

	if !n.Leaf {
		moved := right.Children[0]
		right.Children = right.Children[1:]
		n.Children = append(n.Children, moved)
		if err := t.reparent([]int32{moved}, n.NodeID); err != nil {
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

// merge sinks the parent's divider key at dividerIdx between leftID and
// rightID, appending rightID's contents onto leftID and freeing rightID's
// node id. If the parent empties out and was the root, leftID becomes the
// new root.
func (t *Tree) merge(leftID, rightID int32, parent codec.Node, dividerIdx int) error {
	left, err := t.getNode(leftID)
	if err != nil {
		return err
	}
	right, err := t.getNode(rightID)
	if err != nil {
		return err
	}

	left.Keys = append(left.Keys, parent.Keys[dividerIdx])
	left.Keys = append(left.Keys, right.Keys...)
	if !left.Leaf {
		left.Children = append(left.Children, right.Children...)
		if err := t.reparent(right.Children, left.NodeID); err != nil {
			return err
		}
	}
	if err := t.putNode(left); err != nil {
		return err
	}
	if err := t.freeNode(rightID); err != nil {
		return err
	}

	parent.Keys = removeKeyAt(parent.Keys, dividerIdx)
	ci := childIndex(parent, rightID)
	parent.Children = removeChildAt(parent.Children, ci)

	if parent.NodeID == t.rootID && len(parent.Keys) == 0 {
		left.ParentID = noParent
		if err := t.putNode(left); err != nil {
			return err
		}
		oldRoot := parent.NodeID
		t.rootID = left.NodeID
		return t.freeNode(oldRoot)
	}

	if err := t.putNode(parent); err != nil {
		return err
	}
	if len(parent.Keys) < t.kmin {
		return t.fixUnderflow(parent.NodeID)
	}
	return nil
}

// Update rewrites a record's probability fields in place without touching
// its key.
func (t *Tree) Update(key int32, pa, pb, paub float64) error {
	n, found, err := t.search(key)
	if err != nil {
		return err
	}
	if !found {
		return dberrors.New(dberrors.KindNotFound, "btree.Update", fmt.Errorf("key %d", key))
	}
	i := indexOfKey(n, key)
	return t.heap.Update(n.Keys[i].HeapPage, key, pa, pb, paub)
}
