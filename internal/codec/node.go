package codec

import (
	"encoding/binary"
	"fmt"

	"btreedb/internal/dberrors"
)

// NodeSize is the fixed width of one B-tree node slot.
const NodeSize = 555

// KMax and KMin derive the node's structural bounds from the branching
// factor d: at most 2d keys, at least d (root exempt).
func KMax(d int) int { return 2 * d }
func KMin(d int) int { return d }

// KeyEntry is a (key, heap_page) pair: the only pointer from the index to
// the heap for that key.
type KeyEntry struct {
	Key      int32
	HeapPage int32
}

// Node is the in-memory view of one B-tree node. Keys has length n;
// Children has length n+1 for internal nodes and is empty for leaves —
// unlike the on-disk layout, which always reserves KMax/KMax+1 slots and
// zero/−1-fills the rest, the in-memory form only carries the live prefix.
type Node struct {
	NodeID   int32
	Leaf     bool
	ParentID int32 // -1 for the root
	Keys     []KeyEntry
	Children []int32
}

// Encode serializes n into exactly NodeSize bytes for the given kmax.
// Key-entry slots at index >= len(Keys) and child slots at index >
// len(Children)-1 are zero/-1-filled per the on-disk layout.
func (n Node) Encode(kmax int) []byte {
	buf := make([]byte, NodeSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n.NodeID))
	if n.Leaf {
		buf[4] = 1
	}
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(n.Keys)))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(n.ParentID))

	off := 13
	for i := 0; i < kmax; i++ {
		if i < len(n.Keys) {
			binary.LittleEndian.PutUint32(buf[off:off+4], uint32(n.Keys[i].Key))
			binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(n.Keys[i].HeapPage))
		}
		off += 8
	}
	for i := 0; i < kmax+1; i++ {
		child := int32(-1)
		if i < len(n.Children) {
			child = n.Children[i]
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(child))
		off += 4
	}
	return buf
}

// DecodeNode reconstructs a Node from its NodeSize-byte slot for the given
// kmax, reading n live key entries and (for internal nodes) n+1 live
// children from their reserved slots.
func DecodeNode(b []byte, kmax int) (Node, error) {
	if len(b) != NodeSize {
		return Node{}, dberrors.New(dberrors.KindStorageCorruption, "codec.DecodeNode",
			fmt.Errorf("node slot is %d bytes, want %d", len(b), NodeSize))
	}
	count := int32(binary.LittleEndian.Uint32(b[5:9]))
	if count < 0 || int(count) > kmax {
		return Node{}, dberrors.New(dberrors.KindStorageCorruption, "codec.DecodeNode",
			fmt.Errorf("key count %d out of range [0,%d]", count, kmax))
	}

	n := Node{
		NodeID:   int32(binary.LittleEndian.Uint32(b[0:4])),
		Leaf:     b[4] == 1,
		ParentID: int32(binary.LittleEndian.Uint32(b[9:13])),
		Keys:     make([]KeyEntry, count),
	}

	off := 13
	for i := 0; i < kmax; i++ {
		if i < int(count) {
			n.Keys[i] = KeyEntry{
				Key:      int32(binary.LittleEndian.Uint32(b[off : off+4])),
				HeapPage: int32(binary.LittleEndian.Uint32(b[off+4 : off+8])),
			}
		}
		off += 8
	}

	if !n.Leaf {
		n.Children = make([]int32, count+1)
		for i := 0; i < kmax+1; i++ {
			child := int32(binary.LittleEndian.Uint32(b[off : off+4]))
			if i <= int(count) {
				n.Children[i] = child
			}
			off += 4
		}
	}
	return n, nil
}
