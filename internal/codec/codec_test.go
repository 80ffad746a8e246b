package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	r := Record{Key: 42, PA: 0.1, PB: 0.2, PAUB: 0.3}
	got := DecodeRecord(r.Encode())
	require.Equal(t, r, got)
}

func TestRecordEncodeWidth(t *testing.T) {
	r := Record{Key: -7, PA: 1, PB: 2, PAUB: 3}
	require.Len(t, r.Encode(), RecordSize)
}

func TestHeapPageRoundTrip(t *testing.T) {
	p := HeapPage{Records: []Record{
		{Key: 1, PA: 0.1, PB: 0.2, PAUB: 0.3},
		{Key: 5, PA: 0.4, PB: 0.5, PAUB: 0.6},
		{Key: 9, PA: 0.7, PB: 0.8, PAUB: 0.9},
	}}
	enc := p.Encode()
	require.Len(t, enc, HeapPageSize)

	got, err := DecodeHeapPage(enc)
	require.NoError(t, err)
	require.Equal(t, p.Records, got.Records)
}

func TestHeapPageEmptyRoundTrip(t *testing.T) {
	enc := HeapPage{}.Encode()
	got, err := DecodeHeapPage(enc)
	require.NoError(t, err)
	require.Empty(t, got.Records)
}

func TestHeapPageCapacityMatchesSpec(t *testing.T) {
	require.Equal(t, 9, HeapCapacity())
}

func TestHeapPageTrailingBytesIgnored(t *testing.T) {
	p := HeapPage{Records: []Record{{Key: 3, PA: 1, PB: 1, PAUB: 1}}}
	enc := p.Encode()
	// Corrupt a trailing zero-padded byte; decode must still succeed and
	// only the live record must be visible.
	enc[HeapPageSize-1] = 0xFF
	got, err := DecodeHeapPage(enc)
	require.NoError(t, err)
	require.Equal(t, p.Records, got.Records)
}

func TestHeapPageRejectsCountOverCapacity(t *testing.T) {
	enc := make([]byte, HeapPageSize)
	enc[0] = 0xFF // count = 255, way over capacity
	_, err := DecodeHeapPage(enc)
	require.Error(t, err)
}

func TestHeapPageIndexOfAndMutation(t *testing.T) {
	var p HeapPage
	p.InsertSorted(Record{Key: 5})
	p.InsertSorted(Record{Key: 1})
	p.InsertSorted(Record{Key: 3})

	require.Equal(t, []int32{1, 3, 5}, keysOf(p))
	require.Equal(t, 1, p.IndexOf(3))
	require.Equal(t, -1, p.IndexOf(4))

	p.RemoveAt(1)
	require.Equal(t, []int32{1, 5}, keysOf(p))
}

func keysOf(p HeapPage) []int32 {
	out := make([]int32, len(p.Records))
	for i, r := range p.Records {
		out[i] = r.Key
	}
	return out
}

func TestNodeRoundTripLeaf(t *testing.T) {
	n := Node{
		NodeID:   3,
		Leaf:     true,
		ParentID: 1,
		Keys: []KeyEntry{
			{Key: 10, HeapPage: 0},
			{Key: 20, HeapPage: 2},
		},
	}
	kmax := KMax(2)
	got, err := DecodeNode(n.Encode(kmax), kmax)
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestNodeRoundTripInternal(t *testing.T) {
	n := Node{
		NodeID:   1,
		Leaf:     false,
		ParentID: -1,
		Keys:     []KeyEntry{{Key: 30, HeapPage: 4}},
		Children: []int32{2, 3},
	}
	kmax := KMax(2)
	got, err := DecodeNode(n.Encode(kmax), kmax)
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestNodeRoundTripEmptyRoot(t *testing.T) {
	n := Node{NodeID: 0, Leaf: true, ParentID: -1}
	kmax := KMax(2)
	got, err := DecodeNode(n.Encode(kmax), kmax)
	require.NoError(t, err)
	require.Equal(t, n.NodeID, got.NodeID)
	require.True(t, got.Leaf)
	require.Equal(t, int32(-1), got.ParentID)
	require.Empty(t, got.Keys)
}

func TestNodeRejectsWrongWidth(t *testing.T) {
	_, err := DecodeNode(make([]byte, NodeSize-1), KMax(2))
	require.Error(t, err)
}

func TestNodeRejectsCountOverKMax(t *testing.T) {
	n := Node{NodeID: 0, Leaf: true, ParentID: -1}
	buf := n.Encode(KMax(2))
	buf[5] = 0xFF // count field way over kmax
	_, err := DecodeNode(buf, KMax(2))
	require.Error(t, err)
}

func TestKMaxKMinDefaults(t *testing.T) {
	require.Equal(t, 4, KMax(2))
	require.Equal(t, 2, KMin(2))
}
