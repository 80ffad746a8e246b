package codec

import (
	"encoding/binary"
	"fmt"
	"sort"

	"btreedb/internal/dberrors"
)

// HeapPageSize is the fixed width of one heap page block.
const HeapPageSize = 256

// HeapCapacity is the maximum number of records a heap page can hold: C.
func HeapCapacity() int {
	return (HeapPageSize - 4) / RecordSize
}

// HeapPage is the in-memory view of one heap page: a 4-byte count followed
// by that many records, strictly sorted ascending by Key.
type HeapPage struct {
	Records []Record
}

// Encode serializes p into exactly HeapPageSize zero-padded bytes.
func (p HeapPage) Encode() []byte {
	buf := make([]byte, HeapPageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(p.Records)))
	off := 4
	for _, r := range p.Records {
		copy(buf[off:off+RecordSize], r.Encode())
		off += RecordSize
	}
	return buf
}

// DecodeHeapPage reconstructs a HeapPage, reading the count and exactly
// that many records and ignoring the zero-padded remainder.
func DecodeHeapPage(b []byte) (HeapPage, error) {
	if len(b) != HeapPageSize {
		return HeapPage{}, dberrors.New(dberrors.KindStorageCorruption, "codec.DecodeHeapPage",
			fmt.Errorf("block is %d bytes, want %d", len(b), HeapPageSize))
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	if int(n) > HeapCapacity() {
		return HeapPage{}, dberrors.New(dberrors.KindStorageCorruption, "codec.DecodeHeapPage",
			fmt.Errorf("record count %d exceeds capacity %d", n, HeapCapacity()))
	}
	recs := make([]Record, n)
	off := 4
	for i := range recs {
		recs[i] = DecodeRecord(b[off : off+RecordSize])
		off += RecordSize
	}
	return HeapPage{Records: recs}, nil
}

// IndexOf returns the position of key via binary search over the sorted
// record array, or -1 if absent.
func (p HeapPage) IndexOf(key int32) int {
	i := sort.Search(len(p.Records), func(i int) bool { return p.Records[i].Key >= key })
	if i < len(p.Records) && p.Records[i].Key == key {
		return i
	}
	return -1
}

// InsertSorted splices rec into the record array at its sorted position.
func (p *HeapPage) InsertSorted(rec Record) {
	i := sort.Search(len(p.Records), func(i int) bool { return p.Records[i].Key >= rec.Key })
	p.Records = append(p.Records, Record{})
	copy(p.Records[i+1:], p.Records[i:])
	p.Records[i] = rec
}

// RemoveAt deletes the record at index i, preserving ascending order.
func (p *HeapPage) RemoveAt(i int) {
	p.Records = append(p.Records[:i], p.Records[i+1:]...)
}
