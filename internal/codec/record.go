// Package codec implements pure, side-effect-free conversions between the
// structured values the storage engine works with (records, heap pages,
// B-tree nodes) and the fixed-width byte blocks it persists. Encoders
// always emit exactly the target width, zero-padded; decoders read a
// count field and then exactly that many live entries, ignoring whatever
// trailing bytes remain.
package codec

import (
	"encoding/binary"
	"math"
)

// RecordSize is the encoded width of one heap record: a 32-bit key plus
// three 64-bit probability fields, native little-endian.
const RecordSize = 4 + 8*3

// Record is a single fixed-size record keyed by a 32-bit integer, carrying
// three probability fields (P(A), P(B), P(A∪B)).
type Record struct {
	Key  int32
	PA   float64
	PB   float64
	PAUB float64
}

// Encode serializes r into exactly RecordSize little-endian bytes.
func (r Record) Encode() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Key))
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(r.PA))
	binary.LittleEndian.PutUint64(buf[12:20], math.Float64bits(r.PB))
	binary.LittleEndian.PutUint64(buf[20:28], math.Float64bits(r.PAUB))
	return buf
}

// DecodeRecord reconstructs a Record from its RecordSize-byte encoding.
func DecodeRecord(b []byte) Record {
	return Record{
		Key:  int32(binary.LittleEndian.Uint32(b[0:4])),
		PA:   math.Float64frombits(binary.LittleEndian.Uint64(b[4:12])),
		PB:   math.Float64frombits(binary.LittleEndian.Uint64(b[12:20])),
		PAUB: math.Float64frombits(binary.LittleEndian.Uint64(b[20:28])),
	}
}
