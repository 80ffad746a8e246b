// Package freelist implements the two flat metadata side-files: the set of
// underutilized heap page ids (U) and the set of free B-tree node ids (F).
// Both share the same on-disk shape — [count int32][value int32]*count,
// little-endian, no padding — and are rewritten in full on every change.
package freelist

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/pkg/errors"

	"btreedb/internal/dberrors"
)

// List holds a sorted set of unique int32 values backed by one metadata
// file. It is not safe for concurrent use; callers serialize access the
// same way they serialize access to the store it accompanies.
type List struct {
	path   string
	values []int32
	onSave func()
}

// Open reads path if it exists, or creates it holding an empty set.
func Open(path string) (*List, error) {
	l := &List{path: path}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := l.save(); err != nil {
			return nil, err
		}
		return l, nil
	}
	if err != nil {
		return nil, dberrors.New(dberrors.KindIOFailure, "freelist.Open", errors.Wrap(err, path))
	}
	values, err := decode(b)
	if err != nil {
		return nil, err
	}
	l.values = values
	return l, nil
}

func decode(b []byte) ([]int32, error) {
	if len(b) < 4 {
		return nil, dberrors.New(dberrors.KindStorageCorruption, "freelist.decode",
			errors.Errorf("metadata file is %d bytes, want at least 4", len(b)))
	}
	count := binary.LittleEndian.Uint32(b[0:4])
	want := 4 + int(count)*4
	if len(b) != want {
		return nil, dberrors.New(dberrors.KindStorageCorruption, "freelist.decode",
			errors.Errorf("metadata file is %d bytes, want %d for count %d", len(b), want, count))
	}
	values := make([]int32, count)
	off := 4
	for i := range values {
		values[i] = int32(binary.LittleEndian.Uint32(b[off : off+4]))
		off += 4
	}
	return values, nil
}

func encode(values []int32) []byte {
	buf := make([]byte, 4+len(values)*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(values)))
	off := 4
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(v))
		off += 4
	}
	return buf
}

// OnChange installs a callback invoked after every successful rewrite of the
// backing file, used to drive the metadata_saved counter.
func (l *List) OnChange(fn func()) { l.onSave = fn }

func (l *List) save() error {
	if err := os.WriteFile(l.path, encode(l.values), 0o666); err != nil {
		return dberrors.New(dberrors.KindIOFailure, "freelist.save", errors.Wrap(err, l.path))
	}
	if l.onSave != nil {
		l.onSave()
	}
	return nil
}

// Len reports how many values are currently held.
func (l *List) Len() int { return len(l.values) }

// Values returns the current sorted set. The slice is owned by List; callers
// must not mutate it.
func (l *List) Values() []int32 { return l.values }

// Contains reports whether v is a member of the set.
func (l *List) Contains(v int32) bool {
	i := sort.Search(len(l.values), func(i int) bool { return l.values[i] >= v })
	return i < len(l.values) && l.values[i] == v
}

// InsertSortedUnique adds v to the set, preserving sort order, and persists
// the result. Inserting an already-present value is a no-op write (the file
// is still rewritten so the caller's counter semantics stay simple).
func (l *List) InsertSortedUnique(v int32) error {
	i := sort.Search(len(l.values), func(i int) bool { return l.values[i] >= v })
	if i < len(l.values) && l.values[i] == v {
		return l.save()
	}
	l.values = append(l.values, 0)
	copy(l.values[i+1:], l.values[i:])
	l.values[i] = v
	return l.save()
}

// PopSmallest removes and returns the smallest value in the set. ok is false
// if the set was empty.
func (l *List) PopSmallest() (v int32, ok bool, err error) {
	if len(l.values) == 0 {
		return 0, false, nil
	}
	v = l.values[0]
	l.values = l.values[1:]
	if err := l.save(); err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// Remove deletes v from the set if present and persists the result.
func (l *List) Remove(v int32) error {
	i := sort.Search(len(l.values), func(i int) bool { return l.values[i] >= v })
	if i >= len(l.values) || l.values[i] != v {
		return nil
	}
	l.values = append(l.values[:i], l.values[i+1:]...)
	return l.save()
}

// Reset replaces the set wholesale with a freshly sorted copy of values and
// persists it, used by LOAD to rebuild U from a heap scan and to reinitialize
// F as empty.
func (l *List) Reset(values []int32) error {
	cp := append([]int32(nil), values...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	l.values = cp
	return l.save()
}
