// Package pagestore implements the paged file store: it opens or creates a
// file, seeks to block_index * width, and reads or writes whole blocks.
// The heap store (width 256) and the node store (width 555) are each one
// instance of Store.
package pagestore

import (
	"errors"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"

	"btreedb/internal/dberrors"
)

// Store is a sequence of fixed-width blocks addressed by index, backed by
// one file.
type Store struct {
	f     *os.File
	width int
}

// Open creates path if absent, writing exactly one empty (all-zero) block
// so the file always has at least one page/node slot, then returns a
// Store bound to it with the given block width.
func Open(path string, width int) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return nil, dberrors.New(dberrors.KindIOFailure, "pagestore.Open", pkgerrors.Wrap(err, path))
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, dberrors.New(dberrors.KindIOFailure, "pagestore.Open", pkgerrors.Wrap(err, path))
	}
	s := &Store{f: f, width: width}
	if st.Size() == 0 {
		if err := s.WriteBlock(0, make([]byte, width)); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error { return s.f.Close() }

func (s *Store) offset(idx int32) int64 { return int64(idx) * int64(s.width) }

// BlockCount reports how many whole blocks the file currently holds.
func (s *Store) BlockCount() (int32, error) {
	st, err := s.f.Stat()
	if err != nil {
		return 0, dberrors.New(dberrors.KindIOFailure, "pagestore.BlockCount", err)
	}
	return int32(st.Size() / int64(s.width)), nil
}

// ReadBlock returns the width-byte block at idx. Reading past end of file
// yields an all-zero block (decoders treat that as an empty page/node)
// rather than an error.
func (s *Store) ReadBlock(idx int32) ([]byte, error) {
	buf := make([]byte, s.width)
	_, err := s.f.ReadAt(buf, s.offset(idx))
	// A short or missing block reads as all-zero, which both decoders
	// treat as an empty page/node (count field 0); only a read failure
	// that isn't simply "ran off the end of the file" is reported.
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, dberrors.New(dberrors.KindIOFailure, "pagestore.ReadBlock", err)
	}
	return buf, nil
}

// WriteBlock writes b, which must be exactly width bytes, at idx and
// forces it to disk.
func (s *Store) WriteBlock(idx int32, b []byte) error {
	if len(b) != s.width {
		return dberrors.New(dberrors.KindInvariantViolation, "pagestore.WriteBlock",
			pkgerrors.Errorf("block %d: got %d bytes, want %d", idx, len(b), s.width))
	}
	if _, err := s.f.WriteAt(b, s.offset(idx)); err != nil {
		return dberrors.New(dberrors.KindIOFailure, "pagestore.WriteBlock", err)
	}
	if err := s.f.Sync(); err != nil {
		return dberrors.New(dberrors.KindIOFailure, "pagestore.WriteBlock", err)
	}
	return nil
}
