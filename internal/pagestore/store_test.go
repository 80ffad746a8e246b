package pagestore

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, width int) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "store.dat"), width)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenPreallocatesOneBlock(t *testing.T) {
	s := openStore(t, 64)
	n, err := s.BlockCount()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestWriteThenReadBlock(t *testing.T) {
	s := openStore(t, 32)
	payload := bytes.Repeat([]byte{0xAB}, 32)
	require.NoError(t, s.WriteBlock(0, payload))

	got, err := s.ReadBlock(0)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteBlockExtendsFile(t *testing.T) {
	s := openStore(t, 16)
	payload := bytes.Repeat([]byte{1}, 16)
	require.NoError(t, s.WriteBlock(4, payload))

	n, err := s.BlockCount()
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	got, err := s.ReadBlock(4)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadPastEndOfFileYieldsZeroBlock(t *testing.T) {
	s := openStore(t, 16)
	got, err := s.ReadBlock(99)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 16), got)
}

func TestWriteBlockRejectsWrongWidth(t *testing.T) {
	s := openStore(t, 16)
	err := s.WriteBlock(0, make([]byte, 15))
	require.Error(t, err)
}

func TestReopenPreservesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.dat")

	s1, err := Open(path, 8)
	require.NoError(t, err)
	require.NoError(t, s1.WriteBlock(2, bytes.Repeat([]byte{9}, 8)))
	require.NoError(t, s1.Close())

	s2, err := Open(path, 8)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.ReadBlock(2)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{9}, 8), got)

	n, err := s2.BlockCount()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}
