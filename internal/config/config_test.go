package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, 2, cfg.D)
	require.Equal(t, 64, cfg.NodeCache)
	require.Equal(t, 64, cfg.PageCache)
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btreedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("d: 3\nnode_cache: 128\npage_cache: 0\n"), 0o666))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.D)
	require.Equal(t, 128, cfg.NodeCache)
	require.Equal(t, 0, cfg.PageCache)
}

func TestLoadRejectsNonPositiveD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btreedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("d: 0\n"), 0o666))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
