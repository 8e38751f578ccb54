package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err := ResolvePath("~/brandyBox")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "brandyBox"), resolved)

	_, err = ResolvePath("")
	assert.Error(t, err)
}

func TestNormPath(t *testing.T) {
	assert.Equal(t, "a/b/c.txt", NormPath("a/b/c.txt"))
	assert.Equal(t, "a/c.txt", NormPath("a/./c.txt"))
}

func TestPathDepth(t *testing.T) {
	assert.Equal(t, 0, PathDepth("file.txt"))
	assert.Equal(t, 2, PathDepth("a/b/c.txt"))
}

func TestEnsureParentAndExists(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "x", "y", "file.txt")

	require.NoError(t, EnsureParent(target))
	assert.True(t, DirExists(filepath.Join(dir, "x", "y")))
	assert.False(t, FileExists(target))

	require.NoError(t, os.WriteFile(target, []byte("data"), 0o644))
	assert.True(t, FileExists(target))
	assert.False(t, DirExists(target))
}

func TestFileHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	hash, err := FileHash(path)
	require.NoError(t, err)
	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", hash)
	assert.Equal(t, hash, BytesHash([]byte("hello")))
	assert.Len(t, hash, 64)

	_, err = FileHash(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
