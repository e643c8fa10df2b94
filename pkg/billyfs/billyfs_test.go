package billyfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

func TestEmptyMemoryRoot(t *testing.T) {
	fs := NewMemory()

	info, err := fs.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir)

	entries, err := fs.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteReadStat(t *testing.T) {
	fs := NewMemory()

	resp, err := fs.Write("/hello.txt", []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "Written 11 bytes to /hello.txt", string(resp))

	data, err := fs.Read("/hello.txt", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	data, err = fs.Read("hello.txt", 6, 3)
	require.NoError(t, err)
	assert.Equal(t, "wor", string(data))

	data, err = fs.Read("/hello.txt", 100, 3)
	require.NoError(t, err)
	assert.Empty(t, data)

	info, err := fs.Stat("/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", info.Name)
	assert.Equal(t, uint64(11), info.Size)
	assert.False(t, info.IsDir)
	require.NotNil(t, info.Meta)
	assert.Equal(t, TypeMemory, info.Meta.Type)

	// Overwrite truncates.
	_, err = fs.Write("/hello.txt", []byte("hi"))
	require.NoError(t, err)
	data, err = fs.Read("/hello.txt", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestMissingPaths(t *testing.T) {
	fs := NewMemory()

	_, err := fs.Stat("/nope")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)

	_, err = fs.Read("/nope", 0, -1)
	assert.ErrorIs(t, err, filesystem.ErrNotFound)

	assert.ErrorIs(t, fs.RemoveAll("/nope"), filesystem.ErrNotFound)
	assert.ErrorIs(t, fs.Rename("/nope", "/other"), filesystem.ErrNotFound)

	_, err = fs.Write("/no/such/dir/file", []byte("x"))
	assert.Error(t, err)
}

func TestDirectories(t *testing.T) {
	fs := NewMemory()

	require.NoError(t, fs.Mkdir("/dir", 0o755))
	assert.Error(t, fs.Mkdir("/dir", 0o755), "mkdir of an existing directory fails")
	assert.Error(t, fs.Mkdir("/a/b", 0o755), "parent must exist")

	require.NoError(t, fs.Create("/dir/one"))
	assert.Error(t, fs.Create("/dir/one"), "create of an existing file fails")
	_, err := fs.Write("/dir/two", []byte("2"))
	require.NoError(t, err)

	entries, err := fs.ReadDir("/dir")
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"one", "two"}, names)

	root, err := fs.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, "dir", root[0].Name)
	assert.True(t, root[0].IsDir)

	_, err = fs.ReadDir("/dir/one")
	assert.Error(t, err)

	_, err = fs.Read("/dir", 0, -1)
	assert.Error(t, err)

	err = fs.Remove("/dir")
	assert.Error(t, err, "non-empty directory")

	require.NoError(t, fs.RemoveAll("/dir"))
	_, err = fs.Stat("/dir")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestRemoveAndRename(t *testing.T) {
	fs := NewMemory()

	_, err := fs.Write("/a", []byte("A"))
	require.NoError(t, err)
	require.NoError(t, fs.Rename("/a", "/b"))

	_, err = fs.Stat("/a")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
	data, err := fs.Read("/b", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	require.NoError(t, fs.Remove("/b"))
	_, err = fs.Stat("/b")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)

	assert.ErrorIs(t, fs.Remove("/"), filesystem.ErrPermissionDenied)
}

func TestLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.txt"), []byte("seed"), 0o644))

	fs, err := NewLocal(dir)
	require.NoError(t, err)

	data, err := fs.Read("/seed.txt", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "seed", string(data))

	_, err = fs.Write("/new.txt", []byte("new"))
	require.NoError(t, err)
	onDisk, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(onDisk))

	info, err := fs.Stat("/new.txt")
	require.NoError(t, err)
	require.NotNil(t, info.Meta)
	assert.Equal(t, TypeLocal, info.Meta.Type)

	_, err = NewLocal(filepath.Join(dir, "seed.txt"))
	assert.Error(t, err)
	_, err = NewLocal(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
