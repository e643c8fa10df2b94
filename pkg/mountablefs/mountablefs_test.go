package mountablefs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/internal/wasmtest"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/billyfs"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/plugin/api"
)

// memPlugin mounts an in-memory billy filesystem under a name.
type memPlugin struct {
	*billyfs.FS
	name      string
	shutdowns int
}

func newMemPlugin(name string) *memPlugin {
	return &memPlugin{FS: billyfs.NewMemory(), name: name}
}

func (p *memPlugin) Name() string {
	return p.name
}

func (p *memPlugin) Shutdown() error {
	p.shutdowns++
	return nil
}

func TestMountableFSRouting(t *testing.T) {
	mfs := NewMountableFS(api.PoolConfig{})
	t.Cleanup(func() { mfs.Close() })

	p1 := newMemPlugin("plugin1")
	p2 := newMemPlugin("plugin2")
	pRoot := newMemPlugin("rootPlugin")

	// Test 1: Basic Mount
	require.NoError(t, mfs.Mount("/data", p1))

	// Test 2: Exact Match
	mount, relPath, found := mfs.findMount("/data")
	require.True(t, found)
	assert.Same(t, p1, mount.Plugin)
	assert.Equal(t, "/", relPath)

	// Test 3: Subpath Match
	mount, relPath, found = mfs.findMount("/data/file.txt")
	require.True(t, found)
	assert.Same(t, p1, mount.Plugin)
	assert.Equal(t, "/file.txt", relPath)

	// Test 4: Partial Match (Should Fail)
	_, _, found = mfs.findMount("/dataset")
	assert.False(t, found, "/dataset is not below /data")

	// Test 5: Nested Mounts / Longest Prefix
	require.NoError(t, mfs.Mount("/data/users", p2))

	mount, _, found = mfs.findMount("/data/config")
	require.True(t, found)
	assert.Same(t, p1, mount.Plugin)

	mount, relPath, found = mfs.findMount("/data/users/alice")
	require.True(t, found)
	assert.Same(t, p2, mount.Plugin)
	assert.Equal(t, "/alice", relPath)

	// Test 6: Root Mount
	require.NoError(t, mfs.Mount("/", pRoot))

	mount, relPath, found = mfs.findMount("/other/file")
	require.True(t, found)
	assert.Same(t, pRoot, mount.Plugin)
	assert.Equal(t, "/other/file", relPath)

	mount, _, found = mfs.findMount("/data/users/alice")
	require.True(t, found)
	assert.Same(t, p2, mount.Plugin, "root mount broke specific mount routing")

	// Test 7: Unmount
	require.NoError(t, mfs.Unmount("/data"))
	assert.Equal(t, 1, p1.shutdowns)

	mount, _, found = mfs.findMount("/data/file")
	require.True(t, found)
	assert.Same(t, pRoot, mount.Plugin, "expected fallback to root plugin")

	mount, _, found = mfs.findMount("/data/users/bob")
	require.True(t, found)
	assert.Same(t, p2, mount.Plugin, "unmounting parent should not affect child mount")
}

func TestMountErrors(t *testing.T) {
	mfs := NewMountableFS(api.PoolConfig{})
	t.Cleanup(func() { mfs.Close() })

	require.NoError(t, mfs.Mount("/data/", newMemPlugin("a")))
	assert.Error(t, mfs.Mount("/data", newMemPlugin("b")), "normalized path is already mounted")
	assert.Error(t, mfs.Unmount("/missing"))

	mounts := mfs.GetMounts()
	require.Len(t, mounts, 1)
	assert.Equal(t, "/data", mounts[0].Path)
}

func TestMountWASMRejectsMissingFile(t *testing.T) {
	mfs := NewMountableFS(api.PoolConfig{})
	t.Cleanup(func() { mfs.Close() })

	err := mfs.MountWASM("/wasm", "/nonexistent/plugin.wasm", nil, nil)
	assert.Error(t, err)
	assert.Empty(t, mfs.GetMounts())
}

func TestVirtualDirectories(t *testing.T) {
	mfs := NewMountableFS(api.PoolConfig{})
	t.Cleanup(func() { mfs.Close() })

	require.NoError(t, mfs.Mount("/data", newMemPlugin("data")))
	require.NoError(t, mfs.Mount("/data/users", newMemPlugin("users")))
	require.NoError(t, mfs.Mount("/srv/logs", newMemPlugin("logs")))

	root, err := mfs.Stat("/")
	require.NoError(t, err)
	assert.True(t, root.IsDir)
	require.NotNil(t, root.Meta)
	assert.Equal(t, MetaValueRoot, root.Meta.Type)

	entries, err := mfs.ReadDir("/")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
		assert.True(t, e.IsDir)
		require.NotNil(t, e.Meta)
		assert.Equal(t, MetaValueMountPoint, e.Meta.Type)
	}
	assert.Equal(t, []string{"data", "srv"}, names)

	srv, err := mfs.Stat("/srv")
	require.NoError(t, err)
	assert.True(t, srv.IsDir)
	assert.Equal(t, "srv", srv.Name)

	data, err := mfs.Stat("/data")
	require.NoError(t, err)
	assert.True(t, data.IsDir)
	assert.Equal(t, "data", data.Name)

	_, err = mfs.Write("/data/readme", []byte("hi"))
	require.NoError(t, err)
	entries, err = mfs.ReadDir("/data")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "readme", entries[0].Name)
	assert.Equal(t, "users", entries[1].Name)
	assert.True(t, entries[1].IsDir)

	_, err = mfs.Stat("/elsewhere")
	assert.True(t, errors.Is(err, filesystem.ErrNotFound))
	_, err = mfs.ReadDir("/elsewhere")
	assert.True(t, errors.Is(err, filesystem.ErrNotFound))
}

func TestDelegation(t *testing.T) {
	mfs := NewMountableFS(api.PoolConfig{})
	t.Cleanup(func() { mfs.Close() })

	a := newMemPlugin("a")
	require.NoError(t, mfs.Mount("/a", a))
	require.NoError(t, mfs.Mount("/b", newMemPlugin("b")))

	require.NoError(t, mfs.Mkdir("/a/dir", 0o755))
	require.NoError(t, mfs.Create("/a/dir/empty"))
	_, err := mfs.Write("/a/dir/file", []byte("hello"))
	require.NoError(t, err)

	got, err := mfs.Read("/a/dir/file", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "ell", string(got))

	// the plugin sees mount-relative paths
	got, err = a.Read("/dir/file", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	require.NoError(t, mfs.Rename("/a/dir/file", "/a/dir/moved"))
	_, err = mfs.Stat("/a/dir/moved")
	require.NoError(t, err)

	err = mfs.Rename("/a/dir/moved", "/b/moved")
	assert.Equal(t, filesystem.KindOther, filesystem.KindOf(err))

	require.NoError(t, mfs.Remove("/a/dir/empty"))
	require.NoError(t, mfs.RemoveAll("/a/dir"))
	_, err = mfs.Stat("/a/dir")
	assert.True(t, errors.Is(err, filesystem.ErrNotFound))

	_, err = mfs.Read("/nowhere/file", 0, -1)
	assert.True(t, errors.Is(err, filesystem.ErrNotFound))
	_, err = mfs.Write("/nowhere/file", []byte("x"))
	assert.True(t, errors.Is(err, filesystem.ErrNotFound))
}

// newLinkedFS mounts /mnt with a file, and /other for cross-mount links.
func newLinkedFS(t *testing.T) *MountableFS {
	t.Helper()
	mfs := NewMountableFS(api.PoolConfig{})
	t.Cleanup(func() { mfs.Close() })

	require.NoError(t, mfs.Mount("/mnt", newMemPlugin("mnt")))
	require.NoError(t, mfs.Mount("/other", newMemPlugin("other")))
	require.NoError(t, mfs.Mkdir("/mnt/dir", 0o755))
	_, err := mfs.Write("/mnt/file.txt", []byte("target content"))
	require.NoError(t, err)
	return mfs
}

func TestSymlinkBasic(t *testing.T) {
	mfs := newLinkedFS(t)

	require.NoError(t, mfs.Symlink("/mnt/file.txt", "/mnt/dir/link1"))

	target, err := mfs.Readlink("/mnt/dir/link1")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/file.txt", target)

	data, err := mfs.Read("/mnt/dir/link1", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "target content", string(data))

	info, err := mfs.Stat("/mnt/dir/link1")
	require.NoError(t, err)
	assert.Equal(t, "link1", info.Name)
	assert.Equal(t, uint64(len("target content")), info.Size)
	require.NotNil(t, info.Meta)
	assert.Equal(t, MetaValueSymlink, info.Meta.Type)
	assert.JSONEq(t, `{"target":"/mnt/file.txt"}`, info.Meta.Content)
}

func TestSymlinkRelative(t *testing.T) {
	mfs := newLinkedFS(t)

	require.NoError(t, mfs.Symlink("../file.txt", "/mnt/dir/rel"))

	data, err := mfs.Read("/mnt/dir/rel", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "target content", string(data))

	target, err := mfs.Readlink("/mnt/dir/rel")
	require.NoError(t, err)
	assert.Equal(t, "../file.txt", target, "readlink returns the target as written")
}

func TestSymlinkErrors(t *testing.T) {
	mfs := newLinkedFS(t)

	// existing file
	assert.Error(t, mfs.Symlink("/mnt/dir", "/mnt/file.txt"))

	// missing parent
	assert.Error(t, mfs.Symlink("/mnt/file.txt", "/mnt/missing/link"))

	// duplicate link
	require.NoError(t, mfs.Symlink("/mnt/file.txt", "/mnt/link"))
	assert.Error(t, mfs.Symlink("/mnt/file.txt", "/mnt/link"))

	// not a link
	_, err := mfs.Readlink("/mnt/file.txt")
	assert.Error(t, err)
}

func TestSymlinkChain(t *testing.T) {
	mfs := newLinkedFS(t)

	require.NoError(t, mfs.Symlink("/mnt/file.txt", "/mnt/link1"))
	require.NoError(t, mfs.Symlink("/mnt/link1", "/mnt/link2"))
	require.NoError(t, mfs.Symlink("/mnt/link2", "/mnt/link3"))

	data, err := mfs.Read("/mnt/link3", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "target content", string(data))

	// Remove deletes the link, not what it points at
	require.NoError(t, mfs.Remove("/mnt/link1"))
	_, err = mfs.Read("/mnt/file.txt", 0, -1)
	require.NoError(t, err)

	// close the chain into a cycle
	require.NoError(t, mfs.Symlink("/mnt/link3", "/mnt/link1"))
	_, err = mfs.Read("/mnt/link3", 0, -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many levels of symbolic links")
}

func TestSymlinkCrossMountAndDirectory(t *testing.T) {
	mfs := newLinkedFS(t)

	_, err := mfs.Write("/mnt/dir/inner", []byte("inner"))
	require.NoError(t, err)

	require.NoError(t, mfs.Symlink("/mnt/dir", "/other/dirlink"))

	info, err := mfs.Stat("/other/dirlink")
	require.NoError(t, err)
	assert.True(t, info.IsDir)

	data, err := mfs.Read("/other/dirlink/inner", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "inner", string(data))

	entries, err := mfs.ReadDir("/other/dirlink")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "inner", entries[0].Name)

	// the link shows up in its directory listing
	entries, err = mfs.ReadDir("/other")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dirlink", entries[0].Name)
	require.NotNil(t, entries[0].Meta)
	assert.Equal(t, MetaValueSymlink, entries[0].Meta.Type)

	require.NoError(t, mfs.Rename("/other/dirlink", "/other/renamed"))
	target, err := mfs.Readlink("/other/renamed")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/dir", target)
	_, err = mfs.Readlink("/other/dirlink")
	assert.Error(t, err)
}

func TestMountWASMCompiledGuest(t *testing.T) {
	wasmPath := wasmtest.Build(t, "./cmd/hellofs-wasm")

	host := billyfs.NewMemory()
	for _, dir := range []string{"/x", "/y"} {
		require.NoError(t, host.Mkdir(dir, 0o755))
		_, err := host.Write(dir+"/from"+dir[1:], []byte(dir))
		require.NoError(t, err)
	}

	mfs := NewMountableFS(api.PoolConfig{})
	t.Cleanup(func() { mfs.Close() })

	require.NoError(t, mfs.MountWASM("/a", wasmPath, map[string]any{"host_prefix": "/x"}, host))
	require.NoError(t, mfs.MountWASM("/b", wasmPath, map[string]any{"host_prefix": "/y"}, host))
	require.NoError(t, mfs.MountWASM("/c", wasmPath, map[string]any{"host_prefix": "/x"}, host))

	mounts := mfs.GetMounts()
	require.Len(t, mounts, 3)
	assert.NotEqual(t, mounts[0].LoaderKey, mounts[1].LoaderKey)
	assert.Equal(t, mounts[0].LoaderKey, mounts[2].LoaderKey)

	data, err := mfs.Read("/a/hello.txt", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "Hello World\n", string(data))

	info, err := mfs.Stat("/b/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), info.Size)

	// Each mount sees its own host_prefix
	entries, err := mfs.ReadDir("/a/host")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fromx", entries[0].Name)

	entries, err = mfs.ReadDir("/b/host")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fromy", entries[0].Name)

	data, err = mfs.Read("/b/host/fromy", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "/y", string(data))

	_, err = mfs.Write("/b/host/note", []byte("via b"))
	require.NoError(t, err)
	data, err = host.Read("/y/note", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "via b", string(data))

	// /a and /c share one plugin; it outlives the first unmount
	require.NoError(t, mfs.Unmount("/a"))
	data, err = mfs.Read("/c/host/fromx", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "/x", string(data))

	require.NoError(t, mfs.Unmount("/c"))
	_, err = mfs.Read("/b/hello.txt", 0, -1)
	require.NoError(t, err)

	require.NoError(t, mfs.Unmount("/b"))
	assert.Empty(t, mfs.GetMounts())
}
