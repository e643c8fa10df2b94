package hellofs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/billyfs"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

func newWithHost(t *testing.T) (*HelloFS, *billyfs.FS) {
	host := billyfs.NewMemory()
	require.NoError(t, host.Mkdir("/data", 0o755))
	_, err := host.Write("/data/motd", []byte("welcome"))
	require.NoError(t, err)

	h := New(host)
	cfg := filesystem.Config{ConfigHostPrefix: "/data"}
	require.NoError(t, h.Validate(cfg))
	require.NoError(t, h.Initialize(cfg))
	return h, host
}

func TestHelloFile(t *testing.T) {
	h := New(nil)
	require.NoError(t, h.Initialize(filesystem.Config{}))

	data, err := h.Read("/hello.txt", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "Hello World\n", string(data))

	data, err = h.Read("/hello.txt", 6, 5)
	require.NoError(t, err)
	assert.Equal(t, "World", string(data))

	info, err := h.Stat("/hello.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	assert.Equal(t, uint64(12), info.Size)

	entries, err := h.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello.txt", entries[0].Name)
	assert.Equal(t, uint64(12), entries[0].Size)

	root, err := h.Stat("/")
	require.NoError(t, err)
	assert.True(t, root.IsDir)
}

func TestWritesAreDenied(t *testing.T) {
	h := New(nil)

	_, err := h.Write("/hello.txt", []byte("x"))
	assert.ErrorIs(t, err, filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, h.Create("/new"), filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, h.Mkdir("/d", 0o755), filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, h.Remove("/hello.txt"), filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, h.RemoveAll("/"), filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, h.Rename("/hello.txt", "/bye.txt"), filesystem.ErrPermissionDenied)
	assert.NoError(t, h.Chmod("/hello.txt", 0o600))
}

func TestUnknownPaths(t *testing.T) {
	h := New(nil)

	_, err := h.Stat("/missing")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
	_, err = h.Read("/missing", 0, -1)
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
	_, err = h.ReadDir("/missing")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestHostNotServedWithoutPrefix(t *testing.T) {
	h := New(billyfs.NewMemory())
	require.NoError(t, h.Initialize(filesystem.Config{}))

	_, err := h.Stat("/host")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
	_, err = h.Read("/host/anything", 0, -1)
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestHostDelegation(t *testing.T) {
	h, host := newWithHost(t)

	entries, err := h.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "host", entries[1].Name)
	assert.True(t, entries[1].IsDir)

	info, err := h.Stat("/host")
	require.NoError(t, err)
	assert.True(t, info.IsDir)

	listing, err := h.ReadDir("/host")
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "motd", listing[0].Name)

	data, err := h.Read("/host/motd", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "welcome", string(data))

	_, err = h.Write("/host/note", []byte("hi"))
	require.NoError(t, err)
	stored, err := host.Read("/data/note", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(stored))

	require.NoError(t, h.Mkdir("/host/sub", 0o755))
	require.NoError(t, h.Rename("/host/note", "/host/sub/note"))
	_, err = host.Stat("/data/sub/note")
	require.NoError(t, err)

	require.NoError(t, h.Create("/host/empty"))
	require.NoError(t, h.Remove("/host/empty"))
	require.NoError(t, h.RemoveAll("/host/sub"))
	_, err = host.Stat("/data/sub")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)

	// Mixed renames never leave the plugin.
	assert.ErrorIs(t, h.Rename("/host/motd", "/motd"), filesystem.ErrPermissionDenied)
}

func TestHostErrorsAreReclassified(t *testing.T) {
	h, _ := newWithHost(t)

	_, err := h.Stat("/host/missing")
	require.Error(t, err)
	assert.Equal(t, filesystem.KindOther, filesystem.KindOf(err))
	assert.Equal(t, "host fs: file not found", err.Error())

	_, err = h.Read("/host/missing", 0, -1)
	assert.EqualError(t, err, "host fs: file not found")
}

func TestValidate(t *testing.T) {
	h := New(nil)
	assert.NoError(t, h.Validate(filesystem.Config{}))
	assert.Error(t, h.Validate(filesystem.Config{ConfigHostPrefix: "relative/dir"}))
}

func TestIdentity(t *testing.T) {
	h := New(nil)
	assert.Equal(t, "hellofs-wasm", h.Name())
	assert.Contains(t, h.Readme(), "/hello.txt")
	assert.NoError(t, h.Shutdown())
}
