package randomfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

func TestGenerateIsDeterministic(t *testing.T) {
	r := New()

	first, err := r.Read("/generate", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "IeNUFX", string(first))

	second, err := r.Read("/generate", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "DCGRWB", string(second))

	out, err := r.Write("/generate", []byte("10\n"))
	require.NoError(t, err)
	assert.Equal(t, "EHtY7Ufqhz", string(out))
}

func TestSeedFromConfig(t *testing.T) {
	r := New()
	cfg := filesystem.Config{ConfigSeed: "7"}
	require.NoError(t, r.Validate(cfg))
	require.NoError(t, r.Initialize(cfg))

	out, err := r.Read("/generate", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "Uq2wtL", string(out))

	assert.Error(t, r.Validate(filesystem.Config{ConfigSeed: "abc"}))
}

func TestWriteLengths(t *testing.T) {
	r := New()

	out, err := r.Write("/generate", []byte("1024"))
	require.NoError(t, err)
	assert.Len(t, out, 1024)
	for _, c := range out {
		assert.Contains(t, charset, string(c))
	}

	for _, bad := range []string{"0", "1025", "-3", "abc", ""} {
		_, err := r.Write("/generate", []byte(bad))
		assert.ErrorIs(t, err, filesystem.ErrOther, bad)
	}
}

func TestLayout(t *testing.T) {
	r := New()

	entries, err := r.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "generate", entries[0].Name)

	info, err := r.Stat("/generate")
	require.NoError(t, err)
	assert.False(t, info.IsDir)

	root, err := r.Stat("/")
	require.NoError(t, err)
	assert.True(t, root.IsDir)

	_, err = r.Stat("/other")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
	_, err = r.Read("/other", 0, -1)
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
	_, err = r.Write("/other", []byte("5"))
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
	_, err = r.ReadDir("/generate")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestMutationsDenied(t *testing.T) {
	r := New()

	assert.ErrorIs(t, r.Create("/x"), filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, r.Mkdir("/x", 0o755), filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, r.Remove("/generate"), filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, r.RemoveAll("/"), filesystem.ErrPermissionDenied)
	assert.ErrorIs(t, r.Rename("/generate", "/g"), filesystem.ErrPermissionDenied)
	assert.NoError(t, r.Chmod("/generate", 0o600))
	assert.Equal(t, PluginName, r.Name())
	assert.Contains(t, r.Readme(), "/generate")
}
