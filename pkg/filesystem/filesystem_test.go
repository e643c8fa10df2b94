package filesystem

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRendering(t *testing.T) {
	assert.Equal(t, "file not found", NotFound().Error())
	assert.Equal(t, "permission denied", PermissionDenied().Error())
	assert.Equal(t, "I/O error: read failed", IO("read failed").Error())
	assert.Equal(t, "boom", Other("boom").Error())
}

func TestParseErrorInvertsRendering(t *testing.T) {
	for _, e := range []*Error{NotFound(), PermissionDenied(), IO("short read"), Other("host said no")} {
		parsed := ParseError(e.Error())
		assert.Equal(t, e.Kind, parsed.Kind, "kind of %q", e.Error())
		assert.Equal(t, e.Error(), parsed.Error())
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("stat /x: %w", NotFound())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, IO("x"), ErrIO)
	assert.ErrorIs(t, Other("x"), ErrOther)
}

func TestKindOfAndClassify(t *testing.T) {
	assert.Equal(t, KindPermissionDenied, KindOf(fmt.Errorf("wrapped: %w", PermissionDenied())))
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))

	assert.Nil(t, Classify(nil))
	c := Classify(errors.New("plain"))
	assert.Equal(t, KindOther, c.Kind)
	assert.Equal(t, "plain", c.Message)
	assert.Equal(t, KindIO, Classify(IO("x")).Kind)
}

func TestReclassify(t *testing.T) {
	assert.NoError(t, Reclassify("host fs", nil))

	err := Reclassify("host fs", NotFound())
	assert.Equal(t, KindOther, KindOf(err))
	assert.Equal(t, "host fs: file not found", err.Error())
}

func TestResultVariants(t *testing.T) {
	ok := Ok(42)
	assert.True(t, ok.IsOk())
	assert.False(t, ok.IsErr())
	assert.Equal(t, 42, ok.Unwrap())
	assert.NoError(t, ok.Err())

	failed := Fail[int](NotFound())
	assert.True(t, failed.IsErr())
	assert.Equal(t, 7, failed.UnwrapOr(7))
	assert.Panics(t, func() { failed.Unwrap() })

	none := Fail[int](nil)
	assert.True(t, none.IsErr(), "a failure without an error is still a failure")
}

func TestResultFromDiscardsValueOnError(t *testing.T) {
	r := From([]byte("partial"), IO("short read"))
	v, err := r.Get()
	assert.Nil(t, v)
	assert.ErrorIs(t, err, ErrIO)
}

func TestMapPreservesKind(t *testing.T) {
	r := Map(Fail[int](PermissionDenied()), func(v int) string { return "unused" })
	require.True(t, r.IsErr())
	assert.Equal(t, KindPermissionDenied, KindOf(r.Err()))

	s := Map(Ok(3), func(v int) string { return fmt.Sprint(v * 2) })
	assert.Equal(t, "6", s.Unwrap())
}

func TestAndThenPropagatesFirstFailure(t *testing.T) {
	called := false
	r := AndThen(Fail[int](NotFound()), func(v int) Result[int] {
		called = true
		return Ok(v)
	})
	assert.False(t, called)
	assert.ErrorIs(t, r.Err(), ErrNotFound)

	r = AndThen(Ok(1), func(v int) Result[int] { return Fail[int](IO("disk")) })
	assert.Equal(t, "I/O error: disk", r.Err().Error())
}

func TestMapErr(t *testing.T) {
	r := MapErr(Fail[int](NotFound()), func(err error) error { return Reclassify("host fs", err) })
	assert.Equal(t, "host fs: file not found", r.Err().Error())

	ok := MapErr(Ok(1), func(err error) error { return Other("unused") })
	assert.True(t, ok.IsOk())
}

func TestStatus(t *testing.T) {
	assert.True(t, Status(nil).IsOk())
	assert.ErrorIs(t, Status(PermissionDenied()).Err(), ErrPermissionDenied)
}

func TestFileInfoConstructors(t *testing.T) {
	f := NewFile("a.txt", 12, 0o644)
	assert.False(t, f.IsDir)
	assert.Equal(t, uint64(12), f.Size)

	d := NewDir("docs", 0o755)
	assert.True(t, d.IsDir)
	assert.Zero(t, d.Size)

	m := f.WithMeta(MetaData{Name: "p", Type: "t", Content: `{"k":1}`})
	require.NotNil(t, m.Meta)
	assert.Nil(t, f.Meta, "WithMeta must not modify the receiver")
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{"name": "x", "n": "5", "flag": "true", "bad": "five"}

	v, ok := cfg.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	n, ok := cfg.GetInt("n")
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	_, ok = cfg.GetInt("bad")
	assert.False(t, ok)

	b, ok := cfg.GetBool("flag")
	assert.True(t, ok)
	assert.True(t, b)

	assert.True(t, cfg.Has("bad"))
	assert.False(t, cfg.Has("missing"))
}

func TestReadRange(t *testing.T) {
	data := []byte("Hello World\n")
	assert.Equal(t, data, ReadRange(data, 0, 100))
	assert.Equal(t, data, ReadRange(data, 0, -1))
	assert.Equal(t, []byte("World"), ReadRange(data, 6, 5))
	assert.Equal(t, []byte{}, ReadRange(data, 50, 10))
	assert.Equal(t, []byte{}, ReadRange(data, 0, 0))
	assert.Equal(t, []byte("ello World\n"), ReadRange(data, 1, math.MaxInt64))
	assert.Equal(t, []byte("\n"), ReadRange(data, 11, math.MaxInt64-5))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", NormalizePath(""))
	assert.Equal(t, "/a/b", NormalizePath("a/b/"))
	assert.Equal(t, "/b", NormalizePath("/a/../b"))
}

func TestReadOnlyDefaults(t *testing.T) {
	var ro ReadOnly
	_, err := ro.Write("/x", nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, ro.Create("/x"), ErrPermissionDenied)
	assert.ErrorIs(t, ro.Mkdir("/x", 0o755), ErrPermissionDenied)
	assert.ErrorIs(t, ro.Remove("/x"), ErrPermissionDenied)
	assert.ErrorIs(t, ro.RemoveAll("/x"), ErrPermissionDenied)
	assert.ErrorIs(t, ro.Rename("/x", "/y"), ErrPermissionDenied)
	assert.ErrorIs(t, ro.Chmod("/x", 0o600), ErrPermissionDenied)
	assert.Equal(t, DefaultReadme, ro.Readme())
	assert.NoError(t, ro.Initialize(nil))
}
