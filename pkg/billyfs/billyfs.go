// Package billyfs adapts a go-billy filesystem to filesystem.FileSystem. It
// is the backing store the host offers plugins through the host_fs imports.
package billyfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

const (
	PluginName = "billyfs"

	TypeMemory = "memory"
	TypeLocal  = "local"
)

// FS implements filesystem.FileSystem over a billy.Filesystem.
type FS struct {
	fs   billy.Filesystem
	kind string
	mu   sync.RWMutex
}

var _ filesystem.FileSystem = (*FS)(nil)

// New wraps an existing billy filesystem.
func New(bfs billy.Filesystem, kind string) *FS {
	return &FS{fs: bfs, kind: kind}
}

// NewMemory returns an empty in-memory filesystem.
func NewMemory() *FS {
	return New(memfs.New(), TypeMemory)
}

// NewLocal exposes the directory root of the local disk.
func NewLocal(root string) (*FS, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path is not a directory: %s", root)
	}
	return New(osfs.New(root), TypeLocal), nil
}

// classify maps billy and os errors onto the filesystem error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return filesystem.NotFound()
	case errors.Is(err, fs.ErrPermission):
		return filesystem.PermissionDenied()
	default:
		return filesystem.Classify(err)
	}
}

func clean(p string) string {
	return filesystem.NormalizePath(p)
}

func (b *FS) toInfo(info os.FileInfo) filesystem.FileInfo {
	fi := filesystem.FileInfo{
		Name:    info.Name(),
		Mode:    uint32(info.Mode().Perm()),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
	if !info.IsDir() {
		fi.Size = uint64(info.Size())
	}
	return fi.WithMeta(filesystem.MetaData{Name: PluginName, Type: b.kind})
}

// stat treats the root as an existing directory even on backends that only
// materialize it once something is created inside.
func (b *FS) stat(p string) (os.FileInfo, error) {
	info, err := b.fs.Stat(p)
	if err != nil && p == "/" && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return info, err
}

func (b *FS) exists(p string) bool {
	_, err := b.stat(p)
	return err == nil
}

func (b *FS) parentExists(p string) bool {
	return b.exists(path.Dir(p))
}

func (b *FS) Stat(p string) (filesystem.FileInfo, error) {
	p = clean(p)
	b.mu.RLock()
	defer b.mu.RUnlock()

	info, err := b.stat(p)
	if err != nil {
		return filesystem.FileInfo{}, classify(err)
	}
	if info == nil {
		return filesystem.NewDir("", 0o755).WithMeta(filesystem.MetaData{Name: PluginName, Type: b.kind}), nil
	}
	return b.toInfo(info), nil
}

func (b *FS) ReadDir(p string) ([]filesystem.FileInfo, error) {
	p = clean(p)
	b.mu.RLock()
	defer b.mu.RUnlock()

	info, err := b.stat(p)
	if err != nil {
		return nil, classify(err)
	}
	if info == nil {
		return []filesystem.FileInfo{}, nil
	}
	if !info.IsDir() {
		return nil, filesystem.Other(fmt.Sprintf("not a directory: %s", p))
	}

	entries, err := b.fs.ReadDir(p)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]filesystem.FileInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, b.toInfo(e))
	}
	return out, nil
}

func (b *FS) Read(p string, offset, size int64) ([]byte, error) {
	p = clean(p)
	b.mu.RLock()
	defer b.mu.RUnlock()

	info, err := b.stat(p)
	if err != nil {
		return nil, classify(err)
	}
	if info == nil || info.IsDir() {
		return nil, filesystem.Other(fmt.Sprintf("is a directory: %s", p))
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= info.Size() {
		return []byte{}, nil
	}

	f, err := b.fs.Open(p)
	if err != nil {
		return nil, classify(err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, filesystem.IO(fmt.Sprintf("failed to seek: %v", err))
	}
	var r io.Reader = f
	if size >= 0 {
		r = io.LimitReader(f, size)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, filesystem.IO(fmt.Sprintf("failed to read: %v", err))
	}
	return data, nil
}

// Write replaces the file content, creating the file if needed.
func (b *FS) Write(p string, data []byte) ([]byte, error) {
	p = clean(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	if info, err := b.stat(p); err == nil && (info == nil || info.IsDir()) {
		return nil, filesystem.Other(fmt.Sprintf("is a directory: %s", p))
	}
	if !b.parentExists(p) {
		return nil, filesystem.Other(fmt.Sprintf("parent directory does not exist: %s", path.Dir(p)))
	}
	if err := util.WriteFile(b.fs, p, data, 0o644); err != nil {
		return nil, classify(err)
	}
	return []byte(fmt.Sprintf("Written %d bytes to %s", len(data), p)), nil
}

func (b *FS) Create(p string) error {
	p = clean(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exists(p) {
		return filesystem.Other(fmt.Sprintf("file already exists: %s", p))
	}
	if !b.parentExists(p) {
		return filesystem.Other(fmt.Sprintf("parent directory does not exist: %s", path.Dir(p)))
	}
	f, err := b.fs.Create(p)
	if err != nil {
		return classify(err)
	}
	return classify(f.Close())
}

func (b *FS) Mkdir(p string, perm uint32) error {
	p = clean(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exists(p) {
		return filesystem.Other(fmt.Sprintf("directory already exists: %s", p))
	}
	if !b.parentExists(p) {
		return filesystem.Other(fmt.Sprintf("parent directory does not exist: %s", path.Dir(p)))
	}
	return classify(b.fs.MkdirAll(p, os.FileMode(perm)))
}

// Remove refuses non-empty directories.
func (b *FS) Remove(p string) error {
	p = clean(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	if p == "/" {
		return filesystem.PermissionDenied()
	}
	info, err := b.stat(p)
	if err != nil {
		return classify(err)
	}
	if info.IsDir() {
		entries, err := b.fs.ReadDir(p)
		if err != nil {
			return classify(err)
		}
		if len(entries) > 0 {
			return filesystem.Other(fmt.Sprintf("directory not empty: %s", p))
		}
	}
	return classify(b.fs.Remove(p))
}

func (b *FS) RemoveAll(p string) error {
	p = clean(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.exists(p) {
		return filesystem.NotFound()
	}
	if p == "/" {
		return filesystem.PermissionDenied()
	}
	return classify(util.RemoveAll(b.fs, p))
}

func (b *FS) Rename(oldPath, newPath string) error {
	oldPath, newPath = clean(oldPath), clean(newPath)
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.exists(oldPath) {
		return filesystem.NotFound()
	}
	if !b.parentExists(newPath) {
		return filesystem.Other(fmt.Sprintf("parent directory does not exist: %s", path.Dir(newPath)))
	}
	return classify(b.fs.Rename(oldPath, newPath))
}

// Chmod requires a backend implementing billy.Change.
func (b *FS) Chmod(p string, mode uint32) error {
	p = clean(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.exists(p) {
		return filesystem.NotFound()
	}
	ch, ok := b.fs.(billy.Change)
	if !ok {
		return filesystem.Other(fmt.Sprintf("chmod not supported by %s backend", b.kind))
	}
	return classify(ch.Chmod(p, os.FileMode(mode)))
}
