package api

import (
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/abi"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/codec"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/hostfs"
	log "github.com/sirupsen/logrus"
)

const errNoHostFS = "host filesystem not available"

// HostFS serves the env.host_fs_* imports from a host filesystem. A nil
// filesystem is allowed; every call then fails with errNoHostFS.
type HostFS struct {
	fs filesystem.FileSystem
}

// NewHostFS wraps fs for exposure to guests.
func NewHostFS(fs filesystem.FileSystem) *HostFS {
	return &HostFS{fs: fs}
}

// Bind returns the import surface for one guest memory. Results are written
// into that memory with alloc and become the guest's to free.
func (h *HostFS) Bind(mem abi.Memory, alloc abi.Allocator) hostfs.Imports {
	return &boundHostFS{fs: h.fs, mem: mem, alloc: alloc}
}

type boundHostFS struct {
	fs    filesystem.FileSystem
	mem   abi.Memory
	alloc abi.Allocator
}

func (b *boundHostFS) path(ptr uint32) (string, bool) {
	p, err := abi.ReadCString(b.mem, ptr)
	if err != nil {
		log.Warnf("[hostfs] bad path pointer %#x: %v", ptr, err)
		return "", false
	}
	return p, true
}

// errString places a rendered error in guest memory.
func (b *boundHostFS) errString(msg string) uint32 {
	ptr, err := abi.WriteCString(b.mem, b.alloc, sanitize(msg))
	if err != nil {
		log.Warnf("[hostfs] failed to return error to guest: %v", err)
		return 0
	}
	return ptr
}

// buffer returns Pack(ptr, len), or zero when data cannot be placed.
func (b *boundHostFS) buffer(data []byte) uint64 {
	ptr, err := abi.WriteBuffer(b.mem, b.alloc, data)
	if err != nil {
		log.Warnf("[hostfs] failed to return %d bytes to guest: %v", len(data), err)
		return 0
	}
	return abi.Pack(ptr, uint32(len(data)))
}

func (b *boundHostFS) record(json string) uint64 {
	ptr, err := abi.WriteCString(b.mem, b.alloc, json)
	if err != nil {
		return abi.Pack(0, b.errString(err.Error()))
	}
	return abi.Pack(ptr, 0)
}

func (b *boundHostFS) Read(pathPtr uint32, offset, size int64) uint64 {
	p, ok := b.path(pathPtr)
	if !ok || b.fs == nil {
		return 0
	}
	data, err := b.fs.Read(p, offset, size)
	if err != nil {
		log.Debugf("[hostfs] read %s: %v", p, err)
		return 0
	}
	return b.buffer(data)
}

func (b *boundHostFS) Write(pathPtr, dataPtr, dataLen uint32) uint64 {
	p, ok := b.path(pathPtr)
	if !ok || b.fs == nil {
		return 0
	}
	data, err := abi.ReadBytes(b.mem, dataPtr, dataLen)
	if err != nil {
		log.Warnf("[hostfs] write %s: bad data buffer: %v", p, err)
		return 0
	}
	resp, err := b.fs.Write(p, data)
	if err != nil {
		log.Debugf("[hostfs] write %s: %v", p, err)
		return 0
	}
	return b.buffer(resp)
}

func (b *boundHostFS) Stat(pathPtr uint32) uint64 {
	p, ok := b.path(pathPtr)
	if !ok {
		return abi.Pack(0, b.errString("invalid path"))
	}
	if b.fs == nil {
		return abi.Pack(0, b.errString(errNoHostFS))
	}
	info, err := b.fs.Stat(p)
	if err != nil {
		log.Debugf("[hostfs] stat %s: %v", p, err)
		return abi.Pack(0, b.errString(err.Error()))
	}
	return b.record(codec.EncodeFileInfo(info))
}

func (b *boundHostFS) ReadDir(pathPtr uint32) uint64 {
	p, ok := b.path(pathPtr)
	if !ok {
		return abi.Pack(0, b.errString("invalid path"))
	}
	if b.fs == nil {
		return abi.Pack(0, b.errString(errNoHostFS))
	}
	entries, err := b.fs.ReadDir(p)
	if err != nil {
		log.Debugf("[hostfs] readdir %s: %v", p, err)
		return abi.Pack(0, b.errString(err.Error()))
	}
	return b.record(codec.EncodeFileInfoList(entries))
}

func (b *boundHostFS) status(pathPtr uint32, op string, call func(p string) error) uint32 {
	p, ok := b.path(pathPtr)
	if !ok {
		return b.errString("invalid path")
	}
	if b.fs == nil {
		return b.errString(errNoHostFS)
	}
	if err := call(p); err != nil {
		log.Debugf("[hostfs] %s %s: %v", op, p, err)
		return b.errString(err.Error())
	}
	return 0
}

func (b *boundHostFS) Create(pathPtr uint32) uint32 {
	return b.status(pathPtr, "create", func(p string) error { return b.fs.Create(p) })
}

func (b *boundHostFS) Mkdir(pathPtr, perm uint32) uint32 {
	return b.status(pathPtr, "mkdir", func(p string) error { return b.fs.Mkdir(p, perm) })
}

func (b *boundHostFS) Remove(pathPtr uint32) uint32 {
	return b.status(pathPtr, "remove", func(p string) error { return b.fs.Remove(p) })
}

func (b *boundHostFS) RemoveAll(pathPtr uint32) uint32 {
	return b.status(pathPtr, "remove_all", func(p string) error { return b.fs.RemoveAll(p) })
}

func (b *boundHostFS) Rename(oldPathPtr, newPathPtr uint32) uint32 {
	newPath, ok := b.path(newPathPtr)
	if !ok {
		return b.errString("invalid path")
	}
	return b.status(oldPathPtr, "rename", func(p string) error { return b.fs.Rename(p, newPath) })
}

func (b *boundHostFS) Chmod(pathPtr, mode uint32) uint32 {
	return b.status(pathPtr, "chmod", func(p string) error { return b.fs.Chmod(p, mode) })
}
