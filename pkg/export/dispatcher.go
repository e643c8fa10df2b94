// Package export exposes a filesystem.Plugin as the fixed set of entry
// points the host loader calls. All argument decoding and result encoding
// happens here; plugin code only sees Go strings, byte slices and records.
package export

import (
	"fmt"
	"strings"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/abi"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/codec"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

// Dispatcher binds one plugin to the boundary encoding.
//
// Return conventions:
//   - fs_read, fs_write: Pack(ptr, len) on success, Pack(0, 0) for an empty
//     payload, Pack(0, errPtr) on failure.
//   - fs_stat, fs_readdir: Pack(jsonPtr, 0) on success, Pack(0, errPtr) on
//     failure.
//   - everything else: errPtr, zero on success.
//
// Buffers returned to the host come from the module allocator and belong to
// the host, which releases them with free. Arguments are copied on entry.
//
// When the error string itself cannot be allocated, failures carry a static
// "I/O error: out of memory" buffer instead, so errPtr is never zero. Freeing
// that pointer is a no-op.
type Dispatcher struct {
	plugin      filesystem.Plugin
	mem         abi.Memory
	alloc       abi.Allocator
	initialized bool
	oom         uint32
}

// OutOfMemory is the failure reported when an error string cannot be
// allocated.
var OutOfMemory = filesystem.IO("out of memory")

// NewDispatcher binds plugin to the memory the host addresses. If mem
// implements abi.Statics, the out-of-memory error is placed there up front.
func NewDispatcher(plugin filesystem.Plugin, mem abi.Memory, alloc abi.Allocator) *Dispatcher {
	d := &Dispatcher{plugin: plugin, mem: mem, alloc: alloc}
	if ptr, err := abi.StaticCString(mem, OutOfMemory.Error()); err == nil {
		d.oom = ptr
	}
	return d
}

// Plugin returns the bound implementation.
func (d *Dispatcher) Plugin() filesystem.Plugin {
	return d.plugin
}

// Malloc returns zero when the allocation fails.
func (d *Dispatcher) Malloc(size uint32) uint32 {
	ptr, err := d.alloc.Allocate(size)
	if err != nil {
		return 0
	}
	return ptr
}

func (d *Dispatcher) Free(ptr uint32) {
	if ptr == d.oom {
		return
	}
	_ = d.alloc.Free(ptr)
}

// New reports readiness; a bound dispatcher is always ready.
func (d *Dispatcher) New() uint32 {
	return 1
}

func (d *Dispatcher) Name() uint32 {
	return d.text(d.plugin.Name())
}

func (d *Dispatcher) Readme() uint32 {
	return d.text(d.plugin.Readme())
}

func (d *Dispatcher) Validate(configPtr uint32) uint32 {
	cfg, err := d.config(configPtr)
	if err != nil {
		return d.errorString(err)
	}
	return d.status(guard(func() (struct{}, error) {
		return struct{}{}, d.plugin.Validate(cfg)
	}))
}

// Initialize applies the configuration once. A repeated call fails without
// reaching the plugin.
func (d *Dispatcher) Initialize(configPtr uint32) uint32 {
	if d.initialized {
		return d.errorString(filesystem.Other("plugin already initialized"))
	}
	cfg, err := d.config(configPtr)
	if err != nil {
		return d.errorString(err)
	}
	res := guard(func() (struct{}, error) {
		return struct{}{}, d.plugin.Initialize(cfg)
	})
	if res.IsOk() {
		d.initialized = true
	}
	return d.status(res)
}

func (d *Dispatcher) Shutdown() uint32 {
	return d.status(guard(func() (struct{}, error) {
		return struct{}{}, d.plugin.Shutdown()
	}))
}

func (d *Dispatcher) Stat(pathPtr uint32) uint64 {
	path, err := d.arg(pathPtr)
	if err != nil {
		return d.failure(err)
	}
	res := guard(func() (filesystem.FileInfo, error) { return d.plugin.Stat(path) })
	return d.structured(filesystem.Map(res, codec.EncodeFileInfo))
}

func (d *Dispatcher) ReadDir(pathPtr uint32) uint64 {
	path, err := d.arg(pathPtr)
	if err != nil {
		return d.failure(err)
	}
	res := guard(func() ([]filesystem.FileInfo, error) { return d.plugin.ReadDir(path) })
	return d.structured(filesystem.Map(res, codec.EncodeFileInfoList))
}

func (d *Dispatcher) Read(pathPtr uint32, offset, size int64) uint64 {
	path, err := d.arg(pathPtr)
	if err != nil {
		return d.failure(err)
	}
	return d.buffer(guard(func() ([]byte, error) { return d.plugin.Read(path, offset, size) }))
}

func (d *Dispatcher) Write(pathPtr, dataPtr, dataLen uint32) uint64 {
	path, err := d.arg(pathPtr)
	if err != nil {
		return d.failure(err)
	}
	data, err := abi.ReadBytes(d.mem, dataPtr, dataLen)
	if err != nil {
		return d.failure(filesystem.IO(err.Error()))
	}
	return d.buffer(guard(func() ([]byte, error) { return d.plugin.Write(path, data) }))
}

func (d *Dispatcher) Create(pathPtr uint32) uint32 {
	return d.pathStatus(pathPtr, d.plugin.Create)
}

func (d *Dispatcher) Mkdir(pathPtr, perm uint32) uint32 {
	return d.pathStatus(pathPtr, func(path string) error { return d.plugin.Mkdir(path, perm) })
}

func (d *Dispatcher) Remove(pathPtr uint32) uint32 {
	return d.pathStatus(pathPtr, d.plugin.Remove)
}

func (d *Dispatcher) RemoveAll(pathPtr uint32) uint32 {
	return d.pathStatus(pathPtr, d.plugin.RemoveAll)
}

func (d *Dispatcher) Rename(oldPathPtr, newPathPtr uint32) uint32 {
	newPath, err := d.arg(newPathPtr)
	if err != nil {
		return d.errorString(err)
	}
	return d.pathStatus(oldPathPtr, func(oldPath string) error { return d.plugin.Rename(oldPath, newPath) })
}

func (d *Dispatcher) Chmod(pathPtr, mode uint32) uint32 {
	return d.pathStatus(pathPtr, func(path string) error { return d.plugin.Chmod(path, mode) })
}

func (d *Dispatcher) pathStatus(pathPtr uint32, op func(path string) error) uint32 {
	path, err := d.arg(pathPtr)
	if err != nil {
		return d.errorString(err)
	}
	return d.status(guard(func() (struct{}, error) { return struct{}{}, op(path) }))
}

// guard runs a plugin call, turning a panic into an Other failure so it
// never unwinds across the boundary.
func guard[T any](call func() (T, error)) (res filesystem.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = filesystem.Fail[T](filesystem.Other(fmt.Sprintf("plugin panic: %v", r)))
		}
	}()
	return filesystem.From(call())
}

func (d *Dispatcher) arg(ptr uint32) (string, error) {
	s, err := abi.ReadCString(d.mem, ptr)
	if err != nil {
		return "", filesystem.IO(err.Error())
	}
	return s, nil
}

func (d *Dispatcher) config(ptr uint32) (filesystem.Config, error) {
	text, err := d.arg(ptr)
	if err != nil {
		return nil, err
	}
	return codec.DecodeConfig(text), nil
}

func (d *Dispatcher) structured(res filesystem.Result[string]) uint64 {
	if res.IsErr() {
		return d.failure(res.Err())
	}
	ptr, err := abi.WriteCString(d.mem, d.alloc, res.Unwrap())
	if err != nil {
		return d.failure(filesystem.IO(err.Error()))
	}
	return abi.Pack(ptr, 0)
}

func (d *Dispatcher) buffer(res filesystem.Result[[]byte]) uint64 {
	if res.IsErr() {
		return d.failure(res.Err())
	}
	data := res.Unwrap()
	if len(data) == 0 {
		return abi.Pack(0, 0)
	}
	ptr, err := abi.WriteBytes(d.mem, d.alloc, data)
	if err != nil {
		return d.failure(filesystem.IO(err.Error()))
	}
	return abi.Pack(ptr, uint32(len(data)))
}

func (d *Dispatcher) status(res filesystem.Result[struct{}]) uint32 {
	if res.IsErr() {
		return d.errorString(res.Err())
	}
	return 0
}

func (d *Dispatcher) failure(err error) uint64 {
	return abi.Pack(0, d.errorString(err))
}

// errorString renders err for the host. The rendering of a filesystem.Error
// is what filesystem.ParseError expects on the other side.
func (d *Dispatcher) errorString(err error) uint32 {
	msg := strings.ReplaceAll(err.Error(), "\x00", "")
	ptr, werr := abi.WriteCString(d.mem, d.alloc, msg)
	if werr != nil {
		return d.oom
	}
	return ptr
}

func (d *Dispatcher) text(s string) uint32 {
	ptr, err := abi.WriteCString(d.mem, d.alloc, strings.ReplaceAll(s, "\x00", ""))
	if err != nil {
		return 0
	}
	return ptr
}
