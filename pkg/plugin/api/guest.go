package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	wazeroapi "github.com/tetratelabs/wazero/api"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/abi"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/export"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/hostfs"
)

// Guest is one plugin instance as seen from the host: its linear memory, its
// allocator exports and its entry points by name.
type Guest interface {
	abi.Memory
	abi.Allocator
	Call(name string, params ...uint64) ([]uint64, error)
	Close() error
}

// moduleGuest drives an instantiated wazero module.
type moduleGuest struct {
	ctx    context.Context
	module wazeroapi.Module
}

// NewModuleGuest wraps an instantiated plugin module.
func NewModuleGuest(ctx context.Context, module wazeroapi.Module) Guest {
	return &moduleGuest{ctx: ctx, module: module}
}

func (g *moduleGuest) Read(offset, byteCount uint32) ([]byte, bool) {
	return g.module.Memory().Read(offset, byteCount)
}

func (g *moduleGuest) ReadByte(offset uint32) (byte, bool) {
	return g.module.Memory().ReadByte(offset)
}

func (g *moduleGuest) Write(offset uint32, v []byte) bool {
	return g.module.Memory().Write(offset, v)
}

func (g *moduleGuest) Allocate(size uint32) (uint32, error) {
	return callMalloc(g.ctx, g.module, size)
}

func (g *moduleGuest) Free(ptr uint32) error {
	return callFree(g.ctx, g.module, ptr)
}

func (g *moduleGuest) Call(name string, params ...uint64) ([]uint64, error) {
	fn := g.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found", name)
	}
	return fn.Call(g.ctx, params...)
}

func (g *moduleGuest) Close() error {
	return g.module.Close(g.ctx)
}

func callMalloc(ctx context.Context, mod wazeroapi.Module, size uint32) (uint32, error) {
	fn := mod.ExportedFunction(abi.ExportMalloc)
	if fn == nil {
		return 0, fmt.Errorf("export %q not found", abi.ExportMalloc)
	}
	res, err := fn.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("malloc(%d): %w", size, err)
	}
	if len(res) == 0 || res[0] == 0 {
		return 0, fmt.Errorf("malloc(%d) returned null", size)
	}
	return uint32(res[0]), nil
}

func callFree(ctx context.Context, mod wazeroapi.Module, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	fn := mod.ExportedFunction(abi.ExportFree)
	if fn == nil {
		return fmt.Errorf("export %q not found", abi.ExportFree)
	}
	if _, err := fn.Call(ctx, uint64(ptr)); err != nil {
		return fmt.Errorf("free(%#x): %w", ptr, err)
	}
	return nil
}

// moduleAllocator allocates inside the guest that is currently calling a
// host import.
type moduleAllocator struct {
	ctx context.Context
	mod wazeroapi.Module
}

func (a moduleAllocator) Allocate(size uint32) (uint32, error) {
	return callMalloc(a.ctx, a.mod, size)
}

func (a moduleAllocator) Free(ptr uint32) error {
	return callFree(a.ctx, a.mod, ptr)
}

// RegisterHostFS instantiates the env module that guests import their
// host_fs_* functions from. fs may be nil.
func RegisterHostFS(ctx context.Context, r wazero.Runtime, fs filesystem.FileSystem) error {
	h := NewHostFS(fs)
	bind := func(ctx context.Context, mod wazeroapi.Module) hostfs.Imports {
		return h.Bind(mod.Memory(), moduleAllocator{ctx: ctx, mod: mod})
	}

	_, err := r.NewHostModuleBuilder(abi.ImportModule).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr uint32, offset, size int64) uint64 {
			return bind(ctx, mod).Read(pathPtr, offset, size)
		}).
		Export(abi.ImportRead).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr, dataPtr, dataLen uint32) uint64 {
			return bind(ctx, mod).Write(pathPtr, dataPtr, dataLen)
		}).
		Export(abi.ImportWrite).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr uint32) uint64 {
			return bind(ctx, mod).Stat(pathPtr)
		}).
		Export(abi.ImportStat).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr uint32) uint64 {
			return bind(ctx, mod).ReadDir(pathPtr)
		}).
		Export(abi.ImportReadDir).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr uint32) uint32 {
			return bind(ctx, mod).Create(pathPtr)
		}).
		Export(abi.ImportCreate).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr, perm uint32) uint32 {
			return bind(ctx, mod).Mkdir(pathPtr, perm)
		}).
		Export(abi.ImportMkdir).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr uint32) uint32 {
			return bind(ctx, mod).Remove(pathPtr)
		}).
		Export(abi.ImportRemove).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr uint32) uint32 {
			return bind(ctx, mod).RemoveAll(pathPtr)
		}).
		Export(abi.ImportRemoveAll).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, oldPathPtr, newPathPtr uint32) uint32 {
			return bind(ctx, mod).Rename(oldPathPtr, newPathPtr)
		}).
		Export(abi.ImportRename).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod wazeroapi.Module, pathPtr, mode uint32) uint32 {
			return bind(ctx, mod).Chmod(pathPtr, mode)
		}).
		Export(abi.ImportChmod).
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("failed to instantiate host filesystem module: %w", err)
	}
	return nil
}

// localGuest runs a plugin in-process behind the same export table a
// compiled module has. Its memory is an arena shared with the delegate
// client, so every call crosses the same encoding as a real module.
type localGuest struct {
	*abi.Arena
	dispatcher *export.Dispatcher
}

// LocalGuestMemory is the initial arena size of a local guest.
const LocalGuestMemory = 64 << 10

// NewLocalGuest builds a plugin with build, wiring its delegate client to
// host through the host_fs import implementation.
func NewLocalGuest(host filesystem.FileSystem, build func(delegate filesystem.FileSystem) filesystem.Plugin) Guest {
	arena := abi.NewArena(LocalGuestMemory)
	client := hostfs.NewClient(NewHostFS(host).Bind(arena, arena), arena, arena)
	return &localGuest{
		Arena:      arena,
		dispatcher: export.NewDispatcher(build(client), arena, arena),
	}
}

func (g *localGuest) Call(name string, params ...uint64) ([]uint64, error) {
	return g.dispatcher.Call(name, params...)
}

func (g *localGuest) Close() error {
	return nil
}

func sanitize(msg string) string {
	return strings.ReplaceAll(msg, "\x00", "")
}
