//go:build wasip1

package export

import "github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/abi"

var dispatcher *Dispatcher

// bound returns nil until a plugin has been registered.
func bound() *Dispatcher {
	if dispatcher == nil {
		p := Registered()
		if p == nil {
			return nil
		}
		dispatcher = NewDispatcher(p, abi.Guest(), abi.Guest())
	}
	return dispatcher
}

var noPlugin uint32

// missing is the error returned by every export while no plugin is
// registered. It lives in static memory; the host's free is a no-op on it.
func missing() uint32 {
	if noPlugin == 0 {
		noPlugin, _ = abi.StaticCString(abi.Guest(), "no plugin registered")
	}
	return noPlugin
}

//go:wasmexport malloc
func wasmMalloc(size uint32) uint32 {
	ptr, err := abi.Guest().Allocate(size)
	if err != nil {
		return 0
	}
	return ptr
}

//go:wasmexport free
func wasmFree(ptr uint32) {
	_ = abi.Guest().Free(ptr)
}

//go:wasmexport plugin_new
func wasmPluginNew() uint32 {
	if bound() == nil {
		return 0
	}
	return 1
}

//go:wasmexport plugin_name
func wasmPluginName() uint32 {
	if d := bound(); d != nil {
		return d.Name()
	}
	return 0
}

//go:wasmexport plugin_get_readme
func wasmPluginReadme() uint32 {
	if d := bound(); d != nil {
		return d.Readme()
	}
	return 0
}

//go:wasmexport plugin_validate
func wasmPluginValidate(configPtr uint32) uint32 {
	if d := bound(); d != nil {
		return d.Validate(configPtr)
	}
	return missing()
}

//go:wasmexport plugin_initialize
func wasmPluginInitialize(configPtr uint32) uint32 {
	if d := bound(); d != nil {
		return d.Initialize(configPtr)
	}
	return missing()
}

//go:wasmexport plugin_shutdown
func wasmPluginShutdown() uint32 {
	if d := bound(); d != nil {
		return d.Shutdown()
	}
	return missing()
}

//go:wasmexport fs_stat
func wasmStat(pathPtr uint32) uint64 {
	if d := bound(); d != nil {
		return d.Stat(pathPtr)
	}
	return abi.Pack(0, missing())
}

//go:wasmexport fs_readdir
func wasmReadDir(pathPtr uint32) uint64 {
	if d := bound(); d != nil {
		return d.ReadDir(pathPtr)
	}
	return abi.Pack(0, missing())
}

//go:wasmexport fs_read
func wasmRead(pathPtr uint32, offset, size int64) uint64 {
	if d := bound(); d != nil {
		return d.Read(pathPtr, offset, size)
	}
	return abi.Pack(0, missing())
}

//go:wasmexport fs_write
func wasmWrite(pathPtr, dataPtr, dataLen uint32) uint64 {
	if d := bound(); d != nil {
		return d.Write(pathPtr, dataPtr, dataLen)
	}
	return abi.Pack(0, missing())
}

//go:wasmexport fs_create
func wasmCreate(pathPtr uint32) uint32 {
	if d := bound(); d != nil {
		return d.Create(pathPtr)
	}
	return missing()
}

//go:wasmexport fs_mkdir
func wasmMkdir(pathPtr, perm uint32) uint32 {
	if d := bound(); d != nil {
		return d.Mkdir(pathPtr, perm)
	}
	return missing()
}

//go:wasmexport fs_remove
func wasmRemove(pathPtr uint32) uint32 {
	if d := bound(); d != nil {
		return d.Remove(pathPtr)
	}
	return missing()
}

//go:wasmexport fs_remove_all
func wasmRemoveAll(pathPtr uint32) uint32 {
	if d := bound(); d != nil {
		return d.RemoveAll(pathPtr)
	}
	return missing()
}

//go:wasmexport fs_rename
func wasmRename(oldPathPtr, newPathPtr uint32) uint32 {
	if d := bound(); d != nil {
		return d.Rename(oldPathPtr, newPathPtr)
	}
	return missing()
}

//go:wasmexport fs_chmod
func wasmChmod(pathPtr, mode uint32) uint32 {
	if d := bound(); d != nil {
		return d.Chmod(pathPtr, mode)
	}
	return missing()
}
