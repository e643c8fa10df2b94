//go:build wasip1

package hostfs

import "github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/abi"

//go:wasmimport env host_fs_read
func hostFSRead(pathPtr uint32, offset, size int64) uint64

//go:wasmimport env host_fs_write
func hostFSWrite(pathPtr, dataPtr, dataLen uint32) uint64

//go:wasmimport env host_fs_stat
func hostFSStat(pathPtr uint32) uint64

//go:wasmimport env host_fs_readdir
func hostFSReadDir(pathPtr uint32) uint64

//go:wasmimport env host_fs_create
func hostFSCreate(pathPtr uint32) uint32

//go:wasmimport env host_fs_mkdir
func hostFSMkdir(pathPtr, perm uint32) uint32

//go:wasmimport env host_fs_remove
func hostFSRemove(pathPtr uint32) uint32

//go:wasmimport env host_fs_remove_all
func hostFSRemoveAll(pathPtr uint32) uint32

//go:wasmimport env host_fs_rename
func hostFSRename(oldPathPtr, newPathPtr uint32) uint32

//go:wasmimport env host_fs_chmod
func hostFSChmod(pathPtr, mode uint32) uint32

type wasmImports struct{}

func (wasmImports) Read(pathPtr uint32, offset, size int64) uint64 {
	return hostFSRead(pathPtr, offset, size)
}

func (wasmImports) Write(pathPtr, dataPtr, dataLen uint32) uint64 {
	return hostFSWrite(pathPtr, dataPtr, dataLen)
}

func (wasmImports) Stat(pathPtr uint32) uint64 { return hostFSStat(pathPtr) }

func (wasmImports) ReadDir(pathPtr uint32) uint64 { return hostFSReadDir(pathPtr) }

func (wasmImports) Create(pathPtr uint32) uint32 { return hostFSCreate(pathPtr) }

func (wasmImports) Mkdir(pathPtr, perm uint32) uint32 { return hostFSMkdir(pathPtr, perm) }

func (wasmImports) Remove(pathPtr uint32) uint32 { return hostFSRemove(pathPtr) }

func (wasmImports) RemoveAll(pathPtr uint32) uint32 { return hostFSRemoveAll(pathPtr) }

func (wasmImports) Rename(oldPathPtr, newPathPtr uint32) uint32 {
	return hostFSRename(oldPathPtr, newPathPtr)
}

func (wasmImports) Chmod(pathPtr, mode uint32) uint32 { return hostFSChmod(pathPtr, mode) }

// New returns a client bound to the host's env imports and the module's own
// linear memory.
func New() *Client {
	return NewClient(wasmImports{}, abi.Guest(), abi.Guest())
}
