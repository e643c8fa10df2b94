// Package hostfs lets a guest plugin delegate filesystem operations to the
// host through the env.host_fs_* imports.
package hostfs

// Imports is the raw foreign-function surface the host provides. Every
// pointer argument addresses a NUL-terminated string or a byte buffer in
// guest memory that the host reads but does not own. The host allocates
// results inside guest memory; the caller copies and frees them.
//
// Read and Write return Pack(bufferPtr, length). Stat and ReadDir return
// Pack(jsonPtr, errPtr). The remaining calls return an error-string pointer,
// zero on success.
type Imports interface {
	Read(pathPtr uint32, offset, size int64) uint64
	Write(pathPtr, dataPtr, dataLen uint32) uint64
	Stat(pathPtr uint32) uint64
	ReadDir(pathPtr uint32) uint64
	Create(pathPtr uint32) uint32
	Mkdir(pathPtr, perm uint32) uint32
	Remove(pathPtr uint32) uint32
	RemoveAll(pathPtr uint32) uint32
	Rename(oldPathPtr, newPathPtr uint32) uint32
	Chmod(pathPtr, mode uint32) uint32
}
