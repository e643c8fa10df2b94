//go:build wasip1

package abi

import (
	"fmt"
	"unsafe"
)

// Linear is the guest module's own linear memory. Buffers handed across the
// boundary are Go slices kept reachable in pinned until freed, so the
// collector never reclaims memory the host still addresses.
type Linear struct {
	pinned  map[uint32][]byte
	statics [][]byte
}

var guest = &Linear{pinned: make(map[uint32][]byte)}

// Guest returns the module's linear memory.
func Guest() *Linear {
	return guest
}

func (l *Linear) Read(offset, byteCount uint32) ([]byte, bool) {
	if offset == 0 {
		return nil, false
	}
	if byteCount == 0 {
		return []byte{}, true
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(offset))), byteCount), true
}

func (l *Linear) ReadByte(offset uint32) (byte, bool) {
	if offset == 0 {
		return 0, false
	}
	return *(*byte)(unsafe.Pointer(uintptr(offset))), true
}

func (l *Linear) Write(offset uint32, v []byte) bool {
	if offset == 0 {
		return false
	}
	if len(v) == 0 {
		return true
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(offset))), len(v)), v)
	return true
}

func (l *Linear) Allocate(size uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	l.pinned[ptr] = buf
	return ptr, nil
}

func (l *Linear) Free(ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	if _, ok := l.pinned[ptr]; !ok {
		return fmt.Errorf("free of unallocated pointer %#x", ptr)
	}
	delete(l.pinned, ptr)
	return nil
}

// Static keeps a copy of data reachable for the life of the module.
func (l *Linear) Static(data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty static buffer")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	l.statics = append(l.statics, buf)
	return uint32(uintptr(unsafe.Pointer(&buf[0]))), nil
}
