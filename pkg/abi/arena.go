package abi

import (
	"fmt"
	"math"
)

const arenaAlign = 8

// Arena is linear memory backed by a Go byte slice with a bump allocator.
// It stands in for a guest module's memory when the boundary code runs
// in-process. The first word is reserved so zero is never a valid address.
type Arena struct {
	buf  []byte
	next uint32
	live map[uint32]uint32
}

// NewArena returns an arena with size bytes of initial capacity. It grows on
// demand, like memory.grow, up to the 32-bit address space.
func NewArena(size uint32) *Arena {
	if size < arenaAlign {
		size = arenaAlign
	}
	return &Arena{
		buf:  make([]byte, size),
		next: arenaAlign,
		live: make(map[uint32]uint32),
	}
}

func (a *Arena) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(a.buf)) {
		return nil, false
	}
	return a.buf[offset:end], true
}

func (a *Arena) ReadByte(offset uint32) (byte, bool) {
	if uint64(offset) >= uint64(len(a.buf)) {
		return 0, false
	}
	return a.buf[offset], true
}

func (a *Arena) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(a.buf)) {
		return false
	}
	copy(a.buf[offset:end], v)
	return true
}

// Allocate reserves size bytes. Freed space is not reused.
func (a *Arena) Allocate(size uint32) (uint32, error) {
	ptr, err := a.reserve(size)
	if err != nil {
		return 0, err
	}
	a.live[ptr] = size
	return ptr, nil
}

// Static places data in the arena for good. It is not counted by Live and
// cannot be freed.
func (a *Arena) Static(data []byte) (uint32, error) {
	ptr, err := a.reserve(uint32(len(data)))
	if err != nil {
		return 0, err
	}
	copy(a.buf[ptr:], data)
	return ptr, nil
}

func (a *Arena) reserve(size uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}
	ptr := a.next
	end := uint64(ptr) + uint64(size)
	if end > math.MaxUint32 {
		return 0, fmt.Errorf("arena exhausted allocating %d bytes", size)
	}
	if end > uint64(len(a.buf)) {
		grown := uint64(len(a.buf)) * 2
		for grown < end {
			grown *= 2
		}
		if grown > math.MaxUint32 {
			grown = math.MaxUint32
		}
		buf := make([]byte, grown)
		copy(buf, a.buf)
		a.buf = buf
	}
	a.next = uint32((end + arenaAlign - 1) &^ (arenaAlign - 1))
	return ptr, nil
}

func (a *Arena) Free(ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	if _, ok := a.live[ptr]; !ok {
		return fmt.Errorf("free of unallocated pointer %#x", ptr)
	}
	delete(a.live, ptr)
	return nil
}

// Live reports the number of allocations not yet freed.
func (a *Arena) Live() int {
	return len(a.live)
}
