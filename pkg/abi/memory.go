package abi

import (
	"errors"
	"fmt"
	"strings"
)

// MaxCStringLen bounds the scan for a NUL terminator.
const MaxCStringLen = 64 << 20

var (
	// ErrOutOfBounds is returned when an access falls outside linear memory.
	ErrOutOfBounds = errors.New("memory access out of bounds")

	// ErrNullPointer is returned when a non-empty buffer has a zero address.
	ErrNullPointer = errors.New("null pointer")

	// ErrInteriorNUL is returned when a string cannot be passed as a C string.
	ErrInteriorNUL = errors.New("string contains NUL byte")
)

// Memory is linear memory addressed by 32-bit offsets. The method set is the
// subset of wazero's api.Memory used here, so a module's memory satisfies it
// directly. Read may return a view; callers copy before the call returns.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	ReadByte(offset uint32) (byte, bool)
	Write(offset uint32, v []byte) bool
}

// Allocator hands out buffers inside the same linear memory.
type Allocator interface {
	Allocate(size uint32) (uint32, error)
	Free(ptr uint32) error
}

// Statics is implemented by memories that can hold data for the life of the
// module. Static buffers are not allocations: freeing one fails like freeing
// any unknown pointer, and leaves the buffer intact.
type Statics interface {
	Static(data []byte) (uint32, error)
}

// StaticCString places s and its NUL terminator in static storage.
func StaticCString(mem Memory, s string) (uint32, error) {
	st, ok := mem.(Statics)
	if !ok {
		return 0, fmt.Errorf("memory has no static storage")
	}
	if strings.IndexByte(s, 0) >= 0 {
		return 0, ErrInteriorNUL
	}
	return st.Static(append([]byte(s), 0))
}

// ReadBytes copies length bytes at ptr into a freshly allocated slice.
func ReadBytes(mem Memory, ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if ptr == 0 {
		return nil, ErrNullPointer
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, length, ptr)
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

// ReadCString copies the NUL-terminated string at ptr. A zero pointer reads
// as the empty string. Invalid UTF-8 is replaced rather than rejected.
func ReadCString(mem Memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	var n uint32
	for {
		b, ok := mem.ReadByte(ptr + n)
		if !ok {
			return "", fmt.Errorf("%w: unterminated string at %#x", ErrOutOfBounds, ptr)
		}
		if b == 0 {
			break
		}
		n++
		if n > MaxCStringLen {
			return "", fmt.Errorf("string at %#x exceeds %d bytes", ptr, MaxCStringLen)
		}
	}
	buf, err := ReadBytes(mem, ptr, n)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(buf), "\uFFFD"), nil
}

// WriteBytes allocates a buffer, copies data into it and returns its address.
// Empty data yields a zero pointer and no allocation.
func WriteBytes(mem Memory, alloc Allocator, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	return place(mem, alloc, data, uint32(len(data)))
}

// WriteBuffer is WriteBytes except that it always allocates, so an empty
// payload still gets a non-zero address.
func WriteBuffer(mem Memory, alloc Allocator, data []byte) (uint32, error) {
	size := uint32(len(data))
	if size == 0 {
		size = 1
	}
	return place(mem, alloc, data, size)
}

// WriteCString allocates len(s)+1 bytes and stores s followed by a NUL.
func WriteCString(mem Memory, alloc Allocator, s string) (uint32, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return 0, ErrInteriorNUL
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return place(mem, alloc, buf, uint32(len(buf)))
}

func place(mem Memory, alloc Allocator, data []byte, size uint32) (uint32, error) {
	ptr, err := alloc.Allocate(size)
	if err != nil {
		return 0, err
	}
	if ptr == 0 {
		return 0, fmt.Errorf("allocate %d bytes: %w", size, ErrNullPointer)
	}
	if len(data) > 0 && !mem.Write(ptr, data) {
		_ = alloc.Free(ptr)
		return 0, fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, len(data), ptr)
	}
	return ptr, nil
}
