// Package abi holds the low-level calling convention shared by the guest
// module and the host loader: packed 64-bit return words, the names of the
// imported and exported entry points, and copy-on-receive access to linear
// memory.
package abi

// Pack places low in the lower 32 bits and high in the upper 32 bits.
//
// Depending on the call site the pair is (pointer, length) for a raw buffer
// or (data pointer, error pointer) for a structured result.
func Pack(low, high uint32) uint64 {
	return uint64(high)<<32 | uint64(low)
}

// Unpack is the inverse of Pack.
func Unpack(word uint64) (low, high uint32) {
	return uint32(word), uint32(word >> 32)
}
