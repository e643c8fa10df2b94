package hostfs

import (
	"errors"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/abi"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/codec"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

// Client implements filesystem.FileSystem on top of the host imports.
//
// Arguments are written into freshly allocated guest buffers that are freed
// when the import returns. Results the host placed in guest memory are
// copied out and freed before the method returns, so nothing the host
// produced is referenced afterwards.
type Client struct {
	imports Imports
	mem     abi.Memory
	alloc   abi.Allocator
}

var _ filesystem.FileSystem = (*Client)(nil)

// NewClient binds imports to the memory they address.
func NewClient(imports Imports, mem abi.Memory, alloc abi.Allocator) *Client {
	return &Client{imports: imports, mem: mem, alloc: alloc}
}

// Read returns IO when the host hands back no buffer.
func (c *Client) Read(path string, offset, size int64) ([]byte, error) {
	var word uint64
	err := c.withPath(path, func(p uint32) {
		word = c.imports.Read(p, offset, size)
	})
	if err != nil {
		return nil, err
	}
	ptr, n := abi.Unpack(word)
	if ptr == 0 {
		return nil, filesystem.IO("read failed")
	}
	return c.takeBytes(ptr, n)
}

// Write returns the host's acknowledgement payload.
func (c *Client) Write(path string, data []byte) ([]byte, error) {
	dataPtr, err := abi.WriteBytes(c.mem, c.alloc, data)
	if err != nil {
		return nil, filesystem.IO(err.Error())
	}
	defer c.release(dataPtr)

	var word uint64
	err = c.withPath(path, func(p uint32) {
		word = c.imports.Write(p, dataPtr, uint32(len(data)))
	})
	if err != nil {
		return nil, err
	}
	ptr, n := abi.Unpack(word)
	if ptr == 0 {
		return nil, filesystem.IO("write failed")
	}
	return c.takeBytes(ptr, n)
}

// Stat reports Other with the host's message when the host signals an
// error, and NotFound when it returns neither data nor error.
func (c *Client) Stat(path string) (filesystem.FileInfo, error) {
	var word uint64
	err := c.withPath(path, func(p uint32) {
		word = c.imports.Stat(p)
	})
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	jsonPtr, errPtr := abi.Unpack(word)
	if errPtr != 0 {
		c.release(jsonPtr)
		return filesystem.FileInfo{}, c.hostError(errPtr)
	}
	if jsonPtr == 0 {
		return filesystem.FileInfo{}, filesystem.NotFound()
	}
	text, err := c.takeString(jsonPtr)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	return codec.DecodeFileInfo(text), nil
}

// ReadDir treats a missing payload as an empty directory.
func (c *Client) ReadDir(path string) ([]filesystem.FileInfo, error) {
	var word uint64
	err := c.withPath(path, func(p uint32) {
		word = c.imports.ReadDir(p)
	})
	if err != nil {
		return nil, err
	}
	jsonPtr, errPtr := abi.Unpack(word)
	if errPtr != 0 {
		c.release(jsonPtr)
		return nil, c.hostError(errPtr)
	}
	if jsonPtr == 0 {
		return []filesystem.FileInfo{}, nil
	}
	text, err := c.takeString(jsonPtr)
	if err != nil {
		return nil, err
	}
	return codec.DecodeFileInfoList(text), nil
}

func (c *Client) Create(path string) error {
	return c.status(path, func(p uint32) uint32 { return c.imports.Create(p) })
}

func (c *Client) Mkdir(path string, perm uint32) error {
	return c.status(path, func(p uint32) uint32 { return c.imports.Mkdir(p, perm) })
}

func (c *Client) Remove(path string) error {
	return c.status(path, func(p uint32) uint32 { return c.imports.Remove(p) })
}

func (c *Client) RemoveAll(path string) error {
	return c.status(path, func(p uint32) uint32 { return c.imports.RemoveAll(p) })
}

func (c *Client) Rename(oldPath, newPath string) error {
	newPtr, err := c.cstring(newPath)
	if err != nil {
		return err
	}
	defer c.release(newPtr)
	return c.status(oldPath, func(oldPtr uint32) uint32 { return c.imports.Rename(oldPtr, newPtr) })
}

func (c *Client) Chmod(path string, mode uint32) error {
	return c.status(path, func(p uint32) uint32 { return c.imports.Chmod(p, mode) })
}

func (c *Client) status(path string, call func(p uint32) uint32) error {
	var errPtr uint32
	if err := c.withPath(path, func(p uint32) { errPtr = call(p) }); err != nil {
		return err
	}
	if errPtr != 0 {
		return c.hostError(errPtr)
	}
	return nil
}

// withPath passes path as a C string for the duration of call.
func (c *Client) withPath(path string, call func(p uint32)) error {
	p, err := c.cstring(path)
	if err != nil {
		return err
	}
	defer c.release(p)
	call(p)
	return nil
}

func (c *Client) cstring(s string) (uint32, error) {
	p, err := abi.WriteCString(c.mem, c.alloc, s)
	if errors.Is(err, abi.ErrInteriorNUL) {
		return 0, filesystem.Other("invalid input: invalid path")
	}
	if err != nil {
		return 0, filesystem.IO(err.Error())
	}
	return p, nil
}

// hostError converts a host error string into Other carrying that message.
func (c *Client) hostError(errPtr uint32) error {
	msg, err := c.takeString(errPtr)
	if err != nil {
		return err
	}
	return filesystem.Other(msg)
}

func (c *Client) takeBytes(ptr, n uint32) ([]byte, error) {
	defer c.release(ptr)
	data, err := abi.ReadBytes(c.mem, ptr, n)
	if err != nil {
		return nil, filesystem.IO(err.Error())
	}
	return data, nil
}

func (c *Client) takeString(ptr uint32) (string, error) {
	defer c.release(ptr)
	s, err := abi.ReadCString(c.mem, ptr)
	if err != nil {
		return "", filesystem.IO(err.Error())
	}
	return s, nil
}

func (c *Client) release(ptr uint32) {
	if ptr != 0 {
		_ = c.alloc.Free(ptr)
	}
}
