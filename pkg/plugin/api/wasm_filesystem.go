package api

import (
	"fmt"
	"sync"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/abi"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/codec"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

// WASMFileSystem implements filesystem.FileSystem by calling a guest's
// exports. Error strings returned by the guest are classified with
// filesystem.ParseError, so kinds survive the round trip.
type WASMFileSystem struct {
	guest Guest
	mu    *sync.Mutex // nil when the caller serializes access, as the pool does
}

var _ filesystem.FileSystem = (*WASMFileSystem)(nil)

// NewWASMFileSystem wraps guest with its own lock.
func NewWASMFileSystem(guest Guest) *WASMFileSystem {
	return &WASMFileSystem{guest: guest, mu: &sync.Mutex{}}
}

func (w *WASMFileSystem) lock() func() {
	if w.mu == nil {
		return func() {}
	}
	w.mu.Lock()
	return w.mu.Unlock
}

func (w *WASMFileSystem) call(name string, params ...uint64) (uint64, error) {
	res, err := w.guest.Call(name, params...)
	if err != nil {
		return 0, fmt.Errorf("failed to call %s: %w", name, err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0], nil
}

// take copies a guest-returned C string and frees it.
func (w *WASMFileSystem) take(ptr uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	defer w.guest.Free(ptr)
	s, err := abi.ReadCString(w.guest, ptr)
	if err != nil {
		return "", fmt.Errorf("failed to read string from guest: %w", err)
	}
	return s, nil
}

func (w *WASMFileSystem) takeBytes(ptr, n uint32) ([]byte, error) {
	defer w.guest.Free(ptr)
	data, err := abi.ReadBytes(w.guest, ptr, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read buffer from guest: %w", err)
	}
	return data, nil
}

// guestError turns an error-string pointer into a classified error.
func (w *WASMFileSystem) guestError(errPtr uint32) error {
	if errPtr == 0 {
		return nil
	}
	msg, err := w.take(errPtr)
	if err != nil {
		return err
	}
	return filesystem.ParseError(msg)
}

// withStrings passes each string to the guest for the duration of fn.
func (w *WASMFileSystem) withStrings(fn func(ptrs []uint64) error, strs ...string) error {
	ptrs := make([]uint64, 0, len(strs))
	defer func() {
		for _, p := range ptrs {
			w.guest.Free(uint32(p))
		}
	}()
	for _, s := range strs {
		p, err := abi.WriteCString(w.guest, w.guest, sanitize(s))
		if err != nil {
			return fmt.Errorf("failed to write string to guest: %w", err)
		}
		ptrs = append(ptrs, uint64(p))
	}
	return fn(ptrs)
}

func (w *WASMFileSystem) text(export string) string {
	defer w.lock()()
	ptr, err := w.call(export)
	if err != nil {
		return ""
	}
	s, _ := w.take(uint32(ptr))
	return s
}

// Name returns the plugin's self-reported name.
func (w *WASMFileSystem) Name() string {
	return w.text(abi.ExportName)
}

func (w *WASMFileSystem) Readme() string {
	return w.text(abi.ExportReadme)
}

// Ready calls plugin_new and reports whether the module has a plugin bound.
func (w *WASMFileSystem) Ready() (bool, error) {
	defer w.lock()()
	v, err := w.call(abi.ExportNew)
	if err != nil {
		return false, err
	}
	return uint32(v) != 0, nil
}

func (w *WASMFileSystem) configCall(export string, cfg map[string]any) error {
	payload, err := codec.EncodeConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	defer w.lock()()
	return w.withStrings(func(ptrs []uint64) error {
		errPtr, err := w.call(export, ptrs[0])
		if err != nil {
			return err
		}
		return w.guestError(uint32(errPtr))
	}, payload)
}

// Validate asks the plugin to check cfg without applying it.
func (w *WASMFileSystem) Validate(cfg map[string]any) error {
	return w.configCall(abi.ExportValidate, cfg)
}

// Initialize applies cfg. Plugins accept this once per instance.
func (w *WASMFileSystem) Initialize(cfg map[string]any) error {
	return w.configCall(abi.ExportInitialize, cfg)
}

func (w *WASMFileSystem) Shutdown() error {
	defer w.lock()()
	errPtr, err := w.call(abi.ExportShutdown)
	if err != nil {
		return err
	}
	return w.guestError(uint32(errPtr))
}

func (w *WASMFileSystem) record(export, path string) (string, error) {
	defer w.lock()()
	var text string
	err := w.withStrings(func(ptrs []uint64) error {
		word, err := w.call(export, ptrs[0])
		if err != nil {
			return err
		}
		jsonPtr, errPtr := abi.Unpack(word)
		if errPtr != 0 {
			if jsonPtr != 0 {
				w.guest.Free(jsonPtr)
			}
			return w.guestError(errPtr)
		}
		if jsonPtr == 0 {
			return filesystem.NotFound()
		}
		text, err = w.take(jsonPtr)
		return err
	}, path)
	return text, err
}

func (w *WASMFileSystem) Stat(path string) (filesystem.FileInfo, error) {
	text, err := w.record(abi.ExportStat, path)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	return codec.DecodeFileInfo(text), nil
}

func (w *WASMFileSystem) ReadDir(path string) ([]filesystem.FileInfo, error) {
	text, err := w.record(abi.ExportReadDir, path)
	if err != nil {
		return nil, err
	}
	return codec.DecodeFileInfoList(text), nil
}

// buffer decodes the fs_read/fs_write result word.
func (w *WASMFileSystem) buffer(word uint64) ([]byte, error) {
	ptr, n := abi.Unpack(word)
	if ptr == 0 {
		if n == 0 {
			return []byte{}, nil
		}
		return nil, w.guestError(n)
	}
	return w.takeBytes(ptr, n)
}

func (w *WASMFileSystem) Read(path string, offset, size int64) ([]byte, error) {
	defer w.lock()()
	var data []byte
	err := w.withStrings(func(ptrs []uint64) error {
		word, err := w.call(abi.ExportRead, ptrs[0], uint64(offset), uint64(size))
		if err != nil {
			return err
		}
		data, err = w.buffer(word)
		return err
	}, path)
	return data, err
}

func (w *WASMFileSystem) Write(path string, data []byte) ([]byte, error) {
	defer w.lock()()
	var resp []byte
	err := w.withStrings(func(ptrs []uint64) error {
		dataPtr, err := abi.WriteBytes(w.guest, w.guest, data)
		if err != nil {
			return fmt.Errorf("failed to write data to guest: %w", err)
		}
		if dataPtr != 0 {
			defer w.guest.Free(dataPtr)
		}
		word, err := w.call(abi.ExportWrite, ptrs[0], uint64(dataPtr), uint64(len(data)))
		if err != nil {
			return err
		}
		resp, err = w.buffer(word)
		return err
	}, path)
	return resp, err
}

func (w *WASMFileSystem) status(export string, extra []uint64, paths ...string) error {
	defer w.lock()()
	return w.withStrings(func(ptrs []uint64) error {
		errPtr, err := w.call(export, append(ptrs, extra...)...)
		if err != nil {
			return err
		}
		return w.guestError(uint32(errPtr))
	}, paths...)
}

func (w *WASMFileSystem) Create(path string) error {
	return w.status(abi.ExportCreate, nil, path)
}

func (w *WASMFileSystem) Mkdir(path string, perm uint32) error {
	return w.status(abi.ExportMkdir, []uint64{uint64(perm)}, path)
}

func (w *WASMFileSystem) Remove(path string) error {
	return w.status(abi.ExportRemove, nil, path)
}

func (w *WASMFileSystem) RemoveAll(path string) error {
	return w.status(abi.ExportRemoveAll, nil, path)
}

func (w *WASMFileSystem) Rename(oldPath, newPath string) error {
	return w.status(abi.ExportRename, nil, oldPath, newPath)
}

func (w *WASMFileSystem) Chmod(path string, mode uint32) error {
	return w.status(abi.ExportChmod, []uint64{uint64(mode)}, path)
}
