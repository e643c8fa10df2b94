package filesystem

import (
	"path"
	"strconv"
	"time"
)

// MetaData represents structured metadata for files and directories
type MetaData struct {
	Name    string // Plugin name or identifier
	Type    string // Type classification of the file/directory
	Content string // JSON document with plugin-specific attributes
}

// FileInfo represents file metadata similar to os.FileInfo.
//
// ModTime is not carried across the plugin boundary; the wire form always
// holds the zero time.
type FileInfo struct {
	Name    string
	Size    uint64
	Mode    uint32
	ModTime time.Time
	IsDir   bool
	Meta    *MetaData
}

// NewFile describes a regular file.
func NewFile(name string, size uint64, mode uint32) FileInfo {
	return FileInfo{Name: name, Size: size, Mode: mode}
}

// NewDir describes a directory. Directories have size zero.
func NewDir(name string, mode uint32) FileInfo {
	return FileInfo{Name: name, Mode: mode, IsDir: true}
}

// WithMeta returns a copy of fi carrying meta.
func (fi FileInfo) WithMeta(meta MetaData) FileInfo {
	fi.Meta = &meta
	return fi
}

// Config is the flat string map a plugin receives at initialization.
type Config map[string]string

// Get returns the raw value for key.
func (c Config) Get(key string) (string, bool) {
	v, ok := c[key]
	return v, ok
}

// GetInt parses the value for key as a base-10 integer.
func (c Config) GetInt(key string) (int64, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetBool accepts the literals produced by config coercion ("true", "false")
// and the other forms strconv.ParseBool understands.
func (c Config) GetBool(key string) (bool, bool) {
	v, ok := c[key]
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// NormalizePath returns a cleaned absolute slash-separated path.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// ReadRange applies read offset/size semantics to an in-memory payload.
// A negative size reads to the end; an offset past the end yields no data.
func ReadRange(data []byte, offset, size int64) []byte {
	if offset < 0 {
		offset = 0
	}
	if offset >= int64(len(data)) {
		return []byte{}
	}
	end := int64(len(data))
	if size >= 0 && size < end-offset {
		end = offset + size
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out
}
