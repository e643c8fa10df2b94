// Package hellofs is a small demonstration plugin. It serves one fixed file
// and, when configured with host_prefix, proxies /host/... to the host
// filesystem through the delegate client.
package hellofs

import (
	"strings"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

const (
	PluginName = "hellofs-wasm"

	// ConfigHostPrefix names the host directory that /host is mapped onto.
	ConfigHostPrefix = "host_prefix"

	helloPath  = "/hello.txt"
	hostMount  = "/host"
	dirMode    = 0o755
	helloMode  = 0o644
	hostFSName = "host fs"
)

// Greeting is the content of /hello.txt.
var Greeting = []byte("Hello World\n")

// HelloFS serves /hello.txt and optionally the host filesystem under /host.
type HelloFS struct {
	filesystem.Base
	host       filesystem.FileSystem
	hostPrefix string
}

var _ filesystem.Plugin = (*HelloFS)(nil)

// New creates a HelloFS. host may be nil, in which case /host is never
// served regardless of configuration.
func New(host filesystem.FileSystem) *HelloFS {
	return &HelloFS{host: host}
}

func (h *HelloFS) Name() string {
	return PluginName
}

func (h *HelloFS) Readme() string {
	return `HelloFS - Demonstrates host filesystem access

FILES:
  /hello.txt  - Returns 'Hello World'
  /host/*     - Proxies to the host filesystem (if configured)

CONFIGURATION:
  host_prefix - Host directory exposed under /host

EXAMPLES:
  agfs:/> cat /hellofs/hello.txt
  Hello World
`
}

func (h *HelloFS) Validate(cfg filesystem.Config) error {
	if prefix, ok := cfg.Get(ConfigHostPrefix); ok && prefix != "" && !strings.HasPrefix(prefix, "/") {
		return filesystem.Other("host_prefix must be an absolute path")
	}
	return nil
}

func (h *HelloFS) Initialize(cfg filesystem.Config) error {
	if prefix, ok := cfg.Get(ConfigHostPrefix); ok {
		h.hostPrefix = strings.TrimSuffix(prefix, "/")
		if h.hostPrefix == "" && prefix != "" {
			h.hostPrefix = "/"
		}
	}
	return nil
}

// hostEnabled reports whether /host is served at all.
func (h *HelloFS) hostEnabled() bool {
	return h.host != nil && h.hostPrefix != ""
}

// hostPath maps a /host/... path onto the host. ok is false for paths that
// are not delegated.
func (h *HelloFS) hostPath(path string) (string, bool) {
	if !h.hostEnabled() {
		return "", false
	}
	path = filesystem.NormalizePath(path)
	if path != hostMount && !strings.HasPrefix(path, hostMount+"/") {
		return "", false
	}
	rest := strings.TrimPrefix(path, hostMount)
	if h.hostPrefix == "/" {
		if rest == "" {
			return "/", true
		}
		return rest, true
	}
	return h.hostPrefix + rest, true
}

func wrap(err error) error {
	return filesystem.Reclassify(hostFSName, err)
}

func (h *HelloFS) Stat(path string) (filesystem.FileInfo, error) {
	switch filesystem.NormalizePath(path) {
	case "/":
		return filesystem.NewDir("", dirMode), nil
	case helloPath:
		return filesystem.NewFile("hello.txt", uint64(len(Greeting)), helloMode), nil
	case hostMount:
		if h.hostEnabled() {
			return filesystem.NewDir("host", dirMode), nil
		}
	}
	if hp, ok := h.hostPath(path); ok {
		info, err := h.host.Stat(hp)
		return info, wrap(err)
	}
	return filesystem.FileInfo{}, filesystem.NotFound()
}

func (h *HelloFS) ReadDir(path string) ([]filesystem.FileInfo, error) {
	if filesystem.NormalizePath(path) == "/" {
		entries := []filesystem.FileInfo{filesystem.NewFile("hello.txt", uint64(len(Greeting)), helloMode)}
		if h.hostEnabled() {
			entries = append(entries, filesystem.NewDir("host", dirMode))
		}
		return entries, nil
	}
	if hp, ok := h.hostPath(path); ok {
		entries, err := h.host.ReadDir(hp)
		if err != nil {
			return nil, wrap(err)
		}
		return entries, nil
	}
	return nil, filesystem.NotFound()
}

func (h *HelloFS) Read(path string, offset, size int64) ([]byte, error) {
	if filesystem.NormalizePath(path) == helloPath {
		return filesystem.ReadRange(Greeting, offset, size), nil
	}
	if hp, ok := h.hostPath(path); ok {
		data, err := h.host.Read(hp, offset, size)
		if err != nil {
			return nil, wrap(err)
		}
		return data, nil
	}
	return nil, filesystem.NotFound()
}

func (h *HelloFS) Write(path string, data []byte) ([]byte, error) {
	if hp, ok := h.hostPath(path); ok {
		resp, err := h.host.Write(hp, data)
		if err != nil {
			return nil, wrap(err)
		}
		return resp, nil
	}
	return nil, filesystem.PermissionDenied()
}

func (h *HelloFS) Create(path string) error {
	if hp, ok := h.hostPath(path); ok {
		return wrap(h.host.Create(hp))
	}
	return filesystem.PermissionDenied()
}

func (h *HelloFS) Mkdir(path string, perm uint32) error {
	if hp, ok := h.hostPath(path); ok {
		return wrap(h.host.Mkdir(hp, perm))
	}
	return filesystem.PermissionDenied()
}

func (h *HelloFS) Remove(path string) error {
	if hp, ok := h.hostPath(path); ok {
		return wrap(h.host.Remove(hp))
	}
	return filesystem.PermissionDenied()
}

func (h *HelloFS) RemoveAll(path string) error {
	if hp, ok := h.hostPath(path); ok {
		return wrap(h.host.RemoveAll(hp))
	}
	return filesystem.PermissionDenied()
}

// Rename only delegates when both ends live under /host.
func (h *HelloFS) Rename(oldPath, newPath string) error {
	oldHost, okOld := h.hostPath(oldPath)
	newHost, okNew := h.hostPath(newPath)
	if okOld && okNew {
		return wrap(h.host.Rename(oldHost, newHost))
	}
	return filesystem.PermissionDenied()
}

// Chmod is accepted and ignored outside /host.
func (h *HelloFS) Chmod(path string, mode uint32) error {
	if hp, ok := h.hostPath(path); ok {
		return wrap(h.host.Chmod(hp, mode))
	}
	return nil
}
