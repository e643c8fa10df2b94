// Package filesystem defines the records, errors and capability interfaces
// shared by plugins, the delegate client and the host loader.
package filesystem

// FileSystem defines the interface for a POSIX-like file system
type FileSystem interface {
	// Stat returns file information
	Stat(path string) (FileInfo, error)

	// ReadDir lists the contents of a directory
	ReadDir(path string) ([]FileInfo, error)

	// Read reads file content with optional offset and size
	// offset: starting position (0 means from beginning)
	// size: number of bytes to read (-1 means read all)
	Read(path string, offset int64, size int64) ([]byte, error)

	// Write writes data to a file
	// Returns a response payload defined by the implementation
	Write(path string, data []byte) ([]byte, error)

	// Create creates a new file
	Create(path string) error

	// Mkdir creates a new directory
	Mkdir(path string, perm uint32) error

	// Remove removes a file or empty directory
	Remove(path string) error

	// RemoveAll removes a path and any children it contains
	RemoveAll(path string) error

	// Rename renames/moves a file or directory
	Rename(oldPath, newPath string) error

	// Chmod changes file permissions
	Chmod(path string, mode uint32) error
}

// Plugin is what a guest module implements. The export adapter binds one
// Plugin per loaded module; Initialize is called once, after Validate and
// before any FileSystem method.
type Plugin interface {
	FileSystem

	// Name returns a stable identifier for diagnostics.
	Name() string

	// Readme returns human-readable documentation.
	Readme() string

	// Validate checks the configuration without applying it.
	Validate(cfg Config) error

	// Initialize applies the configuration. It is not idempotent.
	Initialize(cfg Config) error

	// Shutdown releases resources before the module is unloaded.
	Shutdown() error
}

// DefaultReadme is returned by plugins that do not document themselves.
const DefaultReadme = "No documentation available"

// Base supplies the optional lifecycle methods of Plugin.
type Base struct{}

func (Base) Readme() string { return DefaultReadme }

func (Base) Validate(cfg Config) error { return nil }

func (Base) Initialize(cfg Config) error { return nil }

func (Base) Shutdown() error { return nil }

// ReadOnly supplies the lifecycle defaults plus mutating verbs that fail
// with PermissionDenied. Embed it and implement Name, Stat, ReadDir and Read.
type ReadOnly struct {
	Base
}

func (ReadOnly) Write(path string, data []byte) ([]byte, error) {
	return nil, PermissionDenied()
}

func (ReadOnly) Create(path string) error {
	return PermissionDenied()
}

func (ReadOnly) Mkdir(path string, perm uint32) error {
	return PermissionDenied()
}

func (ReadOnly) Remove(path string) error {
	return PermissionDenied()
}

func (ReadOnly) RemoveAll(path string) error {
	return PermissionDenied()
}

func (ReadOnly) Rename(oldPath, newPath string) error {
	return PermissionDenied()
}

func (ReadOnly) Chmod(path string, mode uint32) error {
	return PermissionDenied()
}
