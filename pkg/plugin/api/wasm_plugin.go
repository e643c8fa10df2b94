package api

import (
	"fmt"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

// WASMPlugin exposes a pooled plugin as a filesystem. Each call runs on
// whichever instance the pool hands out, so plugin state that is not
// delegated to the host is per instance.
type WASMPlugin struct {
	name   string
	readme string
	pool   *WASMInstancePool
}

var _ filesystem.FileSystem = (*WASMPlugin)(nil)

// NewWASMPlugin borrows one instance to learn the plugin's identity.
func NewWASMPlugin(pool *WASMInstancePool) (*WASMPlugin, error) {
	p := &WASMPlugin{pool: pool}
	err := pool.Execute(func(instance *WASMModuleInstance) error {
		p.name = instance.fileSystem.Name()
		p.readme = instance.fileSystem.Readme()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query plugin identity: %w", err)
	}
	if p.name == "" {
		p.name = pool.pluginName
	}
	return p, nil
}

func (p *WASMPlugin) Name() string {
	return p.name
}

func (p *WASMPlugin) Readme() string {
	return p.readme
}

// Pool returns the underlying instance pool.
func (p *WASMPlugin) Pool() *WASMInstancePool {
	return p.pool
}

// Shutdown closes the pool, shutting down every idle instance.
func (p *WASMPlugin) Shutdown() error {
	return p.pool.Close()
}

func (p *WASMPlugin) Stat(path string) (info filesystem.FileInfo, err error) {
	err = p.pool.ExecuteFS(func(fs filesystem.FileSystem) error {
		info, err = fs.Stat(path)
		return err
	})
	return info, err
}

func (p *WASMPlugin) ReadDir(path string) (entries []filesystem.FileInfo, err error) {
	err = p.pool.ExecuteFS(func(fs filesystem.FileSystem) error {
		entries, err = fs.ReadDir(path)
		return err
	})
	return entries, err
}

func (p *WASMPlugin) Read(path string, offset, size int64) (data []byte, err error) {
	err = p.pool.ExecuteFS(func(fs filesystem.FileSystem) error {
		data, err = fs.Read(path, offset, size)
		return err
	})
	return data, err
}

func (p *WASMPlugin) Write(path string, data []byte) (resp []byte, err error) {
	err = p.pool.ExecuteFS(func(fs filesystem.FileSystem) error {
		resp, err = fs.Write(path, data)
		return err
	})
	return resp, err
}

func (p *WASMPlugin) Create(path string) error {
	return p.pool.ExecuteFS(func(fs filesystem.FileSystem) error { return fs.Create(path) })
}

func (p *WASMPlugin) Mkdir(path string, perm uint32) error {
	return p.pool.ExecuteFS(func(fs filesystem.FileSystem) error { return fs.Mkdir(path, perm) })
}

func (p *WASMPlugin) Remove(path string) error {
	return p.pool.ExecuteFS(func(fs filesystem.FileSystem) error { return fs.Remove(path) })
}

func (p *WASMPlugin) RemoveAll(path string) error {
	return p.pool.ExecuteFS(func(fs filesystem.FileSystem) error { return fs.RemoveAll(path) })
}

func (p *WASMPlugin) Rename(oldPath, newPath string) error {
	return p.pool.ExecuteFS(func(fs filesystem.FileSystem) error { return fs.Rename(oldPath, newPath) })
}

func (p *WASMPlugin) Chmod(path string, mode uint32) error {
	return p.pool.ExecuteFS(func(fs filesystem.FileSystem) error { return fs.Chmod(path, mode) })
}
