// Package mountablefs composes several plugin filesystems into one
// namespace. Paths are routed to the mount with the longest matching
// prefix; directories above mount points are synthesized, and symlinks
// are kept at this layer so they can cross mounts.
package mountablefs

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/plugin/api"
)

// Meta values for MountableFS
const (
	MetaName            = "mountablefs"
	MetaValueRoot       = "root"
	MetaValueMountPoint = "mount-point"
	MetaValueSymlink    = "symlink"
)

// maxSymlinkHops bounds symlink resolution, like ELOOP on POSIX systems.
const maxSymlinkHops = 40

// Plugin is anything that can be mounted.
type Plugin interface {
	filesystem.FileSystem
	Name() string
	Shutdown() error
}

// MountPoint represents a mounted plugin
type MountPoint struct {
	Path   string
	Plugin Plugin
	// LoaderKey is set for plugins loaded by MountWASM; unmounting releases
	// the loader reference instead of shutting the plugin down directly.
	LoaderKey string
}

// MountableFS is a FileSystem that supports mounting plugins at specific paths
type MountableFS struct {
	mounts     map[string]*MountPoint
	mountPaths []string // sorted by length (longest first) for prefix matching
	symlinks   map[string]string
	loader     *api.WASMPluginLoader
	mu         sync.RWMutex
}

var _ filesystem.FileSystem = (*MountableFS)(nil)

// NewMountableFS creates a new mountable file system. WASM plugins mounted
// through MountWASM are pooled with poolConfig.
func NewMountableFS(poolConfig api.PoolConfig) *MountableFS {
	return &MountableFS{
		mounts:   make(map[string]*MountPoint),
		symlinks: make(map[string]string),
		loader:   api.NewWASMPluginLoader(context.Background(), poolConfig),
	}
}

// Mount mounts a plugin at the specified path
func (mfs *MountableFS) Mount(mountPath string, plugin Plugin) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	return mfs.addMount(&MountPoint{Path: filesystem.NormalizePath(mountPath), Plugin: plugin})
}

// MountWASM loads a WASM plugin module and mounts it. hostFS is what the
// plugin reaches through its host_fs imports and may be nil.
func (mfs *MountableFS) MountWASM(mountPath, wasmPath string, config map[string]any, hostFS filesystem.FileSystem) error {
	mountPath = filesystem.NormalizePath(mountPath)

	mfs.mu.RLock()
	_, exists := mfs.mounts[mountPath]
	mfs.mu.RUnlock()
	if exists {
		return fmt.Errorf("path already has a mount: %s", mountPath)
	}

	loaded, err := mfs.loader.LoadWASMPlugin(wasmPath, config, hostFS)
	if err != nil {
		return err
	}

	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	err = mfs.addMount(&MountPoint{Path: mountPath, Plugin: loaded.Plugin, LoaderKey: loaded.Key})
	if err != nil {
		mfs.loader.UnloadWASMPlugin(loaded.Key)
		return err
	}
	log.Infof("mounted %s (%s) at %s", loaded.Plugin.Name(), wasmPath, mountPath)
	return nil
}

func (mfs *MountableFS) addMount(mount *MountPoint) error {
	if _, exists := mfs.mounts[mount.Path]; exists {
		return fmt.Errorf("path already has a mount: %s", mount.Path)
	}
	mfs.mounts[mount.Path] = mount
	mfs.mountPaths = append(mfs.mountPaths, mount.Path)
	mfs.sortMountPaths()
	return nil
}

// Unmount unmounts a plugin from the specified path
func (mfs *MountableFS) Unmount(mountPath string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mountPath = filesystem.NormalizePath(mountPath)
	mount, exists := mfs.mounts[mountPath]
	if !exists {
		return fmt.Errorf("no mount at path: %s", mountPath)
	}

	if err := mfs.release(mount); err != nil {
		return err
	}

	delete(mfs.mounts, mountPath)
	for i, p := range mfs.mountPaths {
		if p == mountPath {
			mfs.mountPaths = append(mfs.mountPaths[:i], mfs.mountPaths[i+1:]...)
			break
		}
	}

	log.Infof("Unmounted plugin at %s", mountPath)
	return nil
}

func (mfs *MountableFS) release(mount *MountPoint) error {
	if mount.LoaderKey != "" {
		return mfs.loader.UnloadWASMPlugin(mount.LoaderKey)
	}
	if err := mount.Plugin.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown plugin: %w", err)
	}
	return nil
}

// GetMounts returns all mount points ordered by path
func (mfs *MountableFS) GetMounts() []*MountPoint {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	mounts := make([]*MountPoint, 0, len(mfs.mounts))
	for _, mount := range mfs.mounts {
		mounts = append(mounts, mount)
	}
	sort.Slice(mounts, func(i, j int) bool { return mounts[i].Path < mounts[j].Path })
	return mounts
}

// Close unmounts everything.
func (mfs *MountableFS) Close() error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	var firstErr error
	for _, mount := range mfs.mounts {
		if err := mfs.release(mount); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	mfs.mounts = make(map[string]*MountPoint)
	mfs.mountPaths = nil
	if err := mfs.loader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// findMount finds the mount point for a given path
// Returns the mount and the relative path within the mount
func (mfs *MountableFS) findMount(p string) (*MountPoint, string, bool) {
	p = filesystem.NormalizePath(p)

	for _, mountPath := range mfs.mountPaths {
		if p == mountPath {
			return mfs.mounts[mountPath], "/", true
		}
		if mountPath == "/" {
			return mfs.mounts[mountPath], p, true
		}
		if strings.HasPrefix(p, mountPath+"/") {
			return mfs.mounts[mountPath], strings.TrimPrefix(p, mountPath), true
		}
	}

	return nil, "", false
}

func (mfs *MountableFS) sortMountPaths() {
	sort.SliceStable(mfs.mountPaths, func(i, j int) bool {
		return len(mfs.mountPaths[i]) > len(mfs.mountPaths[j])
	})
}

// virtualChildren lists the next path component of every mount below dir.
func (mfs *MountableFS) virtualChildren(dir string) []string {
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	seen := make(map[string]bool)
	var names []string
	for _, mountPath := range mfs.mountPaths {
		if mountPath == dir || !strings.HasPrefix(mountPath, prefix) {
			continue
		}
		name := strings.TrimPrefix(mountPath, prefix)
		if i := strings.Index(name, "/"); i > 0 {
			name = name[:i]
		}
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func mountPointInfo(name string) filesystem.FileInfo {
	return filesystem.NewDir(name, 0o755).WithMeta(filesystem.MetaData{Name: MetaName, Type: MetaValueMountPoint})
}

// resolve follows symlinks in every component of p.
func (mfs *MountableFS) resolve(p string) (string, error) {
	p = filesystem.NormalizePath(p)
	for hops := 0; ; hops++ {
		next, ok := mfs.expandOnce(p)
		if !ok {
			return p, nil
		}
		if hops >= maxSymlinkHops {
			return "", filesystem.Other("too many levels of symbolic links: " + p)
		}
		p = next
	}
}

func (mfs *MountableFS) expandOnce(p string) (string, bool) {
	if p == "/" || len(mfs.symlinks) == 0 {
		return p, false
	}
	parts := strings.Split(p[1:], "/")
	cur := ""
	for i, part := range parts {
		cur += "/" + part
		if target, ok := mfs.symlinks[cur]; ok {
			resolved := absTarget(cur, target)
			if rest := parts[i+1:]; len(rest) > 0 {
				resolved = path.Join(resolved, strings.Join(rest, "/"))
			}
			return resolved, true
		}
	}
	return p, false
}

func absTarget(link, target string) string {
	if strings.HasPrefix(target, "/") {
		return filesystem.NormalizePath(target)
	}
	return filesystem.NormalizePath(path.Join(path.Dir(link), target))
}

// linkAt reports the symlink named by p itself, with the parent resolved.
func (mfs *MountableFS) linkAt(p string) (key, target string, ok bool, err error) {
	p = filesystem.NormalizePath(p)
	if p == "/" {
		return "", "", false, nil
	}
	parent, err := mfs.resolve(path.Dir(p))
	if err != nil {
		return "", "", false, err
	}
	key = path.Join(parent, path.Base(p))
	target, ok = mfs.symlinks[key]
	return key, target, ok, nil
}

// route resolves p and finds the mount serving it.
func (mfs *MountableFS) route(p string) (*MountPoint, string, error) {
	resolved, err := mfs.resolve(p)
	if err != nil {
		return nil, "", err
	}
	mount, rel, found := mfs.findMount(resolved)
	if !found {
		return nil, "", filesystem.NotFound()
	}
	return mount, rel, nil
}

// Symlink creates link pointing at target. Relative targets are resolved
// against the directory containing link.
func (mfs *MountableFS) Symlink(target, link string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	key, _, exists, err := mfs.linkAt(link)
	if err != nil {
		return err
	}
	if exists {
		return filesystem.Other(fmt.Sprintf("file exists: %s", link))
	}
	if _, err := mfs.stat(key); err == nil {
		return filesystem.Other(fmt.Sprintf("file exists: %s", link))
	}
	parent, err := mfs.stat(path.Dir(key))
	if err != nil || !parent.IsDir {
		return filesystem.Other(fmt.Sprintf("parent directory does not exist: %s", path.Dir(link)))
	}
	mfs.symlinks[key] = target
	return nil
}

// Readlink returns the target a symlink was created with.
func (mfs *MountableFS) Readlink(link string) (string, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	_, target, ok, err := mfs.linkAt(link)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", filesystem.Other(fmt.Sprintf("not a symlink: %s", link))
	}
	return target, nil
}

func (mfs *MountableFS) symlinkInfo(name, target string, targetInfo *filesystem.FileInfo) filesystem.FileInfo {
	content, _ := json.Marshal(map[string]string{"target": target})
	info := filesystem.FileInfo{Name: name, Mode: 0o777}
	if targetInfo != nil {
		info.Size = targetInfo.Size
		info.IsDir = targetInfo.IsDir
		info.ModTime = targetInfo.ModTime
	}
	return info.WithMeta(filesystem.MetaData{Name: MetaName, Type: MetaValueSymlink, Content: string(content)})
}

func (mfs *MountableFS) Stat(p string) (filesystem.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.stat(p)
}

func (mfs *MountableFS) stat(p string) (filesystem.FileInfo, error) {
	p = filesystem.NormalizePath(p)

	key, target, isLink, err := mfs.linkAt(p)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	if isLink {
		var targetInfo *filesystem.FileInfo
		if resolved, err := mfs.resolve(key); err == nil {
			if info, err := mfs.statResolved(resolved); err == nil {
				targetInfo = &info
			}
		}
		return mfs.symlinkInfo(path.Base(p), target, targetInfo), nil
	}

	resolved, err := mfs.resolve(p)
	if err != nil {
		return filesystem.FileInfo{}, err
	}
	return mfs.statResolved(resolved)
}

func (mfs *MountableFS) statResolved(p string) (filesystem.FileInfo, error) {
	if mount, rel, found := mfs.findMount(p); found {
		info, err := mount.Plugin.Stat(rel)
		if err == nil {
			if rel == "/" {
				info.Name = path.Base(p)
			}
			return info, nil
		}
		if len(mfs.virtualChildren(p)) == 0 {
			return filesystem.FileInfo{}, err
		}
	}
	if p == "/" {
		return filesystem.NewDir("/", 0o755).WithMeta(filesystem.MetaData{Name: MetaName, Type: MetaValueRoot}), nil
	}
	if len(mfs.virtualChildren(p)) > 0 {
		return mountPointInfo(path.Base(p)), nil
	}
	return filesystem.FileInfo{}, filesystem.NotFound()
}

// ReadDir merges the mounted plugin's listing, mount points below the
// directory and symlinks created in it.
func (mfs *MountableFS) ReadDir(p string) ([]filesystem.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	resolved, err := mfs.resolve(p)
	if err != nil {
		return nil, err
	}

	var infos []filesystem.FileInfo
	seen := make(map[string]bool)
	mount, rel, found := mfs.findMount(resolved)
	virtual := mfs.virtualChildren(resolved)
	if found {
		entries, err := mount.Plugin.ReadDir(rel)
		if err != nil && len(virtual) == 0 {
			return nil, err
		}
		for _, e := range entries {
			seen[e.Name] = true
			infos = append(infos, e)
		}
	} else if len(virtual) == 0 && resolved != "/" {
		return nil, filesystem.NotFound()
	}

	for _, name := range virtual {
		if !seen[name] {
			seen[name] = true
			infos = append(infos, mountPointInfo(name))
		}
	}

	links := make([]string, 0)
	for key := range mfs.symlinks {
		if path.Dir(key) == resolved {
			links = append(links, key)
		}
	}
	sort.Strings(links)
	for _, key := range links {
		name := path.Base(key)
		if seen[name] {
			continue
		}
		var targetInfo *filesystem.FileInfo
		if target, err := mfs.resolve(key); err == nil {
			if info, err := mfs.statResolved(target); err == nil {
				targetInfo = &info
			}
		}
		infos = append(infos, mfs.symlinkInfo(name, mfs.symlinks[key], targetInfo))
	}

	if infos == nil {
		infos = []filesystem.FileInfo{}
	}
	return infos, nil
}

func (mfs *MountableFS) Read(p string, offset, size int64) ([]byte, error) {
	mfs.mu.RLock()
	mount, rel, err := mfs.route(p)
	mfs.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return mount.Plugin.Read(rel, offset, size)
}

func (mfs *MountableFS) Write(p string, data []byte) ([]byte, error) {
	mfs.mu.RLock()
	mount, rel, err := mfs.route(p)
	mfs.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return mount.Plugin.Write(rel, data)
}

func (mfs *MountableFS) Create(p string) error {
	mfs.mu.RLock()
	mount, rel, err := mfs.route(p)
	mfs.mu.RUnlock()
	if err != nil {
		return err
	}
	return mount.Plugin.Create(rel)
}

func (mfs *MountableFS) Mkdir(p string, perm uint32) error {
	mfs.mu.RLock()
	mount, rel, err := mfs.route(p)
	mfs.mu.RUnlock()
	if err != nil {
		return err
	}
	return mount.Plugin.Mkdir(rel, perm)
}

// Remove deletes a symlink itself rather than its target.
func (mfs *MountableFS) Remove(p string) error {
	mfs.mu.Lock()
	key, _, isLink, err := mfs.linkAt(p)
	if err == nil && isLink {
		delete(mfs.symlinks, key)
		mfs.mu.Unlock()
		return nil
	}
	mount, rel, err := mfs.route(p)
	mfs.mu.Unlock()
	if err != nil {
		return err
	}
	return mount.Plugin.Remove(rel)
}

// RemoveAll also drops the symlinks that lived below the removed path.
func (mfs *MountableFS) RemoveAll(p string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	key, _, isLink, err := mfs.linkAt(p)
	if err != nil {
		return err
	}
	if isLink {
		delete(mfs.symlinks, key)
		return nil
	}
	resolved, err := mfs.resolve(p)
	if err != nil {
		return err
	}
	mount, rel, found := mfs.findMount(resolved)
	if !found {
		return filesystem.NotFound()
	}
	if err := mount.Plugin.RemoveAll(rel); err != nil {
		return err
	}
	for link := range mfs.symlinks {
		if strings.HasPrefix(link, resolved+"/") {
			delete(mfs.symlinks, link)
		}
	}
	return nil
}

// Rename moves within one mount. Renaming a symlink renames the link.
func (mfs *MountableFS) Rename(oldPath, newPath string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	key, target, isLink, err := mfs.linkAt(oldPath)
	if err != nil {
		return err
	}
	if isLink {
		newKey, _, _, err := mfs.linkAt(newPath)
		if err != nil {
			return err
		}
		delete(mfs.symlinks, key)
		mfs.symlinks[newKey] = target
		return nil
	}

	oldMount, oldRel, err := mfs.route(oldPath)
	if err != nil {
		return err
	}
	newMount, newRel, err := mfs.route(newPath)
	if err != nil {
		return err
	}
	if oldMount != newMount {
		return filesystem.Other(fmt.Sprintf("cannot rename across mounts: %s -> %s", oldPath, newPath))
	}
	return oldMount.Plugin.Rename(oldRel, newRel)
}

func (mfs *MountableFS) Chmod(p string, mode uint32) error {
	mfs.mu.RLock()
	mount, rel, err := mfs.route(p)
	mfs.mu.RUnlock()
	if err != nil {
		return err
	}
	return mount.Plugin.Chmod(rel, mode)
}
