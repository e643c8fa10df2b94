package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/zeebo/xxh3"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/codec"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

// LoadedWASMPlugin tracks a loaded WASM plugin
type LoadedWASMPlugin struct {
	Key      string
	Digest   uint64 // xxh3 of the module bytes
	Plugin   *WASMPlugin
	Runtime  wazero.Runtime
	RefCount int

	configJSON string
	hostFS     filesystem.FileSystem
}

// sameFileSystem reports whether a and b are the same host filesystem.
// Values of non-comparable dynamic types are never shared.
func sameFileSystem(a, b filesystem.FileSystem) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// WASMPluginLoader manages loading and unloading of WASM plugins. Every
// plugin gets its own runtime, since the env module carries the plugin's
// host filesystem; compiled code is shared through one compilation cache.
type WASMPluginLoader struct {
	ctx           context.Context
	cache         wazero.CompilationCache
	poolConfig    PoolConfig
	loadedPlugins map[string]*LoadedWASMPlugin
	mu            sync.RWMutex
}

// NewWASMPluginLoader creates a new WASM plugin loader
func NewWASMPluginLoader(ctx context.Context, poolConfig PoolConfig) *WASMPluginLoader {
	return &WASMPluginLoader{
		ctx:           ctx,
		cache:         wazero.NewCompilationCache(),
		poolConfig:    poolConfig,
		loadedPlugins: make(map[string]*LoadedWASMPlugin),
	}
}

// LoadWASMPlugin loads a plugin from a WASM file. hostFS, which may be nil,
// is what the plugin reaches through its host_fs imports.
func (wl *WASMPluginLoader) LoadWASMPlugin(wasmPath string, pluginConfig map[string]any, hostFS filesystem.FileSystem) (*LoadedWASMPlugin, error) {
	absPath, err := filepath.Abs(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	wasmBytes, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read WASM file %s: %w", wasmPath, err)
	}
	return wl.LoadWASMBytes(absPath, wasmBytes, pluginConfig, hostFS)
}

// LoadWASMBytes loads a plugin module under key. A load only takes another
// reference on an existing plugin when the module bytes, the encoded plugin
// config and the host filesystem are all the same; anything else gets its
// own runtime and pool alongside, keyed key#N.
func (wl *WASMPluginLoader) LoadWASMBytes(key string, wasmBytes []byte, pluginConfig map[string]any, hostFS filesystem.FileSystem) (*LoadedWASMPlugin, error) {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	digest := xxh3.Hash(wasmBytes)
	configJSON, err := codec.EncodeConfig(pluginConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plugin config: %w", err)
	}

	uniqueKey := key
	for counter := 1; ; counter++ {
		loaded, exists := wl.loadedPlugins[uniqueKey]
		if !exists {
			break
		}
		if loaded.Digest == digest && loaded.configJSON == configJSON && sameFileSystem(loaded.hostFS, hostFS) {
			loaded.RefCount++
			log.Infof("WASM plugin %s already loaded (refCount: %d)", uniqueKey, loaded.RefCount)
			return loaded, nil
		}
		uniqueKey = fmt.Sprintf("%s#%d", key, counter)
	}
	if uniqueKey != key {
		log.Infof("WASM plugin %s already loaded with other bytes or config, loading new instance as %s", key, uniqueKey)
		key = uniqueKey
	}

	ctx := wl.ctx
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCompilationCache(wl.cache))

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	if hostFS == nil {
		log.Infof("No host filesystem provided for %s, using stub functions", key)
	}
	if err := RegisterHostFS(ctx, r, hostFS); err != nil {
		r.Close(ctx)
		return nil, err
	}

	compiledModule, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to compile WASM module: %w", err)
	}

	pool := NewWASMInstancePool(ctx, r, compiledModule, filepath.Base(key), wl.poolConfig, pluginConfig)
	wasmPlugin, err := NewWASMPlugin(pool)
	if err != nil {
		pool.Close()
		r.Close(ctx)
		return nil, fmt.Errorf("failed to create WASM plugin wrapper: %w", err)
	}

	loaded := &LoadedWASMPlugin{
		Key:        key,
		Digest:     digest,
		Plugin:     wasmPlugin,
		Runtime:    r,
		RefCount:   1,
		configJSON: configJSON,
		hostFS:     hostFS,
	}
	wl.loadedPlugins[key] = loaded

	log.Infof("Successfully loaded WASM plugin: %s (name: %s, digest: %016x)", key, wasmPlugin.Name(), digest)
	return loaded, nil
}

// UnloadWASMPlugin decrements the reference count of key and unloads the
// plugin once it reaches zero.
func (wl *WASMPluginLoader) UnloadWASMPlugin(key string) error {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	loaded, exists := wl.loadedPlugins[key]
	if !exists {
		return fmt.Errorf("WASM plugin not loaded: %s", key)
	}

	loaded.RefCount--
	if loaded.RefCount > 0 {
		log.Infof("Decremented WASM plugin ref count: %s (refCount: %d)", key, loaded.RefCount)
		return nil
	}

	wl.unload(loaded)
	return nil
}

func (wl *WASMPluginLoader) unload(loaded *LoadedWASMPlugin) {
	if err := loaded.Plugin.Shutdown(); err != nil {
		log.Warnf("Error shutting down WASM plugin %s: %v", loaded.Key, err)
	}
	if err := loaded.Runtime.Close(wl.ctx); err != nil {
		log.Warnf("Error closing WASM runtime %s: %v", loaded.Key, err)
	}
	delete(wl.loadedPlugins, loaded.Key)
	log.Infof("Unloaded WASM plugin: %s", loaded.Key)
}

// GetLoadedPlugins returns the keys of all loaded plugins, sorted.
func (wl *WASMPluginLoader) GetLoadedPlugins() []string {
	wl.mu.RLock()
	defer wl.mu.RUnlock()

	keys := make([]string, 0, len(wl.loadedPlugins))
	for key := range wl.loadedPlugins {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsLoaded checks if a WASM plugin is currently loaded
func (wl *WASMPluginLoader) IsLoaded(key string) bool {
	wl.mu.RLock()
	defer wl.mu.RUnlock()

	_, exists := wl.loadedPlugins[key]
	return exists
}

// Close unloads every plugin regardless of reference counts.
func (wl *WASMPluginLoader) Close() error {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	for _, loaded := range wl.loadedPlugins {
		wl.unload(loaded)
	}
	return wl.cache.Close(wl.ctx)
}
