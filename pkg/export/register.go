package export

import (
	"sync"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

var (
	registryMu sync.Mutex
	registered filesystem.Plugin
)

// Register binds the plugin the module exports. A module exports exactly one
// plugin, normally from an init function in its main package; a second call
// panics.
func Register(p filesystem.Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if p == nil {
		panic("export: Register called with nil plugin")
	}
	if registered != nil {
		panic("export: plugin already registered: " + registered.Name())
	}
	registered = p
}

// Registered returns the bound plugin, or nil.
func Registered() filesystem.Plugin {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registered
}

func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registered = nil
}
