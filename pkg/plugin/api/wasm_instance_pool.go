package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

// PoolConfig contains configuration for the instance pool
type PoolConfig struct {
	MaxInstances        int           `yaml:"max_instances"`         // Maximum number of concurrent instances
	InstanceMaxLifetime time.Duration `yaml:"instance_max_lifetime"` // Maximum instance lifetime (0 = unlimited)
	InstanceMaxRequests int64         `yaml:"instance_max_requests"` // Maximum requests per instance (0 = unlimited)
	HealthCheckInterval time.Duration `yaml:"health_check_interval"` // Health check interval (0 = disabled)
	EnableStatistics    bool          `yaml:"enable_statistics"`     // Enable statistics collection
}

// DefaultMaxInstances is used when PoolConfig.MaxInstances is not positive.
const DefaultMaxInstances = 10

// GuestFactory creates one fresh, uninitialized guest. id is the instance ID
// the pool logs it under.
type GuestFactory func(ctx context.Context, id string) (Guest, error)

// ModuleName is the wazero module name of the instance with the given ID.
func ModuleName(id string) string {
	return "plugin-" + id
}

// WASMInstancePool manages a pool of plugin instances for concurrent access.
// Each instance is readiness-checked and initialized with the same plugin
// configuration before first use.
type WASMInstancePool struct {
	ctx              context.Context
	newGuest         GuestFactory
	pluginName       string
	pluginConfig     map[string]any
	config           PoolConfig
	instances        chan *WASMModuleInstance
	currentInstances int
	mu               sync.Mutex
	stats            PoolStats
	closed           bool
}

// PoolStats tracks pool usage statistics
type PoolStats struct {
	TotalCreated   int64
	TotalDestroyed int64
	CurrentActive  int64
	TotalWaits     int64
	TotalRequests  int64
	FailedRequests int64
}

// WASMModuleInstance represents a single plugin instance
type WASMModuleInstance struct {
	id           string
	guest        Guest
	fileSystem   *WASMFileSystem
	createdAt    time.Time
	requestCount int64 // Number of requests handled by this instance
	mu           sync.Mutex
}

// ID is the unique name the instance was created under.
func (i *WASMModuleInstance) ID() string {
	return i.id
}

// FileSystem returns the instance's view of the plugin.
func (i *WASMModuleInstance) FileSystem() *WASMFileSystem {
	return i.fileSystem
}

// NewWASMInstancePool creates a pool that instantiates compiledModule in
// runtime. Modules are named after the instance ID so several can coexist
// and log lines match module names.
func NewWASMInstancePool(ctx context.Context, runtime wazero.Runtime, compiledModule wazero.CompiledModule,
	pluginName string, config PoolConfig, pluginConfig map[string]any) *WASMInstancePool {

	factory := func(ctx context.Context, id string) (Guest, error) {
		moduleConfig := wazero.NewModuleConfig().
			WithName(ModuleName(id)).
			WithStartFunctions("_initialize")
		module, err := runtime.InstantiateModule(ctx, compiledModule, moduleConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to instantiate WASM module: %w", err)
		}
		return NewModuleGuest(ctx, module), nil
	}
	return NewGuestPool(ctx, pluginName, config, pluginConfig, factory)
}

// NewGuestPool creates a pool over an arbitrary guest factory.
func NewGuestPool(ctx context.Context, pluginName string, config PoolConfig,
	pluginConfig map[string]any, newGuest GuestFactory) *WASMInstancePool {

	if config.MaxInstances <= 0 {
		config.MaxInstances = DefaultMaxInstances
	}

	pool := &WASMInstancePool{
		ctx:          ctx,
		newGuest:     newGuest,
		pluginName:   pluginName,
		pluginConfig: pluginConfig,
		config:       config,
		instances:    make(chan *WASMModuleInstance, config.MaxInstances),
	}

	log.Infof("Created WASM instance pool for %s (max_instances=%d, max_lifetime=%v, max_requests=%d)",
		pluginName, config.MaxInstances, config.InstanceMaxLifetime, config.InstanceMaxRequests)

	if config.HealthCheckInterval > 0 {
		go pool.healthCheckLoop()
	}

	return pool
}

func (p *WASMInstancePool) healthCheckLoop() {
	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if !p.performHealthCheck() {
				return
			}
		}
	}
}

// performHealthCheck reports false once the pool is closed.
func (p *WASMInstancePool) performHealthCheck() bool {
	p.mu.Lock()
	closed := p.closed
	current := p.currentInstances
	p.mu.Unlock()

	if closed {
		return false
	}

	log.Debugf("[Pool %s] Health check: active instances=%d/%d idle=%d",
		p.pluginName, current, p.config.MaxInstances, len(p.instances))
	return true
}

func (p *WASMInstancePool) recordStat(update func(s *PoolStats)) {
	if !p.config.EnableStatistics {
		return
	}
	p.mu.Lock()
	update(&p.stats)
	p.mu.Unlock()
}

// Acquire gets an instance from the pool or creates a new one if available
func (p *WASMInstancePool) Acquire() (*WASMModuleInstance, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("instance pool is closed")
	}
	p.mu.Unlock()

	p.recordStat(func(s *PoolStats) { s.TotalRequests++ })

	select {
	case instance, ok := <-p.instances:
		if !ok {
			return nil, fmt.Errorf("instance pool is closed")
		}
		return p.reuse(instance)
	default:
	}

	p.mu.Lock()
	canCreate := p.currentInstances < p.config.MaxInstances
	if canCreate {
		p.currentInstances++
	}
	p.mu.Unlock()

	if canCreate {
		instance, err := p.createInstance()
		if err != nil {
			p.mu.Lock()
			p.currentInstances--
			p.mu.Unlock()
			p.recordStat(func(s *PoolStats) { s.FailedRequests++ })
			return nil, err
		}

		p.recordStat(func(s *PoolStats) {
			s.TotalCreated++
			s.CurrentActive++
		})
		log.Debugf("Created new WASM instance %s for %s", instance.id, p.pluginName)
		return instance, nil
	}

	log.Debugf("WASM pool full for %s, waiting for available instance...", p.pluginName)
	p.recordStat(func(s *PoolStats) { s.TotalWaits++ })

	select {
	case instance, ok := <-p.instances:
		if !ok {
			return nil, fmt.Errorf("instance pool is closed")
		}
		return p.reuse(instance)
	case <-p.ctx.Done():
		return nil, p.ctx.Err()
	}
}

// reuse hands out a pooled instance, replacing it first when it is due for
// recycling.
func (p *WASMInstancePool) reuse(instance *WASMModuleInstance) (*WASMModuleInstance, error) {
	if p.shouldRecycleInstance(instance) {
		log.Debugf("Recycling expired WASM instance %s for %s", instance.id, p.pluginName)
		p.retire(instance)
		return p.Acquire()
	}
	log.Debugf("Reusing WASM instance %s from pool for %s", instance.id, p.pluginName)
	return instance, nil
}

func (p *WASMInstancePool) shouldRecycleInstance(instance *WASMModuleInstance) bool {
	instance.mu.Lock()
	defer instance.mu.Unlock()

	if p.config.InstanceMaxLifetime > 0 {
		age := time.Since(instance.createdAt)
		if age > p.config.InstanceMaxLifetime {
			log.Debugf("Instance exceeded max lifetime: %v > %v", age, p.config.InstanceMaxLifetime)
			return true
		}
	}

	if p.config.InstanceMaxRequests > 0 && instance.requestCount >= p.config.InstanceMaxRequests {
		log.Debugf("Instance exceeded max requests: %d >= %d", instance.requestCount, p.config.InstanceMaxRequests)
		return true
	}

	return false
}

// Release returns an instance to the pool
func (p *WASMInstancePool) Release(instance *WASMModuleInstance) {
	if instance == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		select {
		case p.instances <- instance:
			log.Debugf("Returned WASM instance %s to pool for %s", instance.id, p.pluginName)
			return
		default:
		}
	}

	log.Debugf("Destroying excess WASM instance %s for %s", instance.id, p.pluginName)
	p.destroyInstance(instance)
	p.currentInstances--
	if p.config.EnableStatistics {
		p.stats.TotalDestroyed++
		p.stats.CurrentActive--
	}
}

func (p *WASMInstancePool) retire(instance *WASMModuleInstance) {
	p.destroyInstance(instance)

	p.mu.Lock()
	p.currentInstances--
	if p.config.EnableStatistics {
		p.stats.TotalDestroyed++
		p.stats.CurrentActive--
	}
	p.mu.Unlock()
}

// createInstance instantiates a guest, checks it is ready, then validates
// and applies the plugin configuration.
func (p *WASMInstancePool) createInstance() (*WASMModuleInstance, error) {
	id := uuid.NewString()
	guest, err := p.newGuest(p.ctx, id)
	if err != nil {
		return nil, err
	}

	// Instances are used by one caller at a time, so no lock is needed.
	fs := &WASMFileSystem{guest: guest}

	ready, err := fs.Ready()
	if err != nil {
		guest.Close()
		return nil, fmt.Errorf("failed to call plugin_new: %w", err)
	}
	if !ready {
		guest.Close()
		return nil, fmt.Errorf("plugin %s: module has no plugin registered", p.pluginName)
	}

	if err := fs.Validate(p.pluginConfig); err != nil {
		guest.Close()
		return nil, fmt.Errorf("invalid config for plugin %s: %w", p.pluginName, err)
	}
	if err := fs.Initialize(p.pluginConfig); err != nil {
		guest.Close()
		return nil, fmt.Errorf("failed to initialize plugin %s: %w", p.pluginName, err)
	}

	return &WASMModuleInstance{
		id:         id,
		guest:      guest,
		fileSystem: fs,
		createdAt:  time.Now(),
	}, nil
}

func (p *WASMInstancePool) destroyInstance(instance *WASMModuleInstance) {
	if instance == nil || instance.guest == nil {
		return
	}
	if err := instance.fileSystem.Shutdown(); err != nil {
		log.Debugf("Shutdown of WASM instance %s for %s: %v", instance.id, p.pluginName, err)
	}
	if err := instance.guest.Close(); err != nil {
		log.Warnf("Error closing WASM instance %s for %s: %v", instance.id, p.pluginName, err)
	}
}

// Close closes the pool and destroys all idle instances. Instances still
// checked out are destroyed when released.
func (p *WASMInstancePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	close(p.instances)
	for instance := range p.instances {
		p.destroyInstance(instance)
		p.currentInstances--
	}

	log.Infof("Closed WASM instance pool for %s", p.pluginName)
	return nil
}

// GetStats returns the current pool statistics
func (p *WASMInstancePool) GetStats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Execute executes a function with an instance from the pool
// This is a convenience method that handles acquire/release automatically
func (p *WASMInstancePool) Execute(fn func(*WASMModuleInstance) error) error {
	instance, err := p.Acquire()
	if err != nil {
		return err
	}
	defer p.Release(instance)

	instance.mu.Lock()
	instance.requestCount++
	instance.mu.Unlock()

	return fn(instance)
}

// ExecuteFS executes a filesystem operation with an instance from the pool
func (p *WASMInstancePool) ExecuteFS(fn func(filesystem.FileSystem) error) error {
	return p.Execute(func(instance *WASMModuleInstance) error {
		return fn(instance.fileSystem)
	})
}
