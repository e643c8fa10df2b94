// Package config loads the host's YAML configuration: logging, the
// instance pool, the filesystem guests delegate to, and which plugin
// modules to mount where.
package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/plugin/api"
)

// Config represents the entire configuration file
type Config struct {
	Server  ServerConfig     `yaml:"server"`
	Pool    api.PoolConfig   `yaml:"pool"`
	HostFS  HostFSConfig     `yaml:"host_fs"`
	Plugins []PluginInstance `yaml:"plugins"`
}

// ServerConfig contains host-level settings
type ServerConfig struct {
	LogLevel string `yaml:"log_level"`
}

// HostFSConfig selects the filesystem served through the host_fs imports.
// An empty Root serves an in-memory filesystem.
type HostFSConfig struct {
	Root string `yaml:"root"`
}

// PluginInstance is one WASM module mounted at one path
type PluginInstance struct {
	Name     string         `yaml:"name"`
	Path     string         `yaml:"path"`  // .wasm file
	Mount    string         `yaml:"mount"` // mount point in the namespace
	Disabled bool           `yaml:"disabled"`
	Config   map[string]any `yaml:"config"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks plugin entries and the log level.
func (c *Config) Validate() error {
	if c.Server.LogLevel != "" {
		if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
	}

	mounts := make(map[string]string)
	for i, p := range c.Plugins {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("plugins[%d]", i)
		}
		if p.Path == "" {
			return fmt.Errorf("%s: path is required", name)
		}
		if !strings.HasPrefix(p.Mount, "/") {
			return fmt.Errorf("%s: mount must be an absolute path, got %q", name, p.Mount)
		}
		if p.Disabled {
			continue
		}
		mount := path.Clean(p.Mount)
		if other, exists := mounts[mount]; exists {
			return fmt.Errorf("%s: mount %s already used by %s", name, mount, other)
		}
		mounts[mount] = name
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() log.Level {
	if level, err := log.ParseLevel(c.Server.LogLevel); err == nil {
		return level
	}
	return log.InfoLevel
}

// EnabledPlugins returns the plugin entries that are not disabled.
func (c *Config) EnabledPlugins() []PluginInstance {
	var out []PluginInstance
	for _, p := range c.Plugins {
		if !p.Disabled {
			out = append(out, p)
		}
	}
	return out
}

// SampleConfig is printed by the host CLI with --print-sample-config.
const SampleConfig = `server:
  log_level: info

pool:
  max_instances: 4
  instance_max_lifetime: 10m
  instance_max_requests: 10000
  health_check_interval: 30s
  enable_statistics: true

# Directory guests reach through host_fs; leave empty for an in-memory filesystem.
host_fs:
  root: ""

plugins:
  - name: hellofs
    path: ./hellofs.wasm
    mount: /hello
    config:
      host_prefix: /
  - name: random
    path: ./randomfs.wasm
    mount: /random
    config:
      seed: 12345
`
