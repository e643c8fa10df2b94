// Package randomfs generates pseudo-random alphanumeric strings on demand.
package randomfs

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

const (
	PluginName = "random_string_fs"

	generatePath  = "/generate"
	defaultLength = 6
	maxLength     = 1024

	// ConfigSeed overrides the generator seed.
	ConfigSeed = "seed"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultSeed makes output reproducible across instances.
const DefaultSeed uint64 = 12345

// RandomFS serves /generate.
type RandomFS struct {
	filesystem.ReadOnly

	mu   sync.Mutex
	seed uint64
}

var _ filesystem.Plugin = (*RandomFS)(nil)

func New() *RandomFS {
	return &RandomFS{seed: DefaultSeed}
}

func (r *RandomFS) Name() string {
	return PluginName
}

func (r *RandomFS) Readme() string {
	return `RandomStringFS - Generate random strings [a-zA-Z0-9]

USAGE:
  Read from /generate to get a 6 character string
  Write a length (1-1024) to /generate to get a string of that length

CONFIGURATION:
  seed - Generator seed (default 12345)
`
}

func (r *RandomFS) Validate(cfg filesystem.Config) error {
	if cfg.Has(ConfigSeed) {
		if _, ok := cfg.GetInt(ConfigSeed); !ok {
			return filesystem.Other("seed must be an integer")
		}
	}
	return nil
}

func (r *RandomFS) Initialize(cfg filesystem.Config) error {
	if seed, ok := cfg.GetInt(ConfigSeed); ok {
		r.mu.Lock()
		r.seed = uint64(seed)
		r.mu.Unlock()
	}
	return nil
}

// generate advances a linear congruential generator once per character.
func (r *RandomFS) generate(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, n)
	for i := range out {
		r.seed = r.seed*1103515245 + 12345
		b := byte((r.seed / 65536) % 256)
		out[i] = charset[int(b)%len(charset)]
	}
	return out
}

func (r *RandomFS) Stat(path string) (filesystem.FileInfo, error) {
	switch filesystem.NormalizePath(path) {
	case "/":
		return filesystem.NewDir("", 0o755), nil
	case generatePath:
		return filesystem.NewFile("generate", 0, 0o644), nil
	}
	return filesystem.FileInfo{}, filesystem.NotFound()
}

func (r *RandomFS) ReadDir(path string) ([]filesystem.FileInfo, error) {
	if filesystem.NormalizePath(path) != "/" {
		return nil, filesystem.NotFound()
	}
	return []filesystem.FileInfo{filesystem.NewFile("generate", 0, 0o644)}, nil
}

// Read ignores offset and size; every read yields a fresh string.
func (r *RandomFS) Read(path string, offset, size int64) ([]byte, error) {
	if filesystem.NormalizePath(path) != generatePath {
		return nil, filesystem.NotFound()
	}
	return r.generate(defaultLength), nil
}

// Write parses data as a decimal length and returns a string of that length.
func (r *RandomFS) Write(path string, data []byte) ([]byte, error) {
	if filesystem.NormalizePath(path) != generatePath {
		return nil, filesystem.NotFound()
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, filesystem.Other("invalid input: not a valid number")
	}
	if n < 1 || n > maxLength {
		return nil, filesystem.Other(fmt.Sprintf("invalid input: length must be between 1 and %d", maxLength))
	}
	return r.generate(n), nil
}

// Chmod is accepted and ignored.
func (r *RandomFS) Chmod(path string, mode uint32) error {
	return nil
}
