// Package config holds the runtime tunables shared by every Lambdust
// component: the evaluator, the environment cache, the concurrency model,
// and module resolution. A single Config is built once at runtime
// construction (pkg/lambdust.New) and threaded down, never mutated after
// that — only the symbol interner and module search results are shared
// mutable state (spec §9, "Global mutable state").
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level runtime configuration, loadable from a
// lambdust.yaml document.
type Config struct {
	// SmallIntMin/SmallIntMax are loaded but not consulted: value.Fixnum
	// holds every integer in the int64 range without a *big.Int.
	SmallIntMin int64 `yaml:"small_int_min"`
	SmallIntMax int64 `yaml:"small_int_max"`

	// EnvCacheSize is loaded but not consulted: every environment frame's
	// LRU lookup cache has the fixed capacity value.NewFrame gives it (8),
	// and a zero here does not disable the cache.
	EnvCacheSize int `yaml:"env_cache_size"`

	// MaxStackDepth bounds non-tail-call recursion; exceeding it raises
	// StackOverflow (spec §7), which is recoverable.
	MaxStackDepth int `yaml:"max_stack_depth"`

	// WorkerPoolSize bounds how many evaluator workers (spec §5) may run
	// concurrently for a parallel-map primitive or spawned evaluators.
	// Zero means runtime.GOMAXPROCS(0).
	WorkerPoolSize int `yaml:"worker_pool_size"`

	// ModulePath is the ordered list of directories searched for imported
	// modules (spec §6, "Persisted state"): first match in order wins.
	ModulePath []string `yaml:"module_path"`

	// TypeLevel is the default gradual-typing level (spec §4.T) applied to
	// a module with no explicit per-module annotation.
	TypeLevel TypeLevel `yaml:"type_level"`
}

// TypeLevel is one of the four gradual-typing levels from spec §4.T.
type TypeLevel string

const (
	TypeLevelDynamic  TypeLevel = "dynamic"
	TypeLevelOptional TypeLevel = "optional"
	TypeLevelGradual  TypeLevel = "gradual"
	TypeLevelStatic   TypeLevel = "static"
)

// Default returns the configuration used when no lambdust.yaml is present.
func Default() *Config {
	return &Config{
		SmallIntMin:    -1 << 24,
		SmallIntMax:    1<<24 - 1,
		EnvCacheSize:   64,
		MaxStackDepth:  10_000,
		WorkerPoolSize: 0,
		ModulePath:     []string{"."},
		TypeLevel:      TypeLevelDynamic,
	}
}

// Load reads a lambdust.yaml document from path, overlaying it on top of
// Default() so a partial file only overrides the fields it mentions.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SourceFileExtensions are the recognized extensions for Lambdust module
// files (spec §6: "ASCII/UTF-8 S-expressions").
var SourceFileExtensions = []string{".scm", ".ss", ".sls", ".lambdust"}

// HasSourceExt reports whether path ends in a recognized module extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}
