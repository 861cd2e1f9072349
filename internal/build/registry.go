package build

import (
	"fmt"

	"github.com/vvdec/smoketest/internal/config"
	"github.com/vvdec/smoketest/internal/errors"
)

// Registry holds the configured builds in file order.
type Registry struct {
	builds []*Build
	byKey  map[string]*Build
}

// NewRegistry creates a registry from configuration.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	return NewRegistryWithEnv(cfg.Builds, EnvFromConfig(cfg))
}

// NewRegistryWithEnv creates a registry with an explicit shared context.
func NewRegistryWithEnv(builds config.Builds, env Env) (*Registry, error) {
	r := &Registry{byKey: make(map[string]*Build, len(builds))}
	for _, bc := range builds {
		b, err := New(bc, env)
		if err != nil {
			return nil, fmt.Errorf("build %q: %w", bc.Key, err)
		}
		r.add(b)
	}
	return r, nil
}

func (r *Registry) add(b *Build) {
	r.builds = append(r.builds, b)
	r.byKey[b.Key()] = b
}

// Get retrieves a build by key.
func (r *Registry) Get(key string) (*Build, bool) {
	b, ok := r.byKey[key]
	return b, ok
}

// All returns the builds in configuration order.
func (r *Registry) All() []*Build {
	return append([]*Build(nil), r.builds...)
}

// Keys returns the build keys in configuration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.builds))
	for i, b := range r.builds {
		keys[i] = b.Key()
	}
	return keys
}

// Len is the number of builds.
func (r *Registry) Len() int { return len(r.builds) }

// Select restricts the registry to the given keys, keeping configuration
// order. An empty selection keeps every build.
func (r *Registry) Select(keys []string) (*Registry, error) {
	if len(keys) == 0 {
		return r, nil
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := r.byKey[k]; !ok {
			return nil, errors.NotFound("build", k)
		}
		want[k] = true
	}

	sel := &Registry{byKey: make(map[string]*Build, len(keys))}
	for _, b := range r.builds {
		if want[b.Key()] {
			sel.add(b)
		}
	}
	return sel, nil
}
