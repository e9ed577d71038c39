// Package registry loads and resolves the model-descriptor table: id,
// display name, preferred precision, and the thinking capability flag.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gend/internal/common/fsutil"
	"gend/pkg/types"
)

// Registry is an immutable set of model descriptors. Safe for concurrent
// reads once constructed.
type Registry struct {
	models []types.ModelDescriptor
	byID   map[string]types.ModelDescriptor
}

// New builds a Registry from descriptors, validating ids and dtype tags.
func New(models []types.ModelDescriptor) (*Registry, error) {
	byID := make(map[string]types.ModelDescriptor, len(models))
	for _, m := range models {
		if strings.TrimSpace(m.ID) == "" {
			return nil, fmt.Errorf("registry: empty model id")
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate model id %q", m.ID)
		}
		if m.Dtype != "" && !types.KnownDtype(m.Dtype) {
			return nil, fmt.Errorf("registry: model %q has unknown dtype %q", m.ID, m.Dtype)
		}
		byID[m.ID] = m
	}
	out := make([]types.ModelDescriptor, len(models))
	copy(out, models)
	return &Registry{models: out, byID: byID}, nil
}

// FromWire builds a Registry from the id → entry mapping carried by the
// model_registry command. Iteration order of the map is not meaningful, so
// models are sorted by id for stable listings.
func FromWire(entries map[string]types.RegistryEntry) (*Registry, error) {
	models := make([]types.ModelDescriptor, 0, len(entries))
	for id, e := range entries {
		models = append(models, types.ModelDescriptor{
			ID:       id,
			Friendly: e.Friendly,
			Dtype:    e.Dtype,
			Thinking: e.Thinking,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return New(models)
}

// LoadFile reads a registry file based on its extension.
// Supports: .yaml/.yml, .json. The file holds an id → entry mapping.
func LoadFile(path string) (*Registry, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var entries map[string]types.RegistryEntry
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("registry %s: %w", p, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("registry %s: %w", p, err)
		}
	default:
		return nil, fmt.Errorf("unsupported registry extension: %s", ext)
	}
	return FromWire(entries)
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (types.ModelDescriptor, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// List returns a shallow copy of all descriptors.
func (r *Registry) List() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, len(r.models))
	copy(out, r.models)
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int { return len(r.models) }
