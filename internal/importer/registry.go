package importer

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Register adds an importer definition to the registry.
// Panics if a definition with the same key is already registered or the
// definition is structurally invalid; registration happens at init time
// where a panic is the right failure mode.
func Register(def Definition) {
	if err := checkDefinition(def); err != nil {
		panic(fmt.Sprintf("importer %q: %v", def.Key, err))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("importer already registered: %s", def.Key))
	}
	registry[def.Key] = def
}

// Get returns an importer definition by key.
func Get(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered definitions sorted by key.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Count returns the number of registered importers.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered importers. Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}

func checkDefinition(def Definition) error {
	if def.Key == "" {
		return fmt.Errorf("key is required")
	}
	if len(def.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if f.Field == "" {
			return fmt.Errorf("field with empty name")
		}
		if seen[f.Field] {
			return fmt.Errorf("duplicate field %q", f.Field)
		}
		seen[f.Field] = true
	}
	if def.GroupField != "" && !seen[def.GroupField] {
		return fmt.Errorf("group field %q is not a schema field", def.GroupField)
	}
	for _, r := range def.HeaderRules {
		if !seen[r.Field] {
			return fmt.Errorf("header rule %q targets unknown field %q", r.Name, r.Field)
		}
		if r.Match == nil {
			return fmt.Errorf("header rule %q has no predicate", r.Name)
		}
	}
	if def.EntityKey == "" || def.Endpoint == "" {
		return fmt.Errorf("entity key and endpoint are required")
	}
	return nil
}
