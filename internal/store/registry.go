package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Registry is the durable set of already-forwarded message identifiers.
// An identifier, once added, is never removed; Add is idempotent. The
// file on disk is a sorted JSON array so it diffs cleanly.
type Registry struct {
	mu   sync.Mutex
	path string
	ids  map[string]struct{}
}

// OpenRegistry loads (or creates) the registry under dir. A missing or
// corrupt file yields an empty registry.
func OpenRegistry(dir string) (*Registry, error) {
	r := &Registry{
		path: filepath.Join(dir, registryFile),
		ids:  map[string]struct{}{},
	}
	if err := ensureDir(r.path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return r, nil
	}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return r, nil
}

// Has reports whether id has already been forwarded.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Add records id as forwarded and persists the registry. Adding an
// existing id is a no-op.
func (r *Registry) Add(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return nil
	}
	r.ids[id] = struct{}{}
	return r.persistLocked()
}

// Count returns the number of recorded identifiers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *Registry) persistLocked() error {
	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
