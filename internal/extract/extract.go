// Package extract holds the per-source extraction adapters that turn raw
// fetched payloads into canonical records, plus the registry the worker
// uses to look adapters up by name.
package extract

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// Registry maps adapter names (as they appear in source configuration)
// to extractor implementations.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]catalog.Extractor
}

// NewRegistry returns a registry pre-populated with the built-in
// adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]catalog.Extractor)}
	r.Register("storefront", NewStorefront())
	r.Register("apifeed", NewAPIFeed())
	return r
}

// Register adds or replaces an adapter under the given name.
func (r *Registry) Register(name string, e catalog.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = e
}

// Lookup resolves an adapter by name.
func (r *Registry) Lookup(name string) (catalog.Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown extraction adapter %q (have %v)", name, r.names())
	}
	return e, nil
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
