package transform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/CosmoTheDev/hubwatch/models"
)

// Registry maps notification types to transformers.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[models.NotificationType]Transformer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[models.NotificationType]Transformer)}
}

// DefaultRegistry returns a registry holding the built-in transformers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Transformer{PolicyViolation{}, PolicyOverride{}, Vulnerability{}, VersionUpdate{}} {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds t. It returns an error if its type is already registered.
func (r *Registry) Register(t Transformer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	typ := t.Type()
	if _, exists := r.byType[typ]; exists {
		return fmt.Errorf("transform: type %q already registered", typ)
	}
	r.byType[typ] = t
	return nil
}

// ForType returns the transformer for typ, or nil if none.
func (r *Registry) ForType(typ models.NotificationType) Transformer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[typ]
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []models.NotificationType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.NotificationType, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
