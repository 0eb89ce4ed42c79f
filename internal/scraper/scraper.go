package scraper

import (
	"context"
	"fmt"

	"GroceryScanner/internal/domain"
)

// Request carries all parameters required to execute one category fetch.
type Request struct {
	Category    string
	MaxPages    int
	MaxProducts int
}

// Adapter captures a single retailer implementation (Shoprite, PnP, etc.).
// An adapter either returns a (possibly empty) batch or a *FetchError; the
// orchestration layer treats those two outcomes very differently.
type Adapter interface {
	Store() domain.Store
	FetchProducts(ctx context.Context, req Request) ([]domain.ProductRecord, error)
}

// FetchError means the source could not be retrieved at all, as opposed to a
// reachable source that simply listed nothing.
type FetchError struct {
	Store    domain.Store
	Category string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.Store, e.Category, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Registry keeps a mapping from store identifiers to their adapters.
type Registry struct {
	adapters map[domain.Store]Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[domain.Store]Adapter{}}
}

// Register adds or replaces an adapter implementation.
func (r *Registry) Register(adapter Adapter) {
	if r.adapters == nil {
		r.adapters = map[domain.Store]Adapter{}
	}
	r.adapters[adapter.Store()] = adapter
}

// Resolve returns an adapter by store or an error if it is absent.
func (r *Registry) Resolve(store domain.Store) (Adapter, error) {
	if adapter, ok := r.adapters[store]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("store %s is not registered", store)
}

// Stores lists every registered store identifier.
func (r *Registry) Stores() []domain.Store {
	stores := make([]domain.Store, 0, len(r.adapters))
	for store := range r.adapters {
		stores = append(stores, store)
	}
	return stores
}
