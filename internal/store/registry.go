package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/tenantrag/internal/metrics"
	"go.uber.org/zap"
)

// Registry maps tenant ids to their stores. Stores are created on first access and
// live until the tenant is deleted.
type Registry struct {
	persister Persister
	opts      []Option
	logger    *zap.Logger

	mu     sync.RWMutex
	stores map[string]*TenantStore
	// deleting holds tenants whose snapshot removal is in flight; closed when done.
	deleting map[string]chan struct{}
}

// NewRegistry returns an empty registry whose stores persist through p.
// opts are applied to every store the registry creates.
func NewRegistry(p Persister, opts ...Option) *Registry {
	return &Registry{
		persister: p,
		opts:      opts,
		logger:    buildOptions(opts).logger,
		stores:    make(map[string]*TenantStore),
		deleting:  make(map[string]chan struct{}),
	}
}

// Get returns the tenant's store, creating and loading it on first access. The registry
// lock covers only the lookup-or-insert; loading runs under the store's own once guard.
// A Get racing a Delete of the same tenant waits for the snapshot removal to finish.
func (r *Registry) Get(ctx context.Context, tenantID string) (*TenantStore, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	for {
		r.mu.RLock()
		s, ok := r.stores[tenantID]
		r.mu.RUnlock()
		if ok {
			s.ensureLoaded(ctx)
			return s, nil
		}

		r.mu.Lock()
		if done, busy := r.deleting[tenantID]; busy {
			r.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		s, ok = r.stores[tenantID]
		if !ok {
			s = NewTenantStore(tenantID, r.persister, r.opts...)
			r.stores[tenantID] = s
			metrics.TenantsLoaded.Set(float64(len(r.stores)))
			r.logger.Debug("tenant store created", zap.String("tenant_id", tenantID))
		}
		r.mu.Unlock()
		s.ensureLoaded(ctx)
		return s, nil
	}
}

// Delete drops the tenant's store and its persisted snapshot. Handles obtained earlier
// are closed: mutations through them fail with ErrStoreClosed. Unknown tenants are a no-op.
// Only the map update holds the registry lock; other tenants are not blocked by the removal.
func (r *Registry) Delete(ctx context.Context, tenantID string) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}
	s, done := r.beginDelete(tenantID)
	defer func() {
		r.mu.Lock()
		delete(r.deleting, tenantID)
		r.mu.Unlock()
		close(done)
	}()

	if s != nil {
		s.close()
	}
	if err := r.persister.Delete(context.WithoutCancel(ctx), tenantID); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues(r.persister.Kind()).Inc()
		return fmt.Errorf("%w: delete tenant %q: %w", ErrPersistence, tenantID, err)
	}
	r.logger.Debug("tenant deleted", zap.String("tenant_id", tenantID))
	return nil
}

// beginDelete unmaps the tenant and records it as being deleted, waiting out any
// concurrent Delete of the same tenant first.
func (r *Registry) beginDelete(tenantID string) (*TenantStore, chan struct{}) {
	r.mu.Lock()
	for {
		prev, busy := r.deleting[tenantID]
		if !busy {
			break
		}
		r.mu.Unlock()
		<-prev
		r.mu.Lock()
	}
	defer r.mu.Unlock()
	s := r.stores[tenantID]
	if s != nil {
		delete(r.stores, tenantID)
		metrics.TenantsLoaded.Set(float64(len(r.stores)))
	}
	done := make(chan struct{})
	r.deleting[tenantID] = done
	return s, done
}

// Tenants returns the ids of cached stores, sorted.
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Persister returns the backend shared by all stores.
func (r *Registry) Persister() Persister { return r.persister }

// Close releases the persister.
func (r *Registry) Close() error {
	return r.persister.Close()
}
