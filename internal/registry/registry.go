// ABOUTME: Thread-safe registry mapping service-type tags to adapter factories
// ABOUTME: Caches live adapter instances per connection and evicts on deletion

package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/context-gateway/internal/adapter"
	"github.com/2389/context-gateway/internal/store"
)

// ErrUnsupportedService indicates no adapter factory is registered for a
// requested service type.
var ErrUnsupportedService = errors.New("unsupported service type")

// ErrFactoryExists indicates a service type tag is already taken.
var ErrFactoryExists = errors.New("factory already registered")

// Registry resolves service-type strings to adapter instances. It is the
// single extension point for adding backend services: a new service type
// means one new factory registration, nothing else changes.
//
// Adapters own session state and metadata caches, so the registry keeps
// one live instance per connection and reuses it across requests until
// the connection is deleted.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]adapter.Factory
	instances map[string]adapter.Adapter // keyed by connection ID
	logger    *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]adapter.Factory),
		instances: make(map[string]adapter.Adapter),
		logger:    logger.With("component", "registry"),
	}
}

// RegisterFactory binds a service-type tag to an adapter factory.
// Returns ErrFactoryExists if the tag is already taken.
func (r *Registry) RegisterFactory(serviceType string, factory adapter.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[serviceType]; exists {
		return fmt.Errorf("%w: %s", ErrFactoryExists, serviceType)
	}
	r.factories[serviceType] = factory

	r.logger.Info("registered adapter factory", "service_type", serviceType)
	return nil
}

// Supported reports whether a service type has a registered factory.
func (r *Registry) Supported(serviceType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[serviceType]
	return ok
}

// ServiceTypes returns the registered service-type tags, sorted.
func (r *Registry) ServiceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// AdapterFor returns the adapter bound to a connection, constructing it
// on first use. Returns ErrUnsupportedService for an unknown service
// type tag.
func (r *Registry) AdapterFor(conn *store.Connection) (adapter.Adapter, error) {
	r.mu.RLock()
	if instance, ok := r.instances[conn.ID]; ok {
		r.mu.RUnlock()
		return instance, nil
	}
	factory, ok := r.factories[conn.ServiceType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedService, conn.ServiceType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: another caller may have constructed it while unlocked
	if instance, ok := r.instances[conn.ID]; ok {
		return instance, nil
	}

	instance, err := factory(conn.Credentials, r.logger)
	if err != nil {
		return nil, fmt.Errorf("constructing %s adapter: %w", conn.ServiceType, err)
	}
	r.instances[conn.ID] = instance

	r.logger.Debug("constructed adapter", "service_type", conn.ServiceType, "connection_id", conn.ID)
	return instance, nil
}

// Evict drops the cached adapter for a connection. Called when the
// connection is deleted or its credentials are replaced.
func (r *Registry) Evict(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, connectionID)
}

// Close clears all cached adapter instances.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.instances)
	r.instances = make(map[string]adapter.Adapter)
	r.logger.Info("registry closed", "instances_dropped", count)
}
