// ABOUTME: Static factory table for the closed set of supported services
// ABOUTME: Adding a backend service means adding one entry here

package registry

import (
	"log/slog"
	"time"

	"github.com/2389/context-gateway/internal/adapter"
	"github.com/2389/context-gateway/internal/adapter/crm"
	"github.com/2389/context-gateway/internal/adapter/helpdesk"
)

// Service type tags. Unknown tags are rejected at the registry boundary
// with ErrUnsupportedService.
const (
	ServiceCRM      = "crm"
	ServiceHelpdesk = "helpdesk"
)

// Builtins returns the factory table for every built-in service type.
func Builtins(cacheCapacity int, upstreamWait time.Duration) map[string]adapter.Factory {
	return map[string]adapter.Factory{
		ServiceCRM:      crm.NewFactory(cacheCapacity, upstreamWait),
		ServiceHelpdesk: helpdesk.NewFactory(upstreamWait),
	}
}

// NewWithBuiltins creates a Registry preloaded with the built-in
// adapter factories.
func NewWithBuiltins(logger *slog.Logger, cacheCapacity int, upstreamWait time.Duration) *Registry {
	r := New(logger)
	for serviceType, factory := range Builtins(cacheCapacity, upstreamWait) {
		// Tags are unique by construction
		_ = r.RegisterFactory(serviceType, factory)
	}
	return r
}
