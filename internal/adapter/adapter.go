// ABOUTME: Capability adapter contract and descriptor types
// ABOUTME: One adapter implementation exists per backend service type

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// Adapter errors shared by every backend implementation.
var (
	// ErrNotFound indicates an unknown resource locator or tool name.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates tool parameters that fail the tool's
	// declared input schema.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAuthenticationFailed indicates backend session establishment
	// failed. Authentication failures are not retried; the adapter stays
	// failed until its credentials are replaced.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUpstream wraps a failure reported by the backend service itself.
	ErrUpstream = errors.New("upstream error")
)

// Info is an adapter's static self-description. Producing it performs no
// backend call.
type Info struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// ToolDescriptor declares a tool an adapter exposes.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ResourceDescriptor declares a readable resource an adapter exposes.
type ResourceDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Locator     string `json:"locator"`
}

// Adapter is the five-operation capability set implemented once per
// backend service type. Discover, ListTools, and ListResources are
// static and answer from the adapter's descriptor tables; ReadResource
// and CallTool perform backend round-trips and may lazily establish a
// session on first use.
type Adapter interface {
	Discover() Info
	ListTools() []ToolDescriptor
	ListResources() []ResourceDescriptor
	ReadResource(ctx context.Context, locator string) (string, error)
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}

// Factory constructs an adapter bound to one connection's credentials.
type Factory func(credentials map[string]string, logger *slog.Logger) (Adapter, error)
