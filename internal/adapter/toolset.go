// ABOUTME: Ordered tool table with schema-validated dispatch
// ABOUTME: Supports explicit runtime add/remove; resource tables stay immutable

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrToolExists indicates an attempt to register a tool name twice.
var ErrToolExists = errors.New("tool already registered")

// ToolHandler executes a tool call with already-validated arguments.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// registeredTool pairs a descriptor with its resolved schema and handler.
type registeredTool struct {
	desc     ToolDescriptor
	resolved *jsonschema.Resolved
	handler  ToolHandler
}

// Toolset is an adapter's mutable tool table. List order is registration
// order and is stable across calls. The resource table has no equivalent:
// resources are fixed at adapter construction.
type Toolset struct {
	mu    sync.RWMutex
	order []string
	tools map[string]*registeredTool
}

// NewToolset creates an empty tool table.
func NewToolset() *Toolset {
	return &Toolset{tools: make(map[string]*registeredTool)}
}

// Add registers a tool. The descriptor's input schema is parsed and
// resolved once here so every call validates against the same compiled
// schema. Returns ErrToolExists on a duplicate name.
func (t *Toolset) Add(desc ToolDescriptor, handler ToolHandler) error {
	var schema jsonschema.Schema
	if err := json.Unmarshal(desc.InputSchema, &schema); err != nil {
		return fmt.Errorf("parsing input schema for %q: %w", desc.Name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving input schema for %q: %w", desc.Name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tools[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, desc.Name)
	}
	t.tools[desc.Name] = &registeredTool{desc: desc, resolved: resolved, handler: handler}
	t.order = append(t.order, desc.Name)
	return nil
}

// Remove drops a tool from the table. Returns false if it was not present.
func (t *Toolset) Remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tools[name]; !exists {
		return false
	}
	delete(t.tools, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the tool descriptors in registration order.
func (t *Toolset) List() []ToolDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	descs := make([]ToolDescriptor, 0, len(t.order))
	for _, name := range t.order {
		descs = append(descs, t.tools[name].desc)
	}
	return descs
}

// Call validates args against the tool's declared input schema and
// invokes the handler. Returns ErrNotFound for an unknown name and
// ErrInvalidArgument when the schema check fails.
func (t *Toolset) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	t.mu.RLock()
	tool, exists := t.tools[name]
	t.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: tool %q", ErrNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := tool.resolved.Validate(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	return tool.handler(ctx, args)
}
