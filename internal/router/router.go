// ABOUTME: Message router dispatching protocol envelopes to capability adapters
// ABOUTME: Validates, resolves the connection, calls the adapter, wraps the result

package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/2389/context-gateway/internal/protocol"
	"github.com/2389/context-gateway/internal/registry"
	"github.com/2389/context-gateway/internal/store"
)

// Router processes one envelope at a time: received, validated,
// dispatched, then completed or failed. Every adapter failure is caught
// at this boundary and converted to an error envelope carrying the
// request ID - the envelope, not error propagation, is the transport's
// error channel. No retries: each adapter call is attempted exactly
// once per request.
type Router struct {
	store    store.ConnectionStore
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a Router over the given connection store and adapter registry.
func New(connections store.ConnectionStore, reg *registry.Registry, logger *slog.Logger) *Router {
	return &Router{
		store:    connections,
		registry: reg,
		logger:   logger.With("component", "router"),
	}
}

// DispatchRaw parses raw JSON and dispatches it. A body that fails to
// parse gets an error envelope with an empty correlation ID, since no
// ID could be recovered.
func (r *Router) DispatchRaw(ctx context.Context, requesterID string, raw []byte) *protocol.Envelope {
	env, err := protocol.Parse(raw)
	if err != nil {
		r.logger.Warn("rejected unparseable envelope", "error", err)
		return protocol.NewError("", err)
	}
	return r.Dispatch(ctx, requesterID, env)
}

// Dispatch processes one inbound envelope for the given requester and
// always returns an outbound envelope, success or error.
func (r *Router) Dispatch(ctx context.Context, requesterID string, env *protocol.Envelope) *protocol.Envelope {
	r.logger.Debug("envelope received", "type", env.Type, "id", env.ID)

	// received -> validated
	if err := env.Validate(); err != nil {
		r.logger.Warn("envelope failed validation", "type", env.Type, "id", env.ID, "error", err)
		return protocol.NewError(env.ID, err)
	}

	// validated -> dispatched
	result, err := r.dispatch(ctx, requesterID, env)
	if err != nil {
		// dispatched -> failed
		r.logger.Warn("dispatch failed",
			"type", env.Type,
			"id", env.ID,
			"connection_id", env.ConnectionID,
			"error", err,
		)
		return protocol.NewError(env.ID, err)
	}

	// dispatched -> completed
	r.logger.Debug("dispatch completed", "type", env.Type, "id", env.ID)
	return protocol.NewResponse(env, result)
}

// dispatch resolves the target adapter and calls the matching capability
// operation.
func (r *Router) dispatch(ctx context.Context, requesterID string, env *protocol.Envelope) (any, error) {
	conn, err := r.store.Resolve(ctx, env.ConnectionID, requesterID)
	if err != nil {
		return nil, err
	}

	a, err := r.registry.AdapterFor(conn)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case protocol.TypeDiscover:
		return a.Discover(), nil

	case protocol.TypeListTools:
		return map[string]any{"tools": a.ListTools()}, nil

	case protocol.TypeListResources:
		return map[string]any{"resources": a.ListResources()}, nil

	case protocol.TypeReadResource:
		content, err := a.ReadResource(ctx, env.Locator)
		if err != nil {
			return nil, err
		}
		return map[string]any{"content": content}, nil

	case protocol.TypeCallTool:
		args, err := decodeArguments(env.Arguments)
		if err != nil {
			return nil, err
		}
		result, err := a.CallTool(ctx, env.Name, args)
		if err != nil {
			return nil, err
		}
		return map[string]any{"result": result}, nil

	default:
		// Validate guarantees a known type; this is unreachable
		return nil, fmt.Errorf("%w: unrecognized type %q", protocol.ErrMalformedMessage, env.Type)
	}
}

// decodeArguments turns the raw arguments field into the map adapters
// expect. Anything other than a JSON object (or absence) is malformed.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: arguments must be an object", protocol.ErrMalformedMessage)
	}
	return args, nil
}
