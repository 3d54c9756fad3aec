// ABOUTME: Context aggregator fanning a multi-service request out to adapters
// ABOUTME: Partial-failure isolation per service, global token-budget truncation

package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/context-gateway/internal/registry"
	"github.com/2389/context-gateway/internal/store"
)

// CharsPerToken converts a token budget to a character budget. The
// four-characters-per-token heuristic is approximate; the cut is a hard
// string truncation and may split a section mid-content.
const CharsPerToken = 4

// Options controls one context build.
type Options struct {
	// MaxTokens, when positive, truncates the assembled document to
	// MaxTokens * CharsPerToken characters.
	MaxTokens int

	// IncludeMetadata records per-resource timestamps and byte lengths
	// under each service key.
	IncludeMetadata bool
}

// ResourceMeta describes one aggregated resource section.
type ResourceMeta struct {
	Resource    string    `json:"resource"`
	GeneratedAt time.Time `json:"generated_at"`
	ByteLength  int       `json:"byte_length"`
}

// Result is the ephemeral, request-scoped output of a context build.
type Result struct {
	Context  string                    `json:"context"`
	Metadata map[string][]ResourceMeta `json:"metadata,omitempty"`
}

// Aggregator builds unified context documents across backend services.
type Aggregator struct {
	store    store.ConnectionStore
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates an Aggregator over the given store and registry.
func New(connections store.ConnectionStore, reg *registry.Registry, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:    connections,
		registry: reg,
		logger:   logger.With("component", "aggregator"),
	}
}

// BuildContext resolves each requested service to the owner's
// connection, reads every resource the adapter lists, and concatenates
// the rendered content into one document with section headers.
//
// Two guarantees hold regardless of what individual backends do:
//
//   - Section order follows the caller-supplied service order, and
//     within a service the adapter's resource order.
//   - A failure in one service is confined to an inline error section;
//     it never aborts aggregation of the remaining services.
//
// The only whole-call failure is context cancellation.
func (a *Aggregator) BuildContext(ctx context.Context, ownerID string, services []string, opts Options) (*Result, error) {
	var doc strings.Builder
	result := &Result{}
	if opts.IncludeMetadata {
		result.Metadata = make(map[string][]ResourceMeta)
	}

	for _, serviceType := range services {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.aggregateService(ctx, &doc, result, ownerID, serviceType, opts)
	}

	result.Context = doc.String()
	if opts.MaxTokens > 0 {
		budget := opts.MaxTokens * CharsPerToken
		if len(result.Context) > budget {
			result.Context = result.Context[:budget]
			a.logger.Debug("truncated context", "owner_id", ownerID, "budget_chars", budget)
		}
	}

	a.logger.Info("built context",
		"owner_id", ownerID,
		"services", len(services),
		"bytes", len(result.Context),
	)
	return result, nil
}

// aggregateService appends one service's sections to the document. Any
// failure along the way becomes an inline error section and the method
// returns, leaving earlier sections of the same service in place.
func (a *Aggregator) aggregateService(ctx context.Context, doc *strings.Builder, result *Result, ownerID, serviceType string, opts Options) {
	conn, err := a.store.GetByOwnerAndService(ctx, ownerID, serviceType)
	if err != nil {
		a.writeErrorSection(doc, serviceType, fmt.Errorf("resolving connection: %w", err))
		return
	}

	adp, err := a.registry.AdapterFor(conn)
	if err != nil {
		a.writeErrorSection(doc, serviceType, err)
		return
	}

	for _, res := range adp.ListResources() {
		content, err := adp.ReadResource(ctx, res.Locator)
		if err != nil {
			a.writeErrorSection(doc, serviceType, fmt.Errorf("reading %s: %w", res.Name, err))
			return
		}

		fmt.Fprintf(doc, "=== %s/%s ===\n", strings.ToUpper(serviceType), res.Name)
		doc.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			doc.WriteString("\n")
		}
		doc.WriteString("\n")

		if opts.IncludeMetadata {
			result.Metadata[serviceType] = append(result.Metadata[serviceType], ResourceMeta{
				Resource:    res.Name,
				GeneratedAt: time.Now().UTC(),
				ByteLength:  len(content),
			})
		}
	}
}

// writeErrorSection marks a service's failure inline so the caller can
// see what is missing without the whole build failing.
func (a *Aggregator) writeErrorSection(doc *strings.Builder, serviceType string, err error) {
	a.logger.Warn("service aggregation failed", "service_type", serviceType, "error", err)
	fmt.Fprintf(doc, "=== %s (error) ===\n%s\n\n", strings.ToUpper(serviceType), err.Error())
}
