// ABOUTME: Tests for context aggregation across multiple services
// ABOUTME: Covers ordering, partial failure isolation, truncation, metadata

package bundle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/context-gateway/internal/adapter"
	"github.com/2389/context-gateway/internal/registry"
	"github.com/2389/context-gateway/internal/store"
)

// fixedAdapter serves a static set of resources with canned content.
type fixedAdapter struct {
	name      string
	resources []adapter.ResourceDescriptor
	content   map[string]string
	readErr   map[string]error
}

func (f *fixedAdapter) Discover() adapter.Info {
	return adapter.Info{Name: f.name, Version: "0.1.0", Capabilities: []string{"resources"}}
}

func (f *fixedAdapter) ListTools() []adapter.ToolDescriptor { return nil }

func (f *fixedAdapter) ListResources() []adapter.ResourceDescriptor { return f.resources }

func (f *fixedAdapter) ReadResource(_ context.Context, locator string) (string, error) {
	if err := f.readErr[locator]; err != nil {
		return "", err
	}
	content, ok := f.content[locator]
	if !ok {
		return "", adapter.ErrNotFound
	}
	return content, nil
}

func (f *fixedAdapter) CallTool(context.Context, string, map[string]any) (any, error) {
	return nil, adapter.ErrNotFound
}

func fixedFactory(a *fixedAdapter) adapter.Factory {
	return func(map[string]string, *slog.Logger) (adapter.Adapter, error) {
		return a, nil
	}
}

// setupAggregator wires a memory store and registry with a CRM-shaped
// and a helpdesk-shaped fixed adapter, both connected for user-1.
func setupAggregator(t *testing.T) (*Aggregator, *fixedAdapter, *fixedAdapter) {
	t.Helper()
	logger := slog.Default()

	crmAdapter := &fixedAdapter{
		name: "crm",
		resources: []adapter.ResourceDescriptor{
			{Name: "accounts", Locator: "crm://accounts"},
			{Name: "contacts", Locator: "crm://contacts"},
		},
		content: map[string]string{
			"crm://accounts": "records:\n  [1]\n    name: Acme\ntotal: 1\n",
			"crm://contacts": "records:\ntotal: 0\n",
		},
		readErr: map[string]error{},
	}
	helpdeskAdapter := &fixedAdapter{
		name: "helpdesk",
		resources: []adapter.ResourceDescriptor{
			{Name: "tickets", Locator: "helpdesk://tickets"},
		},
		content: map[string]string{
			"helpdesk://tickets": "tickets:\n  [1]\n    subject: printer on fire\ntotal: 1\n",
		},
		readErr: map[string]error{},
	}

	reg := registry.New(logger)
	require.NoError(t, reg.RegisterFactory("crm", fixedFactory(crmAdapter)))
	require.NoError(t, reg.RegisterFactory("helpdesk", fixedFactory(helpdeskAdapter)))

	connections := store.NewMemoryStore(logger)
	ctx := context.Background()
	_, err := connections.Register(ctx, "user-1", "crm", map[string]string{"endpoint": "http://crm.local"})
	require.NoError(t, err)
	_, err = connections.Register(ctx, "user-1", "helpdesk", map[string]string{"endpoint": "http://desk.local"})
	require.NoError(t, err)

	return New(connections, reg, logger), crmAdapter, helpdeskAdapter
}

func TestBuildContextSectionsAndOrder(t *testing.T) {
	agg, _, _ := setupAggregator(t)

	result, err := agg.BuildContext(context.Background(), "user-1", []string{"helpdesk", "crm"}, Options{})
	require.NoError(t, err)

	// Caller-supplied order: helpdesk first even though crm was registered first
	ticketsIdx := strings.Index(result.Context, "=== HELPDESK/tickets ===")
	accountsIdx := strings.Index(result.Context, "=== CRM/accounts ===")
	contactsIdx := strings.Index(result.Context, "=== CRM/contacts ===")
	require.GreaterOrEqual(t, ticketsIdx, 0)
	require.Greater(t, accountsIdx, ticketsIdx)
	require.Greater(t, contactsIdx, accountsIdx)

	assert.Contains(t, result.Context, "name: Acme")
	assert.Contains(t, result.Context, "subject: printer on fire")
	assert.Nil(t, result.Metadata)
}

func TestBuildContextPartialFailureIsolation(t *testing.T) {
	agg, crmAdapter, _ := setupAggregator(t)
	crmAdapter.readErr["crm://accounts"] = errors.New("backend exploded")

	result, err := agg.BuildContext(context.Background(), "user-1", []string{"crm", "helpdesk"}, Options{})
	require.NoError(t, err)

	assert.Contains(t, result.Context, "=== CRM (error) ===")
	assert.Contains(t, result.Context, "backend exploded")
	assert.NotContains(t, result.Context, "=== CRM/accounts ===")

	// Helpdesk aggregation is unaffected
	assert.Contains(t, result.Context, "=== HELPDESK/tickets ===")
	assert.Contains(t, result.Context, "subject: printer on fire")
}

func TestBuildContextLaterResourceFailureKeepsEarlierSections(t *testing.T) {
	agg, crmAdapter, _ := setupAggregator(t)
	crmAdapter.readErr["crm://contacts"] = errors.New("contacts offline")

	result, err := agg.BuildContext(context.Background(), "user-1", []string{"crm"}, Options{})
	require.NoError(t, err)

	assert.Contains(t, result.Context, "=== CRM/accounts ===")
	assert.Contains(t, result.Context, "=== CRM (error) ===")
	assert.Contains(t, result.Context, "contacts offline")
}

func TestBuildContextMissingConnection(t *testing.T) {
	agg, _, _ := setupAggregator(t)

	result, err := agg.BuildContext(context.Background(), "user-1", []string{"crm", "spreadsheet"}, Options{})
	require.NoError(t, err)

	assert.Contains(t, result.Context, "=== CRM/accounts ===")
	assert.Contains(t, result.Context, "=== SPREADSHEET (error) ===")
	assert.Contains(t, result.Context, store.ErrNotFound.Error())
}

func TestBuildContextTruncation(t *testing.T) {
	agg, _, _ := setupAggregator(t)

	full, err := agg.BuildContext(context.Background(), "user-1", []string{"crm", "helpdesk"}, Options{})
	require.NoError(t, err)

	const maxTokens = 10
	truncated, err := agg.BuildContext(context.Background(), "user-1", []string{"crm", "helpdesk"}, Options{MaxTokens: maxTokens})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(truncated.Context), maxTokens*CharsPerToken)
	assert.Equal(t, full.Context[:maxTokens*CharsPerToken], truncated.Context)
}

func TestBuildContextBudgetLargerThanContent(t *testing.T) {
	agg, _, _ := setupAggregator(t)

	full, err := agg.BuildContext(context.Background(), "user-1", []string{"crm"}, Options{})
	require.NoError(t, err)
	roomy, err := agg.BuildContext(context.Background(), "user-1", []string{"crm"}, Options{MaxTokens: 100000})
	require.NoError(t, err)

	assert.Equal(t, full.Context, roomy.Context)
}

func TestBuildContextMetadata(t *testing.T) {
	agg, crmAdapter, _ := setupAggregator(t)

	result, err := agg.BuildContext(context.Background(), "user-1", []string{"crm", "helpdesk"}, Options{IncludeMetadata: true})
	require.NoError(t, err)

	require.Len(t, result.Metadata["crm"], 2)
	require.Len(t, result.Metadata["helpdesk"], 1)

	accounts := result.Metadata["crm"][0]
	assert.Equal(t, "accounts", accounts.Resource)
	assert.Equal(t, len(crmAdapter.content["crm://accounts"]), accounts.ByteLength)
	assert.False(t, accounts.GeneratedAt.IsZero())

	assert.Equal(t, "contacts", result.Metadata["crm"][1].Resource)
	assert.Equal(t, "tickets", result.Metadata["helpdesk"][0].Resource)
}

func TestBuildContextFailedServiceHasNoMetadata(t *testing.T) {
	agg, crmAdapter, _ := setupAggregator(t)
	crmAdapter.readErr["crm://accounts"] = errors.New("backend exploded")

	result, err := agg.BuildContext(context.Background(), "user-1", []string{"crm"}, Options{IncludeMetadata: true})
	require.NoError(t, err)

	assert.Empty(t, result.Metadata["crm"])
}

func TestBuildContextNoServices(t *testing.T) {
	agg, _, _ := setupAggregator(t)

	result, err := agg.BuildContext(context.Background(), "user-1", nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Context)
}

func TestBuildContextCancelled(t *testing.T) {
	agg, _, _ := setupAggregator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.BuildContext(ctx, "user-1", []string{"crm"}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
