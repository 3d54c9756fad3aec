// ABOUTME: Helpdesk capability adapter speaking the ticketing backend's REST API
// ABOUTME: Static bearer-token auth, no login round-trip

package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/2389/context-gateway/internal/adapter"
)

// Version reported by Discover.
const Version = "1.0.0"

// resources is the static resource descriptor table.
var resources = []adapter.ResourceDescriptor{
	{Name: "tickets", Description: "Open support tickets", Locator: "helpdesk://tickets"},
	{Name: "agents", Description: "Support agent roster", Locator: "helpdesk://agents"},
}

// Adapter implements the capability contract against a helpdesk backend.
// Unlike the CRM, the helpdesk authenticates every call with a static
// bearer token, so there is no session establishment step; a 401 from
// the backend surfaces as ErrAuthenticationFailed directly.
type Adapter struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
	tools    *adapter.Toolset
}

// NewFactory returns the factory registered under the "helpdesk" tag.
func NewFactory(upstreamWait time.Duration) adapter.Factory {
	return func(credentials map[string]string, logger *slog.Logger) (adapter.Adapter, error) {
		return New(credentials, logger, upstreamWait)
	}
}

// New creates a helpdesk adapter bound to one connection's credentials.
// Required credential keys: "endpoint" and "token".
func New(credentials map[string]string, logger *slog.Logger, upstreamWait time.Duration) (*Adapter, error) {
	endpoint := credentials["endpoint"]
	if endpoint == "" {
		return nil, fmt.Errorf("helpdesk: missing credential %q", "endpoint")
	}
	token := credentials["token"]
	if token == "" {
		return nil, fmt.Errorf("helpdesk: missing credential %q", "token")
	}

	if upstreamWait <= 0 {
		upstreamWait = 30 * time.Second
	}

	a := &Adapter{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: upstreamWait},
		logger:   logger.With("adapter", "helpdesk"),
		tools:    adapter.NewToolset(),
	}

	if err := a.registerTools(); err != nil {
		return nil, fmt.Errorf("helpdesk: registering tools: %w", err)
	}
	return a, nil
}

func (a *Adapter) registerTools() error {
	tools := []struct {
		desc    adapter.ToolDescriptor
		handler adapter.ToolHandler
	}{
		{
			desc: adapter.ToolDescriptor{
				Name:        "create_ticket",
				Description: "Open a new support ticket",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"subject":{"type":"string"},"body":{"type":"string"},"priority":{"type":"string","enum":["low","normal","high"]}},"required":["subject","body"]}`),
			},
			handler: a.createTicket,
		},
		{
			desc: adapter.ToolDescriptor{
				Name:        "search_tickets",
				Description: "Search tickets by text and status",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"},"status":{"type":"string","enum":["open","pending","closed"]}},"required":["query"]}`),
			},
			handler: a.searchTickets,
		},
	}

	for _, t := range tools {
		if err := a.tools.Add(t.desc, t.handler); err != nil {
			return err
		}
	}
	return nil
}

// Discover returns the adapter's static self-description.
func (a *Adapter) Discover() adapter.Info {
	return adapter.Info{
		Name:         "helpdesk",
		Version:      Version,
		Capabilities: []string{"tools", "resources"},
	}
}

// ListTools returns the tool descriptor table.
func (a *Adapter) ListTools() []adapter.ToolDescriptor {
	return a.tools.List()
}

// ListResources returns the static resource descriptor table.
func (a *Adapter) ListResources() []adapter.ResourceDescriptor {
	descs := make([]adapter.ResourceDescriptor, len(resources))
	copy(descs, resources)
	return descs
}

// ReadResource fetches and renders the collection behind a locator.
func (a *Adapter) ReadResource(ctx context.Context, locator string) (string, error) {
	var collection string
	for _, r := range resources {
		if r.Locator == locator {
			collection = r.Name
			break
		}
	}
	if collection == "" {
		return "", fmt.Errorf("%w: resource %q", adapter.ErrNotFound, locator)
	}

	var payload map[string]any
	if err := a.do(ctx, http.MethodGet, "/api/"+collection, nil, &payload); err != nil {
		return "", err
	}
	return adapter.RenderText(payload), nil
}

// CallTool validates args against the tool's schema and executes it.
func (a *Adapter) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return a.tools.Call(ctx, name, args)
}

func (a *Adapter) createTicket(ctx context.Context, args map[string]any) (any, error) {
	var created map[string]any
	if err := a.do(ctx, http.MethodPost, "/api/tickets", args, &created); err != nil {
		return nil, err
	}
	a.logger.Info("created ticket", "id", created["id"])
	return created, nil
}

func (a *Adapter) searchTickets(ctx context.Context, args map[string]any) (any, error) {
	query := args["query"].(string)
	path := "/api/tickets/search?q=" + url.QueryEscape(query)
	if status, ok := args["status"].(string); ok {
		path += "&status=" + url.QueryEscape(status)
	}

	var results map[string]any
	if err := a.do(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// do performs a bearer-authenticated backend call.
func (a *Adapter) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", adapter.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", adapter.ErrUpstream, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: backend rejected token", adapter.ErrAuthenticationFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", adapter.ErrUpstream, upstreamMessage(raw, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", adapter.ErrUpstream, err)
	}
	return nil
}

func upstreamMessage(raw []byte, status int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("status %d", status)
}

// Ensure Adapter implements the capability contract.
var _ adapter.Adapter = (*Adapter)(nil)
