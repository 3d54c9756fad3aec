// ABOUTME: CRM capability adapter speaking the CRM backend's REST API
// ABOUTME: Session-based auth with lazy login and per-object describe caching

package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/2389/context-gateway/internal/adapter"
)

// Version reported by Discover.
const Version = "1.0.0"

// sessionHeader carries the CRM session token on authenticated calls.
const sessionHeader = "X-Session-Token"

// resources is the static resource descriptor table. Resource order here
// is the order ListResources returns and the order sections appear in
// context bundles.
var resources = []adapter.ResourceDescriptor{
	{Name: "accounts", Description: "All account records", Locator: "crm://accounts"},
	{Name: "contacts", Description: "All contact records", Locator: "crm://contacts"},
	{Name: "opportunities", Description: "Open opportunity records", Locator: "crm://opportunities"},
}

// Adapter implements the capability contract against a CRM backend.
// A single instance serves one connection: it holds that connection's
// session token and describe cache for its lifetime.
type Adapter struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
	tools    *adapter.Toolset
	meta     *adapter.MetadataCache

	// Session state. A failed login is remembered and poisons every
	// later operation; authentication failures are not transient.
	sessMu       sync.Mutex
	sessionToken string
	sessionErr   error
	sessionTried bool
}

// NewFactory returns an adapter factory with the given describe-cache
// capacity and backend call timeout. The factory is what gets registered
// under the "crm" tag.
func NewFactory(cacheCapacity int, upstreamWait time.Duration) adapter.Factory {
	return func(credentials map[string]string, logger *slog.Logger) (adapter.Adapter, error) {
		return New(credentials, logger, cacheCapacity, upstreamWait)
	}
}

// New creates a CRM adapter bound to one connection's credentials.
// Required credential keys: "endpoint" (backend base URL) and "api_key".
func New(credentials map[string]string, logger *slog.Logger, cacheCapacity int, upstreamWait time.Duration) (*Adapter, error) {
	endpoint := credentials["endpoint"]
	if endpoint == "" {
		return nil, fmt.Errorf("crm: missing credential %q", "endpoint")
	}
	apiKey := credentials["api_key"]
	if apiKey == "" {
		return nil, fmt.Errorf("crm: missing credential %q", "api_key")
	}

	if upstreamWait <= 0 {
		upstreamWait = 30 * time.Second
	}

	a := &Adapter{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: upstreamWait},
		logger:   logger.With("adapter", "crm"),
		tools:    adapter.NewToolset(),
		meta:     adapter.NewMetadataCache(cacheCapacity),
	}

	if err := a.registerTools(); err != nil {
		return nil, fmt.Errorf("crm: registering tools: %w", err)
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
				Name:        "create_record",
				Description: "Create a record of the given object type",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"object":{"type":"string","enum":["accounts","contacts","opportunities"]},"fields":{"type":"object"}},"required":["object","fields"]}`),
			},
			handler: a.createRecord,
		},
		{
			desc: adapter.ToolDescriptor{
				Name:        "search_records",
				Description: "Full-text search across CRM records",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"},"limit":{"type":"integer","minimum":1}},"required":["query"]}`),
			},
			handler: a.searchRecords,
		},
		{
			desc: adapter.ToolDescriptor{
				Name:        "describe_object",
				Description: "Fetch the schema of a CRM object type",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"object":{"type":"string"}},"required":["object"]}`),
			},
			handler: a.describeObject,
		},
	}

	for _, t := range tools {
		if err := a.tools.Add(t.desc, t.handler); err != nil {
			return err
		}
	}
	return nil
}

// Discover returns the adapter's static self-description. No backend call.
func (a *Adapter) Discover() adapter.Info {
	return adapter.Info{
		Name:         "crm",
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

// AddTool extends the tool table at runtime. Resources cannot be extended.
func (a *Adapter) AddTool(desc adapter.ToolDescriptor, handler adapter.ToolHandler) error {
	return a.tools.Add(desc, handler)
}

// RemoveTool drops a tool from the table.
func (a *Adapter) RemoveTool(name string) bool {
	return a.tools.Remove(name)
}

// ReadResource fetches the records behind a locator and renders them as
// text with stable key order. Exactly one backend round-trip, plus the
// login round-trip if no session exists yet.
func (a *Adapter) ReadResource(ctx context.Context, locator string) (string, error) {
	var object string
	for _, r := range resources {
		if r.Locator == locator {
			object = r.Name
			break
		}
	}
	if object == "" {
		return "", fmt.Errorf("%w: resource %q", adapter.ErrNotFound, locator)
	}

	var payload map[string]any
	if err := a.do(ctx, http.MethodGet, "/records/"+object, nil, &payload); err != nil {
		return "", err
	}
	return adapter.RenderText(payload), nil
}

// CallTool validates args against the tool's schema and executes it.
func (a *Adapter) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return a.tools.Call(ctx, name, args)
}

func (a *Adapter) createRecord(ctx context.Context, args map[string]any) (any, error) {
	object := args["object"].(string)
	fields, _ := args["fields"].(map[string]any)

	var created map[string]any
	if err := a.do(ctx, http.MethodPost, "/records/"+object, fields, &created); err != nil {
		return nil, err
	}
	a.logger.Info("created record", "object", object, "id", created["id"])
	return created, nil
}

func (a *Adapter) searchRecords(ctx context.Context, args map[string]any) (any, error) {
	query := args["query"].(string)
	path := "/search?q=" + url.QueryEscape(query)
	if limit, ok := args["limit"].(float64); ok {
		path += "&limit=" + strconv.Itoa(int(limit))
	}

	var results map[string]any
	if err := a.do(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// describeObject answers from the metadata cache when possible; a miss
// costs one backend round-trip and populates the cache for the adapter
// instance's lifetime.
func (a *Adapter) describeObject(ctx context.Context, args map[string]any) (any, error) {
	object := args["object"].(string)

	if blob, ok := a.meta.Get(object); ok {
		a.logger.Debug("describe served from cache", "object", object)
		return json.RawMessage(blob), nil
	}

	body, err := a.doRaw(ctx, http.MethodGet, "/objects/"+object+"/describe", nil)
	if err != nil {
		return nil, err
	}
	a.meta.Put(object, body)
	return json.RawMessage(body), nil
}

// ensureSession lazily logs in on first use. The result, success or
// failure, is held for the adapter instance's lifetime.
func (a *Adapter) ensureSession(ctx context.Context) (string, error) {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()

	if a.sessionTried {
		return a.sessionToken, a.sessionErr
	}
	a.sessionTried = true

	reqBody, _ := json.Marshal(map[string]string{"api_key": a.apiKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/auth/login", bytes.NewReader(reqBody))
	if err != nil {
		a.sessionErr = fmt.Errorf("%w: %v", adapter.ErrAuthenticationFailed, err)
		return "", a.sessionErr
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.sessionErr = fmt.Errorf("%w: %v", adapter.ErrAuthenticationFailed, err)
		return "", a.sessionErr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		a.sessionErr = fmt.Errorf("%w: login returned status %d", adapter.ErrAuthenticationFailed, resp.StatusCode)
		a.logger.Warn("CRM login failed", "status", resp.StatusCode)
		return "", a.sessionErr
	}

	var login struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil || login.SessionToken == "" {
		a.sessionErr = fmt.Errorf("%w: invalid login response", adapter.ErrAuthenticationFailed)
		return "", a.sessionErr
	}

	a.sessionToken = login.SessionToken
	a.logger.Debug("CRM session established")
	return a.sessionToken, nil
}

// do performs an authenticated backend call and decodes the JSON response.
func (a *Adapter) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := a.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", adapter.ErrUpstream, err)
	}
	return nil
}

// doRaw performs an authenticated backend call and returns the raw body.
// Non-2xx responses become ErrUpstream wrapping the backend's message.
func (a *Adapter) doRaw(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	token, err := a.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.endpoint+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(sessionHeader, token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", adapter.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", adapter.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUpstream, upstreamMessage(raw, resp.StatusCode))
	}
	return raw, nil
}

// Ensure Adapter implements the capability contract.
var _ adapter.Adapter = (*Adapter)(nil)

// upstreamMessage extracts the backend's own error message, falling back
// to the HTTP status when the body carries none.
func upstreamMessage(raw []byte, status int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("status %d", status)
}
