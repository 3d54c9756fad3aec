// ABOUTME: Tests for the helpdesk adapter against a fake ticketing backend
// ABOUTME: Covers bearer auth, tool calls, and failure mapping

package helpdesk

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/context-gateway/internal/adapter"
)

func newFakeHelpdesk(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	authed := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer hd-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return false
		}
		return true
	}

	mux.HandleFunc("GET /api/tickets", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tickets": []map[string]any{
				{"id": "T-1", "subject": "Printer on fire", "status": "open"},
			},
			"total": 1,
		})
	})
	mux.HandleFunc("GET /api/agents", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"agents": []map[string]any{{"name": "dana", "tier": 2}},
		})
	})
	mux.HandleFunc("POST /api/tickets", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "T-2", "subject": in["subject"]})
	})
	mux.HandleFunc("GET /api/tickets/search", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{{"id": "T-1"}},
			"query":   r.URL.Query().Get("q"),
			"status":  r.URL.Query().Get("status"),
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestAdapter(t *testing.T, server *httptest.Server, token string) *Adapter {
	t.Helper()
	a, err := New(map[string]string{"endpoint": server.URL, "token": token}, slog.Default(), 0)
	require.NoError(t, err)
	return a
}

func TestDiscover(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "hd-token")

	info := a.Discover()
	assert.Equal(t, "helpdesk", info.Name)
	assert.ElementsMatch(t, []string{"tools", "resources"}, info.Capabilities)
}

func TestListResourcesOrder(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "hd-token")

	descs := a.ListResources()
	require.Len(t, descs, 2)
	assert.Equal(t, "helpdesk://tickets", descs[0].Locator)
	assert.Equal(t, "helpdesk://agents", descs[1].Locator)
	assert.Equal(t, descs, a.ListResources())
}

func TestReadResource(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "hd-token")

	text, err := a.ReadResource(context.Background(), "helpdesk://tickets")
	require.NoError(t, err)
	assert.Contains(t, text, "subject: Printer on fire")
	assert.Contains(t, text, "total: 1")
}

func TestReadResourceUnknown(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "hd-token")

	_, err := a.ReadResource(context.Background(), "helpdesk://bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrNotFound))
}

func TestRejectedTokenMapsToAuthenticationFailed(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "wrong-token")

	_, err := a.ReadResource(context.Background(), "helpdesk://tickets")
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrAuthenticationFailed))
}

func TestCreateTicket(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "hd-token")

	result, err := a.CallTool(context.Background(), "create_ticket", map[string]any{
		"subject":  "VPN down",
		"body":     "Cannot reach the office network",
		"priority": "high",
	})
	require.NoError(t, err)

	created, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "T-2", created["id"])
	assert.Equal(t, "VPN down", created["subject"])
}

func TestCreateTicketRejectsBadPriority(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "hd-token")

	_, err := a.CallTool(context.Background(), "create_ticket", map[string]any{
		"subject":  "VPN down",
		"body":     "details",
		"priority": "urgent",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrInvalidArgument))
}

func TestSearchTickets(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "hd-token")

	result, err := a.CallTool(context.Background(), "search_tickets", map[string]any{
		"query":  "printer",
		"status": "open",
	})
	require.NoError(t, err)

	results, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "printer", results["query"])
	assert.Equal(t, "open", results["status"])
}

func TestUnknownTool(t *testing.T) {
	a := newTestAdapter(t, newFakeHelpdesk(t), "hd-token")

	_, err := a.CallTool(context.Background(), "escalate", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, adapter.ErrNotFound))
}
