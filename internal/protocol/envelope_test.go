// ABOUTME: Tests for envelope validation and response construction
// ABOUTME: Covers malformed rejection, correlation, and type mapping

package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{
			name: "valid discover",
			env:  Envelope{Type: TypeDiscover, ID: "req-1", ConnectionID: "conn-1"},
		},
		{
			name: "valid list_tools",
			env:  Envelope{Type: TypeListTools, ID: "req-2", ConnectionID: "conn-1"},
		},
		{
			name: "valid read_resource",
			env:  Envelope{Type: TypeReadResource, ID: "req-3", ConnectionID: "conn-1", Locator: "crm://accounts"},
		},
		{
			name: "valid call_tool",
			env:  Envelope{Type: TypeCallTool, ID: "req-4", ConnectionID: "conn-1", Name: "create_record"},
		},
		{
			name:    "missing id",
			env:     Envelope{Type: TypeDiscover, ConnectionID: "conn-1"},
			wantErr: true,
		},
		{
			name:    "unrecognized type",
			env:     Envelope{Type: "bogus", ID: "req-5", ConnectionID: "conn-1"},
			wantErr: true,
		},
		{
			name:    "response type is not dispatchable",
			env:     Envelope{Type: "discover_response", ID: "req-6", ConnectionID: "conn-1"},
			wantErr: true,
		},
		{
			name:    "missing connection_id",
			env:     Envelope{Type: TypeListResources, ID: "req-7"},
			wantErr: true,
		},
		{
			name:    "read_resource without locator",
			env:     Envelope{Type: TypeReadResource, ID: "req-8", ConnectionID: "conn-1"},
			wantErr: true,
		},
		{
			name:    "call_tool without name",
			env:     Envelope{Type: TypeCallTool, ID: "req-9", ConnectionID: "conn-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedMessage))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewResponseCorrelation(t *testing.T) {
	req := &Envelope{Type: TypeCallTool, ID: "corr-42", ConnectionID: "conn-1", Name: "search_records"}

	resp := NewResponse(req, map[string]any{"hits": 3})

	assert.Equal(t, "corr-42", resp.ID)
	assert.Equal(t, MessageType("call_tool_response"), resp.Type)
	assert.Empty(t, resp.Error)
}

func TestNewErrorCarriesID(t *testing.T) {
	resp := NewError("corr-9", errors.New("backend exploded"))

	assert.Equal(t, "corr-9", resp.ID)
	assert.Equal(t, TypeError, resp.Type)
	assert.Equal(t, "backend exploded", resp.Error)
}

func TestParse(t *testing.T) {
	t.Run("round trips a request", func(t *testing.T) {
		raw := []byte(`{"type":"call_tool","id":"abc","connection_id":"c1","name":"create_record","arguments":{"object":"accounts"}}`)

		env, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, TypeCallTool, env.Type)
		assert.Equal(t, "abc", env.ID)
		assert.Equal(t, "c1", env.ConnectionID)
		assert.JSONEq(t, `{"object":"accounts"}`, string(env.Arguments))
	})

	t.Run("rejects non-JSON", func(t *testing.T) {
		_, err := Parse([]byte("not json"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedMessage))
	})
}

func TestEnvelopeJSONShape(t *testing.T) {
	resp := NewResponse(&Envelope{Type: TypeDiscover, ID: "d-1"}, map[string]string{"name": "crm"})

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "discover_response", decoded["type"])
	assert.Equal(t, "d-1", decoded["id"])
	assert.NotContains(t, decoded, "connection_id")
	assert.NotContains(t, decoded, "error")
}
