// ABOUTME: Tests for the tool table: ordering, extension, and schema checks
// ABOUTME: Validates NotFound and InvalidArgument failure modes

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, args map[string]any) (any, error) {
	return args, nil
}

func mustAdd(t *testing.T, ts *Toolset, name, schema string) {
	t.Helper()
	err := ts.Add(ToolDescriptor{
		Name:        name,
		Description: name + " description",
		InputSchema: json.RawMessage(schema),
	}, echoHandler)
	require.NoError(t, err)
}

func TestToolsetListOrder(t *testing.T) {
	ts := NewToolset()
	mustAdd(t, ts, "bravo", `{"type":"object"}`)
	mustAdd(t, ts, "alpha", `{"type":"object"}`)
	mustAdd(t, ts, "charlie", `{"type":"object"}`)

	names := func() []string {
		var out []string
		for _, d := range ts.List() {
			out = append(out, d.Name)
		}
		return out
	}

	// Registration order, not lexical order
	assert.Equal(t, []string{"bravo", "alpha", "charlie"}, names())

	// Repeated calls return the identical sequence
	assert.Equal(t, names(), names())
}

func TestToolsetDuplicateName(t *testing.T) {
	ts := NewToolset()
	mustAdd(t, ts, "create_record", `{"type":"object"}`)

	err := ts.Add(ToolDescriptor{Name: "create_record", InputSchema: json.RawMessage(`{"type":"object"}`)}, echoHandler)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolExists))
}

func TestToolsetRemove(t *testing.T) {
	ts := NewToolset()
	mustAdd(t, ts, "a", `{"type":"object"}`)
	mustAdd(t, ts, "b", `{"type":"object"}`)

	assert.True(t, ts.Remove("a"))
	assert.False(t, ts.Remove("a"))

	descs := ts.List()
	require.Len(t, descs, 1)
	assert.Equal(t, "b", descs[0].Name)

	_, err := ts.Call(context.Background(), "a", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestToolsetCallUnknownTool(t *testing.T) {
	ts := NewToolset()

	_, err := ts.Call(context.Background(), "nonexistent", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestToolsetCallValidatesSchema(t *testing.T) {
	ts := NewToolset()
	mustAdd(t, ts, "create_record",
		`{"type":"object","properties":{"object":{"type":"string"},"fields":{"type":"object"}},"required":["object"]}`)

	t.Run("rejects missing required field", func(t *testing.T) {
		_, err := ts.Call(context.Background(), "create_record", map[string]any{"fields": map[string]any{}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})

	t.Run("rejects wrong type", func(t *testing.T) {
		_, err := ts.Call(context.Background(), "create_record", map[string]any{"object": 12})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})

	t.Run("accepts valid input", func(t *testing.T) {
		result, err := ts.Call(context.Background(), "create_record", map[string]any{"object": "accounts"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"object": "accounts"}, result)
	})

	t.Run("nil args validate as empty object", func(t *testing.T) {
		_, err := ts.Call(context.Background(), "create_record", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})
}

func TestToolsetAddRejectsBadSchema(t *testing.T) {
	ts := NewToolset()
	err := ts.Add(ToolDescriptor{Name: "broken", InputSchema: json.RawMessage(`{`)}, echoHandler)
	assert.Error(t, err)
}
