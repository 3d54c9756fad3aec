// ABOUTME: Protocol envelope types shared by every capability message
// ABOUTME: Defines message kinds, structural validation, and response construction

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedMessage indicates an envelope that fails structural validation.
// Malformed envelopes are never dispatched.
var ErrMalformedMessage = errors.New("malformed message")

// MessageType identifies the kind of a protocol envelope.
type MessageType string

// Request message types.
const (
	TypeDiscover      MessageType = "discover"
	TypeListTools     MessageType = "list_tools"
	TypeListResources MessageType = "list_resources"
	TypeReadResource  MessageType = "read_resource"
	TypeCallTool      MessageType = "call_tool"
)

// TypeError is the outbound envelope type for failures.
const TypeError MessageType = "error"

// requestTypes is the closed set of dispatchable message types.
var requestTypes = map[MessageType]bool{
	TypeDiscover:      true,
	TypeListTools:     true,
	TypeListResources: true,
	TypeReadResource:  true,
	TypeCallTool:      true,
}

// Envelope is the uniform request/response message of the capability protocol.
// A response envelope always carries the same ID as the request that produced
// it; the ID is the only correlation mechanism for concurrent in-flight calls.
type Envelope struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id"`

	// Request fields
	ConnectionID string          `json:"connection_id,omitempty"`
	Locator      string          `json:"locator,omitempty"`
	Name         string          `json:"name,omitempty"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`

	// Response fields
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Validate checks the structural requirements of a request envelope.
// Returns an error wrapping ErrMalformedMessage on the first violation.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedMessage)
	}
	if !requestTypes[e.Type] {
		return fmt.Errorf("%w: unrecognized type %q", ErrMalformedMessage, e.Type)
	}
	if e.ConnectionID == "" {
		return fmt.Errorf("%w: missing connection_id", ErrMalformedMessage)
	}
	switch e.Type {
	case TypeReadResource:
		if e.Locator == "" {
			return fmt.Errorf("%w: read_resource requires locator", ErrMalformedMessage)
		}
	case TypeCallTool:
		if e.Name == "" {
			return fmt.Errorf("%w: call_tool requires name", ErrMalformedMessage)
		}
	}
	return nil
}

// ResponseType returns the outbound type for a request type, e.g.
// "list_tools" becomes "list_tools_response".
func ResponseType(t MessageType) MessageType {
	return t + "_response"
}

// NewResponse builds a success envelope correlated to the request.
func NewResponse(req *Envelope, result any) *Envelope {
	return &Envelope{
		Type:   ResponseType(req.Type),
		ID:     req.ID,
		Result: result,
	}
}

// NewError builds an error envelope carrying the originating request ID.
func NewError(id string, err error) *Envelope {
	return &Envelope{
		Type:  TypeError,
		ID:    id,
		Error: err.Error(),
	}
}

// Parse decodes raw JSON into an envelope. A body that is not a JSON
// object at all is reported as ErrMalformedMessage.
func Parse(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &env, nil
}
