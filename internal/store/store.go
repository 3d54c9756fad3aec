// ABOUTME: Connection store interface and data types for context-gateway
// ABOUTME: Defines the Connection record and the ownership-checked store contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested connection does not exist.
var ErrNotFound = errors.New("connection not found")

// ErrForbidden is returned when a requester attempts to access a
// connection owned by someone else.
var ErrForbidden = errors.New("forbidden")

// Connection binds an owner identity to a service type and its
// credentials. Credentials are write-only from the caller's perspective:
// they go in at registration and are never serialized back out.
type Connection struct {
	ID          string            `json:"id"`
	ServiceType string            `json:"service_type"`
	OwnerID     string            `json:"owner_id"`
	Credentials map[string]string `json:"-"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Redacted returns a copy with the credentials stripped, safe to hand
// back to callers.
func (c *Connection) Redacted() *Connection {
	return &Connection{
		ID:          c.ID,
		ServiceType: c.ServiceType,
		OwnerID:     c.OwnerID,
		CreatedAt:   c.CreatedAt,
	}
}

// ConnectionStore is the injected storage abstraction for connections.
// Every resolution that crosses an ownership boundary takes the
// requester's identity and re-checks ownership here; the store does not
// trust callers to have already checked.
type ConnectionStore interface {
	// Register stores a new connection and returns its generated ID.
	// The credentials are never returned.
	Register(ctx context.Context, ownerID, serviceType string, credentials map[string]string) (string, error)

	// Resolve returns the connection with its credentials for dispatch.
	// Returns ErrNotFound for an unknown ID and ErrForbidden when
	// requesterID does not own the connection.
	Resolve(ctx context.Context, connectionID, requesterID string) (*Connection, error)

	// GetByOwnerAndService returns the owner's oldest connection for a
	// service type, credentials included. Returns ErrNotFound if none.
	GetByOwnerAndService(ctx context.Context, ownerID, serviceType string) (*Connection, error)

	// ListByOwner returns the owner's connections with credentials
	// stripped, ordered by creation time.
	ListByOwner(ctx context.Context, ownerID string) ([]*Connection, error)

	// Delete removes a connection. Returns ErrForbidden when requesterID
	// does not own it and ErrNotFound when it does not exist.
	Delete(ctx context.Context, connectionID, requesterID string) error

	// DeleteByOwner removes every connection belonging to an owner
	// (cascading owner deletion). Returns the number removed.
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
