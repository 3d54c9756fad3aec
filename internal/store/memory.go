// ABOUTME: In-memory ConnectionStore implementation
// ABOUTME: Default backing for tests and ephemeral deployments

package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements ConnectionStore with a mutex-guarded map.
type MemoryStore struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	logger      *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		connections: make(map[string]*Connection),
		logger:      logger.With("component", "store"),
	}
}

// Register stores a new connection and returns its generated ID.
func (s *MemoryStore) Register(_ context.Context, ownerID, serviceType string, credentials map[string]string) (string, error) {
	conn := &Connection{
		ID:          uuid.New().String(),
		ServiceType: serviceType,
		OwnerID:     ownerID,
		Credentials: cloneCredentials(credentials),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.connections[conn.ID] = conn
	s.mu.Unlock()

	s.logger.Info("registered connection", "connection_id", conn.ID, "service_type", serviceType, "owner_id", ownerID)
	return conn.ID, nil
}

// Resolve returns the connection for dispatch after re-checking ownership.
func (s *MemoryStore) Resolve(_ context.Context, connectionID, requesterID string) (*Connection, error) {
	s.mu.RLock()
	conn, ok := s.connections[connectionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if conn.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	return cloneConnection(conn), nil
}

// GetByOwnerAndService returns the owner's oldest connection for a service type.
func (s *MemoryStore) GetByOwnerAndService(_ context.Context, ownerID, serviceType string) (*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *Connection
	for _, conn := range s.connections {
		if conn.OwnerID != ownerID || conn.ServiceType != serviceType {
			continue
		}
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	if oldest == nil {
		return nil, ErrNotFound
	}
	return cloneConnection(oldest), nil
}

// ListByOwner returns the owner's connections with credentials stripped.
func (s *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conns []*Connection
	for _, conn := range s.connections {
		if conn.OwnerID == ownerID {
			conns = append(conns, conn.Redacted())
		}
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].CreatedAt.Before(conns[j].CreatedAt) })
	return conns, nil
}

// Delete removes a connection after re-checking ownership.
func (s *MemoryStore) Delete(_ context.Context, connectionID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[connectionID]
	if !ok {
		return ErrNotFound
	}
	if conn.OwnerID != requesterID {
		return ErrForbidden
	}
	delete(s.connections, connectionID)

	s.logger.Info("deleted connection", "connection_id", connectionID, "owner_id", requesterID)
	return nil
}

// DeleteByOwner removes every connection belonging to an owner.
func (s *MemoryStore) DeleteByOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, conn := range s.connections {
		if conn.OwnerID == ownerID {
			delete(s.connections, id)
			removed++
		}
	}

	s.logger.Info("cascading owner deletion", "owner_id", ownerID, "removed", removed)
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneCredentials(credentials map[string]string) map[string]string {
	out := make(map[string]string, len(credentials))
	for k, v := range credentials {
		out[k] = v
	}
	return out
}

func cloneConnection(conn *Connection) *Connection {
	out := *conn
	out.Credentials = cloneCredentials(conn.Credentials)
	return &out
}

// Ensure MemoryStore implements ConnectionStore.
var _ ConnectionStore = (*MemoryStore)(nil)
