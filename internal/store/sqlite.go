// ABOUTME: SQLite implementation of ConnectionStore using modernc.org/sqlite
// ABOUTME: Credentials stored as a JSON blob, schema created automatically

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements ConnectionStore on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
// The schema is created if it doesn't exist; parent directories are
// created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Info("SQLite connection store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS connections (
			id TEXT PRIMARY KEY,
			service_type TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			credentials TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_connections_owner
			ON connections(owner_id);

		CREATE INDEX IF NOT EXISTS idx_connections_owner_service
			ON connections(owner_id, service_type);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Register stores a new connection and returns its generated ID.
func (s *SQLiteStore) Register(ctx context.Context, ownerID, serviceType string, credentials map[string]string) (string, error) {
	id := uuid.New().String()
	createdAt := time.Now().UTC()

	blob, err := json.Marshal(credentials)
	if err != nil {
		return "", fmt.Errorf("encoding credentials: %w", err)
	}

	query := `
		INSERT INTO connections (id, service_type, owner_id, credentials, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query, id, serviceType, ownerID, string(blob), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("inserting connection: %w", err)
	}

	s.logger.Info("registered connection", "connection_id", id, "service_type", serviceType, "owner_id", ownerID)
	return id, nil
}

// Resolve returns the connection for dispatch after re-checking ownership.
func (s *SQLiteStore) Resolve(ctx context.Context, connectionID, requesterID string) (*Connection, error) {
	query := `
		SELECT id, service_type, owner_id, credentials, created_at
		FROM connections
		WHERE id = ?
	`
	conn, err := s.scanConnection(s.db.QueryRowContext(ctx, query, connectionID))
	if err != nil {
		return nil, err
	}
	if conn.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	return conn, nil
}

// GetByOwnerAndService returns the owner's oldest connection for a service type.
func (s *SQLiteStore) GetByOwnerAndService(ctx context.Context, ownerID, serviceType string) (*Connection, error) {
	query := `
		SELECT id, service_type, owner_id, credentials, created_at
		FROM connections
		WHERE owner_id = ? AND service_type = ?
		ORDER BY created_at ASC
		LIMIT 1
	`
	return s.scanConnection(s.db.QueryRowContext(ctx, query, ownerID, serviceType))
}

// ListByOwner returns the owner's connections with credentials stripped.
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]*Connection, error) {
	query := `
		SELECT id, service_type, owner_id, created_at
		FROM connections
		WHERE owner_id = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conns []*Connection
	for rows.Next() {
		var conn Connection
		var createdAt string
		if err := rows.Scan(&conn.ID, &conn.ServiceType, &conn.OwnerID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning connection row: %w", err)
		}
		conn.CreatedAt = parseTime(createdAt, conn.ID, s.logger)
		conns = append(conns, &conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connection rows: %w", err)
	}
	return conns, nil
}

// Delete removes a connection after re-checking ownership.
func (s *SQLiteStore) Delete(ctx context.Context, connectionID, requesterID string) error {
	// Resolve first so a foreign requester gets ErrForbidden, not ErrNotFound
	if _, err := s.Resolve(ctx, connectionID, requesterID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, connectionID)
	if err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}

	s.logger.Info("deleted connection", "connection_id", connectionID, "owner_id", requesterID)
	return nil
}

// DeleteByOwner removes every connection belonging to an owner.
func (s *SQLiteStore) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("deleting connections: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	s.logger.Info("cascading owner deletion", "owner_id", ownerID, "removed", removed)
	return int(removed), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) scanConnection(row *sql.Row) (*Connection, error) {
	var conn Connection
	var blob, createdAt string

	err := row.Scan(&conn.ID, &conn.ServiceType, &conn.OwnerID, &blob, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying connection: %w", err)
	}

	if err := json.Unmarshal([]byte(blob), &conn.Credentials); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	conn.CreatedAt = parseTime(createdAt, conn.ID, s.logger)
	return &conn, nil
}

func parseTime(value, connID string, logger *slog.Logger) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		logger.Warn("failed to parse connection created_at", "connection_id", connID, "error", err)
		return time.Time{}
	}
	return parsed
}

// Ensure SQLiteStore implements ConnectionStore.
var _ ConnectionStore = (*SQLiteStore)(nil)
