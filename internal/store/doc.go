// ABOUTME: Package documentation for the connection store
// ABOUTME: Notes the two implementations and the ownership contract

/*
Package store persists connections: the bindings of owner identities to
backend service types and their credential blobs.

Two implementations satisfy ConnectionStore. MemoryStore keeps
everything in a mutex-guarded map and is the default for tests and
ephemeral deployments. SQLiteStore persists to a SQLite database via
modernc.org/sqlite with automatic schema creation.

Ownership is enforced inside the store: Resolve and Delete take the
requester's identity and fail with ErrForbidden on a mismatch, so a
caller that skips its own check still cannot cross an ownership
boundary.
*/
package store
