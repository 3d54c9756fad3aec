// ABOUTME: Package documentation for the capability adapter contract
// ABOUTME: Explains session handling and the shared error taxonomy

/*
Package adapter defines the capability contract every backend connector
implements, plus the shared building blocks: the tool table with
schema-validated dispatch, the bounded metadata cache, and deterministic
text rendering of fetched structures.

Concrete adapters live in subpackages (crm, helpdesk), each speaking its
backend's native API. An adapter owns its session state: it logs in
lazily on first backend use and reuses the session for the instance's
lifetime. A failed login poisons the instance - every later operation
fails with ErrAuthenticationFailed until the connection's credentials
are replaced.
*/
package adapter
