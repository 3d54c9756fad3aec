// ABOUTME: Package documentation for the capability protocol envelope
// ABOUTME: Describes the message kinds and correlation contract

/*
Package protocol defines the uniform message envelope shared by every
backend connector behind the gateway.

A request envelope names one of five capability operations (discover,
list_tools, list_resources, read_resource, call_tool), a correlation ID,
and the connection it targets. A response envelope echoes the request ID
with either a "<type>_response" result or an "error" payload. The ID is
the only way a caller correlates concurrent in-flight calls, so every
code path that produces a response must thread it through unchanged.

Structural validation lives here so the router can reject malformed
envelopes before any dispatch happens.
*/
package protocol
