// ABOUTME: Request identity propagation through context.Context
// ABOUTME: Provides WithOwner/OwnerFromContext for handlers downstream of auth

package auth

import (
	"context"
)

// ownerKey is the key type for storing the authenticated owner ID.
type ownerKey struct{}

// WithOwner returns a new context carrying the authenticated owner ID.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext retrieves the authenticated owner ID, returning ""
// if the request was not authenticated.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
