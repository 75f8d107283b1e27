// ABOUTME: Request-context plumbing for the authenticated principal
// ABOUTME: HTTP handlers read the caller identity via FromContext

package auth

import (
	"context"

	"github.com/meridianbank/advisor-gateway/internal/identity"
)

type contextKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the authenticated principal, or nil if the request was
// not authenticated.
func FromContext(ctx context.Context) *identity.Principal {
	p, _ := ctx.Value(contextKey{}).(*identity.Principal)
	return p
}
