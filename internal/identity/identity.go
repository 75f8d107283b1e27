// ABOUTME: Identity lookup port resolving principal IDs to role and display name
// ABOUTME: The identity domain is external; this package defines the interface and a store-backed adapter

package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridianbank/advisor-gateway/internal/store"
)

// Role names as the identity domain reports them.
const (
	RoleClient   = "client"
	RoleAdvisor  = "advisor"
	RoleDirector = "director"
)

// ErrUnknownPrincipal is returned when an ID does not resolve to any principal.
var ErrUnknownPrincipal = errors.New("unknown principal")

// Principal is the resolved identity of a participant.
type Principal struct {
	ID    string
	Role  string
	Name  string
	Email string
}

// IsClient reports whether the principal is a bank client.
func (p *Principal) IsClient() bool { return p.Role == RoleClient }

// IsAdvisor reports whether the principal is an advisor.
func (p *Principal) IsAdvisor() bool { return p.Role == RoleAdvisor }

// IsStaff reports whether the principal may use the group chat.
func (p *Principal) IsStaff() bool {
	return p.Role == RoleAdvisor || p.Role == RoleDirector
}

// Directory resolves principal IDs. Implementations must be safe for
// concurrent use; every connection handler calls Resolve.
type Directory interface {
	Resolve(ctx context.Context, id string) (*Principal, error)
}

// StoreDirectory resolves principals from the gateway's own principals table.
// Deployments with a separate identity service swap in their own Directory.
type StoreDirectory struct {
	principals store.PrincipalStore
}

// NewStoreDirectory creates a Directory backed by the given principal store.
func NewStoreDirectory(principals store.PrincipalStore) *StoreDirectory {
	return &StoreDirectory{principals: principals}
}

// Resolve looks up a principal by ID.
// Returns ErrUnknownPrincipal if no such principal exists.
func (d *StoreDirectory) Resolve(ctx context.Context, id string) (*Principal, error) {
	p, err := d.principals.GetPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPrincipal, id)
		}
		return nil, fmt.Errorf("resolving principal %s: %w", id, err)
	}

	return &Principal{
		ID:    p.ID,
		Role:  p.Role,
		Name:  p.Name,
		Email: p.Email,
	}, nil
}
