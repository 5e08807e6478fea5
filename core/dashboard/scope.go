package dashboard

import (
	"context"

	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

// Scope selects the audience of a dashboard. It is implemented by AdminScope and SuperAdminScope
// only.
type Scope interface {
	// CacheKey is the key the scope's summary is cached under.
	CacheKey() querycache.Key
	aggregate(ctx context.Context, svc *Service) (interface{}, error)
}

// AdminScope restricts the figures to what one staff member handled.
type AdminScope struct {
	UserID string
}

// SuperAdminScope covers the whole institute.
type SuperAdminScope struct{}

var (
	_ Scope = AdminScope{}      // interface compliance check
	_ Scope = SuperAdminScope{} // interface compliance check
)

func (s AdminScope) CacheKey() querycache.Key { return querycache.DashboardAdmin(s.UserID) }

func (s AdminScope) aggregate(ctx context.Context, svc *Service) (interface{}, error) {
	return svc.Admin(ctx, s.UserID)
}

func (SuperAdminScope) CacheKey() querycache.Key { return querycache.DashboardSuper() }

func (SuperAdminScope) aggregate(ctx context.Context, svc *Service) (interface{}, error) {
	return svc.Super(ctx)
}

// ScopeFor returns the widest scope usr may see.
func ScopeFor(usr user.User) Scope {
	if usr.IsSuperAdmin() {
		return SuperAdminScope{}
	}
	return AdminScope{UserID: usr.ID}
}
