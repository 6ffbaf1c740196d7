package rbac

import "context"

// Principal is the authenticated actor behind a request.
type Principal struct {
	UserID int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// Can reports whether the principal's role grants action on resource.
func (p Principal) Can(resource Resource, action Action) bool {
	return Can(p.Role, resource, action)
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalContextKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by the authentication middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
