package shared

import "context"

// Role classifies the caller of a request.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Principal is the authenticated caller, resolved upstream.
type Principal struct {
	UserID int64
	Role   Role
}

// IsOwner reports whether the caller acts as a store owner.
func (p Principal) IsOwner() bool { return p.Role == RoleOwner }

// IsSupplier reports whether the caller acts as a supplier.
func (p Principal) IsSupplier() bool { return p.Role == RoleSupplier }

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
