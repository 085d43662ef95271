package access

import "context"

type resolverContextKey struct{}
type principalContextKey struct{}

// ContextWithResolver stores the request-scoped resolver in the context.
func ContextWithResolver(ctx context.Context, r *Resolver) context.Context {
	return context.WithValue(ctx, resolverContextKey{}, r)
}

// ResolverFromContext extracts the request-scoped resolver, or nil.
func ResolverFromContext(ctx context.Context) *Resolver {
	r, _ := ctx.Value(resolverContextKey{}).(*Resolver)
	return r
}

// ContextWithPrincipal stores the authenticated principal in the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalContextKey{}).(Principal)
	return p
}

// ClosureFromContext resolves the context's principal through the
// context's resolver. It fails with ErrInvalidPrincipal when either is
// missing, so handlers cannot accidentally serve data without an
// authenticated actor.
func ClosureFromContext(ctx context.Context) (*Closure, error) {
	r := ResolverFromContext(ctx)
	p := PrincipalFromContext(ctx)
	if r == nil || p == nil {
		return nil, ErrInvalidPrincipal
	}
	return r.Closure(ctx, p)
}
