package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/platform/httpx"
	"github.com/aurora-portal/aurora/internal/shared"
)

// Middleware resolves the request principal and installs the access
// resolver. It accepts both cookie sessions and API tokens.
type Middleware struct {
	Store access.Store
}

// NewMiddleware constructs a Middleware.
func NewMiddleware(store access.Store) *Middleware {
	return &Middleware{Store: store}
}

// Principal attaches the request principal and a fresh per-request
// resolver to the context. Requests with no credentials pass through
// without a principal; downstream guards decide what that means.
func (m *Middleware) Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := access.ContextWithResolver(r.Context(), access.NewResolver(m.Store))

		if tokenID, ok := bearerToken(r); ok {
			ctx = access.ContextWithPrincipal(ctx, access.TokenRef{TokenID: tokenID})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if sess := shared.SessionFromContext(ctx); sess != nil && sess.User() != "" {
			userID, err := strconv.ParseInt(sess.User(), 10, 64)
			if err == nil {
				ctx = access.ContextWithPrincipal(ctx, access.UserRef{UserID: userID})
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests that carry no resolvable principal.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := access.ClosureFromContext(r.Context()); err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireACL guards a route behind a specific ACL.
func (m *Middleware) RequireACL(acl string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := access.ClosureFromContext(r.Context())
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			if !c.HasACL(acl) {
				httpx.RespondError(w, access.ErrAccessDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts a token ID from the Authorization header. Both
// "token <id>" and "Bearer <id>" forms are accepted.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	scheme := strings.ToLower(parts[0])
	if scheme != "token" && scheme != "bearer" {
		return "", false
	}
	id := strings.TrimSpace(parts[1])
	if id == "" {
		return "", false
	}
	return id, true
}
