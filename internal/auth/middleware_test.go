package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aurora-portal/aurora/internal/access"
	"github.com/aurora-portal/aurora/internal/auth"
	"github.com/aurora-portal/aurora/internal/shared"
)

type stubAccessStore struct {
	acls   map[int64][]string
	groups map[int64][]int64
	tokens map[string]access.TokenScope
}

func (s *stubAccessStore) UserACLs(ctx context.Context, userID int64) ([]string, error) {
	return s.acls[userID], nil
}

func (s *stubAccessStore) UserGroups(ctx context.Context, userID int64) ([]int64, error) {
	return s.groups[userID], nil
}

func (s *stubAccessStore) TokenScope(ctx context.Context, tokenID string) (access.TokenScope, error) {
	scope, ok := s.tokens[tokenID]
	if !ok {
		return access.TokenScope{}, access.ErrInvalidPrincipal
	}
	return scope, nil
}

func (s *stubAccessStore) AllGroupIDs(ctx context.Context) ([]int64, error) {
	return []int64{1, 2, 3}, nil
}

func capturePrincipal(captured *access.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = access.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestPrincipalFromSession(t *testing.T) {
	mw := auth.NewMiddleware(&stubAccessStore{})

	var got access.Principal
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess := &shared.Session{}
	sess.SetUser("42")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	mw.Principal(capturePrincipal(&got)).ServeHTTP(res, req)

	ref, ok := got.(access.UserRef)
	if !ok {
		t.Fatalf("expected UserRef principal, got %T", got)
	}
	if ref.UserID != 42 {
		t.Fatalf("expected user 42, got %d", ref.UserID)
	}
}

func TestPrincipalFromTokenHeader(t *testing.T) {
	mw := auth.NewMiddleware(&stubAccessStore{})

	for _, header := range []string{"token abc-123", "Bearer abc-123"} {
		var got access.Principal
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)

		res := httptest.NewRecorder()
		mw.Principal(capturePrincipal(&got)).ServeHTTP(res, req)

		ref, ok := got.(access.TokenRef)
		if !ok {
			t.Fatalf("header %q: expected TokenRef principal, got %T", header, got)
		}
		if ref.TokenID != "abc-123" {
			t.Fatalf("header %q: expected token abc-123, got %q", header, ref.TokenID)
		}
	}
}

func TestTokenHeaderWinsOverSession(t *testing.T) {
	mw := auth.NewMiddleware(&stubAccessStore{})

	var got access.Principal
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "token tok-1")
	sess := &shared.Session{}
	sess.SetUser("42")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	mw.Principal(capturePrincipal(&got)).ServeHTTP(res, req)

	if _, ok := got.(access.TokenRef); !ok {
		t.Fatalf("expected token principal to take precedence, got %T", got)
	}
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	mw := auth.NewMiddleware(&stubAccessStore{})

	handler := mw.Principal(mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous request, got %d", res.Code)
	}
}

func TestRequireAuthRejectsUnknownToken(t *testing.T) {
	mw := auth.NewMiddleware(&stubAccessStore{tokens: map[string]access.TokenScope{}})

	handler := mw.Principal(mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "token no-such-token")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", res.Code)
	}
}

func TestRequireACL(t *testing.T) {
	store := &stubAccessStore{
		acls:   map[int64][]string{5: {"Manage groups"}},
		groups: map[int64][]int64{5: {1}},
	}
	mw := auth.NewMiddleware(store)

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		sess := &shared.Session{}
		sess.SetUser("5")
		return req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	res := httptest.NewRecorder()
	mw.Principal(mw.RequireACL("Manage groups")(ok)).ServeHTTP(res, newReq())
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with granted ACL, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	mw.Principal(mw.RequireACL("System admin")(ok)).ServeHTTP(res, newReq())
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without ACL, got %d", res.Code)
	}
}
