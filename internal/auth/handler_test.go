package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/aurora-portal/aurora/internal/auth"
	"github.com/aurora-portal/aurora/internal/shared"
	_ "github.com/aurora-portal/aurora/testing"
)

type stubRepo struct {
	account  *auth.Account
	sessions map[string]int64
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	if s.account == nil || s.account.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newAuthRouter(t *testing.T, repo auth.Repository) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)
	router := chi.NewRouter()
	router.Route("/api/auth", handler.MountRoutes)
	return router, sessionManager
}

func activeAccount(t *testing.T, password string) *auth.Account {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.Account{ID: 7, Username: "vera", PasswordHash: string(hashed), IsActive: true}
}

func doLogin(t *testing.T, router http.Handler, sessionManager *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res, sess
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{account: activeAccount(t, "correct horse")}
	router, sessionManager := newAuthRouter(t, repo)

	res, sess := doLogin(t, router, sessionManager, `{"username":"vera","password":"correct horse"}`)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["username"] != "vera" {
		t.Fatalf("expected username in response, got %v", payload)
	}
	if sess.User() != "7" {
		t.Fatalf("expected session bound to user 7, got %q", sess.User())
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("expected one persisted session, got %d", len(repo.sessions))
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{account: activeAccount(t, "correct horse")})

	res, sess := doLogin(t, router, sessionManager, `{"username":"vera","password":"wrong password"}`)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if sess.User() != "" {
		t.Fatalf("session should not be bound on failed login")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	acc := activeAccount(t, "correct horse")
	acc.IsActive = false
	router, sessionManager := newAuthRouter(t, &stubRepo{account: acc})

	res, _ := doLogin(t, router, sessionManager, `{"username":"vera","password":"correct horse"}`)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{})

	res, _ := doLogin(t, router, sessionManager, `{"username":"vera","password":"short"}`)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", res.Code)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{account: activeAccount(t, "correct horse")}
	router, sessionManager := newAuthRouter(t, repo)

	_, sess := doLogin(t, router, sessionManager, `{"username":"vera","password":"correct horse"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionManager.CookieName(), Value: sess.ID})
	loaded, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), loaded)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if err := sessionManager.Commit(ctx, res, req, loaded); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(repo.sessions) != 0 {
		t.Fatalf("expected persisted session to be removed, got %d", len(repo.sessions))
	}
}
