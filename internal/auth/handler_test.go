package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dawnmoon/charon/internal/auth"
	"github.com/dawnmoon/charon/internal/authz"
	"github.com/dawnmoon/charon/internal/rbac"
	"github.com/dawnmoon/charon/internal/session"
	"github.com/dawnmoon/charon/internal/shared"
)

// emptyStore satisfies rbac.Store for tests whose checks always hit the
// session cache.
type emptyStore struct{}

func (emptyStore) FindUserByUsername(ctx context.Context, username string) (*rbac.User, error) {
	return nil, nil
}
func (emptyStore) FindUserByID(ctx context.Context, id int64) (*rbac.User, error) { return nil, nil }
func (emptyStore) FindRolesByUserID(ctx context.Context, userID int64) ([]rbac.Role, error) {
	return nil, nil
}
func (emptyStore) FindPermissionsByUserID(ctx context.Context, userID int64) ([]rbac.Permission, error) {
	return nil, nil
}
func (emptyStore) FindPermissionsByRoleID(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	return nil, nil
}
func (emptyStore) FindUsersByRoleID(ctx context.Context, roleID int64) ([]int64, error) {
	return nil, nil
}

func newHandlerFixture(t *testing.T, creds *stubCreds, perms *stubPerms) (*chi.Mux, *auth.Service, *session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, "token:")
	svc := auth.NewService(creds, perms, store, time.Hour, 4, slog.Default(), nil)
	mw := authz.Middleware{
		Identity: svc,
		Checker:  authz.NewChecker(store, authz.NewResolver(emptyStore{}), slog.Default(), nil),
		Logger:   slog.Default(),
	}
	handler := auth.NewHandler(slog.Default(), svc, mw, nil)
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	return router, svc, store
}

func postJSON(t *testing.T, router http.Handler, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestLoginEndpoint(t *testing.T) {
	router, svc, _ := newHandlerFixture(t, aliceCreds(t), &stubPerms{})

	rr := postJSON(t, router, "/auth/login", map[string]string{"username": "alice", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	userID, ok, err := svc.IdentityFromToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(7), userID)
}

func TestLoginEndpointRejections(t *testing.T) {
	router, _, _ := newHandlerFixture(t, aliceCreds(t), &stubPerms{})

	rr := postJSON(t, router, "/auth/login", map[string]string{"username": "alice", "password": "nope"}, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = postJSON(t, router, "/auth/login", map[string]string{"username": "alice"}, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutEndpointIdempotent(t *testing.T) {
	router, svc, _ := newHandlerFixture(t, aliceCreds(t), &stubPerms{})
	token, err := svc.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	rr := postJSON(t, router, "/auth/logout", nil, token)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// Same token again, and no token at all.
	rr = postJSON(t, router, "/auth/logout", nil, token)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = postJSON(t, router, "/auth/logout", nil, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestForceLogoutEndpoint(t *testing.T) {
	creds := aliceCreds(t)
	creds.users["admin"] = &rbac.User{ID: 1, Username: "admin", PasswordHash: hashPassword(t, "admin-pass"), IsActive: true}
	router, svc, _ := newHandlerFixture(t, creds, &stubPerms{codes: []string{shared.PermUserForceLogout}})
	ctx := context.Background()

	adminToken, err := svc.Login(ctx, "admin", "admin-pass")
	require.NoError(t, err)
	aliceToken, err := svc.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	rr := postJSON(t, router, fmt.Sprintf("/auth/force-logout/%d", 7), nil, adminToken)
	require.Equal(t, http.StatusNoContent, rr.Code)

	_, ok, err := svc.IdentityFromToken(ctx, aliceToken)
	require.NoError(t, err)
	require.False(t, ok)

	// Without a session there is no authenticated caller.
	rr = postJSON(t, router, "/auth/force-logout/7", nil, aliceToken)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestForceLogoutRequiresPermission(t *testing.T) {
	creds := aliceCreds(t)
	router, svc, _ := newHandlerFixture(t, creds, &stubPerms{codes: []string{"USER:VIEW"}})

	token, err := svc.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	rr := postJSON(t, router, "/auth/force-logout/9", nil, token)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLoginTimeEndpoint(t *testing.T) {
	router, svc, store := newHandlerFixture(t, aliceCreds(t), &stubPerms{codes: []string{shared.PermUserView}})
	ctx := context.Background()

	token, err := svc.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	rec, err := store.Get(ctx, token)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/login-time/7", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		UserID      int64 `json:"user_id"`
		LoginTimeMs int64 `json:"login_time_ms"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, int64(7), resp.UserID)
	require.Equal(t, rec.LoginTimeMs, resp.LoginTimeMs)

	// A user with no session has no login time.
	req = httptest.NewRequest(http.MethodGet, "/auth/login-time/404", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	router, _, _ := newHandlerFixture(t, aliceCreds(t), &stubPerms{})

	rr := postJSON(t, router, "/auth/register", map[string]string{
		"username": "carol",
		"password": "s3cretpass",
		"email":    "carol@example.com",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = postJSON(t, router, "/auth/register", map[string]string{"username": "dave", "password": "short"}, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, router, "/auth/register", map[string]string{"username": "carol", "password": "s3cretpass"}, "")
	require.Equal(t, http.StatusConflict, rr.Code)
}
