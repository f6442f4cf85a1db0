package authz_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dawnmoon/charon/internal/auth"
	"github.com/dawnmoon/charon/internal/authz"
	"github.com/dawnmoon/charon/internal/rbac"
	"github.com/dawnmoon/charon/internal/session"
)

func newPropagatorFixture(t *testing.T) (*authz.Propagator, *session.Store, *fakeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := session.NewStore(client, "token:")
	store := newFakeStore()
	resolver := authz.NewResolver(store)
	prop := authz.NewPropagator(sessions, resolver, store, 24*time.Hour, slog.Default(), nil)
	return prop, sessions, store, mr
}

func TestRefreshUserRewritesPermissions(t *testing.T) {
	prop, sessions, store, mr := newPropagatorFixture(t)
	ctx := context.Background()

	store.users[7] = &rbac.User{ID: 7, Username: "alice"}
	store.roles[1] = rbac.Role{ID: 1, Name: "EDITOR"}
	store.userRoles[7] = []int64{1}
	store.rolePerms[1] = []rbac.Permission{{ID: 1, Code: "DOC:VIEW"}, {ID: 2, Code: "DOC:EDIT"}}

	rec := &session.Record{UserID: 7, Username: "alice", Roles: []string{"EDITOR"}, Permissions: []string{"DOC:VIEW", "DOC:EDIT"}, LoginTimeMs: 1700000000000}
	require.NoError(t, sessions.Put(ctx, "tok-7", rec, 45*time.Minute))
	require.NoError(t, sessions.PutUserToken(ctx, 7, "tok-7", 45*time.Minute))

	// Age the session, then revoke DOC:EDIT in the store.
	mr.FastForward(15 * time.Minute)
	store.rolePerms[1] = []rbac.Permission{{ID: 1, Code: "DOC:VIEW"}}

	require.NoError(t, prop.RefreshUser(ctx, 7))

	got, err := sessions.Get(ctx, "tok-7")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, []string{"DOC:VIEW"}, got.Permissions)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, int64(1700000000000), got.LoginTimeMs)

	// The rewrite keeps the remaining TTL rather than restarting it.
	ttl, ok, err := sessions.RemainingTTL(ctx, "tok-7")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, float64(30*time.Minute), float64(ttl), float64(time.Second))
}

func TestRefreshUserWithoutSession(t *testing.T) {
	prop, sessions, _, _ := newPropagatorFixture(t)
	ctx := context.Background()

	require.NoError(t, prop.RefreshUser(ctx, 42))

	token, err := sessions.GetUserToken(ctx, 42)
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestRefreshUsersByRole(t *testing.T) {
	prop, sessions, store, _ := newPropagatorFixture(t)
	ctx := context.Background()

	store.roles[1] = rbac.Role{ID: 1, Name: "EDITOR"}
	store.rolePerms[1] = []rbac.Permission{{ID: 1, Code: "DOC:VIEW"}}
	for _, userID := range []int64{1, 2, 3} {
		store.userRoles[userID] = []int64{1}
	}

	// Users 1 and 3 are logged in; user 2 is not and must not block the rest.
	for _, userID := range []int64{1, 3} {
		token := fmt.Sprintf("tok-%d", userID)
		rec := &session.Record{UserID: userID, Permissions: []string{"DOC:VIEW", "DOC:EDIT"}}
		require.NoError(t, sessions.Put(ctx, token, rec, time.Hour))
		require.NoError(t, sessions.PutUserToken(ctx, userID, token, time.Hour))
	}

	require.NoError(t, prop.RefreshUsersByRole(ctx, 1))

	for _, userID := range []int64{1, 3} {
		token, err := sessions.GetUserToken(ctx, userID)
		require.NoError(t, err)
		rec, err := sessions.Get(ctx, token)
		require.NoError(t, err)
		require.Equal(t, []string{"DOC:VIEW"}, rec.Permissions, "user %d", userID)
	}
}

// TestRevocationVisibleOnNextCheck walks the full path: a logged-in user
// passes a check, the grant is revoked and propagated, and the very next
// check against the same session denies.
func TestRevocationVisibleOnNextCheck(t *testing.T) {
	prop, sessions, store, _ := newPropagatorFixture(t)
	checker := authz.NewChecker(sessions, authz.NewResolver(store), slog.Default(), nil)
	ctx := context.Background()

	store.users[7] = &rbac.User{ID: 7, Username: "alice"}
	store.roles[1] = rbac.Role{ID: 1, Name: "REPORT_ADMIN"}
	store.userRoles[7] = []int64{1}
	store.rolePerms[1] = []rbac.Permission{{ID: 1, Code: "REPORT:VIEW"}, {ID: 2, Code: "REPORT:EXPORT"}}

	rec := &session.Record{UserID: 7, Username: "alice", Roles: []string{"REPORT_ADMIN"}, Permissions: []string{"REPORT:VIEW", "REPORT:EXPORT"}}
	require.NoError(t, sessions.Put(ctx, "tok-7", rec, time.Hour))
	require.NoError(t, sessions.PutUserToken(ctx, 7, "tok-7", time.Hour))

	allowed, err := checker.Check(ctx, 7, authz.All("REPORT:EXPORT"))
	require.NoError(t, err)
	require.True(t, allowed)

	store.rolePerms[1] = []rbac.Permission{{ID: 1, Code: "REPORT:VIEW"}}
	require.NoError(t, prop.RefreshUsersByRole(ctx, 1))

	allowed, err = checker.Check(ctx, 7, authz.All("REPORT:EXPORT"))
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = checker.Check(ctx, 7, authz.All("REPORT:VIEW"))
	require.NoError(t, err)
	require.True(t, allowed)
}

// TestRoleRevocationKeepsSessionAlive covers the whole login-check-revoke
// cycle: stripping a role removes its grants from the cached set without
// invalidating the session itself.
func TestRoleRevocationKeepsSessionAlive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := session.NewStore(client, "token:")
	store := newFakeStore()
	resolver := authz.NewResolver(store)
	prop := authz.NewPropagator(sessions, resolver, store, 24*time.Hour, slog.Default(), nil)
	checker := authz.NewChecker(sessions, resolver, slog.Default(), nil)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("alice-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	store.users[7] = &rbac.User{ID: 7, Username: "alice", PasswordHash: string(hash), IsActive: true}
	store.roles[1] = rbac.Role{ID: 1, Name: "EDITOR"}
	store.userRoles[7] = []int64{1}
	store.rolePerms[1] = []rbac.Permission{{ID: 1, Code: "DOC:EDIT"}}

	svc := auth.NewService(store, resolver, sessions, time.Hour, bcrypt.MinCost, slog.Default(), nil)
	token, err := svc.Login(ctx, "alice", "alice-pass")
	require.NoError(t, err)

	allowed, err := checker.Check(ctx, 7, authz.All("DOC:EDIT"))
	require.NoError(t, err)
	require.True(t, allowed)

	// Admin strips EDITOR from alice and propagates.
	store.userRoles[7] = nil
	require.NoError(t, prop.RefreshUser(ctx, 7))

	allowed, err = checker.Check(ctx, 7, authz.All("DOC:EDIT"))
	require.NoError(t, err)
	require.False(t, allowed)

	userID, ok, err := svc.IdentityFromToken(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(7), userID)
}
