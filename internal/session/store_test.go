package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dawnmoon/charon/internal/session"
)

func newStore(t *testing.T) (*session.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return session.NewStore(client, "token:"), mr
}

func sampleRecord() *session.Record {
	return &session.Record{
		UserID:      42,
		Username:    "alice",
		Roles:       []string{"EDITOR"},
		Permissions: []string{"DOC:EDIT", "DOC:VIEW"},
		LoginTimeMs: time.Now().UnixMilli(),
	}
}

func TestPutGetDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, store.Put(ctx, "t1", rec, time.Hour))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, rec.UserID, got.UserID)
	require.Equal(t, rec.Username, got.Username)
	require.Equal(t, rec.Permissions, got.Permissions)
	require.Equal(t, rec.LoginTimeMs, got.LoginTimeMs)

	require.NoError(t, store.Delete(ctx, "t1"))
	got, err = store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, "t1"))
}

func TestGetMissingToken(t *testing.T) {
	store, _ := newStore(t)
	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUserTokenIndex(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	token, err := store.GetUserToken(ctx, 42)
	require.NoError(t, err)
	require.Empty(t, token)

	require.NoError(t, store.PutUserToken(ctx, 42, "t1", time.Hour))
	token, err = store.GetUserToken(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "t1", token)

	require.NoError(t, store.DeleteUserToken(ctx, 42))
	token, err = store.GetUserToken(ctx, 42)
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestTTLExpiry(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "t1", sampleRecord(), time.Minute))
	require.NoError(t, store.PutUserToken(ctx, 42, "t1", time.Minute))

	ttl, ok, err := store.RemainingTTL(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, float64(time.Minute), float64(ttl), float64(time.Second))

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Nil(t, got)
	token, err := store.GetUserToken(ctx, 42)
	require.NoError(t, err)
	require.Empty(t, token)

	_, ok, err = store.RemainingTTL(ctx, "t1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRenewSlidesBothIndexes(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "t1", sampleRecord(), time.Minute))
	require.NoError(t, store.PutUserToken(ctx, 42, "t1", time.Minute))

	ok, err := store.Renew(ctx, "t1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(30 * time.Minute)

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	token, err := store.GetUserToken(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "t1", token)
}

func TestRenewMissingToken(t *testing.T) {
	store, _ := newStore(t)
	ok, err := store.Renew(context.Background(), "gone", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUnavailableCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, "token:")
	mr.Close()

	_, err := store.Get(context.Background(), "t1")
	require.Error(t, err)
}
