package snapshot

import (
	"context"
	"strconv"
	"testing"

	"patron-sync/internal/config"
	"patron-sync/internal/prox"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Redis.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Redis.Port = port

	client, err := NewRedisClient(cfg)
	require.NoError(t, err)

	store := NewStore(cfg, client)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestStore_LoadEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	badges, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, badges)
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, prox.IdentifierMap{"1": "11", "2": "22"}))
	assert.Equal(t, "11", mr.HGet(config.Default().Redis.SnapshotKey, "1"))

	require.NoError(t, store.Save(ctx, prox.IdentifierMap{"3": "33"}))

	badges, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, prox.IdentifierMap{"3": "33"}, badges)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	cfg := config.Default()
	cfg.Redis.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Redis.Port = port
	mr.Close()

	_, err = NewRedisClient(cfg)
	assert.Error(t, err)
}

func TestStore_LoadError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(config.Default(), client)
	defer store.Close()

	mr.SetError("boom")
	_, _, err := store.Load(context.Background())
	assert.Error(t, err)
}
