//go:build integration

package persistence_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/illmade-knight/go-test/emulators"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiyanhack13/geopressci-realtime/internal/platform/persistence"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// setupRedisSuite starts the Redis container and returns a flushed store.
func setupRedisSuite(t *testing.T) (context.Context, *persistence.RedisSubscriptionStore) {
	t.Helper()
	testCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	// Pass context.Background() for the container lifecycle so the timed
	// test context does not tear it down mid-suite.
	cfg := emulators.GetDefaultRedisImageContainer()
	connInfo := emulators.SetupRedisContainer(t, context.Background(), cfg)

	rdb := redis.NewClient(&redis.Options{
		Addr: connInfo.EmulatorAddress,
		DB:   0,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.FlushDB(testCtx).Err())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := persistence.NewRedisSubscriptionStore(rdb, logger)
	require.NoError(t, err)

	return testCtx, store
}

func TestRedisSubscriptionStore(t *testing.T) {
	ctx, store := setupRedisSuite(t)

	t.Run("Save and fetch a new subscription", func(t *testing.T) {
		sub := subscription("https://push.example.com/a")
		require.NoError(t, store.Save(ctx, "user-a", presence.RoleClient, sub))

		subs, err := store.Fetch(ctx, "user-a")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, *sub, subs[0])
	})

	t.Run("Re-registering an endpoint overwrites in place", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "user-b", presence.RoleClient, subscription("https://push.example.com/b")))

		refreshed := subscription("https://push.example.com/b")
		refreshed.Keys["auth"] = "rotated-secret"
		require.NoError(t, store.Save(ctx, "user-b", presence.RoleClient, refreshed))

		subs, err := store.Fetch(ctx, "user-b")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "rotated-secret", subs[0].Keys["auth"])
	})

	t.Run("A second endpoint is a second hash field", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "user-c", presence.RolePressing, subscription("https://push.example.com/c1")))
		require.NoError(t, store.Save(ctx, "user-c", presence.RolePressing, subscription("https://push.example.com/c2")))

		subs, err := store.Fetch(ctx, "user-c")
		require.NoError(t, err)
		assert.Len(t, subs, 2)
	})

	t.Run("Fetch for an unknown user is empty, not an error", func(t *testing.T) {
		subs, err := store.Fetch(ctx, "user-never-registered")
		require.NoError(t, err)
		assert.Empty(t, subs)
	})
}
