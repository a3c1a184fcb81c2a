package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-school-hub/student-registry/internal/domain/notification"
	"github.com/music-school-hub/student-registry/internal/testutil/containers"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	containers.SkipUnlessIntegration(t)

	rc := containers.StartRedis(t)

	cfg := DefaultConfig()
	cfg.Host = rc.Host
	cfg.Port = rc.Port

	cache, err := NewCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestNotificationChannel(t *testing.T) {
	assert.Equal(t, "students:notifications", NotificationChannel)
}

func TestDefaultConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

func TestNewCache_ConnectionRefused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 1
	cfg.DialTimeout = 200 * time.Millisecond
	cfg.MaxRetries = 0

	_, err := NewCache(cfg)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestCache_PublishRejectsEmptyChannel(t *testing.T) {
	cache := newTestCache(t)
	assert.ErrorIs(t, cache.Publish(context.Background(), "", "x"), ErrCacheKeyEmpty)
}

func TestCache_NotificationRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := cache.SubscribeNotifications(ctx)
	require.NoError(t, err)
	defer stream.Close()

	sent := notification.Registered("42", "Alice")
	sent.Seq = 3
	data, err := json.Marshal(sent)
	require.NoError(t, err)
	require.NoError(t, cache.Publish(ctx, NotificationChannel, json.RawMessage(data)))

	got, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, notification.KindRegistered, got.Kind)
	assert.Equal(t, "Alice has been registered.", got.Description)
	assert.Equal(t, uint64(3), got.Seq)
}
