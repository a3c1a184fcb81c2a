package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/music-school-hub/student-registry/internal/domain/notification"
)

// NotificationStream is a typed subscription to NotificationChannel.
type NotificationStream struct {
	pubsub *redis.PubSub
}

// SubscribeNotifications subscribes to the notification channel and waits
// for the subscription to be confirmed.
func (c *Cache) SubscribeNotifications(ctx context.Context) (*NotificationStream, error) {
	ps := c.client.Subscribe(ctx, NotificationChannel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", NotificationChannel, err)
	}
	return &NotificationStream{pubsub: ps}, nil
}

// Next blocks until the next notification arrives or ctx is done.
func (s *NotificationStream) Next(ctx context.Context) (notification.Notification, error) {
	var n notification.Notification

	msg, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return n, err
	}

	if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
		return n, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return n, nil
}

// Close ends the subscription.
func (s *NotificationStream) Close() error {
	return s.pubsub.Close()
}
