package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrDuplicateEvent = errors.New("event already seen")

// MarkEventSeen records a provider event, keyed per provider topic and
// event id. Returns ErrDuplicateEvent if the event was already recorded
// inside the TTL window.
func (c *Client) MarkEventSeen(ctx context.Context, topic, eventID string, ttl time.Duration) error {
	key := c.prefixKey(fmt.Sprintf("webhook:%s:%s", topic, eventID))

	set, err := c.rdb.SetNX(ctx, key, "seen", ttl).Result()
	if err != nil {
		return err
	}
	if !set {
		return ErrDuplicateEvent
	}
	return nil
}

// ForgetEvent drops a seen-marker so a failed event can be redelivered.
func (c *Client) ForgetEvent(ctx context.Context, topic, eventID string) error {
	key := c.prefixKey(fmt.Sprintf("webhook:%s:%s", topic, eventID))
	return c.rdb.Del(ctx, key).Err()
}
