package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"slateboard/internal/consts"
)

// ReminderDeduper records cards a reminder cycle has claimed in Redis so
// concurrent instances do not fan out the same reminder twice. The guard is
// best effort: a crash between claiming and flipping the notified flag lets
// another instance repeat the card once the TTL expires.
type ReminderDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReminderDeduper creates a deduper using the provided Redis client and TTL.
func NewReminderDeduper(client *redis.Client, ttl time.Duration) *ReminderDeduper {
	return &ReminderDeduper{client: client, ttl: ttl}
}

func (r *ReminderDeduper) key(cardID string) string {
	return consts.ReminderLockPrefix + cardID
}

// Claim records the card if no other instance has claimed it. It returns
// true when the claim was newly taken.
func (r *ReminderDeduper) Claim(ctx context.Context, cardID string) (bool, error) {
	return r.client.SetNX(ctx, r.key(cardID), 1, r.ttl).Result()
}

// Release deletes a previously taken claim so a failed card can be retried
// by the next cycle without waiting for the TTL.
func (r *ReminderDeduper) Release(ctx context.Context, cardID string) error {
	return r.client.Del(ctx, r.key(cardID)).Err()
}
