package leveling

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// cooldownTracker counts messages in fixed windows per guild member. The
// engine serializes calls per member through its keylock so the counter
// itself needs no locking beyond what go-cache provides.
type cooldownTracker struct {
	buckets *cache.Cache
}

type cooldownBucket struct {
	windowStart time.Time
	count       int
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{
		buckets: cache.New(time.Minute, 5*time.Minute),
	}
}

// Allow records one message for the member and reports whether it still fits
// within rate messages per window. Messages past the rate are dropped without
// carrying over into the next window.
func (c *cooldownTracker) Allow(guildID, userID int64, rate int, per time.Duration, now time.Time) bool {
	key := fmt.Sprintf("%d:%d", guildID, userID)

	v, ok := c.buckets.Get(key)
	if ok {
		bucket := v.(*cooldownBucket)
		if now.Sub(bucket.windowStart) < per {
			if bucket.count >= rate {
				return false
			}

			bucket.count++
			return true
		}
	}

	// new member or the previous window elapsed
	c.buckets.Set(key, &cooldownBucket{windowStart: now, count: 1}, per)
	return true
}
