package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const inboxStatsKey = "inbox:stats"

// InboxStats keeps the last computed inbox statistics for ttl.
type InboxStats struct {
	cache *gocache.Cache
}

func NewInboxStats(ttl time.Duration) *InboxStats {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &InboxStats{cache: gocache.New(ttl, 2*ttl)}
}

func (c *InboxStats) Get() (domain.InboxStats, bool) {
	if val, found := c.cache.Get(inboxStatsKey); found {
		return val.(domain.InboxStats), true
	}
	return domain.InboxStats{}, false
}

func (c *InboxStats) Set(stats domain.InboxStats) {
	c.cache.SetDefault(inboxStatsKey, stats)
}

func (c *InboxStats) Invalidate() {
	c.cache.Delete(inboxStatsKey)
}
