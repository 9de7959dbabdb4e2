package llm

import (
	"sync"
	"time"

	"github.com/Veraticus/spice-ledger/internal/service"
)

// maxCachedDecisions bounds the cache when a pass asks many distinct questions.
const maxCachedDecisions = 10000

type cacheEntry struct {
	expiry   time.Time
	decision service.Decision
}

// decisionCache remembers definitive answers per classify request, so the
// same question asked by several rules in one pass costs a single call.
// Expired entries are dropped when read or when the cache fills up.
type decisionCache struct {
	now        func() time.Time
	entries    map[service.ClassifyRequest]cacheEntry
	ttl        time.Duration
	maxEntries int
	mu         sync.Mutex
}

func newDecisionCache(ttl time.Duration) *decisionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &decisionCache{
		now:        time.Now,
		entries:    make(map[service.ClassifyRequest]cacheEntry),
		ttl:        ttl,
		maxEntries: maxCachedDecisions,
	}
}

func (c *decisionCache) get(req service.ClassifyRequest) (service.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[req]
	if !ok {
		return "", false
	}
	if !c.now().Before(entry.expiry) {
		delete(c.entries, req)
		return "", false
	}
	return entry.decision, true
}

// set stores apply and do-not-apply answers. An unavailable answer is never
// cached; the next pass should ask again.
func (c *decisionCache) set(req service.ClassifyRequest, decision service.Decision) {
	if decision != service.DecisionApply && decision != service.DecisionDoNotApply {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[req]; !exists && len(c.entries) >= c.maxEntries {
		c.evict(now)
	}
	c.entries[req] = cacheEntry{decision: decision, expiry: now.Add(c.ttl)}
}

// evict drops expired entries, or the entry closest to expiry when none has
// expired. Callers hold mu.
func (c *decisionCache) evict(now time.Time) {
	var (
		oldest    service.ClassifyRequest
		oldestExp time.Time
		found     bool
	)
	for req, entry := range c.entries {
		if !now.Before(entry.expiry) {
			delete(c.entries, req)
			continue
		}
		if !found || entry.expiry.Before(oldestExp) {
			oldest, oldestExp, found = req, entry.expiry, true
		}
	}
	if len(c.entries) >= c.maxEntries && found {
		delete(c.entries, oldest)
	}
}

func (c *decisionCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
