package badges

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ratehive/ratehive/internal/domain"
)

// DefaultTTL is how long a loaded catalog is served before rereading the
// store. Badges are slowly-changing configuration.
const DefaultTTL = 30 * time.Second

// Catalog serves the badge catalog from a TTL cache over the store.
type Catalog struct {
	store domain.Reader
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	badges   []domain.Badge
	loadedAt time.Time
}

// NewCatalog creates a catalog cache. ttl <= 0 selects DefaultTTL.
func NewCatalog(store domain.Reader, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{store: store, ttl: ttl, now: time.Now}
}

// Badges returns the cached catalog, reloading it from the store when the
// TTL has lapsed. On a reload failure a stale (non-empty) cache is served
// rather than failing the caller's award.
func (c *Catalog) Badges(ctx context.Context) ([]domain.Badge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.badges != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.badges, nil
	}
	if err := c.reload(ctx); err != nil {
		if c.badges != nil {
			log.WithError(err).Warn("badge catalog reload failed, serving stale cache")
			return c.badges, nil
		}
		return nil, err
	}
	return c.badges, nil
}

// Refresh forces the next Badges call to hit the store. The cron job calls
// this so admin edits propagate within one schedule tick.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload(ctx)
}

// reload fetches the catalog and warns once per load about entries whose
// condition fails validation. Invalid entries stay listed — the evaluator
// skips them — so administrators can still see and fix them.
func (c *Catalog) reload(ctx context.Context) error {
	loaded, err := c.store.Badges(ctx)
	if err != nil {
		return err
	}
	for _, b := range loaded {
		if err := b.Condition.Validate(); err != nil {
			log.WithFields(log.Fields{
				"badge": b.ID,
				"kind":  string(b.Condition.Kind),
			}).WithError(err).Warn("badge has an invalid unlock condition; it will never be granted")
		}
	}
	if loaded == nil {
		loaded = []domain.Badge{}
	}
	c.badges = loaded
	c.loadedAt = c.now()
	return nil
}
