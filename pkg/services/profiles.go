package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/calledit/calledit-server/pkg/identity"
	"github.com/calledit/calledit-server/pkg/models"
	"github.com/calledit/calledit-server/pkg/store"
)

const (
	defaultProfileCacheSize = 4096
	defaultProfileCacheTTL  = time.Hour
)

// ProfileCache resolves user ids to public profiles. Message history
// enrichment hits the same handful of senders over and over, so
// profiles are cached for an hour and refreshed early whenever the
// user logs in again.
type ProfileCache struct {
	store store.Store
	cache *expirable.LRU[string, models.Profile]
	sf    singleflight.Group
}

// NewProfileCache creates a cache backed by st. Non-positive size or
// TTL select the defaults.
func NewProfileCache(st store.Store, size int, ttl time.Duration) *ProfileCache {
	if size <= 0 {
		size = defaultProfileCacheSize
	}
	if ttl <= 0 {
		ttl = defaultProfileCacheTTL
	}
	return &ProfileCache{
		store: st,
		cache: expirable.NewLRU[string, models.Profile](size, nil, ttl),
	}
}

// Resolve returns the profile for userID, loading through the store on
// a miss. Unknown users and store failures resolve to a placeholder
// profile so rendering a message log never fails on one bad sender;
// placeholders are not cached.
func (p *ProfileCache) Resolve(ctx context.Context, userID string) models.Profile {
	v, _, _ := p.sf.Do(userID, func() (any, error) {
		if prof, ok := p.cache.Get(userID); ok {
			return prof, nil
		}
		user, err := p.store.GetUser(ctx, userID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				slog.Warn("Failed to load profile", "user_id", userID, "error", err)
			}
			return models.Profile{UserID: userID, DisplayName: identity.DefaultDisplayName}, nil
		}
		prof := models.ProfileOf(user)
		p.cache.Add(userID, prof)
		return prof, nil
	})
	return v.(models.Profile)
}

// Put stores a freshly known profile, replacing any cached value.
func (p *ProfileCache) Put(prof models.Profile) {
	p.cache.Add(prof.UserID, prof)
}
