package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = time.Hour
)

// CachingVerifier wraps another verifier with an expiring LRU cache.
// Clients resend the same ID token on every reconnect, so without the
// cache each reconnect costs a round trip to the token issuer. The TTL
// also bounds how long a revoked token keeps resolving.
type CachingVerifier struct {
	delegate Verifier
	cache    *expirable.LRU[string, Identity]
	sf       singleflight.Group
}

// NewCachingVerifier wraps delegate with a cache of the given size and
// TTL. Non-positive values select the defaults.
func NewCachingVerifier(delegate Verifier, size int, ttl time.Duration) *CachingVerifier {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachingVerifier{
		delegate: delegate,
		cache:    expirable.NewLRU[string, Identity](size, nil, ttl),
	}
}

// Verify returns the cached identity for the token or verifies it
// through the delegate. The cache check runs inside singleflight so
// concurrent sessions presenting the same token trigger one
// verification, not a stampede.
func (v *CachingVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	key := cacheKey(token)
	val, err, _ := v.sf.Do(key, func() (any, error) {
		if id, ok := v.cache.Get(key); ok {
			return id, nil
		}
		id, err := v.delegate.Verify(ctx, token)
		if err != nil {
			return Identity{}, err
		}
		v.cache.Add(key, id)
		return id, nil
	})
	if err != nil {
		return Identity{}, err
	}
	return val.(Identity), nil
}

// cacheKey hashes the token so raw credentials never sit in the cache.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
