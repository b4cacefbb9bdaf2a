package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier(t *testing.T) {
	verifier, err := NewJWTVerifier("test-secret")
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("full profile claims", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{
			"sub":     "user-1",
			"name":    "Alice",
			"email":   "alice@example.com",
			"picture": "https://example.com/alice.png",
		})

		id, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, Identity{
			UserID:      "user-1",
			DisplayName: "Alice",
			Email:       "alice@example.com",
			PhotoURL:    "https://example.com/alice.png",
		}, id)
	})

	t.Run("missing name falls back to default", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{"sub": "user-2"})

		id, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, DefaultDisplayName, id.DisplayName)
		assert.Empty(t, id.Email)
		assert.Empty(t, id.PhotoURL)
	})

	t.Run("missing sub rejected", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{"name": "Nobody"})

		_, err := verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{"sub": "user-3"})

		_, err := verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-4"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, unsigned)
		assert.Error(t, err)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{
			"sub": "user-5",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("empty secret rejected at construction", func(t *testing.T) {
		_, err := NewJWTVerifier("")
		assert.Error(t, err)
	})
}

// countingVerifier records how often the delegate is actually hit.
type countingVerifier struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (c *countingVerifier) Verify(_ context.Context, token string) (Identity, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return Identity{}, c.err
	}
	return Identity{UserID: "uid-" + token, DisplayName: "User " + token}, nil
}

func TestCachingVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("repeat verification served from cache", func(t *testing.T) {
		delegate := &countingVerifier{}
		verifier := NewCachingVerifier(delegate, 16, time.Minute)

		first, err := verifier.Verify(ctx, "tok")
		require.NoError(t, err)
		second, err := verifier.Verify(ctx, "tok")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int64(1), delegate.calls.Load())
	})

	t.Run("distinct tokens verified separately", func(t *testing.T) {
		delegate := &countingVerifier{}
		verifier := NewCachingVerifier(delegate, 16, time.Minute)

		a, err := verifier.Verify(ctx, "a")
		require.NoError(t, err)
		b, err := verifier.Verify(ctx, "b")
		require.NoError(t, err)

		assert.NotEqual(t, a.UserID, b.UserID)
		assert.Equal(t, int64(2), delegate.calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		delegate := &countingVerifier{err: errors.New("issuer unreachable")}
		verifier := NewCachingVerifier(delegate, 16, time.Minute)

		_, err := verifier.Verify(ctx, "tok")
		require.Error(t, err)
		_, err = verifier.Verify(ctx, "tok")
		require.Error(t, err)

		assert.Equal(t, int64(2), delegate.calls.Load())
	})

	t.Run("concurrent verifications collapse into one", func(t *testing.T) {
		delegate := &countingVerifier{delay: 50 * time.Millisecond}
		verifier := NewCachingVerifier(delegate, 16, time.Minute)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := verifier.Verify(ctx, "tok")
				assert.NoError(t, err)
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int64(1), delegate.calls.Load())
	})
}
